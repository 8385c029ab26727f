// Package fsqutil holds small helpers shared by the engine and its
// configuration adapter.
package fsqutil

import (
	"strconv"
	"strings"
)

// ParseMemSizeStr turns a human size string such as "100MB", "512K" or a
// bare byte count into a byte count. Used by fsqcfg.Options to let
// FinalizePolicy/PurgePolicy thresholds be expressed in config files the
// way DataFileMaxSize is on syscfg.Cfg.
func ParseMemSizeStr(size string) (uint64, error) {
	size = strings.ToUpper(strings.TrimSpace(size))
	switch {
	case strings.HasSuffix(size, "KB"), strings.HasSuffix(size, "K"):
		v, err := strconv.ParseUint(trimUnit(size, "KB", "K"), 10, 64)
		if err != nil {
			return 0, err
		}
		return v * 1024, nil
	case strings.HasSuffix(size, "MB"), strings.HasSuffix(size, "M"):
		v, err := strconv.ParseUint(trimUnit(size, "MB", "M"), 10, 64)
		if err != nil {
			return 0, err
		}
		return v * 1024 * 1024, nil
	case strings.HasSuffix(size, "GB"), strings.HasSuffix(size, "G"):
		v, err := strconv.ParseUint(trimUnit(size, "GB", "G"), 10, 64)
		if err != nil {
			return 0, err
		}
		return v * 1024 * 1024 * 1024, nil
	case strings.HasSuffix(size, "B"):
		return strconv.ParseUint(strings.TrimSuffix(size, "B"), 10, 64)
	}
	return strconv.ParseUint(size, 10, 64)
}

func trimUnit(size, long, short string) string {
	if strings.HasSuffix(size, long) {
		return strings.TrimSuffix(size, long)
	}
	return strings.TrimSuffix(size, short)
}
