// Package fsqcfg loads hot-reloadable engine tuning knobs from a JSON file,
// the way syscfg.Init loads cluster config: a confloader.Loader polling the
// file on an interval and unmarshaling into a fixed struct.
package fsqcfg

import (
	"sync"
	"time"

	"github.com/995933447/confloader"
)

// Options is the subset of fsq.Config that operators plausibly want to
// change without a redeploy. It is intentionally smaller than fsq.Config:
// the policy interfaces (FileSystem, Naming, Append, Processor) stay
// code-configured, only their numeric thresholds are hot-reloadable.
//
// The size fields mirror syscfg.Cfg.DataFileMaxSize: a plain string like
// "4MB" or "512K" rather than a raw byte count, parsed through
// fsqutil.ParseMemSizeStr.
type Options struct {
	RealtimeMaxSize  string `json:"realtime_max_size"`
	BacklogMaxSize   string `json:"backlog_max_size"`
	RealtimeMaxAgeMs int64  `json:"realtime_max_age_ms"`
	BacklogMaxAgeMs  int64  `json:"backlog_max_age_ms"`

	PurgeMaxTotalSize      string `json:"purge_max_total_size"`
	PurgeMaxFinalizedCount int    `json:"purge_max_finalized_count"`

	RetryMeanMs int64 `json:"retry_mean_ms"`
	RetryMinMs  int64 `json:"retry_min_ms"`
	RetryMaxMs  int64 `json:"retry_max_ms"`
}

var (
	opts     *Options
	optsInit sync.RWMutex
)

// Init starts a confloader.Loader against path, polling every interval and
// keeping the package-level Options current for the lifetime of the
// process. It blocks for the first load so a caller never observes a nil
// Options.
func Init(path string, interval time.Duration) error {
	optsInit.RLock()
	if opts != nil {
		optsInit.RUnlock()
		return nil
	}
	optsInit.RUnlock()

	optsInit.Lock()
	defer optsInit.Unlock()
	if opts != nil {
		return nil
	}

	if interval <= 0 {
		interval = 10 * time.Second
	}

	loaded := &Options{}
	loader := confloader.NewLoader(path, interval, loaded)
	if err := loader.Load(); err != nil {
		return err
	}
	opts = loaded
	return nil
}

// Current returns the last-loaded Options, or nil if Init was never called.
func Current() *Options {
	optsInit.RLock()
	defer optsInit.RUnlock()
	return opts
}
