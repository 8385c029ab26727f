package fsq

import (
	"fmt"
	"strconv"
	"strings"
)

// FileKind distinguishes a live current file from a sealed finalized one.
type FileKind int

const (
	KindCurrent FileKind = iota
	KindFinalized
)

func (k FileKind) String() string {
	if k == KindCurrent {
		return "current"
	}
	return "finalized"
}

// tsWidth is the fixed digit width of the embedded timestamp. 20 digits
// covers any 64-bit millisecond value, and fixed width guarantees
// lexicographic sort order equals numeric sort order.
const tsWidth = 20

const (
	currentPrefix   = "current-"
	finalizedPrefix = "finalized-"
	fileSuffix      = ".bin"
)

// NamingScheme encodes and decodes timestamps in current-/finalized-
// filenames.
type NamingScheme interface {
	GenerateCurrent(ts Timestamp) string
	GenerateFinalized(ts Timestamp) string
	// Parse returns the kind and embedded timestamp for a basename, or
	// ok=false if name does not match either filename form, including
	// when the embedded digits fail to round-trip back to the same
	// substring (guards against a leading '+' sign or whitespace). A
	// leading '-' round-trips and is accepted as a negative timestamp.
	Parse(name string) (kind FileKind, ts Timestamp, ok bool)
}

// DefaultNaming is the fixed-width zero-padded decimal scheme.
type DefaultNaming struct{}

func (DefaultNaming) GenerateCurrent(ts Timestamp) string {
	return currentPrefix + padTimestamp(ts) + fileSuffix
}

func (DefaultNaming) GenerateFinalized(ts Timestamp) string {
	return finalizedPrefix + padTimestamp(ts) + fileSuffix
}

func (DefaultNaming) Parse(name string) (FileKind, Timestamp, bool) {
	var kind FileKind
	var rest string
	switch {
	case strings.HasPrefix(name, currentPrefix):
		kind = KindCurrent
		rest = strings.TrimPrefix(name, currentPrefix)
	case strings.HasPrefix(name, finalizedPrefix):
		kind = KindFinalized
		rest = strings.TrimPrefix(name, finalizedPrefix)
	default:
		return 0, 0, false
	}

	rest = strings.TrimSuffix(rest, fileSuffix)
	if !strings.HasSuffix(name, fileSuffix) || len(rest) != tsWidth {
		return 0, 0, false
	}

	ts, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, 0, false
	}

	// Round-trip guard: re-emit and compare against the original digits so
	// malformed input like " 1" or "+1" that ParseInt tolerates is rejected.
	if padTimestamp(Timestamp(ts)) != rest {
		return 0, 0, false
	}

	return kind, Timestamp(ts), true
}

func padTimestamp(ts Timestamp) string {
	return fmt.Sprintf("%0*d", tsWidth, int64(ts))
}
