package fsqcfg

import (
	"github.com/995933447/fsq/fsq"
	"github.com/995933447/fsq/internal/fsqutil"
)

// parseSize returns 0 for an empty string and otherwise delegates to
// fsqutil.ParseMemSizeStr, so an unset knob in the config file leaves the
// corresponding threshold disabled rather than erroring.
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := fsqutil.ParseMemSizeStr(s)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// ApplyTo overwrites the hot-reloadable fields of cfg with o. Call it once
// before fsq.New, and again after any confloader reload if the caller wants
// to rebuild policies (the engine itself does not re-read Options once
// started; policies are snapshotted into concrete structs at New time).
func (o *Options) ApplyTo(cfg *fsq.Config) error {
	if o == nil {
		return nil
	}

	realtimeMaxSize, err := parseSize(o.RealtimeMaxSize)
	if err != nil {
		return err
	}
	backlogMaxSize, err := parseSize(o.BacklogMaxSize)
	if err != nil {
		return err
	}
	purgeMaxTotalSize, err := parseSize(o.PurgeMaxTotalSize)
	if err != nil {
		return err
	}

	finalize := fsq.BacklogAwareFinalize{
		RealtimeMaxSize: realtimeMaxSize,
		RealtimeMaxAge:  fsq.TimeSpan(o.RealtimeMaxAgeMs),
		BacklogMaxSize:  backlogMaxSize,
		BacklogMaxAge:   fsq.TimeSpan(o.BacklogMaxAgeMs),
	}
	if finalize.RealtimeMaxSize > 0 || finalize.RealtimeMaxAge > 0 ||
		finalize.BacklogMaxSize > 0 || finalize.BacklogMaxAge > 0 {
		cfg.Finalize = finalize
	}

	if purgeMaxTotalSize > 0 || o.PurgeMaxFinalizedCount > 0 {
		cfg.Purge = fsq.CapacityPurge{
			MaxTotalBytes:     purgeMaxTotalSize,
			MaxFinalizedCount: o.PurgeMaxFinalizedCount,
		}
	}

	if o.RetryMeanMs > 0 || o.RetryMinMs > 0 || o.RetryMaxMs > 0 {
		cfg.Retry = fsq.NewExponentialBackoff(
			fsq.TimeSpan(o.RetryMeanMs),
			fsq.TimeSpan(o.RetryMinMs),
			fsq.TimeSpan(o.RetryMaxMs),
		)
	}

	return nil
}
