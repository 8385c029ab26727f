package fsq

// FinalizePolicy is a pure function of (QueueStatus, now) deciding whether
// the current file must be sealed. Implementations must be monotone in
// time-since-creation and in appended size to avoid oscillation.
type FinalizePolicy interface {
	ShouldFinalize(status QueueStatus, now Timestamp) bool
}

// BacklogAwareFinalize is the default FinalizePolicy: it keeps files large
// while a backlog is draining (amortizing per-file overhead) and small
// when the backlog is empty (low end-to-end latency).
type BacklogAwareFinalize struct {
	RealtimeMaxSize int64
	RealtimeMaxAge  TimeSpan
	BacklogMaxSize  int64
	BacklogMaxAge   TimeSpan
}

func (p BacklogAwareFinalize) ShouldFinalize(status QueueStatus, now Timestamp) bool {
	if status.AppendedFileTimestamp == 0 {
		return false
	}

	age := now.Sub(status.AppendedFileTimestamp)

	if crossesThreshold(status.AppendedFileSize, p.BacklogMaxSize, age, p.BacklogMaxAge) {
		return true
	}

	if len(status.Finalized.Queue) > 0 {
		return false
	}

	return crossesThreshold(status.AppendedFileSize, p.RealtimeMaxSize, age, p.RealtimeMaxAge)
}

func crossesThreshold(size, maxSize int64, age, maxAge TimeSpan) bool {
	if maxSize > 0 && size >= maxSize {
		return true
	}
	if maxAge > 0 && age > maxAge {
		return true
	}
	// A threshold of exactly zero is legal and degenerate: it means
	// "finalize immediately".
	if maxSize == 0 && maxAge == 0 {
		return true
	}
	return false
}
