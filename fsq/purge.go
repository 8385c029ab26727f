package fsq

// PurgePolicy is a pure function of QueueStatus indicating "the oldest
// finalized file must be dropped now". The engine calls it repeatedly
// at the end of each PushMessage until it returns false.
type PurgePolicy interface {
	ShouldPurgeOldest(status QueueStatus) bool
}

// CapacityPurge is the capacity-capped PurgePolicy (Config.applyDefaults
// installs NoPurge when no policy is set): purge while total bytes
// (finalized + current) exceed MaxTotalBytes, or while the finalized file
// count exceeds MaxFinalizedCount. A zero field disables that check.
type CapacityPurge struct {
	MaxTotalBytes    int64
	MaxFinalizedCount int
}

func (p CapacityPurge) ShouldPurgeOldest(status QueueStatus) bool {
	if len(status.Finalized.Queue) == 0 {
		return false
	}

	if p.MaxTotalBytes > 0 {
		total := status.Finalized.TotalSize + status.AppendedFileSize
		if total > p.MaxTotalBytes {
			return true
		}
	}

	if p.MaxFinalizedCount > 0 && len(status.Finalized.Queue) > p.MaxFinalizedCount {
		return true
	}

	return false
}

// NoPurge never purges; useful when disk usage is bounded some other way.
type NoPurge struct{}

func (NoPurge) ShouldPurgeOldest(QueueStatus) bool { return false }
