package fsq

import (
	"strings"

	"github.com/huandu/skiplist"
)

// FinalizedBacklog is an ordered oldest-to-newest snapshot of finalized
// files awaiting processing, plus their combined size.
type FinalizedBacklog struct {
	Queue     []FileInfo
	TotalSize int64
}

// QueueStatus is the snapshot policies are evaluated against.
type QueueStatus struct {
	AppendedFileSize      int64
	AppendedFileTimestamp Timestamp
	Finalized             FinalizedBacklog
}

// finalizedKey orders entries by (timestamp, name), breaking ties between
// files that share a timestamp by name so ordering stays total.
type finalizedKey struct {
	Timestamp Timestamp
	Name      string
}

type finalizedKeyComparable struct{}

func (finalizedKeyComparable) Compare(lhs, rhs interface{}) int {
	a, b := lhs.(finalizedKey), rhs.(finalizedKey)
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Name, b.Name)
}

func (finalizedKeyComparable) CalcScore(key interface{}) float64 {
	return float64(key.(finalizedKey).Timestamp)
}

// finalizedSet keeps the finalized backlog in a skiplist keyed by
// (timestamp, name), grounded on internal/engine/queue.go's delayMsgQueue
// use of github.com/huandu/skiplist. A directory rescan is O(entries seen)
// upserts/removals instead of a full re-sort of a slice every processor
// wake-up, which matters once the backlog grows large between purges.
type finalizedSet struct {
	list      *skiplist.SkipList
	totalSize int64
}

func newFinalizedSet() *finalizedSet {
	return &finalizedSet{list: skiplist.New(finalizedKeyComparable{})}
}

func (s *finalizedSet) key(info FileInfo) finalizedKey {
	return finalizedKey{Timestamp: info.Timestamp, Name: info.Name}
}

func (s *finalizedSet) upsert(info FileInfo) {
	k := s.key(info)
	if elem := s.list.Get(k); elem != nil {
		old := elem.Value.(FileInfo)
		s.totalSize -= old.Size
	}
	s.list.Set(k, info)
	s.totalSize += info.Size
}

func (s *finalizedSet) remove(info FileInfo) {
	k := s.key(info)
	if elem := s.list.Get(k); elem != nil {
		old := elem.Value.(FileInfo)
		s.totalSize -= old.Size
		s.list.Remove(k)
	}
}

func (s *finalizedSet) len() int { return s.list.Len() }

func (s *finalizedSet) oldest() (FileInfo, bool) {
	elem := s.list.Front()
	if elem == nil {
		return FileInfo{}, false
	}
	return elem.Value.(FileInfo), true
}

// reconcile replaces the set's contents entirely with the given entries:
// entries no longer on disk are dropped, entries still present keep their
// freshly rescanned size.
func (s *finalizedSet) reconcile(entries []FileInfo) {
	seen := make(map[finalizedKey]struct{}, len(entries))
	for _, info := range entries {
		seen[s.key(info)] = struct{}{}
		s.upsert(info)
	}

	var stale []finalizedKey
	for elem := s.list.Front(); elem != nil; elem = elem.Next() {
		k := elem.Key().(finalizedKey)
		if _, ok := seen[k]; !ok {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		if elem := s.list.Get(k); elem != nil {
			old := elem.Value.(FileInfo)
			s.totalSize -= old.Size
		}
		s.list.Remove(k)
	}
}

func (s *finalizedSet) snapshot() FinalizedBacklog {
	backlog := FinalizedBacklog{
		Queue:     make([]FileInfo, 0, s.list.Len()),
		TotalSize: s.totalSize,
	}
	for elem := s.list.Front(); elem != nil; elem = elem.Next() {
		backlog.Queue = append(backlog.Queue, elem.Value.(FileInfo))
	}
	return backlog
}
