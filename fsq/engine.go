// Package fsq is a file-system-backed durable message queue: it durably
// records an outbound event stream into append-only files on local disk,
// finalizes those files by policy, and hands them to a user-supplied
// Processor in strict arrival order, with retry, backpressure and bounded
// disk usage.
package fsq

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/995933447/fsq/internal/logging"
)

// Engine is the queue's ingest path, current-file manager and processor
// loop. One Engine exclusively owns one working directory.
type Engine struct {
	cfg Config

	mu sync.Mutex
	// currentFileHandle is owned exclusively by the ingest path and is
	// never touched by the processor goroutine.
	currentFileHandle    File
	currentFileName      string
	currentFileTimestamp Timestamp
	appendedFileSize     int64

	finalized *finalizedSet

	destructing bool
	hasNewFile  chan struct{}
	shutdownCh  chan struct{}

	processorDone chan struct{}
}

// New constructs an Engine over cfg.WorkingDirectory, running the startup
// recovery scan before returning, and starts the processor thread.
func New(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	if cfg.WorkingDirectory == "" {
		return nil, newError(KindPolicyViolation, "new", errMissingWorkingDir)
	}

	e := &Engine{
		cfg:        cfg,
		finalized:  newFinalizedSet(),
		hasNewFile: make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
	}

	if cfg.Init != nil {
		if err := cfg.Init(e); err != nil {
			return nil, err
		}
	}

	if err := e.recover(); err != nil {
		return nil, err
	}

	// Recovery may have promoted orphaned current files straight into the
	// finalized backlog; wake the processor thread so it delivers them
	// without waiting for the next push or ForceProcessing call.
	e.signalNewFileLocked()

	e.processorDone = make(chan struct{})
	go e.processorLoop()

	return e, nil
}

var errMissingWorkingDir = errString("working directory is required")

type errString string

func (e errString) Error() string { return string(e) }

// ---- recovery ----

func (e *Engine) recover() error {
	names, err := e.cfg.FileSystem.ScanDir(e.cfg.WorkingDirectory)
	if err != nil {
		return newError(KindFilesystem, "recover.scan", err)
	}

	type currentCandidate struct {
		name string
		ts   Timestamp
		path string
	}

	var finalizedEntries []FileInfo
	var currents []currentCandidate

	for _, name := range names {
		kind, ts, ok := e.cfg.Naming.Parse(name)
		if !ok {
			continue
		}
		path := e.cfg.FileSystem.Join(e.cfg.WorkingDirectory, name)

		switch kind {
		case KindCurrent:
			currents = append(currents, currentCandidate{name: name, ts: ts, path: path})
		case KindFinalized:
			size, err := e.cfg.FileSystem.Size(path)
			if err != nil {
				return newError(KindFilesystem, "recover.stat_finalized", err)
			}
			finalizedEntries = append(finalizedEntries, FileInfo{
				Name:      name,
				FullPath:  path,
				Timestamp: ts,
				Size:      size,
			})
		}
	}

	// Only one current file is meant to exist at a time; if more than one
	// orphan is found (a genuine anomaly, e.g. a crash between finalize's
	// rename and a fresh open), the most recently timestamped one is
	// resumed for append and the rest are promoted straight to finalized —
	// only that one file actually represents the live current file this
	// engine would otherwise have kept open.
	var resume *currentCandidate
	for i := range currents {
		if resume == nil || currents[i].ts > resume.ts {
			resume = &currents[i]
		}
	}

	for i := range currents {
		c := currents[i]
		if resume != nil && c.name == resume.name {
			continue
		}
		finalizedName := e.cfg.Naming.GenerateFinalized(c.ts)
		finalizedPath := e.cfg.FileSystem.Join(e.cfg.WorkingDirectory, finalizedName)
		if err := e.cfg.FileSystem.Rename(c.path, finalizedPath); err != nil {
			return newError(KindFilesystem, "recover.promote_orphan", err)
		}
		size, err := e.cfg.FileSystem.Size(finalizedPath)
		if err != nil {
			return newError(KindFilesystem, "recover.stat_promoted", err)
		}
		finalizedEntries = append(finalizedEntries, FileInfo{
			Name:      finalizedName,
			FullPath:  finalizedPath,
			Timestamp: c.ts,
			Size:      size,
		})
	}

	if resume != nil {
		size, err := e.cfg.FileSystem.Size(resume.path)
		if err != nil {
			return newError(KindFilesystem, "recover.stat_resumed", err)
		}
		f, err := e.cfg.FileSystem.Create(resume.path)
		if err != nil {
			return newError(KindFilesystem, "recover.reopen_resumed", err)
		}
		e.currentFileHandle = f
		e.currentFileName = resume.name
		e.currentFileTimestamp = resume.ts
		e.appendedFileSize = size
	}

	for _, info := range finalizedEntries {
		e.finalized.upsert(info)
	}

	return nil
}

// ---- ingest path ----

// PushMessage durably appends msg to the current file, opening one if
// necessary, then evaluates FinalizePolicy and PurgePolicy.
func (e *Engine) PushMessage(msg []byte) error {
	e.mu.Lock()

	if e.destructing {
		e.mu.Unlock()
		if e.cfg.ThrowOnPushWhileShuttingDown {
			return ErrShuttingDown
		}
		return nil
	}

	now := e.cfg.Clock.Now()

	if e.currentFileHandle == nil {
		if err := e.openNewCurrentFileLocked(now); err != nil {
			e.mu.Unlock()
			return newError(KindFilesystem, "push_message.open_current", err)
		}
	}

	n, err := e.cfg.Append.Append(e.currentFileHandle, msg)
	if err != nil {
		e.mu.Unlock()
		return newError(KindFilesystem, "push_message.append", err)
	}
	e.appendedFileSize += int64(n)

	status := e.statusLocked()
	shouldFinalize := e.cfg.Finalize.ShouldFinalize(status, now)

	if shouldFinalize {
		if err := e.finalizeLocked(now); err != nil {
			e.mu.Unlock()
			return err
		}
	}

	e.purgeLocked()

	e.mu.Unlock()
	return nil
}

// openNewCurrentFileLocked opens a fresh current file and resets the
// ingest-side counters. Caller holds e.mu.
func (e *Engine) openNewCurrentFileLocked(now Timestamp) error {
	name := e.cfg.Naming.GenerateCurrent(now)
	path := e.cfg.FileSystem.Join(e.cfg.WorkingDirectory, name)

	f, err := e.cfg.FileSystem.Create(path)
	if err != nil {
		return err
	}

	e.currentFileHandle = f
	e.currentFileName = name
	e.currentFileTimestamp = now
	e.appendedFileSize = 0
	return nil
}

func (e *Engine) statusLocked() QueueStatus {
	return QueueStatus{
		AppendedFileSize:      e.appendedFileSize,
		AppendedFileTimestamp: e.currentFileTimestamp,
		Finalized:             e.finalized.snapshot(),
	}
}

// Status returns an immutable snapshot of the engine's current state,
// built under the engine mutex.
func (e *Engine) Status() QueueStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// ---- finalize ----

// finalizeLocked flushes, closes and renames the current file, then
// signals the processor thread. Caller holds e.mu.
func (e *Engine) finalizeLocked(now Timestamp) error {
	if e.currentFileHandle == nil {
		return nil
	}

	if err := e.currentFileHandle.Sync(); err != nil {
		return newError(KindFilesystem, "finalize.sync", err)
	}
	if err := e.currentFileHandle.Close(); err != nil {
		return newError(KindFilesystem, "finalize.close", err)
	}

	oldPath := e.cfg.FileSystem.Join(e.cfg.WorkingDirectory, e.currentFileName)
	finalizedName := e.cfg.Naming.GenerateFinalized(e.currentFileTimestamp)
	newPath := e.cfg.FileSystem.Join(e.cfg.WorkingDirectory, finalizedName)

	if err := e.cfg.FileSystem.Rename(oldPath, newPath); err != nil {
		// Current-file state is left as-is; the file is not acknowledged
		// as finalized.
		return newError(KindFilesystem, "finalize.rename", err)
	}

	e.finalized.upsert(FileInfo{
		Name:      finalizedName,
		FullPath:  newPath,
		Timestamp: e.currentFileTimestamp,
		Size:      e.appendedFileSize,
	})

	e.currentFileHandle = nil
	e.currentFileName = ""
	e.currentFileTimestamp = 0
	e.appendedFileSize = 0

	e.signalNewFileLocked()
	return nil
}

func (e *Engine) signalNewFileLocked() {
	select {
	case e.hasNewFile <- struct{}{}:
	default:
	}
	if resumer, ok := e.cfg.Retry.(interface{ NewFileArrived() }); ok {
		resumer.NewFileArrived()
	}
}

// ---- purge ----

// purgeLocked repeatedly deletes the oldest finalized file while
// PurgePolicy says to. Caller holds e.mu.
func (e *Engine) purgeLocked() {
	for e.cfg.Purge.ShouldPurgeOldest(e.statusLocked()) {
		oldest, ok := e.finalized.oldest()
		if !ok {
			return
		}
		if err := e.cfg.FileSystem.Remove(oldest.FullPath); err != nil {
			logging.Logger.Warn(nil, err)
			return
		}
		e.finalized.remove(oldest)
	}
}

// ---- external triggers ----

// ForceProcessing finalizes the current file if one is open, signals the
// processor thread, and clears any suspension so the next pass proceeds
// immediately. Repeated calls while the processor is busy coalesce onto
// the same signal: there is nothing to duplicate-deliver because the
// signal is a level, not an edge queue of unbounded depth.
func (e *Engine) ForceProcessing() error {
	e.mu.Lock()
	now := e.cfg.Clock.Now()
	var err error
	if e.currentFileHandle != nil {
		err = e.finalizeLocked(now)
	} else {
		e.signalNewFileLocked()
	}
	e.mu.Unlock()

	e.cfg.Retry.ForceResume()
	return err
}

// ForceResumeProcessing clears RetryPolicy's suspension and wakes the
// processor thread without finalizing anything.
func (e *Engine) ForceResumeProcessing() {
	e.cfg.Retry.ForceResume()
	e.mu.Lock()
	e.signalNewFileLocked()
	e.mu.Unlock()
}

// ---- processor thread ----

func (e *Engine) processorLoop() {
	defer close(e.processorDone)
	for {
		draining := e.isDestructing()
		if draining && !e.cfg.ProcessQueueToTheEndOnShutdown {
			return
		}

		if draining {
			// Draining mode: stop once the backlog is empty.
			if e.finalizedLen() == 0 {
				return
			}
		} else {
			e.waitForWork()
			if e.isDestructingWithoutDrain() {
				return
			}
			draining = e.isDestructing()
		}

		if err := e.rescan(); err != nil {
			logging.Logger.Error(nil, err)
			// Transient rescan error: back off briefly and retry rather
			// than terminate the loop.
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if e.finalizedLen() == 0 {
			if draining {
				return
			}
			continue
		}

		now := e.cfg.Clock.Now()
		if !e.cfg.Retry.ReadyToProcess(now) {
			if draining {
				// Draining should not spin forever waiting on a
				// suspended/backed-off retry policy; give the wake
				// timer/suspension one more loop.
				wake, hasWake := e.cfg.Retry.NextWake(now)
				if !hasWake {
					return
				}
				time.Sleep(time.Duration(wake-now) * time.Millisecond)
			}
			continue
		}

		info, ok := e.finalizedOldest()
		if !ok {
			continue
		}

		result := e.invokeProcessor(info, now)

		switch result {
		case Success:
			if err := e.cfg.FileSystem.Remove(info.FullPath); err != nil {
				logging.Logger.Error(nil, err)
			}
			e.finalizedRemove(info)
			e.cfg.Retry.OnSuccess(e.cfg.Clock.Now())
			e.wakeSelf()
		case SuccessAndMoved:
			e.finalizedRemove(info)
			e.cfg.Retry.OnSuccess(e.cfg.Clock.Now())
			e.wakeSelf()
		case FailureNeedRetry:
			e.cfg.Retry.OnFailureNeedRetry(e.cfg.Clock.Now())
			e.wakeSelf()
		case Unavailable:
			e.cfg.Retry.OnUnavailable(e.cfg.Clock.Now())
			if draining {
				return
			}
		}
	}
}

// wakeSelf re-triggers the wait step immediately instead of blocking, so a
// backlog with more than one entry drains within a single wake instead of
// needing one external signal per file. It is harmless to call when the
// backlog just emptied: the following iteration's rescan finds nothing and
// falls through to a real wait.
func (e *Engine) wakeSelf() {
	select {
	case e.hasNewFile <- struct{}{}:
	default:
	}
}

func (e *Engine) isDestructing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destructing
}

func (e *Engine) isDestructingWithoutDrain() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destructing && !e.cfg.ProcessQueueToTheEndOnShutdown
}

// finalizedLen, finalizedOldest and finalizedRemove let the processor
// thread touch the shared finalized set under the engine mutex, since it
// is read and written from both the ingest path and the processor thread.
func (e *Engine) finalizedLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalized.len()
}

func (e *Engine) finalizedOldest() (FileInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalized.oldest()
}

func (e *Engine) finalizedRemove(info FileInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finalized.remove(info)
}

// waitForWork blocks until a new finalized file is signaled, the retry
// timer elapses, or destruction is requested.
func (e *Engine) waitForWork() {
	now := e.cfg.Clock.Now()
	wake, hasWake := e.cfg.Retry.NextWake(now)

	if !hasWake {
		select {
		case <-e.hasNewFile:
		case <-e.shutdownCh:
		}
		return
	}

	timer := time.NewTimer(time.Duration(wake-now) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-e.hasNewFile:
	case <-timer.C:
	case <-e.shutdownCh:
	}
}

// rescan is the authoritative directory listing: it replaces the
// in-memory finalized set with what is actually on disk, which is what
// makes the engine crash-safe.
func (e *Engine) rescan() error {
	names, err := e.cfg.FileSystem.ScanDir(e.cfg.WorkingDirectory)
	if err != nil {
		return newError(KindFilesystem, "rescan.scan", err)
	}

	entries := make([]FileInfo, 0, len(names))
	for _, name := range names {
		kind, ts, ok := e.cfg.Naming.Parse(name)
		if !ok || kind != KindFinalized {
			continue
		}
		path := e.cfg.FileSystem.Join(e.cfg.WorkingDirectory, name)
		size, err := e.cfg.FileSystem.Size(path)
		if err != nil {
			// The file may have been removed between listing and stat
			// (e.g. a concurrent purge); drop the stale entry and move on.
			logging.Logger.Debug(nil, err)
			continue
		}
		entries = append(entries, FileInfo{Name: name, FullPath: path, Timestamp: ts, Size: size})
	}

	e.mu.Lock()
	e.finalized.reconcile(entries)
	e.mu.Unlock()
	return nil
}

// invokeProcessor calls the user Processor outside the engine mutex,
// recovering from a panic so a misbehaving processor degrades to a retry
// instead of taking down the processor goroutine.
func (e *Engine) invokeProcessor(info FileInfo, now Timestamp) (result FileProcessingResult) {
	result = FailureNeedRetry
	defer func() {
		if r := recover(); r != nil {
			logging.Logger.Error(nil, r)
			logging.Logger.Debug(nil, string(debug.Stack()))
			result = FailureNeedRetry
		}
	}()
	return e.cfg.Processor.OnFileReady(info, now)
}

// ---- shutdown ----

// Shutdown stops the ingest of new pushes as errors/no-ops (depending on
// config), closes the current file handle (leaving it on disk for the
// next startup's recovery scan), and joins or detaches the processor
// thread per DetachProcessingThreadOnTermination.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	if e.destructing {
		e.mu.Unlock()
		return nil
	}
	e.destructing = true

	var closeErr error
	if e.currentFileHandle != nil {
		if err := e.currentFileHandle.Sync(); err != nil {
			closeErr = err
		}
		if err := e.currentFileHandle.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
		e.currentFileHandle = nil
	}
	e.mu.Unlock()

	close(e.shutdownCh)
	select {
	case e.hasNewFile <- struct{}{}:
	default:
	}

	if e.cfg.DetachProcessingThreadOnTermination {
		return closeErr
	}

	<-e.processorDone
	return closeErr
}
