package fsq

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitDelivery blocks until n FileInfos arrive on ch or the timeout elapses.
func waitDelivery(t *testing.T, ch <-chan FileInfo, n int) []FileInfo {
	t.Helper()
	got := make([]FileInfo, 0, n)
	for i := 0; i < n; i++ {
		select {
		case info := <-ch:
			got = append(got, info)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d/%d", i+1, n)
		}
	}
	return got
}

func readAndExpectGone(t *testing.T, dir, name string) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be deleted after Success, stat err = %v", name, err)
	}
}

// readFileNow reads info.FullPath synchronously, before the caller returns
// a result that might cause the engine to delete or move it.
func readFileNow(t *testing.T, info FileInfo) []byte {
	t.Helper()
	data, err := os.ReadFile(info.FullPath)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// Scenario 1: FinalizedBySize.
func TestScenarioFinalizedBySize(t *testing.T) {
	dir := t.TempDir()
	clock := NewManualClock(101)
	delivered := make(chan FileInfo, 8)
	contents := make(chan []byte, 8)

	e, err := New(Config{
		WorkingDirectory: dir,
		Clock:            clock,
		Append:           NewSeparatorAppend(nil),
		Finalize: BacklogAwareFinalize{
			RealtimeMaxSize: 20, RealtimeMaxAge: 10000,
			BacklogMaxSize: 100, BacklogMaxAge: 60000,
		},
		Processor: ProcessorFunc(func(info FileInfo, now Timestamp) FileProcessingResult {
			contents <- readFileNow(t, info)
			delivered <- info
			return Success
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	if err := e.PushMessage([]byte("this is")); err != nil {
		t.Fatal(err)
	}
	clock.Set(102)
	if err := e.PushMessage([]byte("a test")); err != nil {
		t.Fatal(err)
	}

	select {
	case info := <-delivered:
		t.Fatalf("unexpected early delivery: %+v", info)
	case <-time.After(100 * time.Millisecond):
	}

	clock.Set(103)
	if err := e.PushMessage([]byte("now go ahead and process this stuff")); err != nil {
		t.Fatal(err)
	}

	got := waitDelivery(t, delivered, 1)
	if got[0].Name != "finalized-00000000000000000101.bin" {
		t.Fatalf("unexpected name: %s", got[0].Name)
	}
	if want, have := "this is\na test\nnow go ahead and process this stuff\n", string(<-contents); have != want {
		t.Fatalf("unexpected contents: %q, want %q", have, want)
	}

	select {
	case extra := <-delivered:
		t.Fatalf("unexpected extra delivery: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

// Scenario 2: FinalizedByAge.
func TestScenarioFinalizedByAge(t *testing.T) {
	dir := t.TempDir()
	clock := NewManualClock(10000)
	delivered := make(chan FileInfo, 8)
	contents := make(chan []byte, 8)

	e, err := New(Config{
		WorkingDirectory: dir,
		Clock:            clock,
		Append:           NewSeparatorAppend(nil),
		Finalize: BacklogAwareFinalize{
			RealtimeMaxSize: 20, RealtimeMaxAge: 10000,
			BacklogMaxSize: 100, BacklogMaxAge: 60000,
		},
		Processor: ProcessorFunc(func(info FileInfo, now Timestamp) FileProcessingResult {
			contents <- readFileNow(t, info)
			delivered <- info
			return Success
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	if err := e.PushMessage([]byte("this too")); err != nil {
		t.Fatal(err)
	}
	clock.Set(10001)
	if err := e.PushMessage([]byte("shall")); err != nil {
		t.Fatal(err)
	}
	clock.Set(21000)
	if err := e.PushMessage([]byte("pass")); err != nil {
		t.Fatal(err)
	}

	got := waitDelivery(t, delivered, 1)
	if got[0].Name != "finalized-00000000000000010000.bin" {
		t.Fatalf("unexpected name: %s", got[0].Name)
	}
	if want, have := "this too\nshall\npass\n", string(<-contents); have != want {
		t.Fatalf("unexpected contents: %q, want %q", have, want)
	}
}

// Scenario 3: ForceProcessing.
func TestScenarioForceProcessing(t *testing.T) {
	dir := t.TempDir()
	clock := NewManualClock(1001)
	delivered := make(chan FileInfo, 8)
	contents := make(chan []byte, 8)

	e, err := New(Config{
		WorkingDirectory: dir,
		Clock:            clock,
		Append:           NewSeparatorAppend(nil),
		Finalize: BacklogAwareFinalize{
			RealtimeMaxSize: 1 << 20, RealtimeMaxAge: 1_000_000,
			BacklogMaxSize: 1 << 20, BacklogMaxAge: 1_000_000,
		},
		Processor: ProcessorFunc(func(info FileInfo, now Timestamp) FileProcessingResult {
			contents <- readFileNow(t, info)
			delivered <- info
			return Success
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	for i, msg := range []string{"foo", "bar", "baz"} {
		clock.Set(Timestamp(1001 + i))
		if err := e.PushMessage([]byte(msg)); err != nil {
			t.Fatal(err)
		}
	}

	if err := e.ForceProcessing(); err != nil {
		t.Fatal(err)
	}

	got := waitDelivery(t, delivered, 1)
	if got[0].Name != "finalized-00000000000000001001.bin" {
		t.Fatalf("unexpected name: %s", got[0].Name)
	}
	if want, have := "foo\nbar\nbaz\n", string(<-contents); have != want {
		t.Fatalf("unexpected contents: %q, want %q", have, want)
	}
}

// Scenario 4: ResumesOrphanedCurrent.
func TestScenarioResumesOrphanedCurrent(t *testing.T) {
	dir := t.TempDir()
	naming := DefaultNaming{}
	if err := os.WriteFile(filepath.Join(dir, naming.GenerateCurrent(1)), []byte("meh\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	clock := NewManualClock(1)
	delivered := make(chan FileInfo, 8)
	contents := make(chan []byte, 8)

	e, err := New(Config{
		WorkingDirectory: dir,
		Clock:            clock,
		Append:           NewSeparatorAppend(nil),
		Finalize: BacklogAwareFinalize{
			RealtimeMaxSize: 1 << 20, RealtimeMaxAge: 1_000_000,
			BacklogMaxSize: 1 << 20, BacklogMaxAge: 1_000_000,
		},
		Processor: ProcessorFunc(func(info FileInfo, now Timestamp) FileProcessingResult {
			contents <- readFileNow(t, info)
			delivered <- info
			return Success
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	if err := e.PushMessage([]byte("wow")); err != nil {
		t.Fatal(err)
	}
	if err := e.ForceProcessing(); err != nil {
		t.Fatal(err)
	}

	got := waitDelivery(t, delivered, 1)
	if got[0].Name != "finalized-00000000000000000001.bin" {
		t.Fatalf("unexpected name: %s", got[0].Name)
	}
	if want, have := "meh\nwow\n", string(<-contents); have != want {
		t.Fatalf("unexpected contents: %q, want %q", have, want)
	}
}

// Scenario 5: MultipleOrphansPromotedInOrder.
func TestScenarioMultipleOrphansPromotedInOrder(t *testing.T) {
	dir := t.TempDir()
	naming := DefaultNaming{}
	seed := map[Timestamp]string{1: "one\n", 2: "two\n", 3: "three\n"}
	for ts, content := range seed {
		if err := os.WriteFile(filepath.Join(dir, naming.GenerateCurrent(ts)), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	clock := NewManualClock(1)
	delivered := make(chan FileInfo, 8)
	contents := make(chan []byte, 8)

	e, err := New(Config{
		WorkingDirectory: dir,
		Clock:            clock,
		Append:           NewSeparatorAppend(nil),
		Finalize: BacklogAwareFinalize{
			RealtimeMaxSize: 1 << 20, RealtimeMaxAge: 1_000_000,
			BacklogMaxSize: 1 << 20, BacklogMaxAge: 1_000_000,
		},
		Processor: ProcessorFunc(func(info FileInfo, now Timestamp) FileProcessingResult {
			contents <- readFileNow(t, info)
			delivered <- info
			return Success
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	first := waitDelivery(t, delivered, 2)
	if first[0].Name != "finalized-00000000000000000001.bin" || first[1].Name != "finalized-00000000000000000002.bin" {
		t.Fatalf("expected 001 then 002, got %s then %s", first[0].Name, first[1].Name)
	}
	if want, have := "one\n", string(<-contents); have != want {
		t.Fatalf("unexpected contents for 001: %q, want %q", have, want)
	}
	if want, have := "two\n", string(<-contents); have != want {
		t.Fatalf("unexpected contents for 002: %q, want %q", have, want)
	}

	clock.Set(4)
	if err := e.PushMessage([]byte("four")); err != nil {
		t.Fatal(err)
	}
	if err := e.ForceProcessing(); err != nil {
		t.Fatal(err)
	}

	third := waitDelivery(t, delivered, 1)
	if third[0].Name != "finalized-00000000000000000003.bin" {
		t.Fatalf("unexpected name: %s", third[0].Name)
	}
	if want, have := "three\nfour\n", string(<-contents); have != want {
		t.Fatalf("unexpected contents for 003: %q, want %q", have, want)
	}

	readAndExpectGone(t, dir, third[0].Name)
}

// Scenario 6: RetryLatency (scaled down to a single worker demonstrating
// that OnFailureNeedRetry actually delays the next attempt rather than
// spinning immediately).
func TestScenarioRetryLatency(t *testing.T) {
	dir := t.TempDir()

	var attempts int
	delivered := make(chan FileInfo, 1)
	attemptTimes := make(chan time.Time, 8)

	// Uses the real SystemClock (the zero value's default): RetryPolicy
	// readiness is a function of wall-clock elapsed time, so a frozen
	// ManualClock would never let a scheduled retry become ready.
	e, err := New(Config{
		WorkingDirectory: dir,
		Append:           NewSeparatorAppend(nil),
		Finalize: BacklogAwareFinalize{
			RealtimeMaxSize: 0, RealtimeMaxAge: 0,
		},
		Retry: NewExponentialBackoff(30, 30, 30),
		Processor: ProcessorFunc(func(info FileInfo, now Timestamp) FileProcessingResult {
			attemptTimes <- time.Now()
			attempts++
			if attempts <= 3 {
				return FailureNeedRetry
			}
			delivered <- info
			return Success
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	if err := e.PushMessage([]byte("payload")); err != nil {
		t.Fatal(err)
	}

	var times []time.Time
	for i := 0; i < 4; i++ {
		select {
		case ts := <-attemptTimes:
			times = append(times, ts)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for attempt %d/4", i+1)
		}
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for eventual Success")
	}

	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap < 20*time.Millisecond {
			t.Fatalf("attempt %d followed attempt %d after only %s, expected the retry backoff to apply", i+1, i, gap)
		}
	}
}
