package fsq

import "testing"

func TestBacklogAwareFinalizeNoCurrentFile(t *testing.T) {
	p := BacklogAwareFinalize{RealtimeMaxSize: 20, RealtimeMaxAge: 10000}
	status := QueueStatus{}
	if p.ShouldFinalize(status, 100) {
		t.Fatal("expected no finalize with no open current file")
	}
}

func TestBacklogAwareFinalizeRealtimeSize(t *testing.T) {
	p := BacklogAwareFinalize{
		RealtimeMaxSize: 20, RealtimeMaxAge: 10000,
		BacklogMaxSize: 100, BacklogMaxAge: 60000,
	}
	status := QueueStatus{AppendedFileSize: 15, AppendedFileTimestamp: 101}
	if p.ShouldFinalize(status, 102) {
		t.Fatal("15 bytes should not cross a 20 byte threshold")
	}
	status.AppendedFileSize = 51
	if !p.ShouldFinalize(status, 103) {
		t.Fatal("51 bytes should cross a 20 byte realtime threshold")
	}
}

func TestBacklogAwareFinalizeRealtimeAge(t *testing.T) {
	p := BacklogAwareFinalize{RealtimeMaxSize: 20, RealtimeMaxAge: 10000, BacklogMaxSize: 100, BacklogMaxAge: 60000}
	status := QueueStatus{AppendedFileSize: 5, AppendedFileTimestamp: 10000}
	if p.ShouldFinalize(status, 20000) {
		t.Fatal("age exactly at threshold should not yet finalize (age > maxAge, not >=)")
	}
	if !p.ShouldFinalize(status, 21000) {
		t.Fatal("age past the realtime threshold should finalize")
	}
}

func TestBacklogAwareFinalizePrefersBacklogThresholdWhenBacklogNonEmpty(t *testing.T) {
	p := BacklogAwareFinalize{RealtimeMaxSize: 20, RealtimeMaxAge: 10000, BacklogMaxSize: 100, BacklogMaxAge: 60000}
	status := QueueStatus{
		AppendedFileSize:      30,
		AppendedFileTimestamp: 1,
		Finalized:             FinalizedBacklog{Queue: []FileInfo{{Name: "finalized-1.bin"}}},
	}
	// 30 bytes crosses the small realtime threshold but a backlog exists,
	// so only the larger backlog threshold applies.
	if p.ShouldFinalize(status, 1) {
		t.Fatal("expected realtime threshold to be ignored while a backlog exists")
	}
}

func TestFinalizeThresholdZeroAlwaysFinalizes(t *testing.T) {
	p := BacklogAwareFinalize{}
	status := QueueStatus{AppendedFileSize: 1, AppendedFileTimestamp: 1}
	if !p.ShouldFinalize(status, 1) {
		t.Fatal("a zero threshold is documented to finalize immediately")
	}
}
