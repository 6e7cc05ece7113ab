package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordButtonPress(t *testing.T) {
	before := GetTotals().ButtonPresses
	counterBefore := testutil.ToFloat64(buttonPresses.WithLabelValues("test-source"))

	RecordButtonPress("test-source")
	RecordButtonPress("test-source")

	if got := GetTotals().ButtonPresses - before; got != 2 {
		t.Errorf("ButtonPresses delta = %d, want 2", got)
	}
	if got := testutil.ToFloat64(buttonPresses.WithLabelValues("test-source")) - counterBefore; got != 2 {
		t.Errorf("counter delta = %v, want 2", got)
	}
}

func TestRecordSnapshot(t *testing.T) {
	before := GetTotals()
	counterBefore := testutil.ToFloat64(snapshotsSaved)

	RecordSnapshot(20 * time.Millisecond)

	after := GetTotals()
	if after.Snapshots-before.Snapshots != 1 {
		t.Errorf("Snapshots delta = %d, want 1", after.Snapshots-before.Snapshots)
	}
	if after.LastSnapshotAt.IsZero() {
		t.Error("LastSnapshotAt not set")
	}
	if got := testutil.ToFloat64(snapshotsSaved) - counterBefore; got != 1 {
		t.Errorf("saved counter delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lastSnapshot); got == 0 {
		t.Error("last snapshot gauge not set")
	}
}

func TestRecordErrors(t *testing.T) {
	before := GetTotals()

	RecordGrabError()
	RecordEncodeError()
	RecordEncodeError()

	after := GetTotals()
	if after.GrabErrors-before.GrabErrors != 1 {
		t.Errorf("GrabErrors delta = %d, want 1", after.GrabErrors-before.GrabErrors)
	}
	if after.EncodeErrors-before.EncodeErrors != 2 {
		t.Errorf("EncodeErrors delta = %d, want 2", after.EncodeErrors-before.EncodeErrors)
	}
}

func TestSetStreaming(t *testing.T) {
	SetStreaming(true, 1920, 1080)
	if got := testutil.ToFloat64(streaming); got != 1 {
		t.Errorf("streaming = %v, want 1", got)
	}
	if got := testutil.ToFloat64(frameSize.WithLabelValues("width")); got != 1920 {
		t.Errorf("width = %v, want 1920", got)
	}

	SetStreaming(false, 0, 0)
	if got := testutil.ToFloat64(streaming); got != 0 {
		t.Errorf("streaming = %v, want 0", got)
	}
}

func TestTotalsConcurrentAccess(_ *testing.T) {
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				RecordButtonPress("concurrent")
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				_ = GetTotals()
			}
		}()
	}
	wg.Wait()
}
