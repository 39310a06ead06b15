package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/core"
	"rewards/internal/records/memory"
)

func sampleTable() core.Table {
	return core.Table{
		core.NewEntry(core.NewDate(2025, 12, 22), "Jacqueline", "Swimming", ""),
		core.NewEntry(core.NewDate(2025, 12, 23), "Cheryl", "Other", "stairs"),
	}
}

func TestHandleTableChanged_MirrorsPrimary(t *testing.T) {
	primary := memory.NewWith(sampleTable())
	mirror := memory.New()
	w := NewMirrorWorker(primary, mirror)

	if err := w.HandleTableChanged(context.Background(), amqp.NewTableChangedMessage(amqp.ReasonRecorded, 2)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got := mirror.Load(context.Background())
	if !got.Ok() || len(got.Table) != 2 || got.Table[1] != sampleTable()[1] {
		t.Fatalf("unexpected mirror %+v", got)
	}
	if _, n := w.LastSync(); n != 1 {
		t.Errorf("syncs = %d, want 1", n)
	}
}

func TestSync_SkipsUnchangedUnlessForced(t *testing.T) {
	primary := memory.NewWith(sampleTable())
	mirror := memory.New()
	w := NewMirrorWorker(primary, mirror)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := w.Sync(ctx, "periodic", false); err != nil {
			t.Fatalf("sync: %v", err)
		}
	}
	if mirror.Saves() != 1 {
		t.Errorf("mirror saves = %d, want 1", mirror.Saves())
	}

	if err := w.StartupSync(ctx); err != nil {
		t.Fatalf("startup sync: %v", err)
	}
	if mirror.Saves() != 2 {
		t.Errorf("mirror saves = %d, want 2 after forced sync", mirror.Saves())
	}

	// A reset is a change and must reach the mirror.
	primary.Save(ctx, core.Table{})
	if err := w.HandleTableChanged(ctx, amqp.NewTableChangedMessage(amqp.ReasonReset, 0)); err != nil {
		t.Fatalf("handle reset: %v", err)
	}
	if got := mirror.Load(ctx); !got.Ok() || len(got.Table) != 0 {
		t.Fatalf("mirror after reset %+v", got)
	}
}

func TestSync_DoesNotMirrorMissingOrUnreadable(t *testing.T) {
	ctx := context.Background()
	mirror := memory.NewWith(sampleTable())

	w := NewMirrorWorker(memory.New(), mirror)
	if err := w.StartupSync(ctx); err != nil {
		t.Fatalf("missing primary: %v", err)
	}

	broken := memory.New()
	broken.FailLoad = errors.New("garbled")
	w = NewMirrorWorker(broken, mirror)
	if err := w.StartupSync(ctx); err != nil {
		t.Fatalf("unreadable primary: %v", err)
	}

	if mirror.Saves() != 0 || len(mirror.Load(ctx).Table) != 2 {
		t.Fatal("mirror must keep its previous contents")
	}
}

func TestSync_MirrorFailureIsReturned(t *testing.T) {
	mirror := memory.New()
	mirror.FailSave = errors.New("quota exceeded")
	w := NewMirrorWorker(memory.NewWith(sampleTable()), mirror)

	if err := w.Sync(context.Background(), "test", false); err == nil {
		t.Fatal("expected error")
	}

	// The failed table is retried on the next call.
	mirror.FailSave = nil
	if err := w.Sync(context.Background(), "test", false); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if mirror.Saves() != 1 {
		t.Errorf("mirror saves = %d, want 1", mirror.Saves())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	primary := memory.NewWith(sampleTable())
	mirror := memory.New()
	w := NewMirrorWorker(primary, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for mirror.Saves() == 0 {
		select {
		case <-deadline:
			t.Fatal("periodic sync never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
