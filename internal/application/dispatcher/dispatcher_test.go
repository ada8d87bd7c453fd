package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coverdesk/approvalflow/internal/domain/event"
)

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := New()
	var order []string

	d.Subscribe(event.TypeSubjectApproved, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(event.TypeSubjectApproved, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	evt := event.New(event.TypeSubjectApproved, 1, "payment", nil)
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handler order = %v, want [first second]", order)
	}
}

func TestDispatch_ReturnsFirstHandlerError(t *testing.T) {
	d := New()
	boom := errors.New("boom")

	d.Subscribe(event.TypeSubjectRejected, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})

	err := d.Dispatch(context.Background(), event.New(event.TypeSubjectRejected, 1, "payment", nil))
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch() error = %v, want wrapped boom", err)
	}
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	d := New()

	d.Subscribe(event.TypeSubjectPaid, "panicking", func(ctx context.Context, evt *event.Event) error {
		panic("handler blew up")
	})

	err := d.Dispatch(context.Background(), event.New(event.TypeSubjectPaid, 1, "payment", nil))
	if err == nil {
		t.Fatal("Dispatch() must surface a recovered panic as an error")
	}
}

func TestDispatchAsync_CompletesBeforeClose(t *testing.T) {
	d := New()

	var mu sync.Mutex
	var seen []int64

	d.Subscribe(event.TypeSubjectVerified, "collector", func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		seen = append(seen, evt.SubjectID)
		mu.Unlock()
		return nil
	})

	for i := int64(1); i <= 5; i++ {
		d.DispatchAsync(context.Background(), event.New(event.TypeSubjectVerified, i, "64vb", nil))
	}

	// Close waits for in-flight async handlers.
	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 5 {
		t.Errorf("async handlers seen %d events, want 5", len(seen))
	}
}

func TestDispatchAsync_RacingCloseNeverOutlivesDrain(t *testing.T) {
	d := New()

	var inFlight atomic.Int64

	d.Subscribe(event.TypeSubjectApproved, "slow", func(ctx context.Context, evt *event.Event) error {
		inFlight.Add(1)
		defer inFlight.Add(-1)
		time.Sleep(time.Millisecond)
		return nil
	})

	// Hammer async dispatches while Close runs; accepted dispatches must be
	// fully drained by the time Close returns.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			d.DispatchAsync(context.Background(), event.New(event.TypeSubjectApproved, i, "payment", nil))
		}(int64(i))
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if n := inFlight.Load(); n != 0 {
		t.Errorf("%d handlers still running after Close() returned", n)
	}

	wg.Wait()
	if n := inFlight.Load(); n != 0 {
		t.Errorf("%d handlers running after all dispatches returned", n)
	}
}

func TestDispatch_AfterCloseFails(t *testing.T) {
	d := New()
	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := d.Dispatch(context.Background(), event.New(event.TypeStatusChanged, 1, "payment", nil)); err == nil {
		t.Error("Dispatch() after Close() must fail")
	}
	if err := d.Close(); err == nil {
		t.Error("second Close() must fail")
	}
}
