package confirm

import (
	"context"
	"errors"
	"testing"
)

func TestConfirmWithoutRequestNeverRunsAction(t *testing.T) {
	var g Gate[string]
	calls := 0
	err := g.Confirm(context.Background(), func(context.Context, string) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrNothingPending) {
		t.Fatalf("expected ErrNothingPending, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("action ran %d times without confirmation", calls)
	}
}

func TestConfirmRunsOnceOnRecordedTarget(t *testing.T) {
	var g Gate[string]
	g.Request("doc-1")
	g.Request("doc-2")

	if target, ok := g.Pending(); !ok || target != "doc-2" {
		t.Fatalf("expected doc-2 pending, got %q %v", target, ok)
	}

	var got []string
	action := func(_ context.Context, target string) error {
		got = append(got, target)
		return nil
	}
	if err := g.Confirm(context.Background(), action); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := g.Confirm(context.Background(), action); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("second confirm should find nothing pending, got %v", err)
	}
	if len(got) != 1 || got[0] != "doc-2" {
		t.Fatalf("unexpected calls %v", got)
	}
}

func TestCancelClearsTarget(t *testing.T) {
	var g Gate[int]
	g.Request(5)
	g.Cancel()
	if _, ok := g.Pending(); ok {
		t.Fatal("expected nothing pending after cancel")
	}
}

func TestInFlightReleasesOnFailure(t *testing.T) {
	var f InFlight
	boom := errors.New("boom")

	err := f.Run(context.Background(), func(context.Context) error {
		if !f.Busy() {
			t.Error("flag must be set during the call")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if f.Busy() {
		t.Fatal("flag must be cleared after failure")
	}
}

func TestInFlightReleasesOnPanic(t *testing.T) {
	var f InFlight
	func() {
		defer func() { recover() }()
		f.Run(context.Background(), func(context.Context) error { panic("x") })
	}()
	if f.Busy() {
		t.Fatal("flag must be cleared after panic")
	}
}

func TestInFlightRejectsReentry(t *testing.T) {
	var f InFlight
	inner := 0
	err := f.Run(context.Background(), func(ctx context.Context) error {
		return f.Run(ctx, func(context.Context) error {
			inner++
			return nil
		})
	})
	if !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	if inner != 0 {
		t.Fatal("nested submission must not run")
	}
}
