package streams

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// scriptedFinder answers "not listed" until attempt foundOn (1-based).
type scriptedFinder struct {
	foundOn int
	failAll bool
	calls   int
}

func (f *scriptedFinder) Find(_ context.Context, _ string) (Handle, bool, error) {
	f.calls++
	if f.failAll {
		return "", false, errors.New("pw-dump exited 1")
	}
	if f.foundOn > 0 && f.calls >= f.foundOn {
		return "42", true, nil
	}
	return "", false, nil
}

// locateStepping runs Locate against a fake clock, advancing it by step each
// time the locator waits. It returns the number of waits.
func locateStepping(t *testing.T, l Locator, f Finder, step time.Duration) (Handle, int, error) {
	t.Helper()
	clk := clockwork.NewFakeClock()
	l.Clock = clk

	type located struct {
		h   Handle
		err error
	}
	done := make(chan located, 1)
	go func() {
		h, err := l.Locate(context.Background(), "firefox", f)
		done <- located{h, err}
	}()

	deadline := time.After(10 * time.Second)
	waits := 0
	for {
		select {
		case r := <-done:
			return r.h, waits, r.err
		case <-deadline:
			t.Fatal("Locate did not finish")
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := clk.BlockUntilContext(ctx, 1)
		cancel()
		if err == nil {
			clk.Advance(step)
			waits++
		}
	}
}

func TestLocateFoundOnThirdAttempt(t *testing.T) {
	f := &scriptedFinder{foundOn: 3}
	l := Locator{Attempts: 5, Interval: 200 * time.Millisecond}

	h, waits, err := locateStepping(t, l, f, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if h != "42" {
		t.Fatalf("handle = %q, want 42", h)
	}
	if f.calls != 3 {
		t.Fatalf("attempts = %d, want 3", f.calls)
	}
	if waits != 2 {
		t.Fatalf("waits = %d, want 2", waits)
	}
}

func TestLocateExhaustsAttempts(t *testing.T) {
	for _, failAll := range []bool{false, true} {
		f := &scriptedFinder{failAll: failAll}
		l := Locator{Attempts: 5, Interval: 200 * time.Millisecond}

		// Advancing by exactly the interval only releases a wait of at most 200ms.
		_, waits, err := locateStepping(t, l, f, 200*time.Millisecond)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("failAll=%v: err = %v, want ErrNotFound", failAll, err)
		}
		if f.calls != 5 {
			t.Fatalf("failAll=%v: attempts = %d, want 5", failAll, f.calls)
		}
		if waits != 4 {
			t.Fatalf("failAll=%v: waits = %d, want 4", failAll, waits)
		}
	}
}

func TestLocateWaitsFullInterval(t *testing.T) {
	clk := clockwork.NewFakeClock()
	f := &scriptedFinder{foundOn: 2}
	l := Locator{Attempts: 5, Interval: 200 * time.Millisecond, Clock: clk}

	done := make(chan error, 1)
	go func() {
		_, err := l.Locate(context.Background(), "firefox", f)
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := clk.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("locator never waited: %v", err)
	}
	clk.Advance(199 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Locate returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	clk.Advance(time.Millisecond)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Locate did not resume after the interval")
	}
}

func TestLocateStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &scriptedFinder{}
	_, err := Locator{Attempts: 5, Interval: time.Hour}.Locate(ctx, "firefox", f)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if f.calls != 1 {
		t.Fatalf("attempts = %d, want 1", f.calls)
	}
}
