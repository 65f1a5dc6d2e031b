// Package streams finds the playback stream of a target application on the
// running sound server.
package streams

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/b-tok/asbplayer-linux/internal/logging"
)

var log = logging.L("streams")

// ErrNotFound is returned when no attempt found the target's stream.
var ErrNotFound = errors.New("target audio stream not found")

// Handle identifies a playback stream: a PipeWire object serial or node id,
// or a PulseAudio sink-input index.
type Handle string

// Finder performs one lookup attempt. ok is false when the listing succeeded
// but contained no matching stream.
type Finder interface {
	Find(ctx context.Context, target string) (h Handle, ok bool, err error)
}

const (
	DefaultAttempts = 5
	DefaultInterval = 200 * time.Millisecond
)

// Locator retries a Finder a bounded number of times.
type Locator struct {
	Attempts int
	Interval time.Duration
	Clock    clockwork.Clock
}

// Locate runs up to Attempts lookups, sleeping Interval between them but not
// after the last. Per-attempt errors are logged and retried.
func (l Locator) Locate(ctx context.Context, target string, f Finder) (Handle, error) {
	attempts := l.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	clk := l.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		h, ok, err := f.Find(ctx, target)
		switch {
		case err != nil:
			log.Debug("stream lookup failed", "attempt", attempt, "target", target, logging.KeyError, err)
		case ok:
			log.Info("found target stream", "attempt", attempt, "target", target, logging.KeyHandle, string(h))
			return h, nil
		default:
			log.Debug("target stream not listed", "attempt", attempt, "target", target)
		}

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, clk, l.Interval); err != nil {
			return "", fmt.Errorf("streams: locate %s: %w", target, err)
		}
	}
	return "", fmt.Errorf("streams: %s after %d attempts: %w", target, attempts, ErrNotFound)
}

func sleep(ctx context.Context, clk clockwork.Clock, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
