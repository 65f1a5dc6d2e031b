package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/b-tok/asbplayer-linux/internal/executor"
	"github.com/b-tok/asbplayer-linux/internal/logging"
	"github.com/b-tok/asbplayer-linux/internal/wavfile"
)

var log = logging.L("recorder")

// ErrNoOutput means parecord ran but left no file or an empty one.
var ErrNoOutput = errors.New("recording produced no output")

const (
	DefaultStopGrace     = 2 * time.Second
	DefaultOverrunMargin = 5 * time.Second
)

// LaunchError is returned when parecord could not be started.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start recorder %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Capture is a finished recording on disk.
type Capture struct {
	Path    string
	Size    int64
	Format  wavfile.Format
	Raw     bool
	Elapsed time.Duration
	// Overrun is set when stopping took longer than duration + OverrunMargin.
	Overrun bool
	Stop    executor.State
}

// Session runs one recording at a time. Zero StopGrace and OverrunMargin
// fall back to DefaultStopGrace and DefaultOverrunMargin.
type Session struct {
	Spawner       executor.Spawner
	Clock         clockwork.Clock
	Parecord      string
	StopGrace     time.Duration
	OverrunMargin time.Duration
}

func (s *Session) clock() clockwork.Clock {
	if s.Clock == nil {
		return clockwork.NewRealClock()
	}
	return s.Clock
}

// Record runs plan for duration, then stops parecord: SIGTERM, StopGrace to
// exit, SIGKILL and an unbounded wait. The child is always reaped before
// Record returns. It returns early if parecord exits on its own or ctx ends.
func (s *Session) Record(ctx context.Context, plan Plan, duration time.Duration) (Capture, error) {
	if duration <= 0 {
		return Capture{}, fmt.Errorf("recorder: non-positive duration %v", duration)
	}
	bin := s.Parecord
	if bin == "" {
		bin = "parecord"
	}
	grace := s.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	margin := s.OverrunMargin
	if margin <= 0 {
		margin = DefaultOverrunMargin
	}
	clk := s.clock()

	log.Info("starting recording",
		"backend", plan.Name,
		logging.KeyHandle, string(plan.Handle),
		logging.KeyDurationMs, duration.Milliseconds(),
		"rate", plan.Format.SampleRate)

	start := clk.Now()
	child, err := executor.Start(s.Spawner, executor.Command{Name: bin, Args: plan.Args}, clk)
	if err != nil {
		return Capture{}, &LaunchError{Binary: bin, Err: err}
	}

	select {
	case <-child.Done():
		log.Warn("recorder exited before the requested duration", logging.KeyPID, child.Pid())
	case <-clk.After(duration):
	case <-ctx.Done():
		log.Warn("recording interrupted", logging.KeyError, ctx.Err())
	}

	state, waitErr := child.Stop(grace)
	if waitErr != nil {
		// parecord reports SIGTERM as a failure; the output decides.
		log.Debug("recorder wait result", logging.KeyPID, child.Pid(), "state", state, logging.KeyError, waitErr)
	}
	if executor.PidAlive(context.WithoutCancel(ctx), child.Pid()) {
		log.Warn("recorder pid still present after reaping", logging.KeyPID, child.Pid())
	}

	c := Capture{
		Path:    plan.Output,
		Format:  plan.Format,
		Raw:     plan.Raw,
		Elapsed: clk.Now().Sub(start),
		Stop:    state,
	}
	if c.Elapsed > duration+margin {
		c.Overrun = true
		log.Warn("recording took longer than expected", "elapsed", c.Elapsed, "limit", duration+margin)
	}

	info, err := os.Stat(plan.Output)
	if err != nil || info.Size() == 0 {
		log.Warn("recording produced no output", "path", plan.Output, "state", state)
		return c, ErrNoOutput
	}
	c.Size = info.Size()

	log.Info("recording finished", "bytes", c.Size, "state", state, "elapsed", c.Elapsed)
	return c, nil
}
