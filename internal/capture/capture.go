// Package capture turns a record request into a base64 WAV or a failure
// reason, hiding which sound server did the work.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/b-tok/asbplayer-linux/internal/config"
	"github.com/b-tok/asbplayer-linux/internal/executor"
	"github.com/b-tok/asbplayer-linux/internal/health"
	"github.com/b-tok/asbplayer-linux/internal/logging"
	"github.com/b-tok/asbplayer-linux/internal/recorder"
	"github.com/b-tok/asbplayer-linux/internal/soundserver"
	"github.com/b-tok/asbplayer-linux/internal/streams"
)

var log = logging.L("capture")

// FormatWAV is the only container produced.
const FormatWAV = "wav"

// Stage names reported to the health monitor.
const (
	StageServer   = "soundserver"
	StageStream   = "stream"
	StageRecorder = "recorder"
)

// Request asks for Duration of audio from Target.
type Request struct {
	Target   string
	Duration time.Duration
	// WantCompressed is accepted for compatibility and ignored.
	WantCompressed bool
}

// Result is either a success carrying AudioBase64 or a failure carrying
// Reason.
type Result struct {
	AudioBase64 string
	Format      string
	Reason      string
}

// OK reports whether the capture succeeded.
func (r Result) OK() bool { return r.Reason == "" }

func succeeded(audio []byte) Result {
	return Result{AudioBase64: base64.StdEncoding.EncodeToString(audio), Format: FormatWAV}
}

func failed(reason string) Result {
	if reason == "" {
		reason = "Audio recording failed"
	}
	return Result{Reason: reason}
}

// Detector reports the active sound server.
type Detector interface {
	Detect(ctx context.Context) soundserver.Kind
}

// Orchestrator runs one capture at a time.
type Orchestrator struct {
	Detector Detector
	Backends map[soundserver.Kind]Backend
	// DisplayName is the target's user-facing name in failure messages.
	DisplayName string
	TempDir     string
	// Health, when set, records the outcome of each stage.
	Health *health.Monitor
}

// New wires the orchestrator and both backends from config.
func New(cfg *config.Config, runner executor.Runner, spawner executor.Spawner, clk clockwork.Clock) *Orchestrator {
	locator := streams.Locator{
		Attempts: cfg.LocateAttempts,
		Interval: cfg.LocateInterval,
		Clock:    clk,
	}
	session := &recorder.Session{
		Spawner:       spawner,
		Clock:         clk,
		Parecord:      cfg.Tools.Parecord,
		StopGrace:     cfg.StopGrace,
		OverrunMargin: cfg.OverrunMargin,
	}
	return &Orchestrator{
		Detector: soundserver.NewDetector(cfg, runner),
		Backends: map[soundserver.Kind]Backend{
			soundserver.PipeWire: &pipewireBackend{
				locator:  locator,
				finder:   streams.PipeWireFinder{Runner: runner, PWDump: cfg.Tools.PWDump, Timeout: cfg.ProbeTimeout},
				recorder: session,
			},
			soundserver.PulseAudio: &pulseaudioBackend{
				locator:  locator,
				finder:   streams.PulseAudioFinder{Runner: runner, Pactl: cfg.Tools.Pactl, Timeout: cfg.ProbeTimeout},
				recorder: session,
			},
		},
		DisplayName: cfg.TargetDisplayName,
		TempDir:     cfg.TempDir,
	}
}

// NotFoundReason is the failure shown when the target has no audio stream.
func NotFoundReason(displayName string) string {
	return strings.ReplaceAll("Could not find target audio stream. Make sure target is playing audio.", "target", displayName)
}

// Capture never returns an error and never panics; every problem becomes a
// failed Result. Scratch files are gone when it returns.
func (o *Orchestrator) Capture(ctx context.Context, req Request) (res Result) {
	logger := logging.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during capture", logging.KeyError, r)
			res = failed(fmt.Sprintf("internal error: %v", r))
		}
	}()

	if req.Duration <= 0 {
		return failed(fmt.Sprintf("invalid duration %v", req.Duration))
	}
	if req.WantCompressed {
		logger.Info("compressed output requested, returning wav")
	}

	kind := o.Detector.Detect(ctx)
	backend, ok := o.Backends[kind]
	if !ok {
		return failed(fmt.Sprintf("no capture backend for %s", kind))
	}
	logger = logger.With(logging.KeyKind, kind.String())
	o.Health.Update(StageServer, health.Healthy, kind.String())

	handle, err := backend.Locate(ctx, req.Target)
	if err != nil {
		logger.Warn("target stream not found", "target", req.Target, logging.KeyError, err)
		if errors.Is(err, streams.ErrNotFound) {
			o.Health.Update(StageStream, health.Degraded, "not playing")
			return failed(NotFoundReason(o.displayName(req.Target)))
		}
		o.Health.Update(StageStream, health.Unhealthy, err.Error())
		return failed(err.Error())
	}
	o.Health.Update(StageStream, health.Healthy, string(handle))

	scratch, err := NewScratch(o.TempDir)
	if err != nil {
		logger.Error("cannot allocate scratch file", logging.KeyError, err)
		return failed(err.Error())
	}
	defer scratch.Release()

	path, err := backend.Record(ctx, handle, scratch, req.Duration)
	if err != nil {
		logger.Error("recording failed", logging.KeyHandle, string(handle), logging.KeyError, err)
		o.Health.Update(StageRecorder, health.Unhealthy, err.Error())
		return failed(err.Error())
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		logger.Error("cannot read recording", "path", path, logging.KeyError, err)
		return failed(fmt.Sprintf("failed to read recording: %v", err))
	}
	o.Health.Update(StageRecorder, health.Healthy, fmt.Sprintf("%d bytes", len(audio)))
	logger.Info("capture complete", "bytes", len(audio), logging.KeyDurationMs, req.Duration.Milliseconds())
	return succeeded(audio)
}

func (o *Orchestrator) displayName(target string) string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return target
}
