package soundserver

import (
	"context"
	"fmt"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/config"
	"github.com/b-tok/asbplayer-linux/internal/executor"
	"github.com/b-tok/asbplayer-linux/internal/logging"
	"github.com/b-tok/asbplayer-linux/internal/svcquery"
)

var log = logging.L("soundserver")

// ServiceChecker reports whether a service unit is active.
type ServiceChecker interface {
	IsRunning(ctx context.Context, name string) (bool, error)
}

// Detector picks the active sound server. It never fails: when nothing
// answers it falls back to PipeWire so capture is still attempted.
type Detector struct {
	Services     ServiceChecker
	Runner       executor.Runner
	PrimaryUnit  string
	PulseAudio   string
	ProbeTimeout time.Duration
}

// NewDetector builds a Detector from config, probing the user's systemd
// instance for the primary unit.
func NewDetector(cfg *config.Config, runner executor.Runner) *Detector {
	return &Detector{
		Services: svcquery.Querier{
			Runner:    runner,
			Systemctl: cfg.Tools.Systemctl,
			User:      true,
			Timeout:   cfg.ProbeTimeout,
		},
		Runner:       runner,
		PrimaryUnit:  cfg.PrimaryUnit,
		PulseAudio:   cfg.Tools.PulseAudio,
		ProbeTimeout: cfg.ProbeTimeout,
	}
}

// Detect probes the primary server's unit, then the legacy server's own
// health check, and defaults to PipeWire.
func (d *Detector) Detect(ctx context.Context) Kind {
	if d.probe(ctx, "primary", d.primaryActive) {
		log.Debug("detected sound server", logging.KeyKind, PipeWire)
		return PipeWire
	}
	if d.probe(ctx, "legacy", d.legacyHealthy) {
		log.Debug("detected sound server", logging.KeyKind, PulseAudio)
		return PulseAudio
	}
	log.Info("no supported sound server detected, defaulting", logging.KeyKind, PipeWire)
	return PipeWire
}

// probe runs fn and converts errors and panics into "not detected".
func (d *Detector) probe(ctx context.Context, name string, fn func(context.Context) (bool, error)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in sound server probe", "probe", name, logging.KeyError, r)
			ok = false
		}
	}()

	ok, err := fn(ctx)
	if err != nil {
		log.Debug("sound server probe failed", "probe", name, logging.KeyError, err)
		return false
	}
	return ok
}

func (d *Detector) primaryActive(ctx context.Context) (bool, error) {
	if d.Services == nil {
		return false, fmt.Errorf("no service checker configured")
	}
	unit := d.PrimaryUnit
	if unit == "" {
		unit = string(PipeWire)
	}
	return d.Services.IsRunning(ctx, unit)
}

func (d *Detector) legacyHealthy(ctx context.Context) (bool, error) {
	if d.Runner == nil {
		return false, fmt.Errorf("no runner configured")
	}
	bin := d.PulseAudio
	if bin == "" {
		bin = "pulseaudio"
	}
	result, err := d.Runner.Run(ctx, executor.Command{
		Name:    bin,
		Args:    []string{"--check"},
		Timeout: d.ProbeTimeout,
	})
	if err != nil {
		return false, err
	}
	return result.Success(), nil
}
