package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/logging"
)

// Validate checks the config for invalid values and returns all errors found.
// Values that would break the capture loop are clamped to safe bounds; the
// returned errors are logged as warnings and never prevent startup.
func (c *Config) Validate() []error {
	var errs []error
	def := Default()

	if strings.TrimSpace(c.TargetApp) == "" {
		errs = append(errs, fmt.Errorf("target_app is empty, using %q", def.TargetApp))
		c.TargetApp = def.TargetApp
	}
	if strings.TrimSpace(c.TargetDisplayName) == "" {
		c.TargetDisplayName = c.TargetApp
	}

	if c.DefaultDuration <= 0 {
		errs = append(errs, fmt.Errorf("default_duration %s is not positive, using %s", c.DefaultDuration, def.DefaultDuration))
		c.DefaultDuration = def.DefaultDuration
	}

	if c.LocateAttempts < 1 {
		errs = append(errs, fmt.Errorf("locate_attempts %d is below minimum 1, clamping", c.LocateAttempts))
		c.LocateAttempts = 1
	} else if c.LocateAttempts > 50 {
		errs = append(errs, fmt.Errorf("locate_attempts %d exceeds maximum 50, clamping", c.LocateAttempts))
		c.LocateAttempts = 50
	}

	errs = clampDuration(errs, "locate_interval", &c.LocateInterval, 0, 10*time.Second)
	errs = clampDuration(errs, "probe_timeout", &c.ProbeTimeout, 100*time.Millisecond, time.Minute)
	errs = clampDuration(errs, "stop_grace", &c.StopGrace, 100*time.Millisecond, 30*time.Second)
	errs = clampDuration(errs, "overrun_margin", &c.OverrunMargin, 0, 10*time.Minute)

	if c.StaleScratchAge < 0 {
		errs = append(errs, fmt.Errorf("stale_scratch_age %s is negative, disabling sweep", c.StaleScratchAge))
		c.StaleScratchAge = 0
	}

	if strings.TrimSpace(c.PrimaryUnit) == "" {
		errs = append(errs, fmt.Errorf("primary_unit is empty, using %q", def.PrimaryUnit))
		c.PrimaryUnit = def.PrimaryUnit
	}

	tools := []struct {
		key   string
		value *string
		def   string
	}{
		{"tools.systemctl", &c.Tools.Systemctl, def.Tools.Systemctl},
		{"tools.pulseaudio", &c.Tools.PulseAudio, def.Tools.PulseAudio},
		{"tools.pw_dump", &c.Tools.PWDump, def.Tools.PWDump},
		{"tools.pactl", &c.Tools.Pactl, def.Tools.Pactl},
		{"tools.parecord", &c.Tools.Parecord, def.Tools.Parecord},
	}
	for _, tool := range tools {
		if strings.TrimSpace(*tool.value) == "" {
			errs = append(errs, fmt.Errorf("%s is empty, using %q", tool.key, tool.def))
			*tool.value = tool.def
		}
	}

	if c.LogLevel != "" && !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}

func clampDuration(errs []error, key string, d *time.Duration, lo, hi time.Duration) []error {
	if *d < lo {
		errs = append(errs, fmt.Errorf("%s %s is below minimum %s, clamping", key, *d, lo))
		*d = lo
	} else if *d > hi {
		errs = append(errs, fmt.Errorf("%s %s exceeds maximum %s, clamping", key, *d, hi))
		*d = hi
	}
	return errs
}
