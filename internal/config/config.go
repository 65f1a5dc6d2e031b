package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName names the config directory, log directory and env prefix.
const AppName = "asbplayer-audio-host"

type Config struct {
	TargetApp         string        `mapstructure:"target_app" yaml:"target_app"`
	TargetDisplayName string        `mapstructure:"target_display_name" yaml:"target_display_name"`
	DefaultDuration   time.Duration `mapstructure:"default_duration" yaml:"default_duration"`

	LocateAttempts int           `mapstructure:"locate_attempts" yaml:"locate_attempts"`
	LocateInterval time.Duration `mapstructure:"locate_interval" yaml:"locate_interval"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	StopGrace      time.Duration `mapstructure:"stop_grace" yaml:"stop_grace"`
	OverrunMargin  time.Duration `mapstructure:"overrun_margin" yaml:"overrun_margin"`

	TempDir         string        `mapstructure:"temp_dir" yaml:"temp_dir"`
	StaleScratchAge time.Duration `mapstructure:"stale_scratch_age" yaml:"stale_scratch_age"`

	PrimaryUnit string `mapstructure:"primary_unit" yaml:"primary_unit"`
	Tools       Tools  `mapstructure:"tools" yaml:"tools"`

	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"`
	LogFile      string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeKB int64  `mapstructure:"log_max_size_kb" yaml:"log_max_size_kb"`
	LogMaxFiles  int    `mapstructure:"log_max_files" yaml:"log_max_files"`
}

// Tools holds the executables driven by the host. Bare names are resolved
// through PATH.
type Tools struct {
	Systemctl  string `mapstructure:"systemctl" yaml:"systemctl"`
	PulseAudio string `mapstructure:"pulseaudio" yaml:"pulseaudio"`
	PWDump     string `mapstructure:"pw_dump" yaml:"pw_dump"`
	Pactl      string `mapstructure:"pactl" yaml:"pactl"`
	Parecord   string `mapstructure:"parecord" yaml:"parecord"`
}

func Default() *Config {
	return &Config{
		TargetApp:         "firefox",
		TargetDisplayName: "Firefox",
		DefaultDuration:   5 * time.Second,
		LocateAttempts:    5,
		LocateInterval:    200 * time.Millisecond,
		ProbeTimeout:      5 * time.Second,
		StopGrace:         2 * time.Second,
		OverrunMargin:     5 * time.Second,
		TempDir:           os.TempDir(),
		StaleScratchAge:   time.Hour,
		PrimaryUnit:       "pipewire",
		Tools: Tools{
			Systemctl:  "systemctl",
			PulseAudio: "pulseaudio",
			PWDump:     "pw-dump",
			Pactl:      "pactl",
			Parecord:   "parecord",
		},
		LogLevel:     "info",
		LogFormat:    "text",
		LogMaxSizeKB: 1024,
		LogMaxFiles:  3,
	}
}

// Load reads cfgFile, or config.yaml from ConfigDir when cfgFile is empty.
// A missing default config file is not an error. Environment variables
// prefixed ASBPLAYER_AUDIO_ override file values.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := ConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("ASBPLAYER_AUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// never appear in a config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("target_app", cfg.TargetApp)
	v.SetDefault("target_display_name", cfg.TargetDisplayName)
	v.SetDefault("default_duration", cfg.DefaultDuration)
	v.SetDefault("locate_attempts", cfg.LocateAttempts)
	v.SetDefault("locate_interval", cfg.LocateInterval)
	v.SetDefault("probe_timeout", cfg.ProbeTimeout)
	v.SetDefault("stop_grace", cfg.StopGrace)
	v.SetDefault("overrun_margin", cfg.OverrunMargin)
	v.SetDefault("temp_dir", cfg.TempDir)
	v.SetDefault("stale_scratch_age", cfg.StaleScratchAge)
	v.SetDefault("primary_unit", cfg.PrimaryUnit)
	v.SetDefault("tools.systemctl", cfg.Tools.Systemctl)
	v.SetDefault("tools.pulseaudio", cfg.Tools.PulseAudio)
	v.SetDefault("tools.pw_dump", cfg.Tools.PWDump)
	v.SetDefault("tools.pactl", cfg.Tools.Pactl)
	v.SetDefault("tools.parecord", cfg.Tools.Parecord)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_kb", cfg.LogMaxSizeKB)
	v.SetDefault("log_max_files", cfg.LogMaxFiles)
}

// ConfigDir returns $XDG_CONFIG_HOME/asbplayer-audio-host, or "" when the
// user config directory cannot be determined.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName)
}

// DefaultLogFile returns the log path used when log_file is "auto".
func DefaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppName, "host.log")
}
