package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/b-tok/asbplayer-linux/internal/capture"
	"github.com/b-tok/asbplayer-linux/internal/config"
	"github.com/b-tok/asbplayer-linux/internal/executor"
	"github.com/b-tok/asbplayer-linux/internal/health"
	"github.com/b-tok/asbplayer-linux/internal/host"
	"github.com/b-tok/asbplayer-linux/internal/logging"
)

var (
	version  = "0.1.0"
	cfgFile  string
	logLevel string
)

var log = logging.L("main")

// rootCmd is what the browser launches. Firefox passes the manifest path and
// extension id; Chromium passes the origin and sometimes --parent-window.
var rootCmd = &cobra.Command{
	Use:   "asbplayer-audio-host",
	Short: "asbplayer audio capture host",
	Long: `asbplayer-audio-host records the audio a browser is playing and returns it
to the asbplayer extension over native messaging (stdin/stdout).`,
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHost(cmd.Context(), args)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "asbplayer-audio-host v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/asbplayer-audio-host/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(manifestCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config and points logging at stderr, plus the rotating log
// file when one is configured. The returned func closes the file.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	cfg.Validate()

	var out io.Writer = os.Stderr
	closeLog := func() {}
	if path := cfg.LogFile; path != "" {
		if path == "auto" {
			path = config.DefaultLogFile()
		}
		sink, err := logging.OpenFile(path, cfg.LogMaxSizeKB, cfg.LogMaxFiles)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file disabled: %v\n", err)
		} else {
			out = logging.TeeWriter(os.Stderr, sink)
			closeLog = func() { sink.Close() }
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	return cfg, closeLog, nil
}

func newOrchestrator(cfg *config.Config) *capture.Orchestrator {
	return capture.New(cfg, executor.ExecRunner{}, executor.ExecSpawner{}, clockwork.NewRealClock())
}

func runHost(ctx context.Context, browserArgs []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	log.Info("starting host", "version", version, "args", browserArgs, "target", cfg.TargetApp)
	if cfg.StaleScratchAge > 0 {
		capture.SweepStale(cfg.TempDir, cfg.StaleScratchAge, time.Now())
	}

	orch := newOrchestrator(cfg)
	orch.Health = health.NewMonitor()
	srv := host.New(os.Stdin, os.Stdout, orch.Detector, orch, cfg.TargetApp)
	err = srv.Serve(ctx)
	log.Info("host exiting", "health", orch.Health.Summary())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
