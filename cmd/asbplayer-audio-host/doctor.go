package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/b-tok/asbplayer-linux/internal/config"
	"github.com/b-tok/asbplayer-linux/internal/executor"
	"github.com/b-tok/asbplayer-linux/internal/health"
	"github.com/b-tok/asbplayer-linux/internal/soundserver"
	"github.com/b-tok/asbplayer-linux/internal/streams"
)

// daemonNames are the sound server processes worth reporting.
var daemonNames = []string{"pipewire", "pipewire-pulse", "wireplumber", "pulseaudio"}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the tools and sound server needed for capture are available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closeLog, err := setup()
		if err != nil {
			return err
		}
		defer closeLog()

		m := health.NewMonitor()
		if err := runDoctor(cmd.Context(), cfg, m); err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), m)
		if n := m.Count(health.Unhealthy); n > 0 {
			return fmt.Errorf("%d check(s) failed", n)
		}
		return nil
	},
}

func printReport(w io.Writer, m *health.Monitor) {
	for _, c := range m.All() {
		fmt.Fprintf(w, "[%-9s] %-18s %s\n", c.Status, c.Name, c.Message)
	}
	fmt.Fprintf(w, "overall: %s\n", m.Overall())
}

// runDoctor runs the independent checks concurrently.
func runDoctor(ctx context.Context, cfg *config.Config, m *health.Monitor) error {
	g, ctx := errgroup.WithContext(ctx)
	runner := executor.ExecRunner{}

	tools := map[string]string{
		"systemctl":  cfg.Tools.Systemctl,
		"pulseaudio": cfg.Tools.PulseAudio,
		"pw-dump":    cfg.Tools.PWDump,
		"pactl":      cfg.Tools.Pactl,
		"parecord":   cfg.Tools.Parecord,
	}
	for name, bin := range tools {
		name, bin := name, bin
		g.Go(func() error {
			path, err := exec.LookPath(bin)
			if err != nil {
				// parecord is required; the rest only matter for one backend.
				status := health.Degraded
				if name == "parecord" {
					status = health.Unhealthy
				}
				m.Update("tools/"+name, status, fmt.Sprintf("%s not found", bin))
				return nil
			}
			m.Update("tools/"+name, health.Healthy, path)
			return nil
		})
	}

	g.Go(func() error {
		kind := soundserver.NewDetector(cfg, runner).Detect(ctx)
		m.Update("soundserver", health.Healthy, kind.String())

		var finder streams.Finder = streams.PipeWireFinder{Runner: runner, PWDump: cfg.Tools.PWDump, Timeout: cfg.ProbeTimeout}
		if kind == soundserver.PulseAudio {
			finder = streams.PulseAudioFinder{Runner: runner, Pactl: cfg.Tools.Pactl, Timeout: cfg.ProbeTimeout}
		}
		h, ok, err := finder.Find(ctx, cfg.TargetApp)
		switch {
		case err != nil:
			m.Update("stream", health.Unhealthy, fmt.Sprintf("listing streams failed: %v", err))
		case ok:
			m.Update("stream", health.Healthy, fmt.Sprintf("%s is playing (stream %s)", cfg.TargetDisplayName, h))
		default:
			m.Update("stream", health.Degraded, fmt.Sprintf("%s has no audio stream right now", cfg.TargetDisplayName))
		}
		return nil
	})

	g.Go(func() error {
		procs, err := process.ProcessesWithContext(ctx)
		if err != nil {
			m.Update("daemons", health.Unknown, fmt.Sprintf("cannot list processes: %v", err))
			return nil
		}
		seen := map[string][]int32{}
		for _, p := range procs {
			name, err := p.NameWithContext(ctx)
			if err != nil {
				continue
			}
			for _, want := range daemonNames {
				if name == want {
					seen[name] = append(seen[name], p.Pid)
				}
			}
		}
		if len(seen) == 0 {
			m.Update("daemons", health.Unhealthy, "no sound server process running ("+strings.Join(daemonNames, ", ")+")")
			return nil
		}
		for _, name := range daemonNames {
			if pids, ok := seen[name]; ok {
				m.Update("daemons/"+name, health.Healthy, fmt.Sprintf("pid %v", pids))
			}
		}
		return nil
	})

	return g.Wait()
}
