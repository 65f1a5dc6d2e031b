package streams

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/executor"
)

var sinkInputHeader = regexp.MustCompile(`^Sink Input #(\d+)`)

// PulseAudioFinder lists sink inputs with pactl.
type PulseAudioFinder struct {
	Runner  executor.Runner
	Pactl   string
	Timeout time.Duration
}

func (f PulseAudioFinder) Find(ctx context.Context, target string) (Handle, bool, error) {
	bin := f.Pactl
	if bin == "" {
		bin = "pactl"
	}
	result, err := f.Runner.Run(ctx, executor.Command{
		Name: bin,
		Args: []string{"list", "sink-inputs"},
		// Headers are localized otherwise.
		Env:     []string{"LC_ALL=C"},
		Timeout: f.Timeout,
	})
	if err != nil {
		return "", false, fmt.Errorf("pactl: %w", err)
	}
	if !result.Success() {
		return "", false, fmt.Errorf("pactl exited %d: %s", result.ExitCode, bytes.TrimSpace(result.Stderr))
	}
	h, ok := ParseSinkInputs(result.Stdout, target)
	return h, ok, nil
}

// ParseSinkInputs scans `pactl list sink-inputs` output for the first sink
// input whose application.name or application.process.binary property
// contains target, ignoring case.
func ParseSinkInputs(data []byte, target string) (Handle, bool) {
	needle := strings.ToLower(target)
	current := ""

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if m := sinkInputHeader.FindStringSubmatch(line); m != nil {
			current = m[1]
			continue
		}
		if current == "" {
			continue
		}

		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key != "application.name" && key != "application.process.binary" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if strings.Contains(strings.ToLower(value), needle) {
			return Handle(current), true
		}
	}
	return "", false
}
