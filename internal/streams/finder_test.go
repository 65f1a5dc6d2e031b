package streams

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/b-tok/asbplayer-linux/internal/executor"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

type stubRunner struct {
	result *executor.Result
	err    error
	calls  []executor.Command
}

func (s *stubRunner) Run(_ context.Context, cmd executor.Command) (*executor.Result, error) {
	s.calls = append(s.calls, cmd)
	return s.result, s.err
}

func TestParsePipeWireDump(t *testing.T) {
	tests := []struct {
		fixture string
		target  string
		want    Handle
		ok      bool
	}{
		{"pw-dump-serial.json", "firefox", "42", true},
		{"pw-dump-serial.json", "FIREFOX", "42", true},
		{"pw-dump-serial.json", "mpv", "12", true},
		{"pw-dump-serial.json", "chromium", "", false},
		{"pw-dump-no-serial.json", "firefox", "7", true},
	}
	for _, tt := range tests {
		t.Run(tt.fixture+"/"+tt.target, func(t *testing.T) {
			h, ok, err := ParsePipeWireDump(readFixture(t, tt.fixture), tt.target)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if ok != tt.ok || h != tt.want {
				t.Fatalf("got (%q, %v), want (%q, %v)", h, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParsePipeWireDumpFallsBackToTopLevelID(t *testing.T) {
	data := []byte(`[{"id": 77, "type": "PipeWire:Interface:Node", "info": {"props": {"application.name": "Firefox"}}}]`)
	h, ok, err := ParsePipeWireDump(data, "firefox")
	if err != nil || !ok || h != "77" {
		t.Fatalf("got (%q, %v, %v), want 77", h, ok, err)
	}
}

func TestParsePipeWireDumpMalformed(t *testing.T) {
	if _, _, err := ParsePipeWireDump([]byte(`[{"id": 1,`), "firefox"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPipeWireFinderNonZeroExitIsAttemptError(t *testing.T) {
	r := &stubRunner{result: &executor.Result{ExitCode: 1, Stderr: []byte("connection refused")}}
	_, ok, err := PipeWireFinder{Runner: r}.Find(context.Background(), "firefox")
	if err == nil || ok {
		t.Fatalf("got ok=%v err=%v, want error", ok, err)
	}
	if r.calls[0].Name != "pw-dump" {
		t.Fatalf("ran %q, want pw-dump", r.calls[0].Name)
	}
}

func TestParseSinkInputs(t *testing.T) {
	data := readFixture(t, "pactl-sink-inputs.txt")
	if h, ok := ParseSinkInputs(data, "firefox"); !ok || h != "23" {
		t.Fatalf("firefox: got (%q, %v), want 23", h, ok)
	}
	if h, ok := ParseSinkInputs(data, "mpv"); !ok || h != "17" {
		t.Fatalf("mpv: got (%q, %v), want 17", h, ok)
	}
	if _, ok := ParseSinkInputs(data, "chromium"); ok {
		t.Fatal("chromium should not match")
	}
}

func TestPulseAudioFinderForcesCLocale(t *testing.T) {
	r := &stubRunner{result: &executor.Result{Stdout: readFixture(t, "pactl-sink-inputs.txt")}}
	h, ok, err := PulseAudioFinder{Runner: r, Pactl: "pactl"}.Find(context.Background(), "Firefox")
	if err != nil || !ok || h != "23" {
		t.Fatalf("got (%q, %v, %v), want 23", h, ok, err)
	}
	call := r.calls[0]
	if len(call.Args) != 2 || call.Args[0] != "list" || call.Args[1] != "sink-inputs" {
		t.Fatalf("args = %v", call.Args)
	}
	if len(call.Env) != 1 || call.Env[0] != "LC_ALL=C" {
		t.Fatalf("env = %v, want LC_ALL=C", call.Env)
	}
}
