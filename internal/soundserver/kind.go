// Package soundserver identifies which desktop sound server is running.
package soundserver

import "fmt"

// Kind is a supported sound server. The string values are the ones reported
// to the extension as "audioSystem".
type Kind string

const (
	// PipeWire is the primary server. Capture goes through its PulseAudio
	// compatibility layer.
	PipeWire Kind = "pipewire"
	// PulseAudio is the legacy server.
	PulseAudio Kind = "pulseaudio"
)

func (k Kind) String() string { return string(k) }

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == PipeWire || k == PulseAudio
}

// ParseKind converts a config or CLI value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("soundserver: unknown kind %q (use %s or %s)", s, PipeWire, PulseAudio)
	}
	return k, nil
}
