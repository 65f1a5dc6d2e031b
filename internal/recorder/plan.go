// Package recorder drives parecord for a fixed duration and validates what it
// wrote.
package recorder

import (
	"fmt"

	"github.com/b-tok/asbplayer-linux/internal/streams"
	"github.com/b-tok/asbplayer-linux/internal/wavfile"
)

const (
	PrimaryRate = 48000
	LegacyRate  = 44100
	Channels    = 2
)

// Plan is one parecord invocation.
type Plan struct {
	Name   string
	Handle streams.Handle
	Args   []string
	// Output is the file parecord writes.
	Output string
	Format wavfile.Format
	// Raw is set when Output is headerless PCM that still needs a container.
	Raw bool
}

// PrimaryPlan records the target stream's monitor through PipeWire's
// PulseAudio layer into wavPath+".raw".
func PrimaryPlan(h streams.Handle, wavPath string) Plan {
	raw := wavPath + ".raw"
	return Plan{
		Name:   "pipewire",
		Handle: h,
		Args: []string{
			"--monitor-stream=" + string(h),
			"--format=s16le",
			fmt.Sprintf("--rate=%d", PrimaryRate),
			fmt.Sprintf("--channels=%d", Channels),
			"--raw",
			raw,
		},
		Output: raw,
		Format: wavfile.S16LE(PrimaryRate, Channels),
		Raw:    true,
	}
}

// LegacyPlan records the default capture source straight to a WAV file. The
// handle is only carried for logging; parecord is not pointed at it.
func LegacyPlan(h streams.Handle, wavPath string) Plan {
	return Plan{
		Name:   "pulseaudio",
		Handle: h,
		Args: []string{
			"--format=s16le",
			fmt.Sprintf("--rate=%d", LegacyRate),
			fmt.Sprintf("--channels=%d", Channels),
			wavPath,
		},
		Output: wavPath,
		Format: wavfile.S16LE(LegacyRate, Channels),
	}
}
