package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/b-tok/asbplayer-linux/internal/recorder"
	"github.com/b-tok/asbplayer-linux/internal/soundserver"
	"github.com/b-tok/asbplayer-linux/internal/streams"
	"github.com/b-tok/asbplayer-linux/internal/wavfile"
)

// Backend is one sound server's way of finding and recording a stream.
type Backend interface {
	Kind() soundserver.Kind
	Locate(ctx context.Context, target string) (streams.Handle, error)
	// Record captures duration of audio from h and returns the path of a
	// playable WAV file inside s.
	Record(ctx context.Context, h streams.Handle, s *Scratch, duration time.Duration) (string, error)
}

// Recorder is the part of recorder.Session a backend drives.
type Recorder interface {
	Record(ctx context.Context, plan recorder.Plan, duration time.Duration) (recorder.Capture, error)
}

type pipewireBackend struct {
	locator  streams.Locator
	finder   streams.Finder
	recorder Recorder
}

func (b *pipewireBackend) Kind() soundserver.Kind { return soundserver.PipeWire }

func (b *pipewireBackend) Locate(ctx context.Context, target string) (streams.Handle, error) {
	return b.locator.Locate(ctx, target, b.finder)
}

// Record captures raw PCM from the stream's monitor and wraps it.
func (b *pipewireBackend) Record(ctx context.Context, h streams.Handle, s *Scratch, duration time.Duration) (string, error) {
	c, err := b.recorder.Record(ctx, recorder.PrimaryPlan(h, s.WAV()), duration)
	if err != nil {
		return "", err
	}
	frames, err := wavfile.EncodeFile(c.Path, s.WAV(), c.Format)
	if err != nil {
		return "", fmt.Errorf("failed to encode recording: %w", err)
	}
	log.Debug("wrapped raw capture", "frames", frames, "rawBytes", c.Size)
	return s.WAV(), nil
}

type pulseaudioBackend struct {
	locator  streams.Locator
	finder   streams.Finder
	recorder Recorder
}

func (b *pulseaudioBackend) Kind() soundserver.Kind { return soundserver.PulseAudio }

func (b *pulseaudioBackend) Locate(ctx context.Context, target string) (streams.Handle, error) {
	return b.locator.Locate(ctx, target, b.finder)
}

// Record lets parecord write the container itself.
func (b *pulseaudioBackend) Record(ctx context.Context, h streams.Handle, s *Scratch, duration time.Duration) (string, error) {
	c, err := b.recorder.Record(ctx, recorder.LegacyPlan(h, s.WAV()), duration)
	if err != nil {
		return "", err
	}
	return c.Path, nil
}
