// Package wavfile wraps raw interleaved s16le PCM in a RIFF/WAVE container.
package wavfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/b-tok/asbplayer-linux/internal/logging"
)

var log = logging.L("wavfile")

// ErrEmptyPCM is returned when there is not a single whole frame to encode.
var ErrEmptyPCM = errors.New("wavfile: no PCM samples")

const (
	pcmFormat = 1
	// framesPerChunk bounds memory while converting large captures.
	framesPerChunk = 16 * 1024
)

// Format describes interleaved little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// S16LE returns a 16-bit format.
func S16LE(rate, channels int) Format {
	return Format{SampleRate: rate, Channels: channels, BitDepth: 16}
}

// FrameSize is the byte length of one sample for every channel.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("wavfile: invalid format %+v", f)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("wavfile: unsupported bit depth %d", f.BitDepth)
	}
	return nil
}

// Encode writes pcm to w as a WAV file. A trailing partial frame is dropped.
func Encode(w io.WriteSeeker, pcm []byte, f Format) error {
	_, err := encode(w, bytes.NewReader(pcm), f)
	return err
}

// EncodeFile wraps the raw PCM file at rawPath into a WAV file at wavPath.
// It returns the number of frames written.
func EncodeFile(rawPath, wavPath string, f Format) (int64, error) {
	in, err := os.Open(rawPath)
	if err != nil {
		return 0, fmt.Errorf("wavfile: open raw: %w", err)
	}
	defer in.Close()

	out, err := os.Create(wavPath)
	if err != nil {
		return 0, fmt.Errorf("wavfile: create: %w", err)
	}
	frames, err := encode(out, in, f)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("wavfile: close: %w", cerr)
	}
	return frames, err
}

func encode(w io.WriteSeeker, r io.Reader, f Format) (int64, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}

	enc := wav.NewEncoder(w, f.SampleRate, f.BitDepth, f.Channels, pcmFormat)
	frameSize := f.FrameSize()
	raw := make([]byte, framesPerChunk*frameSize)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		SourceBitDepth: f.BitDepth,
	}

	var frames int64
	for {
		n, rerr := io.ReadFull(r, raw)
		whole := n - n%frameSize
		if n != whole {
			log.Warn("dropping trailing partial frame", "bytes", n-whole)
		}
		if whole > 0 {
			buf.Data = toSamples(buf.Data[:0], raw[:whole])
			if err := enc.Write(buf); err != nil {
				return frames, fmt.Errorf("wavfile: write samples: %w", err)
			}
			frames += int64(whole / frameSize)
		}

		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return frames, fmt.Errorf("wavfile: read pcm: %w", rerr)
		}
	}

	if frames == 0 {
		return 0, ErrEmptyPCM
	}
	if err := enc.Close(); err != nil {
		return frames, fmt.Errorf("wavfile: finalize header: %w", err)
	}
	return frames, nil
}

func toSamples(dst []int, raw []byte) []int {
	for i := 0; i+1 < len(raw); i += 2 {
		dst = append(dst, int(int16(binary.LittleEndian.Uint16(raw[i:]))))
	}
	return dst
}
