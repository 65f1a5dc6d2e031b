package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/b-tok/asbplayer-linux/internal/logging"
)

const scratchPrefix = "asbplayer-audio-"

// Scratch owns the temporary files of one capture.
type Scratch struct {
	wav string
}

// NewScratch reserves <dir>/asbplayer-audio-<uuid>.wav by creating it empty
// with owner-only permissions.
func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, scratchPrefix+uuid.NewString()+".wav")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("capture: reserve scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("capture: reserve scratch file: %w", err)
	}
	return &Scratch{wav: path}, nil
}

// WAV is the container path.
func (s *Scratch) WAV() string { return s.wav }

// Raw is the sibling headerless PCM path.
func (s *Scratch) Raw() string { return s.wav + ".raw" }

// Release deletes every file the capture may have produced. Errors are
// logged, never returned.
func (s *Scratch) Release() {
	if s == nil {
		return
	}
	for _, p := range []string{s.Raw(), s.wav} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed to remove scratch file", "path", p, logging.KeyError, err)
		}
	}
}

// SweepStale removes scratch files in dir last modified before now-olderThan.
// They are left behind when a previous host was killed mid-capture.
func SweepStale(dir string, olderThan time.Duration, now time.Time) int {
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug("cannot list scratch dir", "dir", dir, logging.KeyError, err)
		return 0
	}

	cutoff := now.Add(-olderThan)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, scratchPrefix) ||
			!(strings.HasSuffix(name, ".wav") || strings.HasSuffix(name, ".wav.raw")) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(dir, name)
		if err := os.Remove(p); err != nil {
			log.Debug("failed to remove stale scratch file", "path", p, logging.KeyError, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info("removed stale scratch files", "count", removed, "dir", dir)
	}
	return removed
}
