// Package audio converts talk recordings into the MP3 assets served under
// /files/audio.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/eringen/orator/logging"
)

// ErrNoFFmpeg is returned when the ffmpeg binary cannot be found.
var ErrNoFFmpeg = errors.New("ffmpeg not found")

// Converter runs ffmpeg. The zero value uses "ffmpeg" from PATH.
type Converter struct {
	Binary string
	Log    *logging.Logger
}

func (c Converter) binary() string {
	if c.Binary == "" {
		return "ffmpeg"
	}
	return c.Binary
}

// Args returns the ffmpeg arguments used to extract src's audio track into
// dst as MP3.
func Args(src, dst string) []string {
	return []string{"-y", "-i", src, "-vn", "-codec:a", "libmp3lame", dst}
}

// ToMP3 extracts the audio of src into dst, creating dst's directory first.
func (c Converter) ToMP3(ctx context.Context, src, dst string) error {
	log := logging.OrNop(c.Log)
	bin, err := exec.LookPath(c.binary())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoFFmpeg, err)
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("source %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, Args(src, dst)...)
	cmd.Stderr = &stderr
	log.Info("converting audio", "src", src, "dst", dst)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
			msg = msg[i+1:]
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", src, err, msg)
	}
	log.Info("audio written", "dst", dst)
	return nil
}

// ToMP3 converts src to dst with the default converter.
func ToMP3(ctx context.Context, src, dst string) error {
	return Converter{}.ToMP3(ctx, src, dst)
}
