package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// FFmpegOpener decodes containers by piping them through an ffmpeg process that
// re-emits every frame as PNG on stdout.
type FFmpegOpener struct {
	binary string
	log    zerolog.Logger
}

func NewFFmpegOpener(binary string, log zerolog.Logger) *FFmpegOpener {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegOpener{binary: binary, log: log}
}

func (o *FFmpegOpener) Open(ctx context.Context, src io.Reader) (Decoder, error) {
	// Containers such as mp4 keep their index at the end, so the upload is spooled
	// to disk instead of being streamed over stdin.
	tmp, err := os.CreateTemp("", "anpr-video-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	written, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to spool video: %w", err)
	}
	if written == 0 {
		_ = os.Remove(path)
		return nil, &OpenError{Reason: "empty upload"}
	}

	cmd := exec.CommandContext(ctx, o.binary,
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", path,
		"-fps_mode", "passthrough",
		"-f", "image2pipe", "-vcodec", "png", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = os.Remove(path)
		return nil, &OpenError{Reason: "failed to start " + o.binary, Err: err}
	}

	d := &ffmpegDecoder{
		PNGStream: NewPNGStream(stdout),
		cmd:       cmd,
		path:      path,
	}

	// ffmpeg reports unreadable input by exiting before writing a single frame.
	if _, err := d.r.Peek(len(pngSignature)); err != nil {
		d.waited = true
		waitErr := cmd.Wait()
		if waitErr != nil {
			_ = d.Close()
			return nil, &OpenError{Reason: stderrTail(stderr.String()), Err: waitErr}
		}
		o.log.Debug().Int64("bytes", written).Msg("video has no frames")
	}

	o.log.Debug().Int64("bytes", written).Str("path", path).Msg("opened video with ffmpeg")
	return d, nil
}

type ffmpegDecoder struct {
	*PNGStream
	cmd  *exec.Cmd
	path string

	waited bool
	once   sync.Once
	err    error
}

func (d *ffmpegDecoder) Close() error {
	d.once.Do(func() {
		if !d.waited {
			if d.cmd.Process != nil {
				_ = d.cmd.Process.Kill()
			}
			_ = d.cmd.Wait()
			d.waited = true
		}
		if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
			d.err = fmt.Errorf("failed to remove temp video: %w", err)
		}
	})
	return d.err
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "ffmpeg could not decode input"
	}
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
