package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/fiora/internal/media"
)

var errStreamClosed = errors.New("video stream closed")

// seekWindow is how far ahead, in frames, a read may jump before the
// decoder is restarted at the target instead of decoding through the gap.
const seekWindow = 48

// videoStream serves frames from a long-lived ffmpeg process producing raw
// RGBA. Sequential reads reuse the process; backwards or distant reads
// restart it at the requested time. Safe for concurrent use.
type videoStream struct {
	logger   zerolog.Logger
	exec     *Executor
	path     string
	fps      float64
	duration float64
	size     image.Point

	mu      sync.Mutex
	frames  int
	proc    *Process
	next    int // index of the frame proc yields next
	last    *image.RGBA
	lastIdx int
	closed  bool
}

func newVideoStream(logger zerolog.Logger, exec *Executor, info media.Info) *videoStream {
	frames := media.FrameCount(info.Duration, info.FrameRate)
	if info.FrameCount > 0 && info.FrameCount < frames {
		frames = info.FrameCount
	}
	return &videoStream{
		logger:   logger.With().Str("stream", info.Path).Logger(),
		exec:     exec,
		path:     info.Path,
		fps:      info.FrameRate,
		duration: info.Duration,
		size:     image.Pt(info.Width, info.Height),
		frames:   frames,
		lastIdx:  -1,
	}
}

func (v *videoStream) Duration() float64  { return v.duration }
func (v *videoStream) FrameRate() float64 { return v.fps }
func (v *videoStream) Size() image.Point  { return v.size }

func (v *videoStream) FrameAt(t float64) (*image.RGBA, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, errStreamClosed
	}
	frame, err := v.frameLocked(media.FrameIndex(t, v.fps, v.frames), 3)
	if err != nil {
		return nil, err
	}
	return media.CloneFrame(frame), nil
}

func (v *videoStream) frameLocked(idx, retries int) (*image.RGBA, error) {
	if v.last != nil && v.lastIdx == idx {
		return v.last, nil
	}
	if v.proc == nil || idx < v.next || idx > v.next+seekWindow {
		if err := v.seek(idx); err != nil {
			return nil, err
		}
	}

	producedHere := false
	for v.next <= idx {
		frame, err := v.readFrame()
		if err == nil {
			producedHere = true
			v.last, v.lastIdx = frame, v.next
			v.next++
			continue
		}

		v.stop()
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("decode frame %d of %s: %w", idx, v.path, err)
		}

		// the container reported more frames than the decoder produced
		if producedHere {
			v.frames = v.lastIdx + 1
			return v.last, nil
		}
		if idx == 0 || retries == 0 {
			return nil, fmt.Errorf("decode frame %d of %s: decoder produced no frames", idx, v.path)
		}
		v.frames = idx
		return v.frameLocked(idx-1, retries-1)
	}
	return v.last, nil
}

// seek restarts the decoder so the next frame it yields is idx.
func (v *videoStream) seek(idx int) error {
	v.stop()

	// half a frame early so rounding never skips the target frame
	start := (float64(idx) - 0.5) / v.fps
	args := []string{}
	if start > 0 {
		args = append(args, "-ss", strconv.FormatFloat(start, 'f', 6, 64))
	}
	args = append(args,
		"-i", v.path,
		"-map", "0:v:0",
		"-an", "-sn", "-dn",
		"-vf", NewFilterBuilder().FPS(v.fps).Format("rgba").Build(),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)

	proc, err := v.exec.Start(context.Background(), args...)
	if err != nil {
		return fmt.Errorf("start decoder for %s: %w", v.path, err)
	}
	v.proc, v.next = proc, idx

	v.logger.Debug().Int("frame", idx).Msg("decoder restarted")
	return nil
}

func (v *videoStream) readFrame() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, v.size.X, v.size.Y))
	if _, err := io.ReadFull(v.proc, img.Pix); err != nil {
		if stderr := v.proc.Stderr(); stderr != "" && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", err, stderr)
		}
		return nil, err
	}
	return img, nil
}

func (v *videoStream) stop() {
	if v.proc != nil {
		_ = v.proc.Close()
		v.proc = nil
	}
}

// Close stops the decoder. Later reads fail.
func (v *videoStream) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.stop()
	v.last = nil
	return nil
}
