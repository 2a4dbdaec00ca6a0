package clips

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/kikiluvv/fiora/internal/media"
)

// ErrOutOfRange is returned for frame requests outside [0, duration).
var ErrOutOfRange = errors.New("time outside clip")

// Clip is the immutable output of one rebuild: the composited video and
// its soundtrack. A new Clip replaces the old one on every edit.
type Clip struct {
	ID        string
	Video     media.VideoStream
	Audio     media.AudioStream // nil when there is no soundtrack
	TrimStart float64
	TrimEnd   float64
	Speed     float64
	CreatedAt time.Time
}

// New creates a clip with a fresh generation ID.
func New(video media.VideoStream, audio media.AudioStream, trimStart, trimEnd, speed float64) *Clip {
	return &Clip{
		ID:        uuid.NewString(),
		Video:     video,
		Audio:     audio,
		TrimStart: trimStart,
		TrimEnd:   trimEnd,
		Speed:     speed,
		CreatedAt: time.Now(),
	}
}

// Duration in seconds
func (c *Clip) Duration() float64 { return c.Video.Duration() }

func (c *Clip) FrameRate() float64 { return c.Video.FrameRate() }

func (c *Clip) Size() image.Point { return c.Video.Size() }

func (c *Clip) HasAudio() bool { return c.Audio != nil }

// FrameCount is the number of frames an encoder writes for this clip.
func (c *Clip) FrameCount() int {
	return media.FrameCount(c.Duration(), c.FrameRate())
}

// LastFrameTime is the timestamp of the final frame.
func (c *Clip) LastFrameTime() float64 {
	n := c.FrameCount()
	if n <= 1 {
		return 0
	}
	return float64(n-1) / c.FrameRate()
}

// FrameAt returns the composited frame at t seconds.
func (c *Clip) FrameAt(t float64) (*image.RGBA, error) {
	if t < 0 || t >= c.Duration() || t != t {
		return nil, fmt.Errorf("%w: %.3fs not in [0, %.3fs)", ErrOutOfRange, t, c.Duration())
	}
	return c.Video.FrameAt(t)
}
