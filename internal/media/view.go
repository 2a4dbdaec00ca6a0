package media

import (
	"image"
	"math"
)

// FrameFunc transforms one frame into a new frame. It must not modify its
// input.
type FrameFunc func(*image.RGBA) (*image.RGBA, error)

type subrange struct {
	inner      VideoStream
	start, end float64
}

// Subrange returns a view of v over [start, end). No frames are decoded or
// copied until FrameAt is called.
func Subrange(v VideoStream, start, end float64) VideoStream {
	return &subrange{inner: v, start: start, end: end}
}

func (s *subrange) Duration() float64  { return s.end - s.start }
func (s *subrange) FrameRate() float64 { return s.inner.FrameRate() }
func (s *subrange) Size() image.Point  { return s.inner.Size() }

func (s *subrange) FrameAt(t float64) (*image.RGBA, error) {
	// [start, end) is half-open; reads at or past the end show the last
	// frame inside the window rather than the first one after it.
	if dur := s.end - s.start; t >= dur {
		t = math.Max(0, dur-0.5/s.inner.FrameRate())
	}
	if t < 0 {
		t = 0
	}
	return s.inner.FrameAt(s.start + t)
}

type mapped struct {
	inner VideoStream
	fn    FrameFunc
}

// MapFrames returns a view of v whose frames are passed through fn when read.
func MapFrames(v VideoStream, fn FrameFunc) VideoStream {
	return &mapped{inner: v, fn: fn}
}

func (m *mapped) Duration() float64  { return m.inner.Duration() }
func (m *mapped) FrameRate() float64 { return m.inner.FrameRate() }
func (m *mapped) Size() image.Point  { return m.inner.Size() }

func (m *mapped) FrameAt(t float64) (*image.RGBA, error) {
	frame, err := m.inner.FrameAt(t)
	if err != nil {
		return nil, err
	}
	return m.fn(frame)
}

type retimed struct {
	inner VideoStream
	speed float64
}

// Retime returns a view of v played at speed. The frame rate is unchanged;
// at speed 2 every other source frame is shown.
func Retime(v VideoStream, speed float64) VideoStream {
	return &retimed{inner: v, speed: speed}
}

func (r *retimed) Duration() float64  { return r.inner.Duration() / r.speed }
func (r *retimed) FrameRate() float64 { return r.inner.FrameRate() }
func (r *retimed) Size() image.Point  { return r.inner.Size() }

func (r *retimed) FrameAt(t float64) (*image.RGBA, error) {
	return r.inner.FrameAt(math.Min(t*r.speed, r.inner.Duration()))
}
