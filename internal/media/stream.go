// Package media defines the read-only frame and sample sequences the editor
// works on, and the lazy views (sub-range, retime, per-frame transforms,
// audio fit and mix) that are composed over them without copying data.
package media

import (
	"fmt"
	"image"
	"math"
)

// VideoStream is a time-indexed, read-only sequence of RGBA frames.
type VideoStream interface {
	// Duration in seconds.
	Duration() float64
	FrameRate() float64
	Size() image.Point
	// FrameAt returns the frame displayed at t seconds. The returned image
	// is owned by the caller.
	FrameAt(t float64) (*image.RGBA, error)
}

// AudioStream is a read-only sequence of interleaved float32 sample frames.
type AudioStream interface {
	SampleRate() int
	Channels() int
	// Len is the number of sample frames (one sample per channel each).
	Len() int
	// ReadFrames returns the interleaved samples of frames [from, to).
	ReadFrames(from, to int) ([]float32, error)
}

// frameEpsilon absorbs float error in t*fps so 2.3s at 10fps is frame 23.
const frameEpsilon = 1e-9

// FrameCount is the number of frames a stream of the given duration holds.
func FrameCount(duration, fps float64) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	n := int(math.Ceil(duration*fps - frameEpsilon))
	if n < 1 {
		n = 1
	}
	return n
}

// FrameIndex maps a time to a frame index clamped to [0, count-1].
func FrameIndex(t, fps float64, count int) int {
	if count <= 0 {
		return 0
	}
	idx := int(math.Floor(t*fps + frameEpsilon))
	if idx < 0 {
		return 0
	}
	if idx >= count {
		return count - 1
	}
	return idx
}

// AudioDuration returns the length of a in seconds.
func AudioDuration(a AudioStream) float64 {
	if a == nil || a.SampleRate() <= 0 {
		return 0
	}
	return float64(a.Len()) / float64(a.SampleRate())
}

func checkFrames(from, to, n int) error {
	if from < 0 || to < from || to > n {
		return fmt.Errorf("sample frames [%d, %d) outside stream of %d", from, to, n)
	}
	return nil
}
