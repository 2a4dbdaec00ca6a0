package media

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Frames is an in-memory video stream holding one image per frame.
type Frames struct {
	fps    float64
	frames []*image.RGBA
	size   image.Point
}

// NewFrames builds a stream from frames shown at fps. Frames are copied.
func NewFrames(fps float64, frames ...*image.RGBA) *Frames {
	f := &Frames{fps: fps, frames: make([]*image.RGBA, len(frames))}
	for i, img := range frames {
		f.frames[i] = CloneFrame(img)
	}
	if len(frames) > 0 {
		f.size = frames[0].Rect.Size()
	}
	return f
}

func (f *Frames) Duration() float64 {
	if f.fps <= 0 {
		return 0
	}
	return float64(len(f.frames)) / f.fps
}

func (f *Frames) FrameRate() float64 { return f.fps }
func (f *Frames) Size() image.Point  { return f.size }

func (f *Frames) FrameAt(t float64) (*image.RGBA, error) {
	if len(f.frames) == 0 {
		return nil, fmt.Errorf("no frames")
	}
	return CloneFrame(f.frames[FrameIndex(t, f.fps, len(f.frames))]), nil
}

// PCM is an in-memory audio stream of interleaved float32 samples.
type PCM struct {
	rate     int
	channels int
	samples  []float32
}

// NewPCM wraps interleaved samples. A trailing partial frame is dropped.
func NewPCM(rate, channels int, samples []float32) *PCM {
	n := len(samples) / channels * channels
	return &PCM{rate: rate, channels: channels, samples: samples[:n]}
}

// Silence returns frames sample frames of zeros.
func Silence(rate, channels, frames int) *PCM {
	return NewPCM(rate, channels, make([]float32, frames*channels))
}

func (p *PCM) SampleRate() int { return p.rate }
func (p *PCM) Channels() int   { return p.channels }
func (p *PCM) Len() int        { return len(p.samples) / p.channels }

func (p *PCM) ReadFrames(from, to int) ([]float32, error) {
	if err := checkFrames(from, to, p.Len()); err != nil {
		return nil, err
	}
	out := make([]float32, (to-from)*p.channels)
	copy(out, p.samples[from*p.channels:to*p.channels])
	return out, nil
}

// CloneFrame returns a copy of img with its bounds moved to the origin and a
// tight stride.
func CloneFrame(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if img.Stride == out.Stride && b.Min == (image.Point{}) {
		copy(out.Pix, img.Pix)
		return out
	}
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// SolidFrame returns a w×h frame filled with c.
func SolidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}
