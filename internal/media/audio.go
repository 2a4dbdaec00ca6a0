package media

import "math"

type audioRange struct {
	inner  AudioStream
	offset int
	n      int
}

// SubrangeAudio returns a view of a over [start, end) seconds, rounded to
// whole sample frames and bounded by the stream length.
func SubrangeAudio(a AudioStream, start, end float64) AudioStream {
	rate := float64(a.SampleRate())
	offset := clampInt(int(math.Round(start*rate)), 0, a.Len())
	stop := clampInt(int(math.Round(end*rate)), offset, a.Len())
	return &audioRange{inner: a, offset: offset, n: stop - offset}
}

func (r *audioRange) SampleRate() int { return r.inner.SampleRate() }
func (r *audioRange) Channels() int   { return r.inner.Channels() }
func (r *audioRange) Len() int        { return r.n }

func (r *audioRange) ReadFrames(from, to int) ([]float32, error) {
	if err := checkFrames(from, to, r.n); err != nil {
		return nil, err
	}
	return r.inner.ReadFrames(r.offset+from, r.offset+to)
}

type audioFit struct {
	inner AudioStream
	n     int
}

// Fit returns a view of a exactly frames long: longer streams are truncated,
// shorter ones are padded with trailing silence.
func Fit(a AudioStream, frames int) AudioStream {
	if frames < 0 {
		frames = 0
	}
	return &audioFit{inner: a, n: frames}
}

func (f *audioFit) SampleRate() int { return f.inner.SampleRate() }
func (f *audioFit) Channels() int   { return f.inner.Channels() }
func (f *audioFit) Len() int        { return f.n }

func (f *audioFit) ReadFrames(from, to int) ([]float32, error) {
	if err := checkFrames(from, to, f.n); err != nil {
		return nil, err
	}
	ch := f.inner.Channels()
	out := make([]float32, (to-from)*ch)
	avail := f.inner.Len()
	if from >= avail {
		return out, nil
	}
	stop := min(to, avail)
	samples, err := f.inner.ReadFrames(from, stop)
	if err != nil {
		return nil, err
	}
	copy(out, samples)
	return out, nil
}

type audioGain struct {
	inner AudioStream
	gain  float32
}

// Gain returns a view of a scaled by g and clamped to [-1, 1].
func Gain(a AudioStream, g float64) AudioStream {
	return &audioGain{inner: a, gain: float32(g)}
}

func (g *audioGain) SampleRate() int { return g.inner.SampleRate() }
func (g *audioGain) Channels() int   { return g.inner.Channels() }
func (g *audioGain) Len() int        { return g.inner.Len() }

func (g *audioGain) ReadFrames(from, to int) ([]float32, error) {
	samples, err := g.inner.ReadFrames(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = clampSample(s * g.gain)
	}
	return out, nil
}

type audioRetime struct {
	inner AudioStream
	speed float64
	n     int
}

// RetimeAudio returns a view of a played at speed by nearest-sample
// decimation or repetition. Pitch is not preserved.
func RetimeAudio(a AudioStream, speed float64) AudioStream {
	return &audioRetime{inner: a, speed: speed, n: int(float64(a.Len()) / speed)}
}

func (r *audioRetime) SampleRate() int { return r.inner.SampleRate() }
func (r *audioRetime) Channels() int   { return r.inner.Channels() }
func (r *audioRetime) Len() int        { return r.n }

func (r *audioRetime) ReadFrames(from, to int) ([]float32, error) {
	if err := checkFrames(from, to, r.n); err != nil {
		return nil, err
	}
	if from == to {
		return []float32{}, nil
	}
	return readMapped(r.inner, from, to, func(i int) float64 { return float64(i) * r.speed })
}

type resampled struct {
	inner AudioStream
	rate  int
	ratio float64
	n     int
}

// Resample returns a view of a converted to rate by linear interpolation.
func Resample(a AudioStream, rate int) AudioStream {
	if a.SampleRate() == rate {
		return a
	}
	ratio := float64(a.SampleRate()) / float64(rate)
	return &resampled{inner: a, rate: rate, ratio: ratio, n: int(math.Round(float64(a.Len()) / ratio))}
}

func (r *resampled) SampleRate() int { return r.rate }
func (r *resampled) Channels() int   { return r.inner.Channels() }
func (r *resampled) Len() int        { return r.n }

func (r *resampled) ReadFrames(from, to int) ([]float32, error) {
	if err := checkFrames(from, to, r.n); err != nil {
		return nil, err
	}
	if from == to {
		return []float32{}, nil
	}
	return readMapped(r.inner, from, to, func(i int) float64 { return float64(i) * r.ratio })
}

// readMapped reads output frames [from, to) where output frame i sits at
// fractional source position pos(i); positions between two source frames
// are linearly interpolated.
func readMapped(inner AudioStream, from, to int, pos func(int) float64) ([]float32, error) {
	ch := inner.Channels()
	last := inner.Len() - 1
	out := make([]float32, (to-from)*ch)
	if last < 0 {
		return out, nil
	}

	lo := clampInt(int(math.Floor(pos(from))), 0, last)
	hi := clampInt(int(math.Floor(pos(to-1)))+1, 0, last)
	src, err := inner.ReadFrames(lo, hi+1)
	if err != nil {
		return nil, err
	}

	for i := from; i < to; i++ {
		p := pos(i)
		i0 := clampInt(int(math.Floor(p)), lo, hi)
		i1 := clampInt(i0+1, lo, hi)
		frac := float32(p - float64(i0))
		if frac < 0 || i1 == i0 {
			frac = 0
		}
		for c := 0; c < ch; c++ {
			a := src[(i0-lo)*ch+c]
			b := src[(i1-lo)*ch+c]
			out[(i-from)*ch+c] = a + (b-a)*frac
		}
	}
	return out, nil
}

type remixed struct {
	inner    AudioStream
	channels int
}

// Remix returns a view of a with the given channel count. Mono is spread to
// every output channel; anything else is averaged down to mono first.
func Remix(a AudioStream, channels int) AudioStream {
	if a.Channels() == channels {
		return a
	}
	return &remixed{inner: a, channels: channels}
}

func (r *remixed) SampleRate() int { return r.inner.SampleRate() }
func (r *remixed) Channels() int   { return r.channels }
func (r *remixed) Len() int        { return r.inner.Len() }

func (r *remixed) ReadFrames(from, to int) ([]float32, error) {
	samples, err := r.inner.ReadFrames(from, to)
	if err != nil {
		return nil, err
	}
	in := r.inner.Channels()
	out := make([]float32, (to-from)*r.channels)
	for f := 0; f < to-from; f++ {
		var sum float32
		for c := 0; c < in; c++ {
			sum += samples[f*in+c]
		}
		mono := sum / float32(in)
		for c := 0; c < r.channels; c++ {
			out[f*r.channels+c] = mono
		}
	}
	return out, nil
}

type mix struct {
	inputs []AudioStream
	n      int
}

// Sum returns the sample-wise sum of one or more streams, clamped to
// [-1, 1]. All streams must share a sample rate and channel count; the
// result is as long as the shortest input.
func Sum(streams ...AudioStream) AudioStream {
	n := 0
	for i, s := range streams {
		if i == 0 || s.Len() < n {
			n = s.Len()
		}
	}
	return &mix{inputs: streams, n: n}
}

func (m *mix) SampleRate() int { return m.inputs[0].SampleRate() }
func (m *mix) Channels() int   { return m.inputs[0].Channels() }
func (m *mix) Len() int        { return m.n }

func (m *mix) ReadFrames(from, to int) ([]float32, error) {
	if err := checkFrames(from, to, m.n); err != nil {
		return nil, err
	}
	out := make([]float32, (to-from)*m.Channels())
	for _, in := range m.inputs {
		samples, err := in.ReadFrames(from, to)
		if err != nil {
			return nil, err
		}
		for i, s := range samples {
			out[i] += s
		}
	}
	for i := range out {
		out[i] = clampSample(out[i])
	}
	return out, nil
}

func clampSample(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	case s != s:
		return 0
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
