package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/fiora/internal/audio"
	"github.com/kikiluvv/fiora/internal/edit"
	"github.com/kikiluvv/fiora/internal/effects"
	"github.com/kikiluvv/fiora/internal/media"
)

const (
	testFPS  = 10
	testRate = 100
)

// testSource returns a 10fps video whose red channel holds the frame index
// and, when withAudio is set, a mono ramp whose sample i is i/10000.
func testSource(seconds int, withAudio bool) *media.Source {
	frames := make([]*image.RGBA, seconds*testFPS)
	for i := range frames {
		frames[i] = media.SolidFrame(4, 2, color.RGBA{R: uint8(i), G: 100, B: 50, A: 255})
	}
	var a media.AudioStream
	if withAudio {
		samples := make([]float32, seconds*testRate)
		for i := range samples {
			samples[i] = float32(i) / 10000
		}
		a = media.NewPCM(testRate, 1, samples)
	}
	return media.NewSource(media.Info{Path: "test.mp4"}, media.NewFrames(testFPS, frames...), a, nil)
}

// colourSource is a 1s source of one colour.
func colourSource(c color.RGBA) *media.Source {
	frames := make([]*image.RGBA, testFPS)
	for i := range frames {
		frames[i] = media.SolidFrame(3, 2, c)
	}
	return media.NewSource(media.Info{Path: "colour.mp4"}, media.NewFrames(testFPS, frames...), nil, nil)
}

func newPipeline(resample bool) *Pipeline {
	return New(zerolog.Nop(), audio.NewMixer(zerolog.Nop(), resample))
}

func mustState(t *testing.T, src *media.Source, edits ...func(*edit.State) error) edit.State {
	t.Helper()
	st := edit.New(src.Duration())
	for _, e := range edits {
		if err := e(&st); err != nil {
			t.Fatalf("edit: %v", err)
		}
	}
	return st
}

func trim(start, end float64) func(*edit.State) error {
	return func(s *edit.State) error { return s.SetTrim(start, end) }
}

func adjust(a edit.Adjustment, v float64) func(*edit.State) error {
	return func(s *edit.State) error { return s.SetAdjustment(a, v) }
}

func filter(f edit.Filter) func(*edit.State) error {
	return func(s *edit.State) error { return s.AddFilter(f) }
}

func pixelAt(t *testing.T, v interface {
	FrameAt(float64) (*image.RGBA, error)
}, at float64) color.RGBA {
	t.Helper()
	frame, err := v.FrameAt(at)
	if err != nil {
		t.Fatalf("FrameAt(%v): %v", at, err)
	}
	return frame.RGBAAt(0, 0)
}

func TestRebuildTrim(t *testing.T) {
	src := testSource(10, true)
	st := mustState(t, src, trim(2, 8))

	clip, err := newPipeline(true).Rebuild(Input{Source: src, State: st})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if clip.Duration() != 6 {
		t.Errorf("video duration = %v, want 6", clip.Duration())
	}
	if got := pixelAt(t, clip, 0).R; got != 20 {
		t.Errorf("first frame is source frame %d, want 20", got)
	}
	if !clip.HasAudio() {
		t.Fatal("expected embedded audio")
	}
	if got := media.AudioDuration(clip.Audio); got != 6 {
		t.Errorf("audio duration = %v, want 6", got)
	}
	first, _ := clip.Audio.ReadFrames(0, 1)
	if first[0] != float32(200)/10000 {
		t.Errorf("audio starts at %v, want the sample at 2s", first[0])
	}
}

func TestRebuildWithoutAudio(t *testing.T) {
	src := testSource(2, false)
	clip, err := newPipeline(true).Rebuild(Input{Source: src, State: edit.New(src.Duration())})
	if err != nil {
		t.Fatal(err)
	}
	if clip.HasAudio() {
		t.Error("clip has audio although source has none")
	}
}

func TestRebuildSpeed(t *testing.T) {
	src := testSource(10, true)

	tests := []struct {
		speed    float64
		wantDur  float64
		at       float64
		wantRed  uint8
		wantLenA int
	}{
		{2, 3, 1, 40, 300},
		{0.5, 12, 2, 30, 1200},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.speed), func(t *testing.T) {
			st := mustState(t, src, trim(2, 8), adjust(edit.Speed, tt.speed))
			clip, err := newPipeline(true).Rebuild(Input{Source: src, State: st})
			if err != nil {
				t.Fatal(err)
			}
			if clip.Duration() != tt.wantDur {
				t.Errorf("duration = %v, want %v", clip.Duration(), tt.wantDur)
			}
			if clip.Duration() != st.RenderedDuration() {
				t.Errorf("clip duration %v disagrees with state %v", clip.Duration(), st.RenderedDuration())
			}
			if got := pixelAt(t, clip, tt.at).R; got != tt.wantRed {
				t.Errorf("frame at %vs = %d, want %d", tt.at, got, tt.wantRed)
			}
			if clip.Audio.Len() != tt.wantLenA {
				t.Errorf("audio frames = %d, want %d", clip.Audio.Len(), tt.wantLenA)
			}
		})
	}
}

func TestInvalidSpeed(t *testing.T) {
	src := testSource(2, false)
	for _, speed := range []float64{0, -1, math.Inf(1), math.NaN(), 1e-300} {
		st := mustState(t, src, adjust(edit.Speed, speed))
		_, err := newPipeline(true).Rebuild(Input{Source: src, State: st})

		var re *RenderError
		if !errors.As(err, &re) || re.Stage != StageSpeed {
			t.Errorf("speed %v: expected speed stage error, got %v", speed, err)
		}
	}
}

func TestRedGainSaturates(t *testing.T) {
	src := colourSource(color.RGBA{R: 200, G: 100, B: 50, A: 255})
	st := mustState(t, src, adjust(edit.RedGain, 2))

	clip, err := newPipeline(true).Rebuild(Input{Source: src, State: st})
	if err != nil {
		t.Fatal(err)
	}
	want := color.RGBA{R: 255, G: 100, B: 50, A: 255}
	if got := pixelAt(t, clip, 0.5); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTonalRunsBeforeFilters(t *testing.T) {
	src := colourSource(color.RGBA{R: 100, G: 100, B: 100, A: 255})
	// added in the opposite order to how the stages run
	st := mustState(t, src, filter(edit.Grayscale), adjust(edit.RedGain, 2))

	clip, err := newPipeline(true).Rebuild(Input{Source: src, State: st})
	if err != nil {
		t.Fatal(err)
	}
	// gain first gives (200,100,100), whose luma is 129.9
	want := color.RGBA{R: 130, G: 130, B: 130, A: 255}
	if got := pixelAt(t, clip, 0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// reference applies the same edits one transform at a time, in the order
// the renderer documents.
func reference(src *image.RGBA, st edit.State) *image.RGBA {
	out := src
	if b, c := st.Adjustment(edit.Brightness), st.Adjustment(edit.Contrast); b != 0 || c != 0 {
		out = effects.Uniform(effects.LuminanceContrast(b, c)).Apply(out)
	}
	if g := st.Adjustment(edit.Gamma); g != 1 {
		out = effects.Uniform(effects.Gamma(g)).Apply(out)
	}
	out = effects.ChannelLUT{
		R: effects.Gain(st.Adjustment(edit.RedGain)),
		G: effects.Gain(st.Adjustment(edit.GreenGain)),
		B: effects.Gain(st.Adjustment(edit.BlueGain)),
	}.Apply(out)
	for _, f := range st.Filters() {
		switch f {
		case edit.Grayscale:
			out = effects.Grayscale(out)
		case edit.InvertColors:
			out = effects.Invert(out)
		case edit.MirrorHorizontal:
			out = effects.MirrorHorizontal(out)
		}
	}
	return out
}

func TestMatchesReferenceComposition(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 3, 1))
	base.SetRGBA(0, 0, color.RGBA{R: 10, G: 120, B: 240, A: 255})
	base.SetRGBA(1, 0, color.RGBA{R: 90, G: 91, B: 92, A: 200})
	base.SetRGBA(2, 0, color.RGBA{R: 250, G: 3, B: 77, A: 255})
	src := media.NewSource(media.Info{Path: "ref.mp4"}, media.NewFrames(testFPS, base, base), nil, nil)

	orders := [][]edit.Filter{
		{edit.Grayscale, edit.InvertColors, edit.MirrorHorizontal},
		{edit.MirrorHorizontal, edit.InvertColors},
		{edit.InvertColors, edit.Grayscale},
	}
	for i, order := range orders {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			edits := []func(*edit.State) error{
				adjust(edit.Brightness, 0.1),
				adjust(edit.Contrast, 0.3),
				adjust(edit.Gamma, 0.8),
				adjust(edit.BlueGain, 1.4),
			}
			for _, f := range order {
				edits = append(edits, filter(f))
			}
			st := mustState(t, src, edits...)

			clip, err := newPipeline(true).Rebuild(Input{Source: src, State: st})
			if err != nil {
				t.Fatal(err)
			}
			got, _ := clip.FrameAt(0)
			want := reference(base, st)
			if string(got.Pix) != string(want.Pix) {
				t.Errorf("rendered %v, reference %v", got.Pix, want.Pix)
			}
		})
	}
}

func TestAdjustmentsDoNotCompound(t *testing.T) {
	src := colourSource(color.RGBA{R: 100, G: 100, B: 100, A: 255})
	p := newPipeline(true)

	st := mustState(t, src)
	for _, v := range []float64{0.5, 0.3, 0.1} {
		if err := st.SetAdjustment(edit.Brightness, v); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Rebuild(Input{Source: src, State: st}); err != nil {
			t.Fatal(err)
		}
	}
	edited, _ := p.Rebuild(Input{Source: src, State: st})
	direct, _ := p.Rebuild(Input{Source: src, State: mustState(t, src, adjust(edit.Brightness, 0.1))})

	if a, b := pixelAt(t, edited, 0), pixelAt(t, direct, 0); a != b {
		t.Errorf("repeated edits rendered %v, single edit %v", a, b)
	}
}

func TestSourceUntouched(t *testing.T) {
	src := colourSource(color.RGBA{R: 100, G: 100, B: 100, A: 255})
	st := mustState(t, src, filter(edit.InvertColors), adjust(edit.Gamma, 2))

	clip, err := newPipeline(true).Rebuild(Input{Source: src, State: st})
	if err != nil {
		t.Fatal(err)
	}
	_ = pixelAt(t, clip, 0)

	if got := pixelAt(t, src.Video(), 0); got != (color.RGBA{R: 100, G: 100, B: 100, A: 255}) {
		t.Errorf("source frame changed to %v", got)
	}
}

// brokenVideo fails for frames after the first good ones.
type brokenVideo struct {
	media.VideoStream
	good int
}

var errCorrupt = errors.New("corrupt packet")

func (b *brokenVideo) FrameAt(t float64) (*image.RGBA, error) {
	if media.FrameIndex(t, b.FrameRate(), 1<<30) >= b.good {
		return nil, errCorrupt
	}
	return b.VideoStream.FrameAt(t)
}

func TestCorruptFrameFailsRebuild(t *testing.T) {
	inner := testSource(2, false).Video()
	src := media.NewSource(media.Info{Path: "broken.mp4"}, &brokenVideo{VideoStream: inner, good: 15}, nil, nil)
	st := mustState(t, src, filter(edit.Grayscale))

	_, err := newPipeline(true).Rebuild(Input{Source: src, State: st})
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if re.Stage != StageBase || !errors.Is(err, errCorrupt) {
		t.Errorf("expected base stage wrapping the decode error, got %v", err)
	}

	// trimmed to the readable part it renders
	ok := mustState(t, src, trim(0, 1.5), filter(edit.Grayscale))
	if _, err := newPipeline(true).Rebuild(Input{Source: src, State: ok}); err != nil {
		t.Errorf("unexpected error for readable range: %v", err)
	}
}

func TestNoSource(t *testing.T) {
	_, err := newPipeline(true).Rebuild(Input{State: edit.New(1)})
	if !errors.Is(err, edit.ErrNoSourceLoaded) {
		t.Errorf("expected ErrNoSourceLoaded, got %v", err)
	}
}

func audioSource(rate, seconds int, v float32) *media.Source {
	samples := make([]float32, rate*seconds)
	for i := range samples {
		samples[i] = v
	}
	return media.NewSource(media.Info{Path: "track.wav"}, nil, media.NewPCM(rate, 1, samples), nil)
}

func TestExternalTrackPaddedToVideo(t *testing.T) {
	src := testSource(10, true)
	track := audioSource(testRate, 3, 0.5)
	st := mustState(t, src, trim(2, 8), func(s *edit.State) error { return s.AddTrack("track.wav", 3) })

	clip, err := newPipeline(true).Rebuild(Input{Source: src, State: st, Tracks: []*media.Source{track}})
	if err != nil {
		t.Fatal(err)
	}
	samples, err := clip.Audio.ReadFrames(0, clip.Audio.Len())
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 600 {
		t.Fatalf("expected 6s of audio, got %d frames", len(samples))
	}
	if samples[299] != 0.5 || samples[300] != 0 || samples[599] != 0 {
		t.Errorf("expected 3s of track then silence, got %v %v %v", samples[299], samples[300], samples[599])
	}
}

func TestMixErrorIsAudioStage(t *testing.T) {
	src := testSource(2, false)
	tracks := []*media.Source{audioSource(100, 2, 0.1), audioSource(200, 2, 0.1)}
	st := mustState(t, src,
		func(s *edit.State) error { return s.AddTrack("a", 2) },
		func(s *edit.State) error { return s.AddTrack("b", 2) },
	)

	_, err := newPipeline(false).Rebuild(Input{Source: src, State: st, Tracks: tracks})
	var re *RenderError
	var me *audio.MixError
	if !errors.As(err, &re) || re.Stage != StageAudio || !errors.As(err, &me) {
		t.Errorf("expected audio stage MixError, got %v", err)
	}
}

func TestTrackCountMismatch(t *testing.T) {
	src := testSource(2, false)
	st := mustState(t, src, func(s *edit.State) error { return s.AddTrack("a", 2) })

	_, err := newPipeline(true).Rebuild(Input{Source: src, State: st})
	var re *RenderError
	if !errors.As(err, &re) || re.Stage != StageAudio {
		t.Errorf("expected audio stage error, got %v", err)
	}
}
