package pipeline

import (
	"fmt"
	"image"
	"math"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/fiora/internal/audio"
	"github.com/kikiluvv/fiora/internal/clips"
	"github.com/kikiluvv/fiora/internal/edit"
	"github.com/kikiluvv/fiora/internal/effects"
	"github.com/kikiluvv/fiora/internal/media"
)

// Pipeline rebuilds a rendered clip from the pristine source and an edit
// state. It holds no per-edit state of its own.
type Pipeline struct {
	logger zerolog.Logger
	mixer  *audio.Mixer
}

// New creates a new pipeline instance
func New(logger zerolog.Logger, mixer *audio.Mixer) *Pipeline {
	return &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		mixer:  mixer,
	}
}

// Rebuild renders in.State over in.Source. Stages run in a fixed order
// (base, tonal, filter, speed, audio) regardless of the order the edits were
// made in; filters keep their insertion order within the filter stage.
func (p *Pipeline) Rebuild(in Input) (*clips.Clip, error) {
	if in.Source == nil || in.Source.Video() == nil {
		return nil, &RenderError{Stage: StageBase, Err: edit.ErrNoSourceLoaded}
	}
	st := in.State

	// Stage 1: fresh view of the source over the trim window
	start, end := st.Trim()
	if !(start >= 0 && start < end && end <= in.Source.Duration()) {
		return nil, &RenderError{Stage: StageBase, Err: fmt.Errorf("%w: [%v, %v) of %vs", edit.ErrInvalidRange, start, end, in.Source.Duration())}
	}
	video, primary := in.Source.Subrange(start, end)
	video = tagged(video, StageBase)

	// Stage 2: tonal adjustments, compiled to one table per channel
	if lut, ok := tonalLUT(st); ok {
		video = tagged(media.MapFrames(video, func(f *image.RGBA) (*image.RGBA, error) {
			return lut.Apply(f), nil
		}), StageTonal)
	}

	// Stage 3: filters in insertion order
	for _, f := range st.Filters() {
		fn, err := filterFunc(f)
		if err != nil {
			return nil, &RenderError{Stage: StageFilter, Err: err}
		}
		video = tagged(media.MapFrames(video, func(frame *image.RGBA) (*image.RGBA, error) {
			return fn(frame), nil
		}), StageFilter)
	}

	// Stage 4: speed
	speed := st.Adjustment(edit.Speed)
	if speed != 1 {
		if !(speed > 0) || math.IsInf(speed, 0) {
			return nil, &RenderError{Stage: StageSpeed, Err: fmt.Errorf("speed must be positive and finite, got %v", speed)}
		}
		rendered := video.Duration() / speed
		for _, rate := range streamRates(video, primary, in.Tracks) {
			if !(rendered*rate < maxRenderedUnits) {
				return nil, &RenderError{Stage: StageSpeed, Err: fmt.Errorf("speed %v renders %.3gs, too long to index", speed, rendered)}
			}
		}
		video = tagged(media.Retime(video, speed), StageSpeed)
		if primary != nil {
			primary = media.RetimeAudio(primary, speed)
		}
	}

	// Stage 5: soundtrack
	tracks := st.Tracks()
	if len(tracks) != len(in.Tracks) {
		return nil, &RenderError{Stage: StageAudio, Err: fmt.Errorf("%d tracks in edit state but %d opened", len(tracks), len(in.Tracks))}
	}
	req := audio.Request{
		Primary:  primary,
		Volume:   st.Adjustment(edit.Volume),
		Duration: video.Duration(),
	}
	for i, src := range in.Tracks {
		if src == nil || src.Audio() == nil {
			return nil, &RenderError{Stage: StageAudio, Err: fmt.Errorf("track %d (%s) has no audio", i, tracks[i].Name)}
		}
		req.Tracks = append(req.Tracks, audio.Track{Name: tracks[i].Name, Stream: src.Audio(), Gain: tracks[i].Gain})
	}
	soundtrack, err := p.mixer.Mix(req)
	if err != nil {
		return nil, &RenderError{Stage: StageAudio, Err: err}
	}

	clip := clips.New(video, soundtrack, start, end, speed)

	// Frame transforms run lazily; read both ends now so a bad frame fails
	// the edit instead of a later preview.
	for _, t := range []float64{0, clip.LastFrameTime()} {
		if _, err := clip.FrameAt(t); err != nil {
			return nil, stageError(StageBase, err)
		}
	}

	p.logger.Debug().
		Str("clip_id", clip.ID).
		Float64("trim_start", start).
		Float64("trim_end", end).
		Float64("speed", speed).
		Int("filters", len(st.Filters())).
		Int("tracks", len(tracks)).
		Float64("duration", clip.Duration()).
		Msg("rebuilt clip")

	return clip, nil
}

// maxRenderedUnits bounds rendered frame and sample counts so they convert
// to int exactly.
const maxRenderedUnits = 1 << 53

// streamRates returns the frame rate and every audio sample rate a rebuild
// indexes by.
func streamRates(video media.VideoStream, primary media.AudioStream, tracks []*media.Source) []float64 {
	rates := []float64{video.FrameRate()}
	if primary != nil {
		rates = append(rates, float64(primary.SampleRate()))
	}
	for _, src := range tracks {
		if src != nil && src.Audio() != nil {
			rates = append(rates, float64(src.Audio().SampleRate()))
		}
	}
	return rates
}

// tonalLUT folds luminance/contrast, gamma and channel gain into one table
// per channel, in that order. ok is false when every tonal value is neutral.
func tonalLUT(st edit.State) (effects.ChannelLUT, bool) {
	lut := effects.IdentityChannels()
	changed := false

	brightness, contrast := st.Adjustment(edit.Brightness), st.Adjustment(edit.Contrast)
	if brightness != 0 || contrast != 0 {
		lut = lut.Then(effects.Uniform(effects.LuminanceContrast(brightness, contrast)))
		changed = true
	}

	if gamma := st.Adjustment(edit.Gamma); gamma != 1 {
		lut = lut.Then(effects.Uniform(effects.Gamma(gamma)))
		changed = true
	}

	r, g, b := st.Adjustment(edit.RedGain), st.Adjustment(edit.GreenGain), st.Adjustment(edit.BlueGain)
	if r != 1 || g != 1 || b != 1 {
		lut = lut.Then(effects.ChannelLUT{R: effects.Gain(r), G: effects.Gain(g), B: effects.Gain(b)})
		changed = true
	}

	return lut, changed
}

func filterFunc(f edit.Filter) (func(*image.RGBA) *image.RGBA, error) {
	switch f {
	case edit.Grayscale:
		return effects.Grayscale, nil
	case edit.InvertColors:
		return effects.Invert, nil
	case edit.MirrorHorizontal:
		return effects.MirrorHorizontal, nil
	default:
		return nil, fmt.Errorf("%w: %v", edit.ErrUnknownFilter, f)
	}
}

type stageStream struct {
	media.VideoStream
	stage Stage
}

// tagged wraps v so errors from FrameAt are attributed to stage.
func tagged(v media.VideoStream, stage Stage) media.VideoStream {
	return &stageStream{VideoStream: v, stage: stage}
}

func (s *stageStream) FrameAt(t float64) (*image.RGBA, error) {
	frame, err := s.VideoStream.FrameAt(t)
	if err != nil {
		return nil, stageError(s.stage, err)
	}
	return frame, nil
}
