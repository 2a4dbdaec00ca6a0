// Package audio builds the soundtrack of a rendered clip from the embedded
// audio of the video and any external tracks.
package audio

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/fiora/internal/media"
)

// MixReason says why a mix could not be built.
type MixReason int

const (
	IncompatibleSampleRate MixReason = iota + 1
)

func (r MixReason) String() string {
	switch r {
	case IncompatibleSampleRate:
		return "incompatible sample rate"
	default:
		return fmt.Sprintf("MixReason(%d)", int(r))
	}
}

// MixError is returned when the contributing streams cannot be combined.
type MixError struct {
	Reason MixReason
	Track  string
	Want   int
	Got    int
}

func (e *MixError) Error() string {
	return fmt.Sprintf("mix %s: %s: want %d Hz, got %d Hz", e.Track, e.Reason, e.Want, e.Got)
}

// Track is one contributing stream.
type Track struct {
	Name   string
	Stream media.AudioStream
	Gain   float64
}

// Request describes one mix.
type Request struct {
	// Primary is the embedded audio, already trimmed and retimed. Nil when
	// the video has none.
	Primary media.AudioStream
	// Tracks are the external tracks. When any are present they replace
	// Primary.
	Tracks []Track
	// Volume scales the whole composite.
	Volume float64
	// Duration of the rendered clip in seconds.
	Duration float64
}

// Mixer aligns and sums audio streams to the rendered clip duration.
type Mixer struct {
	logger   zerolog.Logger
	resample bool
}

// NewMixer creates a mixer. With resample false, tracks whose sample rate
// differs from the first contributing stream are rejected.
func NewMixer(logger zerolog.Logger, resample bool) *Mixer {
	return &Mixer{
		logger:   logger.With().Str("component", "mixer").Logger(),
		resample: resample,
	}
}

// Mix returns the composited soundtrack, or nil when there is nothing to
// mix.
func (m *Mixer) Mix(req Request) (media.AudioStream, error) {
	inputs := req.Tracks
	if len(inputs) == 0 {
		if req.Primary == nil {
			return nil, nil
		}
		inputs = []Track{{Name: "embedded", Stream: req.Primary, Gain: 1}}
	}

	rate := inputs[0].Stream.SampleRate()
	channels := inputs[0].Stream.Channels()
	frames := int(math.Round(req.Duration * float64(rate)))

	aligned := make([]media.AudioStream, 0, len(inputs))
	for _, in := range inputs {
		s := in.Stream
		if s.SampleRate() != rate {
			if !m.resample {
				return nil, &MixError{Reason: IncompatibleSampleRate, Track: in.Name, Want: rate, Got: s.SampleRate()}
			}
			s = media.Resample(s, rate)
		}
		s = media.Remix(s, channels)
		s = media.Fit(s, frames)
		if in.Gain != 1 {
			s = media.Gain(s, in.Gain)
		}
		aligned = append(aligned, s)
	}

	out := media.Sum(aligned...)
	if req.Volume != 1 {
		out = media.Gain(out, req.Volume)
	}

	m.logger.Debug().
		Int("tracks", len(inputs)).
		Int("sample_rate", rate).
		Int("channels", channels).
		Int("frames", frames).
		Float64("volume", req.Volume).
		Msg("mixed soundtrack")

	return out, nil
}
