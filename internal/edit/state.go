// Package edit holds the description of what the user asked for: the trim
// window, the numeric adjustments, the filter stack and the external audio
// tracks. It never holds frame data.
package edit

import (
	"fmt"
	"math"
	"slices"
)

// MaxTracks bounds the number of external audio tracks.
const MaxTracks = 8

// Track is an external audio source mixed into the soundtrack.
type Track struct {
	Name     string
	Duration float64
	Gain     float64
}

// State is a value type; copy it with Clone before mutating a copy so the
// filter and track slices are not shared.
type State struct {
	duration    float64
	trimStart   float64
	trimEnd     float64
	adjustments [adjustmentCount]float64
	filters     []Filter
	tracks      []Track
}

// New returns the load-time state for a source of the given duration: the
// full source, neutral adjustments, no filters and no tracks.
func New(duration float64) State {
	s := State{duration: duration, trimEnd: duration}
	for _, a := range Adjustments() {
		s.adjustments[a] = a.Neutral()
	}
	return s
}

func (s State) Clone() State {
	c := s
	c.filters = slices.Clone(s.filters)
	c.tracks = slices.Clone(s.tracks)
	return c
}

// SourceDuration is the duration of the source the state was created for.
func (s State) SourceDuration() float64 { return s.duration }

func (s State) Trim() (start, end float64) { return s.trimStart, s.trimEnd }

// Adjustment returns the current value of a, or 0 for an invalid key.
func (s State) Adjustment(a Adjustment) float64 {
	if !a.Valid() {
		return 0
	}
	return s.adjustments[a]
}

func (s State) Filters() []Filter { return slices.Clone(s.filters) }

func (s State) HasFilter(f Filter) bool { return slices.Contains(s.filters, f) }

func (s State) Tracks() []Track { return slices.Clone(s.tracks) }

// RenderedDuration is the length of the clip this state renders to.
func (s State) RenderedDuration() float64 {
	return (s.trimEnd - s.trimStart) / s.adjustments[Speed]
}

// Equal reports whether two states describe the same edit.
func (s State) Equal(o State) bool {
	return s.duration == o.duration &&
		s.trimStart == o.trimStart &&
		s.trimEnd == o.trimEnd &&
		s.adjustments == o.adjustments &&
		slices.Equal(s.filters, o.filters) &&
		slices.Equal(s.tracks, o.tracks)
}

// SetTrim sets the trim window. An end past the source is clamped to the
// source duration.
func (s *State) SetTrim(start, end float64) error {
	if end > s.duration {
		end = s.duration
	}
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || start < 0 || start >= end {
		return fmt.Errorf("%w: [%v, %v) of %vs", ErrInvalidRange, start, end, s.duration)
	}
	s.trimStart, s.trimEnd = start, end
	return nil
}

// SetAdjustment records value for a. Any float is accepted; values the
// renderer cannot use (such as a non-positive speed) fail at rebuild.
func (s *State) SetAdjustment(a Adjustment, value float64) error {
	if !a.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownAdjustment, a)
	}
	s.adjustments[a] = value
	return nil
}

// AddFilter appends f to the filter stack. Adding a filter already in the
// stack is a no-op and keeps its position.
func (s *State) AddFilter(f Filter) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %v", ErrUnknownFilter, f)
	}
	if !s.HasFilter(f) {
		s.filters = append(s.filters, f)
	}
	return nil
}

// AddTrack appends an external audio track at unity gain.
func (s *State) AddTrack(name string, duration float64) error {
	if len(s.tracks) >= MaxTracks {
		return fmt.Errorf("%w: limit is %d", ErrTooManyTracks, MaxTracks)
	}
	s.tracks = append(s.tracks, Track{Name: name, Duration: duration, Gain: 1})
	return nil
}

func (s *State) SetTrackGain(index int, gain float64) error {
	if index < 0 || index >= len(s.tracks) {
		return fmt.Errorf("%w: index %d of %d", ErrUnknownTrack, index, len(s.tracks))
	}
	s.tracks[index].Gain = gain
	return nil
}

// Reset restores the load-time state for the same source.
func (s *State) Reset() {
	*s = New(s.duration)
}
