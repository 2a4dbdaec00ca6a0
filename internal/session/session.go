// Package session is the editing API a front end drives: it owns the loaded
// source, the edit state and the current rendered clip, and rebuilds the
// clip on every accepted edit.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/fiora/internal/clips"
	"github.com/kikiluvv/fiora/internal/edit"
	"github.com/kikiluvv/fiora/internal/media"
	"github.com/kikiluvv/fiora/internal/pipeline"
)

// ErrExportRunning is returned by Load while a background export still
// reads the current source.
var ErrExportRunning = errors.New("export in progress")

// Engine opens and encodes media.
type Engine interface {
	OpenVideo(ctx context.Context, path string) (*media.Source, error)
	OpenAudio(ctx context.Context, path string) (*media.Source, error)
	Encoder
}

// Prober is implemented by engines that can check a file is usable without
// keeping it open.
type Prober interface {
	Probe(ctx context.Context, path string) (media.Info, error)
}

// Session is not safe for concurrent use. Background exports only read the
// clip they were started with.
type Session struct {
	logger   zerolog.Logger
	engine   Engine
	pipeline *pipeline.Pipeline
	exporter *Exporter

	source *media.Source
	tracks []*media.Source
	state  edit.State
	clip   *clips.Clip

	jobs    []*ExportJob
	retired []*media.Source
}

// New creates a session with nothing loaded.
func New(logger zerolog.Logger, engine Engine, p *pipeline.Pipeline) *Session {
	return &Session{
		logger:   logger.With().Str("component", "session").Logger(),
		engine:   engine,
		pipeline: p,
		exporter: NewExporter(logger, engine),
	}
}

// Load opens path as the session's video. The file is probed first so a
// bad file leaves the current session intact; then every handle of the
// current session is released before the new file is opened.
func (s *Session) Load(ctx context.Context, path string) error {
	s.sweep()
	if s.exporting() {
		return ErrExportRunning
	}

	if p, ok := s.engine.(Prober); ok {
		if _, err := p.Probe(ctx, path); err != nil {
			return err
		}
	}

	s.release()

	src, err := s.engine.OpenVideo(ctx, path)
	if err != nil {
		return err
	}
	state := edit.New(src.Duration())
	clip, err := s.pipeline.Rebuild(pipeline.Input{Source: src, State: state})
	if err != nil {
		_ = src.Close()
		return err
	}

	s.source, s.state, s.clip = src, state, clip

	s.logger.Info().
		Str("path", path).
		Float64("duration", src.Duration()).
		Float64("fps", src.FrameRate()).
		Bool("has_audio", src.HasAudio()).
		Msg("video loaded")

	return nil
}

// LoadAudio adds an external audio track. External tracks replace the
// embedded audio of the video in the mix.
func (s *Session) LoadAudio(ctx context.Context, path string) error {
	s.sweep()
	if s.source == nil {
		return edit.ErrNoSourceLoaded
	}

	track, err := s.engine.OpenAudio(ctx, path)
	if err != nil {
		return err
	}

	next := s.state.Clone()
	if err := next.AddTrack(path, track.Duration()); err != nil {
		_ = track.Close()
		return err
	}
	tracks := append(append([]*media.Source(nil), s.tracks...), track)
	if err := s.commit(next, tracks); err != nil {
		_ = track.Close()
		return err
	}

	s.logger.Info().
		Str("path", path).
		Float64("duration", track.Duration()).
		Int("tracks", len(tracks)).
		Msg("audio track loaded")

	return nil
}

// SetTrim sets the trim window in source seconds.
func (s *Session) SetTrim(start, end float64) error {
	return s.apply(func(st *edit.State) error { return st.SetTrim(start, end) })
}

// SetAdjustment sets an adjustment by name.
func (s *Session) SetAdjustment(name string, value float64) error {
	a, err := edit.ParseAdjustment(name)
	if err != nil {
		return err
	}
	return s.Adjust(a, value)
}

func (s *Session) Adjust(a edit.Adjustment, value float64) error {
	return s.apply(func(st *edit.State) error { return st.SetAdjustment(a, value) })
}

// AddFilter appends a filter by name.
func (s *Session) AddFilter(name string) error {
	f, err := edit.ParseFilter(name)
	if err != nil {
		return err
	}
	return s.ApplyFilter(f)
}

func (s *Session) ApplyFilter(f edit.Filter) error {
	return s.apply(func(st *edit.State) error { return st.AddFilter(f) })
}

func (s *Session) SetTrackGain(index int, gain float64) error {
	return s.apply(func(st *edit.State) error { return st.SetTrackGain(index, gain) })
}

// Reset discards every edit and external track.
func (s *Session) Reset() error {
	s.sweep()
	if s.source == nil {
		return edit.ErrNoSourceLoaded
	}
	old := s.tracks
	next := s.state.Clone()
	next.Reset()
	if err := s.commit(next, nil); err != nil {
		return err
	}
	s.retire(old...)
	s.logger.Info().Msg("edits reset")
	return nil
}

// State returns a copy of the current edit state.
func (s *Session) State() edit.State { return s.state.Clone() }

// Source returns the loaded video, or nil.
func (s *Session) Source() *media.Source { return s.source }

// Clip returns the current rendered clip, or nil.
func (s *Session) Clip() *clips.Clip { return s.clip }

// FrameAt returns the rendered frame at t seconds. It never rebuilds.
func (s *Session) FrameAt(t float64) (*image.RGBA, error) {
	if s.clip == nil {
		return nil, edit.ErrNoSourceLoaded
	}
	return s.clip.FrameAt(t)
}

// Thumbnail returns the frame at t scaled to fit within maxWidth×maxHeight,
// preserving aspect ratio.
func (s *Session) Thumbnail(t float64, maxWidth, maxHeight uint) (image.Image, error) {
	frame, err := s.FrameAt(t)
	if err != nil {
		return nil, err
	}
	return resize.Thumbnail(maxWidth, maxHeight, frame, resize.Lanczos3), nil
}

// Close cancels running exports, waits for them and releases every handle.
func (s *Session) Close() error {
	for _, job := range s.jobs {
		job.Cancel()
		<-job.Done()
	}
	s.jobs = nil
	s.sweep()
	return s.release()
}

func (s *Session) apply(mutate func(*edit.State) error) error {
	s.sweep()
	if s.source == nil {
		return edit.ErrNoSourceLoaded
	}
	next := s.state.Clone()
	if err := mutate(&next); err != nil {
		return err
	}
	return s.commit(next, s.tracks)
}

// commit rebuilds from next and, only if that succeeds, makes next and the
// new clip current.
func (s *Session) commit(next edit.State, tracks []*media.Source) error {
	clip, err := s.pipeline.Rebuild(pipeline.Input{Source: s.source, State: next, Tracks: tracks})
	if err != nil {
		s.logger.Warn().Err(err).Msg("edit rejected")
		return err
	}
	s.state, s.tracks, s.clip = next, tracks, clip
	return nil
}

func (s *Session) release() error {
	var errs []error
	for _, t := range s.tracks {
		errs = append(errs, t.Close())
	}
	if s.source != nil {
		errs = append(errs, s.source.Close())
	}
	s.source, s.tracks, s.clip = nil, nil, nil
	s.state = edit.State{}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("release media: %w", err)
	}
	return nil
}

// retire closes sources dropped from the session once no export can still
// be reading them.
func (s *Session) retire(srcs ...*media.Source) {
	s.retired = append(s.retired, srcs...)
	s.sweep()
}

func (s *Session) sweep() {
	live := s.jobs[:0]
	for _, job := range s.jobs {
		select {
		case <-job.Done():
		default:
			live = append(live, job)
		}
	}
	s.jobs = live

	if len(s.jobs) > 0 {
		return
	}
	for _, src := range s.retired {
		_ = src.Close()
	}
	s.retired = nil
}

func (s *Session) exporting() bool {
	return len(s.jobs) > 0
}
