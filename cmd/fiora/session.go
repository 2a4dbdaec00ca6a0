package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kikiluvv/fiora/internal/audio"
	"github.com/kikiluvv/fiora/internal/config"
	"github.com/kikiluvv/fiora/internal/edit"
	"github.com/kikiluvv/fiora/internal/ffmpeg"
	"github.com/kikiluvv/fiora/internal/pipeline"
	"github.com/kikiluvv/fiora/internal/session"
	"github.com/kikiluvv/fiora/pkg/util"
)

// editFlags are the edits shared by every command that renders.
type editFlags struct {
	trim      string
	adjust    []string
	filters   []string
	audio     []string
	trackGain []string
}

func (f *editFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.trim, "trim", "", "keep START,END of the source (SS, MM:SS or HH:MM:SS)")
	flags.StringArrayVar(&f.adjust, "adjust", nil, "set an adjustment, name=value (repeatable)")
	flags.StringArrayVar(&f.filters, "filter", nil, "apply a filter: grayscale, invertColors, mirrorHorizontal (repeatable)")
	flags.StringArrayVar(&f.audio, "audio", nil, "add an external audio track, replacing embedded audio (repeatable)")
	flags.StringArrayVar(&f.trackGain, "track-gain", nil, "set an external track's gain, index=value (repeatable)")
}

// validate checks every flag parses, so a typo fails before any media is
// opened.
func (f *editFlags) validate() error {
	if f.trim != "" {
		if _, _, err := util.ParseRange(f.trim); err != nil {
			return fmt.Errorf("--trim: %w", err)
		}
	}
	for _, kv := range f.adjust {
		name, _, err := splitAssignment(kv)
		if err != nil {
			return fmt.Errorf("--adjust: %w", err)
		}
		if _, err := edit.ParseAdjustment(name); err != nil {
			return fmt.Errorf("--adjust: %w", err)
		}
	}
	for _, name := range f.filters {
		if _, err := edit.ParseFilter(name); err != nil {
			return fmt.Errorf("--filter: %w", err)
		}
	}
	for _, kv := range f.trackGain {
		key, _, err := splitAssignment(kv)
		if err != nil {
			return fmt.Errorf("--track-gain: %w", err)
		}
		if _, err := strconv.Atoi(key); err != nil {
			return fmt.Errorf("--track-gain: invalid track index %q", key)
		}
	}
	return nil
}

// apply replays the flags onto s in a fixed order: audio tracks, trim,
// adjustments, filters, track gains.
func (f *editFlags) apply(ctx context.Context, s *session.Session) error {
	for _, path := range f.audio {
		if err := s.LoadAudio(ctx, path); err != nil {
			return err
		}
	}

	if f.trim != "" {
		start, end, err := util.ParseRange(f.trim)
		if err != nil {
			return fmt.Errorf("--trim: %w", err)
		}
		if err := s.SetTrim(start, end); err != nil {
			return err
		}
	}

	for _, kv := range f.adjust {
		name, value, err := splitAssignment(kv)
		if err != nil {
			return fmt.Errorf("--adjust: %w", err)
		}
		if err := s.SetAdjustment(name, value); err != nil {
			return err
		}
	}

	for _, name := range f.filters {
		if err := s.AddFilter(name); err != nil {
			return err
		}
	}

	for _, kv := range f.trackGain {
		key, gain, err := splitAssignment(kv)
		if err != nil {
			return fmt.Errorf("--track-gain: %w", err)
		}
		index, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("--track-gain: invalid track index %q", key)
		}
		if err := s.SetTrackGain(index, gain); err != nil {
			return err
		}
	}
	return nil
}

func splitAssignment(kv string) (string, float64, error) {
	key, raw, ok := strings.Cut(kv, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", 0, fmt.Errorf("expected key=value, got %q", kv)
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid value in %q: %w", kv, err)
	}
	return strings.TrimSpace(key), value, nil
}

// newEngine wires the ffmpeg engine from config.
func newEngine(cfg *config.Config) (*ffmpeg.Engine, error) {
	exec, err := ffmpeg.New(log.Logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, err
	}
	return ffmpeg.NewEngine(log.Logger, exec, ffmpeg.EngineOptions{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		TempDir:    cfg.TempDir,
	}), nil
}

// openSession loads input, applies the edit flags and returns the session.
// The caller closes it.
func openSession(ctx context.Context, input string, edits *editFlags) (*session.Session, error) {
	if err := edits.validate(); err != nil {
		return nil, err
	}
	cfg := config.FromContext(ctx)

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.TempDir != "" {
		if err := util.EnsureDir(cfg.TempDir); err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
	}

	mixer := audio.NewMixer(log.Logger, cfg.Audio.Resample)
	s := session.New(log.Logger, engine, pipeline.New(log.Logger, mixer))

	if err := s.Load(ctx, input); err != nil {
		return nil, err
	}
	if err := edits.apply(ctx, s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
