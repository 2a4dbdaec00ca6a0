package pipeline

import (
	"errors"
	"fmt"

	"github.com/kikiluvv/fiora/internal/edit"
	"github.com/kikiluvv/fiora/internal/media"
)

// Stage names one step of the rebuild.
type Stage int

const (
	StageBase Stage = iota + 1
	StageTonal
	StageFilter
	StageSpeed
	StageAudio
)

func (s Stage) String() string {
	switch s {
	case StageBase:
		return "base"
	case StageTonal:
		return "tonal"
	case StageFilter:
		return "filter"
	case StageSpeed:
		return "speed"
	case StageAudio:
		return "audio"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// RenderError reports the stage at which a rebuild failed.
type RenderError struct {
	Stage Stage
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s stage: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// stageError tags err with stage unless it already carries a stage.
func stageError(stage Stage, err error) error {
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	return &RenderError{Stage: stage, Err: err}
}

// Input is everything one rebuild reads.
type Input struct {
	Source *media.Source
	State  edit.State
	// Tracks are the opened external audio sources, index-aligned with
	// State.Tracks().
	Tracks []*media.Source
}
