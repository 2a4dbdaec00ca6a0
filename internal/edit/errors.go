package edit

import "errors"

var (
	ErrInvalidRange      = errors.New("invalid trim range")
	ErrUnknownAdjustment = errors.New("unknown adjustment")
	ErrUnknownFilter     = errors.New("unknown filter")
	ErrUnknownTrack      = errors.New("unknown audio track")
	ErrTooManyTracks     = errors.New("too many audio tracks")
	ErrNoSourceLoaded    = errors.New("no video loaded")
)
