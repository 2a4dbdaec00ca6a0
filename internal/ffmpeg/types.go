package ffmpeg

import (
	"io"
	"time"
)

// VideoInfo contains metadata about a media file
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	FrameCount int
	Bitrate    int64
	HasVideo   bool
	VideoCodec string
	HasAudio   bool
	AudioCodec string
	SampleRate int
	Channels   int
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	Stdin           io.Reader
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultThreads    = 4
)

// Default decode format for audio, shared by every opened track so they can
// be mixed without conversion.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)
