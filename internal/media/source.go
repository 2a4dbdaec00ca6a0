package media

import (
	"image"
	"sync"
)

// Info describes an opened media file.
type Info struct {
	Path       string
	Duration   float64
	FrameRate  float64
	Width      int
	Height     int
	FrameCount int
	VideoCodec string
	AudioCodec string
	SampleRate int
	Channels   int
	HasVideo   bool
	HasAudio   bool
}

// Source is an opened, read-only media file. Video is nil for audio-only
// sources; Audio is nil when the file has no audio stream.
type Source struct {
	info  Info
	video VideoStream
	audio AudioStream

	closeOnce sync.Once
	closer    func() error
	closeErr  error
}

// NewSource wraps already opened streams. closer, if non-nil, releases the
// decoder resources behind them and runs at most once.
func NewSource(info Info, video VideoStream, audio AudioStream, closer func() error) *Source {
	info.HasVideo = video != nil
	info.HasAudio = audio != nil
	if video != nil {
		if info.Duration == 0 {
			info.Duration = video.Duration()
		}
		if info.FrameRate == 0 {
			info.FrameRate = video.FrameRate()
		}
		if info.Width == 0 && info.Height == 0 {
			size := video.Size()
			info.Width, info.Height = size.X, size.Y
		}
	} else if audio != nil && info.Duration == 0 {
		info.Duration = AudioDuration(audio)
	}
	if audio != nil {
		info.SampleRate = audio.SampleRate()
		info.Channels = audio.Channels()
	}
	return &Source{info: info, video: video, audio: audio, closer: closer}
}

func (s *Source) Info() Info { return s.info }
func (s *Source) Path() string { return s.info.Path }
func (s *Source) Duration() float64 { return s.info.Duration }
func (s *Source) FrameRate() float64 { return s.info.FrameRate }
func (s *Source) Size() image.Point { return image.Pt(s.info.Width, s.info.Height) }
func (s *Source) HasAudio() bool { return s.audio != nil }
func (s *Source) Video() VideoStream { return s.video }
func (s *Source) Audio() AudioStream { return s.audio }

// Subrange returns views of the video and audio over [start, end). Either
// view is nil when the source has no such stream.
func (s *Source) Subrange(start, end float64) (VideoStream, AudioStream) {
	var (
		v VideoStream
		a AudioStream
	)
	if s.video != nil {
		v = Subrange(s.video, start, end)
	}
	if s.audio != nil {
		a = SubrangeAudio(s.audio, start, end)
	}
	return v, a
}

// Close releases the decoder behind the source. Safe to call more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer()
		}
	})
	return s.closeErr
}
