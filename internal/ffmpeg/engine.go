package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/fiora/internal/media"
)

// EngineOptions configures decoding and encoding.
type EngineOptions struct {
	// SampleRate and Channels every audio stream is decoded to.
	SampleRate int
	Channels   int
	// TempDir holds intermediate audio during export. Empty means the
	// system temp directory.
	TempDir string
}

// Engine opens media files as frame and sample streams and encodes rendered
// clips, all through ffmpeg.
type Engine struct {
	logger zerolog.Logger
	exec   *Executor
	opts   EngineOptions
}

// NewEngine creates an engine on top of exec.
func NewEngine(logger zerolog.Logger, exec *Executor, opts EngineOptions) *Engine {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}
	return &Engine{
		logger: logger.With().Str("component", "engine").Logger(),
		exec:   exec,
		opts:   opts,
	}
}

// Probe reads the file's metadata without decoding it.
func (e *Engine) Probe(ctx context.Context, path string) (media.Info, error) {
	if info, err := os.Stat(path); err != nil {
		return media.Info{}, &media.SourceError{Kind: media.Unreadable, Path: path, Err: err}
	} else if info.IsDir() {
		return media.Info{}, &media.SourceError{Kind: media.Unreadable, Path: path, Err: errors.New("is a directory")}
	}

	vi, err := e.exec.ProbeVideo(ctx, path)
	if err != nil {
		return media.Info{}, classifyOpenError(path, err)
	}
	if !vi.HasVideo && !vi.HasAudio {
		return media.Info{}, &media.SourceError{Kind: media.UnsupportedFormat, Path: path, Err: errors.New("no audio or video stream")}
	}

	info := media.Info{
		Path:       path,
		Duration:   vi.Duration.Seconds(),
		FrameRate:  vi.FPS,
		Width:      vi.Width,
		Height:     vi.Height,
		FrameCount: vi.FrameCount,
		VideoCodec: vi.VideoCodec,
		AudioCodec: vi.AudioCodec,
		SampleRate: vi.SampleRate,
		Channels:   vi.Channels,
		HasVideo:   vi.HasVideo,
		HasAudio:   vi.HasAudio,
	}
	return info, nil
}

// OpenVideo opens path for frame-accurate reads. Embedded audio, if any, is
// decoded up front.
func (e *Engine) OpenVideo(ctx context.Context, path string) (*media.Source, error) {
	info, err := e.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if !info.HasVideo {
		return nil, &media.SourceError{Kind: media.UnsupportedFormat, Path: path, Err: errors.New("no video stream")}
	}
	if info.Duration <= 0 || info.FrameRate <= 0 || info.Width <= 0 || info.Height <= 0 {
		return nil, &media.SourceError{Kind: media.Corrupt, Path: path,
			Err: fmt.Errorf("unusable stream: %dx%d at %.3f fps for %.3fs", info.Width, info.Height, info.FrameRate, info.Duration)}
	}

	video := newVideoStream(e.logger, e.exec, info)

	// fail the open, not the first preview, when the video cannot decode
	if _, err := video.FrameAt(0); err != nil {
		_ = video.Close()
		return nil, &media.SourceError{Kind: media.Corrupt, Path: path, Err: err}
	}

	var audio media.AudioStream
	if info.HasAudio {
		pcm, err := e.decodeAudio(ctx, path)
		if err != nil {
			_ = video.Close()
			return nil, classifyOpenError(path, err)
		}
		audio = pcm
	}

	e.logger.Debug().
		Str("path", path).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FrameRate).
		Float64("duration", info.Duration).
		Bool("has_audio", info.HasAudio).
		Msg("opened video")

	return media.NewSource(info, video, audio, video.Close), nil
}

// OpenAudio decodes the first audio stream of path. Any video stream is
// ignored.
func (e *Engine) OpenAudio(ctx context.Context, path string) (*media.Source, error) {
	info, err := e.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if !info.HasAudio {
		return nil, &media.SourceError{Kind: media.UnsupportedFormat, Path: path, Err: errors.New("no audio stream")}
	}

	pcm, err := e.decodeAudio(ctx, path)
	if err != nil {
		return nil, classifyOpenError(path, err)
	}

	// the decoded length is authoritative
	info.Duration = media.AudioDuration(pcm)
	info.HasVideo = false
	return media.NewSource(info, nil, pcm, nil), nil
}

func (e *Engine) decodeAudio(ctx context.Context, path string) (*media.PCM, error) {
	samples, err := e.exec.DecodeAudio(ctx, path, e.opts.SampleRate, e.opts.Channels)
	if err != nil {
		return nil, err
	}
	return media.NewPCM(e.opts.SampleRate, e.opts.Channels, samples), nil
}
