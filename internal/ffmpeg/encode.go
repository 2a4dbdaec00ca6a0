package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kikiluvv/fiora/internal/clips"
	"github.com/kikiluvv/fiora/internal/media"
	"github.com/kikiluvv/fiora/pkg/util"
)

// encodeParams is everything the encoder command line depends on.
type encodeParams struct {
	Width, Height int
	FPS           float64
	Duration      float64
	AudioPath     string
	SampleRate    int
	Channels      int
	Output        string
	Options       media.EncodeOptions
}

// Encode writes clip to output. Frames are rendered and piped to ffmpeg as
// raw RGBA; the soundtrack is staged in a temporary f32le file. The context
// is checked between frames. progress follows the frames ffmpeg reports as
// encoded, not the frames piped to it.
func (e *Engine) Encode(ctx context.Context, clip *clips.Clip, output string, opts media.EncodeOptions, progress media.ProgressFunc) error {
	if clip == nil {
		return fmt.Errorf("clip cannot be nil")
	}
	if output == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	size := clip.Size()
	params := encodeParams{
		Width:    size.X,
		Height:   size.Y,
		FPS:      clip.FrameRate(),
		Duration: clip.Duration(),
		Output:   output,
		Options:  opts,
	}

	if clip.Audio != nil {
		f, err := util.TempFile(e.opts.TempDir, "fiora-audio-", ".f32")
		if err != nil {
			return fmt.Errorf("failed to create audio temp file: %w", err)
		}
		defer util.CleanupFiles(f.Name())

		err = writePCM(ctx, f, clip.Audio)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to stage audio: %w", err)
		}
		params.AudioPath = f.Name()
		params.SampleRate = clip.Audio.SampleRate()
		params.Channels = clip.Audio.Channels()
	}

	total := clip.FrameCount()
	args := buildEncodeArgs(params)
	tracker := &encodeProgress{fn: progress, total: total}

	e.logger.Info().
		Str("clip_id", clip.ID).
		Str("output", output).
		Int("frames", total).
		Bool("audio", params.AudioPath != "").
		Msg("encoding")

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := writeFrames(gctx, pw, clip, total)
		pw.CloseWithError(err)
		return err
	})

	g.Go(func() error {
		err := e.exec.Run(gctx, RunOptions{
			Args:            args,
			Stdin:           pr,
			ProgressHandler: func(p *Progress) { tracker.report(p.Frame) },
			LogHandler: func(line string) {
				if !isProgressLine(line) {
					e.logger.Trace().Str("ffmpeg", line).Msg("encode")
				}
			},
		})
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.Close()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	tracker.report(total)

	e.logger.Info().Str("output", output).Msg("encode complete")
	return nil
}

// writeFrames renders every frame of clip in order and writes it to w.
func writeFrames(ctx context.Context, w io.Writer, clip *clips.Clip, total int) error {
	size := clip.Size()
	fps := clip.FrameRate()

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := clip.FrameAt(float64(i) / fps)
		if err != nil {
			return fmt.Errorf("render frame %d: %w", i, err)
		}
		if got := frame.Rect.Size(); got != size {
			return fmt.Errorf("frame %d is %v, stream is %v", i, got, size)
		}
		if _, err := w.Write(rawRGBA(frame)); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}

// encodeProgress forwards ffmpeg's encoded frame count, capped at total and
// never going backwards.
type encodeProgress struct {
	fn    media.ProgressFunc
	total int
	last  int
}

func (p *encodeProgress) report(frames int) {
	if p.fn == nil {
		return
	}
	frames = min(frames, p.total)
	if frames <= p.last {
		return
	}
	p.last = frames
	p.fn(frames, p.total)
}

// rawRGBA returns the tightly packed pixel bytes of img.
func rawRGBA(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == 4*w && img.Rect.Min == (image.Point{}) {
		return img.Pix[:4*w*h]
	}
	return media.CloneFrame(img).Pix
}

func buildEncodeArgs(p encodeParams) []string {
	opts := p.Options

	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-r", strconv.FormatFloat(p.FPS, 'f', -1, 64),
		"-i", "pipe:0",
	}
	if p.AudioPath != "" {
		args = append(args,
			"-f", "f32le",
			"-ar", strconv.Itoa(p.SampleRate),
			"-ac", strconv.Itoa(p.Channels),
			"-i", p.AudioPath,
		)
	}

	args = append(args, "-map", "0:v:0")
	if p.AudioPath != "" {
		args = append(args, "-map", "1:a:0")
	}

	fb := NewFilterBuilder()
	if opts.Width > 0 && opts.Height > 0 {
		fb.Scale(opts.Width, opts.Height)
	} else if p.Width%2 != 0 || p.Height%2 != 0 {
		fb.EvenDimensions()
	}
	if vf := fb.Build(); vf != "" {
		args = append(args, "-vf", vf)
	}

	videoCodec := opts.VideoCodec
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}
	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	threads := opts.Threads
	if threads == 0 {
		threads = DefaultThreads
	}

	args = append(args,
		"-c:v", videoCodec,
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
		"-threads", strconv.Itoa(threads),
	)

	if p.AudioPath != "" {
		audioCodec := opts.AudioCodec
		if audioCodec == "" {
			audioCodec = DefaultAudioCodec
		}
		args = append(args, "-c:a", audioCodec)
	}

	args = append(args, "-t", strconv.FormatFloat(p.Duration, 'f', 6, 64))

	switch strings.ToLower(filepath.Ext(p.Output)) {
	case ".mp4", ".mov", ".m4v":
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, p.Output)
}
