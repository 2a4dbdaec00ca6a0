package ffmpeg

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/kikiluvv/fiora/internal/media"
)

// DecodeAudio decodes the first audio stream of input to interleaved
// float32 samples at sampleRate with the given channel count.
func (e *Executor) DecodeAudio(ctx context.Context, input string, sampleRate, channels int) ([]float32, error) {
	e.logger.Debug().
		Str("input", input).
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Msg("decoding audio")

	out, err := e.Output(ctx,
		"-i", input,
		"-map", "0:a:0",
		"-vn", "-sn", "-dn",
		"-acodec", "pcm_f32le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-f", "f32le",
		"pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("audio decode failed: %w", err)
	}
	return decodeF32LE(out), nil
}

func decodeF32LE(b []byte) []float32 {
	samples := make([]float32, len(b)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return samples
}

// pcmChunk is the number of sample frames read per ReadFrames call when
// writing a stream out.
const pcmChunk = 8192

// writePCM writes every frame of a to w as interleaved f32le.
func writePCM(ctx context.Context, w io.Writer, a media.AudioStream) error {
	bw := bufio.NewWriter(w)
	var buf []byte
	for from := 0; from < a.Len(); from += pcmChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		to := min(from+pcmChunk, a.Len())
		samples, err := a.ReadFrames(from, to)
		if err != nil {
			return fmt.Errorf("read samples %d-%d: %w", from, to, err)
		}
		if cap(buf) < len(samples)*4 {
			buf = make([]byte, len(samples)*4)
		}
		buf = buf[:len(samples)*4]
		for i, s := range samples {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
