package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/fiora/internal/clips"
	"github.com/kikiluvv/fiora/internal/media"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// generateTestVideo writes a 2s 64x48 10fps test pattern with a sine
// soundtrack.
func generateTestVideo(t *testing.T, withAudio bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mp4")

	args := []string{"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=10:duration=2"}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", "sine=frequency=440:sample_rate=44100:duration=2")
	}
	args = append(args, "-c:v", "libx264", "-pix_fmt", "yuv420p", "-g", "10")
	if withAudio {
		args = append(args, "-c:a", "aac", "-shortest")
	}
	args = append(args, path)

	if out, err := exec.Command("ffmpeg", args...).CombinedOutput(); err != nil {
		t.Fatalf("failed to generate test video: %v\n%s", err, out)
	}
	return path
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).Level(zerolog.InfoLevel)
	e, err := New(logger, Options{Threads: 2})
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	return NewEngine(logger, e, EngineOptions{SampleRate: 8000, Channels: 1, TempDir: t.TempDir()})
}

func TestFilterBuilder(t *testing.T) {
	tests := []struct {
		name  string
		build func(*FilterBuilder) *FilterBuilder
		want  string
	}{
		{"empty", func(fb *FilterBuilder) *FilterBuilder { return fb }, ""},
		{"scale and fps", func(fb *FilterBuilder) *FilterBuilder { return fb.Scale(1920, 1080).FPS(30) }, "scale=1920:1080,fps=30.000000"},
		{"invalid scale skipped", func(fb *FilterBuilder) *FilterBuilder { return fb.Scale(0, 1080).Format("rgba") }, "format=rgba"},
		{"even", func(fb *FilterBuilder) *FilterBuilder { return fb.EvenDimensions() }, "scale=trunc(iw/2)*2:trunc(ih/2)*2"},
		{"invalid fps skipped", func(fb *FilterBuilder) *FilterBuilder { return fb.FPS(0).Format("") }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build(NewFilterBuilder()).Build(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func argValue(args []string, flag string) (string, bool) {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return "", false
	}
	return args[i+1], true
}

func TestBuildEncodeArgs(t *testing.T) {
	args := buildEncodeArgs(encodeParams{
		Width: 64, Height: 48, FPS: 29.97, Duration: 6,
		AudioPath: "/tmp/a.f32", SampleRate: 48000, Channels: 2,
		Output: "out/.clip.partial.mp4",
	})

	checks := map[string]string{
		"-s":       "64x48",
		"-r":       "29.97",
		"-c:v":     DefaultVideoCodec,
		"-preset":  DefaultPreset,
		"-crf":     "23",
		"-threads": "4",
		"-c:a":     DefaultAudioCodec,
		"-t":       "6.000000",
		"-ar":      "48000",
	}
	for flag, want := range checks {
		if got, ok := argValue(args, flag); !ok || got != want {
			t.Errorf("%s = %q, want %q (args %v)", flag, got, want, args)
		}
	}
	if args[len(args)-1] != "out/.clip.partial.mp4" {
		t.Errorf("output not last: %v", args)
	}
	if !slices.Contains(args, "1:a:0") || !slices.Contains(args, "+faststart") {
		t.Errorf("missing audio map or faststart: %v", args)
	}
	if slices.Contains(args, "-vf") {
		t.Errorf("unexpected filter for even size: %v", args)
	}
}

func TestBuildEncodeArgsOptions(t *testing.T) {
	args := buildEncodeArgs(encodeParams{
		Width: 65, Height: 48, FPS: 10, Duration: 1, Output: "out.mkv",
		Options: media.EncodeOptions{VideoCodec: "libx265", Preset: "fast", CRF: 28, Threads: 1},
	})
	if got, _ := argValue(args, "-vf"); got != "scale=trunc(iw/2)*2:trunc(ih/2)*2" {
		t.Errorf("odd width not evened: %q", got)
	}
	if got, _ := argValue(args, "-c:v"); got != "libx265" {
		t.Errorf("codec = %q", got)
	}
	if slices.Contains(args, "-c:a") || slices.Contains(args, "+faststart") {
		t.Errorf("audio codec or faststart for silent mkv: %v", args)
	}

	scaled := buildEncodeArgs(encodeParams{
		Width: 65, Height: 48, FPS: 10, Duration: 1, Output: "out.mp4",
		Options: media.EncodeOptions{Width: 320, Height: 240},
	})
	if got, _ := argValue(scaled, "-vf"); got != "scale=320:240" {
		t.Errorf("scale = %q", got)
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"format": {"duration": "10.000000", "bit_rate": "512000"},
		"streams": [
			{"codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300, "r_frame_rate": "90000/1", "disposition": {"attached_pic": 1}},
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "r_frame_rate": "30000/1001", "nb_frames": "300"},
			{"codec_type": "audio", "codec_name": "aac", "sample_rate": "44100", "channels": 2}
		]
	}`)

	info, err := parseProbe("in.mp4", out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Width != 1280 || info.Height != 720 || info.VideoCodec != "h264" {
		t.Errorf("cover art picked as video: %+v", info)
	}
	if info.Duration != 10*time.Second || info.FrameCount != 300 {
		t.Errorf("duration %v frames %d", info.Duration, info.FrameCount)
	}
	if !info.HasAudio || info.SampleRate != 44100 || info.Channels != 2 {
		t.Errorf("audio fields: %+v", info)
	}

	if _, err := parseProbe("x", []byte("not json")); err == nil {
		t.Error("expected parse error")
	}
}

func TestClassifyOpenError(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		stderr string
		want   media.SourceErrorKind
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.mp4"), "", media.Unreadable},
		{"permission", existing, "in.mp4: Permission denied", media.Unreadable},
		{"garbage", existing, "in.mp4: Invalid data found when processing input", media.Corrupt},
		{"moov", existing, "moov atom not found", media.Corrupt},
		{"unknown codec", existing, "Decoder (codec none) not found for input stream #0:0", media.UnsupportedFormat},
		{"unknown", existing, "something else", media.Corrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyOpenError(tt.path, &ExecError{Err: errors.New("exit status 1"), Stderr: tt.stderr})
			var se *media.SourceError
			if !errors.As(err, &se) {
				t.Fatalf("expected SourceError, got %v", err)
			}
			if se.Kind != tt.want {
				t.Errorf("kind = %v, want %v", se.Kind, tt.want)
			}
		})
	}
}

func TestStreamOutputProgress(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}
	input := strings.Join([]string{
		"frame=12", "fps=24.5", "bitrate=100kbits/s", "out_time=00:00:01.200000", "speed=2x", "progress=continue",
		"frame=0", "progress=end",
	}, "\n")

	var got []Progress
	var logged int
	e.streamOutput(strings.NewReader(input), func(p *Progress) { got = append(got, *p) }, func(string) { logged++ })

	if len(got) != 1 {
		t.Fatalf("expected 1 progress report, got %d", len(got))
	}
	want := Progress{Frame: 12, FPS: 24.5, Bitrate: "100kbits/s", Time: "00:00:01.200000", Speed: "2x"}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}
	if logged != 8 {
		t.Errorf("logged %d lines, want 8", logged)
	}
}

func TestEncodeProgress(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}
	input := strings.Join([]string{
		"frame=4", "progress=continue",
		"frame=2", "progress=continue",
		"frame=4", "progress=continue",
		"frame=12", "progress=end",
	}, "\n")

	type report struct{ done, total int }
	var got []report
	tracker := &encodeProgress{fn: func(done, total int) { got = append(got, report{done, total}) }, total: 10}
	e.streamOutput(strings.NewReader(input), func(p *Progress) { tracker.report(p.Frame) }, nil)
	tracker.report(10)

	want := []report{{4, 10}, {10, 10}}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// nil callback is allowed
	(&encodeProgress{total: 10}).report(5)
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(2)
	for _, line := range []string{"a", "frame=1", "b", "c"} {
		tb.add(line)
	}
	if got := tb.String(); got != "b\nc" {
		t.Errorf("tail = %q, want %q", got, "b\nc")
	}
}

func TestWritePCM(t *testing.T) {
	samples := []float32{0, 0.5, -0.25, 1}
	var buf bytes.Buffer
	if err := writePCM(context.Background(), &buf, media.NewPCM(8000, 2, samples)); err != nil {
		t.Fatal(err)
	}
	if got := decodeF32LE(buf.Bytes()); !slices.Equal(got, samples) {
		t.Errorf("got %v, want %v", got, samples)
	}
}

func TestExecutorCreation(t *testing.T) {
	skipIfNoFFmpeg(t)

	e, err := New(zerolog.Nop(), Options{Threads: 4})
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	if e.ffmpegPath == "" {
		t.Error("ffmpeg path is empty")
	}
	if e.ffprobePath == "" {
		t.Error("ffprobe path is empty")
	}

	if _, err := New(zerolog.Nop(), Options{FFmpegPath: "/nonexistent/ffmpeg"}); err == nil {
		t.Error("expected error for configured path that does not exist")
	}
}

func TestOpenVideo(t *testing.T) {
	skipIfNoFFmpeg(t)

	path := generateTestVideo(t, true)
	engine := newTestEngine(t)

	src, err := engine.OpenVideo(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenVideo failed: %v", err)
	}
	defer src.Close()

	if src.Size() != image.Pt(64, 48) {
		t.Errorf("size = %v, want 64x48", src.Size())
	}
	if src.FrameRate() != 10 {
		t.Errorf("fps = %v, want 10", src.FrameRate())
	}
	if d := src.Duration(); d < 1.9 || d > 2.2 {
		t.Errorf("duration = %v, want ~2", d)
	}
	if !src.HasAudio() || src.Audio().SampleRate() != 8000 || src.Audio().Channels() != 1 {
		t.Errorf("audio not decoded to the engine format: %+v", src.Info())
	}

	v := src.Video()
	forward := make([][]byte, 0, 5)
	for i := 0; i < 5; i++ {
		frame, err := v.FrameAt(float64(i) / 10)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		forward = append(forward, frame.Pix)
	}
	again, err := v.FrameAt(0.2)
	if err != nil {
		t.Fatalf("backwards seek: %v", err)
	}
	if !bytes.Equal(again.Pix, forward[2]) {
		t.Error("frame 2 differs after seeking back")
	}
	if bytes.Equal(forward[0], forward[4]) {
		t.Error("test pattern frames 0 and 4 should differ")
	}
}

func TestOpenAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	path := generateTestVideo(t, true)
	src, err := newTestEngine(t).OpenAudio(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenAudio failed: %v", err)
	}
	if src.Video() != nil {
		t.Error("audio source has a video stream")
	}
	if d := src.Duration(); d < 1.9 || d > 2.2 {
		t.Errorf("duration = %v, want ~2", d)
	}

	silent := generateTestVideo(t, false)
	_, err = newTestEngine(t).OpenAudio(context.Background(), silent)
	var se *media.SourceError
	if !errors.As(err, &se) || se.Kind != media.UnsupportedFormat {
		t.Errorf("expected UnsupportedFormat for video without audio, got %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	skipIfNoFFmpeg(t)

	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.OpenVideo(ctx, filepath.Join(t.TempDir(), "missing.mp4"))
	var se *media.SourceError
	if !errors.As(err, &se) || se.Kind != media.Unreadable {
		t.Errorf("expected Unreadable, got %v", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.mp4")
	if err := os.WriteFile(garbage, bytes.Repeat([]byte{0xde, 0xad}, 512), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = engine.OpenVideo(ctx, garbage)
	if !errors.As(err, &se) || se.Kind == media.Unreadable {
		t.Errorf("expected Corrupt or UnsupportedFormat, got %v", err)
	}
}

func TestEncode(t *testing.T) {
	skipIfNoFFmpeg(t)

	engine := newTestEngine(t)
	src, err := engine.OpenVideo(context.Background(), generateTestVideo(t, true))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	video, audio := src.Subrange(0.5, 1.5)
	clip := clips.New(video, audio, 0.5, 1.5, 1)
	output := filepath.Join(t.TempDir(), "out.mp4")

	var reports []int
	err = engine.Encode(context.Background(), clip, output, media.EncodeOptions{Preset: "ultrafast"}, func(done, total int) {
		if total != 10 {
			t.Errorf("total = %d, want 10", total)
		}
		reports = append(reports, done)
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(reports) == 0 || reports[len(reports)-1] != 10 {
		t.Errorf("progress %v should end at 10", reports)
	}
	if !slices.IsSorted(reports) {
		t.Errorf("progress went backwards: %v", reports)
	}

	info, err := engine.exec.ProbeVideo(context.Background(), output)
	if err != nil {
		t.Fatal(err)
	}
	if !info.HasAudio || info.Width != 64 {
		t.Errorf("unexpected output %+v", info)
	}
	if d := info.Duration.Seconds(); d < 0.9 || d > 1.2 {
		t.Errorf("output duration = %v, want ~1", d)
	}
}

func TestEncodeCanceled(t *testing.T) {
	skipIfNoFFmpeg(t)

	engine := newTestEngine(t)
	src, err := engine.OpenVideo(context.Background(), generateTestVideo(t, false))
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clip := clips.New(src.Video(), nil, 0, src.Duration(), 1)
	err = engine.Encode(ctx, clip, filepath.Join(t.TempDir(), "out.mp4"), media.EncodeOptions{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
