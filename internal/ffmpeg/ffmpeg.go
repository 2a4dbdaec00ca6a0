package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Options configures where the binaries live and how many threads ffmpeg
// may use. Empty paths are discovered.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int
}

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	ffmpegPath, err := findBinary("ffmpeg", opts.FFmpegPath)
	if err != nil {
		return nil, err
	}

	ffprobePath, err := findBinary("ffprobe", opts.FFprobePath)
	if err != nil {
		return nil, err
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
	}, nil
}

// findBinary resolves name from the configured path, then assets/ next to
// the running executable, then $PATH.
func findBinary(name, configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%s not found at %s: %w", name, configured, err)
		}
		return path, nil
	}

	if exePath, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exePath), "assets", name)
		if runtime.GOOS == "windows" {
			bundled += ".exe"
		}
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			return bundled, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	// Build args with threads BEFORE other arguments
	baseArgs := []string{"-y", "-hide_banner", "-loglevel", "info"}

	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", fmt.Sprintf("%d", e.threads))
	}

	baseArgs = append(baseArgs, "-progress", "pipe:2")
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := newTailBuffer(tailLines)
	var wg sync.WaitGroup
	wg.Add(2)

	// Stream stderr (progress + logs)
	go func() {
		defer wg.Done()
		e.streamOutput(stderr, opts.ProgressHandler, func(line string) {
			tail.add(line)
			if opts.LogHandler != nil {
				opts.LogHandler(line)
			}
		})
	}()

	// Stream stdout
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if opts.LogHandler != nil {
				opts.LogHandler(scanner.Text())
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ExecError{Err: err, Stderr: tail.String()}
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// Output runs ffmpeg without progress reporting and returns its stdout.
func (e *Executor) Output(ctx context.Context, args ...string) ([]byte, error) {
	return e.output(ctx, e.ffmpegPath, append([]string{"-hide_banner", "-nostdin"}, args...))
}

func (e *Executor) output(ctx context.Context, bin string, args []string) ([]byte, error) {
	e.logger.Debug().
		Str("cmd", filepath.Base(bin)).
		Strs("args", args).
		Msg("executing")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ExecError{Err: err, Stderr: lastLines(stderr.String(), tailLines)}
	}
	return stdout.Bytes(), nil
}

// Process is a running ffmpeg whose stdout is read incrementally.
type Process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches ffmpeg with args and returns it with stdout attached. The
// process lives until Close is called or it exits on its own.
func (e *Executor) Start(ctx context.Context, args ...string) (*Process, error) {
	args = append([]string{"-hide_banner", "-nostdin", "-loglevel", "error"}, args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("starting ffmpeg")

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	p := &Process{
		cmd:    cmd,
		stdout: stdout,
		stderr: newTailBuffer(tailLines),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			p.stderr.add(scanner.Text())
		}
	}()
	return p, nil
}

// Read reads from the process's stdout.
func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// Stderr returns the last lines ffmpeg wrote to stderr.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Close kills the process if it is still running and waits for it.
func (p *Process) Close() error {
	p.cancel()
	<-p.done
	err := p.cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// killed by us
		return nil
	}
	return err
}

// ExecError is a failed ffmpeg/ffprobe run with the tail of its stderr.
type ExecError struct {
	Err    error
	Stderr string
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg execution failed: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg execution failed: %v: %s", e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error { return e.Err }

// streamOutput parses ffmpeg output and calls handlers
func (e *Executor) streamOutput(r io.Reader, progressHandler func(*Progress), logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()

		if logHandler != nil {
			logHandler(line)
		}

		// Parse progress lines
		if strings.HasPrefix(line, "frame=") {
			fmt.Sscanf(line, "frame=%d", &progressData.Frame)
		} else if strings.HasPrefix(line, "fps=") {
			fmt.Sscanf(line, "fps=%f", &progressData.FPS)
		} else if strings.HasPrefix(line, "bitrate=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				progressData.Bitrate = strings.TrimSpace(parts[1])
			}
		} else if strings.HasPrefix(line, "out_time=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				progressData.Time = strings.TrimSpace(parts[1])
			}
		} else if strings.HasPrefix(line, "speed=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				progressData.Speed = strings.TrimSpace(parts[1])
			}
		} else if strings.HasPrefix(line, "progress=") {
			// End of progress block
			if progressHandler != nil && progressData.Frame > 0 {
				progressHandler(progressData)
			}
			progressData = &Progress{}
		}
	}
}

const tailLines = 12

// tailBuffer keeps the last n lines written to it, skipping -progress
// key=value noise.
type tailBuffer struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) add(line string) {
	if isProgressLine(line) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

var progressKeys = []string{
	"frame=", "fps=", "stream_", "bitrate=", "total_size=", "out_time",
	"dup_frames=", "drop_frames=", "speed=", "progress=",
}

func isProgressLine(line string) bool {
	for _, k := range progressKeys {
		if strings.HasPrefix(line, k) {
			return true
		}
	}
	return false
}
