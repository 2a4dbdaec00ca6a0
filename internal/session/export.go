package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/fiora/internal/clips"
	"github.com/kikiluvv/fiora/internal/edit"
	"github.com/kikiluvv/fiora/internal/media"
	"github.com/kikiluvv/fiora/pkg/util"
)

// ErrDestinationBusy is returned when another export holds the lock on the
// destination file.
var ErrDestinationBusy = errors.New("destination is being written by another export")

// Encoder writes a clip to a file.
type Encoder interface {
	Encode(ctx context.Context, clip *clips.Clip, path string, opts media.EncodeOptions, progress media.ProgressFunc) error
}

// ExportErrorKind classifies export failures.
type ExportErrorKind int

const (
	WriteFailure ExportErrorKind = iota + 1
	EncodeFailure
	Canceled
)

func (k ExportErrorKind) String() string {
	switch k {
	case WriteFailure:
		return "write failure"
	case EncodeFailure:
		return "encode failure"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("ExportErrorKind(%d)", int(k))
	}
}

// ExportError is returned when an export does not produce a file.
type ExportError struct {
	Kind ExportErrorKind
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Exporter writes clips to disk through an Encoder. The encoder writes a
// hidden sibling file that is renamed over the destination only once the
// encode succeeded.
type Exporter struct {
	logger  zerolog.Logger
	encoder Encoder
}

func NewExporter(logger zerolog.Logger, encoder Encoder) *Exporter {
	return &Exporter{
		logger:  logger.With().Str("component", "exporter").Logger(),
		encoder: encoder,
	}
}

// Export encodes clip to dest and blocks until done.
func (x *Exporter) Export(ctx context.Context, clip *clips.Clip, dest string, opts media.EncodeOptions, progress media.ProgressFunc) error {
	if clip == nil {
		return edit.ErrNoSourceLoaded
	}
	if dest == "" {
		return &ExportError{Kind: WriteFailure, Path: dest, Err: errors.New("output path cannot be empty")}
	}

	dir := filepath.Dir(dest)
	if info, err := os.Stat(dir); err != nil {
		return &ExportError{Kind: WriteFailure, Path: dest, Err: err}
	} else if !info.IsDir() {
		return &ExportError{Kind: WriteFailure, Path: dest, Err: fmt.Errorf("%s is not a directory", dir)}
	}

	lockPath := util.PartialPath(dest) + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return &ExportError{Kind: WriteFailure, Path: dest, Err: fmt.Errorf("lock destination: %w", err)}
	}
	if !locked {
		return &ExportError{Kind: WriteFailure, Path: dest, Err: ErrDestinationBusy}
	}
	// the lock file stays: unlinking it would let two exporters lock
	// different inodes for the same destination
	defer lock.Unlock()

	partial := util.PartialPath(dest)
	x.logger.Info().
		Str("clip_id", clip.ID).
		Str("output", dest).
		Float64("duration", clip.Duration()).
		Msg("starting export")

	if err := x.encoder.Encode(ctx, clip, partial, opts, progress); err != nil {
		util.CleanupFiles(partial)
		if ctx.Err() != nil {
			return &ExportError{Kind: Canceled, Path: dest, Err: ctx.Err()}
		}
		return &ExportError{Kind: EncodeFailure, Path: dest, Err: err}
	}

	if err := os.Rename(partial, dest); err != nil {
		util.CleanupFiles(partial)
		return &ExportError{Kind: WriteFailure, Path: dest, Err: err}
	}

	x.logger.Info().Str("output", dest).Msg("export complete")
	return nil
}

// Progress is one export progress report.
type Progress struct {
	Frames int
	Total  int
}

// Percent complete, 0 to 100.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Frames) * 100 / float64(p.Total)
}

// ExportJob is a running background export.
type ExportJob struct {
	ID   string
	Path string

	progress chan Progress
	done     chan struct{}
	cancel   context.CancelFunc

	mu  sync.Mutex
	err error
}

// Progress delivers progress reports. Reports are dropped while the reader
// is behind; the channel is closed when the job finishes.
func (j *ExportJob) Progress() <-chan Progress { return j.progress }

// Done is closed when the job finishes.
func (j *ExportJob) Done() <-chan struct{} { return j.done }

// Err returns the job's result once Done is closed, nil before that.
func (j *ExportJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Wait blocks until the job finishes and returns its result.
func (j *ExportJob) Wait() error {
	<-j.done
	return j.Err()
}

// Cancel stops the export at the next frame boundary.
func (j *ExportJob) Cancel() { j.cancel() }

// Start runs Export in a new goroutine.
func (x *Exporter) Start(ctx context.Context, clip *clips.Clip, dest string, opts media.EncodeOptions) *ExportJob {
	ctx, cancel := context.WithCancel(ctx)
	job := &ExportJob{
		ID:       uuid.NewString(),
		Path:     dest,
		progress: make(chan Progress, 16),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer cancel()
		err := x.Export(ctx, clip, dest, opts, func(done, total int) {
			select {
			case job.progress <- Progress{Frames: done, Total: total}:
			default:
			}
		})
		job.mu.Lock()
		job.err = err
		job.mu.Unlock()
		close(job.progress)
		close(job.done)
	}()

	return job
}

// Export writes the current clip to path and blocks until done.
func (s *Session) Export(ctx context.Context, path string, opts media.EncodeOptions) error {
	if s.clip == nil {
		return edit.ErrNoSourceLoaded
	}
	err := s.exporter.Export(ctx, s.clip, path, opts, nil)
	if err != nil {
		s.logger.Error().Err(err).Str("output", path).Msg("export failed")
	}
	return err
}

// ExportAsync snapshots the current clip and exports it in the background.
// Edits made afterwards do not affect the running export.
func (s *Session) ExportAsync(ctx context.Context, path string, opts media.EncodeOptions) (*ExportJob, error) {
	s.sweep()
	if s.clip == nil {
		return nil, edit.ErrNoSourceLoaded
	}
	job := s.exporter.Start(ctx, s.clip, path, opts)
	s.jobs = append(s.jobs, job)
	s.logger.Debug().Str("job_id", job.ID).Str("output", path).Msg("export started")
	return job, nil
}
