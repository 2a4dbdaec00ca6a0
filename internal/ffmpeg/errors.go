package ffmpeg

import (
	"errors"
	"os"
	"regexp"

	"github.com/kikiluvv/fiora/internal/media"
)

// Patterns matched against ffprobe/ffmpeg stderr.
var (
	unreadablePattern  = regexp.MustCompile(`(?i)no such file or directory|permission denied|input/output error|is a directory`)
	unsupportedPattern = regexp.MustCompile(`(?i)unknown format|could not find codec parameters|decoder .*not found|unsupported codec|no decoder|protocol not found`)
	corruptPattern     = regexp.MustCompile(`(?i)invalid data found when processing input|moov atom not found|error while decoding|truncat|corrupt|invalid nal unit`)
)

// MatchUnreadable reports whether stderr says the file could not be read.
func MatchUnreadable(stderr string) bool { return unreadablePattern.MatchString(stderr) }

// MatchUnsupported reports whether stderr names a missing demuxer or decoder.
func MatchUnsupported(stderr string) bool { return unsupportedPattern.MatchString(stderr) }

// MatchCorrupt reports whether stderr describes damaged data.
func MatchCorrupt(stderr string) bool { return corruptPattern.MatchString(stderr) }

// classifyOpenError turns a probe or decode failure into a media.SourceError.
func classifyOpenError(path string, err error) error {
	var se *media.SourceError
	if errors.As(err, &se) {
		return err
	}

	// a missing file is reported from stat, whatever ffprobe printed
	if _, statErr := os.Stat(path); statErr != nil {
		return &media.SourceError{Kind: media.Unreadable, Path: path, Err: statErr}
	}

	kind := media.Corrupt
	var stderr string
	var ee *ExecError
	if errors.As(err, &ee) {
		stderr = ee.Stderr
	}

	switch {
	case MatchUnreadable(stderr):
		kind = media.Unreadable
	case MatchUnsupported(stderr):
		kind = media.UnsupportedFormat
	case MatchCorrupt(stderr):
		kind = media.Corrupt
	}
	return &media.SourceError{Kind: kind, Path: path, Err: err}
}
