package media

import "fmt"

// SourceErrorKind classifies why a file could not be opened.
type SourceErrorKind int

const (
	Unreadable SourceErrorKind = iota + 1
	UnsupportedFormat
	Corrupt
)

func (k SourceErrorKind) String() string {
	switch k {
	case Unreadable:
		return "unreadable"
	case UnsupportedFormat:
		return "unsupported format"
	case Corrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("SourceErrorKind(%d)", int(k))
	}
}

// SourceError is returned when a media file cannot be opened.
type SourceError struct {
	Kind SourceErrorKind
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("open %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("open %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
