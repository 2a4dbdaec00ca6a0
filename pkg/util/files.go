package util

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TempFile creates a temporary file with a specific extension
func TempFile(dir, pattern, ext string) (*os.File, error) {
	return os.CreateTemp(dir, pattern+"*"+ext)
}

// CleanupFiles removes multiple files, ignoring errors
func CleanupFiles(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		_ = os.Remove(path)
	}
}

// PartialPath returns the hidden sibling path a file is written to before
// it is renamed into place. The extension is kept so muxers that pick the
// container from the file name still work: out/clip.mp4 -> out/.clip.partial.mp4
func PartialPath(dest string) string {
	dir, base := filepath.Split(dest)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, "."+name+".partial"+ext)
}
