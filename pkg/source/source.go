package source

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// NewlinePolicy decides whether a rewritten file ends with a newline.
type NewlinePolicy int

const (
	// NewlineNo never writes a final newline.
	NewlineNo NewlinePolicy = iota
	// NewlinePreserve keeps whatever the file on disk had.
	NewlinePreserve
	// NewlineYes always writes a final newline.
	NewlineYes
)

// String implements fmt.Stringer.
func (p NewlinePolicy) String() string {
	switch p {
	case NewlineNo:
		return "no"
	case NewlinePreserve:
		return "preserve"
	default:
		return "yes"
	}
}

// ParseNewlinePolicy converts "no", "preserve" or "yes".
func ParseNewlinePolicy(s string) (NewlinePolicy, error) {
	switch strings.ToLower(s) {
	case "no", "false":
		return NewlineNo, nil
	case "preserve", "":
		return NewlinePreserve, nil
	case "yes", "true":
		return NewlineYes, nil
	default:
		return NewlinePreserve, fmt.Errorf("unknown newline policy %q", s)
	}
}

// SplitLines splits content into lines. "\r\n" and "\n" both end a line and
// a final line terminator does not produce an empty trailing line.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ReadLines reads path from src and splits it into lines.
func ReadLines(src ContentSource, path string) ([]string, error) {
	data, err := src.Read(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(data), nil
}

// HasNewlineAtEnd reports whether the file at path ends with '\n'.
// A missing or empty file reports false.
func HasNewlineAtEnd(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}

// WriteLines joins lines and writes them to path. The line terminator of an
// existing file ("\r\n" or "\n") is kept; new files use "\n". policy decides
// the final newline.
func WriteLines(path string, lines []string, policy NewlinePolicy) error {
	eol := "\n"
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if bytes.Contains(existing, []byte("\r\n")) {
			eol = "\r\n"
		}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	final := policy == NewlineYes
	if policy == NewlinePreserve {
		final = len(existing) > 0 && existing[len(existing)-1] == '\n'
	}

	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString(eol)
		}
		b.WriteString(l)
	}
	if final {
		b.WriteString(eol)
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, []byte(b.String()), mode)
}
