// Package vcs guards rewrites against clobbering uncommitted work.
package vcs

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ErrDirtyWorkingDir is returned when the working directory has uncommitted changes.
var ErrDirtyWorkingDir = errors.New("working directory has uncommitted changes")

// DirtyError lists the modified tracked files below the checked path.
type DirtyError struct {
	Files []string
}

func (e *DirtyError) Error() string {
	if len(e.Files) == 1 {
		return fmt.Sprintf("%v: %s", ErrDirtyWorkingDir, e.Files[0])
	}
	return fmt.Sprintf("%v: %d files (first: %s)", ErrDirtyWorkingDir, len(e.Files), e.Files[0])
}

// Unwrap lets errors.Is match ErrDirtyWorkingDir.
func (e *DirtyError) Unwrap() error {
	return ErrDirtyWorkingDir
}

// DirtyFiles returns the tracked files below path that are staged or
// modified, relative to the repository root and sorted.
// Untracked files are not considered dirty.
func DirtyFiles(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	prefix, err := filepath.Rel(wt.Filesystem.Root(), abs)
	if err != nil {
		return nil, err
	}
	prefix = filepath.ToSlash(prefix)

	var dirty []string
	for file, s := range status {
		// Skip untracked files
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		if prefix != "." && file != prefix && !strings.HasPrefix(file, prefix+"/") {
			continue
		}
		dirty = append(dirty, file)
	}
	slices.Sort(dirty)
	return dirty, nil
}

// CheckClean returns a *DirtyError when tracked files below path have
// uncommitted changes. A path outside any repository is considered clean.
func CheckClean(path string) error {
	dirty, err := DirtyFiles(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(dirty) > 0 {
		return &DirtyError{Files: dirty}
	}
	return nil
}
