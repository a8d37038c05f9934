package main

import (
	"fmt"

	"github.com/panbanda/iltransform/internal/vcs"
)

// checkClean refuses to touch a tree with uncommitted changes.
func checkClean(paths []string) error {
	for _, path := range paths {
		if err := vcs.CheckClean(path); err != nil {
			return fmt.Errorf("%w (use --force to modify files anyway)", err)
		}
	}
	return nil
}
