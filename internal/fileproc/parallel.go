// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Len returns the number of collected errors.
func (e *ProcessingErrors) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap returns the collected errors so errors.Is and errors.As see each of them.
func (e *ProcessingErrors) Unwrap() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// The per-file work is mostly file I/O, so oversubscribing the CPUs pays off.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each item is processed.
type ProgressFunc func()

// Workers returns the worker count to use for a requested maximum.
// A maximum <= 0 selects 2x NumCPU.
func Workers(maxWorkers int) int {
	if maxWorkers <= 0 {
		return runtime.NumCPU() * DefaultWorkerMultiplier
	}
	return maxWorkers
}

// Map processes items in parallel with at most maxWorkers goroutines and
// returns the successful results in input order. name identifies an item in
// collected errors. A failing item never stops the others; once ctx is
// cancelled the items not yet started fail with the context error.
func Map[I, T any](
	ctx context.Context,
	items []I,
	maxWorkers int,
	name func(I) string,
	fn func(context.Context, I) (T, error),
	onProgress ProgressFunc,
) ([]T, *ProcessingErrors) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]T, len(items))
	ok := make([]bool, len(items))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(Workers(maxWorkers)).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			defer func() {
				if onProgress != nil {
					onProgress()
				}
			}()

			// Check for cancellation before processing
			select {
			case <-ctx.Done():
				errs.Add(name(item), ctx.Err())
				return nil
			default:
			}

			result, err := fn(ctx, item)
			if err != nil {
				errs.Add(name(item), err)
				return nil // Don't stop pool on individual item errors
			}
			results[i] = result
			ok[i] = true
			return nil
		})
	}
	_ = p.Wait() // Context errors are already captured in errs

	out := make([]T, 0, len(items))
	for i, r := range results {
		if ok[i] {
			out = append(out, r)
		}
	}

	if !errs.HasErrors() {
		return out, nil
	}
	return out, errs
}

// MapFiles is Map over file paths, naming each failure by its path.
func MapFiles[T any](
	ctx context.Context,
	files []string,
	maxWorkers int,
	fn func(context.Context, string) (T, error),
	onProgress ProgressFunc,
) ([]T, *ProcessingErrors) {
	return Map(ctx, files, maxWorkers, identity, fn, onProgress)
}

func identity(s string) string { return s }
