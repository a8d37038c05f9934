package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
	return path
}

func TestMapFiles(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		createTestFile(t, tmpDir, "a.il", ".assembly a {}"),
		createTestFile(t, tmpDir, "b.il", ".assembly b {}"),
		createTestFile(t, tmpDir, "c.cs", "class C {}"),
	}

	results, errs := MapFiles(context.Background(), files, 0, func(_ context.Context, path string) (int, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, err
		}
		return len(data), nil
	}, nil)

	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []int{14, 14, 10}
	if len(results) != len(want) {
		t.Fatalf("Expected %d results, got %d", len(want), len(results))
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results[%d] = %d, want %d", i, results[i], want[i])
		}
	}
}

func TestMapFiles_EmptyFileList(t *testing.T) {
	results, errs := MapFiles(context.Background(), []string{}, 0, func(_ context.Context, path string) (string, error) {
		return path, nil
	}, nil)

	if results != nil || errs != nil {
		t.Errorf("Expected nil for empty file list, got %v, %v", results, errs)
	}
}

func TestMapFiles_WithErrors(t *testing.T) {
	files := []string{"/ok1", "/bad", "/ok2"}

	results, errs := MapFiles(context.Background(), files, 2, func(_ context.Context, path string) (string, error) {
		if path == "/bad" {
			return "", errors.New("boom")
		}
		return path, nil
	}, nil)

	if len(results) != 2 || results[0] != "/ok1" || results[1] != "/ok2" {
		t.Errorf("results = %v, want [/ok1 /ok2]", results)
	}
	if errs.Len() != 1 || errs.Errors[0].Path != "/bad" {
		t.Errorf("errors = %v, want one for /bad", errs)
	}
}

func TestMapFiles_ProgressOnError(t *testing.T) {
	files := make([]string, 20)
	for i := range files {
		files[i] = fmt.Sprintf("/file%d", i)
	}

	var ticks atomic.Int32
	MapFiles(context.Background(), files, 4, func(_ context.Context, path string) (string, error) {
		if path == "/file3" {
			return "", errors.New("boom")
		}
		return path, nil
	}, func() { ticks.Add(1) })

	if got := ticks.Load(); got != 20 {
		t.Errorf("progress called %d times, want 20", got)
	}
}

type job struct {
	id   int
	fail bool
}

func TestMap_PreservesOrder(t *testing.T) {
	items := make([]job, 100)
	for i := range items {
		items[i] = job{id: i, fail: i%10 == 0}
	}

	results, errs := Map(context.Background(), items, 8,
		func(j job) string { return fmt.Sprintf("job%d", j.id) },
		func(_ context.Context, j job) (int, error) {
			if j.fail {
				return 0, errors.New("fail")
			}
			return j.id * 2, nil
		}, nil)

	if errs.Len() != 10 {
		t.Errorf("Expected 10 errors, got %d", errs.Len())
	}
	if len(results) != 90 {
		t.Fatalf("Expected 90 results, got %d", len(results))
	}
	prev := -1
	for _, r := range results {
		if r <= prev {
			t.Fatalf("results out of order: %d after %d", r, prev)
		}
		if r%20 == 0 {
			t.Errorf("result %d comes from a failed job", r)
		}
		prev = r
	}
}

func TestMap_BoundedWorkers(t *testing.T) {
	items := make([]int, 50)
	var active, peak atomic.Int32

	Map(context.Background(), items, 3, func(int) string { return "" },
		func(_ context.Context, _ int) (int, error) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			for i := 0; i < 100; i++ {
				runtime.Gosched()
			}
			active.Add(-1)
			return 0, nil
		}, nil)

	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds 3 workers", peak.Load())
	}
}

func TestMap_Cancellation(t *testing.T) {
	fileCount := 100
	files := make([]string, fileCount)
	for i := range files {
		files[i] = fmt.Sprintf("/file%d", i)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var processed atomic.Int32
	results, errs := ForEachFileWithContext(ctx, files, func(_ context.Context, path string) (string, error) {
		if processed.Add(1) == 10 {
			cancel()
		}
		return path, nil
	}, nil)

	// Total results + errors must account for every file
	if len(results)+errs.Len() != fileCount {
		t.Errorf("Results (%d) + errors (%d) should equal file count (%d)",
			len(results), errs.Len(), fileCount)
	}
	if errs != nil {
		for _, e := range errs.Errors {
			if !errors.Is(e.Err, context.Canceled) {
				t.Errorf("unexpected error for %s: %v", e.Path, e.Err)
			}
		}
	}
}

func TestWorkers(t *testing.T) {
	if Workers(5) != 5 {
		t.Errorf("Workers(5) = %d, want 5", Workers(5))
	}
	if Workers(0) != runtime.NumCPU()*DefaultWorkerMultiplier {
		t.Errorf("Workers(0) = %d, want 2x NumCPU", Workers(0))
	}
}

func TestProcessingError(t *testing.T) {
	err := ProcessingError{Path: "/path/to/test.il", Err: fmt.Errorf("read failed")}
	expected := "/path/to/test.il: read failed"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestProcessingErrors(t *testing.T) {
	errs := &ProcessingErrors{}

	// Empty errors
	if errs.HasErrors() {
		t.Error("Empty ProcessingErrors should not have errors")
	}
	if errs.Error() != "no errors" {
		t.Errorf("Empty error message = %q, want 'no errors'", errs.Error())
	}

	// Single error
	errs.Add("/file1.il", fmt.Errorf("error1"))
	if !errs.HasErrors() {
		t.Error("ProcessingErrors with one error should have errors")
	}
	if errs.Error() != "/file1.il: error1" {
		t.Errorf("Single error message = %q", errs.Error())
	}

	// Multiple errors
	errs.Add("/file2.il", fmt.Errorf("error2"))
	if errs.Len() != 2 {
		t.Errorf("Expected 2 errors, got %d", errs.Len())
	}
	errMsg := errs.Error()
	if errMsg != "2 files failed to process (first: /file1.il: error1)" {
		t.Errorf("Multiple error message = %q", errMsg)
	}

	var nilErrs *ProcessingErrors
	if nilErrs.HasErrors() || nilErrs.Len() != 0 {
		t.Error("nil ProcessingErrors should report no errors")
	}
}

func TestProcessingErrors_ThreadSafe(t *testing.T) {
	errs := &ProcessingErrors{}
	var wg sync.WaitGroup

	// Add errors concurrently
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs.Add(fmt.Sprintf("/file%d.il", n), fmt.Errorf("error %d", n))
		}(i)
	}
	wg.Wait()

	if errs.Len() != 100 {
		t.Errorf("Expected 100 errors, got %d", errs.Len())
	}
}

func TestProcessingErrors_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	errs := &ProcessingErrors{}
	errs.Add("/a.il", fmt.Errorf("wrapped: %w", sentinel))

	if !errors.Is(errs, sentinel) {
		t.Error("errors.Is should find a collected error")
	}
	var pe ProcessingError
	if !errors.As(errs, &pe) || pe.Path != "/a.il" {
		t.Errorf("errors.As = %+v, want path /a.il", pe)
	}
}
