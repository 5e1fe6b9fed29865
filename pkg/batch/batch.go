// Package batch converts every matching file of a directory tree on a
// pool of workers. A failing file is recorded and skipped; it never stops
// the rest of the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/EchoTools/texforge/pkg/codec"
)

var ErrNoFiles = errors.New("batch: no matching files")

// Converter converts one file. *convert.Converter satisfies it.
type Converter interface {
	Convert(src, dst string, opts *codec.Options) error
}

// Job describes one batch run.
type Job struct {
	SourceDir string
	DestDir   string
	SourceExt string // matched case-insensitively, with or without the dot
	TargetExt string
	Options   *codec.Options
	Workers   int  // <= 0 means runtime.NumCPU()
	Recursive bool // descend into subdirectories, mirroring them under DestDir

	// Progress, if set, is called after each file with the number of
	// files finished so far. Calls are serialized.
	Progress func(done, total int, path string, err error)
}

// FileError is a failed conversion.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

// Report summarizes a run. Failed is sorted by path.
type Report struct {
	Matched   int
	Converted int
	Failed    []FileError
}

// Scan returns the files under dir whose extension matches ext, sorted.
func Scan(dir, ext string, recursive bool) ([]string, error) {
	ext = codec.NormalizeExtension(ext)
	if ext == "" {
		return nil, fmt.Errorf("batch: empty source extension")
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if codec.NormalizeExtension(filepath.Ext(path)) == ext {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Target returns the output path for src: its path relative to
// job.SourceDir under job.DestDir, with the target extension.
func (job Job) Target(src string) (string, error) {
	rel, err := filepath.Rel(job.SourceDir, src)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + codec.NormalizeExtension(job.TargetExt)
	return filepath.Join(job.DestDir, rel), nil
}

// Run converts every matching file of job. It returns ErrNoFiles before
// doing any work when nothing matches. Per-file failures end up in the
// report. Cancelling ctx stops new files from being started; conversions
// already running finish.
func Run(ctx context.Context, conv Converter, job Job) (*Report, error) {
	if codec.NormalizeExtension(job.TargetExt) == "" {
		return nil, fmt.Errorf("batch: empty target extension")
	}
	if job.Options != nil {
		if err := job.Options.Validate(); err != nil {
			return nil, err
		}
	}
	files, err := Scan(job.SourceDir, job.SourceExt, job.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", ErrNoFiles, codec.NormalizeExtension(job.SourceExt), job.SourceDir)
	}
	if err := os.MkdirAll(job.DestDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	numWorkers := job.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, len(files))

	report := &Report{Matched: len(files)}
	var mu sync.Mutex
	done := 0
	finish := func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			report.Failed = append(report.Failed, FileError{Path: path, Err: err})
			codec.Logger().Warn("conversion failed", "path", path, "error", err)
		} else {
			report.Converted++
		}
		if job.Progress != nil {
			job.Progress(done, len(files), path, err)
		}
	}

	jobs := make(chan string, numWorkers*2)
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for src := range jobs {
			if ctx.Err() != nil {
				continue
			}
			dst, err := job.Target(src)
			if err == nil {
				err = conv.Convert(src, dst, job.Options)
			}
			finish(src, err)
		}
	}
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker()
	}

submit:
	for _, src := range files {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break submit
		case jobs <- src:
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Path < report.Failed[j].Path })
	codec.Logger().Info("batch finished",
		"matched", report.Matched,
		"converted", report.Converted,
		"failed", len(report.Failed))
	return report, ctx.Err()
}
