/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// Package batch applies an operation to each of a list of store paths, with a
// bounded number of workers, and counts the results.
package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/inconshreveable/log15"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

// Error is the custom error type for the batch package.
type Error string

// ErrCheckFailed is wrapped by the errors of check operations for items that
// do not pass.
const ErrCheckFailed = Error("check failed")

func (e Error) Error() string { return string(e) }

const (
	// DefaultWorkers is the number of items processed at once if Driver.Workers
	// is not set.
	DefaultWorkers = 4

	stdio = "-"
)

// Operation is applied to each path. It returns true if the item passed a
// check, or if an update changed it.
type Operation func(ctx context.Context, path string) (bool, error)

// Check makes an Operation of a predicate, so that items for which it is
// false are errors wrapping ErrCheckFailed.
func Check(pred func(ctx context.Context, path string) (bool, error)) Operation {
	return func(ctx context.Context, path string) (bool, error) {
		ok, err := pred(ctx, path)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, fmt.Errorf("%w: %s", ErrCheckFailed, path)
		}

		return true, nil
	}
}

// Counts are the results of a Run.
type Counts struct {
	Processed int
	Passed    int
	Errors    int
}

// ExitCode returns the process exit code for the counts: 1 if there were any
// errors, else 0.
func (c Counts) ExitCode() int {
	if c.Errors > 0 {
		return 1
	}

	return 0
}

// Summary describes the counts in one line, with the given word for items
// that passed.
func (c Counts) Summary(passed string) string {
	return fmt.Sprintf("processed %s, %s %s, errors %s",
		humanize.Comma(int64(c.Processed)), passed, humanize.Comma(int64(c.Passed)),
		humanize.Comma(int64(c.Errors)))
}

// Driver runs operations over paths read from a reader. Output, the paths of
// items that passed or failed if asked for, is written to Out one per line.
// Errors for an item are logged with its index and path and counted; they
// never stop other items being processed.
type Driver struct {
	Workers   int
	PrintPass bool
	PrintFail bool
	Out       io.Writer
	Logger    log15.Logger

	mu     sync.Mutex
	counts Counts
}

func (d *Driver) logger() log15.Logger { //nolint:ireturn
	if d.Logger != nil {
		return d.Logger
	}

	l := log15.New()
	l.SetHandler(log15.DiscardHandler())

	return l
}

// Run applies op to each path read from r, one per line. Surrounding
// whitespace is trimmed and blank lines are skipped. It returns the counts
// once every item is done, and an error only if reading r failed or ctx was
// cancelled.
func (d *Driver) Run(ctx context.Context, r io.Reader, op Operation) (Counts, error) {
	d.counts = Counts{}

	workers := d.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	scanner := bufio.NewScanner(r)
	index := 0

	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}

		if egCtx.Err() != nil {
			break
		}

		i := index
		index++

		eg.Go(func() error {
			d.process(egCtx, i, path, op)

			return nil
		})
	}

	_ = eg.Wait()

	if err := scanner.Err(); err != nil {
		return d.counts, fmt.Errorf("reading paths: %w", err)
	}

	return d.counts, ctx.Err()
}

func (d *Driver) process(ctx context.Context, i int, path string, op Operation) {
	log := d.logger().New("item", i, "path", path)

	var (
		passed bool
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r) //nolint:err113
			}
		}()

		passed, err = op(ctx, path)
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.counts.Processed++

	switch {
	case errors.Is(err, ErrCheckFailed):
		log.Warn("check failed", "err", err)
	case err != nil:
		log.Error("failed", "err", err)
	case passed:
		d.counts.Passed++

		log.Debug("passed")

		d.print(d.PrintPass, path, log)

		return
	default:
		return
	}

	d.counts.Errors++
	d.print(d.PrintFail, path, log)
}

func (d *Driver) print(enabled bool, path string, log log15.Logger) {
	if !enabled || d.Out == nil {
		return
	}

	if _, err := fmt.Fprintln(d.Out, path); err != nil {
		log.Error("writing output", "err", err)
	}
}

type gzipReadCloser struct {
	*pgzip.Reader
	f *os.File
}

func (g gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if ferr := g.f.Close(); err == nil {
		err = ferr
	}

	return err
}

// OpenInput opens a path list. "-" is stdin, and files ending ".gz" are
// decompressed.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == stdio || path == "" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	r, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()

		return nil, err
	}

	return gzipReadCloser{Reader: r, f: f}, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// OpenOutput creates a file for output. "-" is stdout.
func OpenOutput(path string) (io.WriteCloser, error) {
	if path == stdio || path == "" {
		return nopWriteCloser{os.Stdout}, nil
	}

	return os.Create(path)
}
