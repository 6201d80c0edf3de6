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

package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/inconshreveable/log15"
	"github.com/klauspost/pgzip"
	. "github.com/smartystreets/goconvey/convey"
	internaltest "github.com/wtsi-npg/npg-irods/internal/test"
	"github.com/wtsi-npg/npg-irods/irods"
)

func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	sort.Strings(lines)

	return lines
}

func TestDriver(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with one data object", t, func() {
		s := internaltest.NewStore(t)
		internaltest.MakeDataObject(t, s, "/testZone/a.txt", internaltest.ValidReplicas("abc")...)

		exists := func(ctx context.Context, p string) (bool, error) {
			item, err := irods.Open(ctx, s, p)
			if err != nil {
				return false, err
			}

			return item.IsDataObject(), nil
		}

		var (
			out  bytes.Buffer
			logs bytes.Buffer
		)

		log := log15.New()
		log.SetHandler(log15.StreamHandler(&logs, log15.LogfmtFormat()))

		d := &Driver{Workers: 2, Out: &out, Logger: log}

		Convey("an item that succeeds and one that is missing are counted", func() {
			d.PrintFail = true

			counts, err := d.Run(ctx, strings.NewReader("/testZone/a.txt\n/testZone/missing.txt\n"), exists)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, Counts{Processed: 2, Passed: 1, Errors: 1})
			So(counts.ExitCode(), ShouldEqual, 1)
			So(out.String(), ShouldEqual, "/testZone/missing.txt\n")
			So(logs.String(), ShouldContainSubstring, "path=/testZone/missing.txt")
			So(logs.String(), ShouldContainSubstring, "item=1")
		})

		Convey("blank lines and whitespace are ignored", func() {
			d.PrintPass = true

			counts, err := d.Run(ctx, strings.NewReader("\n  /testZone/a.txt  \n\n\t\n"), exists)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, Counts{Processed: 1, Passed: 1})
			So(counts.ExitCode(), ShouldEqual, 0)
			So(out.String(), ShouldEqual, "/testZone/a.txt\n")
		})

		Convey("failed checks are errors", func() {
			d.PrintFail = true
			d.PrintPass = true

			isCollection := Check(func(ctx context.Context, p string) (bool, error) {
				item, err := irods.Open(ctx, s, p)
				if err != nil {
					return false, err
				}

				return item.IsCollection(), nil
			})

			counts, err := d.Run(ctx, strings.NewReader("/testZone\n/testZone/a.txt\n"), isCollection)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, Counts{Processed: 2, Passed: 1, Errors: 1})
			So(sortedLines(out.String()), ShouldResemble, []string{"/testZone", "/testZone/a.txt"})
			So(logs.String(), ShouldContainSubstring, "check failed")
		})

		Convey("panics are recovered and counted", func() {
			counts, err := d.Run(ctx, strings.NewReader("x\ny\n"), func(_ context.Context, p string) (bool, error) {
				if p == "x" {
					panic("boom")
				}

				return false, nil
			})
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, Counts{Processed: 2, Errors: 1})
			So(logs.String(), ShouldContainSubstring, "boom")
		})

		Convey("no more than the given number of workers run at once", func() {
			var running, most atomic.Int32

			d.Workers = 3

			paths := strings.Repeat("p\n", 50)

			counts, err := d.Run(ctx, strings.NewReader(paths), func(_ context.Context, _ string) (bool, error) {
				n := running.Add(1)
				defer running.Add(-1)

				for {
					m := most.Load()
					if n <= m || most.CompareAndSwap(m, n) {
						break
					}
				}

				return true, nil
			})
			So(err, ShouldBeNil)
			So(counts.Processed, ShouldEqual, 50)
			So(most.Load(), ShouldBeLessThanOrEqualTo, 3)
		})

		Convey("failures to print are logged without counting against the item", func() {
			d.Out = internaltest.BadWriter{}
			d.PrintPass = true

			counts, err := d.Run(ctx, strings.NewReader("/testZone/a.txt\n"), exists)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, Counts{Processed: 1, Passed: 1})
			So(logs.String(), ShouldContainSubstring, "writing output")
		})

		Convey("a cancelled context stops the run", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			counts, err := d.Run(cctx, strings.NewReader("/testZone/a.txt\n"), exists)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(counts.Processed, ShouldEqual, 0)
		})
	})

	Convey("Counts are summarised", t, func() {
		So(Counts{Processed: 12345, Passed: 1000, Errors: 1}.Summary("updated"), ShouldEqual,
			"processed 12,345, updated 1,000, errors 1")
	})
}

func TestOpenInput(t *testing.T) {
	Convey("Given plain and compressed path lists", t, func() {
		dir := t.TempDir()

		plain := filepath.Join(dir, "paths.txt")
		So(os.WriteFile(plain, []byte("/a\n/b\n"), 0600), ShouldBeNil)

		compressed := filepath.Join(dir, "paths.txt.gz")
		f, err := os.Create(compressed)
		So(err, ShouldBeNil)

		w := pgzip.NewWriter(f)
		_, err = w.Write([]byte("/c\n"))
		So(err, ShouldBeNil)
		So(w.Close(), ShouldBeNil)
		So(f.Close(), ShouldBeNil)

		Convey("both can be processed", func() {
			for path, expected := range map[string]int{plain: 2, compressed: 1} {
				r, err := OpenInput(path)
				So(err, ShouldBeNil)

				d := &Driver{}

				counts, err := d.Run(context.Background(), r, func(context.Context, string) (bool, error) {
					return true, nil
				})
				So(err, ShouldBeNil)
				So(counts.Passed, ShouldEqual, expected)
				So(r.Close(), ShouldBeNil)
			}
		})

		Convey("missing files are an error", func() {
			_, err := OpenInput(filepath.Join(dir, "missing"))
			So(err, ShouldNotBeNil)
		})

		Convey("outputs can be created", func() {
			out := filepath.Join(dir, "out.txt")

			w, err := OpenOutput(out)
			So(err, ShouldBeNil)
			_, err = w.Write([]byte("/a\n"))
			So(err, ShouldBeNil)
			So(w.Close(), ShouldBeNil)

			b, err := os.ReadFile(out)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "/a\n")
		})
	})
}
