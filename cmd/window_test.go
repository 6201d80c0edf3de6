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

package cmd

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWindow(t *testing.T) {
	Convey("Given a time now", t, func() {
		now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

		Convey("the default window is the 14 days before it", func() {
			since, until, err := (&windowOptions{}).window(now)
			So(err, ShouldBeNil)
			So(until, ShouldEqual, now)
			So(since, ShouldEqual, now.Add(-14*24*time.Hour))
		})

		Convey("dates can be given as days or RFC3339", func() {
			since, until, err := (&windowOptions{begin: "2024-01-02", end: "2024-02-03T04:05:06+01:00"}).window(now)
			So(err, ShouldBeNil)
			So(since, ShouldEqual, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			So(until.UTC(), ShouldEqual, time.Date(2024, 2, 3, 3, 5, 6, 0, time.UTC))
		})

		Convey("an end date alone moves the window", func() {
			since, until, err := (&windowOptions{end: "2024-03-15"}).window(now)
			So(err, ShouldBeNil)
			So(until, ShouldEqual, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
			So(since, ShouldEqual, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
		})

		Convey("invalid or reversed dates are errors", func() {
			_, _, err := (&windowOptions{begin: "yesterday"}).window(now)
			So(err, ShouldNotBeNil)

			_, _, err = (&windowOptions{begin: "2024-03-02", end: "2024-03-01"}).window(now)
			So(err, ShouldNotBeNil)
		})
	})
}
