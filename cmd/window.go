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
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultWindow = 14 * 24 * time.Hour

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} //nolint:gochecknoglobals

// windowOptions limit a subcommand to warehouse records changed between two
// dates.
type windowOptions struct {
	begin string
	end   string
}

func (o *windowOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.begin, "begin-date", "",
		"limit to records changed at or after this date, given as YYYY-MM-DD or RFC3339 (default 14 days ago)")
	cmd.Flags().StringVar(&o.end, "end-date", "",
		"limit to records changed at or before this date, given as YYYY-MM-DD or RFC3339 (default now)")
}

// window returns the parsed begin and end dates, relative to now.
func (o *windowOptions) window(now time.Time) (time.Time, time.Time, error) {
	until := now
	since := now.Add(-defaultWindow)

	var err error

	if o.end != "" {
		if until, err = parseDate(o.end); err != nil {
			return since, until, err
		}
	}

	if o.begin != "" {
		if since, err = parseDate(o.begin); err != nil {
			return since, until, err
		}
	} else if o.end != "" {
		since = until.Add(-defaultWindow)
	}

	if since.After(until) {
		return since, until, fmt.Errorf("--begin-date %s is after --end-date %s", //nolint:err113
			since.Format(time.RFC3339), until.Format(time.RFC3339))
	}

	return since, until, nil
}

// parseDate parses a date in one of the accepted layouts. Dates without a zone
// are UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s) //nolint:err113
}
