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

package irods

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// HistorySuffix is appended to an attribute to name the AVU that records
	// values superseded for that attribute.
	HistorySuffix = "_history"

	historyTimeFormat = "2006-01-02T15:04:05"
)

// AVU is an attribute, value, unit metadata triple on an item.
type AVU struct {
	Attribute string
	Value     string
	Units     string
}

// NewAVU returns an AVU with no units. The value is formatted with %v, so
// ints and strings may be given directly.
func NewAVU(attribute string, value any) AVU {
	return AVU{Attribute: attribute, Value: fmt.Sprint(value)}
}

func (a AVU) String() string {
	if a.Units == "" {
		return fmt.Sprintf("%s=%s", a.Attribute, a.Value)
	}

	return fmt.Sprintf("%s=%s (%s)", a.Attribute, a.Value, a.Units)
}

// IsHistory returns true if this AVU records superseded values.
func (a AVU) IsHistory() bool {
	return strings.HasSuffix(a.Attribute, HistorySuffix)
}

// CompareAVUs orders AVUs by attribute, then value, then units.
func CompareAVUs(a, b AVU) int {
	if c := strings.Compare(a.Attribute, b.Attribute); c != 0 {
		return c
	}

	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}

	return strings.Compare(a.Units, b.Units)
}

// UniqueAVUs returns a sorted copy of the given AVUs with duplicates removed.
func UniqueAVUs(avus []AVU) []AVU {
	out := slices.Clone(avus)
	slices.SortFunc(out, CompareAVUs)

	return slices.Compact(out)
}

// HistoryAVU returns the AVU recording that the given values of attribute
// were superseded at the given time. The values are kept in the order given.
func HistoryAVU(attribute string, when time.Time, values ...string) AVU {
	return AVU{
		Attribute: attribute + HistorySuffix,
		Value:     fmt.Sprintf("[%s] %s", when.UTC().Format(historyTimeFormat), strings.Join(values, ",")),
	}
}

// Collate groups the values of the given AVUs by attribute, preserving order.
func Collate(avus []AVU) map[string][]string {
	m := make(map[string][]string)

	for _, avu := range avus {
		m[avu.Attribute] = append(m[avu.Attribute], avu.Value)
	}

	return m
}

// Difference returns the AVUs in a that are not in b.
func Difference(a, b []AVU) []AVU {
	var out []AVU

	for _, avu := range a {
		if !slices.Contains(b, avu) {
			out = append(out, avu)
		}
	}

	return out
}
