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

// Package ont resolves Oxford Nanopore run collections in the store to the
// warehouse records of the libraries sequenced in them, and annotates the
// collections with the metadata and permissions those records call for.
package ont

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
)

// Error is the custom error type for the ont package.
type Error string

const (
	// ErrInvalidTagIdentifier is returned for tag identifiers that do not end
	// in a number.
	ErrInvalidTagIdentifier = Error("invalid ONT tag identifier")

	// ErrBarcodeLayout is returned when a run collection has barcode
	// collections nested inside other barcode collections.
	ErrBarcodeLayout = Error("inconsistent barcode collection layout")

	// ErrNoRecords is returned when the warehouse has no records for a
	// component.
	ErrNoRecords = Error("no warehouse records")

	ErrSlotWithoutExperiment = Error("an instrument slot requires an experiment name")
)

func (e Error) Error() string { return string(e) }

// IgnoredDirectories are collections in a run that never hold barcode
// collections.
var IgnoredDirectories = []string{"other_reports"} //nolint:gochecknoglobals

var (
	tagIdentifierRegex = regexp.MustCompile(`(\d+)$`)      //nolint:gochecknoglobals
	barcodeNameRegex   = regexp.MustCompile(`^barcode\d+$`) //nolint:gochecknoglobals
)

// Warehouse is the part of the warehouse client used here.
type Warehouse interface {
	ONTRecords(ctx context.Context, experiment string, slot int, tagIdentifier string) ([]mlwh.ONTRecord, error)
	ONTChanged(ctx context.Context, since, until time.Time) ([]mlwh.ONTRun, error)
}

func tagNumber(tagIdentifier string) (string, error) {
	m := tagIdentifierRegex.FindStringSubmatch(tagIdentifier)
	if m == nil {
		return "", fmt.Errorf("%w %q: expected a value matching %s",
			ErrInvalidTagIdentifier, tagIdentifier, tagIdentifierRegex)
	}

	return m[1], nil
}

// TagIndexFromID returns the tag index of a tag identifier, e.g. 1 for NB01.
func TagIndexFromID(tagIdentifier string) (int, error) {
	n, err := tagNumber(tagIdentifier)
	if err != nil {
		return 0, err
	}

	return metadata.ParseInt(metadata.ONTTagIdentifier, n)
}

// BarcodeNameFromID returns the name of the collection holding the data for a
// tag identifier, e.g. barcode01 for NB01.
func BarcodeNameFromID(tagIdentifier string) (string, error) {
	n, err := tagNumber(tagIdentifier)
	if err != nil {
		return "", err
	}

	if len(n) < 2 {
		n = "0" + n
	}

	return "barcode" + n, nil
}

// IsMinKNOWReport returns true for the run report data objects written by
// MinKNOW.
func IsMinKNOWReport(item *irods.Item) bool {
	return item.IsDataObject() && strings.Contains(item.Name(), "report")
}

// ComponentsOf returns the component of an item. The experiment name and
// slot are taken from the item or its nearest ancestor that has them, and the
// tag identifier from the item or any ancestor below that. Items outside any
// run collection have no components.
func ComponentsOf(ctx context.Context, item *irods.Item) ([]component.ONTComponent, error) {
	var tag string

	for p := item.Path; ; p = path.Dir(p) {
		avus, err := item.Store().Metadata(ctx, p)
		if errors.Is(err, irods.ErrNotFound) && p != item.Path {
			return nil, nil
		} else if err != nil {
			return nil, err
		}

		values, err := metadata.CollateUnique(avus, metadata.ONTExperimentName,
			metadata.ONTInstrumentSlot, metadata.ONTTagIdentifier)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", p, component.ErrInvalidComponent, err)
		}

		if t, ok := values[metadata.ONTTagIdentifier]; ok && tag == "" {
			tag = t
		}

		if expt, ok := values[metadata.ONTExperimentName]; ok {
			return componentAt(p, expt, values[metadata.ONTInstrumentSlot], tag)
		}

		if p == "/" {
			return nil, nil
		}
	}
}

func componentAt(p, expt, slot, tag string) ([]component.ONTComponent, error) {
	if slot == "" {
		return nil, fmt.Errorf("%s: %w: %s without %s", p, component.ErrInvalidComponent,
			metadata.ONTExperimentName, metadata.ONTInstrumentSlot)
	}

	n, err := metadata.ParseInt(metadata.ONTInstrumentSlot, slot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", p, component.ErrInvalidComponent, err)
	}

	return []component.ONTComponent{{ExperimentName: expt, InstrumentSlot: n, TagIdentifier: tag}}, nil
}

// RecordsFor returns the warehouse records of a component: one for a simplex
// run or a single barcode, or one per barcode for a multiplexed run.
func RecordsFor(ctx context.Context, wh Warehouse, c component.ONTComponent) ([]mlwh.ONTRecord, error) {
	recs, err := wh.ONTRecords(ctx, c.ExperimentName, c.InstrumentSlot, c.TagIdentifier)
	if err != nil {
		return nil, fmt.Errorf("finding records for %s: %w", c, err)
	}

	return recs, nil
}

// QueryAVUs returns the AVUs that identify a run collection in the store.
func QueryAVUs(experiment string, slot int) []irods.AVU {
	return []irods.AVU{
		irods.NewAVU(metadata.ONTExperimentName, experiment),
		irods.NewAVU(metadata.ONTInstrumentSlot, slot),
	}
}

// barcodeCollections walks a run collection once and returns every barcode
// collection found in it, keyed by name. Collections listed in
// IgnoredDirectories are not searched.
func barcodeCollections(ctx context.Context, coll *irods.Item) (map[string][]*irods.Item, error) {
	found := make(map[string][]*irods.Item)

	var walk func(item *irods.Item, barcodes int) error

	walk = func(item *irods.Item, barcodes int) error {
		contents, err := item.Contents(ctx, false)
		if err != nil {
			return err
		}

		for _, child := range contents {
			if !child.IsCollection() || slices.Contains(IgnoredDirectories, child.Name()) {
				continue
			}

			n := barcodes

			if barcodeNameRegex.MatchString(child.Name()) {
				n++

				if n > 1 {
					return fmt.Errorf("%w: %s is within another barcode collection",
						ErrBarcodeLayout, child)
				}

				found[child.Name()] = append(found[child.Name()], child)
			}

			if err := walk(child, n); err != nil {
				return err
			}
		}

		return nil
	}

	if err := walk(coll, 0); err != nil {
		return nil, err
	}

	for _, colls := range found {
		slices.SortFunc(colls, compareByParent)
	}

	return found, nil
}

func compareByParent(a, b *irods.Item) int {
	if c := strings.Compare(path.Dir(a.Path), path.Dir(b.Path)); c != 0 {
		return c
	}

	return strings.Compare(a.Name(), b.Name())
}

// BarcodeCollections returns the collections in a run collection holding the
// data of the given barcode tags, grouped by parent collection. Barcode
// collections may be directly in the run collection, in an output collection
// such as "pass", or in each of the read category collections such as
// "fastq_pass". Tags with no collection are skipped. A barcode collection
// inside another is an ErrBarcodeLayout error.
func BarcodeCollections(ctx context.Context, coll *irods.Item, tagIdentifiers ...string) ([]*irods.Item, error) {
	found, err := barcodeCollections(ctx, coll)
	if err != nil {
		return nil, err
	}

	var out []*irods.Item

	for _, tag := range tagIdentifiers {
		name, err := BarcodeNameFromID(tag)
		if err != nil {
			return nil, err
		}

		out = append(out, found[name]...)
	}

	slices.SortFunc(out, compareByParent)

	return slices.CompactFunc(out, func(a, b *irods.Item) bool { return a.Path == b.Path }), nil
}
