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

// Package locate finds the items in the store whose warehouse records have
// changed, so that they can be updated.
package locate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/wtsi-npg/npg-irods/batch"
	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/illumina"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
	"github.com/wtsi-npg/npg-irods/ont"
	"github.com/wtsi-npg/npg-irods/pacbio"
)

// Error is the custom error type for the locate package.
type Error string

// ErrMissingSampleID is counted for withdrawn samples with no ID to search
// for.
const ErrMissingSampleID = Error("sample has no id_sample_lims")

func (e Error) Error() string { return string(e) }

// QCCollection is the name of the collection beside Illumina data objects
// that holds their QC results.
const QCCollection = "qc"

// DefaultSkipAbsentRuns is the number of products of a run searched for
// without success before the rest of the run is skipped.
const DefaultSkipAbsentRuns = 3

// Warehouse is the part of the warehouse client used to find changes.
type Warehouse interface {
	ConsentWithdrawnSamples(ctx context.Context) ([]metadata.Sample, error)
	IlluminaChanged(ctx context.Context, since, until time.Time) ([]mlwh.IlluminaProduct, error)
	ONTChanged(ctx context.Context, since, until time.Time) ([]mlwh.ONTRun, error)
	PacBioChanged(ctx context.Context, since, until time.Time) ([]mlwh.PacBioWell, error)
}

// Locator searches the store for the items of warehouse records and prints
// their paths to Out, one per line. Errors for a record are logged and
// counted; they do not stop the search for the others. In the returned
// counts, Passed is the number of records for which anything was found.
type Locator struct {
	Store     irods.Store
	Warehouse Warehouse
	Out       io.Writer
	Logger    log15.Logger
}

func (l *Locator) logger() log15.Logger { //nolint:ireturn
	if l.Logger != nil {
		return l.Logger
	}

	lg := log15.New()
	lg.SetHandler(log15.DiscardHandler())

	return lg
}

func (l *Locator) print(paths []string) error {
	slices.Sort(paths)

	for _, p := range slices.Compact(paths) {
		if _, err := fmt.Fprintln(l.Out, p); err != nil {
			return err
		}
	}

	return nil
}

// record updates counts with the result of searching for one record.
func record(counts *batch.Counts, log log15.Logger, found int, err error) {
	counts.Processed++

	if err != nil {
		counts.Errors++

		log.Error("search failed", "err", err)

		return
	}

	if found > 0 {
		counts.Passed++
	}
}

// ConsentWithdrawn prints the data objects of every sample whose consent has
// been withdrawn: those with the sample's metadata, and those in collections
// with it.
func (l *Locator) ConsentWithdrawn(ctx context.Context) (batch.Counts, error) {
	var counts batch.Counts

	samples, err := l.Warehouse.ConsentWithdrawnSamples(ctx)
	if err != nil {
		return counts, err
	}

	for i, s := range samples {
		log := l.logger().New("item", i, "sample", s.IDSampleLIMS)
		log.Info("finding data objects")

		found, err := l.consentWithdrawn(ctx, s)
		record(&counts, log, found, err)
	}

	return counts, nil
}

func (l *Locator) consentWithdrawn(ctx context.Context, s metadata.Sample) (int, error) {
	if s.IDSampleLIMS == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingSampleID, s.Name)
	}

	ids := []string{s.IDSampleLIMS}
	if s.SangerSampleID != "" && s.SangerSampleID != s.IDSampleLIMS {
		ids = append(ids, s.SangerSampleID)
	}

	var paths []string

	for _, id := range ids {
		query := irods.NewAVU(metadata.SampleID, id)

		objs, err := l.Store.QueryMetadata(ctx, irods.KindDataObject, query)
		if err != nil {
			return 0, err
		}

		paths = append(paths, objs...)

		colls, err := l.Store.QueryMetadata(ctx, irods.KindCollection, query)
		if err != nil {
			return 0, err
		}

		for _, c := range colls {
			contents, err := irods.NewCollection(l.Store, c).Contents(ctx, true)
			if err != nil {
				return 0, err
			}

			for _, item := range contents {
				if item.IsDataObject() {
					paths = append(paths, item.Path)
				}
			}
		}
	}

	return len(paths), l.print(paths)
}

// IlluminaUpdates prints the data objects of Illumina products changed in
// the window [since, until], with the contents of the QC collections beside
// them. Products are searched for run by run; once skipAbsentRuns products
// of a run have been searched for without anything being found, the rest of
// the run is skipped.
func (l *Locator) IlluminaUpdates(ctx context.Context, since, until time.Time,
	skipAbsentRuns int,
) (batch.Counts, error) {
	var counts batch.Counts

	products, err := l.Warehouse.IlluminaChanged(ctx, since, until)
	if err != nil {
		return counts, err
	}

	var (
		run                 = -1
		attempts, successes int
		paths               []string
	)

	for i, p := range products {
		if p.Run != run {
			if err := l.print(paths); err != nil {
				return counts, err
			}

			run, paths, attempts, successes = p.Run, nil, 0, 0
		}

		query := illumina.QueryAVUs(p)
		log := l.logger().New("item", i, "query", fmt.Sprint(query))

		if skipAbsentRuns > 0 && successes == 0 && attempts >= skipAbsentRuns {
			log.Info("skipping run after unsuccessful attempts to find it", "attempts", attempts)

			counts.Processed++

			continue
		}

		log.Info("searching")

		found, err := l.illuminaProduct(ctx, query, log)
		if err == nil {
			if len(found) == 0 {
				attempts++
			} else {
				successes++
			}
		}

		paths = append(paths, found...)

		record(&counts, log, len(found), err)
	}

	return counts, l.print(paths)
}

func (l *Locator) illuminaProduct(ctx context.Context, query []irods.AVU, log log15.Logger) ([]string, error) {
	objs, err := l.Store.QueryMetadata(ctx, irods.KindDataObject, query...)
	if err != nil {
		return nil, err
	}

	paths := slices.Clone(objs)

	for _, obj := range objs {
		qc := irods.NewCollection(l.Store, path.Join(path.Dir(obj), QCCollection))

		contents, err := qc.Contents(ctx, true)
		if errors.Is(err, irods.ErrNotFound) {
			log.Warn("QC collection missing", "path", qc.Path)

			continue
		} else if err != nil {
			return nil, err
		}

		for _, item := range contents {
			paths = append(paths, item.Path)
		}
	}

	return paths, nil
}

// ONTUpdates prints the run collections of ONT experiment slots changed in
// the window [since, until]. If reportTags is true, the barcode collections
// of changed barcodes in multiplexed runs are printed instead of their run
// collections.
func (l *Locator) ONTUpdates(ctx context.Context, since, until time.Time, reportTags bool) (batch.Counts, error) {
	var counts batch.Counts

	runs, err := l.Warehouse.ONTChanged(ctx, since, until)
	if err != nil {
		return counts, err
	}

	var comps []component.ONTComponent

	for _, r := range runs {
		c := component.ONTComponent{ExperimentName: r.ExperimentName, InstrumentSlot: r.InstrumentSlot}
		if reportTags {
			c.TagIdentifier = r.TagIdentifier
		}

		if !slices.Contains(comps, c) {
			comps = append(comps, c)
		}
	}

	for i, c := range comps {
		log := l.logger().New("item", i, "comp", c.String())
		log.Info("finding collections")

		found, err := l.ontComponent(ctx, c)
		record(&counts, log, found, err)
	}

	return counts, nil
}

func (l *Locator) ontComponent(ctx context.Context, c component.ONTComponent) (int, error) {
	colls, err := l.Store.QueryMetadata(ctx, irods.KindCollection, ont.QueryAVUs(c.ExperimentName, c.InstrumentSlot)...)
	if err != nil {
		return 0, err
	}

	if c.TagIdentifier == "" {
		return len(colls), l.print(colls)
	}

	var paths []string

	for _, p := range colls {
		bcolls, err := ont.BarcodeCollections(ctx, irods.NewCollection(l.Store, p), c.TagIdentifier)
		if err != nil {
			return 0, err
		}

		for _, b := range bcolls {
			paths = append(paths, b.Path)
		}
	}

	return len(paths), l.print(paths)
}

// PacBioUpdates prints the data objects of PacBio wells changed in the window
// [since, until]. Wells are searched for with and without zero padding.
func (l *Locator) PacBioUpdates(ctx context.Context, since, until time.Time) (batch.Counts, error) {
	var counts batch.Counts

	wells, err := l.Warehouse.PacBioChanged(ctx, since, until)
	if err != nil {
		return counts, err
	}

	for i, w := range wells {
		log := l.logger().New("item", i, "run", w.RunName, "well", w.WellLabel, "tag", w.TagSequence)
		log.Info("finding data objects")

		found, err := l.pacbioWell(ctx, w)
		record(&counts, log, found, err)
	}

	return counts, nil
}

func (l *Locator) pacbioWell(ctx context.Context, w mlwh.PacBioWell) (int, error) {
	var paths []string

	for _, query := range pacbio.QueryAVUs(w) {
		objs, err := l.Store.QueryMetadata(ctx, irods.KindDataObject, query...)
		if err != nil {
			return 0, err
		}

		paths = append(paths, objs...)
	}

	return len(paths), l.print(paths)
}
