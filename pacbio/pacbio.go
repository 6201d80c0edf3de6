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

// Package pacbio resolves PacBio data in the store to the warehouse records
// of the libraries they were sequenced from.
package pacbio

import (
	"context"
	"fmt"
	"path"
	"slices"

	"github.com/inconshreveable/log15"
	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
)

// Warehouse is the part of the warehouse client used here.
type Warehouse interface {
	PacBioRecords(ctx context.Context, q mlwh.PacBioQuery) ([]mlwh.PacBioRecord, error)
}

// SequenceSuffixes are the suffixes of files holding reads.
var SequenceSuffixes = []string{".bam", ".h5", ".fasta"} //nolint:gochecknoglobals

// ComponentsOf returns the components of a data object, one per tag_sequence
// AVU, or one without a tag if it has none. The run, well and plate must each
// have a single value. Wells are returned without zero padding, as they are
// recorded in the warehouse. Objects without a run AVU have no components.
func ComponentsOf(ctx context.Context, item *irods.Item) ([]component.PacBioComponent, error) {
	if !item.IsDataObject() {
		return nil, fmt.Errorf("%w: %s", irods.ErrNotDataObject, item)
	}

	avus, err := item.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	values, err := metadata.CollateUnique(avus, metadata.PacBioRunName, metadata.PacBioWellLabel,
		metadata.PacBioPlateNumber, metadata.Subset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", item, component.ErrInvalidComponent, err)
	}

	run, ok := values[metadata.PacBioRunName]
	if !ok {
		return nil, nil
	}

	well, ok := values[metadata.PacBioWellLabel]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s without %s", item, component.ErrInvalidComponent,
			metadata.PacBioRunName, metadata.PacBioWellLabel)
	}

	base := component.PacBioComponent{RunName: run, WellLabel: component.UnpaddedWell(well)}

	if plate, ok := values[metadata.PacBioPlateNumber]; ok {
		n, err := metadata.ParseInt(metadata.PacBioPlateNumber, plate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", item, component.ErrInvalidComponent, err)
		}

		base.PlateNumber = &n
	}

	if base.Subset, err = component.ParseSubset(values[metadata.Subset]); err != nil {
		return nil, fmt.Errorf("%s: %w", item, err)
	}

	tags := irods.Collate(irods.UniqueAVUs(avus))[metadata.PacBioTagSequence]
	if len(tags) == 0 {
		return []component.PacBioComponent{base}, nil
	}

	comps := make([]component.PacBioComponent, len(tags))

	for i, tag := range tags {
		comps[i] = base
		comps[i].TagSequence = tag
	}

	return comps, nil
}

// RecordsFor returns the warehouse records of a component.
func RecordsFor(ctx context.Context, wh Warehouse, c component.PacBioComponent) ([]mlwh.PacBioRecord, error) {
	recs, err := wh.PacBioRecords(ctx, mlwh.PacBioQuery{
		RunName:     c.RunName,
		WellLabel:   component.UnpaddedWell(c.WellLabel),
		PlateNumber: c.PlateNumber,
		TagSequence: c.TagSequence,
	})
	if err != nil {
		return nil, fmt.Errorf("finding records for %s: %w", c, err)
	}

	return recs, nil
}

// RequiresManagedAccess returns true if access to a data object is granted
// to study groups, which is the case for objects with a source AVU. Sequence
// files without one are logged, but are not managed.
func RequiresManagedAccess(ctx context.Context, obj *irods.Item, log log15.Logger) (bool, error) {
	avus, err := obj.MetadataWith(ctx, metadata.Source)
	if err != nil {
		return false, err
	}

	if len(avus) > 0 {
		return true, nil
	}

	if slices.Contains(SequenceSuffixes, path.Ext(obj.Path)) {
		log.Warn("sequence file has no source metadata", "path", obj.Path)
	}

	return false, nil
}

// QueryAVUs returns the sets of AVUs that may identify the data objects of a
// well in the store. Well labels have been recorded both with and without
// zero padding, so there is one set for each.
func QueryAVUs(w mlwh.PacBioWell) [][]irods.AVU {
	var sets [][]irods.AVU

	for _, label := range []string{component.PaddedWell(w.WellLabel), component.UnpaddedWell(w.WellLabel)} {
		avus := []irods.AVU{
			irods.NewAVU(metadata.PacBioRunName, w.RunName),
			irods.NewAVU(metadata.PacBioWellLabel, label),
		}

		if w.PlateNumber != nil {
			avus = append(avus, irods.NewAVU(metadata.PacBioPlateNumber, *w.PlateNumber))
		}

		if w.TagSequence != "" {
			avus = append(avus, irods.NewAVU(metadata.PacBioTagSequence, w.TagSequence))
		}

		if !slices.ContainsFunc(sets, func(s []irods.AVU) bool { return slices.Equal(s, avus) }) {
			sets = append(sets, avus)
		}
	}

	return sets
}
