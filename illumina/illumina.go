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

// Package illumina resolves Illumina data in the store to the warehouse
// records of the libraries they were sequenced from.
package illumina

import (
	"context"
	"fmt"

	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
)

// Warehouse is the part of the warehouse client used here.
type Warehouse interface {
	IlluminaRecords(ctx context.Context, q mlwh.IlluminaQuery) ([]mlwh.IlluminaRecord, error)
}

// ComponentsOf returns the components of an item. Each component AVU is one
// component; an item made by merging data from several positions has more
// than one. Items without component AVUs are described by their id_run, lane,
// tag_index and subset AVUs instead. An item with none of these has no
// components.
func ComponentsOf(ctx context.Context, item *irods.Item) ([]component.IlluminaComponent, error) {
	avus, err := item.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	var comps []component.IlluminaComponent

	for _, avu := range avus {
		if avu.Attribute != metadata.Component {
			continue
		}

		c, err := component.ParseIlluminaAVU(avu)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", item, err)
		}

		comps = append(comps, c)
	}

	if len(comps) > 0 {
		return comps, nil
	}

	c, ok, err := componentFromAVUs(avus)
	if err != nil || !ok {
		return nil, wrapPath(item, err)
	}

	return []component.IlluminaComponent{c}, nil
}

func wrapPath(item *irods.Item, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", item, err)
}

func componentFromAVUs(avus []irods.AVU) (component.IlluminaComponent, bool, error) {
	values, err := metadata.CollateUnique(avus, metadata.IlluminaRun, metadata.IlluminaPosition,
		metadata.TagIndex, metadata.Subset)
	if err != nil {
		return component.IlluminaComponent{}, false, fmt.Errorf("%w: %w", component.ErrInvalidComponent, err)
	}

	run, hasRun := values[metadata.IlluminaRun]
	if !hasRun {
		return component.IlluminaComponent{}, false, nil
	}

	pos, hasPos := values[metadata.IlluminaPosition]
	if !hasPos {
		return component.IlluminaComponent{}, false, fmt.Errorf("%w: %s without %s",
			component.ErrInvalidComponent, metadata.IlluminaRun, metadata.IlluminaPosition)
	}

	var c component.IlluminaComponent

	if c.Run, err = parseInt(metadata.IlluminaRun, run); err != nil {
		return c, false, err
	}

	if c.Position, err = parseInt(metadata.IlluminaPosition, pos); err != nil {
		return c, false, err
	}

	if tag, ok := values[metadata.TagIndex]; ok {
		n, err := parseInt(metadata.TagIndex, tag)
		if err != nil {
			return c, false, err
		}

		c.TagIndex = &n
	}

	if c.Subset, err = component.ParseSubset(values[metadata.Subset]); err != nil {
		return c, false, err
	}

	return c, true, nil
}

func parseInt(attr, value string) (int, error) {
	n, err := metadata.ParseInt(attr, value)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", component.ErrInvalidComponent, err)
	}

	return n, nil
}

// RecordsFor returns the warehouse records of a component.
//
// Tag 0 holds the reads of a pool that matched no tag, so it is resolved to
// every tagged library in the run position. Controls spiked into a pool
// (tags 198 and 888) are only resolved if includeControls is true; otherwise
// they have no records.
func RecordsFor(ctx context.Context, wh Warehouse, c component.IlluminaComponent,
	includeControls bool,
) ([]mlwh.IlluminaRecord, error) {
	q := mlwh.IlluminaQuery{Run: c.Run, Position: c.Position}

	switch {
	case c.TagIndex == nil:
		q.Tag = mlwh.Untagged
	case c.IsBin():
		q.Tag = mlwh.AnyTag
	case c.IsControl() && !includeControls:
		return nil, nil
	default:
		q.Tag = mlwh.ExactTag
		q.TagIndex = *c.TagIndex
	}

	recs, err := wh.IlluminaRecords(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("finding records for %s: %w", c, err)
	}

	return recs, nil
}

// QueryAVUs returns the AVUs that locate the data of a changed product in
// the store.
func QueryAVUs(p mlwh.IlluminaProduct) []irods.AVU {
	avus := []irods.AVU{
		irods.NewAVU(metadata.IlluminaRun, p.Run),
		irods.NewAVU(metadata.IlluminaPosition, p.Position),
	}

	if p.TagIndex != nil {
		avus = append(avus, irods.NewAVU(metadata.TagIndex, *p.TagIndex))
	}

	return avus
}
