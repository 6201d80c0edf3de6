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

// Package secondary brings the sample and study metadata of items in the
// store, and the study access that follows from them, into line with the
// warehouse.
package secondary

import (
	"context"
	"fmt"

	"github.com/inconshreveable/log15"
	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/consent"
	"github.com/wtsi-npg/npg-irods/illumina"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
	"github.com/wtsi-npg/npg-irods/ont"
	"github.com/wtsi-npg/npg-irods/pacbio"
	"github.com/wtsi-npg/npg-irods/reconcile"
)

// Error is the custom error type for the secondary package.
type Error string

const (
	// ErrNoComponents is returned for items with no metadata identifying what
	// was sequenced.
	ErrNoComponents = Error("no component metadata")

	// ErrUnsupportedPlatform is returned for items of platforms with no
	// component resolver.
	ErrUnsupportedPlatform = Error("unsupported platform")
)

func (e Error) Error() string { return string(e) }

// Warehouse is the part of the warehouse client used to find records.
type Warehouse interface {
	illumina.Warehouse
	ont.Warehouse
	pacbio.Warehouse
}

// Synchronizer updates items from the warehouse records of their components.
type Synchronizer struct {
	Warehouse Warehouse

	// Consent names the principals that keep access to withdrawn data.
	Consent consent.Policy

	// IncludeControls resolves Illumina control tags to their records.
	IncludeControls bool

	Logger log15.Logger
}

func (s *Synchronizer) logger() log15.Logger { //nolint:ireturn
	if s.Logger != nil {
		return s.Logger
	}

	l := log15.New()
	l.SetHandler(log15.DiscardHandler())

	return l
}

// Synchronize updates the secondary metadata and permissions of an item. The
// platform is inferred from the path, then the components the item holds
// data for are read from its metadata and resolved to warehouse records,
// from which the desired metadata and access are made. Consent withdrawn
// items are kept withdrawn. It returns true if anything changed.
//
// Components that resolve to no records leave the item with no study
// access.
func (s *Synchronizer) Synchronize(ctx context.Context, item *irods.Item) (bool, error) {
	platform, err := component.Infer(item.Path)
	if err != nil {
		return false, err
	}

	log := s.logger().New("path", item.Path, "platform", platform.String())

	switch platform { //nolint:exhaustive
	case component.Illumina:
		return s.synchronizeIllumina(ctx, item, log)
	case component.OxfordNanopore:
		return s.synchronizeONT(ctx, item, log)
	case component.PacBio:
		return s.synchronizePacBio(ctx, item, log)
	default:
		return false, fmt.Errorf("%w: %s: %s", ErrUnsupportedPlatform, platform, item)
	}
}

// desired collects the metadata and access of each component's records. The
// access given depends on the component's subset.
type desired struct {
	records []metadata.Record
	acl     []irods.AC
}

func (d *desired) add(zone string, subset component.Subset, recs []metadata.Record) {
	d.records = append(d.records, recs...)
	d.acl = append(d.acl, metadata.MakeSecondaryACL(zone, string(subset), recs...)...)
}

func (d *desired) apply(ctx context.Context, item *irods.Item, opts reconcile.Options) (bool, error) {
	avus, err := metadata.MakeSecondaryMetadata(d.records...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", item, err)
	}

	return reconcile.Apply(ctx, item, avus, irods.UniqueACL(d.acl), opts)
}

func noComponents(item *irods.Item) error {
	return fmt.Errorf("%w: %s", ErrNoComponents, item)
}

func (s *Synchronizer) synchronizeIllumina(ctx context.Context, item *irods.Item, log log15.Logger) (bool, error) {
	comps, err := illumina.ComponentsOf(ctx, item)
	if err != nil {
		return false, err
	}

	if len(comps) == 0 {
		return false, noComponents(item)
	}

	var d desired

	for _, c := range comps {
		recs, err := illumina.RecordsFor(ctx, s.Warehouse, c, s.IncludeControls)
		if err != nil {
			return false, err
		}

		log.Debug("found records", "comp", c.String(), "n", len(recs))

		records := make([]metadata.Record, len(recs))
		for i, r := range recs {
			records[i] = r.Record
		}

		d.add(item.Zone(), c.Subset, records)
	}

	return d.apply(ctx, item, reconcile.Options{Consent: s.Consent})
}

// synchronizeONT updates an item in a run. A run collection without a tag is
// annotated as a whole, which for a multiplexed run means each of its
// barcode collections. Anything else gets the records of its component.
func (s *Synchronizer) synchronizeONT(ctx context.Context, item *irods.Item, log log15.Logger) (bool, error) {
	comps, err := ont.ComponentsOf(ctx, item)
	if err != nil {
		return false, err
	}

	if len(comps) == 0 {
		return false, noComponents(item)
	}

	c := comps[0]

	if item.IsCollection() && c.TagIdentifier == "" {
		a := &ont.Annotator{Store: item.Store(), Warehouse: s.Warehouse, Consent: s.Consent, Logger: log}

		return a.AnnotateResultsCollection(ctx, item, c)
	}

	recs, err := ont.RecordsFor(ctx, s.Warehouse, c)
	if err != nil {
		return false, err
	}

	log.Debug("found records", "comp", c.String(), "n", len(recs))

	return ont.Apply(ctx, item, recs, s.Consent)
}

// synchronizePacBio updates a data object from the records of its wells and
// tags. Only objects that require managed access have their permissions
// updated.
func (s *Synchronizer) synchronizePacBio(ctx context.Context, item *irods.Item, log log15.Logger) (bool, error) {
	comps, err := pacbio.ComponentsOf(ctx, item)
	if err != nil {
		return false, err
	}

	if len(comps) == 0 {
		return false, noComponents(item)
	}

	managed, err := pacbio.RequiresManagedAccess(ctx, item, log)
	if err != nil {
		return false, err
	}

	var d desired

	for _, c := range comps {
		recs, err := pacbio.RecordsFor(ctx, s.Warehouse, c)
		if err != nil {
			return false, err
		}

		log.Debug("found records", "comp", c.String(), "n", len(recs))

		records := make([]metadata.Record, len(recs))
		for i, r := range recs {
			records[i] = r.Record
		}

		d.add(item.Zone(), c.Subset, records)
	}

	return d.apply(ctx, item, reconcile.Options{MetadataOnly: !managed, Consent: s.Consent})
}

var _ Warehouse = (*mlwh.DB)(nil)
