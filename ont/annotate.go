package ont

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/inconshreveable/log15"
	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/consent"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
	"github.com/wtsi-npg/npg-irods/reconcile"
)

// Annotator adds warehouse metadata and permissions to ONT run collections.
type Annotator struct {
	Store     irods.Store
	Warehouse Warehouse
	Consent   consent.Policy
	Logger    log15.Logger
}

func (a *Annotator) logger() log15.Logger { //nolint:ireturn
	if a.Logger != nil {
		return a.Logger
	}

	l := log15.New()
	l.SetHandler(log15.DiscardHandler())

	return l
}

// AnnotateResultsCollection updates the metadata and permissions of a run
// collection from the warehouse records of its component.
//
// A simplex run has one record, which is applied to the whole collection. A
// multiplexed run has one record per barcode. Each record is applied to the
// barcode collections for its tag, which also get the tag identifier and tag
// index, while the run collection itself is left alone apart from its
// MinKNOW reports, which are made public. Barcode collections missing from
// the run are skipped with a warning.
//
// It returns true if anything changed. Errors for individual barcode
// collections do not stop the others being annotated; they are returned
// together.
func (a *Annotator) AnnotateResultsCollection(ctx context.Context, coll *irods.Item,
	c component.ONTComponent,
) (bool, error) {
	log := a.logger().New("path", coll.Path, "comp", c.String())

	recs, err := RecordsFor(ctx, a.Warehouse, c)
	if err != nil {
		return false, err
	}

	if len(recs) == 0 {
		return false, fmt.Errorf("%w for %s", ErrNoRecords, c)
	}

	exists, err := coll.Exists(ctx)
	if err != nil {
		return false, err
	}

	if !exists || !coll.IsCollection() {
		return false, &irods.NotFoundError{Kind: irods.KindCollection, Path: coll.Path}
	}

	if len(recs) == 1 {
		log.Info("found non-multiplexed")

		return a.apply(ctx, coll, recs)
	}

	log.Info("found multiplexed", "n", len(recs))

	return a.annotateBarcodes(ctx, coll, c, recs, log)
}

func (a *Annotator) annotateBarcodes(ctx context.Context, coll *irods.Item, c component.ONTComponent,
	recs []mlwh.ONTRecord, log log15.Logger,
) (bool, error) {
	var merr *multierror.Error

	changed, err := a.setMinKNOWReportsPublic(ctx, coll, log)
	if err != nil {
		merr = multierror.Append(merr, err)
	}

	found, err := barcodeCollections(ctx, coll)
	if err != nil {
		return changed, multierror.Append(merr, err).ErrorOrNil()
	}

	for _, rec := range recs {
		bcomp := component.ONTComponent{
			ExperimentName: c.ExperimentName,
			InstrumentSlot: c.InstrumentSlot,
			TagIdentifier:  rec.TagIdentifier,
		}

		name, err := BarcodeNameFromID(rec.TagIdentifier)
		if err != nil {
			merr = multierror.Append(merr, err)

			continue
		}

		if len(found[name]) == 0 {
			log.Warn("barcode collection missing", "comp", bcomp.String(), "barcode", name)

			continue
		}

		for _, bcoll := range found[name] {
			log.Info("annotating", "barcode", bcoll.Path, "comp", bcomp.String(),
				"sample", rec.Sample.Name, "study", rec.Study.IDStudyLIMS)

			bchanged, err := a.annotateBarcode(ctx, bcoll, rec)
			if err != nil {
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", bcoll, err))
			}

			changed = changed || bchanged
		}
	}

	return changed, merr.ErrorOrNil()
}

// annotateBarcode gives a barcode collection the tag identifier of its
// record, so it can be looked up in the warehouse from its own metadata, and
// then the record's secondary metadata.
func (a *Annotator) annotateBarcode(ctx context.Context, bcoll *irods.Item, rec mlwh.ONTRecord) (bool, error) {
	index, err := TagIndexFromID(rec.TagIdentifier)
	if err != nil {
		return false, err
	}

	primary, err := reconcile.UpdateMetadata(ctx, bcoll, []irods.AVU{
		irods.NewAVU(metadata.ONTTagIdentifier, rec.TagIdentifier),
		irods.NewAVU(metadata.TagIndex, index),
	})
	if err != nil {
		return primary, err
	}

	secondary, err := a.apply(ctx, bcoll, []mlwh.ONTRecord{rec})

	return primary || secondary, err
}

// apply reconciles an item, and everything in it, with the secondary
// metadata and permissions of the records.
func (a *Annotator) apply(ctx context.Context, item *irods.Item, recs []mlwh.ONTRecord) (bool, error) {
	return Apply(ctx, item, recs, a.Consent)
}

// Apply reconciles an item, and everything in it, with the secondary
// metadata and permissions of ONT records.
func Apply(ctx context.Context, item *irods.Item, recs []mlwh.ONTRecord, policy consent.Policy) (bool, error) {
	records := make([]metadata.Record, len(recs))
	for i, r := range recs {
		records[i] = r.Record
	}

	avus, err := metadata.MakeSecondaryMetadata(records...)
	if err != nil {
		return false, err
	}

	acl := metadata.MakeSecondaryACL(item.Zone(), "", records...)

	return reconcile.Apply(ctx, item, avus, acl, reconcile.Options{Recurse: true, Consent: policy})
}

// setMinKNOWReportsPublic makes the MinKNOW reports directly in a run
// collection readable by the public group, replacing any managed entries.
func (a *Annotator) setMinKNOWReportsPublic(ctx context.Context, coll *irods.Item, log log15.Logger) (bool, error) {
	contents, err := coll.Contents(ctx, false)
	if err != nil {
		return false, err
	}

	var (
		changed bool
		merr    *multierror.Error
	)

	for _, item := range contents {
		if !IsMinKNOWReport(item) {
			continue
		}

		log.Info("updating run report permissions", "report", item.Path)

		acl, err := item.ACL(ctx)
		if err != nil {
			merr = multierror.Append(merr, err)

			continue
		}

		keep := slices.DeleteFunc(acl, metadata.IsManagedAccess)

		c, err := reconcile.SupersedeACL(ctx, item, append(keep, metadata.MakePublicReadACL(item.Zone())...))
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		changed = changed || c
	}

	return changed, merr.ErrorOrNil()
}

// Counts are the results of ApplyMetadata.
type Counts struct {
	Found   int
	Updated int
	Errors  int
}

// Filter limits ApplyMetadata to runs changed in a time window and optionally
// to one experiment, or one slot of an experiment.
type Filter struct {
	Since          time.Time
	Until          time.Time
	ExperimentName string
	InstrumentSlot int
}

// ApplyMetadata annotates the run collections of every experiment slot whose
// warehouse records changed in the filter's window. Run collections are found
// by their experiment name and instrument slot metadata, which are added when
// the data are loaded. Errors for one collection do not stop the others being
// annotated; they are logged and counted.
func (a *Annotator) ApplyMetadata(ctx context.Context, f Filter) (Counts, error) {
	var counts Counts

	if f.ExperimentName == "" && f.InstrumentSlot != 0 {
		return counts, fmt.Errorf("%w: slot %d", ErrSlotWithoutExperiment, f.InstrumentSlot)
	}

	if f.Until.IsZero() {
		f.Until = time.Now()
	}

	runs, err := a.Warehouse.ONTChanged(ctx, f.Since, f.Until)
	if err != nil {
		return counts, err
	}

	log := a.logger()

	for i, c := range runComponents(runs) {
		if f.ExperimentName != "" && c.ExperimentName != f.ExperimentName {
			continue
		}

		if f.InstrumentSlot != 0 && c.InstrumentSlot != f.InstrumentSlot {
			continue
		}

		log.Info("searching", "item", i, "comp", c.String())

		paths, err := a.Store.QueryMetadata(ctx, irods.KindCollection, QueryAVUs(c.ExperimentName, c.InstrumentSlot)...)
		if err != nil {
			log.Error("search failed", "item", i, "comp", c.String(), "err", err)

			counts.Errors++

			continue
		}

		if len(paths) == 0 {
			log.Warn("found no collections", "item", i, "comp", c.String())
		}

		counts.Found += len(paths)

		for _, p := range paths {
			if _, err := a.AnnotateResultsCollection(ctx, irods.NewCollection(a.Store, p), c); err != nil {
				log.Error("annotation failed", "item", i, "path", p, "comp", c.String(), "err", err)

				counts.Errors++

				continue
			}

			log.Info("updated", "item", i, "path", p, "comp", c.String())

			counts.Updated++
		}
	}

	return counts, nil
}

// runComponents returns the distinct experiment slots of changed runs, in
// order.
func runComponents(runs []mlwh.ONTRun) []component.ONTComponent {
	var comps []component.ONTComponent

	for _, r := range runs {
		c := component.ONTComponent{ExperimentName: r.ExperimentName, InstrumentSlot: r.InstrumentSlot}
		if !slices.Contains(comps, c) {
			comps = append(comps, c)
		}
	}

	return comps
}
