package mlwh

import (
	"context"
	"database/sql"
	"time"

	"github.com/wtsi-npg/npg-irods/metadata"
)

// TagMatch selects which tags of a run position an Illumina query matches.
type TagMatch int

const (
	// Untagged matches only rows with no tag, i.e. unpooled libraries.
	Untagged TagMatch = iota

	// AnyTag matches every tagged row.
	AnyTag

	// ExactTag matches the row with the query's TagIndex.
	ExactTag
)

// IlluminaQuery identifies the rows of one Illumina run position.
type IlluminaQuery struct {
	Run      int
	Position int
	Tag      TagMatch
	TagIndex int
}

// IlluminaRecord is the sample and study of one Illumina library.
type IlluminaRecord struct {
	metadata.Record

	IDFlowcell int64
	Run        int
	Position   int
	TagIndex   *int
}

const illuminaQuery = `
SELECT DISTINCT fc.id_iseq_flowcell_tmp, pm.id_run, pm.position, pm.tag_index,` + sampleStudyColumns + `
FROM iseq_flowcell fc
JOIN iseq_product_metrics pm ON pm.id_iseq_flowcell_tmp = fc.id_iseq_flowcell_tmp
JOIN sample sm ON sm.id_sample_tmp = fc.id_sample_tmp
LEFT JOIN study st ON st.id_study_tmp = fc.id_study_tmp
WHERE pm.id_run = ? AND pm.position = ?`

// IlluminaRecords returns the records matching q, ordered by flowcell row.
func (d *DB) IlluminaRecords(ctx context.Context, q IlluminaQuery) ([]IlluminaRecord, error) {
	query := illuminaQuery
	args := []any{q.Run, q.Position}

	switch q.Tag {
	case Untagged:
		query += " AND pm.tag_index IS NULL"
	case AnyTag:
		query += " AND pm.tag_index IS NOT NULL"
	case ExactTag:
		query += " AND pm.tag_index = ?"
		args = append(args, q.TagIndex)
	}

	query += " ORDER BY fc.id_iseq_flowcell_tmp"

	rows, err := d.db.QueryContext(ctx, query, args...)

	return collect(rows, err, func(rows *sql.Rows) (IlluminaRecord, error) {
		var (
			r   IlluminaRecord
			row sampleStudyRow
			tag sql.NullInt64
		)

		dest := append([]any{&r.IDFlowcell, &r.Run, &r.Position, &tag}, row.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return r, err
		}

		r.Record = row.record()
		r.TagIndex = nullInt(tag)

		return r, nil
	})
}

// IlluminaProduct is a run, position and tag whose records have changed.
type IlluminaProduct struct {
	Run      int
	Position int
	TagIndex *int
}

const illuminaChangedQuery = `
SELECT DISTINCT pm.id_run, pm.position, pm.tag_index
FROM iseq_product_metrics pm
JOIN iseq_flowcell fc ON fc.id_iseq_flowcell_tmp = pm.id_iseq_flowcell_tmp
JOIN sample sm ON sm.id_sample_tmp = fc.id_sample_tmp
LEFT JOIN study st ON st.id_study_tmp = fc.id_study_tmp
WHERE (sm.recorded_at BETWEEN ? AND ?)
	OR (st.recorded_at BETWEEN ? AND ?)
	OR (fc.recorded_at BETWEEN ? AND ?)
	OR (pm.last_changed BETWEEN ? AND ?)
ORDER BY pm.id_run, pm.position, pm.tag_index`

// IlluminaChanged returns the products whose sample, study, flowcell or
// product rows were recorded in the window [since, until].
func (d *DB) IlluminaChanged(ctx context.Context, since, until time.Time) ([]IlluminaProduct, error) {
	rows, err := d.illuminaChanged.QueryContext(ctx, window(4, since, until)...)

	return collect(rows, err, func(rows *sql.Rows) (IlluminaProduct, error) {
		var (
			p   IlluminaProduct
			tag sql.NullInt64
		)

		err := rows.Scan(&p.Run, &p.Position, &tag)
		p.TagIndex = nullInt(tag)

		return p, err
	})
}

// window returns the arguments for n BETWEEN clauses over the same window.
func window(n int, since, until time.Time) []any {
	args := make([]any, 0, 2*n)

	for i := 0; i < n; i++ {
		args = append(args, since.UTC(), until.UTC())
	}

	return args
}

// ONTRecord is the sample and study of one ONT library.
type ONTRecord struct {
	metadata.Record

	IDFlowcell     int64
	ExperimentName string
	InstrumentSlot int
	TagIdentifier  string
	Tag2Identifier string
}

const ontQuery = `
SELECT fc.id_oseq_flowcell_tmp, fc.experiment_name, fc.instrument_slot,
	fc.tag_identifier, fc.tag2_identifier,` + sampleStudyColumns + `
FROM oseq_flowcell fc
JOIN sample sm ON sm.id_sample_tmp = fc.id_sample_tmp
JOIN study st ON st.id_study_tmp = fc.id_study_tmp
WHERE fc.experiment_name = ? AND fc.instrument_slot = ?`

const ontOrder = `
ORDER BY fc.experiment_name, fc.instrument_slot, fc.tag_identifier,
	fc.tag2_identifier, fc.id_oseq_flowcell_tmp`

// ONTRecords returns the records of an experiment's instrument slot. If
// tagIdentifier is not empty, only the record for that barcode is returned.
func (d *DB) ONTRecords(ctx context.Context, experiment string, slot int,
	tagIdentifier string,
) ([]ONTRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if tagIdentifier == "" {
		rows, err = d.onts.QueryContext(ctx, experiment, slot)
	} else {
		rows, err = d.ontsByTag.QueryContext(ctx, experiment, slot, tagIdentifier)
	}

	return collect(rows, err, func(rows *sql.Rows) (ONTRecord, error) {
		var (
			r          ONTRecord
			row        sampleStudyRow
			tag1, tag2 sql.NullString
		)

		dest := append([]any{&r.IDFlowcell, &r.ExperimentName, &r.InstrumentSlot, &tag1, &tag2}, row.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return r, err
		}

		r.Record = row.record()
		r.TagIdentifier = tag1.String
		r.Tag2Identifier = tag2.String

		return r, nil
	})
}

// ONTRun is an experiment's instrument slot, and optionally a barcode, whose
// records have changed.
type ONTRun struct {
	ExperimentName string
	InstrumentSlot int
	TagIdentifier  string
}

const ontChangedQuery = `
SELECT DISTINCT fc.experiment_name, fc.instrument_slot, fc.tag_identifier
FROM oseq_flowcell fc
JOIN sample sm ON sm.id_sample_tmp = fc.id_sample_tmp
JOIN study st ON st.id_study_tmp = fc.id_study_tmp
WHERE (sm.recorded_at BETWEEN ? AND ?)
	OR (st.recorded_at BETWEEN ? AND ?)
	OR (fc.recorded_at BETWEEN ? AND ?)
ORDER BY fc.experiment_name, fc.instrument_slot, fc.tag_identifier`

// ONTChanged returns the barcodes of experiments whose sample, study or
// flowcell rows were recorded in the window [since, until].
func (d *DB) ONTChanged(ctx context.Context, since, until time.Time) ([]ONTRun, error) {
	rows, err := d.ontChanged.QueryContext(ctx, window(3, since, until)...)

	return collect(rows, err, func(rows *sql.Rows) (ONTRun, error) {
		var (
			r   ONTRun
			tag sql.NullString
		)

		err := rows.Scan(&r.ExperimentName, &r.InstrumentSlot, &tag)
		r.TagIdentifier = tag.String

		return r, err
	})
}

// PacBioRecord is the sample and study of one PacBio library.
type PacBioRecord struct {
	metadata.Record

	IDRun       int64
	RunName     string
	WellLabel   string
	PlateNumber *int
	TagSequence string
}

const pacbioQuery = `
SELECT pr.id_pac_bio_tmp, pr.pac_bio_run_name, pr.well_label, pr.plate_number,
	pr.tag_sequence,` + sampleStudyColumns + `
FROM pac_bio_run pr
JOIN sample sm ON sm.id_sample_tmp = pr.id_sample_tmp
JOIN study st ON st.id_study_tmp = pr.id_study_tmp
WHERE pr.pac_bio_run_name = ? AND pr.well_label = ?`

const pacbioOrder = `
ORDER BY pr.pac_bio_run_name, pr.well_label, pr.plate_number, pr.tag_sequence,
	pr.id_pac_bio_tmp`

// PacBioQuery identifies the rows of one PacBio well. An empty TagSequence
// matches every library in the well.
type PacBioQuery struct {
	RunName     string
	WellLabel   string
	PlateNumber *int
	TagSequence string
}

// PacBioRecords returns the records matching q. Well labels are compared
// as given, so they must not be zero padded.
func (d *DB) PacBioRecords(ctx context.Context, q PacBioQuery) ([]PacBioRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)

	switch {
	case q.PlateNumber == nil && q.TagSequence == "":
		rows, err = d.pacbioAll.QueryContext(ctx, q.RunName, q.WellLabel)
	case q.PlateNumber == nil:
		rows, err = d.pacbioByTag.QueryContext(ctx, q.RunName, q.WellLabel, q.TagSequence)
	case q.TagSequence == "":
		rows, err = d.pacbioPlate.QueryContext(ctx, q.RunName, q.WellLabel, *q.PlateNumber)
	default:
		rows, err = d.pacbioPlateTagged.QueryContext(ctx, q.RunName, q.WellLabel, *q.PlateNumber, q.TagSequence)
	}

	return collect(rows, err, func(rows *sql.Rows) (PacBioRecord, error) {
		var (
			r     PacBioRecord
			row   sampleStudyRow
			plate sql.NullInt64
			tag   sql.NullString
		)

		dest := append([]any{&r.IDRun, &r.RunName, &r.WellLabel, &plate, &tag}, row.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return r, err
		}

		r.Record = row.record()
		r.PlateNumber = nullInt(plate)
		r.TagSequence = tag.String

		return r, nil
	})
}

// PacBioWell is a well, and optionally a tag, whose records have changed.
type PacBioWell struct {
	RunName     string
	WellLabel   string
	PlateNumber *int
	TagSequence string
}

const pacbioChangedQuery = `
SELECT DISTINCT pr.pac_bio_run_name, pr.well_label, pr.plate_number, pr.tag_sequence
FROM pac_bio_run pr
JOIN sample sm ON sm.id_sample_tmp = pr.id_sample_tmp
JOIN study st ON st.id_study_tmp = pr.id_study_tmp
WHERE (sm.recorded_at BETWEEN ? AND ?)
	OR (st.recorded_at BETWEEN ? AND ?)
	OR (pr.recorded_at BETWEEN ? AND ?)
ORDER BY pr.pac_bio_run_name, pr.well_label, pr.plate_number, pr.tag_sequence`

// PacBioChanged returns the wells whose sample, study or run rows were
// recorded in the window [since, until].
func (d *DB) PacBioChanged(ctx context.Context, since, until time.Time) ([]PacBioWell, error) {
	rows, err := d.pacbioChanged.QueryContext(ctx, window(3, since, until)...)

	return collect(rows, err, func(rows *sql.Rows) (PacBioWell, error) {
		var (
			w     PacBioWell
			plate sql.NullInt64
			tag   sql.NullString
		)

		err := rows.Scan(&w.RunName, &w.WellLabel, &plate, &tag)
		w.PlateNumber = nullInt(plate)
		w.TagSequence = tag.String

		return w, err
	})
}
