package internaltest

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" //
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
)

// WarehouseSchema is the subset of the warehouse schema queried by the mlwh
// package.
const WarehouseSchema = `
CREATE TABLE sample (
	id_sample_tmp INTEGER PRIMARY KEY,
	id_lims VARCHAR(10) NOT NULL,
	id_sample_lims VARCHAR(20) NOT NULL,
	uuid_sample_lims VARCHAR(36),
	last_updated DATETIME NOT NULL,
	recorded_at DATETIME NOT NULL,
	consent_withdrawn INTEGER NOT NULL DEFAULT 0,
	name VARCHAR(255),
	accession_number VARCHAR(50),
	common_name VARCHAR(255),
	cohort VARCHAR(255),
	sanger_sample_id VARCHAR(255),
	supplier_name VARCHAR(255),
	public_name VARCHAR(255),
	donor_id VARCHAR(255)
);

CREATE TABLE study (
	id_study_tmp INTEGER PRIMARY KEY,
	id_lims VARCHAR(10) NOT NULL,
	id_study_lims VARCHAR(20) NOT NULL,
	uuid_study_lims VARCHAR(36),
	last_updated DATETIME NOT NULL,
	recorded_at DATETIME NOT NULL,
	name VARCHAR(255),
	accession_number VARCHAR(50),
	study_title VARCHAR(255)
);

CREATE TABLE iseq_flowcell (
	id_iseq_flowcell_tmp INTEGER PRIMARY KEY,
	last_updated DATETIME NOT NULL,
	recorded_at DATETIME NOT NULL,
	id_sample_tmp INTEGER NOT NULL REFERENCES sample (id_sample_tmp),
	id_study_tmp INTEGER REFERENCES study (id_study_tmp),
	id_lims VARCHAR(10) NOT NULL,
	id_flowcell_lims VARCHAR(20) NOT NULL,
	position INTEGER NOT NULL,
	entity_type VARCHAR(30) NOT NULL,
	entity_id_lims VARCHAR(20) NOT NULL,
	id_pool_lims VARCHAR(20) NOT NULL,
	tag_index INTEGER
);

CREATE TABLE iseq_product_metrics (
	id_iseq_pr_metrics_tmp INTEGER PRIMARY KEY,
	id_iseq_product VARCHAR(64) NOT NULL UNIQUE,
	last_changed DATETIME,
	id_iseq_flowcell_tmp INTEGER REFERENCES iseq_flowcell (id_iseq_flowcell_tmp),
	id_run INTEGER,
	position INTEGER,
	tag_index INTEGER
);

CREATE TABLE oseq_flowcell (
	id_oseq_flowcell_tmp INTEGER PRIMARY KEY,
	id_flowcell_lims VARCHAR(255) NOT NULL,
	last_updated DATETIME NOT NULL,
	recorded_at DATETIME NOT NULL,
	id_sample_tmp INTEGER NOT NULL REFERENCES sample (id_sample_tmp),
	id_study_tmp INTEGER NOT NULL REFERENCES study (id_study_tmp),
	experiment_name VARCHAR(255) NOT NULL,
	instrument_name VARCHAR(255) NOT NULL,
	instrument_slot INTEGER NOT NULL,
	id_lims VARCHAR(10) NOT NULL,
	tag_identifier VARCHAR(255),
	tag_sequence VARCHAR(255),
	tag2_identifier VARCHAR(255),
	flowcell_id VARCHAR(255),
	run_id VARCHAR(255)
);

CREATE TABLE pac_bio_run (
	id_pac_bio_tmp INTEGER PRIMARY KEY,
	last_updated DATETIME NOT NULL,
	recorded_at DATETIME NOT NULL,
	id_sample_tmp INTEGER NOT NULL REFERENCES sample (id_sample_tmp),
	id_study_tmp INTEGER NOT NULL REFERENCES study (id_study_tmp),
	id_pac_bio_run_lims VARCHAR(20) NOT NULL,
	pac_bio_run_name VARCHAR(255) NOT NULL,
	well_label VARCHAR(255) NOT NULL,
	plate_number INTEGER,
	tag_sequence VARCHAR(30),
	id_lims VARCHAR(10) NOT NULL
);
`

// RecordTime is the default recorded_at time of warehouse rows.
var RecordTime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) //nolint:gochecknoglobals

const defaultLIMS = "SQSCP"

// Warehouse is an SQLite warehouse that tests can add rows to.
type Warehouse struct {
	// RecordedAt is the recorded_at time of rows added from now on.
	RecordedAt time.Time

	t    testing.TB
	db   *sql.DB
	path string
}

// NewWarehouse creates an empty warehouse in a temp dir.
func NewWarehouse(t testing.TB) *Warehouse {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mlwh.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open warehouse: %s", err)
	}

	t.Cleanup(func() { db.Close() })

	if _, err = db.Exec(WarehouseSchema); err != nil {
		t.Fatalf("create warehouse schema: %s", err)
	}

	return &Warehouse{RecordedAt: RecordTime, t: t, db: db, path: path}
}

// Open returns a client of the warehouse that is closed at the end of the
// test.
func (w *Warehouse) Open() *mlwh.DB {
	w.t.Helper()

	db, err := mlwh.OpenSQLite(w.path)
	if err != nil {
		w.t.Fatalf("open warehouse client: %s", err)
	}

	w.t.Cleanup(func() { db.Close() })

	return db
}

// Path returns the path of the warehouse's SQLite file.
func (w *Warehouse) Path() string { return w.path }

func (w *Warehouse) insert(query string, args ...any) int64 {
	w.t.Helper()

	res, err := w.db.Exec(query, args...)
	if err != nil {
		w.t.Fatalf("insert: %s", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		w.t.Fatalf("insert: %s", err)
	}

	return id
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func nullIfNil(n *int) any {
	if n == nil {
		return nil
	}

	return *n
}

// SampleUUID returns a stable UUID for a sample ID.
func SampleUUID(idSampleLIMS string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("sample:"+idSampleLIMS)).String()
}

// AddSample adds a sample and returns its row ID.
func (w *Warehouse) AddSample(s metadata.Sample) int64 {
	w.t.Helper()

	if s.IDLIMS == "" {
		s.IDLIMS = defaultLIMS
	}

	withdrawn := 0
	if s.ConsentWithdrawn {
		withdrawn = 1
	}

	return w.insert(`INSERT INTO sample (
		id_lims, id_sample_lims, uuid_sample_lims, last_updated, recorded_at,
		consent_withdrawn, name, accession_number, common_name, cohort,
		sanger_sample_id, supplier_name, public_name, donor_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.IDLIMS, s.IDSampleLIMS, nullIfEmpty(s.UUID), w.RecordedAt, w.RecordedAt,
		withdrawn, nullIfEmpty(s.Name), nullIfEmpty(s.AccessionNumber),
		nullIfEmpty(s.CommonName), nullIfEmpty(s.Cohort), nullIfEmpty(s.SangerSampleID),
		nullIfEmpty(s.SupplierName), nullIfEmpty(s.PublicName), nullIfEmpty(s.DonorID))
}

// AddStudy adds a study and returns its row ID.
func (w *Warehouse) AddStudy(s metadata.Study) int64 {
	w.t.Helper()

	if s.IDLIMS == "" {
		s.IDLIMS = defaultLIMS
	}

	return w.insert(`INSERT INTO study (
		id_lims, id_study_lims, uuid_study_lims, last_updated, recorded_at,
		name, accession_number, study_title
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.IDLIMS, s.IDStudyLIMS, nullIfEmpty(s.UUID), w.RecordedAt, w.RecordedAt,
		nullIfEmpty(s.Name), nullIfEmpty(s.AccessionNumber), nullIfEmpty(s.Title))
}

// AddIllumina adds a flowcell row and its product metrics row. A study of 0
// leaves the flowcell without a study.
func (w *Warehouse) AddIllumina(sample, study int64, run, position int, tagIndex *int) int64 {
	w.t.Helper()

	var studyID any
	if study != 0 {
		studyID = study
	}

	entity := "library"
	if tagIndex != nil {
		entity = "library_indexed"
	}

	fc := w.insert(`INSERT INTO iseq_flowcell (
		last_updated, recorded_at, id_sample_tmp, id_study_tmp, id_lims,
		id_flowcell_lims, position, entity_type, entity_id_lims, id_pool_lims,
		tag_index
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.RecordedAt, w.RecordedAt, sample, studyID, defaultLIMS,
		fmt.Sprintf("FC%d", run), position, entity, fmt.Sprintf("E%d", sample),
		fmt.Sprintf("P%d", run), nullIfNil(tagIndex))

	product := fmt.Sprintf("%d:%d", run, position)
	if tagIndex != nil {
		product += fmt.Sprintf(":%d", *tagIndex)
	}

	w.insert(`INSERT INTO iseq_product_metrics (
		id_iseq_product, last_changed, id_iseq_flowcell_tmp, id_run, position, tag_index
	) VALUES (?, ?, ?, ?, ?, ?)`,
		product, w.RecordedAt, fc, run, position, nullIfNil(tagIndex))

	return fc
}

// AddONT adds an ONT flowcell row.
func (w *Warehouse) AddONT(sample, study int64, experiment string, slot int, tagIdentifier string) int64 {
	w.t.Helper()

	return w.insert(`INSERT INTO oseq_flowcell (
		id_flowcell_lims, last_updated, recorded_at, id_sample_tmp, id_study_tmp,
		experiment_name, instrument_name, instrument_slot, id_lims, tag_identifier,
		flowcell_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("%s_%d", experiment, slot), w.RecordedAt, w.RecordedAt, sample,
		study, experiment, "instrument_01", slot, defaultLIMS, nullIfEmpty(tagIdentifier),
		fmt.Sprintf("flowcell%02d", slot))
}

// AddPacBio adds a PacBio run row.
func (w *Warehouse) AddPacBio(sample, study int64, run, well string, plate *int, tagSequence string) int64 {
	w.t.Helper()

	return w.insert(`INSERT INTO pac_bio_run (
		last_updated, recorded_at, id_sample_tmp, id_study_tmp, id_pac_bio_run_lims,
		pac_bio_run_name, well_label, plate_number, tag_sequence, id_lims
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.RecordedAt, w.RecordedAt, sample, study, run, run, well, nullIfNil(plate),
		nullIfEmpty(tagSequence), defaultLIMS)
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}
