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

// Package mlwh is a read-only client for the multi-LIMS warehouse, the
// database of the samples, studies and sequencing runs that data in the store
// were derived from.
package mlwh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3" //
	"github.com/wtsi-npg/npg-irods/metadata"
)

// Error is the custom error type for the mlwh package.
type Error string

const (
	ErrMissingConfig = Error("incomplete warehouse configuration")
	ErrInvalidPort   = Error("invalid warehouse port")
)

func (e Error) Error() string { return string(e) }

// Environment variables read by ConfigFromEnv.
const (
	EnvHost     = "MLWH_HOST"
	EnvPort     = "MLWH_PORT"
	EnvSchema   = "MLWH_SCHEMA"
	EnvUser     = "MLWH_USER"
	EnvPassword = "MLWH_PASSWORD" //nolint:gosec
)

// EnvKeys are all the environment variables ConfigFromEnv reads.
var EnvKeys = []string{EnvHost, EnvPort, EnvSchema, EnvUser, EnvPassword} //nolint:gochecknoglobals

const (
	defaultPort    = 3306
	defaultTimeout = 30 * time.Second
)

// Config holds the connection details of a MySQL warehouse.
type Config struct {
	Host     string
	Port     int
	Schema   string
	User     string
	Password string
}

// ConfigFromEnv fills in any empty fields of c from the environment.
func (c Config) ConfigFromEnv() (Config, error) {
	fill := func(field *string, key string) {
		if *field == "" {
			*field = os.Getenv(key)
		}
	}

	fill(&c.Host, EnvHost)
	fill(&c.Schema, EnvSchema)
	fill(&c.User, EnvUser)
	fill(&c.Password, EnvPassword)

	if c.Port == 0 {
		if p := os.Getenv(EnvPort); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return c, fmt.Errorf("%w %q: %w", ErrInvalidPort, p, err)
			}

			c.Port = port
		}
	}

	if c.Port == 0 {
		c.Port = defaultPort
	}

	return c, c.validate()
}

func (c Config) validate() error {
	var missing []string

	for key, val := range map[string]string{EnvHost: c.Host, EnvSchema: c.Schema, EnvUser: c.User} {
		if val == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %v not set", ErrMissingConfig, missing)
	}

	return nil
}

func (c Config) mysqlConfig() *mysql.Config {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Schema
	mc.User = c.User
	mc.Passwd = c.Password
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = defaultTimeout

	return mc
}

// DB is a connection to the warehouse. Queries return records in a stable
// order, so repeated runs produce the same output.
type DB struct {
	db *sql.DB

	onts              *sql.Stmt
	ontsByTag         *sql.Stmt
	ontChanged        *sql.Stmt
	illuminaChanged   *sql.Stmt
	pacbioChanged     *sql.Stmt
	withdrawnSamples  *sql.Stmt
	pacbioAll         *sql.Stmt
	pacbioByTag       *sql.Stmt
	pacbioPlate       *sql.Stmt
	pacbioPlateTagged *sql.Stmt
}

// Open connects to the MySQL warehouse described by cfg.
func Open(cfg Config) (*DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(cfg.mysqlConfig())
	if err != nil {
		return nil, err
	}

	return New(sql.OpenDB(connector))
}

// OpenSQLite opens a warehouse snapshot held in an SQLite database.
func OpenSQLite(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	return New(db)
}

// New prepares the warehouse queries on an open database.
func New(db *sql.DB) (*DB, error) {
	mdb := &DB{db: db}

	for stmt, query := range map[**sql.Stmt]string{
		&mdb.onts:              ontQuery + ontOrder,
		&mdb.ontsByTag:         ontQuery + " AND fc.tag_identifier = ?" + ontOrder,
		&mdb.ontChanged:        ontChangedQuery,
		&mdb.illuminaChanged:   illuminaChangedQuery,
		&mdb.pacbioChanged:     pacbioChangedQuery,
		&mdb.withdrawnSamples:  withdrawnSamplesQuery,
		&mdb.pacbioAll:         pacbioQuery + pacbioOrder,
		&mdb.pacbioByTag:       pacbioQuery + " AND pr.tag_sequence = ?" + pacbioOrder,
		&mdb.pacbioPlate:       pacbioQuery + " AND pr.plate_number = ?" + pacbioOrder,
		&mdb.pacbioPlateTagged: pacbioQuery + " AND pr.plate_number = ? AND pr.tag_sequence = ?" + pacbioOrder,
	} {
		var err error

		if *stmt, err = db.Prepare(query); err != nil {
			return nil, errors.Join(fmt.Errorf("preparing warehouse query: %w", err), mdb.Close())
		}
	}

	return mdb, nil
}

// Close closes the prepared queries and the database.
func (d *DB) Close() error {
	var merr *multierror.Error

	for _, stmt := range []*sql.Stmt{
		d.onts, d.ontsByTag, d.ontChanged, d.illuminaChanged, d.pacbioChanged,
		d.withdrawnSamples, d.pacbioAll, d.pacbioByTag, d.pacbioPlate, d.pacbioPlateTagged,
	} {
		if stmt == nil {
			continue
		}

		if err := stmt.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if err := d.db.Close(); err != nil {
		merr = multierror.Append(merr, err)
	}

	return merr.ErrorOrNil()
}

const sampleStudyColumns = `
	sm.id_sample_lims, sm.id_lims, sm.uuid_sample_lims, sm.sanger_sample_id,
	sm.name, sm.accession_number, sm.donor_id, sm.supplier_name,
	sm.public_name, sm.common_name, sm.cohort, sm.consent_withdrawn,
	st.id_study_lims, st.id_lims, st.uuid_study_lims, st.name,
	st.accession_number, st.study_title`

// sampleStudyRow receives the sampleStudyColumns of a row.
type sampleStudyRow struct {
	sample    [11]sql.NullString
	withdrawn sql.NullInt64
	study     [6]sql.NullString
}

func (r *sampleStudyRow) dest() []any {
	dest := make([]any, 0, len(r.sample)+1+len(r.study))

	for i := range r.sample {
		dest = append(dest, &r.sample[i])
	}

	dest = append(dest, &r.withdrawn)

	for i := range r.study {
		dest = append(dest, &r.study[i])
	}

	return dest
}

func (r *sampleStudyRow) record() metadata.Record {
	s, st := r.sample, r.study

	return metadata.Record{
		Sample: metadata.Sample{
			IDSampleLIMS:     s[0].String,
			IDLIMS:           s[1].String,
			UUID:             s[2].String,
			SangerSampleID:   s[3].String,
			Name:             s[4].String,
			AccessionNumber:  s[5].String,
			DonorID:          s[6].String,
			SupplierName:     s[7].String,
			PublicName:       s[8].String,
			CommonName:       s[9].String,
			Cohort:           s[10].String,
			ConsentWithdrawn: r.withdrawn.Valid && r.withdrawn.Int64 != 0,
		},
		Study: metadata.Study{
			IDStudyLIMS:     st[0].String,
			IDLIMS:          st[1].String,
			UUID:            st[2].String,
			Name:            st[3].String,
			AccessionNumber: st[4].String,
			Title:           st[5].String,
		},
	}
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}

	v := int(n.Int64)

	return &v
}

// collect scans every row of a query with scan, closing the rows.
func collect[T any](rows *sql.Rows, err error, scan func(*sql.Rows) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []T

	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, rows.Err()
}

const withdrawnSamplesQuery = `
SELECT
	sm.id_sample_lims, sm.id_lims, sm.uuid_sample_lims, sm.sanger_sample_id,
	sm.name, sm.accession_number, sm.donor_id, sm.supplier_name,
	sm.public_name, sm.common_name, sm.cohort, sm.consent_withdrawn
FROM sample sm
WHERE sm.consent_withdrawn = 1
ORDER BY sm.id_sample_lims, sm.id_sample_tmp`

// ConsentWithdrawnSamples returns all samples whose consent has been
// withdrawn.
func (d *DB) ConsentWithdrawnSamples(ctx context.Context) ([]metadata.Sample, error) {
	rows, err := d.withdrawnSamples.QueryContext(ctx)

	return collect(rows, err, func(rows *sql.Rows) (metadata.Sample, error) {
		var row sampleStudyRow

		if err := rows.Scan(row.dest()[:len(row.sample)+1]...); err != nil {
			return metadata.Sample{}, err
		}

		return row.record().Sample, nil
	})
}
