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

// Package bolt is a file-backed irods.Store kept in a bbolt database. It holds
// a snapshot of part of a zone (items, their metadata, ACLs and replicas) so
// that the reconciliation and integrity operations can be run and tested
// without a live iRODS server.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ugorji/go/codec"
	"github.com/wtsi-npg/npg-irods/irods"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrParentNotFound = errors.New("parent collection not found")
	ErrKindConflict   = errors.New("path exists with a different kind")
	ErrNotEmpty       = errors.New("collection not empty")
)

const (
	itemsBucketName  = "items"
	metaBucketName   = "_meta"
	metaKeyCreatedAt = "createdAt"
	boltFilePerms    = 0o640
)

// record is the encoded form of one item.
type record struct {
	Kind     irods.Kind
	AVUs     []irods.AVU
	ACL      []irods.AC
	Replicas []irods.Replica
}

// Store is an irods.Store backed by a bbolt database file.
type Store struct {
	db          *bolt.DB
	codecHandle codec.Handle
	now         func() time.Time
}

// Open opens (creating if necessary) the store database at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := openBoltWritable(dbPath, itemsBucketName)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:          db,
		codecHandle: new(codec.BincHandle),
		now:         time.Now,
	}

	if err := s.persistCreatedAt(); err != nil {
		return nil, multierror.Append(err, db.Close())
	}

	return s, nil
}

func openBoltWritable(dbPath, bucket string) (*bolt.DB, error) {
	db, err := bolt.Open(dbPath, boltFilePerms, &bolt.Options{
		Timeout:      time.Second,
		NoGrowSync:   true,
		FreelistType: bolt.FreelistMapType,
	})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, errc := tx.CreateBucketIfNotExists([]byte(bucket)); errc != nil {
			return errc
		}

		_, errc := tx.CreateBucketIfNotExists([]byte(metaBucketName))

		return errc
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func (s *Store) persistCreatedAt() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(metaBucketName))
		if b.Get([]byte(metaKeyCreatedAt)) != nil {
			return nil
		}

		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(s.now().Unix())) //nolint:gosec

		return b.Put([]byte(metaKeyCreatedAt), buf)
	})
}

// CreatedAt returns the time the store database was first created.
func (s *Store) CreatedAt() (time.Time, error) {
	var created time.Time

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(metaBucketName)).Get([]byte(metaKeyCreatedAt))
		if len(v) != 8 { //nolint:mnd
			return fmt.Errorf("%w: %s", irods.ErrNotFound, metaKeyCreatedAt)
		}

		created = time.Unix(int64(binary.LittleEndian.Uint64(v)), 0) //nolint:gosec

		return nil
	})

	return created, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) encode(r *record) []byte {
	var encoded []byte

	enc := codec.NewEncoderBytes(&encoded, s.codecHandle)
	enc.MustEncode(r)

	return encoded
}

func (s *Store) decode(v []byte) (*record, error) {
	r := new(record)

	if err := codec.NewDecoderBytes(v, s.codecHandle).Decode(r); err != nil {
		return nil, err
	}

	return r, nil
}

func cleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}

	return path.Clean(p), nil
}

func (s *Store) get(tx *bolt.Tx, p string) (*record, error) {
	v := tx.Bucket([]byte(itemsBucketName)).Get([]byte(p))
	if v == nil {
		return nil, &irods.NotFoundError{Path: p}
	}

	return s.decode(v)
}

func (s *Store) put(tx *bolt.Tx, p string, r *record) error {
	return tx.Bucket([]byte(itemsBucketName)).Put([]byte(p), s.encode(r))
}

// view runs fn on the record at p in a read transaction.
func (s *Store) view(ctx context.Context, p string, fn func(r *record)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	return s.db.View(func(tx *bolt.Tx) error {
		r, err := s.get(tx, p)
		if err != nil {
			return err
		}

		fn(r)

		return nil
	})
}

// update runs fn on the record at p in a write transaction, saving the record
// if fn reports that it changed anything.
func (s *Store) update(ctx context.Context, p string, fn func(r *record) (int, error)) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p, err := cleanPath(p)
	if err != nil {
		return 0, err
	}

	var n int

	err = s.db.Update(func(tx *bolt.Tx) error {
		r, err := s.get(tx, p)
		if err != nil {
			return err
		}

		n, err = fn(r)
		if err != nil || n == 0 {
			return err
		}

		return s.put(tx, p, r)
	})

	return n, err
}

func (s *Store) Stat(ctx context.Context, p string) (irods.Kind, error) {
	var kind irods.Kind

	err := s.view(ctx, p, func(r *record) { kind = r.Kind })

	return kind, err
}

func (s *Store) Metadata(ctx context.Context, p string) ([]irods.AVU, error) {
	var avus []irods.AVU

	err := s.view(ctx, p, func(r *record) { avus = r.AVUs })

	return avus, err
}

func (s *Store) AddMetadata(ctx context.Context, p string, avus ...irods.AVU) (int, error) {
	return s.update(ctx, p, func(r *record) (int, error) {
		n := 0

		for _, avu := range avus {
			if slices.Contains(r.AVUs, avu) {
				continue
			}

			r.AVUs = append(r.AVUs, avu)
			n++
		}

		return n, nil
	})
}

func (s *Store) RemoveMetadata(ctx context.Context, p string, avus ...irods.AVU) (int, error) {
	return s.update(ctx, p, func(r *record) (int, error) {
		before := len(r.AVUs)
		r.AVUs = slices.DeleteFunc(r.AVUs, func(a irods.AVU) bool { return slices.Contains(avus, a) })

		return before - len(r.AVUs), nil
	})
}

func (s *Store) ACL(ctx context.Context, p string) ([]irods.AC, error) {
	var acl []irods.AC

	err := s.view(ctx, p, func(r *record) { acl = r.ACL })

	return acl, err
}

func sameGrantee(a, b irods.AC) bool {
	return a.User == b.User && a.Zone == b.Zone
}

func (s *Store) AddPermissions(ctx context.Context, p string, acl ...irods.AC) (int, error) {
	return s.update(ctx, p, func(r *record) (int, error) {
		n := 0

		for _, ac := range acl {
			if slices.Contains(r.ACL, ac) {
				continue
			}

			r.ACL = slices.DeleteFunc(r.ACL, func(e irods.AC) bool { return sameGrantee(e, ac) })
			r.ACL = append(r.ACL, ac)
			n++
		}

		return n, nil
	})
}

func (s *Store) RemovePermissions(ctx context.Context, p string, acl ...irods.AC) (int, error) {
	return s.update(ctx, p, func(r *record) (int, error) {
		before := len(r.ACL)
		r.ACL = slices.DeleteFunc(r.ACL, func(e irods.AC) bool { return slices.Contains(acl, e) })

		return before - len(r.ACL), nil
	})
}

func (s *Store) Replicas(ctx context.Context, p string) ([]irods.Replica, error) {
	var (
		reps []irods.Replica
		kind irods.Kind
	)

	err := s.view(ctx, p, func(r *record) {
		reps = r.Replicas
		kind = r.Kind
	})
	if err != nil {
		return nil, err
	}

	if kind != irods.KindDataObject {
		return nil, fmt.Errorf("%w: %s", irods.ErrNotDataObject, p)
	}

	return reps, nil
}

func (s *Store) TrimReplicas(ctx context.Context, p string, numbers ...int) (int, error) {
	return s.update(ctx, p, func(r *record) (int, error) {
		if r.Kind != irods.KindDataObject {
			return 0, fmt.Errorf("%w: %s", irods.ErrNotDataObject, p)
		}

		before := len(r.Replicas)
		r.Replicas = slices.DeleteFunc(r.Replicas, func(rep irods.Replica) bool {
			return slices.Contains(numbers, rep.Number)
		})

		return before - len(r.Replicas), nil
	})
}

func (s *Store) Contents(ctx context.Context, p string) ([]irods.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	var entries []irods.Entry

	err = s.db.View(func(tx *bolt.Tx) error {
		r, err := s.get(tx, p)
		if err != nil {
			return err
		}

		if r.Kind != irods.KindCollection {
			return fmt.Errorf("%w: %s", irods.ErrNotCollection, p)
		}

		entries, err = s.children(tx, p)

		return err
	})

	return entries, err
}

func childPrefix(p string) []byte {
	if p == "/" {
		return []byte(p)
	}

	return []byte(p + "/")
}

func (s *Store) children(tx *bolt.Tx, p string) ([]irods.Entry, error) {
	var entries []irods.Entry

	prefix := childPrefix(p)
	c := tx.Bucket([]byte(itemsBucketName)).Cursor()

	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		rest := k[len(prefix):]
		if len(rest) == 0 || bytes.IndexByte(rest, '/') >= 0 {
			continue
		}

		r, err := s.decode(v)
		if err != nil {
			return nil, err
		}

		entries = append(entries, irods.Entry{Path: string(k), Kind: r.Kind})
	}

	return entries, nil
}

func (s *Store) QueryMetadata(ctx context.Context, kind irods.Kind, avus ...irods.AVU) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var paths []string

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(itemsBucketName)).ForEach(func(k, v []byte) error {
			r, err := s.decode(v)
			if err != nil {
				return err
			}

			if kind != irods.KindUnknown && r.Kind != kind {
				return nil
			}

			for _, avu := range avus {
				if !slices.Contains(r.AVUs, avu) {
					return nil
				}
			}

			paths = append(paths, string(k))

			return nil
		})
	})

	return paths, err
}
