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

package bolt

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/wtsi-npg/npg-irods/irods"
	bolt "go.etcd.io/bbolt"
)

// MakeCollection creates the collection at p and any missing parents. It is
// not an error if the collection already exists.
func (s *Store) MakeCollection(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return s.makeCollection(tx, p)
	})
}

func (s *Store) makeCollection(tx *bolt.Tx, p string) error {
	r, err := s.get(tx, p)

	switch {
	case err == nil:
		if r.Kind != irods.KindCollection {
			return fmt.Errorf("%w: %s", ErrKindConflict, p)
		}

		return nil
	case !errors.Is(err, irods.ErrNotFound):
		return err
	}

	if p != "/" {
		if err := s.makeCollection(tx, path.Dir(p)); err != nil {
			return err
		}
	}

	return s.put(tx, p, &record{Kind: irods.KindCollection})
}

// PutDataObject creates the data object at p with the given replicas, or
// replaces the replicas of an existing one. The parent collection must exist.
func (s *Store) PutDataObject(ctx context.Context, p string, replicas ...irods.Replica) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		parent, err := s.get(tx, path.Dir(p))
		if err != nil || parent.Kind != irods.KindCollection {
			return fmt.Errorf("%w: %s", ErrParentNotFound, path.Dir(p))
		}

		r, err := s.get(tx, p)

		switch {
		case errors.Is(err, irods.ErrNotFound):
			r = &record{Kind: irods.KindDataObject}
		case err != nil:
			return err
		case r.Kind != irods.KindDataObject:
			return fmt.Errorf("%w: %s", ErrKindConflict, p)
		}

		r.Replicas = replicas

		return s.put(tx, p, r)
	})
}

// Remove deletes the item at p. Collections must be empty.
func (s *Store) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := cleanPath(p)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		r, err := s.get(tx, p)
		if err != nil {
			return err
		}

		if r.Kind == irods.KindCollection {
			children, err := s.children(tx, p)
			if err != nil {
				return err
			}

			if len(children) > 0 {
				return fmt.Errorf("%w: %s", ErrNotEmpty, p)
			}
		}

		return tx.Bucket([]byte(itemsBucketName)).Delete([]byte(p))
	})
}
