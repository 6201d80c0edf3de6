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

package irods

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"
)

// Item is a handle on a collection or data object in a Store. It holds no
// state of its own beyond its path and kind; every accessor fetches fresh
// state from the store.
type Item struct {
	Path string
	Kind Kind

	store Store
}

// NewCollection returns a handle on the collection at p.
func NewCollection(store Store, p string) *Item {
	return &Item{Path: cleanPath(p), Kind: KindCollection, store: store}
}

// NewDataObject returns a handle on the data object at p.
func NewDataObject(store Store, p string) *Item {
	return &Item{Path: cleanPath(p), Kind: KindDataObject, store: store}
}

// Open returns a handle on whatever is at p, or a *NotFoundError.
func Open(ctx context.Context, store Store, p string) (*Item, error) {
	p = cleanPath(p)

	kind, err := store.Stat(ctx, p)
	if err != nil {
		return nil, err
	}

	return &Item{Path: p, Kind: kind, store: store}, nil
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

func (i *Item) String() string { return i.Path }

// Store returns the store this item belongs to.
func (i *Item) Store() Store { return i.store } //nolint:ireturn

// IsCollection returns true for collections.
func (i *Item) IsCollection() bool { return i.Kind == KindCollection }

// IsDataObject returns true for data objects.
func (i *Item) IsDataObject() bool { return i.Kind == KindDataObject }

// Name returns the last element of the item's path.
func (i *Item) Name() string { return path.Base(i.Path) }

// Zone returns the zone the item lives in, i.e. the first element of its path.
func (i *Item) Zone() string {
	return InferZone(i.Path)
}

// InferZone returns the first element of an absolute path.
func InferZone(p string) string {
	p = strings.TrimPrefix(p, "/")

	if zone, _, ok := strings.Cut(p, "/"); ok {
		return zone
	}

	return p
}

// Exists returns true if the item exists with the expected kind.
func (i *Item) Exists(ctx context.Context) (bool, error) {
	kind, err := i.store.Stat(ctx, i.Path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return i.Kind == KindUnknown || kind == i.Kind, nil
}

// Metadata returns the item's AVUs, sorted.
func (i *Item) Metadata(ctx context.Context) ([]AVU, error) {
	avus, err := i.store.Metadata(ctx, i.Path)
	if err != nil {
		return nil, err
	}

	avus = slices.Clone(avus)
	slices.SortStableFunc(avus, CompareAVUs)

	return avus, nil
}

// MetadataWith returns the item's AVUs that have the given attribute.
func (i *Item) MetadataWith(ctx context.Context, attribute string) ([]AVU, error) {
	avus, err := i.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(avus, func(a AVU) bool { return a.Attribute != attribute }), nil
}

// SingleAVU returns the only AVU with the given attribute. It returns
// ErrNoSuchAVU or ErrMultipleAVUs if there is not exactly one.
func (i *Item) SingleAVU(ctx context.Context, attribute string) (AVU, error) {
	avus, err := i.MetadataWith(ctx, attribute)
	if err != nil {
		return AVU{}, err
	}

	switch len(avus) {
	case 0:
		return AVU{}, fmt.Errorf("%w %q on %s", ErrNoSuchAVU, attribute, i.Path)
	case 1:
		return avus[0], nil
	default:
		return AVU{}, fmt.Errorf("%w %q on %s", ErrMultipleAVUs, attribute, i.Path)
	}
}

// HasAVU returns true if the item carries the given AVU.
func (i *Item) HasAVU(ctx context.Context, avu AVU) (bool, error) {
	avus, err := i.Metadata(ctx)
	if err != nil {
		return false, err
	}

	return slices.Contains(avus, avu), nil
}

// AddMetadata adds those of the given AVUs that are not already present.
func (i *Item) AddMetadata(ctx context.Context, avus ...AVU) (int, error) {
	if len(avus) == 0 {
		return 0, nil
	}

	return i.store.AddMetadata(ctx, i.Path, UniqueAVUs(avus)...)
}

// RemoveMetadata removes those of the given AVUs that are present.
func (i *Item) RemoveMetadata(ctx context.Context, avus ...AVU) (int, error) {
	if len(avus) == 0 {
		return 0, nil
	}

	return i.store.RemoveMetadata(ctx, i.Path, UniqueAVUs(avus)...)
}

// ACL returns the item's access control list, sorted.
func (i *Item) ACL(ctx context.Context) ([]AC, error) {
	acl, err := i.store.ACL(ctx, i.Path)
	if err != nil {
		return nil, err
	}

	acl = slices.Clone(acl)
	slices.SortFunc(acl, CompareACs)

	return acl, nil
}

// AddPermissions grants the given permissions.
func (i *Item) AddPermissions(ctx context.Context, acl ...AC) (int, error) {
	if len(acl) == 0 {
		return 0, nil
	}

	return i.store.AddPermissions(ctx, i.Path, UniqueACL(acl)...)
}

// RemovePermissions removes the given entries.
func (i *Item) RemovePermissions(ctx context.Context, acl ...AC) (int, error) {
	if len(acl) == 0 {
		return 0, nil
	}

	return i.store.RemovePermissions(ctx, i.Path, UniqueACL(acl)...)
}

// Replicas returns the replicas of a data object, ordered by replica number.
func (i *Item) Replicas(ctx context.Context) ([]Replica, error) {
	if i.Kind != KindDataObject {
		return nil, fmt.Errorf("%w: %s", ErrNotDataObject, i.Path)
	}

	reps, err := i.store.Replicas(ctx, i.Path)
	if err != nil {
		return nil, err
	}

	reps = slices.Clone(reps)
	slices.SortFunc(reps, func(a, b Replica) int { return a.Number - b.Number })

	return reps, nil
}

// Checksum returns the checksum of the lowest numbered valid replica that has
// one, or the empty string if there is none.
func (i *Item) Checksum(ctx context.Context) (string, error) {
	reps, err := i.Replicas(ctx)
	if err != nil {
		return "", err
	}

	for _, r := range reps {
		if r.Valid && r.Checksum != "" {
			return r.Checksum, nil
		}
	}

	return "", nil
}

// Created returns the earliest creation time of any of the data object's
// replicas.
func (i *Item) Created(ctx context.Context) (time.Time, error) {
	reps, err := i.Replicas(ctx)
	if err != nil {
		return time.Time{}, err
	}

	if len(reps) == 0 {
		return time.Time{}, &EmptyReplicaSetError{Path: i.Path}
	}

	created := reps[0].Created

	for _, r := range reps[1:] {
		if r.Created.Before(created) {
			created = r.Created
		}
	}

	return created, nil
}

// TrimReplicas removes the numbered replicas of a data object.
func (i *Item) TrimReplicas(ctx context.Context, numbers ...int) (int, error) {
	if i.Kind != KindDataObject {
		return 0, fmt.Errorf("%w: %s", ErrNotDataObject, i.Path)
	}

	if len(numbers) == 0 {
		return 0, nil
	}

	return i.store.TrimReplicas(ctx, i.Path, numbers...)
}

// Contents returns the children of a collection, sorted by path. If recurse is
// true, all descendants are returned, each collection followed by its own
// contents.
func (i *Item) Contents(ctx context.Context, recurse bool) ([]*Item, error) {
	if i.Kind != KindCollection {
		return nil, fmt.Errorf("%w: %s", ErrNotCollection, i.Path)
	}

	entries, err := i.store.Contents(ctx, i.Path)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })

	items := make([]*Item, 0, len(entries))

	for _, e := range entries {
		child := &Item{Path: e.Path, Kind: e.Kind, store: i.store}
		items = append(items, child)

		if !recurse || e.Kind != KindCollection {
			continue
		}

		sub, err := child.Contents(ctx, true)
		if err != nil {
			return nil, err
		}

		items = append(items, sub...)
	}

	return items, nil
}

// Tree returns the item itself followed, if recurse is true and the item is a
// collection, by all of its descendants.
func (i *Item) Tree(ctx context.Context, recurse bool) ([]*Item, error) {
	items := []*Item{i}

	if !recurse || i.Kind != KindCollection {
		return items, nil
	}

	sub, err := i.Contents(ctx, true)
	if err != nil {
		return nil, err
	}

	return append(items, sub...), nil
}
