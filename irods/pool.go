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

	"golang.org/x/sync/semaphore"
)

// PooledStore wraps a Store so that no more than a fixed number of RPCs are in
// flight at once. Callers beyond that limit block until a handle is released
// or their context is done.
type PooledStore struct {
	store Store
	sem   *semaphore.Weighted
}

// NewPooledStore returns a Store that allows at most n concurrent calls to the
// given store. n less than 1 is treated as 1.
func NewPooledStore(store Store, n int) *PooledStore {
	if n < 1 {
		n = 1
	}

	return &PooledStore{store: store, sem: semaphore.NewWeighted(int64(n))}
}

func withHandle[T any](ctx context.Context, p *PooledStore, fn func() (T, error)) (T, error) {
	var zero T

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	defer p.sem.Release(1)

	return fn()
}

func (p *PooledStore) Stat(ctx context.Context, path string) (Kind, error) {
	return withHandle(ctx, p, func() (Kind, error) { return p.store.Stat(ctx, path) })
}

func (p *PooledStore) Metadata(ctx context.Context, path string) ([]AVU, error) {
	return withHandle(ctx, p, func() ([]AVU, error) { return p.store.Metadata(ctx, path) })
}

func (p *PooledStore) AddMetadata(ctx context.Context, path string, avus ...AVU) (int, error) {
	return withHandle(ctx, p, func() (int, error) { return p.store.AddMetadata(ctx, path, avus...) })
}

func (p *PooledStore) RemoveMetadata(ctx context.Context, path string, avus ...AVU) (int, error) {
	return withHandle(ctx, p, func() (int, error) { return p.store.RemoveMetadata(ctx, path, avus...) })
}

func (p *PooledStore) ACL(ctx context.Context, path string) ([]AC, error) {
	return withHandle(ctx, p, func() ([]AC, error) { return p.store.ACL(ctx, path) })
}

func (p *PooledStore) AddPermissions(ctx context.Context, path string, acl ...AC) (int, error) {
	return withHandle(ctx, p, func() (int, error) { return p.store.AddPermissions(ctx, path, acl...) })
}

func (p *PooledStore) RemovePermissions(ctx context.Context, path string, acl ...AC) (int, error) {
	return withHandle(ctx, p, func() (int, error) { return p.store.RemovePermissions(ctx, path, acl...) })
}

func (p *PooledStore) Replicas(ctx context.Context, path string) ([]Replica, error) {
	return withHandle(ctx, p, func() ([]Replica, error) { return p.store.Replicas(ctx, path) })
}

func (p *PooledStore) TrimReplicas(ctx context.Context, path string, numbers ...int) (int, error) {
	return withHandle(ctx, p, func() (int, error) { return p.store.TrimReplicas(ctx, path, numbers...) })
}

func (p *PooledStore) Contents(ctx context.Context, path string) ([]Entry, error) {
	return withHandle(ctx, p, func() ([]Entry, error) { return p.store.Contents(ctx, path) })
}

func (p *PooledStore) QueryMetadata(ctx context.Context, kind Kind, avus ...AVU) ([]string, error) {
	return withHandle(ctx, p, func() ([]string, error) { return p.store.QueryMetadata(ctx, kind, avus...) })
}
