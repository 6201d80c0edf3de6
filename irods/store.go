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

// Package irods models items in an iRODS store: collections and data objects,
// their metadata, access control lists and replicas. The store itself is
// reached through the Store interface; implementations live elsewhere.
package irods

import (
	"context"
	"time"
)

// Kind distinguishes collections from data objects.
type Kind int

const (
	KindUnknown Kind = iota
	KindCollection
	KindDataObject
)

func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindDataObject:
		return "data object"
	default:
		return "item"
	}
}

// Replica is one physical copy of a data object. An empty Checksum means the
// store holds no checksum for the replica.
type Replica struct {
	Number   int
	Resource string
	Location string
	Checksum string
	Valid    bool
	Created  time.Time
	Modified time.Time
}

// Entry is a child of a collection, as listed by Store.Contents.
type Entry struct {
	Path string
	Kind Kind
}

// Store is the client interface to the store. Every method is a blocking
// RPC. Paths are absolute.
type Store interface {
	// Stat returns the kind of the item at path, or a *NotFoundError.
	Stat(ctx context.Context, path string) (Kind, error)

	// Metadata returns all AVUs on the item.
	Metadata(ctx context.Context, path string) ([]AVU, error)

	// AddMetadata adds AVUs not already present and returns how many were
	// added.
	AddMetadata(ctx context.Context, path string, avus ...AVU) (int, error)

	// RemoveMetadata removes AVUs that are present and returns how many were
	// removed.
	RemoveMetadata(ctx context.Context, path string, avus ...AVU) (int, error)

	// ACL returns the access control list of the item.
	ACL(ctx context.Context, path string) ([]AC, error)

	// AddPermissions sets the permission of each entry's user and zone,
	// replacing any existing permission for them, and returns how many
	// entries changed.
	AddPermissions(ctx context.Context, path string, acl ...AC) (int, error)

	// RemovePermissions removes the exact entries given and returns how many
	// were removed.
	RemovePermissions(ctx context.Context, path string, acl ...AC) (int, error)

	// Replicas returns the replicas of a data object.
	Replicas(ctx context.Context, path string) ([]Replica, error)

	// TrimReplicas removes the numbered replicas of a data object and returns
	// how many were removed.
	TrimReplicas(ctx context.Context, path string, numbers ...int) (int, error)

	// Contents lists the immediate children of a collection.
	Contents(ctx context.Context, path string) ([]Entry, error)

	// QueryMetadata returns the paths of items of the given kind (or of any
	// kind for KindUnknown) that carry all the given AVUs.
	QueryMetadata(ctx context.Context, kind Kind, avus ...AVU) ([]string, error)
}
