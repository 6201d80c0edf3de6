package internaltest

import (
	"context"
	"path"
	"path/filepath"
	"testing"
	"time"

	"github.com/wtsi-npg/npg-irods/bolt"
	"github.com/wtsi-npg/npg-irods/irods"
)

// Zone is the zone of the test store.
const Zone = "testZone"

// ReplicaTime is the creation time given to replicas made by ValidReplicas.
var ReplicaTime = time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC) //nolint:gochecknoglobals

// NewStore returns an empty store in a temp dir that is closed at the end of
// the test.
func NewStore(t testing.TB) *bolt.Store {
	t.Helper()

	s, err := bolt.Open(filepath.Join(t.TempDir(), "irods.db"))
	if err != nil {
		t.Fatalf("open store: %s", err)
	}

	t.Cleanup(func() { s.Close() })

	return s
}

// ValidReplicas returns valid replicas numbered from 0 with the given
// checksums. An empty checksum makes a replica without one.
func ValidReplicas(checksums ...string) []irods.Replica {
	reps := make([]irods.Replica, len(checksums))

	for i, c := range checksums {
		reps[i] = irods.Replica{
			Number:   i,
			Resource: "replResc",
			Location: "localhost",
			Checksum: c,
			Valid:    true,
			Created:  ReplicaTime.Add(time.Duration(i) * time.Minute),
			Modified: ReplicaTime.Add(time.Duration(i) * time.Minute),
		}
	}

	return reps
}

// MakeCollection creates a collection and its parents.
func MakeCollection(t testing.TB, s *bolt.Store, p string) *irods.Item {
	t.Helper()

	if err := s.MakeCollection(context.Background(), p); err != nil {
		t.Fatalf("make collection %s: %s", p, err)
	}

	return irods.NewCollection(s, p)
}

// MakeDataObject creates a data object with the given replicas, making its
// parent collections as needed.
func MakeDataObject(t testing.TB, s *bolt.Store, p string, replicas ...irods.Replica) *irods.Item {
	t.Helper()

	MakeCollection(t, s, path.Dir(p))

	if err := s.PutDataObject(context.Background(), p, replicas...); err != nil {
		t.Fatalf("put data object %s: %s", p, err)
	}

	return irods.NewDataObject(s, p)
}

// AddMetadata adds AVUs to an item.
func AddMetadata(t testing.TB, item *irods.Item, avus ...irods.AVU) {
	t.Helper()

	if _, err := item.AddMetadata(context.Background(), avus...); err != nil {
		t.Fatalf("add metadata to %s: %s", item, err)
	}
}

// AddPermissions adds entries to an item's ACL.
func AddPermissions(t testing.TB, item *irods.Item, acl ...irods.AC) {
	t.Helper()

	if _, err := item.AddPermissions(context.Background(), acl...); err != nil {
		t.Fatalf("add permissions to %s: %s", item, err)
	}
}
