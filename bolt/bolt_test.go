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
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-npg/npg-irods/irods"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new store", t, func() {
		dbPath := filepath.Join(t.TempDir(), "irods.db")

		s, err := Open(dbPath)
		So(err, ShouldBeNil)

		defer s.Close()

		created, err := s.CreatedAt()
		So(err, ShouldBeNil)
		So(created, ShouldHappenWithin, time.Minute, time.Now())

		Convey("relative paths are rejected", func() {
			So(s.MakeCollection(ctx, "testZone/home"), ShouldWrap, ErrInvalidPath)
		})

		Convey("missing items are reported as not found", func() {
			_, err := s.Stat(ctx, "/testZone/nothing")
			So(err, ShouldWrap, irods.ErrNotFound)
		})

		Convey("you can make nested collections", func() {
			So(s.MakeCollection(ctx, "/testZone/home/irods/a"), ShouldBeNil)

			kind, err := s.Stat(ctx, "/testZone/home")
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, irods.KindCollection)

			So(s.MakeCollection(ctx, "/testZone/home/irods/a"), ShouldBeNil)

			Convey("and put data objects in them", func() {
				obj := "/testZone/home/irods/a/x.txt"
				So(s.PutDataObject(ctx, obj,
					irods.Replica{Number: 0, Checksum: "abc", Valid: true},
					irods.Replica{Number: 1, Checksum: "abc", Valid: true},
				), ShouldBeNil)

				So(s.PutDataObject(ctx, "/testZone/none/x.txt"), ShouldWrap, ErrParentNotFound)
				So(s.MakeCollection(ctx, obj), ShouldWrap, ErrKindConflict)

				reps, err := s.Replicas(ctx, obj)
				So(err, ShouldBeNil)
				So(reps, ShouldHaveLength, 2)
				So(reps[1].Checksum, ShouldEqual, "abc")

				_, err = s.Replicas(ctx, "/testZone/home")
				So(err, ShouldWrap, irods.ErrNotDataObject)

				Convey("which are listed as contents", func() {
					So(s.MakeCollection(ctx, "/testZone/home/irods/a/b"), ShouldBeNil)
					So(s.MakeCollection(ctx, "/testZone/home/irods/ab"), ShouldBeNil)

					entries, err := s.Contents(ctx, "/testZone/home/irods/a")
					So(err, ShouldBeNil)
					So(entries, ShouldResemble, []irods.Entry{
						{Path: "/testZone/home/irods/a/b", Kind: irods.KindCollection},
						{Path: obj, Kind: irods.KindDataObject},
					})

					root, err := s.Contents(ctx, "/")
					So(err, ShouldBeNil)
					So(root, ShouldResemble, []irods.Entry{{Path: "/testZone", Kind: irods.KindCollection}})

					_, err = s.Contents(ctx, obj)
					So(err, ShouldWrap, irods.ErrNotCollection)
				})

				Convey("and trim their replicas", func() {
					n, err := s.TrimReplicas(ctx, obj, 1, 7)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)

					reps, err = s.Replicas(ctx, obj)
					So(err, ShouldBeNil)
					So(reps, ShouldHaveLength, 1)
				})

				Convey("and remove them", func() {
					So(s.Remove(ctx, "/testZone/home/irods/a"), ShouldWrap, ErrNotEmpty)
					So(s.Remove(ctx, obj), ShouldBeNil)
					So(s.Remove(ctx, "/testZone/home/irods/a"), ShouldBeNil)

					_, err := s.Stat(ctx, obj)
					So(err, ShouldWrap, irods.ErrNotFound)
				})
			})
		})

		Convey("metadata can be added, removed and queried", func() {
			coll := "/testZone/home/irods"
			So(s.MakeCollection(ctx, coll), ShouldBeNil)

			a := irods.NewAVU("study_id", 1000)
			b := irods.NewAVU("sample", "s1")

			n, err := s.AddMetadata(ctx, coll, a, b, a)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			n, err = s.AddMetadata(ctx, coll, a)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)

			paths, err := s.QueryMetadata(ctx, irods.KindCollection, a, b)
			So(err, ShouldBeNil)
			So(paths, ShouldResemble, []string{coll})

			paths, err = s.QueryMetadata(ctx, irods.KindDataObject, a)
			So(err, ShouldBeNil)
			So(paths, ShouldBeEmpty)

			n, err = s.RemoveMetadata(ctx, coll, b, irods.NewAVU("sample", "s2"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			avus, err := s.Metadata(ctx, coll)
			So(err, ShouldBeNil)
			So(avus, ShouldResemble, []irods.AVU{a})
		})

		Convey("adding a permission replaces the grantee's existing one", func() {
			coll := "/testZone/home/irods"
			So(s.MakeCollection(ctx, coll), ShouldBeNil)

			n, err := s.AddPermissions(ctx, coll, irods.NewAC("ss_1000", irods.PermRead, "testZone"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			n, err = s.AddPermissions(ctx, coll, irods.NewAC("ss_1000", irods.PermNull, "testZone"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			acl, err := s.ACL(ctx, coll)
			So(err, ShouldBeNil)
			So(acl, ShouldResemble, []irods.AC{irods.NewAC("ss_1000", irods.PermNull, "testZone")})

			n, err = s.RemovePermissions(ctx, coll, irods.NewAC("ss_1000", irods.PermNull, "testZone"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			acl, err = s.ACL(ctx, coll)
			So(err, ShouldBeNil)
			So(acl, ShouldBeEmpty)
		})

		Convey("state survives reopening", func() {
			So(s.MakeCollection(ctx, "/testZone/home"), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			s, err = Open(dbPath)
			So(err, ShouldBeNil)

			defer s.Close()

			kind, err := s.Stat(ctx, "/testZone/home")
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, irods.KindCollection)
		})
	})
}
