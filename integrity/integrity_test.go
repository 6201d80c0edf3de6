package integrity

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	internaltest "github.com/wtsi-npg/npg-irods/internal/test"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
)

func TestChecksums(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store", t, func() {
		s := internaltest.NewStore(t)

		Convey("a data object with no replicas is an inconsistency", func() {
			obj := internaltest.MakeDataObject(t, s, "/testZone/a/empty.txt")

			_, err := HasCompleteChecksums(ctx, obj)
			So(err, ShouldWrap, irods.ErrEmptyReplicaSet)
		})

		Convey("matching replicas without metadata get an md5 AVU", func() {
			obj := internaltest.MakeDataObject(t, s, "/testZone/a/1.cram", internaltest.ValidReplicas("abc", "abc")...)

			ok, err := HasMatchingChecksums(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			ok, err = HasMatchingChecksumMetadata(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			changed, err := EnsureMatchingChecksumMetadata(ctx, obj)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)

			avus, err := obj.MetadataWith(ctx, metadata.MD5)
			So(err, ShouldBeNil)
			So(avus, ShouldResemble, []irods.AVU{irods.NewAVU(metadata.MD5, "abc")})

			ok, err = HasMatchingChecksumMetadata(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			changed, err = EnsureMatchingChecksumMetadata(ctx, obj)
			So(err, ShouldBeNil)
			So(changed, ShouldBeFalse)
		})

		Convey("disagreeing metadata is superseded", func() {
			obj := internaltest.MakeDataObject(t, s, "/testZone/a/1.cram", internaltest.ValidReplicas("abc", "abc")...)
			internaltest.AddMetadata(t, obj, irods.NewAVU(metadata.MD5, "old"), irods.NewAVU(metadata.MD5, "older"))

			ok, err := HasChecksumMetadata(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			changed, err := EnsureMatchingChecksumMetadata(ctx, obj)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)

			ok, err = HasMatchingChecksumMetadata(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			history, err := obj.MetadataWith(ctx, metadata.MD5+irods.HistorySuffix)
			So(err, ShouldBeNil)
			So(history, ShouldHaveLength, 1)
			So(history[0].Value, ShouldEndWith, "] old,older")
		})

		Convey("disagreeing replicas are a mismatch error", func() {
			obj := internaltest.MakeDataObject(t, s, "/testZone/a/1.cram", internaltest.ValidReplicas("abc", "def")...)

			ok, err := HasCompleteChecksums(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			_, err = EnsureMatchingChecksumMetadata(ctx, obj)
			So(err, ShouldWrap, ErrChecksum)

			var cerr *ChecksumError
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.Reason, ShouldEqual, ReasonMismatch)
			So(cerr.Expected, ShouldResemble, []string{"abc", "abc"})
			So(cerr.Observed, ShouldResemble, []string{"abc", "def"})

			_, err = RepairReplicas(ctx, obj, 1)
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.Reason, ShouldEqual, ReasonMismatch)
		})

		Convey("a valid replica without a checksum is incomplete", func() {
			obj := internaltest.MakeDataObject(t, s, "/testZone/a/1.cram", internaltest.ValidReplicas("abc", "")...)

			ok, err := HasCompleteChecksums(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			_, err = EnsureMatchingChecksumMetadata(ctx, obj)

			var cerr *ChecksumError
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.Reason, ShouldEqual, ReasonIncomplete)
		})

		Convey("with no valid replicas, checksums are complete but cannot be repaired", func() {
			reps := internaltest.ValidReplicas("abc", "abc")
			reps[0].Valid = false
			reps[1].Valid = false
			obj := internaltest.MakeDataObject(t, s, "/testZone/a/1.cram", reps...)

			ok, err := HasCompleteChecksums(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			ok, err = HasMatchingChecksums(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			var cerr *ChecksumError

			_, err = EnsureMatchingChecksumMetadata(ctx, obj)
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.Reason, ShouldEqual, ReasonIncomplete)
			So(cerr.Observed, ShouldBeEmpty)

			_, err = RepairReplicas(ctx, obj, 1)
			So(errors.As(err, &cerr), ShouldBeTrue)
			So(cerr.Reason, ShouldEqual, ReasonIncomplete)
		})

		Convey("invalid replicas are ignored by checksum checks", func() {
			reps := internaltest.ValidReplicas("abc", "def", "abc")
			reps[1].Valid = false
			obj := internaltest.MakeDataObject(t, s, "/testZone/a/1.cram", reps...)

			ok, err := HasMatchingChecksums(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			Convey("but are always trimmable", func() {
				ok, err := HasCompleteReplicas(ctx, obj, 2)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)

				ok, err = HasCompleteReplicas(ctx, obj, 3)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)

				excess, invalid, err := TrimmableReplicas(ctx, obj, 1)
				So(err, ShouldBeNil)
				So(excess, ShouldHaveLength, 1)
				So(excess[0].Number, ShouldEqual, 2)
				So(invalid, ShouldHaveLength, 1)
				So(invalid[0].Number, ShouldEqual, 1)

				changed, err := RepairReplicas(ctx, obj, 1)
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)

				left, err := obj.Replicas(ctx)
				So(err, ShouldBeNil)
				So(left, ShouldHaveLength, 1)
				So(left[0].Number, ShouldEqual, 0)

				changed, err = RepairReplicas(ctx, obj, 1)
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
			})
		})
	})
}

func TestCommonMetadata(t *testing.T) {
	ctx := context.Background()

	Convey("Given a cram file with no metadata", t, func() {
		s := internaltest.NewStore(t)
		obj := internaltest.MakeDataObject(t, s, "/testZone/a/1.cram.gz", internaltest.ValidReplicas("abc")...)

		So(RequiresTypeMetadata(obj), ShouldBeTrue)

		ok, err := HasCommonMetadata(ctx, obj)
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)

		Convey("ensuring common metadata adds creation, checksum and type", func() {
			changed, err := EnsureCommonMetadata(ctx, obj, "")
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)

			avus, err := obj.Metadata(ctx)
			So(err, ShouldBeNil)
			So(avus, ShouldResemble, []irods.AVU{
				irods.NewAVU(metadata.DCCreated, "2023-06-01T10:00:00Z"),
				irods.NewAVU(metadata.DCCreator, metadata.WSICreator),
				irods.NewAVU(metadata.MD5, "abc"),
				irods.NewAVU(metadata.Type, "cram"),
			})

			ok, err := HasCommonMetadata(ctx, obj)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			changed, err = EnsureCommonMetadata(ctx, obj, "someone")
			So(err, ShouldBeNil)
			So(changed, ShouldBeFalse)
		})

		Convey("existing attributes are not replaced", func() {
			internaltest.AddMetadata(t, obj, irods.NewAVU(metadata.DCCreator, "someone"))

			_, err := EnsureCommonMetadata(ctx, obj, "")
			So(err, ShouldBeNil)

			creators, err := obj.MetadataWith(ctx, metadata.DCCreator)
			So(err, ShouldBeNil)
			So(creators, ShouldResemble, []irods.AVU{irods.NewAVU(metadata.DCCreator, "someone")})
		})
	})

	Convey("Files of unrecognised type need no type metadata", t, func() {
		s := internaltest.NewStore(t)
		obj := internaltest.MakeDataObject(t, s, "/testZone/a/notes.md", internaltest.ValidReplicas("abc")...)
		internaltest.AddMetadata(t, obj, metadata.MakeCreationMetadata("me", internaltest.ReplicaTime)...)
		internaltest.AddMetadata(t, obj, metadata.MakeChecksumMetadata("abc")...)

		ok, err := HasCommonMetadata(ctx, obj)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
	})

	Convey("Data objects without a checksum cannot be given common metadata", t, func() {
		s := internaltest.NewStore(t)
		obj := internaltest.MakeDataObject(t, s, "/testZone/a/1.cram", internaltest.ValidReplicas("")...)

		_, err := EnsureCommonMetadata(ctx, obj, "")
		So(err, ShouldWrap, ErrNoChecksum)
	})
}
