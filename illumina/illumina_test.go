package illumina_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/illumina"
	internaltest "github.com/wtsi-npg/npg-irods/internal/test"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
)

func TestComponentsOf(t *testing.T) {
	ctx := context.Background()

	Convey("Given Illumina data objects", t, func() {
		s := internaltest.NewStore(t)
		obj := internaltest.MakeDataObject(t, s, "/testZone/seq/12345/12345_1#1.cram",
			internaltest.ValidReplicas("abc")...)

		Convey("component AVUs are decoded", func() {
			internaltest.AddMetadata(t, obj,
				irods.NewAVU(metadata.Component, `{"id_run":12345,"position":2,"tag_index":1}`),
				irods.NewAVU(metadata.Component, `{"id_run":12345,"position":1,"tag_index":1,"subset":"human"}`),
				irods.NewAVU(metadata.IlluminaRun, 99999),
			)

			comps, err := illumina.ComponentsOf(ctx, obj)
			So(err, ShouldBeNil)
			So(len(comps), ShouldEqual, 2)
			So(comps[0].Position, ShouldEqual, 1)
			So(comps[0].Subset, ShouldEqual, component.SubsetHuman)
			So(comps[1].Position, ShouldEqual, 2)
			So(*comps[1].TagIndex, ShouldEqual, 1)
			So(comps[1].String(), ShouldEqual, `{"id_run":12345,"position":2,"tag_index":1}`)
		})

		Convey("a malformed component AVU is an error", func() {
			internaltest.AddMetadata(t, obj, irods.NewAVU(metadata.Component, `{"position":2}`))

			_, err := illumina.ComponentsOf(ctx, obj)
			So(err, ShouldWrap, component.ErrInvalidComponent)
		})

		Convey("run, lane and tag AVUs are used without component AVUs", func() {
			internaltest.AddMetadata(t, obj,
				irods.NewAVU(metadata.IlluminaRun, 12345),
				irods.NewAVU(metadata.IlluminaPosition, 1),
				irods.NewAVU(metadata.TagIndex, 0),
			)

			comps, err := illumina.ComponentsOf(ctx, obj)
			So(err, ShouldBeNil)
			So(len(comps), ShouldEqual, 1)
			So(comps[0].Run, ShouldEqual, 12345)
			So(comps[0].IsBin(), ShouldBeTrue)

			Convey("but not with two lanes", func() {
				internaltest.AddMetadata(t, obj, irods.NewAVU(metadata.IlluminaPosition, 2))

				_, err := illumina.ComponentsOf(ctx, obj)
				So(err, ShouldWrap, component.ErrInvalidComponent)
			})
		})

		Convey("an item with no identifying metadata has no components", func() {
			comps, err := illumina.ComponentsOf(ctx, obj)
			So(err, ShouldBeNil)
			So(comps, ShouldBeEmpty)
		})
	})
}

func TestRecordsFor(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pool of two samples and a control", t, func() {
		w := internaltest.NewWarehouse(t)
		study := w.AddStudy(metadata.Study{IDStudyLIMS: "1000", Name: "Study A"})
		control := w.AddStudy(metadata.Study{IDStudyLIMS: "888", Name: "Controls"})

		s1 := w.AddSample(metadata.Sample{IDSampleLIMS: "1", Name: "S1"})
		s2 := w.AddSample(metadata.Sample{IDSampleLIMS: "2", Name: "S2"})
		phix := w.AddSample(metadata.Sample{IDSampleLIMS: "3", Name: "phiX"})

		w.AddIllumina(s1, study, 12345, 1, internaltest.IntPtr(1))
		w.AddIllumina(s2, study, 12345, 1, internaltest.IntPtr(2))
		w.AddIllumina(phix, control, 12345, 1, internaltest.IntPtr(888))
		w.AddIllumina(s1, study, 12345, 2, nil)

		db := w.Open()

		names := func(recs []mlwh.IlluminaRecord) []string {
			out := make([]string, len(recs))
			for i, r := range recs {
				out[i] = r.Sample.Name
			}

			return out
		}

		Convey("a tag resolves to its own library", func() {
			recs, err := illumina.RecordsFor(ctx, db,
				component.IlluminaComponent{Run: 12345, Position: 1, TagIndex: internaltest.IntPtr(2)}, false)
			So(err, ShouldBeNil)
			So(names(recs), ShouldResemble, []string{"S2"})
		})

		Convey("tag 0 resolves to the whole pool", func() {
			recs, err := illumina.RecordsFor(ctx, db,
				component.IlluminaComponent{Run: 12345, Position: 1, TagIndex: internaltest.IntPtr(0)}, false)
			So(err, ShouldBeNil)
			So(names(recs), ShouldResemble, []string{"S1", "S2", "phiX"})
		})

		Convey("a control tag resolves only if controls are included", func() {
			c := component.IlluminaComponent{Run: 12345, Position: 1, TagIndex: internaltest.IntPtr(888)}

			recs, err := illumina.RecordsFor(ctx, db, c, false)
			So(err, ShouldBeNil)
			So(recs, ShouldBeEmpty)

			recs, err = illumina.RecordsFor(ctx, db, c, true)
			So(err, ShouldBeNil)
			So(names(recs), ShouldResemble, []string{"phiX"})
			So(recs[0].Study.IDStudyLIMS, ShouldEqual, "888")
		})

		Convey("an untagged position resolves to its library", func() {
			recs, err := illumina.RecordsFor(ctx, db, component.IlluminaComponent{Run: 12345, Position: 2}, false)
			So(err, ShouldBeNil)
			So(names(recs), ShouldResemble, []string{"S1"})
		})
	})
}

func TestQueryAVUs(t *testing.T) {
	Convey("Changed products are located by run, lane and tag", t, func() {
		So(illumina.QueryAVUs(mlwh.IlluminaProduct{Run: 1, Position: 2}), ShouldResemble, []irods.AVU{
			irods.NewAVU(metadata.IlluminaRun, 1), irods.NewAVU(metadata.IlluminaPosition, 2),
		})
		So(illumina.QueryAVUs(mlwh.IlluminaProduct{Run: 1, Position: 2, TagIndex: internaltest.IntPtr(3)}),
			ShouldContain, irods.NewAVU(metadata.TagIndex, 3))
	})
}
