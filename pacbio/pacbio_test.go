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

package pacbio_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/inconshreveable/log15"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-npg/npg-irods/component"
	internaltest "github.com/wtsi-npg/npg-irods/internal/test"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/mlwh"
	"github.com/wtsi-npg/npg-irods/pacbio"
)

const wellDir = "/testZone/seq/pacbio/r84047_20240101_000000/1_A01"

func TestComponentsOf(t *testing.T) {
	ctx := context.Background()

	Convey("Given PacBio data objects", t, func() {
		s := internaltest.NewStore(t)

		wellAVUs := []irods.AVU{
			irods.NewAVU(metadata.PacBioRunName, "TRACTION-RUN-1"),
			irods.NewAVU(metadata.PacBioWellLabel, "A01"),
		}

		Convey("a deplexed file has one component with an unpadded well", func() {
			obj := internaltest.MakeDataObject(t, s, wellDir+"/m84047.bc2001.bam", internaltest.ValidReplicas("a")...)
			internaltest.AddMetadata(t, obj, append(wellAVUs,
				irods.NewAVU(metadata.PacBioPlateNumber, 1),
				irods.NewAVU(metadata.PacBioTagSequence, "ACGT"))...)

			comps, err := pacbio.ComponentsOf(ctx, obj)
			So(err, ShouldBeNil)
			So(len(comps), ShouldEqual, 1)
			So(comps[0].RunName, ShouldEqual, "TRACTION-RUN-1")
			So(comps[0].WellLabel, ShouldEqual, "A1")
			So(*comps[0].PlateNumber, ShouldEqual, 1)
			So(comps[0].TagSequence, ShouldEqual, "ACGT")
		})

		Convey("a pooled file has one component per tag", func() {
			obj := internaltest.MakeDataObject(t, s, wellDir+"/m84047.reads.bam", internaltest.ValidReplicas("a")...)
			internaltest.AddMetadata(t, obj, append(wellAVUs,
				irods.NewAVU(metadata.PacBioTagSequence, "CCCC"),
				irods.NewAVU(metadata.PacBioTagSequence, "AAAA"))...)

			comps, err := pacbio.ComponentsOf(ctx, obj)
			So(err, ShouldBeNil)
			So(comps, ShouldResemble, []component.PacBioComponent{
				{RunName: "TRACTION-RUN-1", WellLabel: "A1", TagSequence: "AAAA"},
				{RunName: "TRACTION-RUN-1", WellLabel: "A1", TagSequence: "CCCC"},
			})
		})

		Convey("a file with no tag has one untagged component", func() {
			obj := internaltest.MakeDataObject(t, s, wellDir+"/m84047.reads.bam", internaltest.ValidReplicas("a")...)
			internaltest.AddMetadata(t, obj, wellAVUs...)

			comps, err := pacbio.ComponentsOf(ctx, obj)
			So(err, ShouldBeNil)
			So(comps, ShouldResemble, []component.PacBioComponent{{RunName: "TRACTION-RUN-1", WellLabel: "A1"}})
		})

		Convey("a file with two wells is rejected", func() {
			obj := internaltest.MakeDataObject(t, s, wellDir+"/m84047.reads.bam", internaltest.ValidReplicas("a")...)
			internaltest.AddMetadata(t, obj, append(wellAVUs, irods.NewAVU(metadata.PacBioWellLabel, "B01"))...)

			_, err := pacbio.ComponentsOf(ctx, obj)
			So(err, ShouldWrap, component.ErrInvalidComponent)
			So(err, ShouldWrap, metadata.ErrDuplicateAttribute)
		})

		Convey("a file with a run and no well is rejected", func() {
			obj := internaltest.MakeDataObject(t, s, wellDir+"/m84047.reads.bam", internaltest.ValidReplicas("a")...)
			internaltest.AddMetadata(t, obj, wellAVUs[0])

			_, err := pacbio.ComponentsOf(ctx, obj)
			So(err, ShouldWrap, component.ErrInvalidComponent)
		})

		Convey("a file without run metadata has no components", func() {
			obj := internaltest.MakeDataObject(t, s, wellDir+"/m84047.xml", internaltest.ValidReplicas("a")...)

			comps, err := pacbio.ComponentsOf(ctx, obj)
			So(err, ShouldBeNil)
			So(comps, ShouldBeEmpty)
		})

		Convey("collections have no components", func() {
			coll := internaltest.MakeCollection(t, s, wellDir)

			_, err := pacbio.ComponentsOf(ctx, coll)
			So(err, ShouldWrap, irods.ErrNotDataObject)
		})
	})
}

func TestRecordsFor(t *testing.T) {
	ctx := context.Background()

	Convey("Given a warehouse with a multi-plate run", t, func() {
		w := internaltest.NewWarehouse(t)
		study := w.AddStudy(metadata.Study{IDStudyLIMS: "5000"})
		s1 := w.AddSample(metadata.Sample{IDSampleLIMS: "1", Name: "sample1"})
		s2 := w.AddSample(metadata.Sample{IDSampleLIMS: "2", Name: "sample2"})
		s3 := w.AddSample(metadata.Sample{IDSampleLIMS: "3", Name: "sample3"})

		w.AddPacBio(s1, study, "TRACTION-RUN-1", "A1", internaltest.IntPtr(1), "AAAA")
		w.AddPacBio(s2, study, "TRACTION-RUN-1", "A1", internaltest.IntPtr(1), "CCCC")
		w.AddPacBio(s3, study, "TRACTION-RUN-1", "A1", internaltest.IntPtr(2), "AAAA")

		wh := w.Open()

		Convey("a padded well finds the records of its plate and tag", func() {
			recs, err := pacbio.RecordsFor(ctx, wh, component.PacBioComponent{
				RunName: "TRACTION-RUN-1", WellLabel: "A01", PlateNumber: internaltest.IntPtr(2), TagSequence: "AAAA",
			})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 1)
			So(recs[0].Sample.Name, ShouldEqual, "sample3")
		})

		Convey("a well without a plate or tag finds every library", func() {
			recs, err := pacbio.RecordsFor(ctx, wh, component.PacBioComponent{RunName: "TRACTION-RUN-1", WellLabel: "A1"})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 3)
		})

		Convey("a tag without a plate finds the tag on every plate", func() {
			recs, err := pacbio.RecordsFor(ctx, wh, component.PacBioComponent{
				RunName: "TRACTION-RUN-1", WellLabel: "A1", TagSequence: "AAAA",
			})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Sample.Name, ShouldEqual, "sample1")
			So(recs[1].Sample.Name, ShouldEqual, "sample3")
		})
	})
}

func TestRequiresManagedAccess(t *testing.T) {
	ctx := context.Background()

	Convey("Given data objects with and without source metadata", t, func() {
		s := internaltest.NewStore(t)

		var buf bytes.Buffer

		log := log15.New()
		log.SetHandler(log15.StreamHandler(&buf, log15.LogfmtFormat()))

		withSource := internaltest.MakeDataObject(t, s, wellDir+"/a.bam", internaltest.ValidReplicas("a")...)
		internaltest.AddMetadata(t, withSource, irods.NewAVU(metadata.Source, "production"))

		bam := internaltest.MakeDataObject(t, s, wellDir+"/b.bam", internaltest.ValidReplicas("a")...)
		xml := internaltest.MakeDataObject(t, s, wellDir+"/b.xml", internaltest.ValidReplicas("a")...)

		Convey("objects with source metadata are managed", func() {
			managed, err := pacbio.RequiresManagedAccess(ctx, withSource, log)
			So(err, ShouldBeNil)
			So(managed, ShouldBeTrue)
			So(buf.String(), ShouldBeEmpty)
		})

		Convey("sequence files without it are not, with a warning", func() {
			managed, err := pacbio.RequiresManagedAccess(ctx, bam, log)
			So(err, ShouldBeNil)
			So(managed, ShouldBeFalse)
			So(buf.String(), ShouldContainSubstring, "sequence file has no source metadata")
		})

		Convey("other files without it are not, silently", func() {
			managed, err := pacbio.RequiresManagedAccess(ctx, xml, log)
			So(err, ShouldBeNil)
			So(managed, ShouldBeFalse)
			So(buf.String(), ShouldBeEmpty)
		})
	})
}

func TestQueryAVUs(t *testing.T) {
	Convey("Wells are queried with and without padding", t, func() {
		sets := pacbio.QueryAVUs(mlwh.PacBioWell{RunName: "R", WellLabel: "A1", PlateNumber: internaltest.IntPtr(1)})
		So(sets, ShouldResemble, [][]irods.AVU{
			{
				irods.NewAVU(metadata.PacBioRunName, "R"),
				irods.NewAVU(metadata.PacBioWellLabel, "A01"),
				irods.NewAVU(metadata.PacBioPlateNumber, 1),
			},
			{
				irods.NewAVU(metadata.PacBioRunName, "R"),
				irods.NewAVU(metadata.PacBioWellLabel, "A1"),
				irods.NewAVU(metadata.PacBioPlateNumber, 1),
			},
		})

		So(len(pacbio.QueryAVUs(mlwh.PacBioWell{RunName: "R", WellLabel: "B12", TagSequence: "ACGT"})), ShouldEqual, 1)
	})
}
