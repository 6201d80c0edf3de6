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

package secondary_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-npg/npg-irods/component"
	"github.com/wtsi-npg/npg-irods/consent"
	internaltest "github.com/wtsi-npg/npg-irods/internal/test"
	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
	"github.com/wtsi-npg/npg-irods/ont"
	"github.com/wtsi-npg/npg-irods/secondary"
)

// Production data live in the seq zone, under paths from which their platform
// is inferred.
const zone = "seq"

func illuminaComponent(tag int, subset component.Subset) irods.AVU {
	c := component.IlluminaComponent{Run: 12345, Position: 1, TagIndex: &tag, Subset: subset}

	return irods.NewAVU(metadata.Component, c.String())
}

func sampleNames(item *irods.Item) []string {
	avus, err := item.MetadataWith(context.Background(), metadata.SampleName)
	So(err, ShouldBeNil)

	names := make([]string, len(avus))
	for i, avu := range avus {
		names[i] = avu.Value
	}

	return names
}

func TestSynchronizeIllumina(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pool of two samples in the warehouse", t, func() {
		w := internaltest.NewWarehouse(t)
		study := w.AddStudy(metadata.Study{IDStudyLIMS: "1000", Name: "Study A"})
		s1 := w.AddSample(metadata.Sample{IDSampleLIMS: "1", Name: "S1"})
		s2 := w.AddSample(metadata.Sample{IDSampleLIMS: "2", Name: "S2"})

		w.AddIllumina(s1, study, 12345, 1, internaltest.IntPtr(1))
		w.AddIllumina(s2, study, 12345, 1, internaltest.IntPtr(2))

		s := internaltest.NewStore(t)
		sync := &secondary.Synchronizer{Warehouse: w.Open(), Consent: consent.DefaultPolicy()}

		Convey("the tag 0 object gets the metadata of both samples", func() {
			obj := internaltest.MakeDataObject(t, s, "/seq/illumina/runs/12/12345/lane1/plex0/12345_1#0.cram",
				internaltest.ValidReplicas("abc")...)
			internaltest.AddMetadata(t, obj, illuminaComponent(0, component.SubsetNone))

			changed, err := sync.Synchronize(ctx, obj)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)

			So(sampleNames(obj), ShouldResemble, []string{"S1", "S2"})

			study, err := obj.SingleAVU(ctx, metadata.StudyID)
			So(err, ShouldBeNil)
			So(study.Value, ShouldEqual, "1000")

			acl, err := obj.ACL(ctx)
			So(err, ShouldBeNil)
			So(acl, ShouldResemble, []irods.AC{irods.NewAC("ss_1000", irods.PermRead, zone)})

			Convey("and synchronizing again changes nothing", func() {
				changed, err := sync.Synchronize(ctx, obj)
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
			})

			Convey("and withdrawn access is not restored", func() {
				withdrawn, err := consent.EnsureWithdrawn(ctx, obj, false, consent.DefaultPolicy())
				So(err, ShouldBeNil)
				So(withdrawn, ShouldBeTrue)

				_, err = sync.Synchronize(ctx, obj)
				So(err, ShouldBeNil)

				acl, err := obj.ACL(ctx)
				So(err, ShouldBeNil)
				So(acl, ShouldBeEmpty)

				state, err := consent.StateOf(ctx, obj, false)
				So(err, ShouldBeNil)
				So(state, ShouldEqual, consent.Withdrawn)
			})
		})

		Convey("the human subset is restricted to the human group", func() {
			obj := internaltest.MakeDataObject(t, s, "/seq/12345/12345_1#1_human.cram", internaltest.ValidReplicas("abc")...)
			internaltest.AddMetadata(t, obj, illuminaComponent(1, component.SubsetHuman))

			_, err := sync.Synchronize(ctx, obj)
			So(err, ShouldBeNil)

			acl, err := obj.ACL(ctx)
			So(err, ShouldBeNil)
			So(acl, ShouldResemble, []irods.AC{irods.NewAC("ss_1000_human", irods.PermRead, zone)})
		})

		Convey("the xahuman subset loses study access", func() {
			obj := internaltest.MakeDataObject(t, s, "/seq/12345/12345_1#1_xahuman.cram", internaltest.ValidReplicas("abc")...)
			internaltest.AddMetadata(t, obj, illuminaComponent(1, component.SubsetXAHuman))
			internaltest.AddPermissions(t, obj, irods.NewAC("ss_1000", irods.PermRead, zone),
				irods.NewAC("irods", irods.PermOwn, zone))

			_, err := sync.Synchronize(ctx, obj)
			So(err, ShouldBeNil)

			So(sampleNames(obj), ShouldResemble, []string{"S1"})

			acl, err := obj.ACL(ctx)
			So(err, ShouldBeNil)
			So(acl, ShouldResemble, []irods.AC{irods.NewAC("irods", irods.PermOwn, zone)})
		})

		Convey("a control tag is left without records unless controls are included", func() {
			control := w.AddStudy(metadata.Study{IDStudyLIMS: "888", Name: "Controls"})
			phix := w.AddSample(metadata.Sample{IDSampleLIMS: "4", Name: "phiX"})
			w.AddIllumina(phix, control, 12345, 1, internaltest.IntPtr(888))

			obj := internaltest.MakeDataObject(t, s, "/seq/12345/12345_1#888.cram", internaltest.ValidReplicas("abc")...)
			internaltest.AddMetadata(t, obj, illuminaComponent(888, component.SubsetNone))

			Convey("which changes nothing on an item without study access", func() {
				changed, err := sync.Synchronize(ctx, obj)
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
				So(sampleNames(obj), ShouldBeEmpty)
			})

			Convey("which revokes existing study access", func() {
				internaltest.AddPermissions(t, obj, irods.NewAC("ss_1000", irods.PermRead, zone),
					irods.NewAC("irods", irods.PermOwn, zone))

				changed, err := sync.Synchronize(ctx, obj)
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)

				So(sampleNames(obj), ShouldBeEmpty)

				studies, err := obj.MetadataWith(ctx, metadata.StudyID)
				So(err, ShouldBeNil)
				So(studies, ShouldBeEmpty)

				acl, err := obj.ACL(ctx)
				So(err, ShouldBeNil)
				So(acl, ShouldResemble, []irods.AC{irods.NewAC("irods", irods.PermOwn, zone)})

				changed, err = sync.Synchronize(ctx, obj)
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
			})

			Convey("with controls included, it gets the control's metadata", func() {
				sync.IncludeControls = true

				changed, err := sync.Synchronize(ctx, obj)
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
				So(sampleNames(obj), ShouldResemble, []string{"phiX"})

				acl, err := obj.ACL(ctx)
				So(err, ShouldBeNil)
				So(acl, ShouldResemble, []irods.AC{irods.NewAC("ss_888", irods.PermRead, zone)})
			})
		})

		Convey("a sample whose consent is withdrawn is withdrawn", func() {
			s3 := w.AddSample(metadata.Sample{IDSampleLIMS: "3", Name: "S3", ConsentWithdrawn: true})
			w.AddIllumina(s3, study, 12345, 1, internaltest.IntPtr(3))

			obj := internaltest.MakeDataObject(t, s, "/seq/12345/12345_1#3.cram", internaltest.ValidReplicas("abc")...)
			internaltest.AddMetadata(t, obj, illuminaComponent(3, component.SubsetNone))
			internaltest.AddPermissions(t, obj, irods.NewAC("ss_1000", irods.PermRead, zone))

			changed, err := sync.Synchronize(ctx, obj)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)

			withdrawn, err := consent.IsWithdrawn(ctx, obj, false)
			So(err, ShouldBeNil)
			So(withdrawn, ShouldBeTrue)
		})

		Convey("items without components are an error", func() {
			obj := internaltest.MakeDataObject(t, s, "/seq/12345/12345_1.cram", internaltest.ValidReplicas("abc")...)

			_, err := sync.Synchronize(ctx, obj)
			So(err, ShouldWrap, secondary.ErrNoComponents)
		})

		Convey("items of other platforms are an error", func() {
			obj := internaltest.MakeDataObject(t, s, "/seq/fluidigm/x.csv", internaltest.ValidReplicas("abc")...)

			_, err := sync.Synchronize(ctx, obj)
			So(err, ShouldWrap, secondary.ErrUnsupportedPlatform)

			obj = internaltest.MakeDataObject(t, s, "/seq/other/x.csv", internaltest.ValidReplicas("abc")...)

			_, err = sync.Synchronize(ctx, obj)
			So(err, ShouldWrap, component.ErrUnknownPlatform)
		})
	})
}

func TestSynchronizeONT(t *testing.T) {
	ctx := context.Background()

	Convey("Given a multiplexed ONT run", t, func() {
		w := internaltest.NewWarehouse(t)
		study := w.AddStudy(metadata.Study{IDStudyLIMS: "2000"})

		for i, name := range []string{"S1", "S2"} {
			sample := w.AddSample(metadata.Sample{IDSampleLIMS: name, Name: name})
			w.AddONT(sample, study, "expt1", 1, []string{"NB01", "NB02"}[i])
		}

		s := internaltest.NewStore(t)
		run := internaltest.MakeCollection(t, s, "/seq/ont/minknow/expt1/run1")
		internaltest.AddMetadata(t, run, ont.QueryAVUs("expt1", 1)...)

		reads := internaltest.MakeDataObject(t, s, run.Path+"/fastq_pass/barcode02/reads.fastq.gz",
			internaltest.ValidReplicas("abc")...)
		internaltest.AddMetadata(t, irods.NewCollection(s, run.Path+"/fastq_pass/barcode02"),
			irods.NewAVU(metadata.ONTTagIdentifier, "NB02"))

		sync := &secondary.Synchronizer{Warehouse: w.Open(), Consent: consent.DefaultPolicy()}

		Convey("a file in a barcode collection gets its barcode's sample", func() {
			changed, err := sync.Synchronize(ctx, reads)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)
			So(sampleNames(reads), ShouldResemble, []string{"S2"})

			acl, err := reads.ACL(ctx)
			So(err, ShouldBeNil)
			So(acl, ShouldResemble, []irods.AC{irods.NewAC("ss_2000", irods.PermRead, zone)})
		})

		Convey("the run collection is annotated barcode by barcode", func() {
			changed, err := sync.Synchronize(ctx, run)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)
			So(sampleNames(run), ShouldBeEmpty)
			So(sampleNames(reads), ShouldResemble, []string{"S2"})
		})
	})
}

func TestSynchronizePacBio(t *testing.T) {
	ctx := context.Background()

	Convey("Given a PacBio well in the warehouse", t, func() {
		w := internaltest.NewWarehouse(t)
		study := w.AddStudy(metadata.Study{IDStudyLIMS: "3000"})
		sample := w.AddSample(metadata.Sample{IDSampleLIMS: "1", Name: "S1"})
		w.AddPacBio(sample, study, "TRACTION-RUN-1", "A1", nil, "ACGT")

		s := internaltest.NewStore(t)
		sync := &secondary.Synchronizer{Warehouse: w.Open(), Consent: consent.DefaultPolicy()}

		makeBAM := func(name string, avus ...irods.AVU) *irods.Item {
			obj := internaltest.MakeDataObject(t, s, "/seq/pacbio/r64016_20240101/1_A01/"+name,
				internaltest.ValidReplicas("abc")...)
			internaltest.AddMetadata(t, obj, append([]irods.AVU{
				irods.NewAVU(metadata.PacBioRunName, "TRACTION-RUN-1"),
				irods.NewAVU(metadata.PacBioWellLabel, "A01"),
				irods.NewAVU(metadata.PacBioTagSequence, "ACGT"),
			}, avus...)...)

			return obj
		}

		Convey("a managed file gets metadata and study access", func() {
			obj := makeBAM("managed.bam", irods.NewAVU(metadata.Source, "production"))

			changed, err := sync.Synchronize(ctx, obj)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)
			So(sampleNames(obj), ShouldResemble, []string{"S1"})

			acl, err := obj.ACL(ctx)
			So(err, ShouldBeNil)
			So(acl, ShouldResemble, []irods.AC{irods.NewAC("ss_3000", irods.PermRead, zone)})
		})

		Convey("an unmanaged file gets metadata only", func() {
			obj := makeBAM("unmanaged.bam")

			changed, err := sync.Synchronize(ctx, obj)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)
			So(sampleNames(obj), ShouldResemble, []string{"S1"})

			acl, err := obj.ACL(ctx)
			So(err, ShouldBeNil)
			So(acl, ShouldBeEmpty)
		})
	})
}
