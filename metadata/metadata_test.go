package metadata

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
	"github.com/wtsi-npg/npg-irods/irods"
)

func TestParseObjectType(t *testing.T) {
	for _, tc := range []struct {
		path string
		want string
	}{
		{"/seq/1/1.cram", "cram"},
		{"/seq/1/1.bam.gz", "bam"},
		{"/seq/1/1.FASTA.BZ2", "fasta"},
		{"/seq/1/x.tar.xz.zip", "tar"},
		{"/seq/1/README", ""},
		{"/seq/1/.hidden", ""},
		{"/seq/1/only.gz", ""},
	} {
		require.Equal(t, tc.want, ParseObjectType(tc.path), tc.path)
	}

	require.True(t, IsRecognisedType("cram"))
	require.False(t, IsRecognisedType("hidden"))
}

func TestMetadata(t *testing.T) {
	Convey("Sample metadata omits empty fields", t, func() {
		avus, err := MakeSampleMetadata(Sample{
			SangerSampleID: "S1",
			Name:           "sample1",
			DonorID:        "D1",
		})
		So(err, ShouldBeNil)
		So(avus, ShouldResemble, []irods.AVU{
			irods.NewAVU(SampleID, "S1"),
			irods.NewAVU(SampleName, "sample1"),
			irods.NewAVU(SampleDonorID, "D1"),
		})

		Convey("and flags withdrawn consent", func() {
			avus, err := MakeSampleMetadata(Sample{Name: "sample1", ConsentWithdrawn: true})
			So(err, ShouldBeNil)
			So(avus, ShouldContain, WithdrawnAVU)
			So(HasWithdrawnMetadata(avus), ShouldBeTrue)
		})

		Convey("and rejects malformed UUIDs", func() {
			_, err := MakeSampleMetadata(Sample{Name: "sample1", UUID: "not-a-uuid"})
			So(err, ShouldWrap, ErrInvalidUUID)

			avus, err := MakeSampleMetadata(Sample{UUID: "82429892-0ab6-11ee-b5ba-fa163eac3af7"})
			So(err, ShouldBeNil)
			So(avus, ShouldResemble, []irods.AVU{irods.NewAVU(SampleUUID, "82429892-0ab6-11ee-b5ba-fa163eac3af7")})
		})
	})

	Convey("Study metadata includes the title", t, func() {
		So(MakeStudyMetadata(Study{IDStudyLIMS: "1000", Name: "Study A", Title: "A study"}), ShouldResemble,
			[]irods.AVU{
				irods.NewAVU(StudyID, "1000"),
				irods.NewAVU(StudyName, "Study A"),
				irods.NewAVU(StudyTitle, "A study"),
			})
	})

	Convey("Sample ACLs depend on consent and subset", t, func() {
		study := Study{IDStudyLIMS: "1000"}

		So(MakeSampleACL(Sample{}, study, "testZone"), ShouldResemble,
			[]irods.AC{irods.NewAC("ss_1000", irods.PermRead, "testZone")})
		So(MakeSampleACL(Sample{ConsentWithdrawn: true}, study, "testZone"), ShouldResemble,
			[]irods.AC{irods.NewAC("ss_1000", irods.PermNull, "testZone")})
		So(MakeHumanSampleACL(Sample{}, study, "testZone"), ShouldResemble,
			[]irods.AC{irods.NewAC("ss_1000_human", irods.PermRead, "testZone")})
	})

	Convey("Managed access is recognised by group name", t, func() {
		So(IsManagedAccess(irods.NewAC("ss_1000", irods.PermRead, "z")), ShouldBeTrue)
		So(IsManagedAccess(irods.NewAC("ss_1000_human", irods.PermRead, "z")), ShouldBeTrue)
		So(IsManagedAccess(irods.NewAC("ss_1000_other", irods.PermRead, "z")), ShouldBeFalse)
		So(IsManagedAccess(irods.NewAC("public", irods.PermRead, "z")), ShouldBeFalse)
		So(IsManagedAccess(irods.NewAC("irods", irods.PermOwn, "z")), ShouldBeFalse)

		Convey("and more than one managed group is mixed ownership", func() {
			So(HasMixedOwnership([]irods.AC{
				irods.NewAC("ss_1000", irods.PermRead, "z"),
				irods.NewAC("public", irods.PermRead, "z"),
				irods.NewAC("ss_1000", irods.PermRead, "z"),
			}), ShouldBeFalse)
			So(HasMixedOwnership([]irods.AC{
				irods.NewAC("ss_1000", irods.PermRead, "z"),
				irods.NewAC("ss_2000", irods.PermRead, "z"),
			}), ShouldBeTrue)
			So(HasMixedOwnership([]irods.AC{
				irods.NewAC("ss_1000", irods.PermRead, "z"),
				irods.NewAC("ss_1000_human", irods.PermRead, "z"),
			}), ShouldBeTrue)
		})
	})

	Convey("CollateUnique rejects repeated attributes", t, func() {
		avus := []irods.AVU{
			irods.NewAVU("run", "r1"),
			irods.NewAVU("well", "A01"),
			irods.NewAVU("run", "r1"),
		}

		m, err := CollateUnique(avus, "run", "well", "plate_number")
		So(err, ShouldBeNil)
		So(m, ShouldResemble, map[string]string{"run": "r1", "well": "A01"})

		_, err = CollateUnique(append(avus, irods.NewAVU("well", "B01")), "well")
		So(err, ShouldWrap, ErrDuplicateAttribute)
	})

	Convey("Creation metadata is in RFC 3339 UTC", t, func() {
		when := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("x", 3600))

		So(MakeCreationMetadata("me", when), ShouldResemble, []irods.AVU{
			irods.NewAVU(DCCreator, "me"),
			irods.NewAVU(DCCreated, "2024-03-01T11:30:00Z"),
		})
	})
}
