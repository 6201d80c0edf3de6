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

// Package metadata defines the metadata vocabulary shared by the sequencing
// platforms: attribute names, and the AVUs and access control entries made
// from warehouse sample and study records.
package metadata

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/wtsi-npg/npg-irods/irods"
)

// Error is the custom error type for the metadata package.
type Error string

const (
	ErrDuplicateAttribute = Error("duplicate attribute")
	ErrMissingAttribute   = Error("missing attribute")
	ErrInvalidUUID        = Error("invalid sample UUID")
)

func (e Error) Error() string { return string(e) }

// Sample attributes.
const (
	SampleAccessionNumber  = "sample_accession_number"
	SampleCohort           = "sample_cohort"
	SampleCommonName       = "sample_common_name"
	SampleConsent          = "sample_consent"
	SampleConsentWithdrawn = "sample_consent_withdrawn"
	SampleControl          = "sample_control"
	SampleDonorID          = "sample_donor_id"
	SampleID               = "sample_id"
	SampleLIMS             = "sample_lims"
	SampleName             = "sample"
	SamplePublicName       = "sample_public_name"
	SampleSupplierName     = "sample_supplier_name"
	SampleUUID             = "sample_uuid"
)

// Study attributes.
const (
	StudyAccessionNumber = "study_accession_number"
	StudyID              = "study_id"
	StudyName            = "study"
	StudyTitle           = "study_title"
)

// Sequencing and data file attributes.
const (
	Component = "component"
	IDProduct = "id_product"
	TagIndex  = "tag_index"
	Subset    = "subset"
	Target    = "target"
	Source    = "source"

	MD5  = "md5"
	Type = "type"

	DCCreator  = "dcterms:creator"
	DCCreated  = "dcterms:created"
	DCModified = "dcterms:modified"
)

// ONT instrument attributes.
const (
	ONTExperimentName = "ont:experiment_name"
	ONTInstrumentSlot = "ont:instrument_slot"
	ONTTagIdentifier  = "ont:tag_identifier"
)

// Illumina instrument attributes.
const (
	IlluminaRun      = "id_run"
	IlluminaPosition = "lane"
)

// PacBio instrument attributes.
const (
	PacBioRunName     = "run"
	PacBioWellLabel   = "well"
	PacBioTagSequence = "tag_sequence"
	PacBioPlateNumber = "plate_number"
)

// Principals that are never managed.
const (
	PublicGroup = "public"
	RodsAdmin   = "rodsadmin"
)

// Values of the withdrawn consent AVUs. sample_consent=0 is the legacy
// encoding, still recognised but never written.
var (
	WithdrawnAVU       = irods.NewAVU(SampleConsentWithdrawn, 1) //nolint:gochecknoglobals
	LegacyWithdrawnAVU = irods.NewAVU(SampleConsent, 0)          //nolint:gochecknoglobals
)

var managedAccessRegex = regexp.MustCompile(`^ss_\d+(_human)?$`) //nolint:gochecknoglobals

// Sample is the warehouse projection of a sample used to make metadata.
type Sample struct {
	IDSampleLIMS     string
	IDLIMS           string
	UUID             string
	SangerSampleID   string
	Name             string
	AccessionNumber  string
	DonorID          string
	SupplierName     string
	PublicName       string
	CommonName       string
	Cohort           string
	ConsentWithdrawn bool
}

// Study is the warehouse projection of a study used to make metadata.
type Study struct {
	IDStudyLIMS     string
	IDLIMS          string
	UUID            string
	Name            string
	AccessionNumber string
	Title           string
}

func avusIfValue(pairs ...[2]string) []irods.AVU {
	avus := make([]irods.AVU, 0, len(pairs))

	for _, p := range pairs {
		if p[1] != "" {
			avus = append(avus, irods.NewAVU(p[0], p[1]))
		}
	}

	return avus
}

// MakeSampleMetadata returns the AVUs describing a sample. Empty fields make
// no AVU. A sample whose consent is withdrawn also gets the withdrawn AVU.
func MakeSampleMetadata(s Sample) ([]irods.AVU, error) {
	if s.UUID != "" {
		if _, err := uuid.Parse(s.UUID); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidUUID, s.UUID, err)
		}
	}

	avus := avusIfValue(
		[2]string{SampleID, s.SangerSampleID},
		[2]string{SampleName, s.Name},
		[2]string{SampleAccessionNumber, s.AccessionNumber},
		[2]string{SampleDonorID, s.DonorID},
		[2]string{SampleSupplierName, s.SupplierName},
		[2]string{SampleCohort, s.Cohort},
		[2]string{SampleCommonName, s.CommonName},
		[2]string{SamplePublicName, s.PublicName},
		[2]string{SampleUUID, s.UUID},
	)

	if s.ConsentWithdrawn {
		avus = append(avus, WithdrawnAVU)
	}

	return avus, nil
}

// MakeStudyMetadata returns the AVUs describing a study.
func MakeStudyMetadata(s Study) []irods.AVU {
	return avusIfValue(
		[2]string{StudyID, s.IDStudyLIMS},
		[2]string{StudyName, s.Name},
		[2]string{StudyAccessionNumber, s.AccessionNumber},
		[2]string{StudyTitle, s.Title},
	)
}

// StudyGroup returns the name of the group granted access to a study's data.
func StudyGroup(idStudyLIMS string, human bool) string {
	if human {
		return "ss_" + idStudyLIMS + "_human"
	}

	return "ss_" + idStudyLIMS
}

// MakeSampleACL returns the access control entry for a sample's data in the
// given study: read for the study group, or null if consent is withdrawn.
func MakeSampleACL(sample Sample, study Study, zone string) []irods.AC {
	return makeSampleACL(sample, study, zone, false)
}

// MakeHumanSampleACL is MakeSampleACL for the human subset of the data, which
// is restricted to the study's _human group.
func MakeHumanSampleACL(sample Sample, study Study, zone string) []irods.AC {
	return makeSampleACL(sample, study, zone, true)
}

func makeSampleACL(sample Sample, study Study, zone string, human bool) []irods.AC {
	perm := irods.PermRead
	if sample.ConsentWithdrawn {
		perm = irods.PermNull
	}

	return []irods.AC{irods.NewAC(StudyGroup(study.IDStudyLIMS, human), perm, zone)}
}

// MakePublicReadACL returns the entry giving public read access.
func MakePublicReadACL(zone string) []irods.AC {
	return []irods.AC{irods.NewAC(PublicGroup, irods.PermRead, zone)}
}

// IsManagedAccess returns true if the entry is for a study group whose access
// is granted and revoked from warehouse records.
func IsManagedAccess(ac irods.AC) bool {
	return managedAccessRegex.MatchString(ac.User)
}

// IsPublicAccess returns true for entries for the public group.
func IsPublicAccess(ac irods.AC) bool {
	return ac.User == PublicGroup
}

// HasMixedOwnership returns true if managed entries in the ACL are for more
// than one distinct group.
func HasMixedOwnership(acl []irods.AC) bool {
	var owner string

	for _, ac := range acl {
		if !IsManagedAccess(ac) {
			continue
		}

		if owner == "" {
			owner = ac.User

			continue
		}

		if ac.User != owner {
			return true
		}
	}

	return false
}

// HasWithdrawnMetadata returns true if either encoding of withdrawn consent is
// present in the given AVUs.
func HasWithdrawnMetadata(avus []irods.AVU) bool {
	for _, avu := range avus {
		if avu == WithdrawnAVU || avu == LegacyWithdrawnAVU {
			return true
		}
	}

	return false
}

// CollateUnique returns the single value of each of the given attributes,
// returning ErrDuplicateAttribute if any has more than one value. Attributes
// absent from avus are absent from the result.
func CollateUnique(avus []irods.AVU, attrs ...string) (map[string]string, error) {
	collated := irods.Collate(irods.UniqueAVUs(avus))
	out := make(map[string]string, len(attrs))

	for _, attr := range attrs {
		values := collated[attr]

		switch len(values) {
		case 0:
			continue
		case 1:
			out[attr] = values[0]
		default:
			return nil, fmt.Errorf("%w %q: %d values", ErrDuplicateAttribute, attr, len(values))
		}
	}

	return out, nil
}

// ParseInt parses the value of an integer attribute.
func ParseInt(attr, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("attribute %q: %w", attr, err)
	}

	return n, nil
}

// Record is a sample sequenced for a study, as found in the warehouse.
type Record struct {
	Sample Sample
	Study  Study
}

// Subsets of reads that change the access given to a record's data.
const (
	SubsetHuman   = "human"
	SubsetXAHuman = "xahuman"
)

// MakeSecondaryMetadata returns the sample and study AVUs of all the records,
// deduplicated and sorted.
func MakeSecondaryMetadata(records ...Record) ([]irods.AVU, error) {
	var avus []irods.AVU

	for _, r := range records {
		sample, err := MakeSampleMetadata(r.Sample)
		if err != nil {
			return nil, err
		}

		avus = append(avus, sample...)
		avus = append(avus, MakeStudyMetadata(r.Study)...)
	}

	return irods.UniqueAVUs(avus), nil
}

// MakeSecondaryACL returns one entry per record for the study group of data
// of the given read subset. The human subset is restricted to the study's
// _human group and the xahuman subset is not made accessible at all. Records
// without a study give no entry.
func MakeSecondaryACL(zone, subset string, records ...Record) []irods.AC {
	if subset == SubsetXAHuman {
		return nil
	}

	var acl []irods.AC

	for _, r := range records {
		if r.Study.IDStudyLIMS == "" {
			continue
		}

		if subset == SubsetHuman {
			acl = append(acl, MakeHumanSampleACL(r.Sample, r.Study, zone)...)
		} else {
			acl = append(acl, MakeSampleACL(r.Sample, r.Study, zone)...)
		}
	}

	return irods.UniqueACL(acl)
}
