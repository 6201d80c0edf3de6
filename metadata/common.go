package metadata

import (
	"path"
	"strings"
	"time"

	"github.com/wtsi-npg/npg-irods/irods"
)

const (
	// UnknownCreator is the creator recorded when the process or user that
	// created a data object is not known.
	UnknownCreator = "unknown"

	// WSICreator is the default creator for data created by the institute.
	WSICreator = "http://www.sanger.ac.uk"
)

var recognisedFileSuffixes = map[string]bool{ //nolint:gochecknoglobals
	"_samhaplotag_clear_bc":           true,
	"_samhaplotag_missing_bc_qt_tags": true,
	"_samhaplotag_unclear_bc":         true,
	"bai":                             true,
	"bam":                             true,
	"bam_stats":                       true,
	"bamcheck":                        true,
	"bcfstats":                        true,
	"bed":                             true,
	"bin":                             true,
	"bqsr_table":                      true,
	"crai":                            true,
	"cram":                            true,
	"csv":                             true,
	"fasta":                           true,
	"flagstat":                        true,
	"gtc":                             true,
	"h5":                              true,
	"hops":                            true,
	"idat":                            true,
	"json":                            true,
	"pbi":                             true,
	"quant":                           true,
	"seqchksum":                       true,
	"stats":                           true,
	"tab":                             true,
	"tar":                             true,
	"tbi":                             true,
	"tgz":                             true,
	"tif":                             true,
	"tsv":                             true,
	"txt":                             true,
	"xls":                             true,
	"xlsx":                            true,
	"xml":                             true,
}

var compressSuffixes = map[string]bool{"bz2": true, "gz": true, "xz": true, "zip": true} //nolint:gochecknoglobals

// ParseObjectType returns the data type of a file from the suffix of its
// path, ignoring any compression suffix, or "" if there is none. Case is
// folded to lower.
func ParseObjectType(p string) string {
	name := strings.TrimLeft(path.Base(p), ".")

	_, rest, ok := strings.Cut(name, ".")
	if !ok {
		return ""
	}

	suffixes := strings.Split(rest, ".")

	for i := len(suffixes) - 1; i >= 0; i-- {
		s := strings.ToLower(suffixes[i])
		if s == "" || compressSuffixes[s] {
			continue
		}

		return s
	}

	return ""
}

// IsRecognisedType returns true if the type should be recorded in metadata.
func IsRecognisedType(t string) bool {
	return recognisedFileSuffixes[t]
}

// MakeCreationMetadata returns the dcterms creator and created AVUs.
func MakeCreationMetadata(creator string, created time.Time) []irods.AVU {
	return []irods.AVU{
		irods.NewAVU(DCCreator, creator),
		irods.NewAVU(DCCreated, created.UTC().Format(time.RFC3339)),
	}
}

// MakeChecksumMetadata returns the md5 AVU for a checksum.
func MakeChecksumMetadata(checksum string) []irods.AVU {
	return []irods.AVU{irods.NewAVU(MD5, checksum)}
}

// MakeTypeMetadata returns the type AVU for a path, or nothing if no type can
// be parsed from it.
func MakeTypeMetadata(p string) []irods.AVU {
	t := ParseObjectType(p)
	if t == "" {
		return nil
	}

	return []irods.AVU{irods.NewAVU(Type, t)}
}
