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

// Package component defines the keys that identify the sequencing unit an
// item holds data for. Each platform has its own kind of key; Component is a
// closed sum of them.
package component

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wtsi-npg/npg-irods/irods"
	"github.com/wtsi-npg/npg-irods/metadata"
)

// Error is the custom error type for the component package.
type Error string

const (
	// ErrInvalidComponent is returned for metadata that cannot be parsed into
	// a component.
	ErrInvalidComponent = Error("invalid component")

	// ErrUnknownPlatform is returned by Infer for paths of no known platform.
	ErrUnknownPlatform = Error("failed to infer a platform")
)

func (e Error) Error() string { return string(e) }

// Platform is a sequencing or analysis platform.
type Platform int

const (
	PlatformUnknown Platform = iota
	Bionano
	Fluidigm
	Genomics10x
	Illumina
	OxfordNanopore
	PacBio
	Sequenom
	UltimaGenomics
)

var platformNames = map[Platform]string{ //nolint:gochecknoglobals
	Bionano:        "bionano",
	Fluidigm:       "fluidigm",
	Genomics10x:    "10x",
	Illumina:       "illumina",
	OxfordNanopore: "ont",
	PacBio:         "pacbio",
	Sequenom:       "sequenom",
	UltimaGenomics: "ultima",
}

func (p Platform) String() string {
	if name, ok := platformNames[p]; ok {
		return name
	}

	return "unknown"
}

// Order matters: 10x paths are also under /seq/illumina.
var platformPatterns = []struct { //nolint:gochecknoglobals
	platform Platform
	re       *regexp.Regexp
}{
	{Bionano, regexp.MustCompile(`^/seq/bionano\b`)},
	{Fluidigm, regexp.MustCompile(`^/seq/fluidigm\b`)},
	{Genomics10x, regexp.MustCompile(`^/seq/illumina/(cell|long|space)ranger`)},
	{Illumina, regexp.MustCompile(`^/seq/\d+\b`)},
	{Illumina, regexp.MustCompile(`^/seq/illumina/runs/\d+\b`)},
	{OxfordNanopore, regexp.MustCompile(`^/seq/ont\b`)},
	{PacBio, regexp.MustCompile(`^/seq/pacbio\b`)},
	{Sequenom, regexp.MustCompile(`^/seq/sequenom\b`)},
	{UltimaGenomics, regexp.MustCompile(`^/seq/ug\b`)},
}

// Infer returns the platform whose data are kept under the given path.
func Infer(path string) (Platform, error) {
	for _, pp := range platformPatterns {
		if pp.re.MatchString(path) {
			return pp.platform, nil
		}
	}

	return PlatformUnknown, fmt.Errorf("%w for %q", ErrUnknownPlatform, path)
}

// Subset names part of the reads of a component that were separated out after
// sequencing.
type Subset string

const (
	SubsetNone    Subset = ""
	SubsetHuman   Subset = metadata.SubsetHuman
	SubsetXAHuman Subset = metadata.SubsetXAHuman
	SubsetYHuman  Subset = "yhuman"
	SubsetPhiX    Subset = "phix"
)

// ParseSubset returns the Subset of the given name.
func ParseSubset(s string) (Subset, error) {
	switch sub := Subset(s); sub {
	case SubsetNone, SubsetHuman, SubsetXAHuman, SubsetYHuman, SubsetPhiX:
		return sub, nil
	default:
		return SubsetNone, fmt.Errorf("%w: subset %q", ErrInvalidComponent, s)
	}
}

// Component is a platform specific key for a unit of sequencing.
type Component interface {
	Platform() Platform
	String() string

	isComponent()
}

// IlluminaComponent identifies reads from a run, position and optionally a
// tag.
type IlluminaComponent struct {
	Run      int
	Position int
	TagIndex *int
	Subset   Subset
}

func (IlluminaComponent) Platform() Platform { return Illumina }
func (IlluminaComponent) isComponent()       {}

// illuminaJSON is the layout of the component AVU value.
type illuminaJSON struct {
	Run      *int    `json:"id_run"`
	Position *int    `json:"position"`
	TagIndex *int    `json:"tag_index,omitempty"`
	Subset   *string `json:"subset,omitempty"`
}

func (c IlluminaComponent) String() string {
	j := illuminaJSON{Run: &c.Run, Position: &c.Position, TagIndex: c.TagIndex}
	if c.Subset != SubsetNone {
		s := string(c.Subset)
		j.Subset = &s
	}

	b, _ := json.Marshal(j) //nolint:errchkjson

	return string(b)
}

// IsControl returns true for the tags conventionally used by spiked-in
// controls.
func (c IlluminaComponent) IsControl() bool {
	return c.TagIndex != nil && (*c.TagIndex == TagControl198 || *c.TagIndex == TagControl888)
}

// IsBin returns true for the tag that collects reads matching no tag.
func (c IlluminaComponent) IsBin() bool {
	return c.TagIndex != nil && *c.TagIndex == TagBin
}

const (
	// TagBin is not a real tag: it collects the reads of a pool that could
	// not be assigned to any tag.
	TagBin = 0

	TagControl198 = 198
	TagControl888 = 888
)

// ParseIlluminaAVU decodes a component AVU.
func ParseIlluminaAVU(avu irods.AVU) (IlluminaComponent, error) {
	if avu.Attribute != metadata.Component {
		return IlluminaComponent{}, fmt.Errorf("%w: attribute %q", ErrInvalidComponent, avu.Attribute)
	}

	var j illuminaJSON

	if err := json.Unmarshal([]byte(avu.Value), &j); err != nil {
		return IlluminaComponent{}, fmt.Errorf("%w: %s: %w", ErrInvalidComponent, avu.Value, err)
	}

	if j.Run == nil || j.Position == nil {
		return IlluminaComponent{}, fmt.Errorf("%w: %s: id_run and position are required",
			ErrInvalidComponent, avu.Value)
	}

	c := IlluminaComponent{Run: *j.Run, Position: *j.Position, TagIndex: j.TagIndex}

	if j.Subset != nil {
		sub, err := ParseSubset(*j.Subset)
		if err != nil {
			return IlluminaComponent{}, err
		}

		c.Subset = sub
	}

	return c, nil
}

// ONTComponent identifies reads from an experiment, instrument slot and
// optionally a barcode tag.
type ONTComponent struct {
	ExperimentName string
	InstrumentSlot int
	TagIdentifier  string
}

func (ONTComponent) Platform() Platform { return OxfordNanopore }
func (ONTComponent) isComponent()       {}

func (c ONTComponent) String() string {
	s := c.ExperimentName + ":" + strconv.Itoa(c.InstrumentSlot)
	if c.TagIdentifier != "" {
		s += ":" + c.TagIdentifier
	}

	return s
}

// PacBioComponent identifies reads from a run, well and optionally a plate
// and tag.
type PacBioComponent struct {
	RunName     string
	WellLabel   string
	PlateNumber *int
	TagSequence string
	Subset      Subset
}

func (PacBioComponent) Platform() Platform { return PacBio }
func (PacBioComponent) isComponent()       {}

func (c PacBioComponent) String() string {
	parts := []string{c.RunName, c.WellLabel}

	if c.PlateNumber != nil {
		parts = append(parts, "plate"+strconv.Itoa(*c.PlateNumber))
	}

	if c.TagSequence != "" {
		parts = append(parts, c.TagSequence)
	}

	if c.Subset != SubsetNone {
		parts = append(parts, string(c.Subset))
	}

	return strings.Join(parts, ":")
}

var wellRegex = regexp.MustCompile(`^([A-Z])0*(\d+)$`) //nolint:gochecknoglobals

// UnpaddedWell removes zero padding from a well label, so "A01" becomes "A1".
// Labels of any other form are returned unchanged.
func UnpaddedWell(label string) string {
	m := wellRegex.FindStringSubmatch(label)
	if m == nil {
		return label
	}

	return m[1] + m[2]
}

// PaddedWell zero pads the number of a well label to two digits, so "A1"
// becomes "A01".
func PaddedWell(label string) string {
	m := wellRegex.FindStringSubmatch(label)
	if m == nil {
		return label
	}

	if len(m[2]) < 2 { //nolint:mnd
		return m[1] + "0" + m[2]
	}

	return m[1] + m[2]
}
