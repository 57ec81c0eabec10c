// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chart

import (
	"regexp"
	"sort"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"
)

// PassageType is the coarse classification of a passage history used by
// the "relaxed" match level (spec.md §4.I).
type PassageType int

// Supported PassageTypes.
const (
	PassageUnknown PassageType = iota
	PassageNone
	PassageEgg
	PassageCell
)

func (p PassageType) String() string {
	switch p {
	case PassageNone:
		return "none"
	case PassageEgg:
		return "egg"
	case PassageCell:
		return "cell"
	default:
		return "unknown"
	}
}

// Passage is a free-text passage history, e.g. "MDCK2/SIAT1" or "E3".
type Passage string

// Type classifies the passage into egg/cell/none by a small set of
// well-known substrings (the same heuristic the original importers use
// to decide reassortant vs. egg/cell-passaged antigens).
func (p Passage) Type() PassageType {
	if p == "" {
		return PassageNone
	}
	upper := strings.ToUpper(string(p))
	for _, marker := range []string{"MDCK", "SIAT", "CELL", "C1", "C2", "C3", "C4"} {
		if strings.Contains(upper, marker) {
			return PassageCell
		}
	}
	for _, marker := range []string{"E1", "E2", "E3", "E4", "E5", "E6", "E7", "EGG"} {
		if strings.Contains(upper, marker) {
			return PassageEgg
		}
	}
	return PassageUnknown
}

// Insertion is a single aligned-sequence insertion: the 0-based position
// it was inserted at and the inserted letters.
type Insertion struct {
	Position int
	Letters  string
}

// serumExclusionPattern matches the annotation prefixes that are stripped
// before comparing an antigen's annotations against a serum's for
// homology matching (spec.md §3).
var serumExclusionPattern = regexp.MustCompile(`^(CONC|RDE@|BOOST|BLEED|LAIV|CDC)`)

// StripSerumExclusions returns annotations with every entry matching
// serumExclusionPattern removed, for antigen-to-serum homology
// comparisons.
func StripSerumExclusions(annotations []string) []string {
	out := make([]string, 0, len(annotations))
	for _, a := range annotations {
		if serumExclusionPattern.MatchString(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// sortedAnnotations returns a sorted copy of annotations, the canonical
// form stored on Antigen/Serum (spec.md §3: "sorted set of short
// strings").
func sortedAnnotations(annotations []string) []string {
	out := append([]string(nil), annotations...)
	sort.Strings(out)
	return out
}

// annotationsEqual compares two already-sorted annotation lists as
// multisets.
func annotationsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newAminoAcidSequence builds a linear.Seq over the protein alphabet from
// plain text, the way github.com/kortschak/loopy builds biogo sequences
// from FASTA text.
func newAminoAcidSequence(name, text string) *linear.Seq {
	if text == "" {
		return nil
	}
	letters := make([]alphabet.Letter, len(text))
	for i := 0; i < len(text); i++ {
		letters[i] = alphabet.Letter(text[i])
	}
	return linear.NewSeq(name, letters, alphabet.Protein)
}

// newNucleotideSequence builds a linear.Seq over the DNA alphabet.
func newNucleotideSequence(name, text string) *linear.Seq {
	if text == "" {
		return nil
	}
	letters := make([]alphabet.Letter, len(text))
	for i := 0; i < len(text); i++ {
		letters[i] = alphabet.Letter(text[i])
	}
	return linear.NewSeq(name, letters, alphabet.DNA)
}

// sequenceText renders a linear.Seq back to a plain string, or "" if s is
// nil.
func sequenceText(s *linear.Seq) string {
	if s == nil {
		return ""
	}
	letters := s.Seq
	b := make([]byte, len(letters))
	for i, l := range letters {
		b[i] = byte(l)
	}
	return string(b)
}

// Antigen is a row of the titer table.
type Antigen struct {
	Name          string
	Reassortant   string
	Annotations   []string
	Passage       Passage
	Date          string
	LabIDs        []string
	Lineage       string
	AASequence    *linear.Seq
	NucSequence   *linear.Seq
	AAInsertions  []Insertion
	NucInsertions []Insertion
	Attributes    map[string]any

	// Continent and Clades are deprecated fields (canonical JSON keys
	// "C" and "c") preserved for round-trip fidelity; new code should
	// use Attributes instead.
	Continent string
	Clades    []string
}

// NewAntigen returns an Antigen with its Annotations sorted.
func NewAntigen(name string) *Antigen {
	return &Antigen{Name: name}
}

// SetAnnotations sets Annotations to a sorted copy of annotations.
func (a *Antigen) SetAnnotations(annotations []string) {
	a.Annotations = sortedAnnotations(annotations)
}

// SetAASequence stores text as the antigen's aligned amino-acid
// sequence.
func (a *Antigen) SetAASequence(text string) { a.AASequence = newAminoAcidSequence(a.Name, text) }

// AASequenceText returns the antigen's aligned amino-acid sequence as
// plain text, or "" if none is set.
func (a *Antigen) AASequenceText() string { return sequenceText(a.AASequence) }

// SetNucSequence stores text as the antigen's aligned nucleotide
// sequence.
func (a *Antigen) SetNucSequence(text string) { a.NucSequence = newNucleotideSequence(a.Name, text) }

// NucSequenceText returns the antigen's aligned nucleotide sequence as
// plain text, or "" if none is set.
func (a *Antigen) NucSequenceText() string { return sequenceText(a.NucSequence) }

// EqualForMerging reports whether a and b are the same antigen for merge
// purposes: name, reassortant, annotations and passage all match
// (spec.md §3).
func (a *Antigen) EqualForMerging(b *Antigen) bool {
	return a.Name == b.Name &&
		a.Reassortant == b.Reassortant &&
		a.Passage == b.Passage &&
		annotationsEqual(a.Annotations, b.Annotations)
}

// Serum is a column of the titer table.
type Serum struct {
	Name          string
	Reassortant   string
	Annotations   []string
	Passage       Passage
	SerumID       string
	SerumSpecies  string
	Lineage       string
	AASequence    *linear.Seq
	NucSequence   *linear.Seq
	AAInsertions  []Insertion
	NucInsertions []Insertion
	Attributes    map[string]any

	// HomologousAntigens is the deprecated explicit homologous-antigen
	// index list (canonical JSON key "h"); the cache computed on demand
	// by match is kept separately in homologousCache.
	HomologousAntigens []int

	homologousCache    []int
	homologousCacheSet bool
}

// NewSerum returns a Serum with its Annotations sorted.
func NewSerum(name string) *Serum {
	return &Serum{Name: name}
}

// SetAnnotations sets Annotations to a sorted copy of annotations.
func (s *Serum) SetAnnotations(annotations []string) {
	s.Annotations = sortedAnnotations(annotations)
}

// SetAASequence stores text as the serum's aligned amino-acid sequence.
func (s *Serum) SetAASequence(text string) { s.AASequence = newAminoAcidSequence(s.Name, text) }

// AASequenceText returns the serum's aligned amino-acid sequence as
// plain text, or "" if none is set.
func (s *Serum) AASequenceText() string { return sequenceText(s.AASequence) }

// EqualForMerging reports whether s and other are the same serum for
// merge purposes: name, reassortant, annotations, passage and serum id
// all match (spec.md §3).
func (s *Serum) EqualForMerging(other *Serum) bool {
	return s.Name == other.Name &&
		s.Reassortant == other.Reassortant &&
		s.Passage == other.Passage &&
		s.SerumID == other.SerumID &&
		annotationsEqual(s.Annotations, other.Annotations)
}

// HomologousAnnotationsForMatching returns the serum's annotations with
// the serum-side exclusions stripped, for comparing against an antigen's
// annotations during homology matching.
func (s *Serum) HomologousAnnotationsForMatching() []string {
	return StripSerumExclusions(s.Annotations)
}

// SetHomologousCache records the serum's computed homologous antigen
// indexes.
func (s *Serum) SetHomologousCache(indexes []int) {
	s.homologousCache = indexes
	s.homologousCacheSet = true
}

// HomologousCache returns the cached homologous antigen indexes, if any
// have been computed.
func (s *Serum) HomologousCache() (indexes []int, ok bool) {
	return s.homologousCache, s.homologousCacheSet
}

// ClearHomologousCache invalidates the cached homologous antigen
// indexes. merge calls this on every serum it copies, since the set of
// antigens (and therefore homology) can change (spec.md §4.J step 3,
// supplemented from cc/chart/v3/merge.cc).
func (s *Serum) ClearHomologousCache() {
	s.homologousCache = nil
	s.homologousCacheSet = false
}

// HomologousAntigens returns the indexes into antigens of every antigen
// considered homologous to s: same name and reassortant, and matching
// annotations once each side's serum-exclusion annotations
// (StripSerumExclusions) are stripped. Passage is deliberately ignored —
// the homologous reference virus is identified by name/reassortant
// regardless of which passage stock was titrated against it (spec.md
// §4.N names H(s) without defining it further; see DESIGN.md).
func HomologousAntigens(antigens []*Antigen, s *Serum) []int {
	serumAnnotations := StripSerumExclusions(s.Annotations)
	var out []int
	for i, a := range antigens {
		if a.Name != s.Name || a.Reassortant != s.Reassortant {
			continue
		}
		if !annotationsEqual(StripSerumExclusions(a.Annotations), serumAnnotations) {
			continue
		}
		out = append(out, i)
	}
	return out
}
