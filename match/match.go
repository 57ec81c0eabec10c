// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package match implements the common-antigen/sera matcher: deciding
// whether an antigen (or serum) of a primary chart is "the same" as one
// in a secondary chart, at a configurable match level, then resolving
// the candidate pairs into a one-to-one assignment with a deterministic
// greedy pass (spec.md §4.I), the way
// katalvlaran-lvlath/tsp/matching.go's greedyMatch resolves candidate
// edges into a matching: sort candidates, then walk them marking
// endpoints used.
package match

import (
	"sort"

	"github.com/skepner/acmacs-chart/chart"
)

// Level selects which fields two antigens (or sera) must agree on to be
// considered the same point (spec.md §4.I).
type Level int

// Supported Levels.
const (
	LevelStrict Level = iota
	LevelRelaxed
	LevelIgnored
	LevelAutomatic
)

func (l Level) String() string {
	switch l {
	case LevelRelaxed:
		return "relaxed"
	case LevelIgnored:
		return "ignored"
	case LevelAutomatic:
		return "automatic"
	default:
		return "strict"
	}
}

// Pair is one matched primary/secondary index.
type Pair struct {
	Primary   int
	Secondary int
}

// Matching is the result of matching a primary and secondary list: the
// common pairs (sorted by primary index) plus every index on each side
// that found no counterpart.
type Matching struct {
	Level              Level
	Pairs              []Pair
	UnmatchedPrimary   []int
	UnmatchedSecondary []int
}

// CommonPrimary returns the primary indexes that were matched, sorted
// ascending.
func (m *Matching) CommonPrimary() []int {
	out := make([]int, len(m.Pairs))
	for i, p := range m.Pairs {
		out[i] = p.Primary
	}
	return out
}

// SecondaryFor returns the secondary index matched to primary index i,
// and whether a match was found.
func (m *Matching) SecondaryFor(i int) (secondary int, ok bool) {
	for _, p := range m.Pairs {
		if p.Primary == i {
			return p.Secondary, true
		}
	}
	return 0, false
}

// automaticFallbackThreshold is the minimum fraction of the smaller
// side's points that a strict match must cover before Automatic accepts
// it rather than falling back to a relaxed pass (spec.md §9 Open
// Question, resolved in DESIGN.md: "too few" is defined as covering
// less than half of min(|primary|, |secondary|)).
const automaticFallbackThreshold = 0.5

// Antigens matches a primary and secondary antigen list at the given
// level.
func Antigens(primary, secondary []*chart.Antigen, level Level) *Matching {
	if level == LevelAutomatic {
		strict := antigensAt(primary, secondary, LevelStrict)
		if tooFew(len(strict.Pairs), len(primary), len(secondary)) {
			relaxed := antigensAt(primary, secondary, LevelRelaxed)
			relaxed.Level = LevelAutomatic
			return relaxed
		}
		strict.Level = LevelAutomatic
		return strict
	}
	return antigensAt(primary, secondary, level)
}

func antigensAt(primary, secondary []*chart.Antigen, level Level) *Matching {
	equal := func(i, j int) bool {
		return antigensEqual(primary[i], secondary[j], level)
	}
	pairs := buildPairs(len(primary), len(secondary), equal)
	return assign(level, pairs, len(primary), len(secondary))
}

func antigensEqual(a, b *chart.Antigen, level Level) bool {
	if a.Name != b.Name || a.Reassortant != b.Reassortant {
		return false
	}
	if !annotationsEqual(a.Annotations, b.Annotations) {
		return false
	}
	switch level {
	case LevelIgnored:
		return true
	case LevelRelaxed:
		return a.Passage.Type() == b.Passage.Type()
	default: // LevelStrict
		return a.Passage == b.Passage
	}
}

// Sera matches a primary and secondary serum list at the given level.
// Serum-side annotation exclusions (spec.md §3
// chart.StripSerumExclusions) are applied before comparison at every
// level, per spec.md §4.I.
func Sera(primary, secondary []*chart.Serum, level Level) *Matching {
	if level == LevelAutomatic {
		strict := seraAt(primary, secondary, LevelStrict)
		if tooFew(len(strict.Pairs), len(primary), len(secondary)) {
			relaxed := seraAt(primary, secondary, LevelRelaxed)
			relaxed.Level = LevelAutomatic
			return relaxed
		}
		strict.Level = LevelAutomatic
		return strict
	}
	return seraAt(primary, secondary, level)
}

func seraAt(primary, secondary []*chart.Serum, level Level) *Matching {
	equal := func(i, j int) bool {
		return seraEqual(primary[i], secondary[j], level)
	}
	pairs := buildPairs(len(primary), len(secondary), equal)
	return assign(level, pairs, len(primary), len(secondary))
}

func seraEqual(s, o *chart.Serum, level Level) bool {
	if s.Name != o.Name || s.Reassortant != o.Reassortant {
		return false
	}
	if !annotationsEqual(s.HomologousAnnotationsForMatching(), o.HomologousAnnotationsForMatching()) {
		return false
	}
	switch level {
	case LevelIgnored:
		return true
	case LevelRelaxed:
		return s.Passage.Type() == o.Passage.Type()
	default: // LevelStrict
		return s.Passage == o.Passage && s.SerumID == o.SerumID
	}
}

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

func tooFew(matched, nPrimary, nSecondary int) bool {
	smaller := nPrimary
	if nSecondary < smaller {
		smaller = nSecondary
	}
	if smaller == 0 {
		return false
	}
	return float64(matched) < automaticFallbackThreshold*float64(smaller)
}

// buildPairs enumerates every (i, j) candidate pair for which equal
// reports true.
func buildPairs(nPrimary, nSecondary int, equal func(i, j int) bool) []Pair {
	pairs := make([]Pair, 0)
	for i := 0; i < nPrimary; i++ {
		for j := 0; j < nSecondary; j++ {
			if equal(i, j) {
				pairs = append(pairs, Pair{Primary: i, Secondary: j})
			}
		}
	}
	return pairs
}

// assign runs the deterministic greedy pass over candidate pairs:
// sorted by primary index then secondary index (every candidate pair
// here is an equally-scored exact match; ties break by index per
// spec.md §4.I), walking them and marking each side's index used at
// most once.
func assign(level Level, pairs []Pair, nPrimary, nSecondary int) *Matching {
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].Primary != pairs[b].Primary {
			return pairs[a].Primary < pairs[b].Primary
		}
		return pairs[a].Secondary < pairs[b].Secondary
	})

	usedPrimary := make(map[int]bool, nPrimary)
	usedSecondary := make(map[int]bool, nSecondary)
	matched := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if usedPrimary[p.Primary] || usedSecondary[p.Secondary] {
			continue
		}
		usedPrimary[p.Primary] = true
		usedSecondary[p.Secondary] = true
		matched = append(matched, p)
	}

	var unmatchedPrimary, unmatchedSecondary []int
	for i := 0; i < nPrimary; i++ {
		if !usedPrimary[i] {
			unmatchedPrimary = append(unmatchedPrimary, i)
		}
	}
	for j := 0; j < nSecondary; j++ {
		if !usedSecondary[j] {
			unmatchedSecondary = append(unmatchedSecondary, j)
		}
	}

	return &Matching{
		Level:              level,
		Pairs:              matched,
		UnmatchedPrimary:   unmatchedPrimary,
		UnmatchedSecondary: unmatchedSecondary,
	}
}
