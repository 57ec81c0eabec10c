// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package match

import (
	"testing"

	"github.com/skepner/acmacs-chart/chart"
)

func antigen(name, reassortant, passage string) *chart.Antigen {
	a := chart.NewAntigen(name)
	a.Reassortant = reassortant
	a.Passage = chart.Passage(passage)
	return a
}

func TestAntigensStrictExactMatch(t *testing.T) {
	primary := []*chart.Antigen{antigen("A/X/1/2020", "", "MDCK1"), antigen("A/Y/2/2020", "", "E1")}
	secondary := []*chart.Antigen{antigen("A/Y/2/2020", "", "E1"), antigen("A/X/1/2020", "", "MDCK1")}

	m := Antigens(primary, secondary, LevelStrict)
	if len(m.Pairs) != 2 {
		t.Fatalf("len(Pairs) = %d, want 2", len(m.Pairs))
	}
	if secondary, ok := m.SecondaryFor(0); !ok || secondary != 1 {
		t.Errorf("SecondaryFor(0) = (%d, %v), want (1, true)", secondary, ok)
	}
	if secondary, ok := m.SecondaryFor(1); !ok || secondary != 0 {
		t.Errorf("SecondaryFor(1) = (%d, %v), want (0, true)", secondary, ok)
	}
}

func TestAntigensStrictRejectsDifferentPassage(t *testing.T) {
	primary := []*chart.Antigen{antigen("A/X/1/2020", "", "MDCK1")}
	secondary := []*chart.Antigen{antigen("A/X/1/2020", "", "E1")}

	m := Antigens(primary, secondary, LevelStrict)
	if len(m.Pairs) != 0 {
		t.Fatalf("len(Pairs) = %d, want 0 for mismatched passage under strict", len(m.Pairs))
	}
	if len(m.UnmatchedPrimary) != 1 || len(m.UnmatchedSecondary) != 1 {
		t.Fatalf("want both sides unmatched, got %v / %v", m.UnmatchedPrimary, m.UnmatchedSecondary)
	}
}

func TestAntigensRelaxedAcceptsSamePassageType(t *testing.T) {
	primary := []*chart.Antigen{antigen("A/X/1/2020", "", "MDCK1")}
	secondary := []*chart.Antigen{antigen("A/X/1/2020", "", "SIAT2")}

	m := Antigens(primary, secondary, LevelRelaxed)
	if len(m.Pairs) != 1 {
		t.Fatalf("len(Pairs) = %d, want 1 under relaxed (both cell-passaged)", len(m.Pairs))
	}
}

func TestAntigensIgnoredIgnoresPassageEntirely(t *testing.T) {
	primary := []*chart.Antigen{antigen("A/X/1/2020", "", "MDCK1")}
	secondary := []*chart.Antigen{antigen("A/X/1/2020", "", "E1")}

	m := Antigens(primary, secondary, LevelIgnored)
	if len(m.Pairs) != 1 {
		t.Fatalf("len(Pairs) = %d, want 1 under ignored", len(m.Pairs))
	}
}

func TestAntigensGreedyAssignsEachIndexAtMostOnce(t *testing.T) {
	primary := []*chart.Antigen{antigen("A/X/1/2020", "", ""), antigen("A/X/1/2020", "", "")}
	secondary := []*chart.Antigen{antigen("A/X/1/2020", "", "")}

	m := Antigens(primary, secondary, LevelIgnored)
	if len(m.Pairs) != 1 {
		t.Fatalf("len(Pairs) = %d, want 1 (secondary index used at most once)", len(m.Pairs))
	}
	if m.Pairs[0].Primary != 0 {
		t.Errorf("Pairs[0].Primary = %d, want 0 (lowest index wins the tie)", m.Pairs[0].Primary)
	}
	if len(m.UnmatchedPrimary) != 1 || m.UnmatchedPrimary[0] != 1 {
		t.Errorf("UnmatchedPrimary = %v, want [1]", m.UnmatchedPrimary)
	}
}

func TestAntigensAutomaticFallsBackToRelaxed(t *testing.T) {
	primary := []*chart.Antigen{
		antigen("A/X/1/2020", "", "MDCK1"),
		antigen("A/Y/2/2020", "", "MDCK1"),
		antigen("A/Z/3/2020", "", "MDCK1"),
		antigen("A/W/4/2020", "", "MDCK1"),
	}
	// Same names/reassortants but every passage differs exactly (strict
	// match would cover none); all are still cell-passaged, so relaxed
	// should match everything.
	secondary := []*chart.Antigen{
		antigen("A/X/1/2020", "", "SIAT1"),
		antigen("A/Y/2/2020", "", "SIAT1"),
		antigen("A/Z/3/2020", "", "SIAT1"),
		antigen("A/W/4/2020", "", "SIAT1"),
	}

	m := Antigens(primary, secondary, LevelAutomatic)
	if len(m.Pairs) != 4 {
		t.Fatalf("len(Pairs) = %d, want 4 after falling back to relaxed", len(m.Pairs))
	}
	if m.Level != LevelAutomatic {
		t.Errorf("Level = %v, want LevelAutomatic to be preserved in the result", m.Level)
	}
}

func serum(name, reassortant, serumID string) *chart.Serum {
	s := chart.NewSerum(name)
	s.Reassortant = reassortant
	s.SerumID = serumID
	return s
}

func TestSeraStrictComparesSerumID(t *testing.T) {
	primary := []*chart.Serum{serum("A/X/1/2020", "", "F1")}
	secondary := []*chart.Serum{serum("A/X/1/2020", "", "F2")}

	m := Sera(primary, secondary, LevelStrict)
	if len(m.Pairs) != 0 {
		t.Fatalf("len(Pairs) = %d, want 0 when serum ids differ under strict", len(m.Pairs))
	}
}

func TestSeraExclusionAnnotationsStrippedBeforeComparison(t *testing.T) {
	primary := serum("A/X/1/2020", "", "F1")
	primary.SetAnnotations([]string{"CONC"})
	secondary := serum("A/X/1/2020", "", "F1")
	secondary.SetAnnotations(nil)

	m := Sera([]*chart.Serum{primary}, []*chart.Serum{secondary}, LevelStrict)
	if len(m.Pairs) != 1 {
		t.Fatalf("len(Pairs) = %d, want 1 once the CONC exclusion annotation is stripped", len(m.Pairs))
	}
}
