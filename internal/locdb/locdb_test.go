// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package locdb

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
locations:
  NEW YORK:
    latitude: 40.7128
    longitude: -74.006
    country: UNITED STATES OF AMERICA
    cdc_abbreviation: NY
  SINGAPORE:
    latitude: 1.3521
    longitude: 103.8198
    country: SINGAPORE
countries:
  UNITED STATES OF AMERICA: NORTH AMERICA
  SINGAPORE: ASIA
aliases:
  NEW YORK CITY: NEW YORK
  NYC: NEW YORK
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locdb.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("writing sample database: %v", err)
	}
	return path
}

func TestLoadReadsYAMLDocument(t *testing.T) {
	db, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	loc, canonical, ok := db.Find("NEW YORK")
	if !ok {
		t.Fatalf("expected NEW YORK to be found")
	}
	if canonical != "NEW YORK" {
		t.Fatalf("unexpected canonical name: %q", canonical)
	}
	if loc.Country != "UNITED STATES OF AMERICA" {
		t.Fatalf("unexpected country: %q", loc.Country)
	}
	if loc.Latitude != 40.7128 || loc.Longitude != -74.006 {
		t.Fatalf("unexpected coordinates: %v, %v", loc.Latitude, loc.Longitude)
	}
}

func TestFindResolvesAliases(t *testing.T) {
	db, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, alias := range []string{"NEW YORK CITY", "NYC"} {
		loc, canonical, ok := db.Find(alias)
		if !ok {
			t.Fatalf("expected alias %q to resolve", alias)
		}
		if canonical != "NEW YORK" {
			t.Fatalf("alias %q resolved to %q, want NEW YORK", alias, canonical)
		}
		if loc.Country != "UNITED STATES OF AMERICA" {
			t.Fatalf("alias %q: unexpected country %q", alias, loc.Country)
		}
	}
}

func TestFindReportsMiss(t *testing.T) {
	db, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, _, ok := db.Find("ATLANTIS"); ok {
		t.Fatalf("expected ATLANTIS to be unresolved")
	}
}

func TestCountryAndContinent(t *testing.T) {
	db, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := db.Country("NYC"); got != "UNITED STATES OF AMERICA" {
		t.Fatalf("unexpected country: %q", got)
	}
	if got := db.Continent("SINGAPORE"); got != "ASIA" {
		t.Fatalf("unexpected continent: %q", got)
	}
	if got := db.Continent("NOWHERE"); got != "" {
		t.Fatalf("expected empty continent for unknown country, got %q", got)
	}
}

func TestAbbreviationLookupBothDirections(t *testing.T) {
	db, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := db.Abbreviation("NEW YORK"); got != "NY" {
		t.Fatalf("unexpected abbreviation: %q", got)
	}
	if got := db.Abbreviation("SINGAPORE"); got != "" {
		t.Fatalf("expected no abbreviation for SINGAPORE, got %q", got)
	}
	name, ok := db.FindNameByAbbreviation("NY")
	if !ok || name != "NEW YORK" {
		t.Fatalf("FindNameByAbbreviation(NY) = %q, %v", name, ok)
	}
	if _, ok := db.FindNameByAbbreviation("ZZ"); ok {
		t.Fatalf("expected ZZ to be unresolved")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
