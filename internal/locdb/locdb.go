// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package locdb loads a read-only location database: the lookup table
// antigen/serum name parsers consult to resolve a free-text location
// name to its latitude/longitude, country, continent, and CDC
// laboratory abbreviation, ported from cc/locdb/locdb.hh and
// cc/locdb/v3/locdb.hh's Db class.
package locdb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Location is one entry of the database: a place name's coordinates and
// the country it belongs to, mirroring Db::location.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Country   string  `yaml:"country"`

	// CDCAbbreviation is the two-letter (or longer) laboratory code some
	// legacy antigen names prefix the isolate name with, e.g. "NY" for
	// "NEW YORK". Empty if the location has none on record.
	CDCAbbreviation string `yaml:"cdc_abbreviation,omitempty"`
}

// document is the on-disk shape locdb.Load decodes, designed for this
// importer: cc/locdb/locdb.hh's original on-disk format was never part
// of the available source material, only the decoded Db fields it
// builds (locations_, countries_/continents_, cdc_abbreviations_,
// names_/replacements_) — this schema is shaped to populate exactly
// those fields from a document a caller can write by hand or generate.
type document struct {
	// Locations maps a canonical location name to its Location record.
	Locations map[string]Location `yaml:"locations"`
	// Countries maps a country name to its continent, the same
	// name->index-into-continents_ role Db::countries_/continents_ play
	// together.
	Countries map[string]string `yaml:"countries"`
	// Aliases maps an alternate or legacy spelling of a location name to
	// its canonical entry in Locations, folding together the separate
	// roles Db::names_ and Db::replacements_ play in the original (both
	// are alternate-name-to-canonical-name maps; nothing in the
	// available headers distinguishes when one applies over the other).
	Aliases map[string]string `yaml:"aliases"`
}

// DB is a loaded, read-only location database handle.
type DB struct {
	locations map[string]Location
	countries map[string]string
	aliases   map[string]string
}

// Load reads and parses the location database at path. The format is
// YAML, or JSON (a valid YAML document per gopkg.in/yaml.v3's decoder),
// entirely at the discretion of the file on disk; Load never consults an
// environment variable or a hard-coded path (spec.md §6 Environment: the
// caller always supplies path explicitly).
func Load(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locdb: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("locdb: parsing %s: %w", path, err)
	}
	return &DB{
		locations: doc.Locations,
		countries: doc.Countries,
		aliases:   doc.Aliases,
	}, nil
}

// canonicalName resolves name through the alias table if it is not
// itself a known location, the same fallback Db::find performs by
// consulting names_/replacements_ after a direct lookup misses.
func (db *DB) canonicalName(name string) (string, bool) {
	if _, ok := db.locations[name]; ok {
		return name, true
	}
	if alias, ok := db.aliases[name]; ok {
		if _, ok := db.locations[alias]; ok {
			return alias, true
		}
	}
	return "", false
}

// Find resolves name to its Location, following an alias if name is not
// itself a canonical location name. ok is false if neither name nor any
// alias it resolves to is in the database, mirroring Db::find's "empty
// string" miss.
func (db *DB) Find(name string) (loc Location, canonicalName string, ok bool) {
	canonical, found := db.canonicalName(name)
	if !found {
		return Location{}, "", false
	}
	return db.locations[canonical], canonical, true
}

// Country returns the country of the location named name, or "" if name
// is not found.
func (db *DB) Country(name string) string {
	loc, _, ok := db.Find(name)
	if !ok {
		return ""
	}
	return loc.Country
}

// Continent returns the continent of country, or "" if country is not
// in the database, mirroring Db::continent.
func (db *DB) Continent(country string) string {
	return db.countries[country]
}

// Abbreviation returns the CDC laboratory abbreviation recorded for the
// location named name, or "" if name is not found or has none on
// record, mirroring Db::abbreviation.
func (db *DB) Abbreviation(name string) string {
	loc, _, ok := db.Find(name)
	if !ok {
		return ""
	}
	return loc.CDCAbbreviation
}

// FindNameByAbbreviation resolves a CDC laboratory abbreviation back to
// the location name it was recorded against, scanning every location for
// a matching CDCAbbreviation, mirroring Db::find_cdc_abbreviation_by_name
// used in reverse (the original keeps a dedicated abbreviation->name map
// for this; here it is derived from Locations directly to avoid carrying
// two copies of the same association that could drift out of sync).
func (db *DB) FindNameByAbbreviation(abbreviation string) (name string, ok bool) {
	for n, loc := range db.locations {
		if loc.CDCAbbreviation == abbreviation {
			return n, true
		}
	}
	return "", false
}
