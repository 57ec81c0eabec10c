// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acd1

import (
	"encoding/json"
	"testing"
)

func TestToJSONConvertsQuotesPreservingApostropheInWord(t *testing.T) {
	src := `data = {'name': 'COTE D'IVOIRE'}`
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
	if m["name"] != "COTE D'IVOIRE" {
		t.Fatalf("got name %q, want %q", m["name"], "COTE D'IVOIRE")
	}
}

func TestToJSONConvertsPythonKeywords(t *testing.T) {
	src := `data = {'a': True, 'b': False, 'c': None}`
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
	if m["a"] != true || m["b"] != false || m["c"] != nil {
		t.Fatalf("unexpected decoded keywords: %+v", m)
	}
}

func TestToJSONCollapsesNanPair(t *testing.T) {
	src := `data = {'point': [nan, nan]}`
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
	points, ok := m["point"].([]any)
	if !ok || len(points) != 0 {
		t.Fatalf("expected an empty array for [nan, nan], got %+v", m["point"])
	}
}

func TestToJSONStripsTrailingCommaBeforeClose(t *testing.T) {
	src := `data = {'a': [1, 2, ],}`
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
}

func TestToJSONConvertsTupleOfTuples(t *testing.T) {
	src := `data = {'lab_id': {('CDC', '2020001'), ('NIMR', '123')}}`
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
	pairs, ok := m["lab_id"].([]any)
	if !ok || len(pairs) != 2 {
		t.Fatalf("expected 2 lab_id pairs, got %+v", m["lab_id"])
	}
}

func TestToJSONQuotesBareNumericKeys(t *testing.T) {
	src := `data = {'sources': {0: 'a', 1: 'b'}}`
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
	sources, ok := m["sources"].(map[string]any)
	if !ok || sources["0"] != "a" || sources["1"] != "b" {
		t.Fatalf("unexpected decoded sources: %+v", m["sources"])
	}
}

func TestToJSONConvertsSingleElementSetLiteral(t *testing.T) {
	src := `data = {'clades': {'3C.2a'}}`
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
	clades, ok := m["clades"].([]any)
	if !ok || len(clades) != 1 || clades[0] != "3C.2a" {
		t.Fatalf("unexpected decoded clades: %+v", m["clades"])
	}
}

func TestToJSONConvertsMultiElementSetLiteral(t *testing.T) {
	src := `data = {'clades': {'3C.2a', '3C.3a'}}`
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
	clades, ok := m["clades"].([]any)
	if !ok || len(clades) != 2 {
		t.Fatalf("unexpected decoded clades: %+v", m["clades"])
	}
}

func TestToJSONStripsTrueCommentLines(t *testing.T) {
	src := "data = {\n  # this is a comment\n  'a': 1\n}"
	got := toJSON(src)
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("toJSON produced invalid JSON %q: %v", got, err)
	}
	if m["a"] != float64(1) {
		t.Fatalf("unexpected decoded value: %+v", m)
	}
}
