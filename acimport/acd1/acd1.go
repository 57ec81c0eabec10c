// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acd1 imports the legacy acd1 chart format: a Python-literal
// text blob ("data = {...}") that toJSON rewrites into valid JSON before
// decoding it by its original full-word legacy keys (spec.md §4.O, §6).
package acd1

import (
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/skepner/acmacs-chart/acimport/wire"
	"github.com/skepner/acmacs-chart/chart"
	"github.com/skepner/acmacs-chart/layout"
	"github.com/skepner/acmacs-chart/table"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IsACD1 reports whether data looks like legacy acd1 text: it contains
// a "data = {" assignment somewhere in the file (spec.md §6 Sniffing).
func IsACD1(data []byte) bool {
	return strings.Contains(string(data), dataMarker)
}

// Import decodes legacy acd1 text into a chart.Chart.
func Import(data []byte) (*chart.Chart, error) {
	rewritten := toJSON(string(data))

	var doc map[string]any
	if err := json.Unmarshal([]byte(rewritten), &doc); err != nil {
		return nil, fmt.Errorf("acimport/acd1: malformed input after preprocessing: %w", err)
	}

	tbl, _ := asMap(doc["table"])
	antigensRaw, _ := asSlice(tbl["antigens"])
	seraRaw, _ := asSlice(tbl["sera"])

	c := chart.New()
	c.Info = importInfo(doc)
	for _, a := range antigensRaw {
		m, _ := asMap(a)
		c.AddAntigen(importAntigen(m))
	}
	for _, s := range seraRaw {
		m, _ := asMap(s)
		c.AddSerum(importSerum(m))
	}

	titers, err := importTiters(tbl["titers"], len(antigensRaw), len(seraRaw))
	if err != nil {
		return nil, err
	}
	c.Titers = titers

	projectionsRaw, _ := asSlice(doc["projections"])
	forcedCB, _ := asFloatSlice(tbl["column_bases"])
	for _, pr := range projectionsRaw {
		pm, _ := asMap(pr)
		c.AddProjection(importProjection(pm, c.NumPoints(), forcedCB))
	}

	c.PlotSpec = importPlotSpec(doc["plot_spec"])
	return c, nil
}

func importInfo(doc map[string]any) chart.Info {
	ci, _ := asMap(doc["chart_info"])
	return infoFrom(ci)
}

func infoFrom(ci map[string]any) chart.Info {
	info := chart.Info{
		Name:       getString(ci, "name"),
		Virus:      getString(ci, "virus"),
		Subtype:    getString(ci, "virus_type"),
		Subset:     getString(ci, "virus_subset"),
		Assay:      getString(ci, "assay"),
		Lab:        getString(ci, "lab"),
		RBCSpecies: getString(ci, "rbc_species"),
		Date:       getString(ci, "date"),
	}
	if sourcesRaw, ok := asSlice(ci["sources"]); ok {
		for _, s := range sourcesRaw {
			sm, _ := asMap(s)
			info.Sources = append(info.Sources, infoFrom(sm))
		}
	}
	return info
}

// antigenName implements the make_name fallback chain: an explicit
// "_name", then a composed "isolation_number" name, then "raw_name",
// then a cdc-abbreviation-stripped plain "name" (spec.md §6 does not
// define acd1's legacy name composition; grounded on
// cc/chart/v2/acd1-import.cc's make_name).
func antigenName(m map[string]any) string {
	if name := getString(m, "_name"); name != "" {
		return name
	}
	if isolation := getString(m, "isolation_number"); isolation != "" {
		host := getString(m, "host")
		if host == "HUMAN" {
			host = ""
		}
		location, _ := asMap(m["location"])
		parts := []string{getString(m, "virus_type"), host, getString(location, "name"), isolation, getString(m, "year")}
		return joinNonEmpty("/", parts)
	}
	if raw := getString(m, "raw_name"); raw != "" {
		return raw
	}
	location, _ := asMap(m["location"])
	cdc := getString(location, "cdc_abbreviation")
	name := getString(m, "name")
	if cdc != "" && len(name) > 3 && name[2] == '-' && strings.HasPrefix(name, cdc[:2]) {
		name = name[3:]
	}
	return joinNonEmpty(" ", []string{cdc, name})
}

func joinNonEmpty(sep string, parts []string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// passageOf implements make_passage: either a "passage" dict with a
// "passage"+"date" pair, or a plain "passage" string.
func passageOf(m map[string]any) chart.Passage {
	if pd, ok := asMap(m["passage"]); ok {
		p := getString(pd, "passage")
		if date := getString(pd, "date"); date != "" {
			p += " (" + date + ")"
		}
		return chart.Passage(p)
	}
	return chart.Passage(getString(m, "passage"))
}

// reassortantOf implements make_reassortant: either a dict with
// "complete"/"incomplete" string lists, or a plain string.
func reassortantOf(m map[string]any) string {
	if rd, ok := asMap(m["reassortant"]); ok {
		var composition []string
		complete, _ := asSlice(rd["complete"])
		incomplete, _ := asSlice(rd["incomplete"])
		for _, v := range complete {
			composition = append(composition, fmt.Sprintf("%v", v))
		}
		for _, v := range incomplete {
			composition = append(composition, fmt.Sprintf("%v", v))
		}
		return strings.Join(composition, " ")
	}
	return getString(m, "reassortant")
}

// labIDsOf implements lab_ids: either an array of [key, value] pairs, or
// an object mapping key to value, rendered as "key#value".
func labIDsOf(m map[string]any) []string {
	raw, ok := m["lab_id"]
	if !ok {
		return nil
	}
	if arr, ok := asSlice(raw); ok {
		var out []string
		for _, entry := range arr {
			pair, ok := asSlice(entry)
			if ok && len(pair) == 2 {
				out = append(out, fmt.Sprintf("%v#%v", pair[0], pair[1]))
			}
		}
		return out
	}
	if dict, ok := asMap(raw); ok {
		var out []string
		for k, v := range dict {
			out = append(out, fmt.Sprintf("%s#%v", k, v))
		}
		return out
	}
	return nil
}

// annotationsOf implements make_annotations: DISTINCT synthesized from
// several legacy flag spellings, plus extra/EXTRA, annotations and
// mutations concatenated.
func annotationsOf(m map[string]any) []string {
	var out []string
	if getBool(m, "distinct") || getBool(m, "DISTINCT") || getString(m, "control_duplicate") != "" || getString(m, "CONTROL_DUPLICATE") != "" {
		out = append(out, "DISTINCT")
	}
	if extra := getString(m, "extra"); extra != "" {
		out = append(out, extra)
	}
	if extra := getString(m, "EXTRA"); extra != "" {
		out = append(out, extra)
	}
	out = append(out, stringSlice(m["annotations"])...)
	out = append(out, stringSlice(m["mutations"])...)
	return out
}

func importAntigen(m map[string]any) *chart.Antigen {
	a := chart.NewAntigen(antigenName(m))
	a.Reassortant = reassortantOf(m)
	a.SetAnnotations(annotationsOf(m))
	a.Passage = passageOf(m)
	a.LabIDs = labIDsOf(m)
	a.Lineage = getString(m, "lineage")
	return a
}

func importSerum(m map[string]any) *chart.Serum {
	s := chart.NewSerum(antigenName(m))
	s.Reassortant = reassortantOf(m)
	s.SetAnnotations(annotationsOf(m))
	s.Passage = passageOf(m)
	s.Lineage = getString(m, "lineage")
	if sd, ok := asMap(m["serum_id"]); ok {
		s.SerumID = getString(sd, "serum_id")
	} else {
		s.SerumID = getString(m, "serum_id")
	}
	return s
}

func importTiters(raw any, numAntigens, numSera int) (*table.Table, error) {
	tm, _ := asMap(raw)
	if dense, ok := stringGrid(tm["titers_list_of_list"]); ok {
		return wire.DenseTiters(dense)
	}
	if sparse, ok := stringDictRows(tm["titers_list_of_dict"]); ok {
		return wire.SparseTiters(numAntigens, numSera, sparse)
	}
	return nil, fmt.Errorf("acimport/acd1: neither titers_list_of_list nor titers_list_of_dict present")
}

func importProjection(pm map[string]any, numPoints int, forcedCB []float64) *chart.Projection {
	layoutRows, _ := floatGrid(pm["layout"])
	dims := 0
	if len(layoutRows) > 0 {
		dims = len(layoutRows[0])
	}
	p := chart.NewProjection(numPoints, dims)
	for i, coords := range layoutRows {
		if i < numPoints {
			p.Layout.SetPoint(i, coords)
		}
	}
	if transformFlat, ok := asFloatSlice(pm["transformation"]); ok && dims > 0 && len(transformFlat) == dims*dims {
		p.Transformation = layout.NewTransformationFrom(dims, transformFlat, make([]float64, dims))
	}
	if len(forcedCB) > 0 {
		p.ForcedColumnBases = table.NewForced(forcedCB)
	}
	if stress, ok := asFloat(pm["stress"]); ok {
		p.Stress = stress
	}
	p.Comment = getString(pm, "comment")
	return p
}

func importPlotSpec(raw any) *chart.PlotSpec {
	pm, ok := asMap(raw)
	if !ok {
		return nil
	}
	ps := &chart.PlotSpec{}
	if order, ok := asSlice(pm["drawing_order"]); ok {
		for _, group := range order {
			groupSlice, _ := asSlice(group)
			for _, v := range groupSlice {
				if n, ok := asInt(v); ok {
					ps.DrawingOrder = append(ps.DrawingOrder, n)
				}
			}
		}
	}
	return ps
}

// --- dynamic-JSON helpers -------------------------------------------------

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}

func asFloatSlice(v any) ([]float64, bool) {
	s, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(s))
	for _, e := range s {
		f, ok := asFloat(e)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func stringSlice(v any) []string {
	s, ok := asSlice(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s))
	for _, e := range s {
		out = append(out, fmt.Sprintf("%v", e))
	}
	return out
}

func stringGrid(v any) ([][]string, bool) {
	rows, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		rs, ok := asSlice(row)
		if !ok {
			return nil, false
		}
		r := make([]string, 0, len(rs))
		for _, cell := range rs {
			r = append(r, fmt.Sprintf("%v", cell))
		}
		out = append(out, r)
	}
	return out, true
}

func stringDictRows(v any) ([]map[string]string, bool) {
	rows, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rm, ok := asMap(row)
		if !ok {
			return nil, false
		}
		m := make(map[string]string, len(rm))
		for k, val := range rm {
			m[k] = fmt.Sprintf("%v", val)
		}
		out = append(out, m)
	}
	return out, true
}

func floatGrid(v any) ([][]float64, bool) {
	rows, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	out := make([][]float64, 0, len(rows))
	for _, row := range rows {
		fs, ok := asFloatSlice(row)
		if !ok {
			return nil, false
		}
		out = append(out, fs)
	}
	return out, true
}

// Export renders c's info, antigens, sera and titers as JSON under
// acd1's full-word legacy keys. The output has no "data = {" header, so
// IsACD1 does not recognize it, but Import accepts it (toJSON passes
// text without the marker through unchanged); projections and the plot
// spec are not written. It is not used by acimport.Export (spec.md
// §4.O: the exporter writes only canonical JSON), but is kept for
// round-trip tests.
func Export(c *chart.Chart) ([]byte, error) {
	doc := map[string]any{
		"chart_info": exportInfo(c.Info),
		"table": map[string]any{
			"antigens": exportAntigens(c.Antigens),
			"sera":     exportSera(c.Sera),
			"titers":   exportTiters(c.Titers),
		},
	}
	return json.MarshalIndent(doc, "", " ")
}

func exportInfo(i chart.Info) map[string]any {
	m := map[string]any{
		"name":         i.Name,
		"virus":        i.Virus,
		"virus_type":   i.Subtype,
		"virus_subset": i.Subset,
		"assay":        i.Assay,
		"lab":          i.Lab,
		"rbc_species":  i.RBCSpecies,
		"date":         i.Date,
	}
	if len(i.Sources) > 0 {
		sources := make([]any, len(i.Sources))
		for k, s := range i.Sources {
			sources[k] = exportInfo(s)
		}
		m["sources"] = sources
	}
	return m
}

func exportAntigens(antigens []*chart.Antigen) []any {
	out := make([]any, len(antigens))
	for i, a := range antigens {
		out[i] = map[string]any{
			"name":        a.Name,
			"reassortant": a.Reassortant,
			"passage":     string(a.Passage),
			"annotations": a.Annotations,
			"lab_id":      a.LabIDs,
			"lineage":     a.Lineage,
		}
	}
	return out
}

func exportSera(sera []*chart.Serum) []any {
	out := make([]any, len(sera))
	for i, s := range sera {
		out[i] = map[string]any{
			"name":        s.Name,
			"reassortant": s.Reassortant,
			"passage":     string(s.Passage),
			"annotations": s.Annotations,
			"lineage":     s.Lineage,
			"serum_id":    s.SerumID,
		}
	}
	return out
}

func exportTiters(t *table.Table) map[string]any {
	if t == nil {
		return map[string]any{}
	}
	return map[string]any{"titers_list_of_list": wire.DenseGrid(t)}
}
