// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lispmds

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/skepner/acmacs-chart/chart"
	"github.com/skepner/acmacs-chart/layout"
	"github.com/skepner/acmacs-chart/table"
	"github.com/skepner/acmacs-chart/titer"
)

// markerOffset is the length of "(MAKE-MASTER-MDS-WINDOW", the same
// offset cc/chart/v2/lispmds-import.hh's is_lispmds adds before looking
// for "(HI-IN" so the search doesn't re-match inside the first marker.
const markerOffset = len("(MAKE-MASTER-MDS-WINDOW")

// IsLispmds reports whether data looks like a lispmds s-expression
// chart: it contains "(MAKE-MASTER-MDS-WINDOW" followed later by
// "(HI-IN" (spec.md §6 Sniffing). "(TAB-IN" tables are not supported,
// the same limitation the original importer states.
func IsLispmds(data []byte) bool {
	if len(data) < 100 {
		return false
	}
	s := string(data)
	start := strings.Index(s, "(MAKE-MASTER-MDS-WINDOW")
	if start < 0 {
		return false
	}
	return strings.Index(s[start+markerOffset:], "(HI-IN") >= 0
}

// malformedInput and structureInvalid are kept package-local (rather
// than reusing acimport's exported error types) because acimport, the
// top-level dispatch package, imports lispmds — so lispmds cannot
// import back from acimport without a cycle.
type malformedInput struct{ reason string }

func (e malformedInput) Error() string { return "lispmds: malformed input: " + e.reason }

type structureInvalid struct{ reason string }

func (e structureInvalid) Error() string { return "lispmds: " + e.reason }

// Import parses a lispmds s-expression document into a *chart.Chart.
func Import(data []byte) (*chart.Chart, error) {
	root, err := parseString(string(data))
	if err != nil {
		if _, ok := err.(malformedInput); ok {
			return nil, err
		}
		return nil, malformedInput{reason: err.Error()}
	}
	return build(root)
}

func build(root *listNode) (*chart.Chart, error) {
	numAntigens := sizeAt(root, 0, 1)
	numSera := sizeAt(root, 0, 2)
	if numAntigens == 0 {
		return nil, structureInvalid{reason: "no antigens"}
	}
	if numSera == 0 {
		return nil, structureInvalid{reason: "no sera (genetic tables are not supported)"}
	}

	c := chart.New()
	if sizeAt(root, 0) >= 5 {
		switch v := mustGet(root, 0, 4).(type) {
		case Symbol:
			c.Info.Name = lispmdsDecode(string(v))
		case string:
			c.Info.Name = v
		}
	}

	referenced := make(map[string]bool)
	if refs, ok := mustGet(root, ":REFERENCE-ANTIGENS").(*listNode); ok {
		for _, item := range refs.items {
			if sym, ok := item.(Symbol); ok {
				referenced[string(sym)] = true
			}
		}
	}

	for i := 0; i < numAntigens; i++ {
		sym, _ := mustGet(root, 0, 1, i).(Symbol)
		name, reassortant, passage, annotations := decodeAntigenName(lispmdsDecode(string(sym)))
		a := chart.NewAntigen(name)
		a.Reassortant = reassortant
		a.Passage = passage
		a.SetAnnotations(annotations)
		if referenced[string(sym)] {
			a.Attributes = map[string]any{"reference": true}
		}
		c.AddAntigen(a)
	}

	for j := 0; j < numSera; j++ {
		sym, _ := mustGet(root, 0, 2, j).(Symbol)
		name, reassortant, annotations, serumID := decodeSerumName(lispmdsDecode(string(sym)))
		s := chart.NewSerum(name)
		s.Reassortant = reassortant
		s.SerumID = serumID
		s.SetAnnotations(annotations)
		c.AddSerum(s)
	}

	titersTable, err := importTiters(root, numAntigens, numSera)
	if err != nil {
		return nil, err
	}
	c.Titers = titersTable

	numProjections := numProjections(root)
	for p := 0; p < numProjections; p++ {
		proj, err := importProjection(root, p, numAntigens, numSera, titersTable)
		if err != nil {
			return nil, err
		}
		c.AddProjection(proj)
	}

	c.PlotSpec = importPlotSpec(root, numAntigens, numSera)

	return c, nil
}

// --- titers -----------------------------------------------------------

func importTiters(root *listNode, numAntigens, numSera int) (*table.Table, error) {
	rows, ok := mustGet(root, 0, 3).(*listNode)
	if !ok {
		return nil, structureInvalid{reason: "titers grid is missing"}
	}
	cells := make([][]titer.Titer, numAntigens)
	for i := 0; i < numAntigens; i++ {
		row, ok := rows.items[i].(*listNode)
		if !ok {
			return nil, structureInvalid{reason: fmt.Sprintf("titers row %d is not a list", i)}
		}
		cells[i] = make([]titer.Titer, numSera)
		for j := 0; j < numSera; j++ {
			ti, err := decodeTiter(row.items[j])
			if err != nil {
				return nil, fmt.Errorf("lispmds: titer at antigen %d, serum %d: %w", i, j, err)
			}
			cells[i][j] = ti
		}
	}
	t, err := table.NewDense(numAntigens, numSera, cells)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// decodeTiter converts one lispmds titer cell (a Symbol like "*", "<40"
// or ">1280", or a bare Number) into a titer.Titer. Values are stored in
// log₂·10 units: the numeric magnitude n represents a titer of
// round(2ⁿ·10), a direct port of LispmdsTiters::titer.
func decodeTiter(val any) (titer.Titer, error) {
	switch t := val.(type) {
	case Symbol:
		s := string(t)
		if s == "" {
			return titer.Titer{}, errTypeMismatch{"empty titer symbol"}
		}
		if s[0] == '*' {
			return titer.DontCareTiter, nil
		}
		f, err := strconv.ParseFloat(numberText(s[1:]), 64)
		if err != nil {
			return titer.Titer{}, fmt.Errorf("unexpected titer symbol %q", s)
		}
		value := titerValueFromLog2(f)
		switch s[0] {
		case '<':
			return titer.NewLessThan(value), nil
		case '>':
			return titer.NewMoreThan(value), nil
		default:
			return titer.NewRegular(value), nil
		}
	case float64:
		return titer.NewRegular(titerValueFromLog2(t)), nil
	default:
		return titer.Titer{}, errTypeMismatch{"unexpected titer type"}
	}
}

func titerValueFromLog2(logValue float64) int {
	v := int(math.Round(math.Exp2(logValue) * 10))
	if v <= 0 {
		v = 10
	}
	return v
}

// --- projections --------------------------------------------------------

func numProjections(root *listNode) int {
	n := 0
	if !emptyAt(root, ":STARTING-COORDSS") {
		n++
	}
	n += sizeAt(root, ":BATCH-RUNS")
	return n
}

// projectionData returns the (layout, stress, ...) entry for projection
// projNo, a direct port of lispmds-import.cc's file-local
// projection_data.
func projectionData(root *listNode, projNo int) any {
	if emptyAt(root, ":STARTING-COORDSS") {
		return mustGet(root, ":BATCH-RUNS", projNo)
	}
	if projNo == 0 {
		return mustGet(root, ":STARTING-COORDSS")
	}
	return mustGet(root, ":BATCH-RUNS", projNo-1)
}

// projectionLayout returns just the layout list for projection projNo, a
// direct port of lispmds-import.cc's file-local projection_layout.
func projectionLayout(root *listNode, projNo int) any {
	if emptyAt(root, ":STARTING-COORDSS") {
		return mustGet(root, ":BATCH-RUNS", projNo, 0)
	}
	if projNo == 0 {
		return mustGet(root, ":STARTING-COORDSS")
	}
	return mustGet(root, ":BATCH-RUNS", projNo-1, 0)
}

func importProjection(root *listNode, projNo, numAntigens, numSera int, titers *table.Table) (*chart.Projection, error) {
	numPoints := numAntigens + numSera
	layoutVal := projectionLayout(root, projNo)
	dims := sizeAt(layoutVal, 0)
	if dims == 0 {
		dims = 2
	}
	if dims > 5 {
		return nil, structureInvalid{reason: fmt.Sprintf("projection %d has unsupported number of dimensions: %d", projNo, dims)}
	}

	p := chart.NewProjection(numPoints, dims)
	for pt := 0; pt < numPoints; pt++ {
		point := mustGet(layoutVal, pt)
		ps := size(point)
		switch {
		case ps == dims:
			coords := make([]float64, dims)
			pl := point.(*listNode)
			for d := 0; d < dims; d++ {
				coords[d], _ = asNumber(pl.items[d])
			}
			p.Layout.SetPoint(pt, coords)
		case ps > 0:
			return nil, structureInvalid{reason: fmt.Sprintf("point %d has invalid number of coordinates: %d, expected 0 or %d", pt, ps, dims)}
		default:
			// left as NaN: a disconnected point.
		}
	}

	if stress, ok := asNumber(mustGet(projectionData(root, projNo), 1)); ok {
		p.Stress = stress
	}

	if dims == 2 {
		if tr := importTransformation(root); tr != nil {
			p.Transformation = tr
		}
	}

	if unmovable, ok := mustGet(root, ":UNMOVEABLE-COORDS").(*listNode); ok {
		for _, v := range unmovable.items {
			if n, ok := asNumber(v); ok {
				p.Unmovable[int(n)] = true
			}
		}
	}

	cbList, _ := mustGet(layoutVal, numPoints, 0, 1).(*listNode)
	if cbList != nil && len(cbList.items) >= numPoints {
		if forced, mcb := decodeForcedColumnBases(titers, cbList, numAntigens, numSera); forced != nil {
			p.ForcedColumnBases = forced
		} else {
			p.MinimumColumnBasis = mcb
		}
	}
	if cbList != nil && len(cbList.items) >= 2*numPoints {
		adjusts := make([]float64, numPoints)
		for i := 0; i < numPoints; i++ {
			v, _ := asNumber(cbList.items[numPoints+i])
			adjusts[i] = math.Exp2(v)
		}
		p.AvidityAdjusts = adjusts
	}

	return p, nil
}

// decodeForcedColumnBases reproduces lispmds-import.cc's file-local
// forced_column_bases: the embedded column-basis list is compared
// against the column basis the titers themselves imply; if they match,
// no forced column bases apply; if the embedded list is a uniform floor
// over the native one, that floor becomes the minimum column basis; only
// if neither matches does the embedded list become actual forced column
// bases.
func decodeForcedColumnBases(titers *table.Table, cbList *listNode, numAntigens, numSera int) (*table.ColumnBases, int) {
	native := table.Compute(titers, 0)
	explicit := make([]float64, numSera)
	for j := 0; j < numSera; j++ {
		v, _ := asNumber(cbList.items[numAntigens+j])
		explicit[j] = v
	}

	equal := func(a []float64, getB func(int) float64) bool {
		for j := range a {
			if math.Abs(a[j]-getB(j)) > 1e-9 {
				return false
			}
		}
		return true
	}
	if equal(explicit, native.Raw) {
		return nil, 0
	}

	minForced := explicit[0]
	for _, v := range explicit[1:] {
		if v < minForced {
			minForced = v
		}
	}
	upgraded := func(j int) float64 { return math.Max(native.Raw(j), minForced) }
	if equal(explicit, upgraded) {
		return nil, titerValueFromLog2(minForced)
	}
	return table.NewForced(explicit), 0
}

func importTransformation(root *listNode) *layout.Transformation {
	coordTr, ok := mustGet(root, ":CANVAS-COORD-TRANSFORMATIONS").(*listNode)
	if !ok || empty(coordTr) {
		return nil
	}
	a, b, cc, d := 1.0, 0.0, 0.0, 1.0
	if v0, ok := mustGet(coordTr, ":CANVAS-BASIS-VECTOR-0").(*listNode); ok && !empty(v0) {
		if n, ok := asNumber(mustGet(v0, 0)); ok {
			a = n
		}
		if n, ok := asNumber(mustGet(v0, 1)); ok {
			cc = n
		}
	}
	if v1, ok := mustGet(coordTr, ":CANVAS-BASIS-VECTOR-1").(*listNode); ok && !empty(v1) {
		if n, ok := asNumber(mustGet(v1, 0)); ok {
			b = n
		}
		if n, ok := asNumber(mustGet(v1, 1)); ok {
			d = n
		}
	}
	if n, ok := asNumber(mustGet(coordTr, ":CANVAS-X-COORD-SCALE")); ok && n < 0 {
		a, cc = -a, -cc
	}
	if n, ok := asNumber(mustGet(coordTr, ":CANVAS-Y-COORD-SCALE")); ok && n < 0 {
		b, d = -b, -d
	}
	return layout.NewTransformationFrom(2, []float64{a, b, cc, d}, []float64{0, 0})
}

// --- plot spec ------------------------------------------------------

func importPlotSpec(root *listNode, numAntigens, numSera int) *chart.PlotSpec {
	specList, ok := mustGet(root, ":PLOT-SPEC").(*listNode)
	if !ok || empty(specList) {
		return nil
	}
	numPoints := numAntigens + numSera
	styles := make([]map[string]any, numPoints)
	pointStyle := make([]int, numPoints)
	for pt := 0; pt < numPoints; pt++ {
		var sym Symbol
		var suffix string
		if pt < numAntigens {
			sym, _ = mustGet(root, 0, 1, pt).(Symbol)
			suffix = "-AG"
		} else {
			sym, _ = mustGet(root, 0, 2, pt-numAntigens).(Symbol)
			suffix = "-SR"
		}
		name := string(sym) + suffix
		styles[pt] = extractStyle(specList, name)
		pointStyle[pt] = pt
	}
	return &chart.PlotSpec{PointStyle: pointStyle, Styles: styles, ErrorLineColor: "red"}
}

// extractStyle finds the (NAME ...) entry within specList whose first
// element matches name and turns its keyword-tagged tail into a style
// attribute map, a direct port of LispmdsPlotSpec::extract_style.
func extractStyle(specList *listNode, name string) map[string]any {
	for _, entry := range specList.items {
		el, ok := entry.(*listNode)
		if !ok || len(el.items) == 0 {
			continue
		}
		sym, ok := el.items[0].(Symbol)
		if !ok || string(sym) != name {
			continue
		}
		out := make(map[string]any)
		if v, err := get(el, ":DS"); err == nil {
			if n, ok := asNumber(v); ok {
				out["size"] = n
			}
		}
		if v, err := get(el, ":WN"); err == nil {
			if s, ok := v.(string); ok {
				out["label"] = s
			}
		}
		if v, err := get(el, ":SH"); err == nil {
			if s, ok := v.(string); ok {
				out["shape"] = s
			}
		}
		if v, err := get(el, ":NS"); err == nil {
			if n, ok := asNumber(v); ok {
				out["label_size"] = n
			}
		}
		if v, err := get(el, ":NC"); err == nil {
			if s, ok := v.(string); ok && s != "{}" {
				out["label_color"] = s
			}
		}
		if v, err := get(el, ":CO"); err == nil {
			if s, ok := v.(string); ok && s != "{}" {
				out["fill"] = s
			} else {
				out["fill"] = "transparent"
			}
		}
		if v, err := get(el, ":OC"); err == nil {
			if s, ok := v.(string); ok && s != "{}" {
				out["outline"] = s
			} else {
				out["outline"] = "transparent"
			}
		}
		if v, err := get(el, ":TR"); err == nil {
			if n, ok := asNumber(v); ok {
				out["transparency"] = n
			}
		}
		return out
	}
	return nil
}

// --- display name decoding --------------------------------------------

// lispmdsDecode unescapes a raw lispmds symbol the way the exporter side
// of this format escapes it for writing: a backslash escapes the byte
// that follows, and an underscore stands in for a literal space (a bare
// symbol token cannot itself contain one — only a pipe-quoted |...|
// symbol can, and the tokenizer already preserves those verbatim).
func lispmdsDecode(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\\' && i+1 < len(text) {
			i++
			b.WriteByte(text[i])
			continue
		}
		if c == '_' {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// decodeAntigenName splits a decoded display name into (name,
// reassortant, passage, annotations) by peeling recognized trailing
// tokens off the end: "[...]" annotations (any number), then a single
// "(...)" reassortant, then a single trailing passage word recognized by
// chart.Passage.Type()'s egg/cell markers. Everything left over, joined
// back with spaces, is the name.
//
// cc/chart/v2/lispmds-encode.cc (the exporter half of this grammar) was
// not part of the available source material, so this grammar is this
// importer's own — designed to be unambiguous and to use the same
// egg/cell passage markers chart.Passage.Type already recognizes rather
// than inventing a second heuristic (see DESIGN.md).
func decodeAntigenName(raw string) (name, reassortant string, passage chart.Passage, annotations []string) {
	words := strings.Fields(raw)
	for len(words) > 0 {
		last := words[len(words)-1]
		switch {
		case isBracketed(last, '[', ']'):
			annotations = append(annotations, trimBrackets(last))
		case reassortant == "" && isBracketed(last, '(', ')'):
			reassortant = trimBrackets(last)
		case passage == "" && looksLikePassage(last):
			passage = chart.Passage(last)
		default:
			name = strings.Join(words, " ")
			reverseStrings(annotations)
			return
		}
		words = words[:len(words)-1]
	}
	name = strings.Join(words, " ")
	reverseStrings(annotations)
	return
}

// decodeSerumName is decodeAntigenName's serum counterpart: sera carry a
// serum ID ("{...}") instead of a passage (LispmdsSerum::passage is
// unimplemented upstream and always empty, so this importer leaves it
// unset too).
func decodeSerumName(raw string) (name, reassortant string, annotations []string, serumID string) {
	words := strings.Fields(raw)
	for len(words) > 0 {
		last := words[len(words)-1]
		switch {
		case isBracketed(last, '[', ']'):
			annotations = append(annotations, trimBrackets(last))
		case serumID == "" && isBracketed(last, '{', '}'):
			serumID = trimBrackets(last)
		case reassortant == "" && isBracketed(last, '(', ')'):
			reassortant = trimBrackets(last)
		default:
			name = strings.Join(words, " ")
			reverseStrings(annotations)
			return
		}
		words = words[:len(words)-1]
	}
	name = strings.Join(words, " ")
	reverseStrings(annotations)
	return
}

func isBracketed(s string, open, close byte) bool {
	return len(s) >= 2 && s[0] == open && s[len(s)-1] == close
}

func trimBrackets(s string) string { return s[1 : len(s)-1] }

func looksLikePassage(word string) bool {
	t := chart.Passage(word).Type()
	return t == chart.PassageEgg || t == chart.PassageCell
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
