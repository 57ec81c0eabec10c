// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ace imports and exports the canonical JSON chart format
// (spec.md §6): a top-level "  version" key of "acmacs-ace-v1" and a "c"
// object carrying info, antigens, sera, titers, projections and the
// legacy plot spec, each keyed by the single-letter abbreviations the
// format uses on the wire.
package ace

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"

	"github.com/skepner/acmacs-chart/acimport/wire"
	"github.com/skepner/acmacs-chart/chart"
	"github.com/skepner/acmacs-chart/layout"
	"github.com/skepner/acmacs-chart/table"
)

// Version is the only "  version" value this package accepts.
const Version = "acmacs-ace-v1"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IsAce reports whether data looks like canonical-JSON chart data: it
// starts with "{" and contains the version marker within the first 100
// bytes (spec.md §6 Sniffing).
func IsAce(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	probe := trimmed
	if len(probe) > 100 {
		probe = probe[:100]
	}
	return bytes.Contains(probe, []byte(Version))
}

// wireDoc is the top-level document.
type wireDoc struct {
	Version string `json:"  version"`
	C       wireC  `json:"c"`
}

type wireC struct {
	Info        wireInfo         `json:"i"`
	Antigens    []wireAntigen    `json:"a"`
	Sera        []wireSerum      `json:"s"`
	Titers      wireTiters       `json:"t"`
	Projections []wireProjection `json:"P,omitempty"`
	PlotSpec    *wirePlotSpec    `json:"p,omitempty"`
	Styles      any              `json:"R,omitempty"`
	Extension   map[string]any   `json:"x,omitempty"`
}

type wireInfo struct {
	Name       string     `json:"N,omitempty"`
	Virus      string     `json:"v,omitempty"`
	Subtype    string     `json:"V,omitempty"`
	Assay      string     `json:"A,omitempty"`
	Date       string     `json:"D,omitempty"`
	Lab        string     `json:"l,omitempty"`
	RBCSpecies string     `json:"r,omitempty"`
	Subset     string     `json:"s,omitempty"`
	TableType  string     `json:"T,omitempty"`
	Sources    []wireInfo `json:"S,omitempty"`
}

type wireInsertion struct {
	Position int    `json:"p"`
	Letters  string `json:"l"`
}

type wireAntigen struct {
	Name          string          `json:"N"`
	Reassortant   string          `json:"R,omitempty"`
	Annotations   []string        `json:"a,omitempty"`
	Date          string          `json:"D,omitempty"`
	Lineage       string          `json:"L,omitempty"`
	Passage       string          `json:"P,omitempty"`
	LabIDs        []string        `json:"l,omitempty"`
	AASequence    string          `json:"A,omitempty"`
	NucSequence   string          `json:"B,omitempty"`
	AAInsertions  []wireInsertion `json:"Ai,omitempty"`
	NucInsertions []wireInsertion `json:"Bi,omitempty"`
	TableType     string          `json:"T,omitempty"`
	Continent     string          `json:"C,omitempty"`
	Clades        []string        `json:"c,omitempty"`
	Attributes    map[string]any  `json:"S,omitempty"`
}

type wireSerum struct {
	Name          string          `json:"N"`
	Reassortant   string          `json:"R,omitempty"`
	Annotations   []string        `json:"a,omitempty"`
	Lineage       string          `json:"L,omitempty"`
	Passage       string          `json:"P,omitempty"`
	AASequence    string          `json:"A,omitempty"`
	NucSequence   string          `json:"B,omitempty"`
	AAInsertions  []wireInsertion `json:"Ai,omitempty"`
	NucInsertions []wireInsertion `json:"Bi,omitempty"`
	SerumID       string          `json:"I,omitempty"`
	SerumSpecies  string          `json:"s,omitempty"`
	HomologousAG  []int           `json:"h,omitempty"`
	Attributes    map[string]any  `json:"S,omitempty"`
}

type wireTiters struct {
	Dense  [][]string          `json:"l,omitempty"`
	Sparse []map[string]string `json:"d,omitempty"`
	Layers []wireTiters        `json:"L,omitempty"`
}

type wireProjection struct {
	Comment      string      `json:"c,omitempty"`
	Stress       *float64    `json:"s,omitempty"`
	MCB          any         `json:"m,omitempty"`
	Layout       [][]float64 `json:"l,omitempty"`
	ForcedCB     []float64   `json:"C,omitempty"`
	Transform    []float64   `json:"t,omitempty"`
	Translation  []float64   `json:"T,omitempty"`
	Unmovable    []int       `json:"U,omitempty"`
	Disconnected []int       `json:"D,omitempty"`
	UnmovableLD  []int       `json:"u,omitempty"`
	AvidityAdj   []float64   `json:"g,omitempty"`
	Comment2     string      `json:"f,omitempty"`
}

type wirePlotSpec struct {
	DrawingOrder   []int            `json:"d,omitempty"`
	PointStyle     []int            `json:"p,omitempty"`
	Styles         []map[string]any `json:"P,omitempty"`
	ErrorLineColor string           `json:"E,omitempty"`
}

// Import decodes canonical JSON chart data into a chart.Chart.
func Import(data []byte) (*chart.Chart, error) {
	var doc wireDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, wrapMalformed(data, err)
	}
	if doc.Version != Version {
		return nil, &unsupportedVersion{doc.Version}
	}

	c := chart.New()
	c.Info = importInfo(doc.C.Info)
	for _, wa := range doc.C.Antigens {
		c.AddAntigen(importAntigen(wa))
	}
	for _, ws := range doc.C.Sera {
		c.AddSerum(importSerum(ws))
	}

	titers, err := importTiters(doc.C.Titers, len(doc.C.Antigens), len(doc.C.Sera))
	if err != nil {
		return nil, err
	}
	for _, layer := range doc.C.Titers.Layers {
		l, err := importTiters(layer, len(doc.C.Antigens), len(doc.C.Sera))
		if err != nil {
			return nil, err
		}
		titers.AddLayer(tableToLayer(l))
	}
	c.Titers = titers

	for _, wp := range doc.C.Projections {
		c.AddProjection(importProjection(wp, c.NumPoints()))
	}

	c.PlotSpec = importPlotSpec(doc.C.PlotSpec)
	c.Styles = doc.C.Styles
	c.Extension = doc.C.Extension
	return c, nil
}

func tableToLayer(t *table.Table) *table.Layer {
	l := table.NewLayer(t.NumAntigens(), t.NumSera())
	for _, cell := range t.TitersExisting() {
		l.Set(cell.Antigen, cell.Serum, cell.Titer)
	}
	return l
}

func importInfo(wi wireInfo) chart.Info {
	sources := make([]chart.Info, len(wi.Sources))
	for i, s := range wi.Sources {
		sources[i] = importInfo(s)
	}
	return chart.Info{
		Name:       wi.Name,
		Virus:      wi.Virus,
		Subtype:    wi.Subtype,
		Assay:      wi.Assay,
		Date:       wi.Date,
		Lab:        wi.Lab,
		RBCSpecies: wi.RBCSpecies,
		Subset:     wi.Subset,
		TableType:  wi.TableType,
		Sources:    sources,
	}
}

func exportInfo(i chart.Info) wireInfo {
	sources := make([]wireInfo, len(i.Sources))
	for k, s := range i.Sources {
		sources[k] = exportInfo(s)
	}
	return wireInfo{
		Name:       i.Name,
		Virus:      i.Virus,
		Subtype:    i.Subtype,
		Assay:      i.Assay,
		Date:       i.Date,
		Lab:        i.Lab,
		RBCSpecies: i.RBCSpecies,
		Subset:     i.Subset,
		TableType:  i.TableType,
		Sources:    sources,
	}
}

func importInsertions(ws []wireInsertion) []chart.Insertion {
	if ws == nil {
		return nil
	}
	out := make([]chart.Insertion, len(ws))
	for i, w := range ws {
		out[i] = chart.Insertion{Position: w.Position, Letters: w.Letters}
	}
	return out
}

func exportInsertions(ins []chart.Insertion) []wireInsertion {
	if ins == nil {
		return nil
	}
	out := make([]wireInsertion, len(ins))
	for i, in := range ins {
		out[i] = wireInsertion{Position: in.Position, Letters: in.Letters}
	}
	return out
}

func importAntigen(wa wireAntigen) *chart.Antigen {
	a := chart.NewAntigen(wa.Name)
	a.Reassortant = wa.Reassortant
	a.SetAnnotations(wa.Annotations)
	a.Date = wa.Date
	a.Lineage = wa.Lineage
	a.Passage = chart.Passage(wa.Passage)
	a.LabIDs = wa.LabIDs
	a.SetAASequence(wa.AASequence)
	a.SetNucSequence(wa.NucSequence)
	a.AAInsertions = importInsertions(wa.AAInsertions)
	a.NucInsertions = importInsertions(wa.NucInsertions)
	a.Continent = wa.Continent
	a.Clades = wa.Clades
	a.Attributes = wa.Attributes
	return a
}

func exportAntigen(a *chart.Antigen) wireAntigen {
	return wireAntigen{
		Name:          a.Name,
		Reassortant:   a.Reassortant,
		Annotations:   a.Annotations,
		Date:          a.Date,
		Lineage:       a.Lineage,
		Passage:       string(a.Passage),
		LabIDs:        a.LabIDs,
		AASequence:    a.AASequenceText(),
		NucSequence:   a.NucSequenceText(),
		AAInsertions:  exportInsertions(a.AAInsertions),
		NucInsertions: exportInsertions(a.NucInsertions),
		Continent:     a.Continent,
		Clades:        a.Clades,
		Attributes:    a.Attributes,
	}
}

func importSerum(ws wireSerum) *chart.Serum {
	s := chart.NewSerum(ws.Name)
	s.Reassortant = ws.Reassortant
	s.SetAnnotations(ws.Annotations)
	s.Lineage = ws.Lineage
	s.Passage = chart.Passage(ws.Passage)
	s.SetAASequence(ws.AASequence)
	s.AAInsertions = importInsertions(ws.AAInsertions)
	s.NucInsertions = importInsertions(ws.NucInsertions)
	s.SerumID = ws.SerumID
	s.SerumSpecies = ws.SerumSpecies
	s.HomologousAntigens = ws.HomologousAG
	s.Attributes = ws.Attributes
	return s
}

func exportSerum(s *chart.Serum) wireSerum {
	return wireSerum{
		Name:          s.Name,
		Reassortant:   s.Reassortant,
		Annotations:   s.Annotations,
		Lineage:       s.Lineage,
		Passage:       string(s.Passage),
		AASequence:    s.AASequenceText(),
		AAInsertions:  exportInsertions(s.AAInsertions),
		NucInsertions: exportInsertions(s.NucInsertions),
		SerumID:       s.SerumID,
		SerumSpecies:  s.SerumSpecies,
		HomologousAG:  s.HomologousAntigens,
		Attributes:    s.Attributes,
	}
}

func importTiters(wt wireTiters, numAntigens, numSera int) (*table.Table, error) {
	switch {
	case wt.Dense != nil:
		return wire.DenseTiters(wt.Dense)
	case wt.Sparse != nil:
		return wire.SparseTiters(numAntigens, numSera, wt.Sparse)
	default:
		return wire.DenseTiters(allDontCareGrid(numAntigens, numSera))
	}
}

// allDontCareGrid renders a fully don't-care dense grid, for a document
// whose "t" key is absent.
func allDontCareGrid(numAntigens, numSera int) [][]string {
	rows := make([][]string, numAntigens)
	for i := range rows {
		row := make([]string, numSera)
		for j := range row {
			row[j] = "*"
		}
		rows[i] = row
	}
	return rows
}

func exportTiters(t *table.Table) wireTiters {
	if t.IsSparse() {
		rows := make([]map[string]string, t.NumAntigens())
		for i := 0; i < t.NumAntigens(); i++ {
			row := make(map[string]string)
			for j := 0; j < t.NumSera(); j++ {
				ti := t.Titer(i, j)
				if ti.IsDontCare() {
					continue
				}
				row[itoa(j)] = ti.Format()
			}
			rows[i] = row
		}
		return wireTiters{Sparse: rows}
	}
	return wireTiters{Dense: wire.DenseGrid(t)}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func importProjection(wp wireProjection, numPoints int) *chart.Projection {
	dims := 0
	if len(wp.Layout) > 0 {
		dims = len(wp.Layout[0])
	}
	p := chart.NewProjection(numPoints, dims)
	for i, coords := range wp.Layout {
		if allNaNFree(coords) {
			p.Layout.SetPoint(i, coords)
		}
	}
	if wp.Transform != nil && dims > 0 {
		translation := wp.Translation
		if translation == nil {
			translation = make([]float64, dims)
		}
		p.Transformation = layout.NewTransformationFrom(dims, wp.Transform, translation)
	}
	if wp.ForcedCB != nil {
		p.ForcedColumnBases = table.NewForced(wp.ForcedCB)
	}
	p.MinimumColumnBasis = parseMCB(wp.MCB)
	for _, idx := range wp.Unmovable {
		p.Unmovable[idx] = true
	}
	for _, idx := range wp.Disconnected {
		p.Disconnected[idx] = true
	}
	for _, idx := range wp.UnmovableLD {
		p.UnmovableInLastDimension[idx] = true
	}
	p.AvidityAdjusts = wp.AvidityAdj
	if wp.Stress != nil {
		p.Stress = *wp.Stress
	}
	p.Comment = wp.Comment
	if p.Comment == "" {
		p.Comment = wp.Comment2
	}
	return p
}

func allNaNFree(coords []float64) bool {
	for _, v := range coords {
		if v != v { // NaN
			return false
		}
	}
	return len(coords) > 0
}

// parseMCB accepts either a JSON number (regular titer value) or the
// string "none" for wp.MCB, mirroring how the original format stores a
// projection's minimum column basis (spec.md §4.F).
func parseMCB(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		return 0
	default:
		return 0
	}
}

func exportProjection(p *chart.Projection) wireProjection {
	wp := wireProjection{
		Comment: p.Comment,
	}
	layoutRows := make([][]float64, p.Layout.NumPoints())
	for i := range layoutRows {
		layoutRows[i] = p.Layout.Point(i)
	}
	wp.Layout = layoutRows
	if p.Transformation != nil && !p.Transformation.IsIdentity() {
		dims := p.Transformation.Dims()
		m := p.Transformation.Matrix()
		flat := make([]float64, 0, dims*dims)
		for r := 0; r < dims; r++ {
			for col := 0; col < dims; col++ {
				flat = append(flat, m.At(r, col))
			}
		}
		wp.Transform = flat
		wp.Translation = p.Transformation.Translation()
	}
	if p.ForcedColumnBases != nil {
		cb := make([]float64, p.ForcedColumnBases.NumSera())
		for j := range cb {
			cb[j] = p.ForcedColumnBases.Get(j)
		}
		wp.ForcedCB = cb
	}
	if p.MinimumColumnBasis > 0 {
		wp.MCB = float64(p.MinimumColumnBasis)
	} else {
		wp.MCB = "none"
	}
	wp.Unmovable = intKeys(p.Unmovable)
	wp.Disconnected = intKeys(p.Disconnected)
	wp.UnmovableLD = intKeys(p.UnmovableInLastDimension)
	wp.AvidityAdj = p.AvidityAdjusts
	stress := p.Stress
	wp.Stress = &stress
	return wp
}

func intKeys(m map[int]bool) []int {
	if len(m) == 0 {
		return nil
	}
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func importPlotSpec(wp *wirePlotSpec) *chart.PlotSpec {
	if wp == nil {
		return nil
	}
	return &chart.PlotSpec{
		DrawingOrder:   wp.DrawingOrder,
		PointStyle:     wp.PointStyle,
		Styles:         wp.Styles,
		ErrorLineColor: wp.ErrorLineColor,
	}
}

func exportPlotSpec(ps *chart.PlotSpec) *wirePlotSpec {
	if ps == nil {
		return nil
	}
	return &wirePlotSpec{
		DrawingOrder:   ps.DrawingOrder,
		PointStyle:     ps.PointStyle,
		Styles:         ps.Styles,
		ErrorLineColor: ps.ErrorLineColor,
	}
}

// Export renders c as canonical JSON (spec.md §4.O: this is the only
// format the exporter writes).
func Export(c *chart.Chart) ([]byte, error) {
	doc := wireDoc{Version: Version}
	doc.C.Info = exportInfo(c.Info)
	doc.C.Antigens = make([]wireAntigen, len(c.Antigens))
	for i, a := range c.Antigens {
		doc.C.Antigens[i] = exportAntigen(a)
	}
	doc.C.Sera = make([]wireSerum, len(c.Sera))
	for i, s := range c.Sera {
		doc.C.Sera[i] = exportSerum(s)
	}
	if c.Titers != nil {
		doc.C.Titers = exportTiters(c.Titers)
	}
	doc.C.Projections = make([]wireProjection, len(c.Projections))
	for i, p := range c.Projections {
		doc.C.Projections[i] = exportProjection(p)
	}
	doc.C.PlotSpec = exportPlotSpec(c.PlotSpec)
	doc.C.Styles = c.Styles
	doc.C.Extension = c.Extension
	return json.MarshalIndent(doc, "", " ")
}

type unsupportedVersion struct{ version string }

func (e *unsupportedVersion) Error() string { return "acimport/ace: unsupported version " + e.version }

func wrapMalformed(data []byte, err error) error {
	return &malformedInput{reason: err.Error(), snippet: snippetOf(data)}
}

type malformedInput struct {
	reason  string
	snippet string
}

func (e *malformedInput) Error() string {
	return "acimport/ace: malformed input (" + e.snippet + "): " + e.reason
}

func snippetOf(data []byte) string {
	n := 40
	if len(data) < n {
		n = len(data)
	}
	return string(data[:n])
}
