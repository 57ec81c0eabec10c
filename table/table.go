// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package table implements the titer table: a dense or sparse grid of
// antigen×serum titers, the ordered list of layers that a merged table
// carries, and the per-serum ColumnBases derived from it.
package table

import (
	"sort"

	"github.com/skepner/acmacs-chart/internal/message"
	"github.com/skepner/acmacs-chart/titer"
)

// Cell is one non-don't-care entry yielded by TitersExisting.
type Cell struct {
	Antigen int
	Serum   int
	Titer   titer.Titer
}

// Layer is the titer contribution of one source chart to a merged table:
// a sparse, antigen-indexed sequence of serum→titer maps, the same shape
// as a sparse Table.
type Layer struct {
	numAntigens, numSera int
	rows                 []map[int]titer.Titer
}

// NewLayer returns an empty Layer for the given shape.
func NewLayer(numAntigens, numSera int) *Layer {
	return &Layer{numAntigens: numAntigens, numSera: numSera, rows: make([]map[int]titer.Titer, numAntigens)}
}

// Set records the titer for (antigen, serum) in the layer.
func (l *Layer) Set(antigen, serum int, t titer.Titer) {
	if l.rows[antigen] == nil {
		l.rows[antigen] = make(map[int]titer.Titer)
	}
	l.rows[antigen][serum] = t
}

// Titer returns the layer's titer at (antigen, serum), or don't-care if
// absent.
func (l *Layer) Titer(antigen, serum int) titer.Titer {
	row := l.rows[antigen]
	if row == nil {
		return titer.DontCareTiter
	}
	t, ok := row[serum]
	if !ok {
		return titer.DontCareTiter
	}
	return t
}

// NumAntigens and NumSera report the layer's shape.
func (l *Layer) NumAntigens() int { return l.numAntigens }
func (l *Layer) NumSera() int     { return l.numSera }

// Table is the antigen×serum titer grid, optionally carrying an ordered
// list of layers. Exactly one of dense or sparse is non-nil.
type Table struct {
	numAntigens, numSera int
	dense                [][]titer.Titer       // numAntigens x numSera, or nil
	sparse                []map[int]titer.Titer // numAntigens entries, or nil
	layers               []*Layer
}

// NewDense returns a Table backed by a dense numAntigens×numSera grid.
// cells must be in row-major antigen-then-serum order.
func NewDense(numAntigens, numSera int, cells [][]titer.Titer) (*Table, error) {
	if len(cells) != numAntigens {
		return nil, ErrStructureInvalid{Reason: "dense titers row count does not match antigen count"}
	}
	for _, row := range cells {
		if len(row) != numSera {
			return nil, ErrStructureInvalid{Reason: "dense titers row length does not match serum count"}
		}
	}
	return &Table{numAntigens: numAntigens, numSera: numSera, dense: cells}, nil
}

// NewSparse returns a Table backed by sparse per-antigen serum→titer maps
// (missing cells are don't-care). rows must have numAntigens entries; nil
// entries are treated as entirely don't-care rows.
func NewSparse(numAntigens, numSera int, rows []map[int]titer.Titer) (*Table, error) {
	if len(rows) != numAntigens {
		return nil, ErrStructureInvalid{Reason: "sparse titers row count does not match antigen count"}
	}
	return &Table{numAntigens: numAntigens, numSera: numSera, sparse: rows}, nil
}

// NumAntigens and NumSera report the table's shape.
func (t *Table) NumAntigens() int { return t.numAntigens }
func (t *Table) NumSera() int     { return t.numSera }

// IsSparse reports whether the table is backed by the sparse
// representation.
func (t *Table) IsSparse() bool { return t.sparse != nil }

// Titer returns the titer at (antigen, serum).
func (t *Table) Titer(antigen, serum int) titer.Titer {
	if t.dense != nil {
		return t.dense[antigen][serum]
	}
	row := t.sparse[antigen]
	if row == nil {
		return titer.DontCareTiter
	}
	ti, ok := row[serum]
	if !ok {
		return titer.DontCareTiter
	}
	return ti
}

// SetTiter overwrites the titer at (antigen, serum), regardless of
// representation.
func (t *Table) SetTiter(antigen, serum int, ti titer.Titer) {
	if t.dense != nil {
		t.dense[antigen][serum] = ti
		return
	}
	if t.sparse[antigen] == nil {
		t.sparse[antigen] = make(map[int]titer.Titer)
	}
	if ti.IsDontCare() {
		delete(t.sparse[antigen], serum)
		return
	}
	t.sparse[antigen][serum] = ti
}

// ToSparse returns a sparse copy of the table's top-level titers (layers
// are not copied).
func (t *Table) ToSparse() *Table {
	rows := make([]map[int]titer.Titer, t.numAntigens)
	for i := 0; i < t.numAntigens; i++ {
		for j := 0; j < t.numSera; j++ {
			ti := t.Titer(i, j)
			if ti.IsDontCare() {
				continue
			}
			if rows[i] == nil {
				rows[i] = make(map[int]titer.Titer)
			}
			rows[i][j] = ti
		}
	}
	out, _ := NewSparse(t.numAntigens, t.numSera, rows)
	return out
}

// ToDense returns a dense copy of the table's top-level titers (layers
// are not copied).
func (t *Table) ToDense() *Table {
	cells := make([][]titer.Titer, t.numAntigens)
	for i := 0; i < t.numAntigens; i++ {
		cells[i] = make([]titer.Titer, t.numSera)
		for j := 0; j < t.numSera; j++ {
			cells[i][j] = t.Titer(i, j)
		}
	}
	out, _ := NewDense(t.numAntigens, t.numSera, cells)
	return out
}

// NumberOfNonDontCares returns the number of cells that are not
// don't-care.
func (t *Table) NumberOfNonDontCares() int {
	n := 0
	for i := 0; i < t.numAntigens; i++ {
		for j := 0; j < t.numSera; j++ {
			if !t.Titer(i, j).IsDontCare() {
				n++
			}
		}
	}
	return n
}

// TitrationsForAntigen returns the number of non-don't-care cells in row
// i.
func (t *Table) TitrationsForAntigen(i int) int {
	n := 0
	for j := 0; j < t.numSera; j++ {
		if !t.Titer(i, j).IsDontCare() {
			n++
		}
	}
	return n
}

// TitrationsForSerum returns the number of non-don't-care cells in column
// j.
func (t *Table) TitrationsForSerum(j int) int {
	n := 0
	for i := 0; i < t.numAntigens; i++ {
		if !t.Titer(i, j).IsDontCare() {
			n++
		}
	}
	return n
}

// TitersExisting returns every non-don't-care cell, in row-major
// (antigen first) order.
func (t *Table) TitersExisting() []Cell {
	var out []Cell
	for i := 0; i < t.numAntigens; i++ {
		for j := 0; j < t.numSera; j++ {
			ti := t.Titer(i, j)
			if ti.IsDontCare() {
				continue
			}
			out = append(out, Cell{Antigen: i, Serum: j, Titer: ti})
		}
	}
	return out
}

// Layers returns the number of layers the table carries (0 or 1, or the
// number of source charts that contributed, per spec.md §3).
func (t *Table) Layers() int { return len(t.layers) }

// Layer returns layer k, or ErrDataNotAvailable if k is out of range.
func (t *Table) Layer(k int) (*Layer, error) {
	if k < 0 || k >= len(t.layers) {
		return nil, ErrDataNotAvailable{What: "layer"}
	}
	return t.layers[k], nil
}

// AddLayer appends a layer to the table's layer list.
func (t *Table) AddLayer(l *Layer) { t.layers = append(t.layers, l) }

// SetLayers replaces the table's layer list wholesale.
func (t *Table) SetLayers(layers []*Layer) { t.layers = layers }

// TitersForLayers returns the per-layer sequence of titers at (antigen,
// serum), skipping layers where the cell is don't-care.
func (t *Table) TitersForLayers(antigen, serum int) []titer.Titer {
	var out []titer.Titer
	for _, l := range t.layers {
		ti := l.Titer(antigen, serum)
		if ti.IsDontCare() {
			continue
		}
		out = append(out, ti)
	}
	return out
}

// MergeSymbol is the one-letter summary of how set_from_layers combined
// a cell's per-layer contributions into the top-level titer.
type MergeSymbol byte

// Supported MergeSymbols, per spec.md §4.C.
const (
	SymbolNumericMean  MergeSymbol = 'N'
	SymbolAllLessThan  MergeSymbol = '<'
	SymbolAllMoreThan  MergeSymbol = '>'
	SymbolDodgyMerge   MergeSymbol = '~'
	SymbolAllEqual     MergeSymbol = '='
	SymbolLostLow      MergeSymbol = 'L'
	SymbolLostHigh     MergeSymbol = 'U'
	SymbolConflict     MergeSymbol = 'X'
)

// MergeReportEntry describes how one cell's layers were combined.
type MergeReportEntry struct {
	Antigen, Serum int
	KindsSummary   string
	Symbol         MergeSymbol
}

// SetFromLayers recomputes every top-level titer as the deterministic
// merge of the table's layers (spec.md §4.C) and returns the list of
// per-cell merge report entries. It is a pure function of the layers:
// calling it twice in a row yields identical titers (spec.md §8 item 3).
func (t *Table) SetFromLayers() []MergeReportEntry {
	var entries []MergeReportEntry
	for i := 0; i < t.numAntigens; i++ {
		for j := 0; j < t.numSera; j++ {
			contributions := t.TitersForLayers(i, j)
			if len(contributions) == 0 {
				t.SetTiter(i, j, titer.DontCareTiter)
				continue
			}
			merged, symbol := mergeCell(contributions)
			t.SetTiter(i, j, merged)
			entries = append(entries, MergeReportEntry{
				Antigen:      i,
				Serum:        j,
				KindsSummary: kindsSummary(contributions),
				Symbol:       symbol,
			})
		}
	}
	return entries
}

func kindsSummary(contributions []titer.Titer) string {
	s := make([]byte, 0, len(contributions))
	for _, c := range contributions {
		switch c.Kind() {
		case titer.Regular:
			s = append(s, 'R')
		case titer.LessThan:
			s = append(s, '<')
		case titer.MoreThan:
			s = append(s, '>')
		case titer.Dodgy:
			s = append(s, '~')
		}
	}
	return string(s)
}

func allEqual(contributions []titer.Titer) bool {
	for _, c := range contributions[1:] {
		if c.Kind() != contributions[0].Kind() || c.Value() != contributions[0].Value() {
			return false
		}
	}
	return true
}

func mergeCell(contributions []titer.Titer) (titer.Titer, MergeSymbol) {
	var numeric []titer.Titer
	for _, c := range contributions {
		if c.IsRegular() || c.IsDodgy() {
			numeric = append(numeric, c)
		}
	}
	if len(numeric) > 0 {
		if allEqual(numeric) && len(numeric) == len(contributions) {
			return numeric[0], SymbolAllEqual
		}
		sum := 0.0
		allRegular := true
		for _, c := range numeric {
			v, _ := c.Similarity()
			sum += v
			if !c.IsRegular() {
				allRegular = false
			}
		}
		meanLog := sum / float64(len(numeric))
		kind := titer.Dodgy
		symbol := SymbolDodgyMerge
		if allRegular {
			kind = titer.Regular
			symbol = SymbolNumericMean
		}
		return titer.FromLog2(meanLog, kind), symbol
	}

	var lessThan, moreThan []titer.Titer
	for _, c := range contributions {
		switch {
		case c.IsLessThan():
			lessThan = append(lessThan, c)
		case c.IsMoreThan():
			moreThan = append(moreThan, c)
		}
	}
	switch {
	case len(lessThan) > 0 && len(moreThan) > 0:
		smallestLess := minValue(lessThan)
		largestMore := maxValue(moreThan)
		midLog := (smallestLess.LoggedForColumnBases() + largestMore.LoggedForColumnBases()) / 2
		return titer.FromLog2(midLog, titer.Dodgy), SymbolConflict
	case len(lessThan) > 0:
		best := minValue(lessThan)
		if allSameValue(lessThan) {
			return best, SymbolAllLessThan
		}
		return best, SymbolLostHigh
	case len(moreThan) > 0:
		best := maxValue(moreThan)
		if allSameValue(moreThan) {
			return best, SymbolAllMoreThan
		}
		return best, SymbolLostLow
	}
	// Unreachable: contributions is non-empty and every titer is
	// regular, dodgy, less-than or more-than.
	return titer.DontCareTiter, SymbolConflict
}

func allSameValue(ts []titer.Titer) bool {
	for _, t := range ts[1:] {
		if t.Value() != ts[0].Value() {
			return false
		}
	}
	return true
}

func minValue(ts []titer.Titer) titer.Titer {
	sorted := append([]titer.Titer(nil), ts...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Value() < sorted[b].Value() })
	return sorted[0]
}

func maxValue(ts []titer.Titer) titer.Titer {
	sorted := append([]titer.Titer(nil), ts...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Value() > sorted[b].Value() })
	return sorted[0]
}

// ReportMergeEntries renders merge report entries into a message.Report,
// one Info message per entry, so callers that want visibility into the
// layer merge can inspect it through the same channel as other
// diagnostics.
func ReportMergeEntries(entries []MergeReportEntry) *message.Report {
	r := &message.Report{}
	for _, e := range entries {
		r.Infof("cell", "antigen %d serum %d: %s -> %c", e.Antigen, e.Serum, e.KindsSummary, e.Symbol)
	}
	return r
}
