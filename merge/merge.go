// Copyright ©2024 The acmacs-chart Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package merge combines two charts into one: it matches common antigens
// and sera (package match), remaps every point onto a single target
// index space, unions the titer layers and recomputes the top-level
// titers (package table), and merges the two charts' best projections
// under one of five policies (spec.md §4.J), the way
// cc/chart/v3/merge.hh's merge_settings_t/merge_data_t/merge() define the
// same operation: an index_mapping_t per antigen/serum side recording the
// point's target index and whether it was common to both charts.
package merge

import (
	"fmt"
	"sort"

	"github.com/skepner/acmacs-chart/chart"
	"github.com/skepner/acmacs-chart/internal/message"
	"github.com/skepner/acmacs-chart/layout"
	"github.com/skepner/acmacs-chart/match"
	"github.com/skepner/acmacs-chart/procrustes"
	"github.com/skepner/acmacs-chart/relax"
	"github.com/skepner/acmacs-chart/table"
	"github.com/skepner/acmacs-chart/titer"
)

// ProjectionMergeType selects how (or whether) the merged chart gets a
// projection built from the two source projections.
type ProjectionMergeType int

// Supported ProjectionMergeTypes (spec.md §4.J step 5).
const (
	// TypeSimple produces no projection at all.
	TypeSimple ProjectionMergeType = iota + 1
	// TypeIncremental copies the primary's best projection verbatim;
	// secondary-only points are left NaN for a later relax to place.
	TypeIncremental
	// TypeOverlay procrustes-aligns the secondary's best projection onto
	// the primary's and midpoints common points.
	TypeOverlay
	// TypeOverlayRelax is TypeOverlay followed by a relax with every
	// primary-sourced point held unmovable.
	TypeOverlayRelax
	// TypeOverlayRelaxKeepPrimary is TypeOverlay without midpointing
	// (common points keep the primary's position), then the same
	// unmovable relax as TypeOverlayRelax.
	TypeOverlayRelaxKeepPrimary
)

func (t ProjectionMergeType) String() string {
	switch t {
	case TypeIncremental:
		return "type2"
	case TypeOverlay:
		return "type3"
	case TypeOverlayRelax:
		return "type4"
	case TypeOverlayRelaxKeepPrimary:
		return "type5"
	default:
		return "type1"
	}
}

// Settings controls a Merge call.
type Settings struct {
	MatchLevel            match.Level
	ProjectionMerge       ProjectionMergeType
	CombineCheatingAssays bool
	RemoveDistinct        bool

	// MinimumColumnBasis feeds the column bases used by the type4/type5
	// relax step.
	MinimumColumnBasis int
	RelaxOptions       relax.Options
}

// DefaultSettings returns reasonable defaults: automatic matching,
// overlay-with-relax projection merge.
func DefaultSettings() Settings {
	return Settings{
		MatchLevel:      match.LevelAutomatic,
		ProjectionMerge: TypeOverlayRelax,
		RelaxOptions:    relax.DefaultOptions(),
	}
}

// Error is returned for a merge that cannot proceed at all (as opposed to
// a degraded result, which is reported via Report.Messages).
type Error struct{ Reason string }

func (e Error) Error() string { return "merge: " + e.Reason }

// IndexMapping records one source-chart point's fate in the merge: its
// target index in the merged chart (-1 if the point was dropped, e.g. by
// remove_distinct), and whether it was found common to both charts.
type IndexMapping struct {
	Index  int
	Common bool
}

// Report is the MergeData companion to the merged Chart: the matchings
// used, the index mapping for every antigen/serum on both sides, the
// per-cell titer merge outcome, and any non-fatal diagnostics.
type Report struct {
	AntigenMatching *match.Matching
	SerumMatching   *match.Matching

	AntigensPrimaryTarget   []IndexMapping
	AntigensSecondaryTarget []IndexMapping
	SeraPrimaryTarget       []IndexMapping
	SeraSecondaryTarget     []IndexMapping

	TiterMergeReport       []table.MergeReportEntry
	CombinedCheatingAssays bool

	AntigensInMerge int
	SeraInMerge     int

	Messages *message.Report
}

// NumberOfAntigensInMerge, NumberOfSeraInMerge and NumberOfPointsInMerge
// report the merged chart's shape.
func (r *Report) NumberOfAntigensInMerge() int { return r.AntigensInMerge }
func (r *Report) NumberOfSeraInMerge() int     { return r.SeraInMerge }
func (r *Report) NumberOfPointsInMerge() int   { return r.AntigensInMerge + r.SeraInMerge }

// Merge combines primary and secondary into one chart per settings,
// implementing spec.md §4.J steps 1-6.
func Merge(primary, secondary *chart.Chart, settings Settings) (*chart.Chart, *Report, error) {
	if primary == nil || secondary == nil {
		return nil, nil, Error{Reason: "both charts must be non-nil"}
	}
	if primary.Titers == nil || secondary.Titers == nil {
		return nil, nil, Error{Reason: "both charts must have titers"}
	}

	messages := &message.Report{}

	antigenMatching := match.Antigens(primary.Antigens, secondary.Antigens, settings.MatchLevel)
	serumMatching := match.Sera(primary.Sera, secondary.Sera, settings.MatchLevel)

	mergedAntigens, antigensPrimaryTarget, antigensSecondaryTarget := buildAntigenTargets(
		primary.Antigens, secondary.Antigens, antigenMatching, settings.RemoveDistinct, messages)
	mergedSera, seraPrimaryTarget, seraSecondaryTarget := buildSerumTargets(
		primary.Sera, secondary.Sera, serumMatching, settings.RemoveDistinct, messages)
	for _, s := range mergedSera {
		s.ClearHomologousCache()
	}

	numMergedAntigens := len(mergedAntigens)
	numMergedSera := len(mergedSera)

	cheating := false
	if settings.CombineCheatingAssays {
		cheating = detectCheatingAssay(primary, secondary, antigenMatching, serumMatching)
		if !cheating {
			messages.Infof("merge", "combine_cheating_assays requested but preconditions not met (secondary sera not all common, or common titers differ); falling back to normal merge")
		}
	}

	layers := buildMergedLayers(primary, secondary,
		antigensPrimaryTarget, antigensSecondaryTarget, seraPrimaryTarget, seraSecondaryTarget,
		numMergedAntigens, numMergedSera, cheating, antigenMatching)

	rows := make([]map[int]titer.Titer, numMergedAntigens)
	newTable, err := table.NewSparse(numMergedAntigens, numMergedSera, rows)
	if err != nil {
		return nil, nil, Error{Reason: "building merged titers: " + err.Error()}
	}
	newTable.SetLayers(layers)
	titerMergeReport := newTable.SetFromLayers()

	primaryPointTarget := pointTargets(antigensPrimaryTarget, seraPrimaryTarget, primary.NumAntigens(), numMergedAntigens)
	secondaryPointTarget := pointTargets(antigensSecondaryTarget, seraSecondaryTarget, secondary.NumAntigens(), numMergedAntigens)

	numMergedPoints := numMergedAntigens + numMergedSera
	projection := buildProjection(primary, secondary, newTable, settings,
		antigenMatching, serumMatching, primaryPointTarget, secondaryPointTarget, numMergedPoints, messages)

	merged := chart.New()
	merged.Info = chart.Info{
		Name:       primary.Info.Name,
		Virus:      primary.Info.Virus,
		Subtype:    primary.Info.Subtype,
		Assay:      primary.Info.Assay,
		Date:       primary.Info.Date,
		Lab:        primary.Info.Lab,
		RBCSpecies: primary.Info.RBCSpecies,
		Subset:     primary.Info.Subset,
		TableType:  primary.Info.TableType,
		Sources:    []chart.Info{primary.Info, secondary.Info},
	}
	merged.Antigens = mergedAntigens
	merged.Sera = mergedSera
	merged.Titers = newTable
	if projection != nil {
		merged.AddProjection(projection)
	}
	merged.PlotSpec = mergePlotSpec(primary.PlotSpec, antigensPrimaryTarget, seraPrimaryTarget, primary.NumAntigens(), numMergedAntigens, numMergedSera)

	report := &Report{
		AntigenMatching:         antigenMatching,
		SerumMatching:           serumMatching,
		AntigensPrimaryTarget:   antigensPrimaryTarget,
		AntigensSecondaryTarget: antigensSecondaryTarget,
		SeraPrimaryTarget:       seraPrimaryTarget,
		SeraSecondaryTarget:     seraSecondaryTarget,
		TiterMergeReport:        titerMergeReport,
		CombinedCheatingAssays:  cheating,
		AntigensInMerge:         numMergedAntigens,
		SeraInMerge:             numMergedSera,
		Messages:                messages,
	}
	return merged, report, nil
}

// pointTargets converts per-antigen/per-serum IndexMappings into a single
// flat point-index table (spec.md §3 point numbering: antigens then
// sera), -1 where the source point was dropped.
func pointTargets(antigensTarget, seraTarget []IndexMapping, numAntigens, numMergedAntigens int) []int {
	out := make([]int, numAntigens+len(seraTarget))
	for i, m := range antigensTarget {
		if m.Index < 0 {
			out[i] = -1
			continue
		}
		out[i] = m.Index
	}
	for j, m := range seraTarget {
		idx := numAntigens + j
		if m.Index < 0 {
			out[idx] = -1
			continue
		}
		out[idx] = numMergedAntigens + m.Index
	}
	return out
}

// buildAntigenTargets computes the target index mapping for both sides
// and the merged antigen records (spec.md §4.J steps 2-3). Every primary
// antigen gets a fresh index unless removeDistinct drops a
// "DISTINCT"-annotated one; a secondary antigen common to a (kept)
// primary one reuses its target, merging empty fields in; every other
// secondary antigen is appended as a new record.
func buildAntigenTargets(primaryAntigens, secondaryAntigens []*chart.Antigen, m *match.Matching, removeDistinct bool, messages *message.Report) (merged []*chart.Antigen, primaryTarget, secondaryTarget []IndexMapping) {
	primaryTarget = make([]IndexMapping, len(primaryAntigens))
	merged = make([]*chart.Antigen, 0, len(primaryAntigens)+len(secondaryAntigens))
	for i, a := range primaryAntigens {
		if removeDistinct && hasAnnotation(a.Annotations, "DISTINCT") {
			primaryTarget[i] = IndexMapping{Index: -1}
			continue
		}
		primaryTarget[i] = IndexMapping{Index: len(merged)}
		merged = append(merged, cloneAntigen(a))
	}

	secondaryToPrimary := make(map[int]int, len(m.Pairs))
	for _, p := range m.Pairs {
		secondaryToPrimary[p.Secondary] = p.Primary
	}

	secondaryTarget = make([]IndexMapping, len(secondaryAntigens))
	for j, a := range secondaryAntigens {
		if pi, ok := secondaryToPrimary[j]; ok && primaryTarget[pi].Index >= 0 {
			target := primaryTarget[pi].Index
			mergeAntigenFields(merged[target], a, messages)
			primaryTarget[pi].Common = true
			secondaryTarget[j] = IndexMapping{Index: target, Common: true}
			continue
		}
		secondaryTarget[j] = IndexMapping{Index: len(merged)}
		merged = append(merged, cloneAntigen(a))
	}
	return merged, primaryTarget, secondaryTarget
}

// buildSerumTargets is buildAntigenTargets's serum-side counterpart.
func buildSerumTargets(primarySera, secondarySera []*chart.Serum, m *match.Matching, removeDistinct bool, messages *message.Report) (merged []*chart.Serum, primaryTarget, secondaryTarget []IndexMapping) {
	primaryTarget = make([]IndexMapping, len(primarySera))
	merged = make([]*chart.Serum, 0, len(primarySera)+len(secondarySera))
	for i, s := range primarySera {
		if removeDistinct && hasAnnotation(s.Annotations, "DISTINCT") {
			primaryTarget[i] = IndexMapping{Index: -1}
			continue
		}
		primaryTarget[i] = IndexMapping{Index: len(merged)}
		merged = append(merged, cloneSerum(s))
	}

	secondaryToPrimary := make(map[int]int, len(m.Pairs))
	for _, p := range m.Pairs {
		secondaryToPrimary[p.Secondary] = p.Primary
	}

	secondaryTarget = make([]IndexMapping, len(secondarySera))
	for j, s := range secondarySera {
		if pi, ok := secondaryToPrimary[j]; ok && primaryTarget[pi].Index >= 0 {
			target := primaryTarget[pi].Index
			mergeSerumFields(merged[target], s, messages)
			primaryTarget[pi].Common = true
			secondaryTarget[j] = IndexMapping{Index: target, Common: true}
			continue
		}
		secondaryTarget[j] = IndexMapping{Index: len(merged)}
		merged = append(merged, cloneSerum(s))
	}
	return merged, primaryTarget, secondaryTarget
}

func hasAnnotation(annotations []string, name string) bool {
	for _, a := range annotations {
		if a == name {
			return true
		}
	}
	return false
}

func cloneAntigen(a *chart.Antigen) *chart.Antigen {
	c := *a
	return &c
}

func cloneSerum(s *chart.Serum) *chart.Serum {
	c := *s
	c.ClearHomologousCache()
	return &c
}

// mergeAntigenFields fills dst's empty fields from src and warns on
// mismatched non-empty fields (spec.md §4.J step 3).
func mergeAntigenFields(dst, src *chart.Antigen, messages *message.Report) {
	mergeStringField(&dst.Date, src.Date, dst.Name, "date", messages)
	mergeStringField(&dst.Lineage, src.Lineage, dst.Name, "lineage", messages)
	mergeStringField(&dst.Continent, src.Continent, dst.Name, "continent", messages)
	dst.Clades = mergeStringSlice(dst.Clades, src.Clades)
	dst.LabIDs = mergeStringSlice(dst.LabIDs, src.LabIDs)
	if dst.AASequence == nil && src.AASequence != nil {
		dst.SetAASequence(src.AASequenceText())
	}
	if dst.NucSequence == nil && src.NucSequence != nil {
		dst.SetNucSequence(src.NucSequenceText())
	}
	dst.Attributes = mergeAttributes(dst.Attributes, src.Attributes, dst.Name, messages)
}

// mergeSerumFields is mergeAntigenFields's serum-side counterpart.
func mergeSerumFields(dst, src *chart.Serum, messages *message.Report) {
	mergeStringField(&dst.Lineage, src.Lineage, dst.Name, "lineage", messages)
	mergeStringField(&dst.SerumSpecies, src.SerumSpecies, dst.Name, "serum species", messages)
	if dst.AASequence == nil && src.AASequence != nil {
		dst.SetAASequence(src.AASequenceText())
	}
	dst.Attributes = mergeAttributes(dst.Attributes, src.Attributes, dst.Name, messages)
}

func mergeStringField(dst *string, src, context, field string, messages *message.Report) {
	if *dst == "" {
		*dst = src
		return
	}
	if src != "" && src != *dst {
		messages.Warningf(context, "%s mismatch: %q vs %q, keeping primary", field, *dst, src)
	}
}

func mergeStringSlice(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	sort.Strings(out)
	return out
}

func mergeAttributes(dst, src map[string]any, context string, messages *message.Report) map[string]any {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		existing, ok := dst[k]
		if !ok {
			dst[k] = v
			continue
		}
		if fmt.Sprintf("%v", existing) != fmt.Sprintf("%v", v) {
			messages.Warningf(context, "attribute %q mismatch: %v vs %v, keeping primary", k, existing, v)
		}
	}
	return dst
}

// detectCheatingAssay reports whether secondary's reference antigens and
// sera are all common with primary, with identical titers wherever both
// sides have a titer for a common pair: the precondition for
// combine_cheating_assays (spec.md §4.J step 2).
func detectCheatingAssay(primary, secondary *chart.Chart, antigenMatching, serumMatching *match.Matching) bool {
	if len(serumMatching.Pairs) == 0 || len(serumMatching.UnmatchedSecondary) > 0 {
		return false
	}
	for _, ap := range antigenMatching.Pairs {
		for _, sp := range serumMatching.Pairs {
			secondaryTiter := secondary.Titers.Titer(ap.Secondary, sp.Secondary)
			primaryTiter := primary.Titers.Titer(ap.Primary, sp.Primary)
			if secondaryTiter.IsDontCare() || primaryTiter.IsDontCare() {
				continue
			}
			if secondaryTiter != primaryTiter {
				return false
			}
		}
	}
	return true
}

// sourceLayers returns t's own layers, or (if it carries none) a single
// layer synthesized from its top-level titers, so a chart that was never
// itself a merge still contributes one layer (spec.md §4.J step 4).
func sourceLayers(t *table.Table) []*table.Layer {
	if t.Layers() > 0 {
		layers := make([]*table.Layer, t.Layers())
		for i := range layers {
			l, _ := t.Layer(i)
			layers[i] = l
		}
		return layers
	}
	layer := table.NewLayer(t.NumAntigens(), t.NumSera())
	for _, cell := range t.TitersExisting() {
		layer.Set(cell.Antigen, cell.Serum, cell.Titer)
	}
	return []*table.Layer{layer}
}

// remapLayer reindexes a source layer's cells into the merged antigen/
// serum index space, dropping cells whose antigen or serum was removed
// (e.g. by remove_distinct) or, when skipAntigen is set, whose antigen is
// a common one already covered by the primary side (combine_cheating_
// assays, spec.md §4.J step 2).
func remapLayer(layer *table.Layer, antigenTarget, serumTarget []IndexMapping, numAntigens, numSera int, skipAntigen map[int]bool) *table.Layer {
	out := table.NewLayer(numAntigens, numSera)
	for i := 0; i < layer.NumAntigens(); i++ {
		if skipAntigen != nil && skipAntigen[i] {
			continue
		}
		ai := antigenTarget[i]
		if ai.Index < 0 {
			continue
		}
		for j := 0; j < layer.NumSera(); j++ {
			sj := serumTarget[j]
			if sj.Index < 0 {
				continue
			}
			ti := layer.Titer(i, j)
			if ti.IsDontCare() {
				continue
			}
			out.Set(ai.Index, sj.Index, ti)
		}
	}
	return out
}

func buildMergedLayers(primary, secondary *chart.Chart,
	antigensPrimaryTarget, antigensSecondaryTarget, seraPrimaryTarget, seraSecondaryTarget []IndexMapping,
	numMergedAntigens, numMergedSera int, cheating bool, antigenMatching *match.Matching) []*table.Layer {

	var layers []*table.Layer
	for _, l := range sourceLayers(primary.Titers) {
		layers = append(layers, remapLayer(l, antigensPrimaryTarget, seraPrimaryTarget, numMergedAntigens, numMergedSera, nil))
	}

	var skip map[int]bool
	if cheating {
		skip = make(map[int]bool, len(antigenMatching.Pairs))
		for _, p := range antigenMatching.Pairs {
			skip[p.Secondary] = true
		}
	}
	for _, l := range sourceLayers(secondary.Titers) {
		layers = append(layers, remapLayer(l, antigensSecondaryTarget, seraSecondaryTarget, numMergedAntigens, numMergedSera, skip))
	}
	return layers
}

// commonPointPairs lists every matched antigen and serum pair as a single
// point-index pair, in each source chart's own point numbering
// (antigens first, then sera), the numbering procrustes.Align expects.
func commonPointPairs(primary, secondary *chart.Chart, antigenMatching, serumMatching *match.Matching) []procrustes.CommonPair {
	pairs := make([]procrustes.CommonPair, 0, len(antigenMatching.Pairs)+len(serumMatching.Pairs))
	for _, p := range antigenMatching.Pairs {
		pairs = append(pairs, procrustes.CommonPair{Primary: p.Primary, Secondary: p.Secondary})
	}
	primaryNumAntigens := primary.NumAntigens()
	secondaryNumAntigens := secondary.NumAntigens()
	for _, p := range serumMatching.Pairs {
		pairs = append(pairs, procrustes.CommonPair{
			Primary:   primaryNumAntigens + p.Primary,
			Secondary: secondaryNumAntigens + p.Secondary,
		})
	}
	return pairs
}

func buildProjection(primary, secondary *chart.Chart, newTable *table.Table, settings Settings,
	antigenMatching, serumMatching *match.Matching, primaryPointTarget, secondaryPointTarget []int,
	numMergedPoints int, messages *message.Report) *chart.Projection {

	switch settings.ProjectionMerge {
	case TypeSimple:
		return nil
	case TypeIncremental:
		return mergeProjectionIncremental(primary, primaryPointTarget, numMergedPoints)
	case TypeOverlay, TypeOverlayRelax, TypeOverlayRelaxKeepPrimary:
		midpoint := settings.ProjectionMerge != TypeOverlayRelaxKeepPrimary
		proj := mergeProjectionOverlay(primary, secondary, primaryPointTarget, secondaryPointTarget,
			antigenMatching, serumMatching, numMergedPoints, midpoint, messages)
		if proj == nil {
			return nil
		}
		if settings.ProjectionMerge == TypeOverlayRelax || settings.ProjectionMerge == TypeOverlayRelaxKeepPrimary {
			relaxOverlay(proj, primaryPointTarget, newTable, settings)
		}
		return proj
	default:
		return nil
	}
}

// mergeProjectionIncremental implements spec.md §4.J step 5 type2: copy
// the primary's best projection's coordinates into the merged point
// space; secondary-only points stay NaN.
func mergeProjectionIncremental(primary *chart.Chart, primaryPointTarget []int, numMergedPoints int) *chart.Projection {
	p := primary.BestProjection()
	if p == nil {
		return nil
	}
	dims := p.Dims()
	proj := chart.NewProjection(numMergedPoints, dims)
	transformed := p.TransformedLayout()
	for i := 0; i < p.NumPoints(); i++ {
		target := primaryPointTarget[i]
		if target < 0 {
			continue
		}
		if transformed.PointHasCoordinates(i) {
			proj.Layout.SetPoint(target, transformed.Point(i))
		}
		if p.Disconnected[i] {
			proj.Disconnected[target] = true
		}
	}
	proj.Comment = "merged: type2 incremental copy of primary's best projection"
	return proj
}

// mergeProjectionOverlay implements spec.md §4.J step 5 type3/type5:
// procrustes-align the secondary's best projection onto the primary's,
// then place every point, midpointing common points unless midpoint is
// false.
func mergeProjectionOverlay(primary, secondary *chart.Chart, primaryPointTarget, secondaryPointTarget []int,
	antigenMatching, serumMatching *match.Matching, numMergedPoints int, midpoint bool, messages *message.Report) *chart.Projection {

	primaryProj := primary.BestProjection()
	secondaryProj := secondary.BestProjection()
	if primaryProj == nil || secondaryProj == nil {
		messages.Infof("merge", "overlay projection merge requires a projection on both charts; no projection produced")
		return nil
	}
	dims := primaryProj.Dims()
	pairs := commonPointPairs(primary, secondary, antigenMatching, serumMatching)

	primaryTransformed := primaryProj.TransformedLayout()
	secondaryTransformed := secondaryProj.TransformedLayout()

	var alignedSecondary *layout.Layout
	alignResult, err := procrustes.Align(primaryTransformed, secondaryTransformed, pairs, procrustes.Options{})
	if err != nil {
		messages.Warningf("merge", "procrustes alignment failed (%v); secondary projection placed unaligned", err)
		alignedSecondary = secondaryTransformed
	} else {
		alignedSecondary = secondaryTransformed.Transform(alignResult.Transformation)
	}

	proj := chart.NewProjection(numMergedPoints, dims)
	for i := 0; i < primaryProj.NumPoints(); i++ {
		target := primaryPointTarget[i]
		if target < 0 {
			continue
		}
		if primaryTransformed.PointHasCoordinates(i) {
			proj.Layout.SetPoint(target, primaryTransformed.Point(i))
		}
		if primaryProj.Disconnected[i] {
			proj.Disconnected[target] = true
		}
	}

	common := make(map[int]bool, len(pairs))
	for _, p := range pairs {
		common[p.Secondary] = true
	}

	for j := 0; j < secondaryProj.NumPoints(); j++ {
		target := secondaryPointTarget[j]
		if target < 0 {
			continue
		}
		if secondaryProj.Disconnected[j] {
			proj.Disconnected[target] = true
		}
		if !alignedSecondary.PointHasCoordinates(j) {
			continue
		}
		coords := alignedSecondary.Point(j)
		if common[j] {
			if !midpoint {
				continue // type5: keep the primary's position as-is.
			}
			if proj.Layout.PointHasCoordinates(target) {
				existing := proj.Layout.Point(target)
				mid := make([]float64, dims)
				for k := range mid {
					mid[k] = (existing[k] + coords[k]) / 2
				}
				proj.Layout.SetPoint(target, mid)
			} else {
				proj.Layout.SetPoint(target, coords)
			}
			continue
		}
		proj.Layout.SetPoint(target, coords)
	}
	proj.Comment = "merged: procrustes overlay of primary and secondary best projections"
	return proj
}

// relaxOverlay implements the type4/type5 refinement step: every
// primary-sourced point (including common ones) is held unmovable, and
// the merged projection is relaxed so secondary-only points settle
// against the merged titers.
func relaxOverlay(proj *chart.Projection, primaryPointTarget []int, newTable *table.Table, settings Settings) {
	unmovable := make(map[int]bool)
	for _, target := range primaryPointTarget {
		if target >= 0 {
			unmovable[target] = true
		}
	}
	proj.Unmovable = unmovable
	proj.MinimumColumnBasis = settings.MinimumColumnBasis

	opts := settings.RelaxOptions
	opts.Incremental = true
	cb := table.Compute(newTable, settings.MinimumColumnBasis)
	relax.Run(newTable, cb, proj, opts)
}

// mergePlotSpec copies the primary's plot spec, remapping its per-point
// style index onto the merged point numbering; secondary-only points get
// the default (identity) style; the drawing order is cleared since it no
// longer spans a meaningful ordering (spec.md §4.J step 6).
func mergePlotSpec(primary *chart.PlotSpec, antigensPrimaryTarget, seraPrimaryTarget []IndexMapping, numPrimaryAntigens, numMergedAntigens, numMergedSera int) *chart.PlotSpec {
	if primary == nil {
		return nil
	}
	pointStyle := make([]int, numMergedAntigens+numMergedSera)
	for i, m := range antigensPrimaryTarget {
		if m.Index < 0 || i >= len(primary.PointStyle) {
			continue
		}
		pointStyle[m.Index] = primary.PointStyle[i]
	}
	for j, m := range seraPrimaryTarget {
		if m.Index < 0 {
			continue
		}
		sourceIdx := numPrimaryAntigens + j
		if sourceIdx >= len(primary.PointStyle) {
			continue
		}
		pointStyle[numMergedAntigens+m.Index] = primary.PointStyle[sourceIdx]
	}
	return &chart.PlotSpec{
		PointStyle:     pointStyle,
		Styles:         primary.Styles,
		ErrorLineColor: primary.ErrorLineColor,
	}
}
