package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// HazardDataKind enumerates the closed set of hazard getter variants. The
// calculation configuration selects a variant explicitly; there is no
// runtime subclass discovery.
type HazardDataKind int

const (
	// HazardCurves: per-asset hazard curves.
	HazardCurves HazardDataKind = iota
	// ScenarioGMVs: per-asset ground motion value arrays, no rupture
	// bookkeeping.
	ScenarioGMVs
	// EventGMVs: per-asset ground motion value arrays aligned on the sorted
	// union of contributing rupture tags, zero-filled where a rupture did
	// not touch the asset's site.
	EventGMVs
	// BCRPair: original and retrofitted hazard joined per asset.
	BCRPair
)

// HazardData is what a getter hands to a risk workflow. Assets and the
// per-asset rows are positionally aligned; only the fields matching Kind are
// populated.
type HazardData struct {
	Kind        HazardDataKind
	Assets      []*models.Asset
	Curves      [][]models.CurvePoint
	GMVs        [][]float64
	RuptureTags []string
	Retro       *HazardData
}

// HazardGetter fetches the hazard needed by a risk calculation for a set of
// assets sharing one taxonomy. Assets whose site has no hazard within reach
// are excluded from the returned data and logged; the job continues.
type HazardGetter interface {
	Kind() HazardDataKind
	OutputID() uuid.UUID
	Weight() float64
	TargetAssets() []*models.Asset
	Get(ctx context.Context) (*HazardData, error)
}

// getterBase carries what every getter variant needs: the hazard output
// identity, the realization weight, and the site->assets association built
// by the associator.
type getterBase struct {
	outputID   uuid.UUID
	weight     float64
	imt        string
	siteAssets map[int64][]*models.Asset
	logger     *zap.Logger
}

func (g *getterBase) OutputID() uuid.UUID { return g.outputID }
func (g *getterBase) Weight() float64     { return g.weight }

func (g *getterBase) TargetAssets() []*models.Asset {
	var out []*models.Asset
	for _, siteID := range g.sortedSiteIDs() {
		out = append(out, g.siteAssets[siteID]...)
	}
	return out
}

// sortedSiteIDs fixes the iteration order; repeatable runs depend on it.
func (g *getterBase) sortedSiteIDs() []int64 {
	ids := make([]int64, 0, len(g.siteAssets))
	for id := range g.siteAssets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HazardCurveGetter fetches the hazard curve of each asset's site.
type HazardCurveGetter struct {
	getterBase
	curves CurveReader
}

// NewHazardCurveGetter creates a curve-based getter.
func NewHazardCurveGetter(outputID uuid.UUID, weight float64, imt string, siteAssets map[int64][]*models.Asset, curves CurveReader, logger *zap.Logger) *HazardCurveGetter {
	return &HazardCurveGetter{
		getterBase: getterBase{
			outputID:   outputID,
			weight:     weight,
			imt:        imt,
			siteAssets: siteAssets,
			logger:     logger.Named("curve_getter"),
		},
		curves: curves,
	}
}

func (g *HazardCurveGetter) Kind() HazardDataKind { return HazardCurves }

// Get returns one curve per asset, shared between assets on the same site.
func (g *HazardCurveGetter) Get(ctx context.Context) (*HazardData, error) {
	data := &HazardData{Kind: HazardCurves}
	for _, siteID := range g.sortedSiteIDs() {
		curve, err := g.curves.CurveForSite(ctx, g.outputID, g.imt, siteID)
		if err != nil {
			return nil, fmt.Errorf("getting curve for site %d: %w", siteID, err)
		}
		for _, asset := range g.siteAssets[siteID] {
			data.Assets = append(data.Assets, asset)
			data.Curves = append(data.Curves, curve)
		}
	}
	return data, nil
}

// ScenarioGetter fetches raw ground motion values per asset site, with no
// rupture alignment. Used by scenario-based workflows.
type ScenarioGetter struct {
	getterBase
	gmfs         GMFReader
	collectionID uuid.UUID
}

// NewScenarioGetter creates a scenario getter reading from one GMF
// collection.
func NewScenarioGetter(outputID uuid.UUID, weight float64, imt string, siteAssets map[int64][]*models.Asset, gmfs GMFReader, collectionID uuid.UUID, logger *zap.Logger) *ScenarioGetter {
	return &ScenarioGetter{
		getterBase: getterBase{
			outputID:   outputID,
			weight:     weight,
			imt:        imt,
			siteAssets: siteAssets,
			logger:     logger.Named("scenario_getter"),
		},
		gmfs:         gmfs,
		collectionID: collectionID,
	}
}

func (g *ScenarioGetter) Kind() HazardDataKind { return ScenarioGMVs }

func (g *ScenarioGetter) Get(ctx context.Context) (*HazardData, error) {
	data := &HazardData{Kind: ScenarioGMVs}
	for _, siteID := range g.sortedSiteIDs() {
		entry, err := g.gmfs.ValuesForSite(ctx, g.collectionID, g.imt, siteID)
		if err != nil {
			return nil, fmt.Errorf("getting gmvs for site %d: %w", siteID, err)
		}
		if entry == nil || len(entry.Values) == 0 {
			g.logger.Warn("No gmvs for site, assets excluded",
				zap.Int64("site_id", siteID),
				zap.String("imt", g.imt),
				zap.Int("assets", len(g.siteAssets[siteID])))
			continue
		}
		for _, asset := range g.siteAssets[siteID] {
			data.Assets = append(data.Assets, asset)
			data.GMVs = append(data.GMVs, entry.Values)
		}
	}
	return data, nil
}

// GroundMotionValuesGetter fetches ground motion values aligned across all
// assets on the sorted union of contributing rupture tags. Sites untouched
// by a given rupture get a zero in that position, which keeps the per-asset
// rows positionally comparable in event-based workflows.
type GroundMotionValuesGetter struct {
	getterBase
	gmfs         GMFReader
	collectionID uuid.UUID
}

// NewGroundMotionValuesGetter creates an event-based getter reading from one
// GMF collection.
func NewGroundMotionValuesGetter(outputID uuid.UUID, weight float64, imt string, siteAssets map[int64][]*models.Asset, gmfs GMFReader, collectionID uuid.UUID, logger *zap.Logger) *GroundMotionValuesGetter {
	return &GroundMotionValuesGetter{
		getterBase: getterBase{
			outputID:   outputID,
			weight:     weight,
			imt:        imt,
			siteAssets: siteAssets,
			logger:     logger.Named("gmv_getter"),
		},
		gmfs:         gmfs,
		collectionID: collectionID,
	}
}

func (g *GroundMotionValuesGetter) Kind() HazardDataKind { return EventGMVs }

func (g *GroundMotionValuesGetter) Get(ctx context.Context) (*HazardData, error) {
	type siteEntry struct {
		siteID int64
		byTag  map[string]float64
	}

	tagSet := make(map[string]struct{})
	var entries []siteEntry
	for _, siteID := range g.sortedSiteIDs() {
		entry, err := g.gmfs.ValuesForSite(ctx, g.collectionID, g.imt, siteID)
		if err != nil {
			return nil, fmt.Errorf("getting gmvs for site %d: %w", siteID, err)
		}
		if entry == nil || len(entry.Values) == 0 {
			g.logger.Warn("No gmvs for site, assets excluded",
				zap.Int64("site_id", siteID),
				zap.String("imt", g.imt),
				zap.Int("assets", len(g.siteAssets[siteID])))
			continue
		}
		byTag := make(map[string]float64, len(entry.Values))
		for i, tag := range entry.RuptureTags {
			byTag[tag] = entry.Values[i]
			tagSet[tag] = struct{}{}
		}
		entries = append(entries, siteEntry{siteID: siteID, byTag: byTag})
	}

	allTags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		allTags = append(allTags, tag)
	}
	sort.Strings(allTags)

	data := &HazardData{Kind: EventGMVs, RuptureTags: allTags}
	for _, se := range entries {
		row := make([]float64, len(allTags))
		for i, tag := range allTags {
			row[i] = se.byTag[tag] // zero when the rupture missed this site
		}
		for _, asset := range g.siteAssets[se.siteID] {
			data.Assets = append(data.Assets, asset)
			data.GMVs = append(data.GMVs, row)
		}
	}
	return data, nil
}

// BCRGetter pairs the hazard of the original and the retrofitted asset
// configuration. The two sides are joined per asset id: both getters must
// yield data for the same assets, and a mismatch is an error rather than a
// silent positional zip.
type BCRGetter struct {
	orig  HazardGetter
	retro HazardGetter
}

// NewBCRGetter pairs two getters over the same assets.
func NewBCRGetter(orig, retro HazardGetter) *BCRGetter {
	return &BCRGetter{orig: orig, retro: retro}
}

func (g *BCRGetter) Kind() HazardDataKind          { return BCRPair }
func (g *BCRGetter) OutputID() uuid.UUID           { return g.orig.OutputID() }
func (g *BCRGetter) Weight() float64               { return g.orig.Weight() }
func (g *BCRGetter) TargetAssets() []*models.Asset { return g.orig.TargetAssets() }

func (g *BCRGetter) Get(ctx context.Context) (*HazardData, error) {
	orig, err := g.orig.Get(ctx)
	if err != nil {
		return nil, err
	}
	retro, err := g.retro.Get(ctx)
	if err != nil {
		return nil, err
	}

	retroByAsset := make(map[int64]int, len(retro.Assets))
	for i, asset := range retro.Assets {
		retroByAsset[asset.ID] = i
	}
	if len(orig.Assets) != len(retro.Assets) {
		return nil, fmt.Errorf("bcr getter: original has %d assets, retrofitted has %d",
			len(orig.Assets), len(retro.Assets))
	}
	aligned := &HazardData{Kind: retro.Kind, RuptureTags: retro.RuptureTags}
	for _, asset := range orig.Assets {
		i, ok := retroByAsset[asset.ID]
		if !ok {
			return nil, fmt.Errorf("bcr getter: no retrofitted hazard for asset %d", asset.ID)
		}
		aligned.Assets = append(aligned.Assets, retro.Assets[i])
		if retro.GMVs != nil {
			aligned.GMVs = append(aligned.GMVs, retro.GMVs[i])
		}
		if retro.Curves != nil {
			aligned.Curves = append(aligned.Curves, retro.Curves[i])
		}
	}

	out := *orig
	out.Kind = BCRPair
	out.Retro = aligned
	return &out, nil
}
