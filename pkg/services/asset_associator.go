package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// AssetHazardAssociator joins assets to their nearest hazard site within a
// maximum distance. It is the in-memory SiteLocator implementation; the
// SQL-backed one in pkg/repositories produces the same groupings.
//
// Each asset maps to at most one site: the closest one within the cutoff,
// ties broken by the smaller site id so results stay deterministic. Assets
// with no qualifying site are reported, never silently dropped.
type AssetHazardAssociator struct {
	sites  []*models.Site
	assets []*models.Asset
	logger *zap.Logger
}

// NewAssetHazardAssociator creates an associator over a fixed site
// collection and exposure.
func NewAssetHazardAssociator(sites []*models.Site, assets []*models.Asset, logger *zap.Logger) *AssetHazardAssociator {
	return &AssetHazardAssociator{
		sites:  sites,
		assets: assets,
		logger: logger.Named("associator"),
	}
}

// NearestSites implements SiteLocator for the assets of one taxonomy.
// Groups come back ordered by site id, asset ids ascending within a group.
func (a *AssetHazardAssociator) NearestSites(ctx context.Context, taxonomy string, exposureModelID int64, maxDistanceKm float64) ([]SiteAssets, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var selected []*models.Asset
	for _, asset := range a.assets {
		if asset.Taxonomy == taxonomy && asset.ExposureModelID == exposureModelID {
			selected = append(selected, asset)
		}
	}

	bySite, missing := a.Associate(selected, maxDistanceKm)
	if len(missing) > 0 {
		a.logger.Warn("Assets are too far from the hazard sites and the risk cannot be computed",
			zap.String("taxonomy", taxonomy),
			zap.Float64("max_distance_km", maxDistanceKm),
			zap.Int("missing", len(missing)))
		for _, id := range missing {
			a.logger.Info("Missing hazard for asset", zap.Int64("asset_id", id))
		}
	}

	siteIDs := make([]int64, 0, len(bySite))
	for siteID := range bySite {
		siteIDs = append(siteIDs, siteID)
	}
	sort.Slice(siteIDs, func(i, j int) bool { return siteIDs[i] < siteIDs[j] })

	out := make([]SiteAssets, 0, len(siteIDs))
	for _, siteID := range siteIDs {
		out = append(out, SiteAssets{SiteID: siteID, AssetIDs: bySite[siteID]})
	}
	return out, nil
}

// Associate maps each asset to its single nearest site within the cutoff.
// Returns the site groupings plus the ids of assets with no qualifying site,
// both in ascending id order.
func (a *AssetHazardAssociator) Associate(assets []*models.Asset, maxDistanceKm float64) (map[int64][]int64, []int64) {
	ordered := append([]*models.Asset(nil), assets...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	bySite := make(map[int64][]int64)
	var missing []int64
	for _, asset := range ordered {
		siteID, found := a.nearest(asset.Location, maxDistanceKm)
		if !found {
			missing = append(missing, asset.ID)
			continue
		}
		bySite[siteID] = append(bySite[siteID], asset.ID)
	}
	return bySite, missing
}

func (a *AssetHazardAssociator) nearest(loc models.Point, maxDistanceKm float64) (int64, bool) {
	var bestID int64
	bestDist := maxDistanceKm
	found := false
	for _, site := range a.sites {
		d := loc.DistanceKm(site.Location)
		if d > maxDistanceKm {
			continue
		}
		switch {
		case !found, d < bestDist:
			bestID, bestDist, found = site.ID, d, true
		case d == bestDist && site.ID < bestID:
			bestID = site.ID
		}
	}
	return bestID, found
}
