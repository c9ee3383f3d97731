package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/models"
)

func asset(id int64, lon, lat float64, taxonomy string) *models.Asset {
	return &models.Asset{
		ID:              id,
		Ref:             "a" + taxonomy,
		Location:        models.Point{Lon: lon, Lat: lat},
		Taxonomy:        taxonomy,
		ExposureModelID: 1,
	}
}

func TestAssociateMapsEachAssetToOneSite(t *testing.T) {
	sites := []*models.Site{
		{ID: 1, Location: models.Point{Lon: 22.00, Lat: 38.00}},
		{ID: 2, Location: models.Point{Lon: 22.10, Lat: 38.00}},
	}
	assets := []*models.Asset{
		asset(10, 22.001, 38.00, "RC"), // nearest site 1
		asset(11, 22.099, 38.00, "RC"), // nearest site 2
		asset(12, 22.04, 38.00, "RC"),  // closer to site 1
	}

	a := NewAssetHazardAssociator(sites, assets, zap.NewNop())
	bySite, missing := a.Associate(assets, 50)

	assert.Empty(t, missing)
	assert.Equal(t, map[int64][]int64{1: {10, 12}, 2: {11}}, bySite)

	seen := make(map[int64]int)
	for _, ids := range bySite {
		for _, id := range ids {
			seen[id]++
		}
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "asset %d mapped to more than one site", id)
	}
}

func TestAssociateReportsDistantAssets(t *testing.T) {
	sites := []*models.Site{{ID: 1, Location: models.Point{Lon: 22.0, Lat: 38.0}}}
	assets := []*models.Asset{
		asset(5, 22.0, 38.0, "RC"),
		asset(3, 30.0, 45.0, "RC"), // ~1000 km away
		asset(9, 31.0, 46.0, "RC"),
	}

	a := NewAssetHazardAssociator(sites, assets, zap.NewNop())
	bySite, missing := a.Associate(assets, 5)

	assert.Equal(t, map[int64][]int64{1: {5}}, bySite)
	assert.Equal(t, []int64{3, 9}, missing, "missing set must be sorted")
}

func TestAssociateBreaksDistanceTiesBySmallerSiteID(t *testing.T) {
	// Two sites mirror-symmetric around the asset.
	sites := []*models.Site{
		{ID: 7, Location: models.Point{Lon: 22.10, Lat: 38.0}},
		{ID: 3, Location: models.Point{Lon: 21.90, Lat: 38.0}},
	}
	assets := []*models.Asset{asset(1, 22.0, 38.0, "RC")}

	a := NewAssetHazardAssociator(sites, assets, zap.NewNop())
	bySite, missing := a.Associate(assets, 50)

	assert.Empty(t, missing)
	assert.Equal(t, map[int64][]int64{3: {1}}, bySite)
}

func TestNearestSitesFiltersTaxonomyAndOrdersGroups(t *testing.T) {
	sites := []*models.Site{
		{ID: 2, Location: models.Point{Lon: 22.10, Lat: 38.0}},
		{ID: 1, Location: models.Point{Lon: 22.00, Lat: 38.0}},
	}
	assets := []*models.Asset{
		asset(10, 22.001, 38.0, "RC"),
		asset(11, 22.099, 38.0, "RC"),
		asset(12, 22.001, 38.0, "W"), // other taxonomy, excluded
	}

	a := NewAssetHazardAssociator(sites, assets, zap.NewNop())
	groups, err := a.NearestSites(context.Background(), "RC", 1, 50)
	require.NoError(t, err)

	assert.Equal(t, []SiteAssets{
		{SiteID: 1, AssetIDs: []int64{10}},
		{SiteID: 2, AssetIDs: []int64{11}},
	}, groups)
}

func TestNearestSitesMatchesExposureModel(t *testing.T) {
	sites := []*models.Site{{ID: 1, Location: models.Point{Lon: 22.0, Lat: 38.0}}}
	other := asset(20, 22.0, 38.0, "RC")
	other.ExposureModelID = 99

	a := NewAssetHazardAssociator(sites, []*models.Asset{other}, zap.NewNop())
	groups, err := a.NearestSites(context.Background(), "RC", 1, 50)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
