package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/services"
)

func seedSitesAndAssets(t *testing.T) HazardSiteRepository {
	t.Helper()
	db := setupDB(t)
	repo := NewHazardSiteRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SaveSites(ctx, []*models.Site{
		{ID: 1, Location: models.Point{Lon: 22.00, Lat: 38.00}},
		{ID: 2, Location: models.Point{Lon: 22.10, Lat: 38.00}},
	}))
	require.NoError(t, repo.SaveAssets(ctx, []*models.Asset{
		{ID: 10, Ref: "a10", Taxonomy: "RC", ExposureModelID: 1, Location: models.Point{Lon: 22.001, Lat: 38.0}},
		{ID: 11, Ref: "a11", Taxonomy: "RC", ExposureModelID: 1, Location: models.Point{Lon: 22.099, Lat: 38.0}},
		{ID: 12, Ref: "a12", Taxonomy: "RC", ExposureModelID: 1, Location: models.Point{Lon: 22.002, Lat: 38.0}},
		{ID: 13, Ref: "a13", Taxonomy: "W", ExposureModelID: 1, Location: models.Point{Lon: 22.001, Lat: 38.0}},
		{ID: 14, Ref: "a14", Taxonomy: "RC", ExposureModelID: 1, Location: models.Point{Lon: 30.0, Lat: 45.0}},
		{ID: 15, Ref: "a15", Taxonomy: "RC", ExposureModelID: 2, Location: models.Point{Lon: 22.001, Lat: 38.0}},
	}))
	return repo
}

func TestNearestSitesGroupsByClosestSite(t *testing.T) {
	repo := seedSitesAndAssets(t)

	groups, err := repo.NearestSites(context.Background(), "RC", 1, 50)
	require.NoError(t, err)

	// Asset 14 is out of range, asset 13 is another taxonomy, asset 15
	// belongs to another exposure model.
	assert.Equal(t, []services.SiteAssets{
		{SiteID: 1, AssetIDs: []int64{10, 12}},
		{SiteID: 2, AssetIDs: []int64{11}},
	}, groups)
}

func TestNearestSitesRespectsCutoff(t *testing.T) {
	repo := seedSitesAndAssets(t)

	// With a cutoff smaller than every asset-site distance nothing matches.
	groups, err := repo.NearestSites(context.Background(), "RC", 1, 0.01)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestNearestSitesMatchesInMemoryAssociator(t *testing.T) {
	repo := seedSitesAndAssets(t)
	ctx := context.Background()

	sites := []*models.Site{
		{ID: 1, Location: models.Point{Lon: 22.00, Lat: 38.00}},
		{ID: 2, Location: models.Point{Lon: 22.10, Lat: 38.00}},
	}
	assets := []*models.Asset{
		{ID: 10, Taxonomy: "RC", ExposureModelID: 1, Location: models.Point{Lon: 22.001, Lat: 38.0}},
		{ID: 11, Taxonomy: "RC", ExposureModelID: 1, Location: models.Point{Lon: 22.099, Lat: 38.0}},
		{ID: 12, Taxonomy: "RC", ExposureModelID: 1, Location: models.Point{Lon: 22.002, Lat: 38.0}},
		{ID: 14, Taxonomy: "RC", ExposureModelID: 1, Location: models.Point{Lon: 30.0, Lat: 45.0}},
	}

	sqlGroups, err := repo.NearestSites(ctx, "RC", 1, 50)
	require.NoError(t, err)

	memGroups, err := services.NewAssetHazardAssociator(sites, assets, zap.NewNop()).NearestSites(ctx, "RC", 1, 50)
	require.NoError(t, err)

	assert.Equal(t, memGroups, sqlGroups, "SQL and in-memory joins must agree")
}

func TestSaveSitesIsIdempotent(t *testing.T) {
	db := setupDB(t)
	repo := NewHazardSiteRepository(db)
	ctx := context.Background()

	sites := []*models.Site{{ID: 1, Location: models.Point{Lon: 22.0, Lat: 38.0}}}
	require.NoError(t, repo.SaveSites(ctx, sites))
	require.NoError(t, repo.SaveSites(ctx, sites))

	var count int
	err := db.QueryRow(ctx, `SELECT count(*) FROM hzrd_sites`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
