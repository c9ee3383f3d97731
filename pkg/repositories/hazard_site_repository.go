package repositories

import (
	"context"
	"fmt"

	"github.com/tremor-labs/tremor-engine/pkg/database"
	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/services"
)

// HazardSiteRepository stores hazard sites and exposure assets and performs
// the nearest-site join in SQL. It implements services.SiteLocator, the
// production counterpart of the in-memory associator.
type HazardSiteRepository interface {
	services.SiteLocator

	SaveSites(ctx context.Context, sites []*models.Site) error
	SaveAssets(ctx context.Context, assets []*models.Asset) error
}

type hazardSiteRepository struct {
	db *database.DB
}

// NewHazardSiteRepository creates a repository backed by Postgres.
func NewHazardSiteRepository(db *database.DB) HazardSiteRepository {
	return &hazardSiteRepository{db: db}
}

func (r *hazardSiteRepository) SaveSites(ctx context.Context, sites []*models.Site) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	for _, site := range sites {
		_, err = tx.Exec(ctx, `
			INSERT INTO hzrd_sites (id, lon, lat)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING`,
			site.ID, site.Location.Lon, site.Location.Lat)
		if err != nil {
			return fmt.Errorf("failed to insert site %d: %w", site.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *hazardSiteRepository) SaveAssets(ctx context.Context, assets []*models.Asset) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	for _, asset := range assets {
		_, err = tx.Exec(ctx, `
			INSERT INTO riski_exposure_assets (id, ref, taxonomy, exposure_model_id, lon, lat)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			asset.ID, asset.Ref, asset.Taxonomy, asset.ExposureModelID,
			asset.Location.Lon, asset.Location.Lat)
		if err != nil {
			return fmt.Errorf("failed to insert asset %d: %w", asset.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// haversineKm is the great-circle distance between an asset and a site in
// kilometers, spelled out in SQL so the join needs no geometry extension.
const haversineKm = `
	2 * 6371 * asin(sqrt(
		pow(sin(radians(s.lat - a.lat) / 2), 2) +
		cos(radians(a.lat)) * cos(radians(s.lat)) *
		pow(sin(radians(s.lon - a.lon) / 2), 2)))`

// NearestSites groups the assets of one taxonomy by their closest hazard
// site within the cutoff. The DISTINCT ON combined with the ORDER BY
// distance selects the closest site per asset; the remaining ORDER BYs keep
// results in a fixed order for repeatable runs.
func (r *hazardSiteRepository) NearestSites(ctx context.Context, taxonomy string, exposureModelID int64, maxDistanceKm float64) ([]services.SiteAssets, error) {
	query := fmt.Sprintf(`
		SELECT site_id, array_agg(asset_id ORDER BY asset_id) AS asset_ids FROM (
			SELECT DISTINCT ON (a.id) a.id AS asset_id, s.id AS site_id
			FROM riski_exposure_assets AS a
			JOIN hzrd_sites AS s ON %s <= $1
			WHERE a.taxonomy = $2 AND a.exposure_model_id = $3
			ORDER BY a.id, %s, s.id
		) AS x
		GROUP BY site_id ORDER BY site_id`, haversineKm, haversineKm)

	rows, err := r.db.Query(ctx, query, maxDistanceKm, taxonomy, exposureModelID)
	if err != nil {
		return nil, fmt.Errorf("failed to run nearest-site join: %w", err)
	}
	defer rows.Close()

	var out []services.SiteAssets
	for rows.Next() {
		var group services.SiteAssets
		if err := rows.Scan(&group.SiteID, &group.AssetIDs); err != nil {
			return nil, fmt.Errorf("failed to scan nearest-site group: %w", err)
		}
		out = append(out, group)
	}
	return out, rows.Err()
}
