package repositories

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tremor-labs/tremor-engine/pkg/database"
	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/services"
)

// GMFRepository persists sparse ground motion mappings and serves them back
// to the risk getters. It implements both services.GMFStore and
// services.GMFReader.
type GMFRepository interface {
	services.GMFStore
	services.GMFReader
}

type gmfRepository struct {
	db *database.DB
}

// NewGMFRepository creates a repository backed by Postgres.
func NewGMFRepository(db *database.DB) GMFRepository {
	return &gmfRepository{db: db}
}

func (r *gmfRepository) SaveGMFCollection(ctx context.Context, coll *models.GMFCollection) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO hzrd_gmf_collections (id, realization_id)
		VALUES ($1, $2)`,
		coll.ID, coll.Realization.ID)
	if err != nil {
		return fmt.Errorf("failed to insert gmf collection: %w", err)
	}
	return nil
}

// SaveValues writes one task's sparse contribution in a single transaction.
// Only keys present in the mapping produce rows; absent pairs stay absent.
// Keys are written in sorted order so runs are byte-comparable at the
// storage level.
func (r *gmfRepository) SaveValues(ctx context.Context, coll *models.GMFCollection, gmf services.SparseGMF, taskOrdinal int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	keys := make([]models.GMFKey, 0, len(gmf))
	for key := range gmf {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].IMT != keys[j].IMT {
			return keys[i].IMT < keys[j].IMT
		}
		return keys[i].SiteID < keys[j].SiteID
	})

	for _, key := range keys {
		entry := gmf[key]
		_, err = tx.Exec(ctx, `
			INSERT INTO hzrd_gmf_data
				(gmf_collection_id, task_no, imt, site_id, gmvs, rupture_tags)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			coll.ID, taskOrdinal, key.IMT, key.SiteID, entry.Values, entry.RuptureTags)
		if err != nil {
			return fmt.Errorf("failed to insert gmf data for %s/site %d: %w", key.IMT, key.SiteID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ValuesForSite reassembles the accumulated entry for one (imt, site) pair.
// Rows are read in task order: tasks cover contiguous segments of the
// canonical rupture sequence, so concatenation restores canonical order.
func (r *gmfRepository) ValuesForSite(ctx context.Context, collectionID uuid.UUID, imt string, siteID int64) (*models.GMFEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT gmvs, rupture_tags FROM hzrd_gmf_data
		WHERE gmf_collection_id = $1 AND imt = $2 AND site_id = $3
		ORDER BY task_no`,
		collectionID, imt, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query gmf data: %w", err)
	}
	defer rows.Close()

	var entry *models.GMFEntry
	for rows.Next() {
		var gmvs []float64
		var tags []string
		if err := rows.Scan(&gmvs, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan gmf data: %w", err)
		}
		if entry == nil {
			entry = &models.GMFEntry{}
		}
		entry.Values = append(entry.Values, gmvs...)
		entry.RuptureTags = append(entry.RuptureTags, tags...)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entry, nil
}
