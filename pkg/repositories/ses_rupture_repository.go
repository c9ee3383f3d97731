package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tremor-labs/tremor-engine/pkg/database"
	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/services"
)

// SESRuptureRepository persists stochastic event set containers and rupture
// occurrences. Every save is transactional per invoking unit: a failed task
// leaves no rows behind.
type SESRuptureRepository interface {
	services.RuptureStore

	// ListTags returns the rupture tags of one collection in canonical
	// order: by source, rupture index, SES ordinal and occurrence index.
	ListTags(ctx context.Context, collectionID uuid.UUID) ([]string, error)
}

type sesRuptureRepository struct {
	db *database.DB
}

// NewSESRuptureRepository creates a repository backed by Postgres.
func NewSESRuptureRepository(db *database.DB) SESRuptureRepository {
	return &sesRuptureRepository{db: db}
}

// SaveSESCollection inserts the realization, collection and SES container
// rows in one transaction.
func (r *sesRuptureRepository) SaveSESCollection(ctx context.Context, coll *models.SESCollection) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	rlz := coll.Realization
	_, err = tx.Exec(ctx, `
		INSERT INTO hzrd_realizations (id, path, weight, ordinal)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		rlz.ID, rlz.Path, rlz.Weight, rlz.Ordinal)
	if err != nil {
		return fmt.Errorf("failed to insert realization: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO hzrd_ses_collections (id, realization_id)
		VALUES ($1, $2)`,
		coll.ID, rlz.ID)
	if err != nil {
		return fmt.Errorf("failed to insert ses collection: %w", err)
	}

	for _, ses := range coll.Sets {
		_, err = tx.Exec(ctx, `
			INSERT INTO hzrd_ses (ses_collection_id, ordinal, investigation_time)
			VALUES ($1, $2, $3)`,
			coll.ID, ses.Ordinal, ses.InvestigationTime)
		if err != nil {
			return fmt.Errorf("failed to insert ses %d: %w", ses.Ordinal, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveRuptures writes one collector's occurrences, expanded by count, in a
// single transaction. Tags are regenerated in canonical order, so the rows
// of a partitioned run are identical to those of a single-task run.
func (r *sesRuptureRepository) SaveRuptures(ctx context.Context, coll *models.SESCollection, collector *services.RuptureCollector) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	rlzOrdinal := coll.Realization.Ordinal
	for _, occ := range collector.Occurrences() {
		key := occ.Rupture.Key()
		for i := 0; i < occ.Count; i++ {
			tag := models.RuptureTag(rlzOrdinal, occ.SESOrdinal, key.SourceID, key.LocalIndex, i)
			_, err = tx.Exec(ctx, `
				INSERT INTO hzrd_ses_ruptures
					(ses_collection_id, ses_ordinal, tag, source_id, local_index,
					 magnitude, hypocenter_lon, hypocenter_lat, tectonic_region)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				coll.ID, occ.SESOrdinal, tag, key.SourceID, key.LocalIndex,
				occ.Rupture.Magnitude, occ.Rupture.Hypocenter.Lon,
				occ.Rupture.Hypocenter.Lat, occ.Rupture.TectonicRegion)
			if err != nil {
				return fmt.Errorf("failed to insert rupture %s: %w", tag, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *sesRuptureRepository) ListTags(ctx context.Context, collectionID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tag FROM hzrd_ses_ruptures
		WHERE ses_collection_id = $1
		ORDER BY source_id, local_index, ses_ordinal, tag`,
		collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rupture tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan rupture tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
