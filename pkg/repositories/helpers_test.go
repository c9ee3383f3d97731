package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tremor-labs/tremor-engine/pkg/database"
	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/testhelpers"
)

// setupDB returns the shared test database with all hazard and risk tables
// emptied.
func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db := testhelpers.GetEngineDB(t).DB

	_, err := db.Exec(context.Background(), `
		TRUNCATE hzrd_realizations, hzrd_ses_collections, hzrd_ses,
			hzrd_sites, hzrd_ses_ruptures, hzrd_gmf_collections,
			hzrd_gmf_data, riski_exposure_assets CASCADE`)
	require.NoError(t, err)
	return db
}

func savedCollection(t *testing.T, db *database.DB, sesCount int) *models.SESCollection {
	t.Helper()
	rlz := &models.Realization{ID: uuid.New(), Path: "b1", Weight: 1.0, Ordinal: 0}
	coll := models.NewSESCollection(rlz, sesCount, 50)

	repo := NewSESRuptureRepository(db)
	require.NoError(t, repo.SaveSESCollection(context.Background(), coll))
	return coll
}
