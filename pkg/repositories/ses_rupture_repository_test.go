package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/services"
)

func testRupture(sourceID string, localIndex int) *models.Rupture {
	return &models.Rupture{
		SourceID:       sourceID,
		LocalIndex:     localIndex,
		Magnitude:      5.5,
		Hypocenter:     models.Point{Lon: 22.2, Lat: 38.3},
		TectonicRegion: "Active Shallow Crust",
	}
}

func TestSaveSESCollectionPersistsContainers(t *testing.T) {
	db := setupDB(t)
	coll := savedCollection(t, db, 3)
	ctx := context.Background()

	var sesCount int
	err := db.QueryRow(ctx, `SELECT count(*) FROM hzrd_ses WHERE ses_collection_id = $1`, coll.ID).Scan(&sesCount)
	require.NoError(t, err)
	assert.Equal(t, 3, sesCount)

	var weight float64
	err = db.QueryRow(ctx, `SELECT weight FROM hzrd_realizations WHERE id = $1`, coll.Realization.ID).Scan(&weight)
	require.NoError(t, err)
	assert.Equal(t, 1.0, weight)
}

func TestSaveRupturesExpandsCounts(t *testing.T) {
	db := setupDB(t)
	coll := savedCollection(t, db, 2)
	repo := NewSESRuptureRepository(db)
	ctx := context.Background()

	collector := services.NewRuptureCollector(coll, 0)
	collector.Add(1, testRupture("S1", 0), 2)
	collector.Add(2, testRupture("S1", 0), 1)
	collector.Add(1, testRupture("S2", 0), 1)
	require.NoError(t, repo.SaveRuptures(ctx, coll, collector))

	tags, err := repo.ListTags(ctx, coll.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"rlz=00|ses=0001|src=S1|rup=000-01",
		"rlz=00|ses=0001|src=S1|rup=000-02",
		"rlz=00|ses=0002|src=S1|rup=000-01",
		"rlz=00|ses=0001|src=S2|rup=000-01",
	}, tags)
}

func TestSaveRupturesPartitionedMatchesWhole(t *testing.T) {
	db := setupDB(t)
	repo := NewSESRuptureRepository(db)
	ctx := context.Background()

	fill := func(coll *models.SESCollection, collectors ...*services.RuptureCollector) []string {
		for _, c := range collectors {
			require.NoError(t, repo.SaveRuptures(ctx, coll, c))
		}
		tags, err := repo.ListTags(ctx, coll.ID)
		require.NoError(t, err)
		return tags
	}

	// Whole run: one collector holds everything.
	whole := savedCollection(t, db, 2)
	all := services.NewRuptureCollector(whole, 0)
	all.Add(1, testRupture("S1", 0), 1)
	all.Add(2, testRupture("S2", 0), 2)
	all.Add(1, testRupture("S2", 1), 1)
	wholeTags := fill(whole, all)

	// Partitioned run: same content split across two task collectors.
	split := savedCollection(t, db, 2)
	first := services.NewRuptureCollector(split, 0)
	first.Add(1, testRupture("S1", 0), 1)
	second := services.NewRuptureCollector(split, 1)
	second.Add(2, testRupture("S2", 0), 2)
	second.Add(1, testRupture("S2", 1), 1)
	splitTags := fill(split, first, second)

	assert.Equal(t, wholeTags, splitTags)
}

func TestSaveRupturesRejectsDuplicateTags(t *testing.T) {
	db := setupDB(t)
	coll := savedCollection(t, db, 1)
	repo := NewSESRuptureRepository(db)
	ctx := context.Background()

	collector := services.NewRuptureCollector(coll, 0)
	collector.Add(1, testRupture("S1", 0), 1)
	require.NoError(t, repo.SaveRuptures(ctx, coll, collector))

	// Saving the same occurrences again violates the per-collection tag
	// uniqueness and must fail without leaving extra rows.
	err := repo.SaveRuptures(ctx, coll, collector)
	require.Error(t, err)

	tags, err := repo.ListTags(ctx, coll.ID)
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestListTagsEmptyCollection(t *testing.T) {
	db := setupDB(t)
	coll := savedCollection(t, db, 1)
	repo := NewSESRuptureRepository(db)

	tags, err := repo.ListTags(context.Background(), coll.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}
