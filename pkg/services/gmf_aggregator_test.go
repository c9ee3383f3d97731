package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/models"
)

func testSites(n int) []*models.Site {
	sites := make([]*models.Site, n)
	for i := range sites {
		sites[i] = &models.Site{
			ID:       int64(i + 1),
			Location: models.Point{Lon: 22.0 + float64(i)*0.1, Lat: 38.0},
		}
	}
	return sites
}

func testParams() GMFParams {
	return GMFParams{
		IMTs:            []string{"PGA", "SA(0.1)"},
		GSIMs:           map[string]string{"Active Shallow Crust": "Stub"},
		TruncationLevel: 3,
		MaxDistanceKm:   200,
	}
}

func seededSequence(t *testing.T, sesCount, ruptureCount int, masterSeed int64) []SeededRupture {
	t.Helper()
	c := NewRuptureCollector(testCollection(sesCount), 0)
	for i := 0; i < ruptureCount; i++ {
		c.Add(1+i%sesCount, rup("S1", i), 1)
	}
	return AssignGMFSeeds(c, masterSeed)
}

func TestAssignGMFSeedsFollowsCanonicalOrder(t *testing.T) {
	coll := testCollection(2)

	// Two collectors with the same content filled in different orders.
	a := NewRuptureCollector(coll, 0)
	a.Add(1, rup("S1", 0), 2)
	a.Add(2, rup("S2", 0), 1)

	b := NewRuptureCollector(coll, 0)
	b.Add(2, rup("S2", 0), 1)
	b.Add(1, rup("S1", 0), 2)

	seedsA := AssignGMFSeeds(a, 42)
	seedsB := AssignGMFSeeds(b, 42)
	require.Len(t, seedsA, 3)
	assert.Equal(t, seedsA, seedsB)
}

func TestComputeStoresOnlyNonzeroValues(t *testing.T) {
	sites := testSites(4)
	// Site far beyond the cutoff: the model returns zero for it.
	sites[3].Location = models.Point{Lon: 120, Lat: -30}

	agg := NewGroundMotionAggregator(sites, testParams(), stubGMM{}, zap.NewNop(), testMetrics())
	gmvs, err := agg.Compute(context.Background(), seededSequence(t, 1, 2, 42))
	require.NoError(t, err)

	for key, entry := range gmvs {
		assert.NotEqual(t, int64(4), key.SiteID, "zero-valued site was stored")
		for _, v := range entry.Values {
			assert.NotZero(t, v)
		}
		assert.Len(t, entry.RuptureTags, len(entry.Values))
	}
	assert.Len(t, gmvs, 6) // 3 in-range sites x 2 IMTs
}

func TestComputeIsSeedDeterministic(t *testing.T) {
	agg := NewGroundMotionAggregator(testSites(3), testParams(), stubGMM{}, zap.NewNop(), testMetrics())

	seq := seededSequence(t, 2, 5, 42)
	first, err := agg.Compute(context.Background(), seq)
	require.NoError(t, err)
	second, err := agg.Compute(context.Background(), seq)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeSegmentsMergeToWhole(t *testing.T) {
	agg := NewGroundMotionAggregator(testSites(3), testParams(), stubGMM{}, zap.NewNop(), testMetrics())
	seq := seededSequence(t, 2, 6, 42)

	whole, err := agg.Compute(context.Background(), seq)
	require.NoError(t, err)

	merged := make(SparseGMF)
	for _, segment := range [][]SeededRupture{seq[:2], seq[2:5], seq[5:]} {
		part, err := agg.Compute(context.Background(), segment)
		require.NoError(t, err)
		merged.Merge(part)
	}

	assert.Equal(t, whole, merged)
}

type shortGMM struct{}

func (shortGMM) ComputeFields(rup *models.Rupture, sites []*models.Site, params GMFParams, seed int64) (map[string][]float64, error) {
	return map[string][]float64{"PGA": {1.0}}, nil
}

func TestComputeRejectsValueCountMismatch(t *testing.T) {
	agg := NewGroundMotionAggregator(testSites(3), testParams(), shortGMM{}, zap.NewNop(), testMetrics())

	_, err := agg.Compute(context.Background(), seededSequence(t, 1, 1, 42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 values for 3 sites")
}

type errGMM struct{}

func (errGMM) ComputeFields(*models.Rupture, []*models.Site, GMFParams, int64) (map[string][]float64, error) {
	return nil, fmt.Errorf("gsim table lookup failed")
}

func TestComputePropagatesModelErrors(t *testing.T) {
	agg := NewGroundMotionAggregator(testSites(2), testParams(), errGMM{}, zap.NewNop(), testMetrics())

	_, err := agg.Compute(context.Background(), seededSequence(t, 1, 1, 42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gsim table lookup failed")
}

func TestSparseGMFMergeCopiesNewKeys(t *testing.T) {
	src := make(SparseGMF)
	src.add(models.GMFKey{IMT: "PGA", SiteID: 1}, 0.5, "tag-1")

	dst := make(SparseGMF)
	dst.Merge(src)
	src.add(models.GMFKey{IMT: "PGA", SiteID: 1}, 0.7, "tag-2")

	assert.Len(t, dst[models.GMFKey{IMT: "PGA", SiteID: 1}].Values, 1)
}
