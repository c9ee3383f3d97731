package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/dispatch"
	"github.com/tremor-labs/tremor-engine/pkg/models"
)

func testPool(workers int) *dispatch.Pool {
	return dispatch.NewPool(workers, zap.NewNop())
}

// stubSource is a deterministic seismic source for tests: a fixed candidate
// rupture list and occurrence counts drawn from the supplied generator.
type stubSource struct {
	id           string
	ruptureCount int
	magnitude    float64
	location     models.Point
	maxOccur     int // 0 means always exactly one occurrence
}

func (s *stubSource) SourceID() string { return s.id }

func (s *stubSource) Ruptures(geometrySeed int64) ([]*models.Rupture, error) {
	_ = geometrySeed // fixed geometry
	rups := make([]*models.Rupture, s.ruptureCount)
	for i := range rups {
		rups[i] = &models.Rupture{
			SourceID:       s.id,
			LocalIndex:     i,
			Magnitude:      s.magnitude,
			Hypocenter:     s.location,
			TectonicRegion: "Active Shallow Crust",
		}
	}
	return rups, nil
}

func (s *stubSource) SampleOccurrences(rup *models.Rupture, rng *rand.Rand) int {
	if s.maxOccur <= 0 {
		return 1
	}
	return rng.Intn(s.maxOccur + 1)
}

// failingSource breaks rupture generation; used to exercise fail-fast paths.
type failingSource struct{ id string }

func (s *failingSource) SourceID() string { return s.id }

func (s *failingSource) Ruptures(int64) ([]*models.Rupture, error) {
	return nil, fmt.Errorf("corrupt geometry for %s", s.id)
}

func (s *failingSource) SampleOccurrences(*models.Rupture, *rand.Rand) int { return 0 }

// stubGMM produces one seed-dependent value per site and IMT, with zeros for
// sites beyond the distance cutoff. Equal seeds give equal fields.
type stubGMM struct{}

func (stubGMM) ComputeFields(rup *models.Rupture, sites []*models.Site, params GMFParams, seed int64) (map[string][]float64, error) {
	rng := rand.New(rand.NewSource(seed))
	fields := make(map[string][]float64, len(params.IMTs))
	for _, imt := range params.IMTs {
		values := make([]float64, len(sites))
		for i, site := range sites {
			if rup.Hypocenter.DistanceKm(site.Location) > params.MaxDistanceKm {
				continue
			}
			values[i] = rng.Float64() * rup.Magnitude
		}
		fields[imt] = values
	}
	return fields, nil
}

// memRuptureStore records saved collections and rupture rows in memory.
// Safe for concurrent SaveRuptures calls from pool workers.
type memRuptureStore struct {
	mu          sync.Mutex
	collections []*models.SESCollection
	saves       int
}

func (m *memRuptureStore) SaveSESCollection(ctx context.Context, coll *models.SESCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = append(m.collections, coll)
	return nil
}

func (m *memRuptureStore) SaveRuptures(ctx context.Context, coll *models.SESCollection, collector *RuptureCollector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

// memGMFStore records per-task sparse contributions in memory.
type memGMFStore struct {
	mu          sync.Mutex
	collections []*models.GMFCollection
	saves       int
}

func (m *memGMFStore) SaveGMFCollection(ctx context.Context, coll *models.GMFCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = append(m.collections, coll)
	return nil
}

func (m *memGMFStore) SaveValues(ctx context.Context, coll *models.GMFCollection, gmf SparseGMF, taskOrdinal int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

// memGMFReader serves canned entries to getter tests.
type memGMFReader struct {
	entries map[models.GMFKey]*models.GMFEntry
}

func (m *memGMFReader) ValuesForSite(ctx context.Context, collectionID uuid.UUID, imt string, siteID int64) (*models.GMFEntry, error) {
	return m.entries[models.GMFKey{IMT: imt, SiteID: siteID}], nil
}

// memCurveReader serves canned hazard curves to getter tests.
type memCurveReader struct {
	curves map[int64][]models.CurvePoint
}

func (m *memCurveReader) CurveForSite(ctx context.Context, outputID uuid.UUID, imt string, siteID int64) ([]models.CurvePoint, error) {
	return m.curves[siteID], nil
}

// sliceExposure is an in-memory ExposureSource.
type sliceExposure struct {
	assets []*models.Asset
}

func (s *sliceExposure) Assets(ctx context.Context) ([]*models.Asset, error) {
	return s.assets, nil
}

// recordingWorkflow records the loss types it computed, across goroutines.
type recordingWorkflow struct {
	mu       *sync.Mutex
	computed *[]string
	taxonomy string
}

func (w recordingWorkflow) ComputeAllOutputs(ctx context.Context, getters []HazardGetter, lossType string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.computed = append(*w.computed, w.taxonomy+"/"+lossType)
	return nil
}
