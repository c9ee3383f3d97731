package services

import (
	"context"
	"math/rand"

	"github.com/google/uuid"

	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// SeismicSource is the external source model contract. Geometry and
// magnitude-frequency internals belong to the source model; the engine only
// controls the seeds.
type SeismicSource interface {
	// SourceID returns the stable identifier of the source.
	SourceID() string

	// Ruptures materializes the finite candidate rupture list for this
	// source. The seed drives the rupture-geometry generator: equal seeds
	// yield equal lists.
	Ruptures(geometrySeed int64) ([]*models.Rupture, error)

	// SampleOccurrences draws the number of occurrences of one candidate
	// rupture from the supplied generator. The generator is threaded
	// explicitly per stochastic event set; no global random state is
	// involved.
	SampleOccurrences(rup *models.Rupture, rng *rand.Rand) int
}

// GMFParams bundles the read-only inputs of a ground motion computation
// unit. Shared by reference across workers and never mutated.
type GMFParams struct {
	IMTs             []string
	GSIMs            map[string]string // tectonic region type -> GSIM name
	TruncationLevel  float64
	MaxDistanceKm    float64
	CorrelationModel string
}

// GroundMotionModel computes per-site shaking values for one rupture.
type GroundMotionModel interface {
	// ComputeFields returns, for each requested IMT, one value per site in
	// the given site order. Sites beyond params.MaxDistanceKm from the
	// rupture are expected to come back as zero; the aggregator drops
	// zeros.
	ComputeFields(rup *models.Rupture, sites []*models.Site, params GMFParams, seed int64) (map[string][]float64, error)
}

// SiteAssets is one group of the nearest-site join: the assets whose closest
// hazard site within the cutoff is SiteID, in ascending asset-id order.
type SiteAssets struct {
	SiteID   int64
	AssetIDs []int64
}

// SiteLocator performs the nearest-hazard-site spatial join for all assets
// of one taxonomy. Implementations may run in SQL or in memory; either way
// each asset appears in at most one group.
type SiteLocator interface {
	NearestSites(ctx context.Context, taxonomy string, exposureModelID int64, maxDistanceKm float64) ([]SiteAssets, error)
}

// ExposureSource provides the immutable asset set of a calculation.
type ExposureSource interface {
	Assets(ctx context.Context) ([]*models.Asset, error)
}

// RuptureStore persists a worker's rupture contribution. SaveRuptures must
// be transactional: a failed save leaves no rows behind for that collector.
type RuptureStore interface {
	SaveSESCollection(ctx context.Context, coll *models.SESCollection) error
	SaveRuptures(ctx context.Context, coll *models.SESCollection, collector *RuptureCollector) error
}

// GMFStore persists a worker's ground motion contribution, also
// transactionally per task.
type GMFStore interface {
	SaveGMFCollection(ctx context.Context, coll *models.GMFCollection) error
	SaveValues(ctx context.Context, coll *models.GMFCollection, gmf SparseGMF, taskOrdinal int) error
}

// GMFReader serves accumulated ground motion values to the risk getters.
type GMFReader interface {
	// ValuesForSite returns the accumulated entry for one (imt, site) pair,
	// or nil when no nonzero value was ever recorded for it.
	ValuesForSite(ctx context.Context, collectionID uuid.UUID, imt string, siteID int64) (*models.GMFEntry, error)
}

// CurveReader serves hazard curves to the curve-based getter.
type CurveReader interface {
	CurveForSite(ctx context.Context, outputID uuid.UUID, imt string, siteID int64) ([]models.CurvePoint, error)
}
