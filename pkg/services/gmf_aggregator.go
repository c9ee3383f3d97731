package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/metrics"
	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// SparseGMF maps (imt, site) to the ground motion values accumulated for it.
// Pairs with no nonzero contribution are absent, never present as empty
// entries; readers rely on that to size the stored output.
type SparseGMF map[models.GMFKey]*models.GMFEntry

// add appends one nonzero value and its rupture tag.
func (g SparseGMF) add(key models.GMFKey, value float64, tag string) {
	entry, ok := g[key]
	if !ok {
		entry = &models.GMFEntry{}
		g[key] = entry
	}
	entry.Values = append(entry.Values, value)
	entry.RuptureTags = append(entry.RuptureTags, tag)
}

// Merge appends the entries of other after the entries of g. Callers must
// merge partial results in block order so that every per-key list stays in
// canonical rupture order.
func (g SparseGMF) Merge(other SparseGMF) {
	for key, entry := range other {
		mine, ok := g[key]
		if !ok {
			g[key] = &models.GMFEntry{
				Values:      append([]float64(nil), entry.Values...),
				RuptureTags: append([]string(nil), entry.RuptureTags...),
			}
			continue
		}
		mine.Values = append(mine.Values, entry.Values...)
		mine.RuptureTags = append(mine.RuptureTags, entry.RuptureTags...)
	}
}

// SeededRupture is one element of the canonical sequence with the sub-seed
// assigned to its ground motion computation.
type SeededRupture struct {
	TaggedRupture
	Seed int64
}

// AssignGMFSeeds walks the collector's canonical expansion and assigns one
// sub-seed per rupture occurrence, drawn sequentially from masterSeed.
// Because the walk follows the canonical (partition-independent) order, the
// per-rupture seeds do not depend on how the sequence is later split into
// computation blocks.
func AssignGMFSeeds(collector *RuptureCollector, masterSeed int64) []SeededRupture {
	seq := NewSeedSequencer(masterSeed)
	out := make([]SeededRupture, 0, collector.Len())
	for tr := range collector.TaggedRuptures() {
		out = append(out, SeededRupture{TaggedRupture: tr, Seed: seq.Next()})
	}
	return out
}

// GroundMotionAggregator computes ground motion fields for segments of the
// canonical rupture sequence and accumulates the nonzero values per
// (imt, site) pair. The site collection, parameters and model are shared
// read-only across workers.
type GroundMotionAggregator struct {
	sites   []*models.Site
	params  GMFParams
	model   GroundMotionModel
	logger  *zap.Logger
	metrics *metrics.Simulation
}

// NewGroundMotionAggregator creates an aggregator over a fixed site
// collection.
func NewGroundMotionAggregator(sites []*models.Site, params GMFParams, model GroundMotionModel, logger *zap.Logger, m *metrics.Simulation) *GroundMotionAggregator {
	return &GroundMotionAggregator{
		sites:   sites,
		params:  params,
		model:   model,
		logger:  logger.Named("gmf"),
		metrics: m,
	}
}

// Compute runs the ground motion model over one contiguous segment of the
// canonical sequence. Each rupture uses its pre-assigned sub-seed, so two
// aggregation units covering the same ruptures via different partitions
// produce numerically identical values.
func (a *GroundMotionAggregator) Compute(ctx context.Context, segment []SeededRupture) (SparseGMF, error) {
	defer a.metrics.Time(metrics.StageComputingGMFs)()

	gmvs := make(SparseGMF)
	for _, sr := range segment {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields, err := a.model.ComputeFields(sr.Rupture, a.sites, a.params, sr.Seed)
		if err != nil {
			return nil, fmt.Errorf("computing fields for rupture %s: %w", sr.Tag, err)
		}
		a.metrics.GMFsComputed.Inc()

		for _, imt := range a.params.IMTs {
			values, ok := fields[imt]
			if !ok {
				continue
			}
			if len(values) != len(a.sites) {
				return nil, fmt.Errorf("ground motion model returned %d values for %d sites (imt %s)",
					len(values), len(a.sites), imt)
			}
			for i, v := range values {
				if v != 0 {
					gmvs.add(models.GMFKey{IMT: imt, SiteID: a.sites[i].ID}, v, sr.Tag)
				}
			}
		}
	}

	a.logger.Debug("Computed ground motion fields",
		zap.Int("ruptures", len(segment)),
		zap.Int("nonzero_pairs", len(gmvs)))
	return gmvs, nil
}
