package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/apperrors"
	"github.com/tremor-labs/tremor-engine/pkg/config"
	"github.com/tremor-labs/tremor-engine/pkg/dispatch"
	"github.com/tremor-labs/tremor-engine/pkg/metrics"
	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// RealizationInput is one logic-tree realization to simulate, with the
// ground-motion model chosen for each tectonic region along its path.
type RealizationInput struct {
	Realization *models.Realization
	GSIMs       map[string]string
}

// HazardResult carries the merged, immutable outcome of one hazard run.
// Keys are SES collection ids.
type HazardResult struct {
	SESCollections []*models.SESCollection
	GMFCollections map[uuid.UUID]*models.GMFCollection
	Ruptures       map[uuid.UUID]*RuptureCollector
	GMFs           map[uuid.UUID]SparseGMF
}

// EventBasedCalculator computes stochastic event sets and, optionally,
// ground motion fields. All randomness flows from the configured master
// seed through SeedSequencers; the block count changes wall-clock time,
// never results.
type EventBasedCalculator struct {
	cfg      config.HazardConfig
	sources  []SeismicSource
	sites    []*models.Site
	model    GroundMotionModel
	ruptures RuptureStore
	gmfs     GMFStore
	pool     *dispatch.Pool
	sampler  *RuptureSampler
	logger   *zap.Logger
	metrics  *metrics.Simulation
}

// NewEventBasedCalculator wires a calculator. The source order given here is
// the seed enumeration order and must be stable between runs.
func NewEventBasedCalculator(
	cfg config.HazardConfig,
	sources []SeismicSource,
	sites []*models.Site,
	model GroundMotionModel,
	ruptures RuptureStore,
	gmfs GMFStore,
	pool *dispatch.Pool,
	logger *zap.Logger,
	m *metrics.Simulation,
) *EventBasedCalculator {
	logger = logger.Named("event_based")
	return &EventBasedCalculator{
		cfg:      cfg,
		sources:  sources,
		sites:    sites,
		model:    model,
		ruptures: ruptures,
		gmfs:     gmfs,
		pool:     pool,
		sampler:  NewRuptureSampler(logger, m),
		logger:   logger,
		metrics:  m,
	}
}

// Run executes the full hazard phase for the given realizations: SES record
// creation, parallel rupture sampling, collector merge, and parallel ground
// motion computation over the merged canonical sequence.
func (c *EventBasedCalculator) Run(ctx context.Context, rlzs []RealizationInput) (*HazardResult, error) {
	if len(c.sources) == 0 {
		return nil, apperrors.ErrNoSources
	}

	result := &HazardResult{
		GMFCollections: make(map[uuid.UUID]*models.GMFCollection),
		Ruptures:       make(map[uuid.UUID]*RuptureCollector),
		GMFs:           make(map[uuid.UUID]SparseGMF),
	}

	// Container records are created once, before any task is dispatched.
	for _, in := range rlzs {
		coll := models.NewSESCollection(in.Realization, c.cfg.SESPerLogicTreePath, c.cfg.InvestigationTime)
		if err := c.ruptures.SaveSESCollection(ctx, coll); err != nil {
			return nil, fmt.Errorf("creating ses collection for realization %d: %w", in.Realization.Ordinal, err)
		}
		result.SESCollections = append(result.SESCollections, coll)

		if c.cfg.GroundMotionFields {
			gmfColl := &models.GMFCollection{ID: uuid.New(), Realization: in.Realization}
			if err := c.gmfs.SaveGMFCollection(ctx, gmfColl); err != nil {
				return nil, fmt.Errorf("creating gmf collection for realization %d: %w", in.Realization.Ordinal, err)
			}
			result.GMFCollections[coll.ID] = gmfColl
		}
	}

	// Sub-seeds are drawn per source in the fixed enumeration order, before
	// the sources are split into blocks. This is what makes the sampled
	// occurrences independent of ConcurrentTasks.
	seq := NewSeedSequencer(c.cfg.MasterSeed)
	for i, in := range rlzs {
		coll := result.SESCollections[i]

		sourceSeeds := make([]SourceSeed, len(c.sources))
		for j, src := range c.sources {
			sourceSeeds[j] = SourceSeed{Source: src, Seed: seq.Next()}
		}

		merged, err := c.sampleRuptures(ctx, coll, sourceSeeds)
		if err != nil {
			return nil, err
		}
		result.Ruptures[coll.ID] = merged
		c.logger.Info("Sampled ruptures",
			zap.Int("realization", in.Realization.Ordinal),
			zap.Int("distinct_ruptures", merged.Len()))
	}

	if !c.cfg.GroundMotionFields {
		return result, nil
	}

	// One aggregation master seed per realization, drawn in realization
	// order; per-rupture sub-seeds then follow the canonical sequence.
	gmfSeq := NewSeedSequencer(c.cfg.MasterSeed)
	for i, in := range rlzs {
		coll := result.SESCollections[i]
		unitSeed := gmfSeq.Next()

		merged := result.Ruptures[coll.ID]
		if merged.Len() == 0 {
			continue
		}

		params := GMFParams{
			IMTs:             c.cfg.IMTs,
			GSIMs:            in.GSIMs,
			TruncationLevel:  c.cfg.TruncationLevel,
			MaxDistanceKm:    c.cfg.MaxDistanceKm,
			CorrelationModel: c.cfg.CorrelationModel,
		}
		gmf, err := c.computeGMFs(ctx, result.GMFCollections[coll.ID], merged, params, unitSeed)
		if err != nil {
			return nil, err
		}
		result.GMFs[coll.ID] = gmf
		c.logger.Info("Computed ground motion fields",
			zap.Int("realization", in.Realization.Ordinal),
			zap.Int("nonzero_pairs", len(gmf)))
	}

	return result, nil
}

// sampleRuptures dispatches the sampling blocks of one SES collection and
// merges the returned collectors in task-ordinal order.
func (c *EventBasedCalculator) sampleRuptures(ctx context.Context, coll *models.SESCollection, sourceSeeds []SourceSeed) (*RuptureCollector, error) {
	blocks := splitEven(sourceSeeds, c.cfg.ConcurrentTasks)

	type blockArg struct {
		ordinal int
		block   []SourceSeed
	}
	args := make([]blockArg, len(blocks))
	for i, block := range blocks {
		args[i] = blockArg{ordinal: i, block: block}
		c.metrics.TasksDispatched.Inc()
	}

	results, err := dispatch.Map(ctx, c.pool, args, func(ctx context.Context, arg blockArg) (*RuptureCollector, error) {
		collector, err := c.sampler.SampleBlock(ctx, arg.block, coll, arg.ordinal)
		if err != nil {
			return nil, err
		}
		stop := c.metrics.Time(metrics.StageSavingRuptures)
		err = c.ruptures.SaveRuptures(ctx, coll, collector)
		stop()
		if err != nil {
			return nil, fmt.Errorf("saving ruptures for task %d: %w", arg.ordinal, err)
		}
		return collector, nil
	})
	if err != nil {
		return nil, err
	}

	// Completion order is arbitrary; re-sort by collector ordinal before
	// merging so the merge order is reproducible. Content-wise the merge is
	// order-independent anyway.
	collectors := make([]*RuptureCollector, len(results))
	for i, r := range results {
		collectors[i] = r.Value
	}
	sort.Slice(collectors, func(i, j int) bool { return collectors[i].Ordinal < collectors[j].Ordinal })

	merged := NewRuptureCollector(coll, 0)
	for _, collector := range collectors {
		merged.Merge(collector)
	}
	return merged, nil
}

// computeGMFs splits the seeded canonical sequence into contiguous segments,
// dispatches them, persists each segment's contribution in segment order and
// returns the merged sparse mapping.
func (c *EventBasedCalculator) computeGMFs(ctx context.Context, gmfColl *models.GMFCollection, merged *RuptureCollector, params GMFParams, unitSeed int64) (SparseGMF, error) {
	aggregator := NewGroundMotionAggregator(c.sites, params, c.model, c.logger, c.metrics)

	seeded := AssignGMFSeeds(merged, unitSeed)
	segments := splitEven(seeded, c.cfg.ConcurrentTasks)
	for range segments {
		c.metrics.TasksDispatched.Inc()
	}

	results, err := dispatch.Map(ctx, c.pool, segments, aggregator.Compute)
	if err != nil {
		return nil, err
	}

	// Segments are contiguous slices of the canonical sequence, so merging
	// in segment order keeps every per-key value list in canonical order.
	sort.Slice(results, func(i, j int) bool { return results[i].Ordinal < results[j].Ordinal })

	total := make(SparseGMF)
	for _, r := range results {
		stop := c.metrics.Time(metrics.StageSavingGMFs)
		err := c.gmfs.SaveValues(ctx, gmfColl, r.Value, r.Ordinal)
		stop()
		if err != nil {
			return nil, fmt.Errorf("saving gmfs for task %d: %w", r.Ordinal, err)
		}
		total.Merge(r.Value)
	}
	return total, nil
}

// splitEven partitions items into at most n contiguous, near-equal blocks.
// Empty blocks are never produced.
func splitEven[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	var blocks [][]T
	size := (len(items) + n - 1) / n
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		blocks = append(blocks, items[start:end])
	}
	return blocks
}
