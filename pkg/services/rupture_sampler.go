package services

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/metrics"
	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// SourceSeed pairs a seismic source with the sub-seed assigned to it before
// the sources were split into blocks. The pairing, not the block layout, is
// what determines the sampled occurrences.
type SourceSeed struct {
	Source SeismicSource
	Seed   int64
}

// RuptureSampler runs the sampling side of one worker task: it materializes
// candidate ruptures per source and samples occurrence counts for every
// stochastic event set of the collection.
type RuptureSampler struct {
	logger  *zap.Logger
	metrics *metrics.Simulation
}

// NewRuptureSampler creates a sampler.
func NewRuptureSampler(logger *zap.Logger, m *metrics.Simulation) *RuptureSampler {
	return &RuptureSampler{
		logger:  logger.Named("sampler"),
		metrics: m,
	}
}

// SampleBlock samples all sources of one block into a fresh collector.
//
// For each source, a per-source sequencer is seeded with the source's
// pre-assigned sub-seed. Its first draw seeds the rupture-geometry generator;
// one further draw per SES seeds occurrence sampling. The candidate rupture
// list is materialized once and reused across all SES; only the occurrence
// seed varies per SES.
func (s *RuptureSampler) SampleBlock(ctx context.Context, block []SourceSeed, coll *models.SESCollection, taskOrdinal int) (*RuptureCollector, error) {
	collector := NewRuptureCollector(coll, taskOrdinal)

	for _, ss := range block {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		perSource := NewSeedSequencer(ss.Seed)

		stop := s.metrics.Time(metrics.StageGeneratingRuptures)
		candidates, err := ss.Source.Ruptures(perSource.Next())
		stop()
		if err != nil {
			return nil, fmt.Errorf("generating ruptures for source %s: %w", ss.Source.SourceID(), err)
		}

		stop = s.metrics.Time(metrics.StageSamplingRuptures)
		for _, ses := range coll.Sets {
			rng := rand.New(rand.NewSource(perSource.Next()))
			for _, rup := range candidates {
				n := ss.Source.SampleOccurrences(rup, rng)
				s.metrics.RupturesSampled.Inc()
				if n > 0 {
					s.metrics.RupturesKept.Inc()
				}
				collector.Add(ses.Ordinal, rup, n)
			}
		}
		stop()
	}

	s.logger.Debug("Sampled block",
		zap.Int("task", taskOrdinal),
		zap.Int("sources", len(block)),
		zap.Int("distinct_ruptures", collector.Len()))
	return collector, nil
}
