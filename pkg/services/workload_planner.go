package services

import (
	"sort"

	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// WeightedSite is one (site, weight) pair for block balancing; the weight is
// the number of assets associated to the site.
type WeightedSite struct {
	SiteID int64
	Weight int
}

// WorkloadPlanner splits the per-site asset set into balanced blocks for
// parallel dispatch and groups each block's assets by taxonomy. It only
// affects parallel efficiency: the sampling and aggregation invariants
// already make results independent of the block layout.
type WorkloadPlanner struct {
	blockCount          int
	taxonomiesFromModel bool
	logger              *zap.Logger
}

// NewWorkloadPlanner creates a planner targeting blockCount blocks.
func NewWorkloadPlanner(blockCount int, taxonomiesFromModel bool, logger *zap.Logger) *WorkloadPlanner {
	if blockCount < 1 {
		blockCount = 1
	}
	return &WorkloadPlanner{
		blockCount:          blockCount,
		taxonomiesFromModel: taxonomiesFromModel,
		logger:              logger.Named("planner"),
	}
}

// SplitOnMaxWeight packs the items sequentially into blocks whose weight
// stays below ceil(total/blockCount), a balancing heuristic rather than a
// strict optimum. Every block holds at least one item and item order is
// preserved.
func (p *WorkloadPlanner) SplitOnMaxWeight(items []WeightedSite) [][]WeightedSite {
	if len(items) == 0 {
		return nil
	}

	total := 0
	for _, item := range items {
		total += item.Weight
	}
	maxWeight := (total + p.blockCount - 1) / p.blockCount
	if maxWeight < 1 {
		maxWeight = 1
	}

	var blocks [][]WeightedSite
	var block []WeightedSite
	weight := 0
	for _, item := range items {
		if len(block) > 0 && weight+item.Weight > maxWeight {
			blocks = append(blocks, block)
			block, weight = nil, 0
		}
		block = append(block, item)
		weight += item.Weight
	}
	blocks = append(blocks, block)

	p.logger.Debug("Split workload",
		zap.Int("items", len(items)),
		zap.Int("blocks", len(blocks)),
		zap.Int("max_weight", maxWeight))
	return blocks
}

// SiteBlocks balances the given site->assets association into site-id
// blocks. Sites are enumerated in ascending id order so the block layout is
// reproducible for a given block count.
func (p *WorkloadPlanner) SiteBlocks(siteAssets map[int64][]*models.Asset) [][]int64 {
	items := make([]WeightedSite, 0, len(siteAssets))
	for siteID, assets := range siteAssets {
		items = append(items, WeightedSite{SiteID: siteID, Weight: len(assets)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SiteID < items[j].SiteID })

	var blocks [][]int64
	for _, block := range p.SplitOnMaxWeight(items) {
		ids := make([]int64, len(block))
		for i, item := range block {
			ids[i] = item.SiteID
		}
		blocks = append(blocks, ids)
	}
	return blocks
}

// GroupByTaxonomy collects, for one block of sites, the assets of each
// taxonomy keyed by site. Taxonomies absent from modeled are skipped when
// the taxonomies_from_model option is set.
func (p *WorkloadPlanner) GroupByTaxonomy(block []int64, siteAssets map[int64][]*models.Asset, modeled map[string]bool) map[string]map[int64][]*models.Asset {
	out := make(map[string]map[int64][]*models.Asset)
	for _, siteID := range block {
		for _, asset := range siteAssets[siteID] {
			if p.taxonomiesFromModel && !modeled[asset.Taxonomy] {
				continue
			}
			sites, ok := out[asset.Taxonomy]
			if !ok {
				sites = make(map[int64][]*models.Asset)
				out[asset.Taxonomy] = sites
			}
			sites[siteID] = append(sites[siteID], asset)
		}
	}
	return out
}
