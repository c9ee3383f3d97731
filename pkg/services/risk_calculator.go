package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/config"
	"github.com/tremor-labs/tremor-engine/pkg/dispatch"
	"github.com/tremor-labs/tremor-engine/pkg/metrics"
	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// Workflow is the external risk-library computation bound to one taxonomy
// and loss type. It pulls hazard through the getters and writes its own
// outputs.
type Workflow interface {
	ComputeAllOutputs(ctx context.Context, getters []HazardGetter, lossType string) error
}

// WorkflowFactory builds the workflow for one taxonomy and loss type.
// Sampling seeds (asset correlation, retrofitted draws) are taken from the
// supplied sequencer at construction time, in unit-generation order.
type WorkflowFactory func(taxonomy, lossType string, seeds *SeedSequencer) (Workflow, error)

// GetterFactory builds the hazard getters of one calculation unit, one per
// hazard output of the model's realization set.
type GetterFactory func(model RiskModel, siteAssets map[int64][]*models.Asset) ([]HazardGetter, error)

// CalculationUnit is one unit of risk work: a workflow over the assets of a
// single taxonomy within one site block. Units are constructed per dispatch
// and discarded after use.
type CalculationUnit struct {
	LossType string
	Workflow Workflow
	Getters  []HazardGetter
}

// RiskCalculator prepares and distributes risk work: exposure census,
// configuration validation, asset-to-site association and calculation-unit
// generation over balanced site blocks.
type RiskCalculator struct {
	cfg             config.RiskConfig
	hazardIMTs      []string
	models          RiskModelSet
	exposure        ExposureSource
	locator         SiteLocator
	planner         *WorkloadPlanner
	pool            *dispatch.Pool
	seq             *SeedSequencer
	workflowFactory WorkflowFactory
	getterFactory   GetterFactory
	logger          *zap.Logger
	metrics         *metrics.Simulation

	// Populated by PreExecute.
	taxonomyCensus map[string]int
	siteAssets     map[int64][]*models.Asset
	missingAssets  []int64
}

// NewRiskCalculator wires a risk calculator.
func NewRiskCalculator(
	cfg config.RiskConfig,
	masterSeed int64,
	hazardIMTs []string,
	riskModels RiskModelSet,
	exposure ExposureSource,
	locator SiteLocator,
	pool *dispatch.Pool,
	workflowFactory WorkflowFactory,
	getterFactory GetterFactory,
	logger *zap.Logger,
	m *metrics.Simulation,
) *RiskCalculator {
	return &RiskCalculator{
		cfg:             cfg,
		hazardIMTs:      hazardIMTs,
		models:          riskModels,
		exposure:        exposure,
		locator:         locator,
		planner:         NewWorkloadPlanner(cfg.ConcurrentTasks, cfg.TaxonomiesFromModel, logger),
		pool:            pool,
		seq:             NewSeedSequencer(masterSeed),
		workflowFactory: workflowFactory,
		getterFactory:   getterFactory,
		logger:          logger.Named("risk"),
		metrics:         m,
	}
}

// MissingAssets returns the ids of assets excluded for lack of a hazard
// site within the cutoff. Valid after PreExecute.
func (c *RiskCalculator) MissingAssets() []int64 { return c.missingAssets }

// SiteAssets returns the association built by PreExecute.
func (c *RiskCalculator) SiteAssets() map[int64][]*models.Asset { return c.siteAssets }

// PreExecute parses the exposure, validates the calculator setup and
// associates every asset to its nearest hazard site. Validation failures
// abort the job here, before any dispatch.
func (c *RiskCalculator) PreExecute(ctx context.Context) error {
	assets, err := c.exposure.Assets(ctx)
	if err != nil {
		return fmt.Errorf("loading exposure: %w", err)
	}

	assetByID := make(map[int64]*models.Asset, len(assets))
	census := make(map[string]int)
	for _, asset := range assets {
		assetByID[asset.ID] = asset
		census[asset.Taxonomy]++
	}

	if c.cfg.TaxonomiesFromModel {
		for taxonomy := range census {
			if _, ok := c.models[taxonomy]; !ok {
				delete(census, taxonomy)
			}
		}
	}
	c.taxonomyCensus = census

	total := 0
	for _, count := range census {
		total += count
	}
	c.logger.Info("Considering assets",
		zap.Int("assets", total),
		zap.Int("taxonomies", len(census)))
	for _, taxonomy := range sortedTaxonomies(census) {
		c.logger.Info("Exposure taxonomy",
			zap.String("taxonomy", taxonomy),
			zap.Int("assets", census[taxonomy]))
	}

	validators := []Validator{
		EmptyExposure{TaxonomyCensus: census},
		NoRiskModels{TaxonomyCensus: census, Models: c.models},
		OrphanTaxonomies{TaxonomyCensus: census, Models: c.models, TaxonomiesFromModel: c.cfg.TaxonomiesFromModel},
		MissingHazardIMT{Models: c.models, HazardIMTs: c.hazardIMTs},
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("calculator configuration: %w", err)
		}
	}

	exposureModelID := int64(0)
	if len(assets) > 0 {
		exposureModelID = assets[0].ExposureModelID
	}

	// One association task per taxonomy, reduced single-threaded into the
	// site->assets map. Completion order is arbitrary; the per-site id sort
	// below restores a repeatable order.
	defer c.metrics.Time(metrics.StageAssociatingAssets)()
	taxonomies := sortedTaxonomies(census)
	siteAssetIDs, err := dispatch.MapReduce(ctx, c.pool, taxonomies,
		func(ctx context.Context, taxonomy string) ([]SiteAssets, error) {
			return c.locator.NearestSites(ctx, taxonomy, exposureModelID, c.cfg.MaxDistanceKm)
		},
		func(acc map[int64][]int64, r dispatch.Result[[]SiteAssets]) map[int64][]int64 {
			for _, group := range r.Value {
				acc[group.SiteID] = append(acc[group.SiteID], group.AssetIDs...)
			}
			return acc
		},
		make(map[int64][]int64))
	if err != nil {
		return fmt.Errorf("associating assets to sites: %w", err)
	}

	c.siteAssets = make(map[int64][]*models.Asset, len(siteAssetIDs))
	associated := make(map[int64]bool)
	for siteID, assetIDs := range siteAssetIDs {
		sort.Slice(assetIDs, func(i, j int) bool { return assetIDs[i] < assetIDs[j] })
		for _, id := range assetIDs {
			if asset, ok := assetByID[id]; ok {
				c.siteAssets[siteID] = append(c.siteAssets[siteID], asset)
				associated[id] = true
			}
		}
	}

	c.missingAssets = nil
	for _, asset := range assets {
		if _, considered := census[asset.Taxonomy]; !considered {
			continue
		}
		if !associated[asset.ID] {
			c.missingAssets = append(c.missingAssets, asset.ID)
		}
	}
	sort.Slice(c.missingAssets, func(i, j int) bool { return c.missingAssets[i] < c.missingAssets[j] })
	if len(c.missingAssets) > 0 {
		c.logger.Warn("Assets are too far from the hazard sites and the risk cannot be computed",
			zap.Int("missing", len(c.missingAssets)))
	}

	return nil
}

// CalculationUnits generates the per-block unit lists for dispatch. Blocks
// balance asset counts; within a block, units are generated per loss type
// and taxonomy in sorted order so workflow seeds are assigned
// deterministically.
func (c *RiskCalculator) CalculationUnits(ctx context.Context) ([][]CalculationUnit, error) {
	if c.siteAssets == nil {
		return nil, fmt.Errorf("calculation units requested before PreExecute")
	}

	modeled := c.models.Taxonomies()
	lossTypes := c.models.LossTypes()

	var blocks [][]CalculationUnit
	for _, block := range c.planner.SiteBlocks(c.siteAssets) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		byTaxonomy := c.planner.GroupByTaxonomy(block, c.siteAssets, modeled)

		taxonomies := make([]string, 0, len(byTaxonomy))
		for taxonomy := range byTaxonomy {
			taxonomies = append(taxonomies, taxonomy)
		}
		sort.Strings(taxonomies)

		var units []CalculationUnit
		for _, lossType := range lossTypes {
			for _, taxonomy := range taxonomies {
				model, ok := c.models[taxonomy][lossType]
				if !ok {
					continue
				}
				workflow, err := c.workflowFactory(taxonomy, lossType, c.seq)
				if err != nil {
					return nil, fmt.Errorf("building workflow for %s/%s: %w", taxonomy, lossType, err)
				}
				getters, err := c.getterFactory(model, byTaxonomy[taxonomy])
				if err != nil {
					return nil, fmt.Errorf("building getters for %s/%s: %w", taxonomy, lossType, err)
				}
				units = append(units, CalculationUnit{
					LossType: lossType,
					Workflow: workflow,
					Getters:  getters,
				})
			}
		}
		if len(units) > 0 {
			blocks = append(blocks, units)
		}
	}
	return blocks, nil
}

// Execute dispatches the unit blocks to the pool. Each block runs to
// completion on one worker; any unit failure aborts the whole job.
func (c *RiskCalculator) Execute(ctx context.Context, blocks [][]CalculationUnit) error {
	for range blocks {
		c.metrics.TasksDispatched.Inc()
	}
	_, err := dispatch.Map(ctx, c.pool, blocks, func(ctx context.Context, units []CalculationUnit) (struct{}, error) {
		for _, unit := range units {
			if err := unit.Workflow.ComputeAllOutputs(ctx, unit.Getters, unit.LossType); err != nil {
				return struct{}{}, fmt.Errorf("loss type %s: %w", unit.LossType, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

func sortedTaxonomies(census map[string]int) []string {
	out := make([]string, 0, len(census))
	for taxonomy := range census {
		out = append(out, taxonomy)
	}
	sort.Strings(out)
	return out
}
