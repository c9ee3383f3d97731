package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tremor-labs/tremor-engine/pkg/apperrors"
)

// Validator checks one aspect of a calculator setup. All violations are
// configuration errors: they abort the job before any task is dispatched.
type Validator interface {
	Validate() error
}

// EmptyExposure fails when no asset fell within the region constraint.
type EmptyExposure struct {
	TaxonomyCensus map[string]int
}

func (v EmptyExposure) Validate() error {
	total := 0
	for _, count := range v.TaxonomyCensus {
		total += count
	}
	if total == 0 {
		return apperrors.ErrEmptyExposure
	}
	return nil
}

// NoRiskModels fails when no exposure taxonomy has a risk model at all.
type NoRiskModels struct {
	TaxonomyCensus map[string]int
	Models         RiskModelSet
}

func (v NoRiskModels) Validate() error {
	for taxonomy := range v.TaxonomyCensus {
		if _, ok := v.Models[taxonomy]; ok {
			return nil
		}
	}
	return apperrors.ErrNoRiskModels
}

// OrphanTaxonomies fails when some exposure taxonomies have no risk model,
// unless taxonomies_from_model explicitly restricts the run to modeled
// taxonomies.
type OrphanTaxonomies struct {
	TaxonomyCensus      map[string]int
	Models              RiskModelSet
	TaxonomiesFromModel bool
}

func (v OrphanTaxonomies) Validate() error {
	if v.TaxonomiesFromModel {
		return nil
	}
	var orphans []string
	for taxonomy := range v.TaxonomyCensus {
		if _, ok := v.Models[taxonomy]; !ok {
			orphans = append(orphans, taxonomy)
		}
	}
	if len(orphans) > 0 {
		sort.Strings(orphans)
		return fmt.Errorf("%w: %s", apperrors.ErrOrphanTaxonomies, strings.Join(orphans, ", "))
	}
	return nil
}

// MissingHazardIMT fails when a risk model consumes an intensity measure
// type the hazard job never computed.
type MissingHazardIMT struct {
	Models     RiskModelSet
	HazardIMTs []string
}

func (v MissingHazardIMT) Validate() error {
	computed := make(map[string]bool, len(v.HazardIMTs))
	for _, imt := range v.HazardIMTs {
		computed[imt] = true
	}
	var missing []string
	for _, imt := range v.Models.IMTs() {
		if !computed[imt] {
			missing = append(missing, imt)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrMissingHazardIMT, strings.Join(missing, ", "))
	}
	return nil
}
