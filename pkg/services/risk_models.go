package services

import "sort"

// RiskModel binds one taxonomy and loss type to a vulnerability model. The
// vulnerability function itself lives in the external risk library; the
// engine only needs the binding and the IMT it consumes.
type RiskModel struct {
	Taxonomy    string
	LossType    string
	IMT         string
	Retrofitted bool
}

// RiskModelSet is the nested taxonomy -> loss type -> model lookup.
type RiskModelSet map[string]map[string]RiskModel

// Add inserts a model under its taxonomy and loss type.
func (s RiskModelSet) Add(m RiskModel) {
	byLoss, ok := s[m.Taxonomy]
	if !ok {
		byLoss = make(map[string]RiskModel)
		s[m.Taxonomy] = byLoss
	}
	byLoss[m.LossType] = m
}

// LossTypes returns the distinct loss types across all taxonomies, sorted.
func (s RiskModelSet) LossTypes() []string {
	seen := make(map[string]struct{})
	for _, byLoss := range s {
		for lossType := range byLoss {
			seen[lossType] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for lossType := range seen {
		out = append(out, lossType)
	}
	sort.Strings(out)
	return out
}

// Taxonomies returns the set of modeled taxonomies.
func (s RiskModelSet) Taxonomies() map[string]bool {
	out := make(map[string]bool, len(s))
	for taxonomy := range s {
		out[taxonomy] = true
	}
	return out
}

// IMTs returns the distinct intensity measure types the models consume,
// sorted.
func (s RiskModelSet) IMTs() []string {
	seen := make(map[string]struct{})
	for _, byLoss := range s {
		for _, m := range byLoss {
			seen[m.IMT] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for imt := range seen {
		out = append(out, imt)
	}
	sort.Strings(out)
	return out
}
