package models

import "github.com/google/uuid"

// Realization is one sampled path through the logic tree of source and
// ground-motion model uncertainty.
type Realization struct {
	ID      uuid.UUID
	Path    string
	Weight  float64
	Ordinal int
}

// SESCollection groups the stochastic event sets of a single realization.
type SESCollection struct {
	ID          uuid.UUID
	Realization *Realization
	Sets        []*SES
}

// SES is one stochastic event set: a simulated time window of rupture
// occurrences. Ordinals start at 1.
type SES struct {
	Ordinal           int
	InvestigationTime float64
}

// NewSESCollection builds the SES container records for one realization.
func NewSESCollection(rlz *Realization, sesCount int, investigationTime float64) *SESCollection {
	coll := &SESCollection{
		ID:          uuid.New(),
		Realization: rlz,
	}
	for i := 1; i <= sesCount; i++ {
		coll.Sets = append(coll.Sets, &SES{
			Ordinal:           i,
			InvestigationTime: investigationTime,
		})
	}
	return coll
}
