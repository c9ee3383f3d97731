package models

import "github.com/google/uuid"

// GMFCollection groups the ground motion fields of a single realization.
type GMFCollection struct {
	ID          uuid.UUID
	Realization *Realization
}

// GMFKey addresses one accumulated list of ground motion values.
type GMFKey struct {
	IMT    string
	SiteID int64
}

// GMFEntry holds the nonzero ground motion values accumulated for one
// (imt, site) pair, with the tag of the contributing rupture occurrence at
// the same position. Both slices grow in canonical rupture order.
type GMFEntry struct {
	Values      []float64
	RuptureTags []string
}
