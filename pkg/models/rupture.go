package models

import "fmt"

// Rupture is a single sampled seismic event. Ruptures are immutable once
// produced by a source model; the engine only reads them.
type Rupture struct {
	SourceID       string
	LocalIndex     int
	Magnitude      float64
	Hypocenter     Point
	TectonicRegion string
}

// Key returns the identity of the rupture within a calculation.
func (r *Rupture) Key() RuptureKey {
	return RuptureKey{SourceID: r.SourceID, LocalIndex: r.LocalIndex}
}

// RuptureKey identifies a rupture by its source and per-source index.
type RuptureKey struct {
	SourceID   string
	LocalIndex int
}

// Less defines the canonical ordering of ruptures: ascending by source id,
// then by per-source index.
func (k RuptureKey) Less(o RuptureKey) bool {
	if k.SourceID != o.SourceID {
		return k.SourceID < o.SourceID
	}
	return k.LocalIndex < o.LocalIndex
}

// RuptureOccurrence records that a rupture occurred Count times in one
// stochastic event set. Count is always >= 1; zero-occurrence samples are
// never recorded.
type RuptureOccurrence struct {
	SESOrdinal int
	Rupture    *Rupture
	Count      int
}

// RuptureTag builds the stable identifier of one rupture occurrence. Tags are
// generated in canonical order and referenced by ground motion field rows.
func RuptureTag(rlzOrdinal, sesOrdinal int, sourceID string, localIndex, occurrence int) string {
	return fmt.Sprintf("rlz=%02d|ses=%04d|src=%s|rup=%03d-%02d",
		rlzOrdinal, sesOrdinal, sourceID, localIndex, occurrence+1)
}
