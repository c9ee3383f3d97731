package services

import (
	"iter"
	"sort"

	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// RuptureCollector keeps in memory all the ruptures of one SES collection
// with an occurrence count greater than zero. Each worker fills a private
// collector; collectors over the same SES collection are merged by the
// coordinator. The canonical expansion produced by Ruptures is identical no
// matter how the sampling was partitioned, provided the sub-seeds were
// assigned per source before partitioning.
type RuptureCollector struct {
	// SESCollection is the collection all recorded occurrences belong to.
	SESCollection *models.SESCollection

	// Ordinal is the index of the worker task that filled this collector.
	// It orders collectors for deterministic SES-record writing; it never
	// reorders rupture content.
	Ordinal int

	records map[models.RuptureKey]*ruptureRecord
}

type ruptureRecord struct {
	rupture     *models.Rupture
	occurrences []models.RuptureOccurrence
}

// TaggedRupture is one element of the canonical expansion: the rupture plus
// the stable tag of this particular occurrence.
type TaggedRupture struct {
	Tag     string
	Rupture *models.Rupture
}

// NewRuptureCollector creates an empty collector for one SES collection.
func NewRuptureCollector(coll *models.SESCollection, ordinal int) *RuptureCollector {
	return &RuptureCollector{
		SESCollection: coll,
		Ordinal:       ordinal,
		records:       make(map[models.RuptureKey]*ruptureRecord),
	}
}

// Add records that rup occurred count times in the SES with the given
// ordinal. Zero counts are dropped; they must never contribute to the
// canonical sequence or to Len.
func (c *RuptureCollector) Add(sesOrdinal int, rup *models.Rupture, count int) {
	if count == 0 {
		return
	}
	key := rup.Key()
	rec, ok := c.records[key]
	if !ok {
		rec = &ruptureRecord{rupture: rup}
		c.records[key] = rec
	}
	rec.occurrences = append(rec.occurrences, models.RuptureOccurrence{
		SESOrdinal: sesOrdinal,
		Rupture:    rup,
		Count:      count,
	})
}

// Len returns the number of distinct (source, rupture) keys with nonzero
// occurrences, not the total occurrence count.
func (c *RuptureCollector) Len() int {
	return len(c.records)
}

// Merge concatenates the per-key occurrence lists of other into c. Both
// collectors must refer to the same SES collection. Merge is associative and,
// once iterated through Ruptures, commutative in content: the canonical
// re-sort erases arrival order between distinct keys.
func (c *RuptureCollector) Merge(other *RuptureCollector) {
	for key, rec := range other.records {
		mine, ok := c.records[key]
		if !ok {
			c.records[key] = &ruptureRecord{
				rupture:     rec.rupture,
				occurrences: append([]models.RuptureOccurrence(nil), rec.occurrences...),
			}
			continue
		}
		mine.occurrences = append(mine.occurrences, rec.occurrences...)
	}
}

// sortedKeys returns the recorded keys in canonical (source, rupture) order.
func (c *RuptureCollector) sortedKeys() []models.RuptureKey {
	keys := make([]models.RuptureKey, 0, len(c.records))
	for key := range c.records {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Occurrences returns the recorded occurrences sorted by (source, rupture)
// key, preserving the recorded SES order within each key. Counts are not
// expanded; this is the persistence form.
func (c *RuptureCollector) Occurrences() []models.RuptureOccurrence {
	var out []models.RuptureOccurrence
	for _, key := range c.sortedKeys() {
		out = append(out, c.records[key].occurrences...)
	}
	return out
}

// Ruptures iterates the canonical rupture sequence: sorted ascending by
// (source, rupture) key, each occurrence expanded into count repeated
// entries, preserving recorded SES order within a key. The sequence is
// re-iterable: every range re-walks the collector without re-sampling and
// without materializing the expansion.
func (c *RuptureCollector) Ruptures() iter.Seq[*models.Rupture] {
	return func(yield func(*models.Rupture) bool) {
		for tr := range c.TaggedRuptures() {
			if !yield(tr.Rupture) {
				return
			}
		}
	}
}

// TaggedRuptures is the canonical expansion with the occurrence tag attached
// to every entry. Tags embed the realization ordinal of the owning SES
// collection, the SES ordinal, the source and the per-SES occurrence index,
// which makes them unique and reproducible across partitionings.
func (c *RuptureCollector) TaggedRuptures() iter.Seq[TaggedRupture] {
	return func(yield func(TaggedRupture) bool) {
		rlzOrdinal := c.SESCollection.Realization.Ordinal
		for _, key := range c.sortedKeys() {
			for _, occ := range c.records[key].occurrences {
				for i := 0; i < occ.Count; i++ {
					tr := TaggedRupture{
						Tag: models.RuptureTag(rlzOrdinal, occ.SESOrdinal,
							key.SourceID, key.LocalIndex, i),
						Rupture: occ.Rupture,
					}
					if !yield(tr) {
						return
					}
				}
			}
		}
	}
}
