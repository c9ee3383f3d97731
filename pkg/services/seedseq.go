package services

import (
	"math"
	"math/rand"
)

// MaxSubSeed bounds every sub-seed drawn by a SeedSequencer. The range is
// wide enough that collisions are not a practical concern and it is stable
// across runs and platforms.
const MaxSubSeed = math.MaxInt32

// SeedSequencer derives a strictly ordered stream of sub-seeds from one
// master seed. Sub-seeds must be drawn in a fixed enumeration order decided
// before any partitioning of the work: the same ordered item list yields the
// same per-item sub-seeds no matter how many blocks the items are later
// split into. That property is what makes the whole calculation independent
// of the task decomposition.
//
// A SeedSequencer is not safe for concurrent use; each unit of work owns its
// own sequencer.
type SeedSequencer struct {
	rnd *rand.Rand
}

// NewSeedSequencer creates a sequencer seeded once with masterSeed.
func NewSeedSequencer(masterSeed int64) *SeedSequencer {
	return &SeedSequencer{rnd: rand.New(rand.NewSource(masterSeed))}
}

// Next draws the next sub-seed in [0, MaxSubSeed].
func (s *SeedSequencer) Next() int64 {
	return s.rnd.Int63n(MaxSubSeed + 1)
}
