package sources

import (
	"math"
	"math/rand"

	"github.com/tremor-labs/tremor-engine/pkg/models"
)

// MagnitudeRate is one bin of a discrete magnitude-frequency distribution:
// events of the given magnitude occur at AnnualRate per year on average.
type MagnitudeRate struct {
	Magnitude  float64 `yaml:"magnitude"`
	AnnualRate float64 `yaml:"annual_rate"`
}

// PointSource is a seismic source concentrated at a single location. Each
// magnitude bin yields one candidate rupture; occurrence counts follow a
// Poisson temporal model over the investigation time.
type PointSource struct {
	id                string
	location          models.Point
	tectonicRegion    string
	magnitudes        []MagnitudeRate
	investigationTime float64
}

// NewPointSource creates a point source. The magnitude bins keep their given
// order; that order fixes the per-source rupture indices.
func NewPointSource(id string, location models.Point, tectonicRegion string, magnitudes []MagnitudeRate, investigationTime float64) *PointSource {
	return &PointSource{
		id:                id,
		location:          location,
		tectonicRegion:    tectonicRegion,
		magnitudes:        magnitudes,
		investigationTime: investigationTime,
	}
}

// SourceID returns the stable identifier of the source.
func (s *PointSource) SourceID() string {
	return s.id
}

// Ruptures materializes one rupture per magnitude bin. Point-source geometry
// is fixed, so the geometry seed does not influence the list; sources with
// stochastic geometry use it to seed their generator.
func (s *PointSource) Ruptures(geometrySeed int64) ([]*models.Rupture, error) {
	_ = geometrySeed

	rups := make([]*models.Rupture, 0, len(s.magnitudes))
	for i, mr := range s.magnitudes {
		rups = append(rups, &models.Rupture{
			SourceID:       s.id,
			LocalIndex:     i,
			Magnitude:      mr.Magnitude,
			Hypocenter:     s.location,
			TectonicRegion: s.tectonicRegion,
		})
	}
	return rups, nil
}

// SampleOccurrences draws a Poisson occurrence count for one rupture with
// mean annual_rate * investigation_time.
func (s *PointSource) SampleOccurrences(rup *models.Rupture, rng *rand.Rand) int {
	if rup.LocalIndex < 0 || rup.LocalIndex >= len(s.magnitudes) {
		return 0
	}
	mean := s.magnitudes[rup.LocalIndex].AnnualRate * s.investigationTime
	return poisson(rng, mean)
}

// poisson draws from a Poisson distribution with the given mean using the
// Knuth multiplication method. Adequate for the small means of seismic
// occurrence models.
func poisson(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	limit := math.Exp(-mean)
	count := 0
	for p := rng.Float64(); p > limit; p *= rng.Float64() {
		count++
	}
	return count
}
