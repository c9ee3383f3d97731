package sources

import (
	"math"
	"math/rand"

	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/services"
)

// attenuationCoeffs are the coefficients of the simple attenuation relation
// ln(median) = a*M - b*ln(R + c), with aleatory standard deviation sigma in
// log space.
type attenuationCoeffs struct {
	a, b, c, sigma float64
}

// coeffsByIMT holds per-IMT coefficients. IMTs without an entry fall back to
// the PGA coefficients.
var coeffsByIMT = map[string]attenuationCoeffs{
	"PGA":     {a: 1.10, b: 1.75, c: 10.0, sigma: 0.60},
	"PGV":     {a: 1.25, b: 1.60, c: 10.0, sigma: 0.65},
	"SA(0.1)": {a: 1.15, b: 1.80, c: 10.0, sigma: 0.62},
	"SA(0.5)": {a: 1.05, b: 1.70, c: 10.0, sigma: 0.63},
	"SA(1.0)": {a: 0.95, b: 1.65, c: 10.0, sigma: 0.64},
}

// AttenuationModel is a simple magnitude-distance attenuation ground motion
// model with truncated lognormal aleatory variability. Values are in g.
type AttenuationModel struct {
	baseline float64
}

// NewAttenuationModel creates the model. The baseline shifts all medians in
// log space and lets calculations tune overall motion levels.
func NewAttenuationModel(baseline float64) *AttenuationModel {
	return &AttenuationModel{baseline: baseline}
}

// ComputeFields returns one value per site for each requested IMT, in the
// given site order. Sites beyond params.MaxDistanceKm come back as zero. The
// seed fully determines the output: equal inputs and seed give equal fields.
func (m *AttenuationModel) ComputeFields(rup *models.Rupture, sites []*models.Site, params services.GMFParams, seed int64) (map[string][]float64, error) {
	rng := rand.New(rand.NewSource(seed))

	fields := make(map[string][]float64, len(params.IMTs))
	for _, imt := range params.IMTs {
		coeffs, ok := coeffsByIMT[imt]
		if !ok {
			coeffs = coeffsByIMT["PGA"]
		}

		values := make([]float64, len(sites))
		for i, site := range sites {
			dist := rup.Hypocenter.DistanceKm(site.Location)
			if dist > params.MaxDistanceKm {
				continue
			}
			lnMedian := m.baseline + coeffs.a*rup.Magnitude - coeffs.b*math.Log(dist+coeffs.c)
			eps := truncatedNormal(rng, params.TruncationLevel)
			values[i] = math.Exp(lnMedian + coeffs.sigma*eps)
		}
		fields[imt] = values
	}
	return fields, nil
}

// truncatedNormal draws a standard normal deviate clamped to +/- level.
// level <= 0 means no truncation.
func truncatedNormal(rng *rand.Rand, level float64) float64 {
	eps := rng.NormFloat64()
	if level > 0 {
		eps = math.Max(-level, math.Min(level, eps))
	}
	return eps
}
