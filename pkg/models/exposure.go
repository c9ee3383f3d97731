package models

// Asset is one exposed element (a building, a lifeline segment) from the
// exposure model. Immutable for the duration of a calculation.
type Asset struct {
	ID              int64
	Ref             string
	Location        Point
	Taxonomy        string
	ExposureModelID int64
}

// Site is a hazard computation point, the spatial join target for assets.
type Site struct {
	ID       int64
	Location Point
}

// CurvePoint is one (intensity level, probability of exceedance) pair of a
// hazard curve.
type CurvePoint struct {
	IML float64
	PoE float64
}
