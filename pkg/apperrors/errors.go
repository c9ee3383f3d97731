package apperrors

import "errors"

var (
	ErrEmptyExposure    = errors.New("no assets found within the region constraint")
	ErrNoRiskModels     = errors.New("no risk model covers any taxonomy in the exposure")
	ErrOrphanTaxonomies = errors.New("taxonomies in the exposure are missing from the risk models")
	ErrMissingHazardIMT = errors.New("risk models require an intensity measure type not computed by the hazard job")
	ErrNoSources        = errors.New("no seismic sources configured")
	ErrTaskFailed       = errors.New("dispatched task failed")
)
