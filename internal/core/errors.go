package core

import "errors"

// Error taxonomy shared by every stage. Callers match with errors.Is.
var (
	// ErrSourceUnavailable marks an adapter failure. Tolerated: items dropped, health degraded.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEnrichmentDegraded marks a missing NLP capability. Features fall back to defaults.
	ErrEnrichmentDegraded = errors.New("enrichment degraded")

	// ErrConfigurationInvalid is fatal at startup; the pipeline refuses to run.
	ErrConfigurationInvalid = errors.New("configuration invalid")

	// ErrScoringUndefined marks a missing velocity baseline, resolved by a neutral default.
	ErrScoringUndefined = errors.New("scoring undefined")

	// ErrCorrelationInsufficient marks a pitch card missing one signal kind.
	ErrCorrelationInsufficient = errors.New("correlation insufficient")

	// ErrValidationViolation wraps Risk Validator findings.
	ErrValidationViolation = errors.New("validation violation")

	// ErrRunInProgress rejects a trigger while another run is active.
	ErrRunInProgress = errors.New("pipeline run already in progress")
)
