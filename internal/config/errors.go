// Package config provides configuration types and defaults for recompress.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidSVTPreset indicates an SVT-AV1 preset outside the valid 0-13 range.
	ErrInvalidSVTPreset = errors.New("SVT-AV1 preset out of range")

	// ErrInvalidCRF indicates a CRF value outside the valid 0-63 range.
	ErrInvalidCRF = errors.New("CRF value out of range")

	// ErrInvalidTolerance indicates a tolerance ratio below 1.0.
	ErrInvalidTolerance = errors.New("tolerance ratio must be >= 1.0")

	// ErrInvalidSearchModeFlags indicates the (explore, match-quality, compress)
	// triple is an illegal combination (see internal/modevalidator).
	ErrInvalidSearchModeFlags = errors.New("conflicting explore/match-quality/compress flags")

	// ErrUltimateRequiresFullTriple indicates ultimate was requested without
	// explore, match-quality, and compress all set.
	ErrUltimateRequiresFullTriple = errors.New("ultimate mode requires explore, match-quality, and compress all set")
)
