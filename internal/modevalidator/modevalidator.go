// Package modevalidator projects the user-facing (explore, match-quality,
// compress) option triple into a SearchMode consumed by the explorer (§4.6).
package modevalidator

import "fmt"

// SearchMode is exactly one of the eight search policies C4 may run under.
type SearchMode int

const (
	// Default runs a single encode at the seeded parameter.
	Default SearchMode = iota
	// ExploreOnly minimizes size, ignoring quality.
	ExploreOnly
	// QualityOnly runs a single encode and validates SSIM against the floor.
	QualityOnly
	// CompressOnly runs a single encode and rejects if output > input*tolerance.
	CompressOnly
	// CompressWithQuality rejects if size grew OR SSIM is below floor.
	CompressWithQuality
	// PreciseQuality bisects for the highest CRF with SSIM >= floor, ignoring size.
	PreciseQuality
	// PreciseQualityWithCompress bisects under both SSIM >= floor AND size <= tolerance.
	PreciseQualityWithCompress
	// Ultimate is PreciseQualityWithCompress with an adaptive stopping rule.
	Ultimate
)

// String renders the human-readable mode name.
func (m SearchMode) String() string {
	switch m {
	case Default:
		return "default"
	case ExploreOnly:
		return "explore_only"
	case QualityOnly:
		return "quality_only"
	case CompressOnly:
		return "compress_only"
	case CompressWithQuality:
		return "compress_with_quality"
	case PreciseQuality:
		return "precise_quality"
	case PreciseQualityWithCompress:
		return "precise_quality_with_compress"
	case Ultimate:
		return "ultimate"
	default:
		return "unknown"
	}
}

// Resolve maps the (explore, match-quality, compress) triple, plus the
// ultimate flag, to a SearchMode per the §4.6 decision table. The triple
// (explore=true, match_quality=false, compress=true) is illegal: it asks to
// both minimize size unconditionally and enforce a compression ceiling,
// which conflict. Ultimate requires all three of the triple to be true and
// must not be set under any other combination.
func Resolve(explore, matchQuality, compress, ultimate bool) (SearchMode, error) {
	if ultimate && !(explore && matchQuality && compress) {
		return Default, fmt.Errorf("ultimate requires explore=true, match_quality=true, compress=true")
	}

	switch {
	case !explore && !matchQuality && !compress:
		return Default, nil
	case !explore && !matchQuality && compress:
		return CompressOnly, nil
	case !explore && matchQuality && !compress:
		return QualityOnly, nil
	case !explore && matchQuality && compress:
		return CompressWithQuality, nil
	case explore && !matchQuality && !compress:
		return ExploreOnly, nil
	case explore && !matchQuality && compress:
		return Default, fmt.Errorf("explore=true, match_quality=false, compress=true is an illegal combination (conflicting objectives)")
	case explore && matchQuality && !compress:
		return PreciseQuality, nil
	case explore && matchQuality && compress:
		if ultimate {
			return Ultimate, nil
		}
		return PreciseQualityWithCompress, nil
	}
	// Unreachable: the switch above is exhaustive over the boolean cube.
	return Default, fmt.Errorf("unreachable flag combination")
}
