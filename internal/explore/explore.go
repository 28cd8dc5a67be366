// Package explore searches for the best encoder parameter for a single
// input, given a seeded guess and a SearchMode (C4, spec §4.4). The
// encoder itself is treated as an expensive black box; explore only
// decides which parameter to probe next and which probe to keep.
package explore

import (
	"context"
	"fmt"
	"math"

	"github.com/hadronmedia/recompress/internal/modevalidator"
)

// EncodeFunc runs one encode attempt at param and returns the temp output's
// path and size. Implementations are expected to write to a unique temp
// path per call; explore never reuses a path across parameters.
type EncodeFunc func(ctx context.Context, param float64) (tempPath string, outputBytes int64, err error)

// SSIMFunc compares a temp output against the original and returns the
// SSIM score, or nil if the comparison could not be computed.
type SSIMFunc func(ctx context.Context, tempPath string) (*float64, error)

// Params bundles everything Run needs for one input.
type Params struct {
	Mode           modevalidator.SearchMode
	Seed           float64
	ParamMin       float64
	ParamMax       float64
	InputBytes     int64
	ToleranceRatio float64
	// IsDistance marks Seed/every probed param as a JXL/AVIF distance value
	// rather than an encoder CRF. distanceToCRF maps it onto the CRF scale
	// the adaptive SSIM floor table (§4.4) is indexed by.
	IsDistance bool
	Encode     EncodeFunc
	SSIM       SSIMFunc
}

// Result describes the best probe explore settled on.
type Result struct {
	Param         float64
	OutputPath    string
	OutputBytes   int64
	SSIM          *float64
	QualityPassed bool
	SizePassed    bool
	Rounds        int
	FailReason    string
}

const (
	ultimateEpsilon      = 0.002
	ultimateMaxExtra     = 15
	preciseMaxIterations = 6
)

// distanceToCRF maps a JXL/AVIF distance value onto the equivalent-CRF scale
// the adaptive SSIM floor table (§4.4) is indexed by: "For JXL, distance is
// mapped to an equivalent CRF for this table." distance 0 (near-lossless)
// lands in the ≤18 bucket; distance 5 (the matcher's clamp ceiling) lands
// past 35, in the most lenient bucket (0.920 floor).
func distanceToCRF(distance float64) float64 {
	return 8 + 6*distance
}

// ssimFloor is the adaptive minimum SSIM for a given seeded parameter (§4.4).
// isDistance selects the JXL/AVIF distance→CRF mapping before indexing the
// table; CRF-native encoders (AV1, HEVC) index it directly.
func ssimFloor(seedParam float64, isDistance bool) float64 {
	crf := seedParam
	if isDistance {
		crf = distanceToCRF(seedParam)
	}
	switch {
	case crf <= 18:
		return 0.995
	case crf <= 22:
		return 0.985
	case crf <= 26:
		return 0.975
	case crf <= 30:
		return 0.960
	case crf <= 35:
		return 0.940
	default:
		return 0.920
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sizeOK(outputBytes, inputBytes int64, tolerance float64) bool {
	if inputBytes <= 0 {
		return true
	}
	return float64(outputBytes) <= float64(inputBytes)*tolerance
}

// ssimOK reports whether score satisfies floor. A nil score (computation
// failed) never passes: quality unknown is treated as quality rejected.
func ssimOK(score *float64, floor float64) bool {
	if score == nil {
		return false
	}
	return *score >= floor
}

type probeResult struct {
	param float64
	path  string
	bytes int64
	ssim  *float64
}

// explorer holds the per-run probe cache so no parameter is ever encoded
// twice (§4.4: "caches results of explored parameters").
type explorer struct {
	p     Params
	floor float64
	cache map[float64]probeResult
}

func newExplorer(p Params) *explorer {
	return &explorer{p: p, floor: ssimFloor(p.Seed, p.IsDistance), cache: make(map[float64]probeResult)}
}

func (e *explorer) probe(ctx context.Context, param float64) (probeResult, error) {
	param = clamp(param, e.p.ParamMin, e.p.ParamMax)
	if cached, ok := e.cache[param]; ok {
		return cached, nil
	}
	path, bytes, err := e.p.Encode(ctx, param)
	if err != nil {
		return probeResult{}, err
	}
	pr := probeResult{param: param, path: path, bytes: bytes}
	e.cache[param] = pr
	return pr, nil
}

func (e *explorer) probeWithSSIM(ctx context.Context, param float64) (probeResult, error) {
	pr, err := e.probe(ctx, param)
	if err != nil {
		return pr, err
	}
	if pr.ssim == nil && e.p.SSIM != nil {
		score, err := e.p.SSIM(ctx, pr.path)
		if err == nil {
			pr.ssim = score
			e.cache[pr.param] = pr
		}
	}
	return pr, nil
}

// Run dispatches to the algorithm for p.Mode and returns the chosen probe.
func Run(ctx context.Context, p Params) (*Result, error) {
	e := newExplorer(p)

	switch p.Mode {
	case modevalidator.Default:
		return e.runDefault(ctx)
	case modevalidator.ExploreOnly:
		return e.runExploreOnly(ctx)
	case modevalidator.QualityOnly:
		return e.runQualityOnly(ctx)
	case modevalidator.CompressOnly:
		return e.runCompressOnly(ctx)
	case modevalidator.CompressWithQuality:
		return e.runCompressWithQuality(ctx)
	case modevalidator.PreciseQuality:
		return e.runPreciseQuality(ctx, false)
	case modevalidator.PreciseQualityWithCompress:
		return e.runPreciseQuality(ctx, true)
	case modevalidator.Ultimate:
		return e.runUltimate(ctx)
	default:
		return nil, fmt.Errorf("explore: unknown search mode %v", p.Mode)
	}
}

func (e *explorer) runDefault(ctx context.Context) (*Result, error) {
	pr, err := e.probe(ctx, e.p.Seed)
	if err != nil {
		return &Result{FailReason: err.Error()}, nil
	}
	return &Result{
		Param: pr.param, OutputPath: pr.path, OutputBytes: pr.bytes,
		QualityPassed: true, SizePassed: true, Rounds: 1,
	}, nil
}

// runExploreOnly sweeps [seed, seed+5, ..., seed+25] capped at ParamMax and
// keeps the smallest output; there is no quality gate.
func (e *explorer) runExploreOnly(ctx context.Context) (*Result, error) {
	var best *probeResult
	rounds := 0

	for step := 0.0; step <= 25; step += 5 {
		param := e.p.Seed + step
		capped := param >= e.p.ParamMax
		param = clamp(param, e.p.ParamMin, e.p.ParamMax)

		pr, err := e.probe(ctx, param)
		rounds++
		if err == nil {
			if best == nil || pr.bytes < best.bytes {
				prCopy := pr
				best = &prCopy
			}
		}
		if capped {
			break
		}
	}

	if best == nil {
		return &Result{Rounds: rounds, FailReason: "all probes failed"}, nil
	}
	return &Result{
		Param: best.param, OutputPath: best.path, OutputBytes: best.bytes,
		QualityPassed: true, SizePassed: true, Rounds: rounds,
	}, nil
}

func (e *explorer) runQualityOnly(ctx context.Context) (*Result, error) {
	pr, err := e.probeWithSSIM(ctx, e.p.Seed)
	if err != nil {
		return &Result{FailReason: err.Error()}, nil
	}
	passed := ssimOK(pr.ssim, e.floor)
	return &Result{
		Param: pr.param, OutputPath: pr.path, OutputBytes: pr.bytes, SSIM: pr.ssim,
		QualityPassed: passed, SizePassed: true, Rounds: 1,
	}, nil
}

func (e *explorer) runCompressOnly(ctx context.Context) (*Result, error) {
	pr, err := e.probe(ctx, e.p.Seed)
	if err != nil {
		return &Result{FailReason: err.Error()}, nil
	}
	passed := sizeOK(pr.bytes, e.p.InputBytes, e.p.ToleranceRatio)
	return &Result{
		Param: pr.param, OutputPath: pr.path, OutputBytes: pr.bytes,
		QualityPassed: true, SizePassed: passed, Rounds: 1,
	}, nil
}

func (e *explorer) runCompressWithQuality(ctx context.Context) (*Result, error) {
	pr, err := e.probeWithSSIM(ctx, e.p.Seed)
	if err != nil {
		return &Result{FailReason: err.Error()}, nil
	}
	return &Result{
		Param: pr.param, OutputPath: pr.path, OutputBytes: pr.bytes, SSIM: pr.ssim,
		QualityPassed: ssimOK(pr.ssim, e.floor),
		SizePassed:    sizeOK(pr.bytes, e.p.InputBytes, e.p.ToleranceRatio),
		Rounds:        1,
	}, nil
}

// runPreciseQuality bisects over [seed-3, seed+12] (encoder-clamped),
// tracking the last probe that passed. When requireSize is true a probe
// also has to satisfy the size-tolerance gate to count as passing
// (PreciseQualityWithCompress); otherwise only SSIM matters.
func (e *explorer) runPreciseQuality(ctx context.Context, requireSize bool) (*Result, error) {
	lo := clamp(e.p.Seed-3, e.p.ParamMin, e.p.ParamMax)
	hi := clamp(e.p.Seed+12, e.p.ParamMin, e.p.ParamMax)

	seedPr, err := e.probeWithSSIM(ctx, e.p.Seed)
	if err != nil {
		return &Result{FailReason: err.Error()}, nil
	}

	passes := func(pr probeResult) bool {
		if !ssimOK(pr.ssim, e.floor) {
			return false
		}
		if requireSize && !sizeOK(pr.bytes, e.p.InputBytes, e.p.ToleranceRatio) {
			return false
		}
		return true
	}

	var lastPassing *probeResult
	if passes(seedPr) {
		seedCopy := seedPr
		lastPassing = &seedCopy
	}

	rounds := 1
	for i := 0; i < preciseMaxIterations && hi-lo > 1; i++ {
		mid := clamp(math.Round((lo+hi)/2), e.p.ParamMin, e.p.ParamMax)
		pr, err := e.probeWithSSIM(ctx, mid)
		rounds++
		if err != nil {
			hi = mid
			continue
		}
		if passes(pr) {
			lo = mid
			prCopy := pr
			lastPassing = &prCopy
		} else {
			hi = mid
		}
	}

	if lastPassing == nil {
		return &Result{
			Param: seedPr.param, OutputPath: seedPr.path, OutputBytes: seedPr.bytes, SSIM: seedPr.ssim,
			QualityPassed: false, SizePassed: !requireSize, Rounds: rounds,
			FailReason: "no probe satisfied the quality/size gate",
		}, nil
	}

	return &Result{
		Param: lastPassing.param, OutputPath: lastPassing.path, OutputBytes: lastPassing.bytes,
		SSIM: lastPassing.ssim, QualityPassed: true, SizePassed: true, Rounds: rounds,
	}, nil
}

// runUltimate converges with PreciseQualityWithCompress, then keeps
// stepping the parameter upward by 1 while the SSIM lost per step stays
// below ultimateEpsilon, still bound by the size-tolerance gate on every
// extension step.
func (e *explorer) runUltimate(ctx context.Context) (*Result, error) {
	base, err := e.runPreciseQuality(ctx, true)
	if err != nil {
		return nil, err
	}
	if !base.QualityPassed {
		return base, nil
	}

	current := *base
	prevParam := base.Param
	prevSSIM := 0.0
	if base.SSIM != nil {
		prevSSIM = *base.SSIM
	}

	for i := 0; i < ultimateMaxExtra; i++ {
		nextParam := clamp(prevParam+1, e.p.ParamMin, e.p.ParamMax)
		if nextParam <= prevParam {
			break
		}

		pr, err := e.probeWithSSIM(ctx, nextParam)
		current.Rounds++
		if err != nil {
			break
		}
		if !sizeOK(pr.bytes, e.p.InputBytes, e.p.ToleranceRatio) {
			break
		}
		if pr.ssim == nil {
			break
		}

		slope := (prevSSIM - *pr.ssim) / (nextParam - prevParam)
		if slope >= ultimateEpsilon {
			break
		}

		current = Result{
			Param: pr.param, OutputPath: pr.path, OutputBytes: pr.bytes, SSIM: pr.ssim,
			QualityPassed: true, SizePassed: true, Rounds: current.Rounds,
		}
		prevParam = pr.param
		prevSSIM = *pr.ssim
	}

	return &current, nil
}
