package explore

import (
	"context"
	"fmt"
	"testing"

	"github.com/hadronmedia/recompress/internal/modevalidator"
)

func f64(v float64) *float64 { return &v }

// linearEncoder models an encoder whose output shrinks and whose SSIM drops
// as param increases, so ssim(param) = startSSIM - slope*(param-paramFloor).
func linearEncoder(startSSIM, slope float64, paramFloor float64) (EncodeFunc, SSIMFunc) {
	bytesFor := func(param float64) int64 {
		return int64(1_000_000 - int(param)*10_000)
	}
	ssimFor := func(param float64) float64 {
		return startSSIM - slope*(param-paramFloor)
	}
	encode := func(_ context.Context, param float64) (string, int64, error) {
		return fmt.Sprintf("/tmp/out-%v", param), bytesFor(param), nil
	}
	ssim := func(_ context.Context, path string) (*float64, error) {
		var param float64
		fmt.Sscanf(path, "/tmp/out-%v", &param)
		return f64(ssimFor(param)), nil
	}
	return encode, ssim
}

func TestRunDefault(t *testing.T) {
	encode, _ := linearEncoder(0.99, 0.001, 20)
	res, err := Run(context.Background(), Params{
		Mode: modevalidator.Default, Seed: 24, ParamMin: 1, ParamMax: 63,
		InputBytes: 1_000_000, ToleranceRatio: 1.01, Encode: encode,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.QualityPassed || res.Rounds != 1 {
		t.Errorf("Run(Default) = %+v, want single passing probe", res)
	}
}

func TestRunExploreOnlyPicksSmallest(t *testing.T) {
	encode, _ := linearEncoder(0.99, 0.001, 20)
	res, err := Run(context.Background(), Params{
		Mode: modevalidator.ExploreOnly, Seed: 20, ParamMin: 1, ParamMax: 63,
		Encode: encode,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Sweep is seed, seed+5, ..., seed+25; largest param always yields the
	// smallest byte count in this linear encoder, so it must win.
	if res.Param != 45 {
		t.Errorf("Run(ExploreOnly).Param = %v, want 45", res.Param)
	}
}

func TestRunQualityOnlyRejectsBelowFloor(t *testing.T) {
	encode, ssim := linearEncoder(0.90, 0.0, 20)
	res, err := Run(context.Background(), Params{
		Mode: modevalidator.QualityOnly, Seed: 24, ParamMin: 1, ParamMax: 63,
		Encode: encode, SSIM: ssim,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.QualityPassed {
		t.Errorf("Run(QualityOnly) = %+v, want quality_passed=false (0.90 < 0.975 floor)", res)
	}
}

func TestRunCompressOnlyRejectsSizeIncrease(t *testing.T) {
	encode := func(_ context.Context, param float64) (string, int64, error) {
		return "/tmp/out", 2_000_000, nil
	}
	res, err := Run(context.Background(), Params{
		Mode: modevalidator.CompressOnly, Seed: 24, ParamMin: 1, ParamMax: 63,
		InputBytes: 1_000_000, ToleranceRatio: 1.01, Encode: encode,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.SizePassed {
		t.Error("Run(CompressOnly) should reject an output larger than tolerance allows")
	}
}

// TestPreciseQualityTieBreak grounds Open Question decision #1: when the
// bisection bracket collapses (hi-lo<=1), the last passing probe's
// parameter is returned with no extra confirmation step.
func TestPreciseQualityTieBreak(t *testing.T) {
	// SSIM crosses the floor (0.975, seed=24 bucket) somewhere between
	// param 24 and param 36; floor for seed=24 is 0.975.
	encode, ssim := linearEncoder(0.999, 0.002, 24)
	res, err := Run(context.Background(), Params{
		Mode: modevalidator.PreciseQuality, Seed: 24, ParamMin: 1, ParamMax: 63,
		Encode: encode, SSIM: ssim,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.QualityPassed {
		t.Fatalf("Run(PreciseQuality) = %+v, want a passing probe", res)
	}
	if res.SSIM == nil || *res.SSIM < 0.975 {
		t.Errorf("Run(PreciseQuality) returned probe below the floor: %+v", res)
	}
	if res.Rounds > preciseMaxIterations+1 {
		t.Errorf("Run(PreciseQuality) used %d rounds, want <= %d (P11)", res.Rounds, preciseMaxIterations+1)
	}
}

func TestPreciseQualityWithCompressNoPassReturnsSeed(t *testing.T) {
	// SSIM never meets the floor at any param.
	encode := func(_ context.Context, param float64) (string, int64, error) {
		return fmt.Sprintf("/tmp/out-%v", param), 1_000_000, nil
	}
	ssim := func(_ context.Context, _ string) (*float64, error) {
		return f64(0.5), nil
	}
	res, err := Run(context.Background(), Params{
		Mode: modevalidator.PreciseQualityWithCompress, Seed: 24, ParamMin: 1, ParamMax: 63,
		InputBytes: 1_000_000, ToleranceRatio: 1.01, Encode: encode, SSIM: ssim,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.QualityPassed {
		t.Error("expected quality_passed=false when no probe ever passes")
	}
	if res.Param != 24 {
		t.Errorf("Param = %v, want the seed probe's param (24)", res.Param)
	}
}

// TestSSIMNoneNeverPasses grounds Open Question decision #3: a nil SSIM
// (computation failure) must never satisfy any quality gate.
func TestSSIMNoneNeverPasses(t *testing.T) {
	encode := func(_ context.Context, param float64) (string, int64, error) {
		return "/tmp/out", 500_000, nil
	}
	ssim := func(_ context.Context, _ string) (*float64, error) {
		return nil, fmt.Errorf("ssim computation failed")
	}
	res, err := Run(context.Background(), Params{
		Mode: modevalidator.QualityOnly, Seed: 24, ParamMin: 1, ParamMax: 63,
		Encode: encode, SSIM: ssim,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.QualityPassed {
		t.Error("a None SSIM must never pass the quality gate")
	}
	if res.SSIM != nil {
		t.Errorf("SSIM = %v, want nil", res.SSIM)
	}
}

// TestUltimateRespectsToleranceDuringExtension grounds Open Question
// decision #2: Ultimate's adaptive-stop extension must still obey the
// size-tolerance gate on every extension step, not only during the
// initial bisection.
func TestUltimateRespectsToleranceDuringExtension(t *testing.T) {
	inputBytes := int64(1_000_000)
	tolerance := 1.01

	// Quality degrades very slowly (well under epsilon) so Ultimate wants
	// to keep extending, but size crosses the tolerance ceiling exactly
	// one step past the point where the bisection already converged.
	encode := func(_ context.Context, param float64) (string, int64, error) {
		bytes := int64(900_000)
		if param >= 30 {
			bytes = int64(float64(inputBytes) * 1.05) // over tolerance
		}
		return fmt.Sprintf("/tmp/out-%v", param), bytes, nil
	}
	ssim := func(_ context.Context, path string) (*float64, error) {
		var param float64
		fmt.Sscanf(path, "/tmp/out-%v", &param)
		// Stays above the seed=24 floor (0.975) across the whole bracket, so
		// only the size gate at param 30 stops the bisection (at 29) and the
		// first extension step.
		return f64(0.999 - 0.0005*(param-24)), nil
	}

	res, err := Run(context.Background(), Params{
		Mode: modevalidator.Ultimate, Seed: 24, ParamMin: 1, ParamMax: 63,
		InputBytes: inputBytes, ToleranceRatio: tolerance, Encode: encode, SSIM: ssim,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.QualityPassed {
		t.Fatalf("Run(Ultimate) = %+v, want a passing base probe", res)
	}
	if res.Param >= 30 {
		t.Errorf("Run(Ultimate) accepted param %v, which exceeds the size-tolerance gate", res.Param)
	}
	if !sizeOK(res.OutputBytes, inputBytes, tolerance) {
		t.Errorf("Run(Ultimate) returned a result violating size tolerance: %+v", res)
	}
}

func TestSSIMFloorTable(t *testing.T) {
	tests := []struct {
		seed float64
		want float64
	}{
		{10, 0.995}, {18, 0.995}, {20, 0.985}, {25, 0.975}, {29, 0.960}, {33, 0.940}, {40, 0.920},
	}
	for _, tt := range tests {
		if got := ssimFloor(tt.seed, false); got != tt.want {
			t.Errorf("ssimFloor(%v, false) = %v, want %v", tt.seed, got, tt.want)
		}
	}
}

// TestSSIMFloorTableJXLDistance grounds the §4.4 requirement that a JXL/AVIF
// distance seed is first mapped to an equivalent CRF before indexing the
// same floor table a CRF-native encoder uses.
func TestSSIMFloorTableJXLDistance(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 0.995},   // crf 8
		{1.5, 0.995}, // crf 17
		{2, 0.985},   // crf 20
		{3, 0.975},   // crf 26
		{3.5, 0.960}, // crf 29
		{4.5, 0.940}, // crf 35
		{5, 0.920},   // crf 38, the matcher's distance clamp ceiling
	}
	for _, tt := range tests {
		if got := ssimFloor(tt.distance, true); got != tt.want {
			t.Errorf("ssimFloor(%v, true) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

// TestRunQualityOnlyJXLDistanceSeed grounds P2 for the still-image path: a
// JXL seed of distance 5 (the loosest the matcher ever emits) must be held
// to the 0.920 floor, not the 0.995 "visually lossless" floor a raw CRF-style
// read of the same numeric value would hit.
func TestRunQualityOnlyJXLDistanceSeed(t *testing.T) {
	encode, ssim := linearEncoder(0.93, 0.0, 5)
	res, err := Run(context.Background(), Params{
		Mode: modevalidator.QualityOnly, Seed: 5, ParamMin: 0, ParamMax: 15,
		IsDistance: true, Encode: encode, SSIM: ssim,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.QualityPassed {
		t.Errorf("Run(QualityOnly, distance seed) = %+v, want quality_passed=true (0.93 >= 0.920 floor)", res)
	}
}

func TestRunUnknownModeErrors(t *testing.T) {
	_, err := Run(context.Background(), Params{Mode: modevalidator.SearchMode(99)})
	if err == nil {
		t.Error("expected error for unknown search mode")
	}
}
