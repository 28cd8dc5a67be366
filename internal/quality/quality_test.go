package quality

import (
	"testing"

	"github.com/hadronmedia/recompress/internal/probe"
)

func TestEffectiveBPPInvalidDimensions(t *testing.T) {
	mp := &probe.MediaProbe{Width: 0, Height: 0}
	if _, err := EffectiveBPP(mp, TargetAV1); err == nil {
		t.Error("expected error for zero dimensions")
	}
}

func TestAV1CRFClamped(t *testing.T) {
	if got := AV1CRF(10); got > 35 {
		t.Errorf("AV1CRF(10) = %d, want <= 35", got)
	}
	if got := AV1CRF(0.0001); got < 18 {
		t.Errorf("AV1CRF(0.0001) = %d, want >= 18", got)
	}
}

func TestHEVCCRFClamped(t *testing.T) {
	if got := HEVCCRF(10); got > 32 {
		t.Errorf("HEVCCRF(10) = %d, want <= 32", got)
	}
	if got := HEVCCRF(0.00001); got < 0 {
		t.Errorf("HEVCCRF(0.00001) = %d, want >= 0", got)
	}
}

func TestJXLDistanceFromJPEGQualityClamped(t *testing.T) {
	if got := JXLDistanceFromJPEGQuality(100); got != 0.0 {
		t.Errorf("JXLDistanceFromJPEGQuality(100) = %v, want 0.0", got)
	}
	if got := JXLDistanceFromJPEGQuality(0); got != 5.0 {
		t.Errorf("JXLDistanceFromJPEGQuality(0) = %v, want 5.0", got)
	}
	if got := JXLDistanceFromJPEGQuality(150); got != 0.0 {
		t.Errorf("JXLDistanceFromJPEGQuality(150) should clamp to 0.0, got %v", got)
	}
}

// TestCRFMonotonicNonincreasingInBPP grounds P10: lower bpp implies higher
// CRF (sanity check on the §4.3 mapping).
func TestCRFMonotonicNonincreasingInBPP(t *testing.T) {
	bpps := []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0}

	for target, mapFn := range map[Target]func(float64) uint8{
		TargetAV1:  AV1CRF,
		TargetHEVC: HEVCCRF,
	} {
		var prevCRF uint8
		for i, bpp := range bpps {
			crf := mapFn(bpp)
			if i > 0 && crf > prevCRF {
				t.Errorf("target %v: CRF increased with higher bpp: CRF(%v)=%d > CRF(%v)=%d",
					target, bpp, crf, bpps[i-1], prevCRF)
			}
			prevCRF = crf
		}
	}
}

func TestInitialParameterWithJPEGQuality(t *testing.T) {
	mp := &probe.MediaProbe{Width: 100, Height: 100, BitsPerPixelPerFrame: 1.0}
	q := 90.0
	got, err := InitialParameter(mp, TargetJXL, &q)
	if err != nil {
		t.Fatalf("InitialParameter() error = %v", err)
	}
	want := JXLDistanceFromJPEGQuality(90)
	if got != want {
		t.Errorf("InitialParameter() = %v, want %v", got, want)
	}
}

func TestInitialParameterAV1(t *testing.T) {
	mp := &probe.MediaProbe{
		Width: 1920, Height: 1080, BitDepth: 8,
		Codec: "h264", BitsPerPixelPerFrame: 0.1,
	}
	got, err := InitialParameter(mp, TargetAV1, nil)
	if err != nil {
		t.Fatalf("InitialParameter() error = %v", err)
	}
	if got < 18 || got > 35 {
		t.Errorf("InitialParameter() AV1 CRF = %v, out of [18,35]", got)
	}
}

func TestResolutionFactorTiers(t *testing.T) {
	tests := []struct {
		w, h uint32
		want float64
	}{
		{640, 480, defaultResolutionFactor},
		{1000, 1000, smallResolutionFactor},
		{2000, 2000, mediumResolutionFactor},
		{4000, 4000, bigResolutionFactor},
	}
	for _, tt := range tests {
		if got := resolutionFactor(tt.w, tt.h); got != tt.want {
			t.Errorf("resolutionFactor(%d,%d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}
