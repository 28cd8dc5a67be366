package router

import (
	"testing"

	"github.com/hadronmedia/recompress/internal/probe"
)

func baseProbe() *probe.MediaProbe {
	return &probe.MediaProbe{
		Width:  640,
		Height: 480,
	}
}

func TestRouteModernVideoSkipped(t *testing.T) {
	mp := baseProbe()
	mp.CodecClass = probe.CodecClassModern
	mp.Codec = "hevc"

	got := Route("recent.mp4", mp, Flags{AV1Available: true})
	if got.Target != Skip || got.Reason != "modern" {
		t.Errorf("Route() = %+v, want Skip/modern", got)
	}
}

func TestRouteModernVideoAppleCompatNotSkipped(t *testing.T) {
	mp := baseProbe()
	mp.CodecClass = probe.CodecClassModern
	mp.Codec = "hevc"

	got := Route("recent.mp4", mp, Flags{AppleCompat: true, AV1Available: true})
	if got.Target == Skip {
		t.Errorf("Route() with apple_compat should not skip modern codec, got %+v", got)
	}
}

func TestRouteJPEG(t *testing.T) {
	mp := baseProbe()
	mp.Codec = "mjpeg"

	got := Route("photo.jpg", mp, Flags{})
	if got.Target != JXLLosslessJPEGTranscode {
		t.Errorf("Route() = %v, want JXLLosslessJPEGTranscode", got.Target)
	}

	got = Route("photo.jpg", mp, Flags{MatchQuality: true})
	if got.Target != JXLStaticMatched {
		t.Errorf("Route() with match_quality = %v, want JXLStaticMatched", got.Target)
	}
}

func TestRouteLegacyLosslessRaster(t *testing.T) {
	mp := baseProbe()
	for _, ext := range []string{"image.png", "image.tiff", "image.bmp", "image.gif"} {
		got := Route(ext, mp, Flags{})
		if got.Target != JXLStatic {
			t.Errorf("Route(%q) = %v, want JXLStatic", ext, got.Target)
		}
	}
}

func TestRouteStaticAnimatedForcesJXL(t *testing.T) {
	mp := baseProbe()
	mp.IsAnimated = true
	mp.DurationSecs = 0.005

	got := Route("sprite.gif", mp, Flags{})
	if got.Target != JXLStatic || got.Reason != "static_animated" {
		t.Errorf("Route() = %+v, want JXLStatic/static_animated", got)
	}
}

func TestRouteShortAnimationAppleCompatIsGIF(t *testing.T) {
	mp := baseProbe()
	mp.IsAnimated = true
	mp.DurationSecs = 1.0
	mp.Width = 320
	mp.Height = 240

	got := Route("loop.gif", mp, Flags{AppleCompat: true})
	if got.Target != GIFAppleCompat {
		t.Errorf("Route() = %v, want GIFAppleCompat", got.Target)
	}
}

func TestRouteLongAnimationIsVideo(t *testing.T) {
	mp := baseProbe()
	mp.IsAnimated = true
	mp.DurationSecs = 5.0
	mp.Width = 640
	mp.Height = 480

	got := Route("loop.gif", mp, Flags{AppleCompat: true, AV1Available: true})
	if got.Target != AV1Video {
		t.Errorf("Route() = %v, want AV1Video", got.Target)
	}
}

func TestRouteShortAnimationNoAppleCompatSkipped(t *testing.T) {
	mp := baseProbe()
	mp.IsAnimated = true
	mp.DurationSecs = 1.0
	mp.Width = 320
	mp.Height = 240

	got := Route("loop.gif", mp, Flags{})
	if got.Target != Skip || got.Reason != "short_animation" {
		t.Errorf("Route() = %+v, want Skip/short_animation", got)
	}
}

func TestRouteVideoPrefersAV1WhenAvailable(t *testing.T) {
	mp := baseProbe()
	mp.Codec = "h264"
	mp.CodecClass = probe.CodecClassLegacyInter

	got := Route("clip.mp4", mp, Flags{AV1Available: true, HEVCAvailable: true})
	if got.Target != AV1Video {
		t.Errorf("Route() = %v, want AV1Video", got.Target)
	}
}

func TestRouteVideoFallsBackToHEVC(t *testing.T) {
	mp := baseProbe()
	mp.Codec = "h264"
	mp.CodecClass = probe.CodecClassLegacyInter

	got := Route("clip.mp4", mp, Flags{HEVCAvailable: true})
	if got.Target != HEVCVideo {
		t.Errorf("Route() = %v, want HEVCVideo", got.Target)
	}
}

func TestRouteVideoLossless(t *testing.T) {
	mp := baseProbe()
	mp.Codec = "h264"
	mp.CodecClass = probe.CodecClassLegacyInter

	got := Route("clip.mp4", mp, Flags{AV1Available: true, Lossless: true})
	if got.Target != AV1VideoLossless {
		t.Errorf("Route() = %v, want AV1VideoLossless", got.Target)
	}
}

func TestRouteCopyThroughTracksOutputDir(t *testing.T) {
	mp := baseProbe()
	mp.CodecClass = probe.CodecClassModern

	got := Route("recent.mp4", mp, Flags{OutputDirSet: true})
	if !got.CopyThrough {
		t.Error("expected CopyThrough=true when OutputDirSet")
	}
	got = Route("recent.mp4", mp, Flags{OutputDirSet: false})
	if got.CopyThrough {
		t.Error("expected CopyThrough=false when OutputDirSet is false")
	}
}

// TestRouteTotalityNoPanics exercises a broad combination of probe/flag
// values to verify Route never panics and always returns a named target
// (P8: router totality).
func TestRouteTotalityNoPanics(t *testing.T) {
	durations := []float64{0, 0.005, 1, 3, 10}
	widths := []uint32{64, 640, 1280, 3840}
	codecClasses := []probe.CodecClass{
		probe.CodecClassUnknown, probe.CodecClassModern,
		probe.CodecClassLegacyIntra, probe.CodecClassLegacyInter, probe.CodecClassLosslessIntermediate,
	}
	exts := []string{"clip.mp4", "photo.jpg", "image.png", "anim.gif", "image.webp"}

	for _, d := range durations {
		for _, w := range widths {
			for _, cc := range codecClasses {
				for _, ext := range exts {
					for _, animated := range []bool{false, true} {
						for _, appleCompat := range []bool{false, true} {
							mp := &probe.MediaProbe{
								Width: w, Height: w * 3 / 4, DurationSecs: d,
								CodecClass: cc, IsAnimated: animated,
							}
							got := Route(ext, mp, Flags{AppleCompat: appleCompat, AV1Available: true})
							if got.Reason == "" && got.Target != Skip {
								t.Errorf("Route(%q, dur=%v, w=%v, cc=%v, animated=%v) missing reason", ext, d, w, cc, animated)
							}
						}
					}
				}
			}
		}
	}
}
