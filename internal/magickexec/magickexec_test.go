package magickexec

import "testing"

func TestNeedsPNGPreprocess(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".tiff", true}, {".tif", true}, {".bmp", true},
		{".heic", true}, {".heif", true}, {".gif", true},
		{".jpg", false}, {".png", false}, {".webp", false}, {".mp4", false},
	}
	for _, tt := range tests {
		if got := NeedsPNGPreprocess(tt.ext); got != tt.want {
			t.Errorf("NeedsPNGPreprocess(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}
