package mediatypes

import "testing"

func TestKindForExt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want Kind
	}{
		{".jpg", KindImage},
		{".jpeg", KindImage},
		{".png", KindImage},
		{".heic", KindImage},
		{".webp", KindImage},
		{".mp4", KindVideo},
		{".mov", KindVideo},
		{".mkv", KindVideo},
		{".txt", KindOther},
		{".pdf", KindOther},
		{"", KindOther},
		{"jpg", KindOther}, // Missing leading dot
	}

	for _, tt := range tests {
		if got := KindForExt(tt.ext); got != tt.want {
			t.Errorf("KindForExt(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestKindForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Kind
	}{
		{"/library/2024/IMG_0001.JPG", KindImage},
		{"/library/holiday.MOV", KindVideo},
		{"vacation/clip.mp4", KindVideo},
		{"notes.txt", KindOther},
		{"noextension", KindOther},
	}

	for _, tt := range tests {
		if got := KindForPath(tt.path); got != tt.want {
			t.Errorf("KindForPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMimeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".png", "image/png"},
		{".mp4", "video/mp4"},
		{".mov", "video/quicktime"},
		{".unknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := MimeType(tt.ext); got != tt.want {
			t.Errorf("MimeType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}
