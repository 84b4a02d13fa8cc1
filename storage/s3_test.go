package storage

import (
	"strings"
	"testing"
)

func TestImageKey(t *testing.T) {
	key := ImageKey("suumo", "B100", "https://img01.suumo.com/photo/1.jpg?w=320")

	if !strings.HasPrefix(key, "images/suumo/B100/") {
		t.Fatalf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("expected query string stripped from extension, got %s", key)
	}

	// Same image must map to the same key across runs.
	if again := ImageKey("suumo", "B100", "https://img01.suumo.com/photo/1.jpg?w=320"); again != key {
		t.Fatalf("key not stable: %s vs %s", key, again)
	}
}

func TestImageKey_NoSourceIDFallsBackToHash(t *testing.T) {
	a := ImageKey("homes", "", "https://img.homes.jp/photo/1.jpg")
	b := ImageKey("homes", "", "https://img.homes.jp/photo/1.jpg")
	if a != b {
		t.Fatalf("hash grouping not stable: %s vs %s", a, b)
	}
	if strings.Contains(a, "//") {
		t.Fatalf("expected non-empty group segment, got %s", a)
	}
}

func TestExtension(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://x.jp/a.jpg", ".jpg"},
		{"https://x.jp/a.JPEG", ".jpeg"},
		{"https://x.jp/a.png?w=100", ".png"},
		{"https://x.jp/a.webp", ".webp"},
		{"https://x.jp/a.gif", ".jpg"},
		{"https://x.jp/a", ".jpg"},
	}
	for _, tt := range tests {
		if got := extension(tt.in); got != tt.want {
			t.Fatalf("extension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPublicURL(t *testing.T) {
	u := &S3Uploader{bucket: "jh-images"}

	aws := u.PublicURL("images/suumo/B100/x.jpg", S3Config{Bucket: "jh-images", Region: "ap-northeast-1"})
	if aws != "https://jh-images.s3.ap-northeast-1.amazonaws.com/images/suumo/B100/x.jpg" {
		t.Fatalf("unexpected aws url %s", aws)
	}

	spaces := u.PublicURL("images/suumo/B100/x.jpg", S3Config{
		Bucket:   "jh-images",
		Endpoint: "https://sgp1.digitaloceanspaces.com",
	})
	if spaces != "https://jh-images.sgp1.digitaloceanspaces.com/images/suumo/B100/x.jpg" {
		t.Fatalf("unexpected spaces url %s", spaces)
	}
}
