package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "media"), "/media/", 1024)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return s
}

func TestUploadAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res, err := s.Upload(ctx, "adv1", pngHeader)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(res.URL, "/media/adv1/") || !strings.HasSuffix(res.URL, ".png") {
		t.Errorf("url = %q", res.URL)
	}
	if res.Type != "image/png" {
		t.Errorf("type = %q", res.Type)
	}
	slug, name, ok := s.Split(res.URL)
	if !ok || slug != "adv1" {
		t.Fatalf("split(%q) = %q, %q, %v", res.URL, slug, name, ok)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), slug, name)); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	del, err := s.Delete(ctx, res.URL)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if del.Result != "success" {
		t.Errorf("result = %q", del.Result)
	}
	if _, err := s.Delete(ctx, res.URL); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestUploadRejections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name     string
		slug     string
		data     []byte
		expected error
	}{
		{"empty", "adv1", nil, ErrEmpty},
		{"plain text", "adv1", []byte("just some words"), ErrUnsupported},
		{"too large", "adv1", append(append([]byte{}, pngHeader...), make([]byte, 2048)...), ErrTooLarge},
		{"traversal", "..", pngHeader, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Upload(ctx, tt.slug, tt.data); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestUploadSubtitles(t *testing.T) {
	s := newTestStore(t)
	res, err := s.Upload(context.Background(), "adv1", []byte("WEBVTT\n\n00:00.000 --> 00:01.000\nHello\n"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasSuffix(res.URL, ".vtt") {
		t.Errorf("url = %q", res.URL)
	}
}

func TestSplitRejectsForeignURLs(t *testing.T) {
	s := newTestStore(t)
	for _, url := range []string{
		"https://cdn.example.com/media/adv1/a.png",
		"/media/adv1",
		"/media/../secret/a.png",
		"/media/adv1/sub/a.png",
	} {
		if _, _, ok := s.Split(url); ok {
			t.Errorf("Split(%q) accepted", url)
		}
	}
}

func TestCountReferences(t *testing.T) {
	nodes := []adventure.Node{
		{NodeID: 0, Image: adventure.Image{URL: "/media/adv1/abc.png"}},
		adventure.Node{NodeID: 1}.WithRawProps(props.Record{"audio_url": "/media/adv1/abc.png"}),
		{NodeID: 2, Image: adventure.Image{URL: "/media/adv1/other.png"}},
	}
	if got := CountReferences(nodes, "abc.png"); got != 2 {
		t.Errorf("references = %d, expected 2", got)
	}
	if got := CountReferences(nodes, ""); got != 0 {
		t.Errorf("empty name references = %d", got)
	}
}
