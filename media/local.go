// Package media stores the files attached to adventures: node images,
// audio, video and subtitles.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// DefaultMaxSize is the upload limit used when none is configured.
const DefaultMaxSize = 32 << 20

var (
	ErrNotFound    = errors.New("media not found")
	ErrUnsupported = errors.New("unsupported media type")
	ErrTooLarge    = errors.New("media too large")
	ErrEmpty       = errors.New("empty upload")
)

// UploadResult is returned by Upload.
type UploadResult struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// DeleteResult is returned by Delete.
type DeleteResult struct {
	Result string `json:"result"`
}

// LocalStore keeps media on the local disk, one directory per adventure.
// Files are served under BaseURL.
type LocalStore struct {
	dir     string
	baseURL string
	maxSize int

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewLocalStore creates dir when missing. baseURL is the URL prefix the
// directory is served under, e.g. "/media".
func NewLocalStore(dir, baseURL string, maxSize int) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSize: maxSize,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Dir returns the root directory of the store.
func (s *LocalStore) Dir() string { return s.dir }

// BaseURL returns the URL prefix of stored files.
func (s *LocalStore) BaseURL() string { return s.baseURL }

// Allowed reports whether a detected type can be attached to a node.
func Allowed(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		t := m.String()
		if strings.HasPrefix(t, "image/") || strings.HasPrefix(t, "audio/") ||
			strings.HasPrefix(t, "video/") || strings.HasPrefix(t, "text/vtt") {
			return true
		}
	}
	return false
}

// Upload stores data for the adventure owning slug and returns its URL.
// The file name is generated; the extension follows the detected type.
func (s *LocalStore) Upload(ctx context.Context, slug string, data []byte) (UploadResult, error) {
	if !validSegment(slug) {
		return UploadResult{}, fmt.Errorf("%w: bad adventure slug %q", ErrNotFound, slug)
	}
	if len(data) == 0 {
		return UploadResult{}, ErrEmpty
	}
	if len(data) > s.maxSize {
		return UploadResult{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), s.maxSize)
	}
	mtype := mimetype.Detect(data)
	if !Allowed(mtype) {
		return UploadResult{}, fmt.Errorf("%w: %s", ErrUnsupported, mtype.String())
	}

	dir := filepath.Join(s.dir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return UploadResult{}, fmt.Errorf("create adventure media dir: %w", err)
	}
	name := s.newName() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return UploadResult{}, fmt.Errorf("write media: %w", err)
	}

	url := s.baseURL + "/" + slug + "/" + name
	log.Printf("[media] stored %s (%s, %d bytes)", url, mtype.String(), len(data))
	return UploadResult{URL: url, Type: mtype.String()}, nil
}

// Delete removes the file behind url.
func (s *LocalStore) Delete(ctx context.Context, url string) (DeleteResult, error) {
	slug, name, ok := s.Split(url)
	if !ok {
		return DeleteResult{}, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	err := os.Remove(filepath.Join(s.dir, slug, name))
	if errors.Is(err, os.ErrNotExist) {
		return DeleteResult{}, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if err != nil {
		return DeleteResult{}, err
	}
	log.Printf("[media] deleted %s", url)
	return DeleteResult{Result: "success"}, nil
}

// Split returns the adventure slug and file name of a URL served by the
// store.
func (s *LocalStore) Split(url string) (slug, name string, ok bool) {
	rest, found := strings.CutPrefix(url, s.baseURL+"/")
	if !found {
		return "", "", false
	}
	slug, name, found = strings.Cut(rest, "/")
	if !found || !validSegment(slug) || !validSegment(name) {
		return "", "", false
	}
	return slug, name, true
}

func (s *LocalStore) newName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String())
}

func validSegment(seg string) bool {
	return seg != "" && seg != "." && seg != ".." && path.Base(seg) == seg && !strings.ContainsAny(seg, `\`)
}

// CountReferences returns how many nodes of nodes mention the file name,
// in their image URL or their props.
func CountReferences(nodes []adventure.Node, name string) int {
	if name == "" {
		return 0
	}
	count := 0
	for _, n := range nodes {
		if strings.Contains(n.Image.URL, name) || strings.Contains(propsText(n), name) {
			count++
		}
	}
	return count
}

func propsText(n adventure.Node) string {
	if len(n.RawProps) == 0 {
		return ""
	}
	return props.Serialize(n.RawProps)
}
