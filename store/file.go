package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"adventure-editor/adventure"
)

// FileExt is the extension of adventure files in a FileStore directory.
const FileExt = ".json"

// FileStore implements Store over a directory holding one JSON file per
// adventure, named after its edit slug. The files can be edited by hand;
// a watcher picks the changes up.
type FileStore struct {
	dir     string
	mu      sync.Mutex
	entropy *rand.Rand
}

// NewFileStore opens or creates the directory dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{
		dir:     dir,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Close() error { return nil }

// SlugFromPath returns the edit slug of an adventure file, or "" for other
// files.
func SlugFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, FileExt) || strings.HasPrefix(base, ".") {
		return ""
	}
	return strings.TrimSuffix(base, FileExt)
}

func (s *FileStore) path(slug string) string {
	return filepath.Join(s.dir, slug+FileExt)
}

func (s *FileStore) newSlug() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String())
}

// Create writes a new adventure with a root node.
func (s *FileStore) Create(ctx context.Context, title string) (adventure.AdventureDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	maxID := 0
	for _, dto := range all {
		maxID = max(maxID, int(dto.ID))
	}

	root := starterNode()
	root.ID = 1
	ts := now()
	dto := adventure.AdventureDTO{
		ID:        adventure.FlexInt(maxID + 1),
		Title:     title,
		Slug:      s.newSlug(),
		ViewSlug:  s.newSlug(),
		CreatedAt: ts,
		UpdatedAt: ts,
		Nodes:     []adventure.NodeDTO{root},
		Links:     []adventure.LinkDTO{},
		Props:     adventure.PropsString(""),
		Users:     []adventure.UserDTO{},
	}
	if err := s.write(dto); err != nil {
		return adventure.AdventureDTO{}, err
	}
	log.Printf("[store] created adventure %q (%s)", title, dto.Slug)
	return dto, nil
}

// List returns every adventure file of the directory.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(all))
	for _, dto := range all {
		out = append(out, summarize(dto))
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := strings.Compare(b.UpdatedAt, a.UpdatedAt); c != 0 {
			return c
		}
		return b.ID - a.ID
	})
	return out, nil
}

// Load returns an adventure by edit or view slug.
func (s *FileStore) Load(ctx context.Context, slug string) (adventure.AdventureDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dto, err := s.read(slug); err == nil {
		return dto, nil
	} else if !errors.Is(err, ErrNotFound) {
		return adventure.AdventureDTO{}, err
	}

	all, err := s.readAll()
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	for _, dto := range all {
		if dto.ViewSlug == slug {
			dto.ViewCount++
			if err := s.write(dto); err != nil {
				return adventure.AdventureDTO{}, err
			}
			dto.Slug = ""
			return dto, nil
		}
	}
	return adventure.AdventureDTO{}, ErrNotFound
}

// LoadForEdit bumps the edit version and returns the adventure.
func (s *FileStore) LoadForEdit(ctx context.Context, slug string) (adventure.AdventureDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dto, err := s.read(slug)
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	dto.EditVersion++
	if err := s.write(dto); err != nil {
		return adventure.AdventureDTO{}, err
	}
	return dto, nil
}

// Save replaces the adventure file, assigning storage ids to new nodes and
// links.
func (s *FileStore) Save(ctx context.Context, slug string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read(slug)
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	if err := checkSave(stored, dto); err != nil {
		return adventure.AdventureDTO{}, err
	}

	knownNodes := map[int]bool{}
	nextNode := 0
	for _, n := range stored.Nodes {
		knownNodes[int(n.ID)] = true
		nextNode = max(nextNode, int(n.ID))
	}
	knownLinks := map[int]bool{}
	nextLink := 0
	for _, l := range stored.Links {
		knownLinks[int(l.ID)] = true
		nextLink = max(nextLink, int(l.ID))
	}

	next := dto
	next.ID = stored.ID
	next.Slug = stored.Slug
	next.ViewSlug = stored.ViewSlug
	next.CreatedAt = stored.CreatedAt
	next.ViewCount = stored.ViewCount
	next.UpdatedAt = now()
	next.EditVersion = adventure.FlexInt(max(int(stored.EditVersion), int(dto.EditVersion)) + 1)

	next.Nodes = make([]adventure.NodeDTO, len(dto.Nodes))
	for i, n := range dto.Nodes {
		switch {
		case n.ID == 0:
			nextNode++
			n.ID = adventure.FlexInt(nextNode)
		case !knownNodes[int(n.ID)]:
			return adventure.AdventureDTO{}, fmt.Errorf("%w: node id %d does not belong to this adventure", ErrConflict, n.ID)
		}
		n.Changed = false
		next.Nodes[i] = n
	}
	next.Links = make([]adventure.LinkDTO, len(dto.Links))
	for i, l := range dto.Links {
		switch {
		case l.ID == 0:
			nextLink++
			l.ID = adventure.FlexInt(nextLink)
		case !knownLinks[int(l.ID)]:
			return adventure.AdventureDTO{}, fmt.Errorf("%w: link id %d does not belong to this adventure", ErrConflict, l.ID)
		}
		l.Changed = false
		next.Links[i] = l
	}
	if next.Users == nil {
		next.Users = []adventure.UserDTO{}
	}

	if err := s.write(next); err != nil {
		return adventure.AdventureDTO{}, err
	}
	return next, nil
}

func (s *FileStore) read(slug string) (adventure.AdventureDTO, error) {
	if slug == "" || strings.HasPrefix(slug, ".") || strings.ContainsAny(slug, `/\`) {
		return adventure.AdventureDTO{}, ErrNotFound
	}
	data, err := os.ReadFile(s.path(slug))
	if errors.Is(err, os.ErrNotExist) {
		return adventure.AdventureDTO{}, ErrNotFound
	}
	if err != nil {
		return adventure.AdventureDTO{}, err
	}
	var dto adventure.AdventureDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return adventure.AdventureDTO{}, fmt.Errorf("decode %s: %w", slug, err)
	}
	dto.Slug = slug
	return dto, nil
}

// readAll reads every adventure file, skipping the unreadable ones.
func (s *FileStore) readAll() ([]adventure.AdventureDTO, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []adventure.AdventureDTO
	for _, e := range entries {
		slug := SlugFromPath(e.Name())
		if e.IsDir() || slug == "" {
			continue
		}
		dto, err := s.read(slug)
		if err != nil {
			log.Printf("[store] skipping %s: %v", e.Name(), err)
			continue
		}
		out = append(out, dto)
	}
	return out, nil
}

// write replaces the adventure file through a temporary file so readers
// never see a partial document.
func (s *FileStore) write(dto adventure.AdventureDTO) error {
	data, err := json.MarshalIndent(dto, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", dto.Slug, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(dto.Slug))
}
