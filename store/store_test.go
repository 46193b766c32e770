package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"adventure-editor/adventure"
)

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func factories() []storeFactory {
	return []storeFactory{
		{"sqlite", func(t *testing.T) Store {
			t.Helper()
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatalf("create store: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}},
		{"file", func(t *testing.T) Store {
			t.Helper()
			s, err := NewFileStore(filepath.Join(t.TempDir(), "adventures"))
			if err != nil {
				t.Fatalf("create store: %v", err)
			}
			return s
		}},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.open(t))
		})
	}
}

// ============================================
// Create / Load
// ============================================

func TestCreateAndLoad(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created, err := s.Create(ctx, "Lighthouse")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if created.Slug == "" || created.ViewSlug == "" || created.Slug == created.ViewSlug {
			t.Fatalf("slugs = %q / %q", created.Slug, created.ViewSlug)
		}
		if len(created.Nodes) != 1 || created.Nodes[0].Type != adventure.NodeTypeRoot || created.Nodes[0].ID == 0 {
			t.Fatalf("nodes = %+v", created.Nodes)
		}

		loaded, err := s.Load(ctx, created.Slug)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded.Title != "Lighthouse" || loaded.Slug != created.Slug {
			t.Errorf("loaded = %+v", loaded)
		}

		viewed, err := s.Load(ctx, created.ViewSlug)
		if err != nil {
			t.Fatalf("load by view slug: %v", err)
		}
		if viewed.Slug != "" {
			t.Errorf("view load leaked the edit slug %q", viewed.Slug)
		}
		if viewed.ViewCount != 1 {
			t.Errorf("view count = %d, expected 1", viewed.ViewCount)
		}

		if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.LoadForEdit(ctx, created.ViewSlug); !errors.Is(err, ErrNotFound) {
			t.Errorf("view slug must not open for edit, got %v", err)
		}
	})
}

func TestList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		s.Create(ctx, "One")
		s.Create(ctx, "Two")
		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 adventures, got %d", len(list))
		}
		for _, sum := range list {
			if sum.NodeCount != 1 || sum.Slug == "" {
				t.Errorf("summary = %+v", sum)
			}
		}
	})
}

// ============================================
// Edit versions
// ============================================

func TestLoadForEditBumpsVersion(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created, _ := s.Create(ctx, "A")
		first, err := s.LoadForEdit(ctx, created.Slug)
		if err != nil {
			t.Fatalf("load for edit: %v", err)
		}
		second, _ := s.LoadForEdit(ctx, created.Slug)
		if second.EditVersion != first.EditVersion+1 {
			t.Errorf("versions = %d, %d", first.EditVersion, second.EditVersion)
		}

		// the first editor is now stale
		_, err = s.Save(ctx, created.Slug, first)
		if !errors.Is(err, ErrLocked) {
			t.Errorf("expected ErrLocked, got %v", err)
		}
		saved, err := s.Save(ctx, created.Slug, second)
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if saved.EditVersion != second.EditVersion+1 {
			t.Errorf("saved version = %d", saved.EditVersion)
		}
	})
}

// ============================================
// Save
// ============================================

func TestSaveAssignsStorageIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created, _ := s.Create(ctx, "A")
		dto, _ := s.LoadForEdit(ctx, created.Slug)

		dto.Title = "Renamed"
		dto.Props = adventure.PropsString(`{"font_list":["Lora"]}`)
		dto.Nodes = append(dto.Nodes, adventure.NodeDTO{
			NodeID: 1, Title: "Second", X: 10, Y: 20, Type: adventure.NodeTypeDefault,
			Props: adventure.PropsString(`{"chapter_type":["ref-node"]}`), Changed: true,
		})
		dto.Links = []adventure.LinkDTO{{LinkID: 0, Source: 0, Target: 1, Type: adventure.LinkTypeDefault, TargetTitle: "Go"}}

		saved, err := s.Save(ctx, created.Slug, dto)
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if saved.Title != "Renamed" || saved.Props.String() != `{"font_list":["Lora"]}` {
			t.Errorf("metadata not saved: %+v", saved)
		}
		if len(saved.Nodes) != 2 || saved.Nodes[1].ID == 0 || saved.Nodes[1].ID == saved.Nodes[0].ID {
			t.Fatalf("nodes = %+v", saved.Nodes)
		}
		if saved.Nodes[1].Props.String() != `{"chapter_type":["ref-node"]}` {
			t.Errorf("node props = %q", saved.Nodes[1].Props.String())
		}
		if len(saved.Links) != 1 || saved.Links[0].ID == 0 || saved.Links[0].TargetTitle != "Go" {
			t.Fatalf("links = %+v", saved.Links)
		}

		// drop the second node and its link
		saved.Nodes = saved.Nodes[:1]
		saved.Links = nil
		again, err := s.Save(ctx, created.Slug, saved)
		if err != nil {
			t.Fatalf("second save: %v", err)
		}
		if len(again.Nodes) != 1 || len(again.Links) != 0 {
			t.Errorf("after removal: %d nodes, %d links", len(again.Nodes), len(again.Links))
		}
		if again.Nodes[0].ID != saved.Nodes[0].ID {
			t.Errorf("kept node changed id: %d -> %d", saved.Nodes[0].ID, again.Nodes[0].ID)
		}
	})
}

func TestSaveRejections(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created, _ := s.Create(ctx, "A")
		dto, _ := s.LoadForEdit(ctx, created.Slug)

		if _, err := s.Save(ctx, "missing", dto); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		dup := dto
		dup.Nodes = append([]adventure.NodeDTO{}, dto.Nodes...)
		dup.Nodes = append(dup.Nodes, adventure.NodeDTO{NodeID: dto.Nodes[0].NodeID, Title: "Twin"})
		if _, err := s.Save(ctx, created.Slug, dup); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate node_id: expected ErrConflict, got %v", err)
		}

		foreign := dto
		foreign.Nodes = []adventure.NodeDTO{{ID: 9999, NodeID: 0, Title: "Start", Type: adventure.NodeTypeRoot}}
		if _, err := s.Save(ctx, created.Slug, foreign); !errors.Is(err, ErrConflict) {
			t.Errorf("foreign id: expected ErrConflict, got %v", err)
		}

		locked := dto
		locked.Locked = true
		saved, err := s.Save(ctx, created.Slug, locked)
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		if _, err := s.Save(ctx, created.Slug, saved); !errors.Is(err, ErrReadOnly) {
			t.Errorf("expected ErrReadOnly, got %v", err)
		}
	})
}

func TestSlugFromPath(t *testing.T) {
	tests := map[string]string{
		"/data/01abc.json":   "01abc",
		"/data/.tmp-123":     "",
		"/data/notes.txt":    "",
		"/data/.hidden.json": "",
	}
	for path, expected := range tests {
		if got := SlugFromPath(path); got != expected {
			t.Errorf("SlugFromPath(%q) = %q, expected %q", path, got, expected)
		}
	}
}
