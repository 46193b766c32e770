// Package store persists adventures. Adventures are addressed by two slugs:
// the edit slug grants write access, the view slug read access only.
//
// Saves use the edit_version counter for optimistic concurrency. Opening an
// adventure for editing bumps the counter, so a second editor opening the
// same adventure makes the first one's next save fail with ErrLocked.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adventure-editor/adventure"
)

var (
	ErrNotFound = errors.New("adventure not found")
	// ErrLocked reports a save carrying an edit version older than the
	// stored one: the adventure is used by another instance.
	ErrLocked = errors.New("adventure is used by other instance")
	// ErrReadOnly reports a save to an adventure flagged locked.
	ErrReadOnly = errors.New("adventure is read-only")
	// ErrConflict reports a payload that cannot be applied to the stored
	// adventure, e.g. duplicate logical ids or foreign storage ids.
	ErrConflict = errors.New("adventure save conflict")
)

// Summary is a catalog entry.
type Summary struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	ViewSlug    string `json:"view_slug"`
	Locked      bool   `json:"locked"`
	EditVersion int    `json:"edit_version"`
	NodeCount   int    `json:"node_count"`
	LinkCount   int    `json:"link_count"`
	UpdatedAt   string `json:"updated_at"`
}

// Store is the persistence collaborator of the editor and the player.
type Store interface {
	// Create stores a new adventure with a single root node and returns it.
	Create(ctx context.Context, title string) (adventure.AdventureDTO, error)
	// List returns the stored adventures, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	// Load returns an adventure by edit slug or view slug. When only the
	// view slug matched, the returned Slug is empty.
	Load(ctx context.Context, slug string) (adventure.AdventureDTO, error)
	// LoadForEdit bumps the edit version of the adventure with the given
	// edit slug and returns it.
	LoadForEdit(ctx context.Context, slug string) (adventure.AdventureDTO, error)
	// Save replaces the content of the adventure with the given edit slug.
	// New nodes and links (id 0) get storage ids. The returned adventure
	// carries the new edit version.
	Save(ctx context.Context, slug string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error)
	Close() error
}

// checkSave applies the save rules shared by every implementation.
func checkSave(stored, incoming adventure.AdventureDTO) error {
	if stored.Locked {
		return ErrReadOnly
	}
	if stored.EditVersion > incoming.EditVersion {
		return fmt.Errorf("%w: stored version %d, got %d", ErrLocked, stored.EditVersion, incoming.EditVersion)
	}
	return checkPayload(incoming)
}

// checkPayload rejects duplicate logical or storage ids.
func checkPayload(dto adventure.AdventureDTO) error {
	nodeIDs := map[int]bool{}
	storageIDs := map[int]bool{}
	for _, n := range dto.Nodes {
		if nodeIDs[int(n.NodeID)] {
			return fmt.Errorf("%w: duplicate node_id %d", ErrConflict, n.NodeID)
		}
		nodeIDs[int(n.NodeID)] = true
		if n.ID != 0 {
			if storageIDs[int(n.ID)] {
				return fmt.Errorf("%w: duplicate node id %d", ErrConflict, n.ID)
			}
			storageIDs[int(n.ID)] = true
		}
	}
	linkIDs := map[int]bool{}
	storageIDs = map[int]bool{}
	for _, l := range dto.Links {
		if linkIDs[int(l.LinkID)] {
			return fmt.Errorf("%w: duplicate link_id %d", ErrConflict, l.LinkID)
		}
		linkIDs[int(l.LinkID)] = true
		if l.ID != 0 {
			if storageIDs[int(l.ID)] {
				return fmt.Errorf("%w: duplicate link id %d", ErrConflict, l.ID)
			}
			storageIDs[int(l.ID)] = true
		}
	}
	return nil
}

// starterNode is the root node of a new adventure.
func starterNode() adventure.NodeDTO {
	return adventure.NodeDTO{
		NodeID: 0,
		Title:  "Start",
		X:      100,
		Y:      100,
		Type:   adventure.NodeTypeRoot,
		Props:  adventure.PropsString(""),
	}
}

func summarize(dto adventure.AdventureDTO) Summary {
	return Summary{
		ID:          int(dto.ID),
		Title:       dto.Title,
		Slug:        dto.Slug,
		ViewSlug:    dto.ViewSlug,
		Locked:      dto.Locked,
		EditVersion: int(dto.EditVersion),
		NodeCount:   len(dto.Nodes),
		LinkCount:   len(dto.Links),
		UpdatedAt:   dto.UpdatedAt,
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
