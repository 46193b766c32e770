package editor

import (
	"strconv"
	"strings"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// AdventureFieldUpdates holds the adventure metadata to change; nil fields
// are kept. Set ClearCategory to remove the category.
type AdventureFieldUpdates struct {
	Title         *string             `json:"title"`
	Description   *string             `json:"description"`
	Category      *adventure.Category `json:"category"`
	ClearCategory bool                `json:"clearCategory"`
}

// editAdventure applies fn to a copy of the adventure. Metadata edits mark
// the session dirty but are not part of the undo history.
func (s *Session) editAdventure(fn func(a *adventure.Adventure) bool) bool {
	return s.mutate(func() bool {
		next := *s.adv
		if !fn(&next) {
			return false
		}
		s.adv = &next
		s.touch()
		return true
	})
}

// UpdateAdventureFields changes title, description and category.
func (s *Session) UpdateAdventureFields(u AdventureFieldUpdates) bool {
	return s.editAdventure(func(a *adventure.Adventure) bool {
		changed := false
		if u.Title != nil && *u.Title != a.Title {
			a.Title = *u.Title
			changed = true
		}
		if u.Description != nil && *u.Description != a.Description {
			a.Description = *u.Description
			changed = true
		}
		switch {
		case u.ClearCategory && a.Category != nil:
			a.Category = nil
			changed = true
		case u.Category != nil && (a.Category == nil || a.Category.ID != u.Category.ID):
			c := *u.Category
			a.Category = &c
			changed = true
		}
		return changed
	})
}

// UpdateAdventureCover changes the cover image.
func (s *Session) UpdateAdventureCover(coverURL string, imageID int) bool {
	return s.editAdventure(func(a *adventure.Adventure) bool {
		if a.CoverURL == coverURL && a.ImageID == imageID {
			return false
		}
		a.CoverURL, a.ImageID = coverURL, imageID
		return true
	})
}

func (s *Session) applyAdventureProps(update props.Updater) bool {
	return s.editAdventure(func(a *adventure.Adventure) bool {
		raw := a.RawProps
		if raw == nil {
			raw = props.Record{}
		}
		r := update(raw)
		if !r.Changed {
			return false
		}
		*a = a.WithRawProps(r.Next)
		return true
	})
}

// UpdateAdventureProps writes several adventure prop paths.
func (s *Session) UpdateAdventureProps(updates map[string]interface{}, opts props.Options) bool {
	if len(updates) == 0 {
		return false
	}
	return s.applyAdventureProps(func(r props.Record) props.Result {
		return props.ApplyUpdates(r, updates, opts)
	})
}

// SetAdventurePropPath writes one adventure prop path.
func (s *Session) SetAdventurePropPath(path string, value interface{}, opts props.Options) bool {
	return s.applyAdventureProps(func(r props.Record) props.Result {
		return props.SetAny(r, path, value, opts)
	})
}

// ============================================
// Menu shortcut picking
// ============================================

// StartMenuShortcutPick arms slot index: the next ApplyMenuShortcutPick
// writes the picked node into it.
func (s *Session) StartMenuShortcutPick(index int) bool {
	if index < 0 || index >= adventure.MenuShortcutSlots {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuShortcutPick = index
	return true
}

// CancelMenuShortcutPick disarms shortcut picking.
func (s *Session) CancelMenuShortcutPick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuShortcutPick = -1
}

// ApplyMenuShortcutPick stores nodeID in the armed shortcut slot. A blank
// shortcut label takes the node title.
func (s *Session) ApplyMenuShortcutPick(nodeID int) bool {
	s.mu.Lock()
	pick := s.menuShortcutPick
	s.menuShortcutPick = -1
	var shortcuts []interface{}
	if s.adv != nil && pick >= 0 {
		shortcuts = pickShortcut(*s.adv, pick, nodeID)
	}
	s.mu.Unlock()
	if shortcuts == nil {
		return false
	}
	return s.UpdateAdventureProps(map[string]interface{}{"menu_shortcuts": shortcuts}, props.Options{})
}

func pickShortcut(a adventure.Adventure, pick, nodeID int) []interface{} {
	var title string
	if i := adventure.FindNode(a.Nodes, nodeID); i >= 0 {
		title = a.Nodes[i].Title
	}
	raw, ok := a.RawProps["menu_shortcuts"]
	if !ok {
		raw = a.RawProps["menuShortcuts"]
	}
	list, _ := raw.([]interface{})

	out := make([]interface{}, adventure.MenuShortcutSlots)
	for i := range out {
		base := props.Record{}
		if i < len(list) {
			if m, ok := list[i].(map[string]interface{}); ok {
				base = m
			}
		}
		if i != pick {
			out[i] = base
			continue
		}
		entry := props.Record{}
		for k, v := range base {
			entry[k] = v
		}
		text, _ := base["text"].(string)
		if strings.TrimSpace(text) == "" && title != "" {
			text = title
		}
		entry["nodeId"] = strconv.Itoa(nodeID)
		entry["text"] = text
		out[i] = entry
	}
	return out
}
