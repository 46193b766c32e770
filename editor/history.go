package editor

import (
	"slices"

	"adventure-editor/adventure"
)

// MaxUndo is the number of history entries kept; older ones are dropped.
const MaxUndo = 60

// HistoryEntry is the state restored by one Undo. Node and link slices are
// never modified after capture, so entries share them with the live graph.
type HistoryEntry struct {
	Nodes           []adventure.Node
	Links           []adventure.Link
	Selection       Selection
	SelectedNodeIDs []int
	SelectedLinkIDs []int
	Dirty           bool
}

func (s *Session) pushHistory() {
	entry := HistoryEntry{
		Nodes:           s.adv.Nodes,
		Links:           s.adv.Links,
		Selection:       s.selection,
		SelectedNodeIDs: s.selectedNodeIDs,
		SelectedLinkIDs: s.selectedLinkIDs,
		Dirty:           s.dirty,
	}
	s.undoStack = append(s.undoStack, entry)
	if over := len(s.undoStack) - MaxUndo; over > 0 {
		s.undoStack = slices.Clone(s.undoStack[over:])
	}
}

// Undo restores the most recent history entry. It reports false when there
// is nothing to undo.
func (s *Session) Undo() bool {
	return s.mutate(func() bool {
		if len(s.undoStack) == 0 {
			return false
		}
		last := len(s.undoStack) - 1
		entry := s.undoStack[last]
		s.undoStack = s.undoStack[:last]

		next := *s.adv
		next.Nodes = entry.Nodes
		next.Links = entry.Links
		s.adv = &next
		s.selection = entry.Selection
		s.selectedNodeIDs = entry.SelectedNodeIDs
		s.selectedLinkIDs = entry.SelectedLinkIDs
		s.dirty = entry.Dirty
		s.revision++
		return true
	})
}

// UndoDepth returns the number of entries on the undo stack.
func (s *Session) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undoStack)
}

// PushHistorySnapshot records the current state without editing, so that a
// following series of live updates can be undone as one step.
func (s *Session) PushHistorySnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adv != nil && !s.readOnly {
		s.pushHistory()
	}
}
