// Package editor implements the editing session of one adventure: graph
// mutations, multi-selection, clipboard and undo history.
//
// Every operation is total. Requests naming unknown ids, edits that would
// break a graph invariant and edits that change nothing return early without
// touching state or history.
package editor

import (
	"slices"
	"sync"

	"adventure-editor/adventure"
)

// SaveStatus is the persistence state shown to the author.
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveDirty  SaveStatus = "dirty"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
	SaveLocked SaveStatus = "locked"
)

// SelectionKind tells what the single logical focus points at.
type SelectionKind string

const (
	SelectNone SelectionKind = "none"
	SelectNode SelectionKind = "node"
	SelectLink SelectionKind = "link"
)

// Selection is the single logical focus of the editor.
type Selection struct {
	Kind   SelectionKind `json:"type"`
	NodeID int           `json:"nodeId,omitempty"`
	LinkID int           `json:"linkId,omitempty"`
}

// NoSelection is the empty focus.
var NoSelection = Selection{Kind: SelectNone}

// NodeSelection focuses a node.
func NodeSelection(nodeID int) Selection { return Selection{Kind: SelectNode, NodeID: nodeID} }

// LinkSelection focuses a link.
func LinkSelection(linkID int) Selection { return Selection{Kind: SelectLink, LinkID: linkID} }

// Session is the editing state of one adventure. It is safe for concurrent
// use; each operation runs to completion under the session lock.
type Session struct {
	mu sync.Mutex

	editSlug    string
	adv         *adventure.Adventure
	editVersion int
	dirty       bool
	revision    uint64

	saveStatus SaveStatus
	saveError  string
	readOnly   bool

	selection       Selection
	selectedNodeIDs []int
	selectedLinkIDs []int
	clipboard       *Clipboard
	undoStack       []HistoryEntry

	menuShortcutPick int

	onChange func(revision uint64)
}

// NewSession creates an empty session for editSlug. Nothing can be edited
// until Load is called.
func NewSession(editSlug string) *Session {
	return &Session{
		editSlug:         editSlug,
		saveStatus:       SaveIdle,
		selection:        NoSelection,
		selectedNodeIDs:  []int{},
		selectedLinkIDs:  []int{},
		menuShortcutPick: -1,
	}
}

// OnChange registers fn to be called, outside the session lock, after every
// edit that marks the session dirty.
func (s *Session) OnChange(fn func(revision uint64)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Load replaces the session content with adv and resets selection, clipboard
// and history.
func (s *Session) Load(adv adventure.Adventure, editVersion int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adv = &adv
	s.editVersion = editVersion
	s.dirty = false
	s.saveStatus = SaveIdle
	s.saveError = ""
	s.readOnly = adv.Locked
	if s.readOnly {
		s.saveStatus = SaveLocked
	}
	s.selection = NoSelection
	s.selectedNodeIDs = []int{}
	s.selectedLinkIDs = []int{}
	s.clipboard = nil
	s.undoStack = nil
	s.menuShortcutPick = -1
}

// Loaded reports whether an adventure is loaded.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adv != nil
}

// EditSlug returns the slug the session edits.
func (s *Session) EditSlug() string { return s.editSlug }

// Adventure returns the current adventure. The node and link slices must be
// treated as read-only.
func (s *Session) Adventure() (adventure.Adventure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adv == nil {
		return adventure.Adventure{}, false
	}
	return *s.adv, true
}

// EditVersion returns the optimistic concurrency token of the loaded copy.
func (s *Session) EditVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editVersion
}

// Dirty reports unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Revision increases with every edit. Two equal revisions mean the same
// content.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// MarkDirty flags unsaved changes without editing the graph.
func (s *Session) MarkDirty() {
	s.mutate(func() bool {
		s.touch()
		return true
	})
}

// ClearDirty clears the unsaved-changes flag when the session is still at
// revision, i.e. nothing was edited while the save was in flight.
func (s *Session) ClearDirty(revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revision != revision {
		return false
	}
	s.dirty = false
	return true
}

// SaveStatus returns the persistence status and the last save error.
func (s *Session) SaveStatus() (SaveStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveStatus, s.saveError
}

// SetSaveStatus records a persistence status. The locked status also makes
// the session read-only.
func (s *Session) SetSaveStatus(status SaveStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveStatus = status
	s.saveError = errMsg
	if status == SaveLocked {
		s.readOnly = true
	}
}

// TransitionSaveStatus sets the status to to when it is from.
func (s *Session) TransitionSaveStatus(from, to SaveStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveStatus != from {
		return false
	}
	s.saveStatus = to
	s.saveError = ""
	return true
}

// ApplySaved records a successful save of revision. Server ids of saved are
// adopted and editVersion becomes the new token. The session is clean and
// saved unless it was edited while the save was in flight, in which case it
// stays dirty. It reports whether the session is clean.
func (s *Session) ApplySaved(saved adventure.Adventure, editVersion int, revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adv != nil {
		if merged, changed := adventure.MergeServerIDs(*s.adv, saved); changed {
			s.adv = &merged
		}
	}
	s.editVersion = editVersion
	s.saveError = ""
	if s.revision != revision {
		s.saveStatus = SaveDirty
		return false
	}
	s.dirty = false
	s.saveStatus = SaveSaved
	return true
}

// ReadOnly reports whether edits are refused.
func (s *Session) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnly
}

// SetReadOnly toggles edit refusal.
func (s *Session) SetReadOnly(readOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readOnly = readOnly
}

// State is a point-in-time copy of the session, for display.
type State struct {
	EditSlug        string               `json:"editSlug"`
	Adventure       *adventure.Adventure `json:"adventure,omitempty"`
	EditVersion     int                  `json:"editVersion"`
	Dirty           bool                 `json:"dirty"`
	Revision        uint64               `json:"revision"`
	SaveStatus      SaveStatus           `json:"saveStatus"`
	SaveError       string               `json:"saveError,omitempty"`
	ReadOnly        bool                 `json:"readOnly"`
	Selection       Selection            `json:"selection"`
	SelectedNodeIDs []int                `json:"selectedNodeIds"`
	SelectedLinkIDs []int                `json:"selectedLinkIds"`
	HasClipboard    bool                 `json:"hasClipboard"`
	UndoDepth       int                  `json:"undoDepth"`
	ShortcutPick    *int                 `json:"menuShortcutPickIndex"`
}

// State returns a copy of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		EditSlug:        s.editSlug,
		EditVersion:     s.editVersion,
		Dirty:           s.dirty,
		Revision:        s.revision,
		SaveStatus:      s.saveStatus,
		SaveError:       s.saveError,
		ReadOnly:        s.readOnly,
		Selection:       s.selection,
		SelectedNodeIDs: slices.Clone(s.selectedNodeIDs),
		SelectedLinkIDs: slices.Clone(s.selectedLinkIDs),
		HasClipboard:    s.clipboard != nil,
		UndoDepth:       len(s.undoStack),
	}
	if s.adv != nil {
		adv := *s.adv
		st.Adventure = &adv
	}
	if s.menuShortcutPick >= 0 {
		pick := s.menuShortcutPick
		st.ShortcutPick = &pick
	}
	return st
}

// mutate runs fn under the lock when an adventure is loaded and editable,
// then notifies the change listener if fn reported a change.
func (s *Session) mutate(fn func() bool) bool {
	s.mu.Lock()
	if s.adv == nil || s.readOnly {
		s.mu.Unlock()
		return false
	}
	changed := fn()
	listener, rev := s.onChange, s.revision
	s.mu.Unlock()
	if changed && listener != nil {
		listener(rev)
	}
	return changed
}

// touch marks an edit.
func (s *Session) touch() {
	s.dirty = true
	s.revision++
}

// setGraph installs new node and link slices after recording history.
func (s *Session) setGraph(nodes []adventure.Node, links []adventure.Link) {
	s.pushHistory()
	next := *s.adv
	next.Nodes = nodes
	next.Links = links
	s.adv = &next
	s.touch()
}
