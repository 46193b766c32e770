package editor

import (
	"slices"
)

// normalizeIDs sorts ids ascending and drops duplicates.
func normalizeIDs(ids []int) []int {
	out := slices.Clone(ids)
	if out == nil {
		out = []int{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Selection returns the current focus.
func (s *Session) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SetSelection moves the focus. It is not an edit.
func (s *Session) SetSelection(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel.Kind == "" {
		sel = NoSelection
	}
	s.selection = sel
}

// ClearSelection drops the focus and the multi-selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = NoSelection
	s.selectedNodeIDs = []int{}
	s.selectedLinkIDs = []int{}
}

// SetSelectionSnapshot replaces the multi-selection.
func (s *Session) SetSelectionSnapshot(nodeIDs, linkIDs []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, links := normalizeIDs(nodeIDs), normalizeIDs(linkIDs)
	if slices.Equal(nodes, s.selectedNodeIDs) && slices.Equal(links, s.selectedLinkIDs) {
		return
	}
	s.selectedNodeIDs = nodes
	s.selectedLinkIDs = links
}

// SelectedNodeIDs returns the multi-selected nodes, ascending.
func (s *Session) SelectedNodeIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selectedNodeIDs)
}

// SelectedLinkIDs returns the multi-selected links, ascending.
func (s *Session) SelectedLinkIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.selectedLinkIDs)
}

// dropRemoved clears selection state that refers to removed nodes or links.
func (s *Session) dropRemoved(nodes, links map[int]bool) {
	switch {
	case s.selection.Kind == SelectNode && nodes[s.selection.NodeID]:
		s.selection = NoSelection
	case s.selection.Kind == SelectLink && links[s.selection.LinkID]:
		s.selection = NoSelection
	}
	s.selectedNodeIDs = slices.DeleteFunc(slices.Clone(s.selectedNodeIDs), func(id int) bool { return nodes[id] })
	s.selectedLinkIDs = slices.DeleteFunc(slices.Clone(s.selectedLinkIDs), func(id int) bool { return links[id] })
}
