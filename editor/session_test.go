package editor

import (
	"reflect"
	"slices"
	"testing"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

func testAdventure() adventure.Adventure {
	return adventure.Adventure{
		ID:    1,
		Title: "Test",
		Nodes: []adventure.Node{
			adventure.Node{NodeID: 0, Title: "Start", Type: adventure.NodeTypeRoot, Position: adventure.Position{X: 0, Y: 0}}.
				WithRawProps(props.Record{props.ChapterTypeKey: []interface{}{"start-node"}}),
			{NodeID: 1, Title: "A", Type: adventure.NodeTypeDefault, Position: adventure.Position{X: 100, Y: 0}},
			{NodeID: 4, Title: "B", Type: adventure.NodeTypeDefault, Position: adventure.Position{X: 200, Y: 50}},
		},
		Links: []adventure.Link{
			{LinkID: 0, Source: 0, Target: 1, Type: adventure.LinkTypeDefault},
			{LinkID: 3, Source: 1, Target: 4, Type: adventure.LinkTypeDefault},
		},
	}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("edit-slug")
	s.Load(testAdventure(), 1)
	return s
}

func graph(t *testing.T, s *Session) adventure.Adventure {
	t.Helper()
	adv, ok := s.Adventure()
	if !ok {
		t.Fatal("no adventure loaded")
	}
	return adv
}

// ============================================
// Allocation
// ============================================

func TestNodeIDsAreUniqueAndSequential(t *testing.T) {
	s := newTestSession(t)

	nodeID, linkID, ok := s.AddNodeWithLink(1, adventure.Position{X: 5, Y: 5})
	if !ok || nodeID != 5 || linkID != 4 {
		t.Fatalf("AddNodeWithLink = %d,%d,%v; expected 5,4,true", nodeID, linkID, ok)
	}
	dup, ok := s.DuplicateNode(1)
	if !ok || dup != 6 {
		t.Fatalf("DuplicateNode = %d,%v; expected 6", dup, ok)
	}
	s.SetSelectionSnapshot([]int{1, 4}, nil)
	s.CopySelection()
	pasted := s.PasteClipboard(adventure.Position{X: 0, Y: 0})
	if !reflect.DeepEqual(pasted, []int{7, 8}) {
		t.Fatalf("pasted ids = %v", pasted)
	}

	seen := map[int]bool{}
	for _, n := range graph(t, s).Nodes {
		if seen[n.NodeID] {
			t.Errorf("duplicate node id %d", n.NodeID)
		}
		seen[n.NodeID] = true
	}
}

func TestAddNodeWithLinkDefaults(t *testing.T) {
	s := newTestSession(t)
	nodeID, linkID, _ := s.AddNodeWithLink(0, adventure.Position{X: 10, Y: 20})
	adv := graph(t, s)
	n := adv.Nodes[adventure.FindNode(adv.Nodes, nodeID)]
	if n.Title != "#5" || n.Type != adventure.NodeTypeDefault || !n.Changed || n.RawProps != nil {
		t.Errorf("unexpected new node: %+v", n)
	}
	l := adv.Links[adventure.FindLink(adv.Links, linkID)]
	if l.Source != 0 || l.Target != nodeID || l.Type != adventure.LinkTypeDefault {
		t.Errorf("unexpected new link: %+v", l)
	}
	if !s.Dirty() {
		t.Error("session should be dirty")
	}

	if _, _, ok := s.AddNodeWithLink(99, adventure.Position{}); ok {
		t.Error("unknown source should be refused")
	}
}

func TestAddLinkRejectsDuplicatesAndSelfLoops(t *testing.T) {
	s := newTestSession(t)
	before := len(graph(t, s).Links)

	if _, ok := s.AddLink(0, 4); !ok {
		t.Fatal("first link should be accepted")
	}
	if _, ok := s.AddLink(4, 0); ok {
		t.Error("reverse duplicate accepted")
	}
	if _, ok := s.AddLink(0, 0); ok {
		t.Error("self loop accepted")
	}
	if _, ok := s.AddLink(0, 42); ok {
		t.Error("missing target accepted")
	}
	if got := len(graph(t, s).Links); got != before+1 {
		t.Errorf("link count = %d, expected %d", got, before+1)
	}
}

// ============================================
// Removal
// ============================================

func TestRemoveNodesCascadesAndClearsSelection(t *testing.T) {
	s := newTestSession(t)
	s.SetSelection(LinkSelection(3))
	s.SetSelectionSnapshot([]int{1, 4}, []int{0, 3})

	if !s.RemoveNodes([]int{4}) {
		t.Fatal("expected removal")
	}
	adv := graph(t, s)
	if adventure.FindNode(adv.Nodes, 4) >= 0 || adventure.FindLink(adv.Links, 3) >= 0 {
		t.Error("node or incident link still present")
	}
	if s.Selection() != NoSelection {
		t.Errorf("selection = %+v, expected none", s.Selection())
	}
	if got := s.SelectedNodeIDs(); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("selected nodes = %v", got)
	}
	if got := s.SelectedLinkIDs(); !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("selected links = %v", got)
	}
	if s.RemoveNodes([]int{99}) {
		t.Error("removing unknown node reported change")
	}
}

func TestRemoveSelection(t *testing.T) {
	s := newTestSession(t)
	if !s.RemoveSelection([]int{1}, []int{3}) {
		t.Fatal("expected removal")
	}
	adv := graph(t, s)
	if len(adv.Nodes) != 2 || len(adv.Links) != 0 {
		t.Errorf("nodes=%d links=%d", len(adv.Nodes), len(adv.Links))
	}
	if s.UndoDepth() != 1 {
		t.Errorf("expected one undo entry, got %d", s.UndoDepth())
	}
}

// ============================================
// History
// ============================================

func TestUndoRoundTrip(t *testing.T) {
	s := newTestSession(t)
	original := graph(t, s)
	sel := s.Selection()

	ops := []func() bool{
		func() bool { _, _, ok := s.AddNodeWithLink(0, adventure.Position{X: 1, Y: 1}); return ok },
		func() bool { return s.UpdateNodeTitle(1, "Renamed") },
		func() bool {
			return s.UpdateNodePositions([]PositionUpdate{{NodeID: 1, Position: adventure.Position{X: 9, Y: 9}}})
		},
		func() bool { _, ok := s.DuplicateNode(4); return ok },
		func() bool { return s.SwapLinkDirection(0) },
		func() bool { return s.RemoveNodes([]int{1}) },
		func() bool {
			return s.SetNodePropStringArraySelect(4, props.ChapterTypeKey, "start-node", props.Options{})
		},
	}
	applied := 0
	for i, op := range ops {
		if !op() {
			t.Fatalf("op %d did not apply", i)
		}
		applied++
	}
	for i := 0; i < applied; i++ {
		if !s.Undo() {
			t.Fatalf("undo %d failed", i)
		}
	}
	restored := graph(t, s)
	if !reflect.DeepEqual(restored.Nodes, original.Nodes) || !reflect.DeepEqual(restored.Links, original.Links) {
		t.Error("undo did not restore the original graph")
	}
	if s.Selection() != sel || s.Dirty() {
		t.Errorf("selection/dirty not restored: %+v dirty=%v", s.Selection(), s.Dirty())
	}
	if s.Undo() {
		t.Error("undo on empty stack reported change")
	}
}

func TestNoOpEditsSkipHistory(t *testing.T) {
	s := newTestSession(t)
	if s.UpdateNodeTitle(1, "A") {
		t.Error("same title reported change")
	}
	if s.UpdateNodePositions([]PositionUpdate{{NodeID: 1, Position: adventure.Position{X: 100, Y: 0}}}) {
		t.Error("same position reported change")
	}
	if s.SetNodePropPath(1, "missing", nil, props.Options{}) {
		t.Error("nil write to missing key reported change")
	}
	if s.UndoDepth() != 0 || s.Dirty() {
		t.Errorf("history=%d dirty=%v", s.UndoDepth(), s.Dirty())
	}
}

func TestBatchPositionsIsOneUndoStep(t *testing.T) {
	s := newTestSession(t)
	s.UpdateNodePositions([]PositionUpdate{
		{NodeID: 0, Position: adventure.Position{X: 1, Y: 1}},
		{NodeID: 1, Position: adventure.Position{X: 2, Y: 2}},
		{NodeID: 4, Position: adventure.Position{X: 3, Y: 3}},
	})
	if s.UndoDepth() != 1 {
		t.Errorf("undo depth = %d", s.UndoDepth())
	}
}

func TestUndoStackIsCapped(t *testing.T) {
	s := newTestSession(t)
	for i := 0; i < MaxUndo+15; i++ {
		s.UpdateNodePositions([]PositionUpdate{{NodeID: 1, Position: adventure.Position{X: float64(i + 1000)}}})
	}
	if s.UndoDepth() != MaxUndo {
		t.Errorf("undo depth = %d, expected %d", s.UndoDepth(), MaxUndo)
	}
}

// ============================================
// Props and start node
// ============================================

func TestStartNodePromotionDemotesPreviousRoot(t *testing.T) {
	s := newTestSession(t)
	if !s.SetNodePropStringArraySelect(4, props.ChapterTypeKey, "start-node", props.Options{}) {
		t.Fatal("expected change")
	}
	adv := graph(t, s)
	roots := 0
	for _, n := range adv.Nodes {
		if n.Type == adventure.NodeTypeRoot {
			roots++
			if n.NodeID != 4 || n.ChapterType() != "start-node" {
				t.Errorf("wrong root: %+v", n)
			}
		}
	}
	if roots != 1 {
		t.Errorf("expected exactly one root, got %d", roots)
	}
	old := adv.Nodes[adventure.FindNode(adv.Nodes, 0)]
	if old.Type != adventure.NodeTypeDefault || old.ChapterType() != "" {
		t.Errorf("previous root not demoted: type=%q chapter=%q", old.Type, old.ChapterType())
	}
	if s.UndoDepth() != 1 {
		t.Errorf("promotion should be one undo step, got %d", s.UndoDepth())
	}
}

func TestNodePropsKeepStructuredViewInSync(t *testing.T) {
	s := newTestSession(t)
	s.SetNodePropPath(1, "audio_url", "https://cdn/x.mp3", props.Options{})
	n := graph(t, s).Nodes[1]
	if n.Props == nil || n.Props.AudioURL != "https://cdn/x.mp3" {
		t.Fatalf("structured props = %+v", n.Props)
	}
	s.SetNodePropPath(1, "audio_url", "", props.Options{RemoveIfEmpty: true})
	n = graph(t, s).Nodes[1]
	if n.Props != nil {
		t.Errorf("structured props should be cleared, got %+v", n.Props)
	}
	if _, ok := n.RawProps["audio_url"]; ok {
		t.Error("raw prop still present")
	}
}

func TestBulkSelectAcrossNodes(t *testing.T) {
	s := newTestSession(t)
	if !s.SetNodesPropStringArraySelect([]int{1, 4}, "settings_theme", "dark", props.Options{}) {
		t.Fatal("expected change")
	}
	adv := graph(t, s)
	for _, id := range []int{1, 4} {
		n := adv.Nodes[adventure.FindNode(adv.Nodes, id)]
		if !props.Equal(n.RawProps["settings_theme"], []string{"dark"}) {
			t.Errorf("node %d not updated: %v", id, n.RawProps)
		}
	}
	if s.UndoDepth() != 1 {
		t.Errorf("bulk edit should be one undo step, got %d", s.UndoDepth())
	}
}

// ============================================
// Links
// ============================================

func TestUpdateLinkFieldsAndSwap(t *testing.T) {
	s := newTestSession(t)
	bi, title := "BIDIRECTIONAL", "Go on"
	if !s.UpdateLinkFields(0, LinkFieldUpdates{Type: &bi, TargetTitle: &title}) {
		t.Fatal("expected change")
	}
	s.UpdateNodeProps(0, map[string]interface{}{props.OrderedLinkIDsKey: []interface{}{"0"}}, props.Options{})

	if !s.SwapLinkDirection(0) {
		t.Fatal("expected swap")
	}
	adv := graph(t, s)
	l := adv.Links[adventure.FindLink(adv.Links, 0)]
	if l.Source != 1 || l.Target != 0 || l.SourceTitle != "Go on" || l.TargetTitle != "" || l.Type != "bidirectional" {
		t.Errorf("swapped link = %+v", l)
	}
	oldSource := adv.Nodes[adventure.FindNode(adv.Nodes, 0)]
	if got := props.OrderedLinkIDs(oldSource.RawProps); len(got) != 0 {
		t.Errorf("old source order = %v", got)
	}
	newSource := adv.Nodes[adventure.FindNode(adv.Nodes, 1)]
	if got := props.OrderedLinkIDs(newSource.RawProps); !slices.Equal(got, []int{0}) {
		t.Errorf("new source order = %v", got)
	}
}

// ============================================
// Clipboard and selection
// ============================================

func TestPasteRecentersAndSelects(t *testing.T) {
	s := newTestSession(t)
	s.SetSelectionSnapshot([]int{4, 1, 1}, nil)
	if got := s.SelectedNodeIDs(); !reflect.DeepEqual(got, []int{1, 4}) {
		t.Fatalf("selection not normalized: %v", got)
	}
	s.CopySelection()
	ids := s.PasteClipboard(adventure.Position{X: 1000, Y: 1000})
	adv := graph(t, s)
	first := adv.Nodes[adventure.FindNode(adv.Nodes, ids[0])]
	second := adv.Nodes[adventure.FindNode(adv.Nodes, ids[1])]
	// bounds are 100x50, so the top-left lands at (950, 975)
	if first.Position != (adventure.Position{X: 950, Y: 975}) || second.Position != (adventure.Position{X: 1050, Y: 1025}) {
		t.Errorf("positions = %+v %+v", first.Position, second.Position)
	}
	if !first.Changed || first.ID != 0 {
		t.Errorf("pasted node flags = %+v", first)
	}
	if s.Selection() != NodeSelection(ids[1]) || !reflect.DeepEqual(s.SelectedNodeIDs(), ids) || len(s.SelectedLinkIDs()) != 0 {
		t.Errorf("selection after paste: %+v %v", s.Selection(), s.SelectedNodeIDs())
	}
	if len(adv.Links) != 2 {
		t.Error("paste must not copy links")
	}
}

func TestDuplicateOfRootIsNotRoot(t *testing.T) {
	s := newTestSession(t)
	id, _ := s.DuplicateNode(0)
	adv := graph(t, s)
	dup := adv.Nodes[adventure.FindNode(adv.Nodes, id)]
	if dup.Type == adventure.NodeTypeRoot || dup.ChapterType() == "start-node" {
		t.Errorf("duplicate kept start designation: %+v", dup)
	}
	if dup.Position != (adventure.Position{X: 60, Y: 60}) {
		t.Errorf("duplicate position = %+v", dup.Position)
	}
	if s.Selection() != NodeSelection(id) {
		t.Errorf("selection = %+v", s.Selection())
	}
}

// ============================================
// Session state
// ============================================

func TestReadOnlyRefusesEdits(t *testing.T) {
	s := newTestSession(t)
	s.SetSaveStatus(SaveLocked, "locked by another editor")
	if !s.ReadOnly() {
		t.Fatal("locked status must make the session read-only")
	}
	if s.UpdateNodeTitle(1, "x") || s.Undo() {
		t.Error("edit accepted while read-only")
	}
	if _, ok := s.AddLink(0, 4); ok {
		t.Error("link accepted while read-only")
	}
}

func TestChangeListenerAndClearDirty(t *testing.T) {
	s := newTestSession(t)
	var revisions []uint64
	s.OnChange(func(rev uint64) { revisions = append(revisions, rev) })
	s.UpdateNodeText(1, "hello")
	s.UpdateNodeText(1, "hello")
	if len(revisions) != 1 {
		t.Fatalf("listener calls = %d", len(revisions))
	}
	if s.ClearDirty(revisions[0] - 1) {
		t.Error("stale revision cleared dirty flag")
	}
	if !s.ClearDirty(revisions[0]) || s.Dirty() {
		t.Error("current revision did not clear dirty flag")
	}
}

func TestMenuShortcutPick(t *testing.T) {
	s := newTestSession(t)
	if !s.StartMenuShortcutPick(2) {
		t.Fatal("pick refused")
	}
	if !s.ApplyMenuShortcutPick(4) {
		t.Fatal("apply refused")
	}
	adv := graph(t, s)
	list := adv.RawProps["menu_shortcuts"].([]interface{})
	entry := list[2].(map[string]interface{})
	if entry["nodeId"] != "4" || entry["text"] != "B" {
		t.Errorf("shortcut = %v", entry)
	}
	if s.ApplyMenuShortcutPick(1) {
		t.Error("apply without armed pick should do nothing")
	}
}

func TestUpdateAdventureFields(t *testing.T) {
	s := newTestSession(t)
	title := "New"
	if !s.UpdateAdventureFields(AdventureFieldUpdates{Title: &title, Category: &adventure.Category{ID: 3}}) {
		t.Fatal("expected change")
	}
	if s.UpdateAdventureFields(AdventureFieldUpdates{Title: &title, Category: &adventure.Category{ID: 3}}) {
		t.Error("repeat update reported change")
	}
	adv := graph(t, s)
	if adv.Title != "New" || adv.Category == nil || adv.Category.ID != 3 {
		t.Errorf("adventure = %+v", adv)
	}
	if s.UndoDepth() != 0 {
		t.Error("metadata edits must not enter the undo history")
	}
}
