package adventure

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

const sampleAdventure = `{
	"id": "7",
	"title": "The Lighthouse",
	"slug": "edit-abc",
	"view_slug": "view-abc",
	"edit_version": "3",
	"props": "{\"font_list\":[\"Lora\",5,\"Inter\"],\"menu_option\":\"all\"}",
	"nodes": [
		{"id": 10, "node_id": "0", "title": "Start", "text": "Welcome", "x": 10.4, "y": "20", "type": "root",
		 "props": "{\"settings_chapterType\":[\"start-node\"],\"audio_url\":\"https://cdn/a.mp3\"}"},
		{"id": 11, "node_id": 1, "title": "Shore", "text": "Waves", "x": null, "image_url": null, "props": ""},
		{"id": 12, "node_id": 2, "title": "Keeper", "text": "Hello", "props": {"ordered_link_ids": [5, 4]}}
	],
	"links": [
		{"id": 20, "link_id": 4, "source": "0", "target": 1, "type": "default", "props": "{\"positiveNodeList\":[2]}"},
		{"id": 21, "link_id": 5, "source": 0, "target": 2, "type": "bidirectional"}
	],
	"users": [{"id": 1, "username": "ana", "name": "Ana", "role": "2"}]
}`

// ============================================
// Decoding and mapping
// ============================================

func TestParseAdventureCoercesLooseFields(t *testing.T) {
	adv, err := ParseAdventure([]byte(sampleAdventure))
	if err != nil {
		t.Fatalf("ParseAdventure: %v", err)
	}
	if adv.ID != 7 || adv.EditVersion != 3 {
		t.Errorf("coercion failed: id=%d edit_version=%d", adv.ID, adv.EditVersion)
	}
	if adv.Description != "" || adv.Locked || adv.ViewCount != 0 {
		t.Errorf("defaults not applied: %+v", adv)
	}
	if len(adv.Nodes) != 3 || len(adv.Links) != 2 {
		t.Fatalf("expected 3 nodes and 2 links, got %d/%d", len(adv.Nodes), len(adv.Links))
	}
	start := adv.Nodes[0]
	if start.Position.Y != 20 || start.Position.X != 10.4 {
		t.Errorf("position = %+v", start.Position)
	}
	if start.Props == nil || start.Props.AudioURL != "https://cdn/a.mp3" || start.Props.ChapterType != "start-node" {
		t.Errorf("structured props = %+v", start.Props)
	}
	if adv.Nodes[1].RawProps != nil || adv.Nodes[1].Props != nil {
		t.Errorf("empty props should map to nil, got %v / %v", adv.Nodes[1].RawProps, adv.Nodes[1].Props)
	}
	if adv.Nodes[2].RawProps["ordered_link_ids"] == nil {
		t.Error("object props not preserved")
	}
	if adv.Links[0].Source != 0 || adv.Links[0].Props["positiveNodeList"] == nil {
		t.Errorf("link mapping wrong: %+v", adv.Links[0])
	}
	if adv.Props == nil || !reflect.DeepEqual(adv.Props.FontList, []string{"Lora", "Inter"}) {
		t.Errorf("font list = %+v", adv.Props)
	}
	if adv.Users[0].Role != 2 {
		t.Errorf("user role = %d", adv.Users[0].Role)
	}
}

func TestParseAdventureReportsIssues(t *testing.T) {
	_, err := ParseAdventure([]byte(`{"id": 1, "view_slug": "v", "edit_version": 1,
		"nodes": [{"id": 1, "node_id": 1, "text": "x"}]}`))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	paths := map[string]bool{}
	for _, is := range perr.Issues {
		paths[is.Path] = true
	}
	if !paths["title"] || !paths["nodes[0].title"] {
		t.Errorf("missing issues, got %+v", perr.Issues)
	}
	if perr.Message != "Adventure DTO validation failed" {
		t.Errorf("message = %q", perr.Message)
	}
}

func TestParseNodeRejectsBadNumbers(t *testing.T) {
	_, err := ParseNode([]byte(`{"id": "abc", "node_id": 1, "title": "", "text": ""}`))
	var perr *ParseError
	if !errors.As(err, &perr) || len(perr.Issues) == 0 {
		t.Fatalf("expected parse error with issues, got %v", err)
	}
	if _, err := ParseLink([]byte(`{"id": 1, "link_id": 1, "source": 1, "target": 2}`)); err == nil {
		t.Error("link without type should fail")
	}
}

// ============================================
// Serialization
// ============================================

func TestNodeRoundTrip(t *testing.T) {
	dtos := []string{
		`{"id": 1, "node_id": 4, "title": "A", "text": "t", "x": 3, "y": -2, "props": "{\"a\":[\"b\"]}"}`,
		`{"id": 0, "node_id": "9", "title": "B", "text": "", "image_url": "https://img/x.png", "image_id": "4", "props": null}`,
		`{"id": 2, "node_id": 1, "title": "C", "text": "<p>x</p>", "type": "root", "changed": true, "props": "not json"}`,
	}
	for _, raw := range dtos {
		var dto NodeDTO
		if err := json.Unmarshal([]byte(raw), &dto); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		first := MapNodeDTO(dto)
		second := MapNodeDTO(BuildNodeDTO(first))
		if !reflect.DeepEqual(first, second) {
			t.Errorf("round trip mismatch:\n first=%+v\nsecond=%+v", first, second)
		}
	}
}

func TestBuildNodeDTORoundsPositions(t *testing.T) {
	dto := BuildNodeDTO(Node{NodeID: 1, Position: Position{X: 10.6, Y: -3.4}})
	if dto.X != 11 || dto.Y != -3 {
		t.Errorf("positions = %v,%v", dto.X, dto.Y)
	}
	if dto.Props.String() != "" {
		t.Errorf("node without props should serialize to empty string, got %q", dto.Props.String())
	}
}

func TestBuildAdventureDTO(t *testing.T) {
	adv, err := ParseAdventure([]byte(sampleAdventure))
	if err != nil {
		t.Fatal(err)
	}
	dto := BuildAdventureDTO(adv, 12)
	if dto.EditVersion != 12 {
		t.Errorf("edit version = %d", dto.EditVersion)
	}
	data, err := json.Marshal(dto)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"props":"{`) {
		t.Errorf("props must be a string on the wire: %s", data)
	}
	reparsed, err := ParseAdventure(data)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	opts := reparsed.RawProps["menu_option"].([]interface{})
	if len(opts) != 4 {
		t.Errorf("menu_option all should expand to defaults, got %v", opts)
	}
	shortcuts := reparsed.RawProps["menu_shortcuts"].([]interface{})
	if len(shortcuts) != MenuShortcutSlots {
		t.Errorf("expected %d shortcut slots, got %d", MenuShortcutSlots, len(shortcuts))
	}
	if reparsed.Nodes[0].Position.X != 10 {
		t.Errorf("position not rounded: %v", reparsed.Nodes[0].Position.X)
	}
}

func TestNormalizeMenuOptions(t *testing.T) {
	cases := []struct {
		raw  map[string]interface{}
		want []interface{}
	}{
		{map[string]interface{}{}, []interface{}{"back", "home", "menu", "sound"}},
		{map[string]interface{}{"menu_option": ""}, []interface{}{}},
		{map[string]interface{}{"menuOptions": []interface{}{"sound", "x", "back"}}, []interface{}{"back", "sound"}},
		{map[string]interface{}{"menu_option": "home"}, []interface{}{"home"}},
		{map[string]interface{}{"menu_option": 4.0}, []interface{}{}},
	}
	for _, tc := range cases {
		if got := normalizeMenuOptions(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("normalizeMenuOptions(%v) = %v, expected %v", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeMenuShortcuts(t *testing.T) {
	got := normalizeMenuShortcuts(map[string]interface{}{
		"menu_shortcuts": `[{"node_id": "#4", "text": "Map"}, {"nodeId": 7}]`,
	})
	first := got[0].(map[string]interface{})
	if first["nodeId"] != "4" || first["text"] != "Map" {
		t.Errorf("first shortcut = %v", first)
	}
	second := got[1].(map[string]interface{})
	if second["nodeId"] != "7" || second["text"] != "" {
		t.Errorf("second shortcut = %v", second)
	}
	if last := got[8].(map[string]interface{}); last["nodeId"] != "" {
		t.Errorf("padding shortcut = %v", last)
	}
}

// ============================================
// Graph helpers
// ============================================

func TestNextIDs(t *testing.T) {
	if NextNodeID(nil) != 0 || NextLinkID(nil) != 0 {
		t.Error("empty graph should start at 0")
	}
	nodes := []Node{{NodeID: 3}, {NodeID: 8}, {NodeID: 1}}
	if got := NextNodeID(nodes); got != 9 {
		t.Errorf("NextNodeID = %d", got)
	}
}

func TestMergeServerIDs(t *testing.T) {
	current := Adventure{
		Nodes: []Node{{ID: 0, NodeID: 1}, {ID: 5, NodeID: 2}, {ID: 0, NodeID: 3}},
		Links: []Link{{ID: 0, LinkID: 1}},
	}
	saved := Adventure{
		Nodes:     []Node{{ID: 100, NodeID: 1}, {ID: 5, NodeID: 2}},
		Links:     []Link{{ID: 200, LinkID: 1}},
		UpdatedAt: "2024-01-01",
	}
	merged, changed := MergeServerIDs(current, saved)
	if !changed {
		t.Fatal("expected change")
	}
	if merged.Nodes[0].ID != 100 || merged.Nodes[2].ID != 0 || merged.Links[0].ID != 200 {
		t.Errorf("ids not merged: %+v %+v", merged.Nodes, merged.Links)
	}
	if current.Nodes[0].ID != 0 {
		t.Error("current mutated")
	}
	if _, changed := MergeServerIDs(merged, saved); changed {
		t.Error("second merge should be a no-op")
	}
}

func TestBuildIndex(t *testing.T) {
	adv, err := ParseAdventure([]byte(sampleAdventure))
	if err != nil {
		t.Fatal(err)
	}
	idx := BuildIndex(adv)
	if len(idx.LinksBySource[0]) != 2 {
		t.Errorf("links by source = %v", idx.LinksBySource[0])
	}
	if idx.LinksByID[20].LinkID != 4 || idx.LinksByID[5].LinkID != 5 {
		t.Error("links by id should hold both logical and storage ids")
	}
	root, ok := RootNode(adv.Nodes)
	if !ok || root.NodeID != 0 {
		t.Errorf("root = %+v", root)
	}
}
