package simulator

import (
	"reflect"
	"strings"
	"testing"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

func simAdventure() adventure.Adventure {
	chapter := func(id int, title, chapterType, text string) adventure.Node {
		n := adventure.Node{NodeID: id, Title: title, Text: text, Type: adventure.NodeTypeDefault}
		if chapterType != "" {
			n = n.WithRawProps(props.Record{props.ChapterTypeKey: []interface{}{chapterType}})
		}
		return n
	}
	return adventure.Adventure{
		Nodes: []adventure.Node{
			{NodeID: 0, Title: "Start", Type: adventure.NodeTypeRoot},
			{NodeID: 1, Title: "Forest", Type: adventure.NodeTypeDefault},
			{NodeID: 2, Title: "Cave", Type: adventure.NodeTypeDefault},
			chapter(3, "Wiki", "ref-node", "see https://example.com/wiki"),
			{NodeID: 4, Title: "Treasure", Type: adventure.NodeTypeDefault},
		},
		Links: []adventure.Link{
			{LinkID: 0, Source: 0, Target: 1},
			{LinkID: 1, Source: 0, Target: 2},
			{LinkID: 2, Source: 1, Target: 3},
			{LinkID: 3, Source: 2, Target: 4, Props: props.Record{"positiveNodeList": []interface{}{1}, "conditionBehavior": "hide"}},
			{LinkID: 4, Source: 1, Target: 2, Type: adventure.LinkTypeBidirectional},
		},
	}
}

// ============================================
// ValidatePath
// ============================================

func TestValidatePathOK(t *testing.T) {
	ps := NewPathSimulator(simAdventure())
	if errs := ps.ValidatePath([]int{0, 1, 2, 4}); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	// bidirectional links can be taken backwards
	if errs := ps.ValidatePath([]int{0, 2, 1}); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestValidatePathErrors(t *testing.T) {
	ps := NewPathSimulator(simAdventure())
	errs := ps.ValidatePath([]int{0, 4, 99})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !strings.Contains(errs[0], "#99 does not exist") {
		t.Errorf("first error = %q", errs[0])
	}
	if !strings.Contains(errs[1], "no link to #4") {
		t.Errorf("second error = %q", errs[1])
	}
	if errs := ps.ValidatePath(nil); len(errs) != 1 {
		t.Errorf("empty path errors = %v", errs)
	}
}

// ============================================
// SimulatePath
// ============================================

func TestSimulatePathWarnsAboutConditions(t *testing.T) {
	ps := NewPathSimulator(simAdventure())
	result := ps.SimulatePath([]int{0, 2, 4})
	if !result.Success {
		t.Fatalf("simulation failed: %v", result.Errors)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("steps = %d", len(result.Steps))
	}
	cave := result.Steps[1]
	if cave.ViaLinkID == nil || *cave.ViaLinkID != 1 {
		t.Errorf("via = %v", cave.ViaLinkID)
	}
	found := false
	for _, w := range cave.Warnings {
		if strings.Contains(w, "link 3 is not offered") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a hidden link warning, got %v", cave.Warnings)
	}
	if last := result.Steps[2]; last.Progress != 60 || len(last.Warnings) != 1 {
		t.Errorf("last step = %+v", last)
	}
	if !reflect.DeepEqual(result.Visited, []int{0, 2, 4}) {
		t.Errorf("visited = %v", result.Visited)
	}
}

func TestSimulatePathReference(t *testing.T) {
	ps := NewPathSimulator(simAdventure())
	result := ps.SimulatePath([]int{0, 1, 3})
	forest := result.Steps[1]
	found := false
	for _, w := range forest.Warnings {
		if strings.Contains(w, "opens https://example.com/wiki") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a reference warning, got %v", forest.Warnings)
	}
	if result.TotalWarnings == 0 {
		t.Error("total warnings not counted")
	}
}

func TestSimulateInvalidPath(t *testing.T) {
	result := NewPathSimulator(simAdventure()).SimulatePath([]int{0, 4})
	if result.Success || len(result.Errors) == 0 || len(result.Steps) != 0 {
		t.Errorf("result = %+v", result)
	}
}

// ============================================
// GetSuggestedPaths
// ============================================

func TestSuggestedPathsHonorConditions(t *testing.T) {
	ps := NewPathSimulator(simAdventure())
	paths := ps.GetSuggestedPaths(0, 10)

	// 2 -> 4 stays hidden until 1 is on the path
	expected := [][]int{
		{0, 1, 3},
		{0, 1, 2, 4},
		{0, 2, 1, 3},
	}
	if !reflect.DeepEqual(paths, expected) {
		t.Errorf("paths = %v, expected %v", paths, expected)
	}
}

func TestSuggestedPathsDepthAndLimit(t *testing.T) {
	ps := NewPathSimulator(simAdventure())
	for _, p := range ps.GetSuggestedPaths(0, 2) {
		if len(p) > 2 {
			t.Errorf("path %v exceeds depth", p)
		}
	}
	if got := ps.GetSuggestedPaths(42, 5); len(got) != 0 {
		t.Errorf("unknown start gave %v", got)
	}

	var nodes []adventure.Node
	var links []adventure.Link
	for i := 0; i < 30; i++ {
		nodes = append(nodes, adventure.Node{NodeID: i})
		if i > 0 {
			links = append(links, adventure.Link{LinkID: i, Source: 0, Target: i})
		}
	}
	wide := NewPathSimulator(adventure.Adventure{Nodes: nodes, Links: links})
	if got := wide.GetSuggestedPaths(0, 3); len(got) != SuggestionLimit {
		t.Errorf("expected %d paths, got %d", SuggestionLimit, len(got))
	}
}
