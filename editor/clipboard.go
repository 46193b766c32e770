package editor

import (
	"math"
	"slices"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// ClipboardNode is a copied node with its position relative to the top-left
// corner of the copied set.
type ClipboardNode struct {
	Title    string
	Text     string
	Icon     string
	Position adventure.Position
	Image    adventure.Image
	Type     string
	RawProps props.Record
}

// Clipboard holds copied nodes. Links are not copied.
type Clipboard struct {
	Nodes  []ClipboardNode
	Width  float64
	Height float64
}

// CopySelection copies the multi-selected nodes. It does nothing when no
// selected node exists.
func (s *Session) CopySelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adv == nil || len(s.selectedNodeIDs) == 0 {
		return false
	}
	var picked []adventure.Node
	for _, n := range s.adv.Nodes {
		if slices.Contains(s.selectedNodeIDs, n.NodeID) {
			picked = append(picked, n)
		}
	}
	if len(picked) == 0 {
		return false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range picked {
		minX, maxX = math.Min(minX, n.Position.X), math.Max(maxX, n.Position.X)
		minY, maxY = math.Min(minY, n.Position.Y), math.Max(maxY, n.Position.Y)
	}
	clip := &Clipboard{Width: maxX - minX, Height: maxY - minY}
	for _, n := range picked {
		clip.Nodes = append(clip.Nodes, ClipboardNode{
			Title:    n.Title,
			Text:     n.Text,
			Icon:     n.Icon,
			Position: adventure.Position{X: n.Position.X - minX, Y: n.Position.Y - minY},
			Image:    n.Image,
			Type:     n.Type,
			RawProps: props.Clone(n.RawProps),
		})
	}
	s.clipboard = clip
	return true
}

// PasteClipboard inserts the clipboard nodes centered on target, with fresh
// sequential ids, and selects them. It returns the new ids.
func (s *Session) PasteClipboard(target adventure.Position) []int {
	var created []int
	s.mutate(func() bool {
		if s.clipboard == nil || len(s.clipboard.Nodes) == 0 {
			return false
		}
		offsetX := target.X - s.clipboard.Width/2
		offsetY := target.Y - s.clipboard.Height/2
		nextID := adventure.NextNodeID(s.adv.Nodes)
		nodes := slices.Clone(s.adv.Nodes)
		for _, c := range s.clipboard.Nodes {
			n := adventure.Node{
				NodeID:   nextID,
				Title:    c.Title,
				Text:     c.Text,
				Icon:     c.Icon,
				Position: adventure.Position{X: c.Position.X + offsetX, Y: c.Position.Y + offsetY},
				Image:    c.Image,
				Type:     c.Type,
				Changed:  true,
			}
			n = asNonRoot(n.WithRawProps(props.Clone(c.RawProps)))
			nodes = append(nodes, n)
			created = append(created, nextID)
			nextID++
		}
		s.setGraph(nodes, s.adv.Links)
		s.selection = NodeSelection(created[len(created)-1])
		s.selectedNodeIDs = slices.Clone(created)
		s.selectedLinkIDs = []int{}
		return true
	})
	return created
}
