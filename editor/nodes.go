package editor

import (
	"fmt"
	"slices"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// DuplicateOffset is added to a duplicated node's position.
var DuplicateOffset = adventure.Position{X: 60, Y: 60}

// PositionUpdate moves one node.
type PositionUpdate struct {
	NodeID   int                `json:"nodeId"`
	Position adventure.Position `json:"position"`
}

func newNode(nodeID int, pos adventure.Position) adventure.Node {
	return adventure.Node{
		NodeID:   nodeID,
		Title:    fmt.Sprintf("#%d", nodeID),
		Position: pos,
		Type:     adventure.NodeTypeDefault,
		Changed:  true,
	}
}

func newLink(linkID, source, target int) adventure.Link {
	return adventure.Link{
		LinkID:  linkID,
		Source:  source,
		Target:  target,
		Type:    adventure.LinkTypeDefault,
		Changed: true,
	}
}

// editNode applies fn to a copy of the node and installs it when fn reports
// a change.
func (s *Session) editNode(nodeID int, fn func(n *adventure.Node) bool) bool {
	return s.mutate(func() bool {
		i := adventure.FindNode(s.adv.Nodes, nodeID)
		if i < 0 {
			return false
		}
		n := s.adv.Nodes[i]
		if !fn(&n) {
			return false
		}
		n.Changed = true
		nodes := slices.Clone(s.adv.Nodes)
		nodes[i] = n
		s.setGraph(nodes, s.adv.Links)
		return true
	})
}

// UpdateNodeTitle renames a node.
func (s *Session) UpdateNodeTitle(nodeID int, title string) bool {
	return s.editNode(nodeID, func(n *adventure.Node) bool {
		if n.Title == title {
			return false
		}
		n.Title = title
		return true
	})
}

// UpdateNodeText replaces a node's content.
func (s *Session) UpdateNodeText(nodeID int, text string) bool {
	return s.editNode(nodeID, func(n *adventure.Node) bool {
		if n.Text == text {
			return false
		}
		n.Text = text
		return true
	})
}

// UpdateNodeImageURL sets or, with "", clears a node's image url.
func (s *Session) UpdateNodeImageURL(nodeID int, url string) bool {
	return s.editNode(nodeID, func(n *adventure.Node) bool {
		if n.Image.URL == url {
			return false
		}
		n.Image.URL = url
		return true
	})
}

// UpdateNodePositions moves several nodes as a single undo step.
func (s *Session) UpdateNodePositions(updates []PositionUpdate) bool {
	if len(updates) == 0 {
		return false
	}
	return s.mutate(func() bool {
		targets := make(map[int]adventure.Position, len(updates))
		for _, u := range updates {
			targets[u.NodeID] = u.Position
		}
		var nodes []adventure.Node
		for i, n := range s.adv.Nodes {
			pos, ok := targets[n.NodeID]
			if !ok || n.Position == pos {
				continue
			}
			if nodes == nil {
				nodes = slices.Clone(s.adv.Nodes)
			}
			nodes[i].Position = pos
			nodes[i].Changed = true
		}
		if nodes == nil {
			return false
		}
		s.setGraph(nodes, s.adv.Links)
		return true
	})
}

// AddNode creates an unconnected node at pos and returns its id.
func (s *Session) AddNode(pos adventure.Position) (int, bool) {
	var nodeID int
	ok := s.mutate(func() bool {
		nodeID = adventure.NextNodeID(s.adv.Nodes)
		nodes := append(slices.Clone(s.adv.Nodes), newNode(nodeID, pos))
		s.setGraph(nodes, s.adv.Links)
		return true
	})
	return nodeID, ok
}

// AddNodeWithLink creates a node at pos and a link to it from sourceID.
func (s *Session) AddNodeWithLink(sourceID int, pos adventure.Position) (nodeID, linkID int, ok bool) {
	ok = s.mutate(func() bool {
		if adventure.FindNode(s.adv.Nodes, sourceID) < 0 {
			return false
		}
		nodeID = adventure.NextNodeID(s.adv.Nodes)
		linkID = adventure.NextLinkID(s.adv.Links)
		nodes := append(slices.Clone(s.adv.Nodes), newNode(nodeID, pos))
		links := append(slices.Clone(s.adv.Links), newLink(linkID, sourceID, nodeID))
		s.setGraph(nodes, links)
		return true
	})
	if !ok {
		return 0, 0, false
	}
	return nodeID, linkID, true
}

// DuplicateNode copies a node, without its links, next to the original and
// selects the copy. A copy of the start node is an ordinary node.
func (s *Session) DuplicateNode(nodeID int) (int, bool) {
	var newID int
	ok := s.mutate(func() bool {
		i := adventure.FindNode(s.adv.Nodes, nodeID)
		if i < 0 {
			return false
		}
		src := s.adv.Nodes[i]
		newID = adventure.NextNodeID(s.adv.Nodes)
		dup := src.WithRawProps(props.Clone(src.RawProps))
		dup.ID = 0
		dup.NodeID = newID
		dup.Position = adventure.Position{X: src.Position.X + DuplicateOffset.X, Y: src.Position.Y + DuplicateOffset.Y}
		dup.Changed = true
		dup = asNonRoot(dup)

		nodes := append(slices.Clone(s.adv.Nodes), dup)
		s.setGraph(nodes, s.adv.Links)
		s.selection = NodeSelection(newID)
		s.selectedNodeIDs = []int{newID}
		s.selectedLinkIDs = []int{}
		return true
	})
	return newID, ok
}

// RemoveNodes deletes nodes and every link touching them.
func (s *Session) RemoveNodes(nodeIDs []int) bool {
	if len(nodeIDs) == 0 {
		return false
	}
	return s.removeGraph(nodeIDs, nil)
}

// RemoveLinks deletes links.
func (s *Session) RemoveLinks(linkIDs []int) bool {
	if len(linkIDs) == 0 {
		return false
	}
	return s.removeGraph(nil, linkIDs)
}

// RemoveSelection deletes the given nodes and links in one step.
func (s *Session) RemoveSelection(nodeIDs, linkIDs []int) bool {
	if len(nodeIDs) == 0 && len(linkIDs) == 0 {
		return false
	}
	return s.removeGraph(nodeIDs, linkIDs)
}

func (s *Session) removeGraph(nodeIDs, linkIDs []int) bool {
	return s.mutate(func() bool {
		dropNodes := make(map[int]bool, len(nodeIDs))
		for _, id := range nodeIDs {
			dropNodes[id] = true
		}
		dropLinks := make(map[int]bool, len(linkIDs))
		for _, id := range linkIDs {
			dropLinks[id] = true
		}

		nodes := slices.DeleteFunc(slices.Clone(s.adv.Nodes), func(n adventure.Node) bool {
			return dropNodes[n.NodeID]
		})
		removedLinks := map[int]bool{}
		links := slices.DeleteFunc(slices.Clone(s.adv.Links), func(l adventure.Link) bool {
			if dropLinks[l.LinkID] || dropNodes[l.Source] || dropNodes[l.Target] {
				removedLinks[l.LinkID] = true
				return true
			}
			return false
		})
		if len(nodes) == len(s.adv.Nodes) && len(links) == len(s.adv.Links) {
			return false
		}
		s.setGraph(nodes, links)
		s.dropRemoved(dropNodes, removedLinks)
		return true
	})
}

// asNonRoot strips start designation from a node copy.
func asNonRoot(n adventure.Node) adventure.Node {
	if n.Type == adventure.NodeTypeRoot {
		n.Type = adventure.NodeTypeDefault
	}
	if n.ChapterType() == props.ChapterStart {
		n = n.WithRawProps(clearChapterType(n.RawProps))
	}
	return n
}
