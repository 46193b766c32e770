package adventure

// NextNodeID returns the id the next new node gets: one past the highest
// NodeID, or 0 for an empty graph. Ids are never reused.
func NextNodeID(nodes []Node) int {
	max := -1
	for _, n := range nodes {
		if n.NodeID > max {
			max = n.NodeID
		}
	}
	return max + 1
}

// NextLinkID is NextNodeID for links.
func NextLinkID(links []Link) int {
	max := -1
	for _, l := range links {
		if l.LinkID > max {
			max = l.LinkID
		}
	}
	return max + 1
}

// FindNode returns the index of the node with the given NodeID, or -1.
func FindNode(nodes []Node, nodeID int) int {
	for i, n := range nodes {
		if n.NodeID == nodeID {
			return i
		}
	}
	return -1
}

// FindLink returns the index of the link with the given LinkID, or -1.
func FindLink(links []Link, linkID int) int {
	for i, l := range links {
		if l.LinkID == linkID {
			return i
		}
	}
	return -1
}

// HasEdge reports whether any link joins a and b, in either direction.
func HasEdge(links []Link, a, b int) bool {
	for _, l := range links {
		if l.Connects(a, b) {
			return true
		}
	}
	return false
}

// RootNode returns the start node: the first node typed root, otherwise the
// first node. ok is false for an empty graph.
func RootNode(nodes []Node) (Node, bool) {
	for _, n := range nodes {
		if n.Type == NodeTypeRoot {
			return n, true
		}
	}
	if len(nodes) == 0 {
		return Node{}, false
	}
	return nodes[0], true
}

// Index is a read-only lookup view of an adventure graph.
type Index struct {
	Nodes         map[int]Node
	LinksBySource map[int][]Link
	// LinksByID holds every link under its LinkID and under its storage ID.
	LinksByID map[int]Link
	// Links keeps the original link order.
	Links []Link
}

// BuildIndex indexes the nodes and links of a.
func BuildIndex(a Adventure) Index {
	idx := Index{
		Nodes:         make(map[int]Node, len(a.Nodes)),
		LinksBySource: make(map[int][]Link),
		LinksByID:     make(map[int]Link, len(a.Links)*2),
		Links:         a.Links,
	}
	for _, n := range a.Nodes {
		idx.Nodes[n.NodeID] = n
	}
	for _, l := range a.Links {
		idx.LinksBySource[l.Source] = append(idx.LinksBySource[l.Source], l)
		if _, taken := idx.LinksByID[l.ID]; !taken && l.ID != 0 {
			idx.LinksByID[l.ID] = l
		}
		idx.LinksByID[l.LinkID] = l
	}
	return idx
}
