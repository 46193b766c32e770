package editor

import (
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// LinkFieldUpdates holds the link fields to change; nil fields are kept.
type LinkFieldUpdates struct {
	TargetTitle *string `json:"targetTitle"`
	SourceTitle *string `json:"sourceTitle"`
	Type        *string `json:"type"`
}

// NormalizeLinkType maps anything but "bidirectional" to the default type.
func NormalizeLinkType(t string) string {
	if strings.EqualFold(strings.TrimSpace(t), adventure.LinkTypeBidirectional) {
		return adventure.LinkTypeBidirectional
	}
	return adventure.LinkTypeDefault
}

func (s *Session) editLink(linkID int, fn func(l *adventure.Link) bool) bool {
	return s.mutate(func() bool {
		i := adventure.FindLink(s.adv.Links, linkID)
		if i < 0 {
			return false
		}
		l := s.adv.Links[i]
		if !fn(&l) {
			return false
		}
		l.Changed = true
		links := slices.Clone(s.adv.Links)
		links[i] = l
		s.setGraph(s.adv.Nodes, links)
		return true
	})
}

// AddLink connects sourceID to targetID. Self links, unknown nodes and pairs
// already connected in either direction are refused.
func (s *Session) AddLink(sourceID, targetID int) (int, bool) {
	var linkID int
	ok := s.mutate(func() bool {
		if sourceID == targetID {
			return false
		}
		if adventure.FindNode(s.adv.Nodes, sourceID) < 0 || adventure.FindNode(s.adv.Nodes, targetID) < 0 {
			return false
		}
		if adventure.HasEdge(s.adv.Links, sourceID, targetID) {
			return false
		}
		linkID = adventure.NextLinkID(s.adv.Links)
		links := append(slices.Clone(s.adv.Links), newLink(linkID, sourceID, targetID))
		s.setGraph(s.adv.Nodes, links)
		return true
	})
	return linkID, ok
}

// UpdateLinkFields changes a link's titles and type.
func (s *Session) UpdateLinkFields(linkID int, u LinkFieldUpdates) bool {
	return s.editLink(linkID, func(l *adventure.Link) bool {
		nextTarget, nextSource := l.TargetTitle, l.SourceTitle
		nextType := NormalizeLinkType(l.Type)
		if u.TargetTitle != nil {
			nextTarget = *u.TargetTitle
		}
		if u.SourceTitle != nil {
			nextSource = *u.SourceTitle
		}
		if u.Type != nil {
			nextType = NormalizeLinkType(*u.Type)
		}
		if nextTarget == l.TargetTitle && nextSource == l.SourceTitle && nextType == l.Type {
			return false
		}
		l.TargetTitle, l.SourceTitle, l.Type = nextTarget, nextSource, nextType
		return true
	})
}

// SwapLinkDirection reverses a link. Titles swap with the endpoints, and
// the link moves from the old source's explicit order to the end of the new
// source's.
func (s *Session) SwapLinkDirection(linkID int) bool {
	return s.mutate(func() bool {
		i := adventure.FindLink(s.adv.Links, linkID)
		if i < 0 {
			return false
		}
		l := s.adv.Links[i]
		if adventure.FindNode(s.adv.Nodes, l.Source) < 0 || adventure.FindNode(s.adv.Nodes, l.Target) < 0 {
			return false
		}
		links := slices.Clone(s.adv.Links)
		links[i].Source, links[i].Target = l.Target, l.Source
		links[i].SourceTitle, links[i].TargetTitle = l.TargetTitle, l.SourceTitle
		links[i].Changed = true

		token := strconv.Itoa(l.LinkID)
		nodes := slices.Clone(s.adv.Nodes)
		nodesChanged := reorderNode(nodes, l.Source, func(list []string) []string {
			return slices.DeleteFunc(list, func(e string) bool { return e == token })
		})
		if reorderNode(nodes, l.Target, func(list []string) []string {
			return append(slices.DeleteFunc(list, func(e string) bool { return e == token }), token)
		}) {
			nodesChanged = true
		}
		if !nodesChanged {
			nodes = s.adv.Nodes
		}
		s.setGraph(nodes, links)
		return true
	})
}

// reorderNode rewrites the ordered_link_ids of a node in place in nodes.
func reorderNode(nodes []adventure.Node, nodeID int, fn func([]string) []string) bool {
	i := adventure.FindNode(nodes, nodeID)
	if i < 0 {
		return false
	}
	n := nodes[i]
	raw, hasKey := n.RawProps[props.OrderedLinkIDsKey]
	list := readStringList(raw)
	next := fn(slices.Clone(list))
	if slices.Equal(list, next) || (!hasKey && len(next) == 0) {
		return false
	}
	values := make([]interface{}, len(next))
	for k, v := range next {
		values[k] = v
	}
	base := n.RawProps
	if base == nil {
		base = props.Record{}
	}
	n = n.WithRawProps(props.SetPath(base, props.OrderedLinkIDsKey, values, props.Options{}).Next)
	n.Changed = true
	nodes[i] = n
	return true
}

// readStringList decodes ordered_link_ids, stored as an array, a JSON array
// string or a single value.
func readStringList(v interface{}) []string {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := props.FirstValue(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var decoded []interface{}
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return readStringList(decoded)
			}
		}
		return []string{trimmed}
	case nil:
		return nil
	}
	if s := props.FirstValue(v); s != "" {
		return []string{s}
	}
	return nil
}
