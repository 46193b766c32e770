package editor

import (
	"maps"
	"slices"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// ============================================
// Node props
// ============================================

// applyNodeProps runs update over a node's raw props. When one of paths is
// the chapter type selector the start designation is kept unique: promoting
// a node to start demotes the previous start node in the same undo step.
func (s *Session) applyNodeProps(nodeID int, update props.Updater, paths ...string) bool {
	return s.mutate(func() bool {
		i := adventure.FindNode(s.adv.Nodes, nodeID)
		if i < 0 {
			return false
		}
		n := s.adv.Nodes[i]
		raw := n.RawProps
		if raw == nil {
			raw = props.Record{}
		}
		r := update(raw)
		if !r.Changed {
			return false
		}
		nodes := slices.Clone(s.adv.Nodes)
		n = n.WithRawProps(r.Next)
		n.Changed = true
		nodes[i] = n

		if slices.ContainsFunc(paths, props.IsChapterTypeKey) {
			enforceSingleRoot(nodes, i)
		}
		s.setGraph(nodes, s.adv.Links)
		return true
	})
}

// enforceSingleRoot aligns nodes[i].Type with its chapter type and, when
// nodes[i] is the start node, demotes every other start node.
func enforceSingleRoot(nodes []adventure.Node, i int) {
	if nodes[i].ChapterType() != props.ChapterStart {
		if nodes[i].Type == adventure.NodeTypeRoot {
			nodes[i].Type = adventure.NodeTypeDefault
		}
		return
	}
	nodes[i].Type = adventure.NodeTypeRoot
	for j := range nodes {
		if j == i {
			continue
		}
		if nodes[j].Type != adventure.NodeTypeRoot && nodes[j].ChapterType() != props.ChapterStart {
			continue
		}
		nodes[j] = asNonRoot(nodes[j])
		nodes[j].Changed = true
	}
}

// clearChapterType resets every chapter type spelling to the default ("").
func clearChapterType(raw props.Record) props.Record {
	for _, key := range props.ChapterTypeKeys {
		if _, ok := raw[key]; ok {
			raw = props.SetStringArraySelect(raw, key, "", props.Options{}).Next
		}
	}
	return raw
}

// UpdateNodeProps writes several prop paths on a node.
func (s *Session) UpdateNodeProps(nodeID int, updates map[string]interface{}, opts props.Options) bool {
	if len(updates) == 0 {
		return false
	}
	return s.applyNodeProps(nodeID, func(r props.Record) props.Result {
		return props.ApplyUpdates(r, updates, opts)
	}, slices.Collect(maps.Keys(updates))...)
}

// SetNodePropPath writes one prop path on a node; with RemoveIfEmpty an empty
// value removes the path.
func (s *Session) SetNodePropPath(nodeID int, path string, value interface{}, opts props.Options) bool {
	return s.applyNodeProps(nodeID, func(r props.Record) props.Result {
		return props.SetAny(r, path, value, opts)
	}, path)
}

// SetNodePropStringArraySelect writes a single-choice select prop on a node.
func (s *Session) SetNodePropStringArraySelect(nodeID int, path, selected string, opts props.Options) bool {
	return s.applyNodeProps(nodeID, func(r props.Record) props.Result {
		return props.SetStringArraySelect(r, path, selected, opts)
	}, path)
}

// SetNodePropMultiSelect writes a multi-choice select prop on a node.
func (s *Session) SetNodePropMultiSelect(nodeID int, path string, values []string, opts props.Options) bool {
	return s.applyNodeProps(nodeID, func(r props.Record) props.Result {
		return props.SetMultiSelect(r, path, values, opts)
	}, path)
}

// SetNodesPropStringArraySelect applies the same select value to several
// nodes as one undo step. Used for bulk edits of a multi-selection.
func (s *Session) SetNodesPropStringArraySelect(nodeIDs []int, path, selected string, opts props.Options) bool {
	return s.mutate(func() bool {
		nodes := slices.Clone(s.adv.Nodes)
		changed := false
		promoted := -1
		for _, id := range normalizeIDs(nodeIDs) {
			i := adventure.FindNode(nodes, id)
			if i < 0 {
				continue
			}
			raw := nodes[i].RawProps
			if raw == nil {
				raw = props.Record{}
			}
			r := props.SetStringArraySelect(raw, path, selected, opts)
			if !r.Changed {
				continue
			}
			nodes[i] = nodes[i].WithRawProps(r.Next)
			nodes[i].Changed = true
			changed = true
			if props.IsChapterTypeKey(path) {
				if nodes[i].ChapterType() == props.ChapterStart {
					promoted = i
				} else {
					enforceSingleRoot(nodes, i)
				}
			}
		}
		if !changed {
			return false
		}
		if promoted >= 0 {
			// Only the last promoted node keeps the start designation.
			enforceSingleRoot(nodes, promoted)
		}
		s.setGraph(nodes, s.adv.Links)
		return true
	})
}

// ============================================
// Link props
// ============================================

func (s *Session) applyLinkProps(linkID int, update props.Updater) bool {
	return s.editLink(linkID, func(l *adventure.Link) bool {
		raw := l.Props
		if raw == nil {
			raw = props.Record{}
		}
		r := update(raw)
		if !r.Changed {
			return false
		}
		l.Props = r.Next
		return true
	})
}

// UpdateLinkProps writes several prop paths on a link, e.g. its conditions.
func (s *Session) UpdateLinkProps(linkID int, updates map[string]interface{}, opts props.Options) bool {
	if len(updates) == 0 {
		return false
	}
	return s.applyLinkProps(linkID, func(r props.Record) props.Result {
		return props.ApplyUpdates(r, updates, opts)
	})
}

// SetLinkPropPath writes one prop path on a link.
func (s *Session) SetLinkPropPath(linkID int, path string, value interface{}, opts props.Options) bool {
	return s.applyLinkProps(linkID, func(r props.Record) props.Result {
		return props.SetAny(r, path, value, opts)
	})
}
