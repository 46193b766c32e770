package player

import (
	"slices"
	"strings"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// ============================================
// Navigation conditions
// ============================================

// DefaultConditionAlpha is the opacity percent of a dimmed conditioned link
// when the node sets none.
const DefaultConditionAlpha = 40

// ConditionMode tells how a conditioned link is rendered.
type ConditionMode string

const (
	ConditionHide ConditionMode = "hide"
	ConditionDim  ConditionMode = "dim"
)

// ConditionInput is the input of IsLinkConditioned. LinkProps may be a JSON
// string or a record; Target may be nil.
type ConditionInput struct {
	LinkProps interface{}
	Target    *adventure.Node
	Visited   map[int]bool
}

// IsLinkConditioned reports whether a link is gated by visit conditions:
// some required node not yet visited, every forbidden node visited, or a
// visited target that hides itself once visited. Malformed props count as
// no conditions.
func IsLinkConditioned(in ConditionInput) bool {
	rec := props.Parse(in.LinkProps)

	positive := readNodeIDs(rec, props.PositiveNodesKeys)
	if len(positive) > 0 && slices.ContainsFunc(positive, func(id int) bool { return !in.Visited[id] }) {
		return true
	}
	negative := readNodeIDs(rec, props.NegativeNodesKeys)
	if len(negative) > 0 && !slices.ContainsFunc(negative, func(id int) bool { return !in.Visited[id] }) {
		return true
	}

	if in.Target == nil || !in.Visited[in.Target.NodeID] {
		return false
	}
	return slices.Contains(props.NodeConditionTokens(targetProps(*in.Target)), "hide_visited")
}

func readNodeIDs(rec props.Record, keys []string) []int {
	v, ok := props.ReadRaw(rec, keys...)
	if !ok {
		return nil
	}
	return props.ParseNodeIDList(v)
}

// targetProps merges the raw bag over the structured view of a node.
func targetProps(n adventure.Node) props.Record {
	structured := props.Record{}
	if p := n.Props; p != nil {
		if p.AudioURL != "" {
			structured["audio_url"] = p.AudioURL
		}
		if p.AudioURLAlt != "" {
			structured["audio_url_alt"] = p.AudioURLAlt
		}
		if p.SubtitlesURL != "" {
			structured["subtitles_url"] = p.SubtitlesURL
		}
		if p.ChapterType != "" {
			structured[props.ChapterTypeKey] = p.ChapterType
		}
	}
	return props.Merge(structured, n.RawProps)
}

// ConditionedStyle is the look of conditioned links on a node. Opacity is a
// 0-1 fraction and is nil when the mode ignores it.
type ConditionedStyle struct {
	Mode            ConditionMode `json:"mode"`
	Opacity         *float64      `json:"opacity,omitempty"`
	BackgroundColor string        `json:"backgroundColor,omitempty"`
}

// StyleOptions tune ResolveConditionedStyle. A zero DefaultOpacity means
// DefaultConditionAlpha.
type StyleOptions struct {
	DefaultOpacity float64
	ModeOverride   ConditionMode
}

// ResolveConditionedStyle reads the node settings that style its conditioned
// links: type_nodeconditions (hide, dim, transparency), alpha_nodeconditions
// and color_nodeconditions.
func ResolveConditionedStyle(nodeProps interface{}, opts StyleOptions) ConditionedStyle {
	rec := props.Parse(nodeProps)

	var typeToken string
	if v, ok := props.ReadRaw(rec, "type_nodeconditions", "typeNodeconditions", "type-nodeconditions"); ok {
		if tokens := props.Tokenize(v); len(tokens) > 0 {
			typeToken = strings.ToLower(tokens[0])
		}
	}

	style := ConditionedStyle{Mode: ConditionDim}
	if strings.Contains(typeToken, "hide") {
		style.Mode = ConditionHide
	}
	if opts.ModeOverride != "" {
		style.Mode = opts.ModeOverride
	}

	fallback := opts.DefaultOpacity
	if fallback == 0 {
		fallback = DefaultConditionAlpha
	}
	if strings.Contains(typeToken, "trans") || typeToken == "" || opts.ModeOverride == ConditionDim {
		raw, _ := props.ReadRaw(rec, "alpha_nodeconditions", "alphaNodeconditions", "alpha-nodeconditions")
		opacity := props.AlphaPercent(raw, fallback) / 100
		style.Opacity = &opacity
	}
	if v, ok := props.ReadRaw(rec, "color_nodeconditions", "colorNodeconditions", "color-nodeconditions"); ok {
		style.BackgroundColor, _ = props.FirstString(v)
	}
	return style
}

// ResolveLinkConditionBehaviorOverride returns the per-link conditionBehavior
// setting, or "" when the link follows the node style.
func ResolveLinkConditionBehaviorOverride(linkProps interface{}) ConditionMode {
	rec := props.Parse(linkProps)
	v, ok := props.ReadRaw(rec, "conditionBehavior", "condition_behavior", "condition-behavior")
	if !ok {
		return ""
	}
	token, _ := props.FirstString(v)
	switch strings.ToLower(token) {
	case "hide":
		return ConditionHide
	case "dim", "transparency":
		return ConditionDim
	}
	return ""
}
