package player

import (
	"fmt"
	"slices"
	"strings"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// SelfLinkID is the id of the synthetic entry standing for the current node
// in a navigation list.
const SelfLinkID = -1

// NavItem is an entry of a node's navigation list: a link, or the current
// node itself.
type NavItem struct {
	Current bool
	Link    adventure.Link
}

// ID returns the link id of the item, SelfLinkID for the current node.
func (it NavItem) ID() int {
	if it.Current {
		return SelfLinkID
	}
	return it.Link.LinkID
}

// NavigationLinks returns the links a player can take from nodeID: links
// starting there and bidirectional links ending there, in graph order.
func NavigationLinks(nodeID int, links []adventure.Link) []adventure.Link {
	var out []adventure.Link
	for _, l := range links {
		if l.Source == nodeID || (l.IsBidirectional() && l.Target == nodeID) {
			out = append(out, l)
		}
	}
	return out
}

// OrderItems puts the items named by order first, in that order, followed
// by the rest in their original order. Ids in order that match no item are
// skipped.
func OrderItems(items []NavItem, order []int) []NavItem {
	if len(order) == 0 {
		return items
	}
	out := make([]NavItem, 0, len(items))
	used := map[int]bool{}
	for _, id := range order {
		if used[id] {
			continue
		}
		if i := slices.IndexFunc(items, func(it NavItem) bool { return it.ID() == id }); i >= 0 {
			out = append(out, items[i])
			used[id] = true
		}
	}
	for _, it := range items {
		if !used[it.ID()] {
			out = append(out, it)
		}
	}
	return out
}

// OutgoingLinks returns the ordered navigation list of node. With
// includeSelf a SelfLinkID entry for the node itself is added before
// ordering, so ordered_link_ids may place it.
func OutgoingLinks(node adventure.Node, links []adventure.Link, includeSelf bool) []NavItem {
	var items []NavItem
	for _, l := range NavigationLinks(node.NodeID, links) {
		items = append(items, NavItem{Link: l})
	}
	if includeSelf {
		items = append(items, NavItem{Current: true})
	}
	return OrderItems(items, props.OrderedLinkIDs(node.RawProps))
}

// ============================================
// Navigation config
// ============================================

// NavStyle is how choices are laid out.
type NavStyle string

const (
	NavDefault         NavStyle = "default"
	NavRight           NavStyle = "right"
	NavLeftRight       NavStyle = "leftright"
	NavNoButtons       NavStyle = "noButtons"
	NavSwipe           NavStyle = "swipe"
	NavSwipeWithButton NavStyle = "swipeWithButton"
	NavScrollytell     NavStyle = "scrollytell"
)

// NavPlacement is where the choices are shown.
type NavPlacement string

const (
	PlaceInline NavPlacement = "inline"
	PlaceBottom NavPlacement = "bottom"
)

// NavigationConfig is the navigation setup of one node.
type NavigationConfig struct {
	Style       NavStyle     `json:"style"`
	Placement   NavPlacement `json:"placement"`
	ShowCurrent bool         `json:"showCurrent"`
	OrderedIDs  []int        `json:"orderedIds"`
	// SkipCount is the number of leading entries the layout renders itself.
	SkipCount   int  `json:"skipCount"`
	HideVisited bool `json:"hideVisited"`
	SwipeMode   bool `json:"swipeMode"`
}

// NavigationOverrides replace node settings, e.g. from player preferences.
type NavigationOverrides struct {
	Style       NavStyle
	Bottom      bool
	ShowCurrent *bool
	HideVisited bool
}

// NormalizeNavStyle maps the spellings found in content to a NavStyle. It
// returns "" for a missing value and NavDefault for unknown ones.
func NormalizeNavStyle(v interface{}) NavStyle {
	var raw string
	if s, ok := v.(string); ok {
		raw = s
	} else {
		raw, _ = props.FirstString(v)
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ""
	case "right":
		return NavRight
	case "leftright", "left-right", "left_right":
		return NavLeftRight
	case "nobuttons", "no-buttons", "no":
		return NavNoButtons
	case "swipewithbutton", "swipe-with-button":
		return NavSwipeWithButton
	case "swipe":
		return NavSwipe
	case "scrollytell", "scrolly", "scroll-tell", "scrolly-tell", "scrollytelling":
		return NavScrollytell
	}
	return NavDefault
}

// BuildNavigationConfig reads the navigation settings of a node.
func BuildNavigationConfig(raw props.Record, o NavigationOverrides) NavigationConfig {
	settingsValue, _ := props.ReadRaw(raw, "playerNavigation.settings", "playerNavigationSettings")
	var settings []string
	for _, t := range props.Tokenize(settingsValue) {
		settings = append(settings, strings.ToLower(t))
	}

	styleValue, _ := props.ReadRaw(raw, "background.navigation_style", "navigation_style", "backgroundNavigationStyle")
	style := o.Style
	if style == "" {
		style = NormalizeNavStyle(styleValue)
	}
	if style == "" {
		style = NavDefault
	}

	cfg := NavigationConfig{
		Style:       style,
		Placement:   PlaceInline,
		ShowCurrent: slices.Contains(settings, "show-current-node"),
		OrderedIDs:  props.OrderedLinkIDs(raw),
		HideVisited: o.HideVisited || slices.Contains(settings, "hide-visited"),
		SwipeMode:   style == NavSwipe || style == NavSwipeWithButton,
	}
	if o.Bottom || slices.Contains(settings, "bottom-navigation") {
		cfg.Placement = PlaceBottom
	}
	if o.ShowCurrent != nil {
		cfg.ShowCurrent = *o.ShowCurrent
	}
	switch style {
	case NavDefault, NavSwipeWithButton, NavScrollytell:
		cfg.SkipCount = 0
	default:
		cfg.SkipCount = 1
	}
	return cfg
}

// ============================================
// Navigation model
// ============================================

// Button is one rendered choice.
type Button struct {
	Key             string            `json:"key"`
	Label           string            `json:"label"`
	LinkID          int               `json:"linkId"`
	TargetNodeID    int               `json:"targetNodeId"`
	Current         bool              `json:"isCurrent,omitempty"`
	Broken          bool              `json:"isBroken,omitempty"`
	Conditioned     bool              `json:"isConditioned,omitempty"`
	ConditionedMode ConditionMode     `json:"conditionedMode,omitempty"`
	Style           *ConditionedStyle `json:"style,omitempty"`
}

// NavigationModel is what the player shows below a node. PrimaryLinkID is
// the first usable choice, used by layouts without buttons; it is nil when
// there is none.
type NavigationModel struct {
	Config        NavigationConfig `json:"config"`
	Buttons       []Button         `json:"buttons"`
	PrimaryLinkID *int             `json:"primaryLinkId,omitempty"`
}

// LinkLabel returns the caption of a link seen from current.
func LinkLabel(l adventure.Link, current int) string {
	if current != NoNode && l.IsBidirectional() && l.Target == current {
		return strings.TrimSpace(l.SourceTitle)
	}
	if t := strings.TrimSpace(l.TargetTitle); t != "" {
		return t
	}
	return strings.TrimSpace(l.SourceTitle)
}

type linkInfo struct {
	targetID    int
	target      adventure.Node
	hasTarget   bool
	conditioned bool
	override    ConditionMode
}

// BuildNavigation builds the choices of nodeID from ctx. Hidden links are
// left out; dimmed conditioned links carry the node's conditioned style.
func BuildNavigation(nodeID int, links []adventure.Link, ctx *Context, o NavigationOverrides) NavigationModel {
	node, ok := ctx.node(nodeID)
	if !ok {
		return NavigationModel{Config: BuildNavigationConfig(nil, o), Buttons: []Button{}}
	}
	cfg := BuildNavigationConfig(node.RawProps, o)

	nodeStyle := ResolveConditionedStyle(node.RawProps, StyleOptions{})
	dimStyle := nodeStyle
	if nodeStyle.Mode != ConditionDim {
		dimStyle = ResolveConditionedStyle(node.RawProps, StyleOptions{ModeOverride: ConditionDim})
	}

	infos := map[int]linkInfo{}
	info := func(l adventure.Link) linkInfo {
		if li, ok := infos[l.LinkID]; ok {
			return li
		}
		li := linkInfo{targetID: DestinationOf(l, nodeID)}
		li.target, li.hasTarget = ctx.node(li.targetID)
		var target *adventure.Node
		if li.hasTarget {
			target = &li.target
		}
		li.conditioned = IsLinkConditioned(ConditionInput{LinkProps: l.Props, Target: target, Visited: ctx.Visited})
		li.override = ResolveLinkConditionBehaviorOverride(l.Props)
		infos[l.LinkID] = li
		return li
	}
	modeOf := func(li linkInfo) ConditionMode {
		if !li.conditioned {
			return ""
		}
		if li.override != "" {
			return li.override
		}
		return nodeStyle.Mode
	}
	hidden := func(l adventure.Link) bool {
		li := info(l)
		if cfg.HideVisited && ctx.Visited[li.targetID] {
			return true
		}
		return modeOf(li) == ConditionHide
	}

	items := make([]NavItem, 0)
	for _, l := range NavigationLinks(nodeID, links) {
		items = append(items, NavItem{Link: l})
	}
	if cfg.ShowCurrent {
		items = append(items, NavItem{Current: true})
	}
	items = OrderItems(items, cfg.OrderedIDs)

	model := NavigationModel{Config: cfg, Buttons: []Button{}}
	for _, it := range items {
		if it.Current || hidden(it.Link) || !info(it.Link).hasTarget {
			continue
		}
		id := it.Link.LinkID
		model.PrimaryLinkID = &id
		break
	}
	if cfg.Style == NavNoButtons {
		return model
	}

	skip := cfg.SkipCount
	for _, it := range items {
		if skip > 0 {
			skip--
			continue
		}
		if it.Current {
			label := node.Title
			if label == "" {
				label = "Current node"
			}
			model.Buttons = append(model.Buttons, Button{Key: "current", Label: label, LinkID: SelfLinkID, TargetNodeID: nodeID, Current: true})
			continue
		}
		if hidden(it.Link) {
			continue
		}
		li := info(it.Link)
		label := LinkLabel(it.Link, nodeID)
		if label == "" && li.hasTarget {
			label = li.target.Title
		}
		if label == "" {
			label = fmt.Sprintf("Continue %d", len(model.Buttons)+1)
		}
		b := Button{
			Key:             fmt.Sprint(it.Link.LinkID),
			Label:           label,
			LinkID:          it.Link.LinkID,
			TargetNodeID:    li.targetID,
			Broken:          !li.hasTarget,
			Conditioned:     li.conditioned,
			ConditionedMode: modeOf(li),
		}
		if b.ConditionedMode == ConditionDim {
			s := dimStyle
			b.Style = &s
		}
		model.Buttons = append(model.Buttons, b)
	}
	return model
}
