// Package player decides what happens while an adventure is played: which
// links are visible, where a click leads and how special nodes resolve.
// Every function is pure over a Context snapshot.
package player

import (
	"math/rand/v2"
	"net/url"
	"regexp"
	"strings"

	"adventure-editor/adventure"
	"adventure-editor/props"
)

// NodeKind is the playback behavior of a node.
type NodeKind string

const (
	KindRoot         NodeKind = "root"
	KindRandom       NodeKind = "random"
	KindReference    NodeKind = "reference"
	KindReferenceTab NodeKind = "reference-tab"
	KindVideo        NodeKind = "video"
	KindChapter      NodeKind = "chapter"
	KindDefault      NodeKind = "default"
	KindUnknown      NodeKind = "unknown"
)

// NoNode marks a Context without a current node.
const NoNode = -1

// EngineError is a content problem shown to the player.
type EngineError struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Context is the graph snapshot decisions run against.
type Context struct {
	Nodes         map[int]adventure.Node
	LinksBySource map[int][]adventure.Link
	LinksByID     map[int]adventure.Link
	Visited       map[int]bool
	// CurrentNodeID is the node the player stands on, or NoNode. It decides
	// the direction a bidirectional link is followed in.
	CurrentNodeID int
	// Rand drives random nodes; nil uses the global source.
	Rand *rand.Rand
}

// NewContext builds a Context over idx. visited may be nil.
func NewContext(idx adventure.Index, visited map[int]bool) *Context {
	if visited == nil {
		visited = map[int]bool{}
	}
	return &Context{
		Nodes:         idx.Nodes,
		LinksBySource: idx.LinksBySource,
		LinksByID:     idx.LinksByID,
		Visited:       visited,
		CurrentNodeID: NoNode,
	}
}

func (c *Context) intn(n int) int {
	if c.Rand != nil {
		return c.Rand.IntN(n)
	}
	return rand.IntN(n)
}

func (c *Context) node(id int) (adventure.Node, bool) {
	n, ok := c.Nodes[id]
	return n, ok
}

// ResolveNodeKind classifies a node by its chapter type, falling back to its
// node type.
func ResolveNodeKind(n *adventure.Node) NodeKind {
	if n == nil {
		return KindUnknown
	}
	key := props.ChapterType(n.RawProps)
	if key == "" {
		key = n.Type
	}
	key = strings.ToLower(strings.TrimSpace(key))
	switch {
	case key == "root" || key == props.ChapterStart:
		return KindRoot
	case key == "random" || key == props.ChapterRandom:
		return KindRandom
	case key == props.ChapterReferenceTb || key == "reference-tab":
		return KindReferenceTab
	case strings.HasPrefix(key, props.ChapterReference) || key == "reference":
		return KindReference
	case strings.Contains(key, "video"):
		return KindVideo
	case strings.Contains(key, "chapter"):
		return KindChapter
	case key != "":
		return KindDefault
	}
	return KindUnknown
}

// ============================================
// Click decisions
// ============================================

// ClickType is the outcome of following a link.
type ClickType string

const (
	ClickMove          ClickType = "move"
	ClickOpenReference ClickType = "open-reference"
	ClickError         ClickType = "error"
)

// ClickDecision is the result of DecideOnClick. NodeID and LinkID are set
// for moves, URL, OpenInNewTab and TargetNodeID for references.
type ClickDecision struct {
	Type         ClickType    `json:"type"`
	NodeID       int          `json:"nodeId"`
	LinkID       int          `json:"linkId"`
	URL          string       `json:"url,omitempty"`
	OpenInNewTab bool         `json:"openInNewTab"`
	TargetNodeID int          `json:"targetNodeId"`
	Error        *EngineError `json:"error,omitempty"`
}

func clickError(title, description string) ClickDecision {
	return ClickDecision{Type: ClickError, Error: &EngineError{Title: title, Description: description}}
}

// DestinationOf returns the node a link leads to from current. A
// bidirectional link entered from its target side leads back to its source.
func DestinationOf(l adventure.Link, current int) int {
	if current != NoNode && l.IsBidirectional() && l.Target == current && l.Source != current {
		return l.Source
	}
	return l.Target
}

// DecideOnClick resolves a click on linkID. Reference nodes open their URL
// instead of being entered.
func DecideOnClick(linkID int, ctx *Context) ClickDecision {
	link, ok := ctx.LinksByID[linkID]
	if !ok {
		return clickError("Broken link", "This choice is missing.")
	}
	targetID := DestinationOf(link, ctx.CurrentNodeID)
	target, ok := ctx.node(targetID)
	if !ok {
		return clickError("Broken link", "The target node is missing.")
	}

	chapter := strings.ToLower(target.ChapterType())
	if strings.HasPrefix(chapter, props.ChapterReference) {
		u := ResolveReferenceURL(&target)
		if u == "" {
			return clickError("Missing link", "This reference has no valid web address.")
		}
		return ClickDecision{
			Type:         ClickOpenReference,
			URL:          u,
			OpenInNewTab: strings.HasSuffix(chapter, "-tab"),
			TargetNodeID: target.NodeID,
		}
	}
	return ClickDecision{Type: ClickMove, NodeID: target.NodeID, LinkID: link.LinkID}
}

// ============================================
// Enter decisions
// ============================================

// EnterType is the outcome of landing on a node.
type EnterType string

const (
	EnterShow  EnterType = "show"
	EnterAuto  EnterType = "auto"
	EnterError EnterType = "error"
)

// EnterDecision is the result of DecideOnEnterNode. Auto decisions carry the
// link and node the player is forwarded to.
type EnterDecision struct {
	Type         EnterType    `json:"type"`
	NodeID       int          `json:"nodeId"`
	NodeKind     NodeKind     `json:"nodeKind,omitempty"`
	ViaLinkID    int          `json:"viaLinkId"`
	TargetNodeID int          `json:"targetNodeId"`
	Warning      bool         `json:"warning,omitempty"`
	Error        *EngineError `json:"error,omitempty"`
}

// DecideOnEnterNode resolves landing on nodeID. Random nodes forward to one
// of their targets, every other node is shown.
func DecideOnEnterNode(nodeID int, ctx *Context) EnterDecision {
	node, ok := ctx.node(nodeID)
	if !ok {
		return EnterDecision{
			Type:   EnterError,
			NodeID: nodeID,
			Error:  &EngineError{Title: "Missing node", Description: "The requested node does not exist."},
		}
	}
	kind := ResolveNodeKind(&node)
	if kind != KindRandom {
		return EnterDecision{Type: EnterShow, NodeID: nodeID, NodeKind: kind}
	}

	choice, err := SelectRandomNode(nodeID, ctx)
	if err != nil {
		d := EnterDecision{Type: EnterError, NodeID: nodeID, NodeKind: kind, Error: err}
		if choice.Chained {
			d.Warning = true
			d.ViaLinkID, d.TargetNodeID = choice.Link.LinkID, choice.Target.NodeID
		}
		return d
	}
	return EnterDecision{
		Type:         EnterAuto,
		NodeID:       nodeID,
		NodeKind:     kind,
		ViaLinkID:    choice.Link.LinkID,
		TargetNodeID: choice.Target.NodeID,
	}
}

// RandomChoice is the link a random node forwards through.
type RandomChoice struct {
	Link   adventure.Link
	Target adventure.Node
	// Chained is set when the chosen target is itself a random node. The
	// choice is reported, never resolved further.
	Chained bool
}

// SelectRandomNode picks a target of the random node nodeID. Unvisited
// targets are preferred; once every target is visited all of them are
// candidates again. Self links are ignored.
func SelectRandomNode(nodeID int, ctx *Context) (RandomChoice, *EngineError) {
	type candidate struct {
		link   adventure.Link
		target adventure.Node
	}
	var pool, unvisited []candidate
	for _, l := range ctx.LinksBySource[nodeID] {
		if l.Target == nodeID {
			continue
		}
		target, ok := ctx.node(l.Target)
		if !ok {
			continue
		}
		c := candidate{link: l, target: target}
		pool = append(pool, c)
		if !ctx.Visited[l.Target] {
			unvisited = append(unvisited, c)
		}
	}
	if len(pool) == 0 {
		return RandomChoice{}, &EngineError{
			Title:       "Random node error",
			Description: "No valid outgoing targets from this random node.",
		}
	}
	candidates := pool
	if len(unvisited) > 0 {
		candidates = unvisited
	}
	picked := candidates[ctx.intn(len(candidates))]
	choice := RandomChoice{Link: picked.link, Target: picked.target}
	if ResolveNodeKind(&picked.target) == KindRandom {
		choice.Chained = true
		return choice, &EngineError{
			Title:       "Random node error",
			Description: "A random node cannot lead to another random node.",
		}
	}
	return choice, nil
}

// ============================================
// Media and references
// ============================================

var (
	httpURLPattern = regexp.MustCompile(`(?i)https?://[^\s<>"']+`)
	urlTailPattern = regexp.MustCompile(`["'>),\s]+$`)
	videoExtension = ".mp4"
)

func cleanURL(raw string) string {
	return urlTailPattern.ReplaceAllString(raw, "")
}

func isAllowedURL(raw string) bool {
	if raw == "" {
		return false
	}
	if strings.HasPrefix(raw, "/") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func firstHTTPURL(text string) string {
	return cleanURL(httpURLPattern.FindString(text))
}

// ResolveReferenceURL returns the first http(s) URL in the node text, or ""
// when there is none.
func ResolveReferenceURL(n *adventure.Node) string {
	if n == nil {
		return ""
	}
	if u := firstHTTPURL(n.Text); isAllowedURL(u) {
		return u
	}
	return ""
}

// ResolveVideoSource returns the mp4 a video node plays: its image URL when
// that is a video, otherwise the first video URL in its text.
func ResolveVideoSource(n *adventure.Node) string {
	if n == nil {
		return ""
	}
	if u := cleanURL(n.Image.URL); isAllowedURL(u) && strings.Contains(strings.ToLower(u), videoExtension) {
		return u
	}
	if u := firstHTTPURL(n.Text); isAllowedURL(u) && strings.Contains(strings.ToLower(u), videoExtension) {
		return u
	}
	return ""
}
