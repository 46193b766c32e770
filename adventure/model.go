// Package adventure holds the adventure graph model, its wire DTOs and the
// mappers between the two.
package adventure

import (
	"adventure-editor/props"
)

// Node types stored in Node.Type. An empty type is "unset".
const (
	NodeTypeRoot    = "root"
	NodeTypeDefault = "default"
)

// Link types.
const (
	LinkTypeDefault       = "default"
	LinkTypeBidirectional = "bidirectional"
)

// Position is a node's location on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Image is the media attached to a node.
type Image struct {
	URL        string `json:"url"`
	ID         int    `json:"id"`
	LayoutType string `json:"layoutType"`
}

// NodeProps is the structured view of a node's raw props: the fields the
// editor and player read directly. It is always derived from Node.RawProps.
type NodeProps struct {
	AudioURL     string `json:"audioUrl,omitempty"`
	AudioURLAlt  string `json:"audioUrlAlt,omitempty"`
	SubtitlesURL string `json:"subtitlesUrl,omitempty"`
	ChapterType  string `json:"chapterType,omitempty"`
}

// Node is a unit of narrative content.
type Node struct {
	ID       int          `json:"id"`
	NodeID   int          `json:"nodeId"`
	Title    string       `json:"title"`
	Text     string       `json:"text"`
	Icon     string       `json:"icon,omitempty"`
	Position Position     `json:"position"`
	Image    Image        `json:"image"`
	Type     string       `json:"type"`
	Changed  bool         `json:"changed"`
	Props    *NodeProps   `json:"props"`
	RawProps props.Record `json:"rawProps"`
}

// Link connects two nodes by their NodeID.
type Link struct {
	ID          int          `json:"id"`
	LinkID      int          `json:"linkId"`
	Source      int          `json:"source"`
	SourceTitle string       `json:"sourceTitle"`
	Target      int          `json:"target"`
	TargetTitle string       `json:"targetTitle"`
	Type        string       `json:"type"`
	Changed     bool         `json:"changed"`
	Props       props.Record `json:"props"`
}

// IsBidirectional reports whether the link can also be followed from Target.
func (l Link) IsBidirectional() bool { return l.Type == LinkTypeBidirectional }

// Connects reports whether the link joins a and b in either direction.
func (l Link) Connects(a, b int) bool {
	return (l.Source == a && l.Target == b) || (l.Source == b && l.Target == a)
}

// Touches reports whether nodeID is one of the link's endpoints.
func (l Link) Touches(nodeID int) bool {
	return l.Source == nodeID || l.Target == nodeID
}

// AdventureProps is the structured view of the adventure-level props.
type AdventureProps struct {
	FontList []string `json:"fontList"`
}

// Category groups adventures in the catalog.
type Category struct {
	ID          int    `json:"id"`
	SortOrder   int    `json:"sortOrder"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Image       string `json:"image"`
}

// User is an author with access to an adventure.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Role      int    `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Adventure is a full narrative graph with its metadata.
type Adventure struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Slug        string          `json:"slug"`
	ViewSlug    string          `json:"viewSlug"`
	Locked      bool            `json:"locked"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
	Category    *Category       `json:"category,omitempty"`
	Nodes       []Node          `json:"nodes"`
	Links       []Link          `json:"links"`
	ImageID     int             `json:"imageId"`
	CoverURL    string          `json:"coverUrl"`
	EditVersion int             `json:"editVersion"`
	ViewCount   int             `json:"viewCount"`
	Props       *AdventureProps `json:"props"`
	RawProps    props.Record    `json:"rawProps"`
	Users       []User          `json:"users"`
}

// DeriveNodeProps projects the structured node fields out of raw. It returns
// nil when none of them is set.
func DeriveNodeProps(raw props.Record) *NodeProps {
	if raw == nil {
		return nil
	}
	np := &NodeProps{
		AudioURL:     props.StringField(raw, props.AudioURLKeys...),
		AudioURLAlt:  props.StringField(raw, props.AudioURLAltKeys...),
		SubtitlesURL: props.StringField(raw, props.SubtitlesURLKeys...),
		ChapterType:  props.ChapterType(raw),
	}
	if *np == (NodeProps{}) {
		return nil
	}
	return np
}

// DeriveAdventureProps projects the font list out of raw.
func DeriveAdventureProps(raw props.Record) *AdventureProps {
	v, ok := props.ReadRaw(raw, props.FontListKeys...)
	if !ok {
		return nil
	}
	fonts := stringEntries(v)
	if len(fonts) == 0 {
		return nil
	}
	return &AdventureProps{FontList: fonts}
}

// WithRawProps returns n with raw as its property bag and the structured view
// recomputed.
func (n Node) WithRawProps(raw props.Record) Node {
	n.RawProps = raw
	n.Props = DeriveNodeProps(raw)
	return n
}

// ChapterType returns the node's chapter type, or "" when unset.
func (n Node) ChapterType() string {
	if n.Props != nil && n.Props.ChapterType != "" {
		return n.Props.ChapterType
	}
	return props.ChapterType(n.RawProps)
}

// WithRawProps returns a with raw as its property bag and the structured view
// recomputed.
func (a Adventure) WithRawProps(raw props.Record) Adventure {
	a.RawProps = raw
	a.Props = DeriveAdventureProps(raw)
	return a
}

func stringEntries(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		if ss, ok := v.([]string); ok {
			return append([]string(nil), ss...)
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
