package adventure

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"adventure-editor/props"
)

// ============================================
// model -> DTO
// ============================================

// DefaultMenuOptions are the player menu entries enabled when an adventure
// does not choose its own.
var DefaultMenuOptions = []string{"back", "home", "menu", "sound"}

// MenuShortcutSlots is the fixed number of menu shortcut entries.
const MenuShortcutSlots = 9

var menuOptionKeys = []string{"menu_option", "menu_options", "menuOption", "menuOptions"}

func roundInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}

// BuildNodeDTO converts a node to its wire shape. Positions are rounded and
// props are serialized from the raw bag.
func BuildNodeDTO(n Node) NodeDTO {
	return NodeDTO{
		ID:              FlexInt(n.ID),
		NodeID:          FlexInt(n.NodeID),
		Title:           n.Title,
		Icon:            n.Icon,
		Text:            n.Text,
		X:               FlexFloat(roundInt(n.Position.X)),
		Y:               FlexFloat(roundInt(n.Position.Y)),
		ImageURL:        n.Image.URL,
		ImageID:         FlexInt(n.Image.ID),
		ImageLayoutType: n.Image.LayoutType,
		Type:            n.Type,
		Changed:         n.Changed,
		Props:           PropsString(nodePropsString(n)),
	}
}

// nodePropsString serializes the raw bag, falling back to the structured
// view when a node has no raw props.
func nodePropsString(n Node) string {
	if n.RawProps != nil {
		return props.Serialize(n.RawProps)
	}
	if n.Props == nil {
		return ""
	}
	rec := props.Record{}
	if n.Props.AudioURL != "" {
		rec["audio_url"] = n.Props.AudioURL
	}
	if n.Props.AudioURLAlt != "" {
		rec["audio_url_alt"] = n.Props.AudioURLAlt
	}
	if n.Props.SubtitlesURL != "" {
		rec["subtitles_url"] = n.Props.SubtitlesURL
	}
	if n.Props.ChapterType != "" {
		rec[props.ChapterTypeKey] = []interface{}{n.Props.ChapterType}
	}
	return props.Serialize(rec)
}

// BuildLinkDTO converts a link to its wire shape.
func BuildLinkDTO(l Link) LinkDTO {
	return LinkDTO{
		ID:          FlexInt(l.ID),
		LinkID:      FlexInt(l.LinkID),
		Source:      FlexInt(l.Source),
		SourceTitle: l.SourceTitle,
		Target:      FlexInt(l.Target),
		TargetTitle: l.TargetTitle,
		Type:        l.Type,
		Changed:     l.Changed,
		Props:       PropsString(props.SerializeOrEmpty(l.Props)),
	}
}

// BuildAdventureDTO converts an adventure to its wire shape for saving.
// editVersion is the optimistic concurrency token sent with the save.
func BuildAdventureDTO(a Adventure, editVersion int) AdventureDTO {
	dto := AdventureDTO{
		ID:          FlexInt(a.ID),
		Title:       a.Title,
		Description: a.Description,
		Slug:        a.Slug,
		ViewSlug:    a.ViewSlug,
		Locked:      a.Locked,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		Nodes:       make([]NodeDTO, 0, len(a.Nodes)),
		Links:       make([]LinkDTO, 0, len(a.Links)),
		ImageID:     FlexInt(a.ImageID),
		CoverURL:    a.CoverURL,
		EditVersion: FlexInt(editVersion),
		ViewCount:   FlexInt(a.ViewCount),
		Props:       PropsString(props.SerializeOrEmpty(NormalizeAdventureProps(a))),
		Users:       make([]UserDTO, 0, len(a.Users)),
	}
	if a.Category != nil {
		dto.Category = &CategoryDTO{
			ID:          FlexInt(a.Category.ID),
			SortOrder:   FlexInt(a.Category.SortOrder),
			Title:       a.Category.Title,
			Description: a.Category.Description,
			Icon:        a.Category.Icon,
			Image:       a.Category.Image,
		}
	}
	for _, n := range a.Nodes {
		dto.Nodes = append(dto.Nodes, BuildNodeDTO(n))
	}
	for _, l := range a.Links {
		dto.Links = append(dto.Links, BuildLinkDTO(l))
	}
	for _, u := range a.Users {
		dto.Users = append(dto.Users, UserDTO{
			ID:        FlexInt(u.ID),
			Username:  u.Username,
			Name:      u.Name,
			Role:      FlexInt(u.Role),
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		})
	}
	return dto
}

// NormalizeAdventureProps returns the adventure props as they are saved:
// the raw bag plus font_list, menu_option and menu_shortcuts in canonical
// form. It returns nil when the adventure has no props at all.
func NormalizeAdventureProps(a Adventure) props.Record {
	if a.RawProps == nil && a.Props == nil {
		return nil
	}
	rec := props.Record{}
	for k, v := range a.RawProps {
		rec[k] = v
	}
	if a.Props != nil && len(a.Props.FontList) > 0 {
		if _, ok := rec["font_list"].([]interface{}); !ok {
			fonts := make([]interface{}, len(a.Props.FontList))
			for i, f := range a.Props.FontList {
				fonts[i] = f
			}
			rec["font_list"] = fonts
		}
	}
	rec["menu_option"] = normalizeMenuOptions(rec)
	rec["menu_shortcuts"] = normalizeMenuShortcuts(rec)
	return rec
}

func normalizeMenuOptions(rec props.Record) []interface{} {
	var (
		value  interface{}
		hasKey bool
	)
	for _, key := range menuOptionKeys {
		if v, ok := rec[key]; ok {
			value, hasKey = v, true
			break
		}
	}
	if !hasKey {
		return toInterfaces(DefaultMenuOptions)
	}

	var chosen []string
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				chosen = append(chosen, s)
			}
		}
	case string:
		trimmed := strings.TrimSpace(v)
		switch trimmed {
		case "":
		case "all":
			chosen = DefaultMenuOptions
		default:
			chosen = []string{trimmed}
		}
	}

	out := []interface{}{}
	for _, opt := range DefaultMenuOptions {
		for _, c := range chosen {
			if c == opt {
				out = append(out, opt)
				break
			}
		}
	}
	return out
}

func normalizeMenuShortcuts(rec props.Record) []interface{} {
	var value interface{}
	if v, ok := rec["menu_shortcuts"]; ok {
		value = v
	} else if v, ok := rec["menuShortcuts"]; ok {
		value = v
	}

	var list []interface{}
	switch v := value.(type) {
	case []interface{}:
		list = v
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
				list = nil
			}
		} else if trimmed != "" {
			list = []interface{}{trimmed}
		}
	}

	out := make([]interface{}, MenuShortcutSlots)
	for i := range out {
		entry := props.Record{}
		if i < len(list) {
			if src, ok := list[i].(map[string]interface{}); ok {
				for k, v := range src {
					entry[k] = v
				}
			}
		}
		entry["nodeId"] = shortcutNodeID(entry)
		if s, ok := entry["text"].(string); ok {
			entry["text"] = s
		} else {
			entry["text"] = ""
		}
		out[i] = entry
	}
	return out
}

func shortcutNodeID(entry props.Record) string {
	for _, key := range []string{"nodeId", "node_id", "nodeID", "nodeid"} {
		raw, ok := entry[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return ""
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		case string:
			return strings.TrimPrefix(strings.TrimSpace(v), "#")
		}
		return ""
	}
	return ""
}

func toInterfaces(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// ============================================
// Server id reconciliation
// ============================================

// MergeServerIDs adopts the storage ids assigned by the server in saved for
// nodes and links of current, matched by their logical ids. It also takes
// the server's updatedAt, viewCount and locked. The second result is false
// when nothing changed and current is returned as is.
func MergeServerIDs(current, saved Adventure) (Adventure, bool) {
	nodeIDs := make(map[int]int, len(saved.Nodes))
	for _, n := range saved.Nodes {
		nodeIDs[n.NodeID] = n.ID
	}
	linkIDs := make(map[int]int, len(saved.Links))
	for _, l := range saved.Links {
		linkIDs[l.LinkID] = l.ID
	}

	var nodes []Node
	for i, n := range current.Nodes {
		if id, ok := nodeIDs[n.NodeID]; ok && id != n.ID {
			if nodes == nil {
				nodes = append([]Node(nil), current.Nodes...)
			}
			nodes[i].ID = id
		}
	}
	var links []Link
	for i, l := range current.Links {
		if id, ok := linkIDs[l.LinkID]; ok && id != l.ID {
			if links == nil {
				links = append([]Link(nil), current.Links...)
			}
			links[i].ID = id
		}
	}

	updatedAt := current.UpdatedAt
	if saved.UpdatedAt != "" {
		updatedAt = saved.UpdatedAt
	}
	metaChanged := updatedAt != current.UpdatedAt ||
		saved.ViewCount != current.ViewCount ||
		saved.Locked != current.Locked

	if nodes == nil && links == nil && !metaChanged {
		return current, false
	}
	next := current
	if nodes != nil {
		next.Nodes = nodes
	}
	if links != nil {
		next.Links = links
	}
	next.UpdatedAt = updatedAt
	next.ViewCount = saved.ViewCount
	next.Locked = saved.Locked
	return next, true
}
