package props

import "strings"

// Well-known keys. Legacy content spells some of them several ways; the
// first key of each list is the one the editor writes.
var (
	ChapterTypeKeys    = []string{"settings_chapterType", "settings_chaptertype", "chapterType", "chapter_type"}
	OrderedLinkIDsKeys = []string{"ordered_link_ids", "orderedLinkIds", "button_order", "button-order"}
	NodeConditionsKeys = []string{"node_conditions", "nodeConditions", "node-conditions"}
	PositiveNodesKeys  = []string{"positiveNodeList", "positive_node_list", "positiveNodes", "positive_nodes"}
	NegativeNodesKeys  = []string{"negativeNodeList", "negative_node_list", "negativeNodes", "negative_nodes"}
	AudioURLKeys       = []string{"audio_url", "audioUrl"}
	AudioURLAltKeys    = []string{"audio_url_alt", "audioUrlAlt"}
	SubtitlesURLKeys   = []string{"subtitles_url", "subtitlesUrl"}
	FontListKeys       = []string{"font_list", "fontList"}
)

// ChapterTypeKey is the key written when the chapter type changes.
const ChapterTypeKey = "settings_chapterType"

// OrderedLinkIDsKey is the key holding a node's explicit link order.
const OrderedLinkIDsKey = "ordered_link_ids"

// Chapter types with behavior attached.
const (
	ChapterStart       = "start-node"
	ChapterRandom      = "random-node"
	ChapterReference   = "ref-node"
	ChapterReferenceTb = "ref-node-tab"
	ChapterVideoPlayer = "videoplayer-node"
)

// ChapterType returns the node's chapter type, or "" when none is set.
func ChapterType(rec Record) string {
	v, ok := ReadRaw(rec, ChapterTypeKeys...)
	if !ok {
		return ""
	}
	s, _ := FirstString(v)
	return s
}

// IsChapterTypeKey reports whether path addresses the chapter type selector.
func IsChapterTypeKey(path string) bool {
	for _, k := range ChapterTypeKeys {
		if path == k {
			return true
		}
	}
	return false
}

// OrderedLinkIDs returns the explicit link order stored on a node.
func OrderedLinkIDs(rec Record) []int {
	v, ok := ReadRaw(rec, OrderedLinkIDsKeys...)
	if !ok {
		return nil
	}
	return ParseNodeIDList(v)
}

// NodeConditionTokens returns the lowercased node condition tokens.
func NodeConditionTokens(rec Record) []string {
	v, _ := ReadRaw(rec, NodeConditionsKeys...)
	tokens := Tokenize(v)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}
	return tokens
}

// StringField returns the first non-blank string stored under keys.
func StringField(rec Record, keys ...string) string {
	for _, key := range keys {
		v, ok := ReadRaw(rec, key)
		if !ok {
			continue
		}
		if s, ok := FirstString(v); ok {
			return s
		}
	}
	return ""
}

// Merge returns a new record holding base overlaid with every key of top.
func Merge(base, top Record) Record {
	out := make(Record, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		out[k] = v
	}
	return out
}
