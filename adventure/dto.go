package adventure

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"adventure-editor/props"
)

// ============================================
// Loose wire scalars
// ============================================

// FlexInt decodes numbers, numeric strings, booleans and null into an int.
// Non-integral numbers are truncated.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	n, err := decodeNumber(data)
	if err != nil {
		return err
	}
	*f = FlexInt(int(n))
	return nil
}

// FlexFloat decodes the same inputs as FlexInt but keeps the fraction.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	n, err := decodeNumber(data)
	if err != nil {
		return err
	}
	*f = FlexFloat(n)
	return nil
}

func decodeNumber(data []byte) (float64, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")), bytes.Equal(trimmed, []byte("false")):
		return 0, nil
	case bytes.Equal(trimmed, []byte("true")):
		return 1, nil
	}
	s := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("expected number, received %s", string(trimmed))
	}
	return n, nil
}

// WireProps is the props field of a DTO. On input it accepts a JSON string,
// an object or null; on output it is always a string ("" for no props).
type WireProps struct {
	value interface{}
}

// PropsString wraps an already serialized props string.
func PropsString(s string) WireProps { return WireProps{value: s} }

// PropsRecord wraps a decoded record.
func PropsRecord(rec props.Record) WireProps {
	if rec == nil {
		return WireProps{}
	}
	return WireProps{value: rec}
}

// Record decodes the props. Anything that is not a JSON object yields nil.
func (w WireProps) Record() props.Record {
	switch v := w.value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		rec, err := props.ParseStrict(v)
		if err != nil {
			return nil
		}
		return rec
	case map[string]interface{}:
		return v
	}
	return nil
}

// String returns the wire form of the props.
func (w WireProps) String() string {
	switch v := w.value.(type) {
	case string:
		return v
	case map[string]interface{}:
		return props.Serialize(v)
	}
	return ""
}

func (w WireProps) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

func (w *WireProps) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil, string, map[string]interface{}:
		w.value = t
		return nil
	}
	return fmt.Errorf("expected string, object or null for props")
}

// ============================================
// DTOs
// ============================================

// NodeDTO is the wire shape of a node.
type NodeDTO struct {
	ID              FlexInt   `json:"id"`
	NodeID          FlexInt   `json:"node_id"`
	Title           string    `json:"title"`
	Icon            string    `json:"icon,omitempty"`
	Text            string    `json:"text"`
	X               FlexFloat `json:"x"`
	Y               FlexFloat `json:"y"`
	ImageURL        string    `json:"image_url"`
	ImageID         FlexInt   `json:"image_id"`
	ImageLayoutType string    `json:"image_layout_type"`
	Type            string    `json:"type"`
	Changed         bool      `json:"changed,omitempty"`
	Props           WireProps `json:"props"`
}

// LinkDTO is the wire shape of a link.
type LinkDTO struct {
	ID          FlexInt   `json:"id"`
	LinkID      FlexInt   `json:"link_id"`
	Source      FlexInt   `json:"source"`
	SourceTitle string    `json:"source_title"`
	Target      FlexInt   `json:"target"`
	TargetTitle string    `json:"target_title"`
	Type        string    `json:"type"`
	Changed     bool      `json:"changed,omitempty"`
	Props       WireProps `json:"props"`
}

// CategoryDTO is the wire shape of a category.
type CategoryDTO struct {
	ID          FlexInt `json:"id"`
	SortOrder   FlexInt `json:"sort_order,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon"`
	Image       string  `json:"image,omitempty"`
}

// UserDTO is the wire shape of a user.
type UserDTO struct {
	ID        FlexInt `json:"id"`
	Username  string  `json:"username"`
	Name      string  `json:"name"`
	Role      FlexInt `json:"role"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// AdventureDTO is the wire shape of an adventure, as exchanged with the
// persistence layer.
type AdventureDTO struct {
	ID          FlexInt      `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Slug        string       `json:"slug"`
	ViewSlug    string       `json:"view_slug"`
	Locked      bool         `json:"locked"`
	CreatedAt   string       `json:"created_at,omitempty"`
	UpdatedAt   string       `json:"updated_at,omitempty"`
	Category    *CategoryDTO `json:"category,omitempty"`
	Nodes       []NodeDTO    `json:"nodes"`
	Links       []LinkDTO    `json:"links"`
	ImageID     FlexInt      `json:"image_id"`
	CoverURL    string       `json:"cover_url"`
	EditVersion FlexInt      `json:"edit_version"`
	ViewCount   FlexInt      `json:"view_count"`
	Props       WireProps    `json:"props"`
	Users       []UserDTO    `json:"users"`
}
