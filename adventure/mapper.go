package adventure

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// ============================================
// DTO -> model
// ============================================

// MapNodeDTO converts a wire node into the model. The raw props are decoded
// once and the structured view is derived from them.
func MapNodeDTO(dto NodeDTO) Node {
	n := Node{
		ID:       int(dto.ID),
		NodeID:   int(dto.NodeID),
		Title:    dto.Title,
		Text:     dto.Text,
		Icon:     dto.Icon,
		Position: Position{X: float64(dto.X), Y: float64(dto.Y)},
		Image: Image{
			URL:        dto.ImageURL,
			ID:         int(dto.ImageID),
			LayoutType: dto.ImageLayoutType,
		},
		Type:    dto.Type,
		Changed: dto.Changed,
	}
	return n.WithRawProps(dto.Props.Record())
}

// MapLinkDTO converts a wire link into the model.
func MapLinkDTO(dto LinkDTO) Link {
	return Link{
		ID:          int(dto.ID),
		LinkID:      int(dto.LinkID),
		Source:      int(dto.Source),
		SourceTitle: dto.SourceTitle,
		Target:      int(dto.Target),
		TargetTitle: dto.TargetTitle,
		Type:        dto.Type,
		Changed:     dto.Changed,
		Props:       dto.Props.Record(),
	}
}

func mapCategoryDTO(dto *CategoryDTO) *Category {
	if dto == nil {
		return nil
	}
	return &Category{
		ID:          int(dto.ID),
		SortOrder:   int(dto.SortOrder),
		Title:       dto.Title,
		Description: dto.Description,
		Icon:        dto.Icon,
		Image:       dto.Image,
	}
}

func mapUserDTO(dto UserDTO) User {
	return User{
		ID:        int(dto.ID),
		Username:  dto.Username,
		Name:      dto.Name,
		Role:      int(dto.Role),
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}
}

// MapAdventureDTO converts a wire adventure into the model.
func MapAdventureDTO(dto AdventureDTO) Adventure {
	a := Adventure{
		ID:          int(dto.ID),
		Title:       dto.Title,
		Description: dto.Description,
		Slug:        dto.Slug,
		ViewSlug:    dto.ViewSlug,
		Locked:      dto.Locked,
		CreatedAt:   dto.CreatedAt,
		UpdatedAt:   dto.UpdatedAt,
		Category:    mapCategoryDTO(dto.Category),
		Nodes:       make([]Node, 0, len(dto.Nodes)),
		Links:       make([]Link, 0, len(dto.Links)),
		ImageID:     int(dto.ImageID),
		CoverURL:    dto.CoverURL,
		EditVersion: int(dto.EditVersion),
		ViewCount:   int(dto.ViewCount),
		Users:       make([]User, 0, len(dto.Users)),
	}
	for _, n := range dto.Nodes {
		a.Nodes = append(a.Nodes, MapNodeDTO(n))
	}
	for _, l := range dto.Links {
		a.Links = append(a.Links, MapLinkDTO(l))
	}
	for _, u := range dto.Users {
		a.Users = append(a.Users, mapUserDTO(u))
	}
	return a.WithRawProps(dto.Props.Record())
}

// ============================================
// Validated decoding
// ============================================

// Issue is a single field-level validation problem.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ParseError reports a DTO that failed validation.
type ParseError struct {
	Message string  `json:"error"`
	Issues  []Issue `json:"issues"`
}

func (e *ParseError) Error() string {
	if len(e.Issues) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", is.Path, is.Message))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// Presence envelopes: the wire format distinguishes a missing required field
// from an empty one, which the DTO structs cannot.
type nodeEnvelope struct {
	ID     *json.RawMessage `json:"id" validate:"required"`
	NodeID *json.RawMessage `json:"node_id" validate:"required"`
	Title  *string          `json:"title" validate:"required"`
	Text   *string          `json:"text" validate:"required"`
}

type linkEnvelope struct {
	ID     *json.RawMessage `json:"id" validate:"required"`
	LinkID *json.RawMessage `json:"link_id" validate:"required"`
	Source *json.RawMessage `json:"source" validate:"required"`
	Target *json.RawMessage `json:"target" validate:"required"`
	Type   *string          `json:"type" validate:"required"`
}

type categoryEnvelope struct {
	ID    *json.RawMessage `json:"id" validate:"required"`
	Title *string          `json:"title" validate:"required"`
	Icon  *string          `json:"icon" validate:"required"`
}

type userEnvelope struct {
	ID       *json.RawMessage `json:"id" validate:"required"`
	Username *string          `json:"username" validate:"required"`
	Name     *string          `json:"name" validate:"required"`
	Role     *json.RawMessage `json:"role" validate:"required"`
}

type adventureEnvelope struct {
	ID          *json.RawMessage  `json:"id" validate:"required"`
	Title       *string           `json:"title" validate:"required"`
	ViewSlug    *string           `json:"view_slug" validate:"required"`
	EditVersion *json.RawMessage  `json:"edit_version" validate:"required"`
	Category    *categoryEnvelope `json:"category" validate:"omitempty"`
	Nodes       []nodeEnvelope    `json:"nodes" validate:"dive"`
	Links       []linkEnvelope    `json:"links" validate:"dive"`
	Users       []userEnvelope    `json:"users" validate:"dive"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func dtoValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func decodeValidated(kind string, data []byte, envelope interface{}, dto interface{}) error {
	failure := &ParseError{Message: kind + " DTO validation failed"}
	if err := json.Unmarshal(data, envelope); err != nil {
		failure.Issues = append(failure.Issues, decodeIssue(err))
		return failure
	}
	if err := dtoValidator().Struct(envelope); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate %s: %w", kind, err)
		}
		for _, fe := range verrs {
			failure.Issues = append(failure.Issues, Issue{Path: issuePath(fe.Namespace()), Message: issueMessage(fe)})
		}
		return failure
	}
	if err := json.Unmarshal(data, dto); err != nil {
		failure.Issues = append(failure.Issues, decodeIssue(err))
		return failure
	}
	return nil
}

func decodeIssue(err error) Issue {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return Issue{Path: typeErr.Field, Message: fmt.Sprintf("expected %s, received %s", typeErr.Type, typeErr.Value)}
	}
	return Issue{Path: "", Message: err.Error()}
}

// issuePath drops the root struct name from a validator namespace.
func issuePath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func issueMessage(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return "required"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// DecodeNodeDTO decodes and validates a wire node.
func DecodeNodeDTO(data []byte) (NodeDTO, error) {
	var dto NodeDTO
	err := decodeValidated("Node", data, &nodeEnvelope{}, &dto)
	return dto, err
}

// DecodeLinkDTO decodes and validates a wire link.
func DecodeLinkDTO(data []byte) (LinkDTO, error) {
	var dto LinkDTO
	err := decodeValidated("Link", data, &linkEnvelope{}, &dto)
	return dto, err
}

// DecodeAdventureDTO decodes and validates a wire adventure, including its
// nodes, links, category and users.
func DecodeAdventureDTO(data []byte) (AdventureDTO, error) {
	var dto AdventureDTO
	err := decodeValidated("Adventure", data, &adventureEnvelope{}, &dto)
	return dto, err
}

// ParseNode decodes a wire node into the model. A failure is a *ParseError.
func ParseNode(data []byte) (Node, error) {
	dto, err := DecodeNodeDTO(data)
	if err != nil {
		return Node{}, err
	}
	return MapNodeDTO(dto), nil
}

// ParseLink decodes a wire link into the model. A failure is a *ParseError.
func ParseLink(data []byte) (Link, error) {
	dto, err := DecodeLinkDTO(data)
	if err != nil {
		return Link{}, err
	}
	return MapLinkDTO(dto), nil
}

// ParseAdventure decodes a wire adventure into the model. A failure is a
// *ParseError.
func ParseAdventure(data []byte) (Adventure, error) {
	dto, err := DecodeAdventureDTO(data)
	if err != nil {
		return Adventure{}, err
	}
	return MapAdventureDTO(dto), nil
}
