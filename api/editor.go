package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"adventure-editor/adventure"
	"adventure-editor/editor"
	"adventure-editor/props"
)

// errBadParam reports a malformed path parameter.
var errBadParam = errors.New("invalid parameter")

// ============================================
// Editor Requests
// ============================================

// PropOptions control prop path writes.
type PropOptions struct {
	Mode          string `json:"mode" binding:"omitempty,oneof=flat nested"`
	RemoveIfEmpty bool   `json:"removeIfEmpty"`
	EmptyValue    string `json:"emptyValue"`
}

func (o PropOptions) options() props.Options {
	mode := props.Flat
	if o.Mode == "nested" {
		mode = props.Nested
	}
	return props.Options{Mode: mode, RemoveIfEmpty: o.RemoveIfEmpty, EmptyValue: o.EmptyValue}
}

// AddNodeRequest adds a node, linked from SourceNodeID when set.
type AddNodeRequest struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	SourceNodeID *int    `json:"sourceNodeId"`
}

// NodeFieldsRequest changes node fields; nil fields are kept.
type NodeFieldsRequest struct {
	Title    *string `json:"title"`
	Text     *string `json:"text"`
	ImageURL *string `json:"imageUrl"`
}

// PositionsRequest moves nodes.
type PositionsRequest struct {
	Positions []editor.PositionUpdate `json:"positions" binding:"required,min=1"`
}

// PropsRequest writes several prop paths.
type PropsRequest struct {
	Updates map[string]interface{} `json:"updates" binding:"required,min=1"`
	Options PropOptions            `json:"options"`
}

// PropPathRequest writes one prop path. A null value removes it.
type PropPathRequest struct {
	Path    string      `json:"path" binding:"required,proppath"`
	Value   interface{} `json:"value"`
	Options PropOptions `json:"options"`
}

// PropSelectRequest selects one entry of a string array prop.
type PropSelectRequest struct {
	Path     string      `json:"path" binding:"required,proppath"`
	Selected string      `json:"selected"`
	Options  PropOptions `json:"options"`
}

// PropMultiSelectRequest replaces a string array prop.
type PropMultiSelectRequest struct {
	Path    string      `json:"path" binding:"required,proppath"`
	Values  []string    `json:"values"`
	Options PropOptions `json:"options"`
}

// NodesPropSelectRequest selects one entry on several nodes.
type NodesPropSelectRequest struct {
	NodeIDs  []int       `json:"nodeIds" binding:"required,min=1"`
	Path     string      `json:"path" binding:"required,proppath"`
	Selected string      `json:"selected"`
	Options  PropOptions `json:"options"`
}

// AddLinkRequest links two nodes.
type AddLinkRequest struct {
	SourceNodeID int `json:"sourceNodeId"`
	TargetNodeID int `json:"targetNodeId"`
}

// RemoveRequest removes nodes and links.
type RemoveRequest struct {
	NodeIDs []int `json:"nodeIds"`
	LinkIDs []int `json:"linkIds"`
}

// SelectionSnapshotRequest replaces the multi-selection.
type SelectionSnapshotRequest struct {
	NodeIDs []int `json:"nodeIds"`
	LinkIDs []int `json:"linkIds"`
}

// PasteRequest pastes the clipboard around a canvas position.
type PasteRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CoverRequest sets the adventure cover.
type CoverRequest struct {
	CoverURL string `json:"coverUrl"`
	ImageID  int    `json:"imageId"`
}

// ShortcutPickRequest arms a menu shortcut slot.
type ShortcutPickRequest struct {
	Index int `json:"index" binding:"gte=0,lt=9"`
}

// ShortcutApplyRequest writes a node into the armed slot.
type ShortcutApplyRequest struct {
	NodeID int `json:"nodeId"`
}

// noBody marks routes without a request body.
type noBody struct{}

// ============================================
// Editor Routes
// ============================================

func (s *Server) editorRoutes(g *gin.RouterGroup) {
	g.GET("", s.editorState)
	g.DELETE("", s.closeEditor)
	g.POST("/save", s.flushEditor)
	g.POST("/retry", s.retrySave)

	g.POST("/nodes", edit(s, func(c *gin.Context, sess *editor.Session, req *AddNodeRequest) (gin.H, error) {
		pos := adventure.Position{X: req.X, Y: req.Y}
		if req.SourceNodeID != nil {
			nodeID, linkID, ok := sess.AddNodeWithLink(*req.SourceNodeID, pos)
			return gin.H{"changed": ok, "nodeId": nodeID, "linkId": linkID}, nil
		}
		nodeID, ok := sess.AddNode(pos)
		return gin.H{"changed": ok, "nodeId": nodeID}, nil
	}))
	g.PATCH("/nodes/:id", edit(s, func(c *gin.Context, sess *editor.Session, req *NodeFieldsRequest) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		changed := false
		if req.Title != nil {
			changed = sess.UpdateNodeTitle(id, *req.Title) || changed
		}
		if req.Text != nil {
			changed = sess.UpdateNodeText(id, *req.Text) || changed
		}
		if req.ImageURL != nil {
			changed = sess.UpdateNodeImageURL(id, *req.ImageURL) || changed
		}
		return gin.H{"changed": changed}, nil
	}))
	g.POST("/nodes/:id/duplicate", edit(s, func(c *gin.Context, sess *editor.Session, _ *noBody) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		nodeID, ok := sess.DuplicateNode(id)
		return gin.H{"changed": ok, "nodeId": nodeID}, nil
	}))
	g.PUT("/positions", edit(s, func(c *gin.Context, sess *editor.Session, req *PositionsRequest) (gin.H, error) {
		return gin.H{"changed": sess.UpdateNodePositions(req.Positions)}, nil
	}))

	g.PATCH("/nodes/:id/props", edit(s, func(c *gin.Context, sess *editor.Session, req *PropsRequest) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return gin.H{"changed": sess.UpdateNodeProps(id, req.Updates, req.Options.options())}, nil
	}))
	g.PUT("/nodes/:id/props/path", edit(s, func(c *gin.Context, sess *editor.Session, req *PropPathRequest) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return gin.H{"changed": sess.SetNodePropPath(id, req.Path, req.Value, req.Options.options())}, nil
	}))
	g.PUT("/nodes/:id/props/select", edit(s, func(c *gin.Context, sess *editor.Session, req *PropSelectRequest) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return gin.H{"changed": sess.SetNodePropStringArraySelect(id, req.Path, req.Selected, req.Options.options())}, nil
	}))
	g.PUT("/nodes/:id/props/multi", edit(s, func(c *gin.Context, sess *editor.Session, req *PropMultiSelectRequest) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return gin.H{"changed": sess.SetNodePropMultiSelect(id, req.Path, req.Values, req.Options.options())}, nil
	}))
	g.PUT("/props/select", edit(s, func(c *gin.Context, sess *editor.Session, req *NodesPropSelectRequest) (gin.H, error) {
		return gin.H{"changed": sess.SetNodesPropStringArraySelect(req.NodeIDs, req.Path, req.Selected, req.Options.options())}, nil
	}))

	g.POST("/links", edit(s, func(c *gin.Context, sess *editor.Session, req *AddLinkRequest) (gin.H, error) {
		linkID, ok := sess.AddLink(req.SourceNodeID, req.TargetNodeID)
		return gin.H{"changed": ok, "linkId": linkID}, nil
	}))
	g.PATCH("/links/:id", edit(s, func(c *gin.Context, sess *editor.Session, req *editor.LinkFieldUpdates) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return gin.H{"changed": sess.UpdateLinkFields(id, *req)}, nil
	}))
	g.POST("/links/:id/swap", edit(s, func(c *gin.Context, sess *editor.Session, _ *noBody) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return gin.H{"changed": sess.SwapLinkDirection(id)}, nil
	}))
	g.PATCH("/links/:id/props", edit(s, func(c *gin.Context, sess *editor.Session, req *PropsRequest) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return gin.H{"changed": sess.UpdateLinkProps(id, req.Updates, req.Options.options())}, nil
	}))
	g.PUT("/links/:id/props/path", edit(s, func(c *gin.Context, sess *editor.Session, req *PropPathRequest) (gin.H, error) {
		id, err := idParam(c, "id")
		if err != nil {
			return nil, err
		}
		return gin.H{"changed": sess.SetLinkPropPath(id, req.Path, req.Value, req.Options.options())}, nil
	}))

	g.POST("/remove", edit(s, func(c *gin.Context, sess *editor.Session, req *RemoveRequest) (gin.H, error) {
		return gin.H{"changed": sess.RemoveSelection(req.NodeIDs, req.LinkIDs)}, nil
	}))

	g.PUT("/selection", edit(s, func(c *gin.Context, sess *editor.Session, req *editor.Selection) (gin.H, error) {
		switch req.Kind {
		case editor.SelectNode, editor.SelectLink, editor.SelectNone:
		default:
			return nil, fmt.Errorf("%w: selection type %q", errBadParam, req.Kind)
		}
		sess.SetSelection(*req)
		return gin.H{"changed": true}, nil
	}))
	g.DELETE("/selection", edit(s, func(c *gin.Context, sess *editor.Session, _ *noBody) (gin.H, error) {
		sess.ClearSelection()
		return gin.H{"changed": true}, nil
	}))
	g.PUT("/selection/snapshot", edit(s, func(c *gin.Context, sess *editor.Session, req *SelectionSnapshotRequest) (gin.H, error) {
		sess.SetSelectionSnapshot(req.NodeIDs, req.LinkIDs)
		return gin.H{"changed": true}, nil
	}))

	g.POST("/copy", edit(s, func(c *gin.Context, sess *editor.Session, _ *noBody) (gin.H, error) {
		return gin.H{"changed": sess.CopySelection()}, nil
	}))
	g.POST("/paste", edit(s, func(c *gin.Context, sess *editor.Session, req *PasteRequest) (gin.H, error) {
		ids := sess.PasteClipboard(adventure.Position{X: req.X, Y: req.Y})
		return gin.H{"changed": len(ids) > 0, "nodeIds": ids}, nil
	}))
	g.POST("/undo", edit(s, func(c *gin.Context, sess *editor.Session, _ *noBody) (gin.H, error) {
		return gin.H{"changed": sess.Undo()}, nil
	}))
	g.POST("/history/snapshot", edit(s, func(c *gin.Context, sess *editor.Session, _ *noBody) (gin.H, error) {
		sess.PushHistorySnapshot()
		return gin.H{"changed": false}, nil
	}))

	g.PATCH("/adventure", edit(s, func(c *gin.Context, sess *editor.Session, req *editor.AdventureFieldUpdates) (gin.H, error) {
		return gin.H{"changed": sess.UpdateAdventureFields(*req)}, nil
	}))
	g.PUT("/adventure/cover", edit(s, func(c *gin.Context, sess *editor.Session, req *CoverRequest) (gin.H, error) {
		return gin.H{"changed": sess.UpdateAdventureCover(req.CoverURL, req.ImageID)}, nil
	}))
	g.PATCH("/adventure/props", edit(s, func(c *gin.Context, sess *editor.Session, req *PropsRequest) (gin.H, error) {
		return gin.H{"changed": sess.UpdateAdventureProps(req.Updates, req.Options.options())}, nil
	}))
	g.PUT("/adventure/props/path", edit(s, func(c *gin.Context, sess *editor.Session, req *PropPathRequest) (gin.H, error) {
		return gin.H{"changed": sess.SetAdventurePropPath(req.Path, req.Value, req.Options.options())}, nil
	}))

	g.POST("/shortcuts/pick", edit(s, func(c *gin.Context, sess *editor.Session, req *ShortcutPickRequest) (gin.H, error) {
		return gin.H{"changed": sess.StartMenuShortcutPick(req.Index)}, nil
	}))
	g.DELETE("/shortcuts/pick", edit(s, func(c *gin.Context, sess *editor.Session, _ *noBody) (gin.H, error) {
		sess.CancelMenuShortcutPick()
		return gin.H{"changed": false}, nil
	}))
	g.POST("/shortcuts/apply", edit(s, func(c *gin.Context, sess *editor.Session, req *ShortcutApplyRequest) (gin.H, error) {
		return gin.H{"changed": sess.ApplyMenuShortcutPick(req.NodeID)}, nil
	}))
}

// edit wraps an editor operation: it finds the open session, binds the body
// into a T and answers with the operation result plus the session state.
func edit[T any](s *Server, fn func(c *gin.Context, sess *editor.Session, req *T) (gin.H, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.sessions.get(c.Param("slug"))
		if !ok {
			respondError(c, errNoSession)
			return
		}

		req := new(T)
		if _, empty := any(req).(*noBody); !empty {
			if err := c.ShouldBindJSON(req); err != nil {
				badRequest(c, err)
				return
			}
		}

		result, err := fn(c, e.session, req)
		if errors.Is(err, errBadParam) {
			badRequest(c, err)
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		result["state"] = e.session.State()
		c.JSON(http.StatusOK, result)
	}
}

func idParam(c *gin.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errBadParam, name, c.Param(name))
	}
	return v, nil
}

// ============================================
// Session Handlers
// ============================================

func (s *Server) editorState(c *gin.Context) {
	e, ok := s.sessions.get(c.Param("slug"))
	if !ok {
		respondError(c, errNoSession)
		return
	}
	c.JSON(http.StatusOK, e.session.State())
}

// closeEditor saves pending edits and closes the session.
func (s *Server) closeEditor(c *gin.Context) {
	slug := c.Param("slug")
	e, ok := s.sessions.take(slug)
	if !ok {
		respondError(c, errNoSession)
		return
	}
	if err := e.close(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	log.Printf("[api] closed editor session %s", slug)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// flushEditor saves pending edits now.
func (s *Server) flushEditor(c *gin.Context) {
	e, ok := s.sessions.get(c.Param("slug"))
	if !ok {
		respondError(c, errNoSession)
		return
	}
	if err := e.saver.Flush(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e.session.State())
}

// retrySave retries a failed save.
func (s *Server) retrySave(c *gin.Context) {
	e, ok := s.sessions.get(c.Param("slug"))
	if !ok {
		respondError(c, errNoSession)
		return
	}
	c.JSON(http.StatusOK, gin.H{"retried": e.saver.Retry(), "state": e.session.State()})
}
