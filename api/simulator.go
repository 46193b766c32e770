package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adventure-editor/adventure"
	"adventure-editor/simulator"
)

// ============================================
// Path Simulator Handlers
// ============================================

// PathRequest names a sequence of node ids.
type PathRequest struct {
	Path []int `json:"path" binding:"required,min=1"`
}

// SuggestPathsRequest asks for paths from a start node, the root by
// default.
type SuggestPathsRequest struct {
	StartNodeID *int `json:"startNodeId"`
	MaxDepth    int  `json:"maxDepth" binding:"gte=0"`
}

// pathSimulator builds a simulator over the adventure behind the slug
// parameter, writing the error response when it cannot.
func (s *Server) pathSimulator(c *gin.Context) (*simulator.PathSimulator, adventure.Adventure, bool) {
	adv, err := s.loadAdventure(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return nil, adventure.Adventure{}, false
	}
	return simulator.NewPathSimulator(adv), adv, true
}

func (s *Server) validatePath(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sim, _, ok := s.pathSimulator(c)
	if !ok {
		return
	}
	errors := sim.ValidatePath(req.Path)

	c.JSON(http.StatusOK, gin.H{
		"valid":  len(errors) == 0,
		"path":   req.Path,
		"errors": errors,
	})
}

func (s *Server) simulatePath(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sim, _, ok := s.pathSimulator(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sim.SimulatePath(req.Path))
}

func (s *Server) suggestPaths(c *gin.Context) {
	var req SuggestPathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.MaxDepth == 0 || req.MaxDepth > 10 {
		req.MaxDepth = 5
	}

	sim, adv, ok := s.pathSimulator(c)
	if !ok {
		return
	}
	var start int
	if req.StartNodeID != nil {
		start = *req.StartNodeID
	} else {
		root, found := adventure.RootNode(adv.Nodes)
		if !found {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "adventure has no nodes"})
			return
		}
		start = root.NodeID
	}

	paths := sim.GetSuggestedPaths(start, req.MaxDepth)
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"start_node_id": start,
		"max_depth":     req.MaxDepth,
		"paths":         paths,
		"count":         len(paths),
	})
}
