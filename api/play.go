package api

import (
	"crypto/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"adventure-editor/player"
)

const maxPlaythroughs = 1000

type playthroughEntry struct {
	mu       sync.Mutex
	slug     string
	play     *player.Playthrough
	lastUsed time.Time
}

// playthroughRegistry holds running playthroughs by id. When full, the
// least recently used one is dropped.
type playthroughRegistry struct {
	mu      sync.Mutex
	max     int
	entries map[string]*playthroughEntry
	entropy *ulid.MonotonicEntropy
}

func newPlaythroughRegistry(max int) *playthroughRegistry {
	return &playthroughRegistry{
		max:     max,
		entries: make(map[string]*playthroughEntry),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (r *playthroughRegistry) add(slug string, p *player.Playthrough) (string, *playthroughEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= r.max {
		var oldestID string
		var oldest time.Time
		for id, e := range r.entries {
			if oldestID == "" || e.lastUsed.Before(oldest) {
				oldestID, oldest = id, e.lastUsed
			}
		}
		delete(r.entries, oldestID)
	}
	id := strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String())
	e := &playthroughEntry{slug: slug, play: p, lastUsed: time.Now()}
	r.entries[id] = e
	return id, e
}

func (r *playthroughRegistry) get(id string) (*playthroughEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if ok {
		e.lastUsed = time.Now()
	}
	return e, ok
}

func (r *playthroughRegistry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

func (r *playthroughRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ============================================
// Player Requests
// ============================================

// NavigationQuery carries the reader's navigation preferences.
type NavigationQuery struct {
	Style       string `form:"style"`
	Bottom      bool   `form:"bottom"`
	ShowCurrent *bool  `form:"showCurrent"`
	HideVisited bool   `form:"hideVisited"`
}

func (q NavigationQuery) overrides() player.NavigationOverrides {
	return player.NavigationOverrides{
		Style:       player.NormalizeNavStyle(q.Style),
		Bottom:      q.Bottom,
		ShowCurrent: q.ShowCurrent,
		HideVisited: q.HideVisited,
	}
}

// ChooseRequest follows a link from the current node.
type ChooseRequest struct {
	LinkID int `json:"linkId"`
}

// EnterRequest jumps to a node, e.g. from a menu shortcut.
type EnterRequest struct {
	NodeID int `json:"nodeId"`
}

// ============================================
// Player Handlers
// ============================================

// playthroughView renders the reader's position. The caller holds e.mu.
func playthroughView(id string, e *playthroughEntry, q NavigationQuery) gin.H {
	view := gin.H{
		"id":            id,
		"slug":          e.slug,
		"currentNodeId": e.play.CurrentNodeID(),
		"navigation":    e.play.Navigation(q.overrides()),
		"visited":       e.play.Visited(),
		"progress":      e.play.ProgressPercent(),
		"history":       e.play.History(),
	}
	if node, ok := e.play.CurrentNode(); ok {
		view["node"] = node
		view["nodeKind"] = player.ResolveNodeKind(&node)
	}
	return view
}

// startPlaythrough starts reading an adventure by view or edit slug. An
// adventure open for edit is played with its unsaved edits.
func (s *Server) startPlaythrough(c *gin.Context) {
	var q NavigationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	slug := c.Param("slug")
	adv, err := s.loadAdventure(c.Request.Context(), slug)
	if err != nil {
		respondError(c, err)
		return
	}

	play := player.NewPlaythrough(adv)
	if err := play.Start(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	id, e := s.playthrough.add(slug, play)
	e.mu.Lock()
	defer e.mu.Unlock()
	c.JSON(http.StatusCreated, playthroughView(id, e, q))
}

// withPlaythrough runs fn on the playthrough named by the id parameter,
// holding its lock.
func (s *Server) withPlaythrough(c *gin.Context, fn func(id string, e *playthroughEntry, q NavigationQuery)) {
	var q NavigationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")
	e, ok := s.playthrough.get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "playthrough not found"})
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(id, e, q)
}

func (s *Server) getPlaythrough(c *gin.Context) {
	s.withPlaythrough(c, func(id string, e *playthroughEntry, q NavigationQuery) {
		c.JSON(http.StatusOK, playthroughView(id, e, q))
	})
}

func (s *Server) choose(c *gin.Context) {
	var req ChooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.withPlaythrough(c, func(id string, e *playthroughEntry, q NavigationQuery) {
		click, enter := e.play.Choose(req.LinkID)
		c.JSON(http.StatusOK, gin.H{
			"click":       click,
			"enter":       enter,
			"playthrough": playthroughView(id, e, q),
		})
	})
}

func (s *Server) enter(c *gin.Context) {
	var req EnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s.withPlaythrough(c, func(id string, e *playthroughEntry, q NavigationQuery) {
		enter := e.play.Enter(req.NodeID)
		c.JSON(http.StatusOK, gin.H{
			"enter":       enter,
			"playthrough": playthroughView(id, e, q),
		})
	})
}

func (s *Server) back(c *gin.Context) {
	s.withPlaythrough(c, func(id string, e *playthroughEntry, q NavigationQuery) {
		moved := e.play.Back()
		c.JSON(http.StatusOK, gin.H{"changed": moved, "playthrough": playthroughView(id, e, q)})
	})
}

func (s *Server) home(c *gin.Context) {
	s.withPlaythrough(c, func(id string, e *playthroughEntry, q NavigationQuery) {
		moved := e.play.Home()
		c.JSON(http.StatusOK, gin.H{"changed": moved, "playthrough": playthroughView(id, e, q)})
	})
}

func (s *Server) endPlaythrough(c *gin.Context) {
	if !s.playthrough.remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "playthrough not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
