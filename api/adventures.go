package api

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"adventure-editor/adventure"
	"adventure-editor/autosave"
	"adventure-editor/editor"
)

// ============================================
// Adventure Handlers
// ============================================

// CreateAdventureRequest creates an adventure with a single root node.
type CreateAdventureRequest struct {
	Title string `json:"title" binding:"required,max=200"`
}

func (s *Server) listAdventures(c *gin.Context) {
	list, err := s.store.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"adventures": list,
		"count":      len(list),
	})
}

func (s *Server) createAdventure(c *gin.Context) {
	var req CreateAdventureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dto, err := s.store.Create(c.Request.Context(), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Printf("[api] created adventure %s", dto.Slug)
	c.JSON(http.StatusCreated, dto)
}

// getAdventure returns an adventure by edit or view slug, as stored.
func (s *Server) getAdventure(c *gin.Context) {
	dto, err := s.store.Load(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// openForEdit loads an adventure for edit and opens an editor session on
// it. A session already open for the slug is saved and replaced.
func (s *Server) openForEdit(c *gin.Context) {
	slug := c.Param("slug")
	ctx := c.Request.Context()

	if prev, ok := s.sessions.take(slug); ok {
		if err := prev.close(ctx); err != nil {
			log.Printf("[api] save of %s before reopening failed: %v", slug, err)
		}
	}

	dto, err := s.store.LoadForEdit(ctx, slug)
	if err != nil {
		respondError(c, err)
		return
	}

	e := s.newEditSession(slug, dto)
	if prev := s.sessions.put(slug, e); prev != nil {
		prev.saver.Close()
	}
	log.Printf("[api] opened %s for edit at version %d", slug, dto.EditVersion)
	c.JSON(http.StatusOK, e.session.State())
}

func (s *Server) newEditSession(slug string, dto adventure.AdventureDTO) *editSession {
	session := editor.NewSession(slug)
	session.Load(adventure.MapAdventureDTO(dto), int(dto.EditVersion))

	saver := autosave.NewSaver(session, s.store, s.autosave)
	saver.OnStatus(func(status editor.SaveStatus, errMsg string) {
		s.hub.Broadcast(Message{
			Type: MessageSaveStatus,
			Slug: slug,
			Data: gin.H{"status": status, "error": errMsg, "editVersion": session.EditVersion()},
		})
	})
	saver.Attach()
	return &editSession{session: session, saver: saver}
}

// saveAdventure stores a full adventure sent by a client that edits
// without a server-side session.
func (s *Server) saveAdventure(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return
	}
	dto, err := adventure.DecodeAdventureDTO(body)
	if err != nil {
		respondError(c, err)
		return
	}
	saved, err := s.store.Save(c.Request.Context(), c.Param("slug"), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// loadAdventure returns the adventure behind slug: the open edit session
// when there is one, the stored copy otherwise.
func (s *Server) loadAdventure(ctx context.Context, slug string) (adventure.Adventure, error) {
	if e, ok := s.sessions.get(slug); ok {
		if adv, loaded := e.session.Adventure(); loaded {
			return adv, nil
		}
	}
	dto, err := s.store.Load(ctx, slug)
	if err != nil {
		return adventure.Adventure{}, err
	}
	return adventure.MapAdventureDTO(dto), nil
}
