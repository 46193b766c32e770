package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"adventure-editor/media"
	"adventure-editor/store"
)

// ============================================
// Media Handlers
// ============================================

// uploadMedia stores the "media" file of a multipart form for the
// adventure whose edit slug is in "adventureId".
func (s *Server) uploadMedia(c *gin.Context) {
	if s.media == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media storage is disabled"})
		return
	}
	slug := c.PostForm("adventureId")
	header, err := c.FormFile("media")
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.requireEditSlug(c, slug); err != nil {
		respondError(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, fmt.Errorf("read media: %w", err))
		return
	}

	result, err := s.media.Upload(c.Request.Context(), slug, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// deleteMedia removes a media file unless another node still references
// it. A file already gone is not an error.
func (s *Server) deleteMedia(c *gin.Context) {
	if s.media == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media storage is disabled"})
		return
	}
	slug, name := c.Param("adventure"), c.Param("name")
	if err := s.requireEditSlug(c, slug); err != nil {
		respondError(c, err)
		return
	}
	adv, err := s.loadAdventure(c.Request.Context(), slug)
	if err != nil {
		respondError(c, err)
		return
	}

	refs := media.CountReferences(adv.Nodes, name)
	deleted := false
	if refs <= 1 {
		url := s.media.BaseURL() + "/" + slug + "/" + name
		_, err := s.media.Delete(c.Request.Context(), url)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, media.ErrNotFound):
			log.Printf("[api] media %s already gone", url)
		default:
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"result": "success", "deleted": deleted, "references": refs})
}

// requireEditSlug fails unless slug is the edit slug of an adventure.
func (s *Server) requireEditSlug(c *gin.Context, slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: missing adventure", store.ErrNotFound)
	}
	if _, ok := s.sessions.get(slug); ok {
		return nil
	}
	dto, err := s.store.Load(c.Request.Context(), slug)
	if err != nil {
		return err
	}
	if dto.Slug != slug {
		return fmt.Errorf("%w: %s is not an edit slug", store.ErrNotFound, slug)
	}
	return nil
}
