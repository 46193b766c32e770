package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"adventure-editor/adventure"
	"adventure-editor/media"
	"adventure-editor/store"
)

// errNoSession is returned by editor routes when the adventure was not
// opened for edit by this server.
var errNoSession = errors.New("adventure is not open for edit")

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	var perr *adventure.ParseError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, media.ErrNotFound), errors.Is(err, errNoSession):
		return http.StatusNotFound
	case errors.Is(err, store.ErrLocked), errors.Is(err, store.ErrReadOnly):
		return http.StatusLocked
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, media.ErrUnsupported), errors.Is(err, media.ErrEmpty):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &perr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}. Parse errors also carry their
// issues.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[api] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	var perr *adventure.ParseError
	if errors.As(err, &perr) {
		c.JSON(status, gin.H{"error": perr.Message, "issues": perr.Issues})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
