package api

import (
	"context"
	"sync"

	"adventure-editor/autosave"
	"adventure-editor/editor"
)

// editSession is an adventure opened for edit: the session and the loop
// saving it.
type editSession struct {
	session *editor.Session
	saver   *autosave.Saver
}

// close saves pending edits and stops the save loop.
func (e *editSession) close(ctx context.Context) error {
	err := e.saver.Flush(ctx)
	e.saver.Close()
	return err
}

// sessionRegistry holds the open edit sessions by edit slug.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*editSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*editSession)}
}

func (r *sessionRegistry) get(slug string) (*editSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[slug]
	return e, ok
}

// put stores e and returns the session it replaced, if any.
func (r *sessionRegistry) put(slug string, e *editSession) *editSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sessions[slug]
	r.sessions[slug] = e
	return prev
}

func (r *sessionRegistry) take(slug string) (*editSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[slug]
	delete(r.sessions, slug)
	return e, ok
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// drain removes and returns every session.
func (r *sessionRegistry) drain() map[string]*editSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sessions
	r.sessions = make(map[string]*editSession)
	return all
}
