// Package autosave saves an editor session in the background. Edits are
// debounced; at most one save runs at a time and at most one follow-up save
// waits behind it.
package autosave

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"adventure-editor/adventure"
	"adventure-editor/editor"
	"adventure-editor/store"
)

const (
	DefaultDebounce   = 250 * time.Millisecond
	DefaultSavedReset = 2 * time.Second
	DefaultTimeout    = 30 * time.Second
)

// Persister saves an adventure by edit slug. store.Store satisfies it.
type Persister interface {
	Save(ctx context.Context, slug string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error)
}

// Config tunes a Saver. Zero values take the defaults.
type Config struct {
	// Debounce is the quiet time after the last edit before saving.
	Debounce time.Duration
	// SavedReset is how long the saved status shows before turning idle.
	SavedReset time.Duration
	// Timeout bounds a single save.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.SavedReset <= 0 {
		c.SavedReset = DefaultSavedReset
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Saver is the save loop of one session.
type Saver struct {
	session   *editor.Session
	persister Persister
	config    Config

	mu       sync.Mutex
	debounce *time.Timer
	reset    *time.Timer
	onStatus func(editor.SaveStatus, string)
	closed   bool

	// kick holds at most one pending save request.
	kick  chan struct{}
	flush chan chan error
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewSaver creates a Saver for session and starts its worker. It does not
// listen to the session until Attach is called.
func NewSaver(session *editor.Session, persister Persister, config Config) *Saver {
	s := &Saver{
		session:   session,
		persister: persister,
		config:    config.withDefaults(),
		kick:      make(chan struct{}, 1),
		flush:     make(chan chan error),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Attach schedules a save after every edit of the session.
func (s *Saver) Attach() {
	s.session.OnChange(func(uint64) { s.Schedule() })
}

// OnStatus registers fn to be called after every status change.
func (s *Saver) OnStatus(fn func(status editor.SaveStatus, errMsg string)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// Schedule marks the session dirty and (re)starts the debounce timer.
func (s *Saver) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.session.ReadOnly() {
		return
	}
	if s.reset != nil {
		s.reset.Stop()
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.config.Debounce, s.request)
	s.setStatusLocked(editor.SaveDirty, "")
}

// Retry saves again after an error. It does nothing in other states.
func (s *Saver) Retry() bool {
	if status, _ := s.session.SaveStatus(); status != editor.SaveError {
		return false
	}
	s.request()
	return true
}

// Flush cancels the pending debounce and saves now, after any save in
// flight. It returns the result of the save, nil when nothing was dirty.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("autosave: saver closed")
	}

	reply := make(chan error, 1)
	select {
	case s.flush <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the timers and waits for a save in flight. Pending edits are
// not saved; call Flush first to keep them.
func (s *Saver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.debounce != nil {
		s.debounce.Stop()
	}
	if s.reset != nil {
		s.reset.Stop()
	}
	s.mu.Unlock()
	s.session.OnChange(nil)
	close(s.done)
	s.wg.Wait()
}

// request queues a save. A request made while one is already queued is
// merged into it.
func (s *Saver) request() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Saver) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
			s.save()
		case reply := <-s.flush:
			reply <- s.save()
		}
	}
}

// save persists the current session content once.
func (s *Saver) save() error {
	st := s.session.State()
	if st.Adventure == nil || !st.Dirty || st.ReadOnly {
		return nil
	}

	s.setStatus(editor.SaveSaving, "")
	dto := adventure.BuildAdventureDTO(*st.Adventure, st.EditVersion)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()
	saved, err := s.persister.Save(ctx, st.EditSlug, dto)
	if err != nil {
		if errors.Is(err, store.ErrLocked) || errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrReadOnly) {
			log.Printf("[autosave] %s is locked: %v", st.EditSlug, err)
			s.setStatus(editor.SaveLocked, err.Error())
		} else {
			log.Printf("[autosave] saving %s failed: %v", st.EditSlug, err)
			s.setStatus(editor.SaveError, err.Error())
		}
		return err
	}

	clean := s.session.ApplySaved(adventure.MapAdventureDTO(saved), int(saved.EditVersion), st.Revision)
	if !clean {
		// edited while saving; the debounce timer of that edit saves again
		s.notify(editor.SaveDirty, "")
		return nil
	}
	s.notify(editor.SaveSaved, "")

	s.mu.Lock()
	if !s.closed {
		if s.reset != nil {
			s.reset.Stop()
		}
		s.reset = time.AfterFunc(s.config.SavedReset, func() {
			if s.session.TransitionSaveStatus(editor.SaveSaved, editor.SaveIdle) {
				s.notify(editor.SaveIdle, "")
			}
		})
	}
	s.mu.Unlock()
	return nil
}

func (s *Saver) setStatus(status editor.SaveStatus, errMsg string) {
	s.session.SetSaveStatus(status, errMsg)
	s.notify(status, errMsg)
}

// setStatusLocked is setStatus for callers holding s.mu.
func (s *Saver) setStatusLocked(status editor.SaveStatus, errMsg string) {
	s.session.SetSaveStatus(status, errMsg)
	if fn := s.onStatus; fn != nil {
		go fn(status, errMsg)
	}
}

func (s *Saver) notify(status editor.SaveStatus, errMsg string) {
	s.mu.Lock()
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(status, errMsg)
	}
}
