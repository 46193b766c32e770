// Package watcher reports changes made to adventure files on disk, e.g. by
// hand edits or another process writing to a file store directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"adventure-editor/adventure"
	"adventure-editor/store"
)

// Event types.
const (
	EventCreated         = "created"
	EventModified        = "modified"
	EventDeleted         = "deleted"
	EventRenamed         = "renamed"
	EventValidated       = "validated"
	EventValidationError = "validation_error"
)

// WatchEvent is a change of one adventure file.
type WatchEvent struct {
	Type      string            `json:"type"`
	Path      string            `json:"path"`
	Slug      string            `json:"slug"`
	Timestamp time.Time         `json:"timestamp"`
	NodeCount int               `json:"nodeCount,omitempty"`
	LinkCount int               `json:"linkCount,omitempty"`
	Issues    []adventure.Issue `json:"issues,omitempty"`
}

// WatcherConfig configures a FileWatcher.
type WatcherConfig struct {
	Paths        []string         // directories to watch
	DebounceTime time.Duration    // quiet time before validating a file (default: 500ms)
	OnEvent      func(WatchEvent) // called for every event, from the watcher goroutine
	Validate     bool             // decode changed files and report their issues
}

// FileWatcher watches adventure files.
type FileWatcher struct {
	watcher      *fsnotify.Watcher
	watchedPaths []string
	debounceTime time.Duration
	onEvent      func(WatchEvent)
	validate     bool
	eventChan    chan WatchEvent
	stopChan     chan struct{}

	mu          sync.Mutex
	isRunning   bool
	closed      bool
	debounceMap map[string]*time.Timer
	wg          sync.WaitGroup
}

// NewFileWatcher creates a watcher over config.Paths.
func NewFileWatcher(config WatcherConfig) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if config.DebounceTime == 0 {
		config.DebounceTime = 500 * time.Millisecond
	}

	fw := &FileWatcher{
		watcher:      watcher,
		debounceTime: config.DebounceTime,
		onEvent:      config.OnEvent,
		validate:     config.Validate,
		eventChan:    make(chan WatchEvent, 100),
		stopChan:     make(chan struct{}),
		debounceMap:  make(map[string]*time.Timer),
	}

	for _, path := range config.Paths {
		if err := fw.AddPath(path); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	return fw, nil
}

// Start runs the watcher in the background.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.isRunning {
		return errors.New("watcher already running")
	}
	fw.isRunning = true
	log.Println("[watcher] started")

	fw.wg.Add(1)
	go fw.loop()
	return nil
}

// Run starts the watcher and stops it when ctx is done.
func (fw *FileWatcher) Run(ctx context.Context) error {
	if err := fw.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return fw.Stop()
}

func (fw *FileWatcher) loop() {
	defer fw.wg.Done()
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)

		case <-fw.stopChan:
			log.Println("[watcher] stopped")
			return
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	slug := store.SlugFromPath(event.Name)
	if slug == "" {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRenamed
	default:
		return
	}

	log.Printf("[watcher] %s %s", eventType, filepath.Base(event.Name))
	fw.emit(WatchEvent{Type: eventType, Path: event.Name, Slug: slug, Timestamp: time.Now()})

	if !fw.validate || (eventType != EventCreated && eventType != EventModified) {
		return
	}

	// editors write a file in several steps; validate once they settle
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if timer, exists := fw.debounceMap[event.Name]; exists {
		timer.Stop()
	}
	path := event.Name
	fw.debounceMap[path] = time.AfterFunc(fw.debounceTime, func() {
		fw.mu.Lock()
		delete(fw.debounceMap, path)
		running := fw.isRunning
		fw.mu.Unlock()
		if running {
			fw.emit(CheckFile(path))
		}
	})
}

// CheckFile decodes an adventure file and reports the result as a
// validated or validation_error event.
func CheckFile(path string) WatchEvent {
	ev := WatchEvent{Type: EventValidated, Path: path, Slug: store.SlugFromPath(path), Timestamp: time.Now()}
	data, err := os.ReadFile(path)
	if err != nil {
		ev.Type = EventValidationError
		ev.Issues = []adventure.Issue{{Message: err.Error()}}
		return ev
	}
	adv, err := adventure.ParseAdventure(data)
	if err != nil {
		ev.Type = EventValidationError
		var perr *adventure.ParseError
		if errors.As(err, &perr) {
			ev.Issues = perr.Issues
		} else {
			ev.Issues = []adventure.Issue{{Message: err.Error()}}
		}
		log.Printf("[watcher] %s is not a valid adventure: %v", filepath.Base(path), err)
		return ev
	}
	ev.NodeCount = len(adv.Nodes)
	ev.LinkCount = len(adv.Links)
	return ev
}

// emit delivers ev to the callback and the channel. A full channel drops
// the event rather than stalling the watcher.
func (fw *FileWatcher) emit(ev WatchEvent) {
	if fw.onEvent != nil {
		fw.onEvent(ev)
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.closed {
		return
	}
	select {
	case fw.eventChan <- ev:
	default:
		log.Printf("[watcher] event channel full, dropped %s %s", ev.Type, ev.Slug)
	}
}

// Stop stops the watcher and closes the event channel.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.isRunning {
		fw.mu.Unlock()
		return errors.New("watcher not running")
	}
	fw.isRunning = false
	for path, timer := range fw.debounceMap {
		timer.Stop()
		delete(fw.debounceMap, path)
	}
	fw.mu.Unlock()

	close(fw.stopChan)
	fw.wg.Wait()

	err := fw.watcher.Close()
	fw.mu.Lock()
	fw.closed = true
	close(fw.eventChan)
	fw.mu.Unlock()
	if err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}
	return nil
}

// Events returns the event channel.
func (fw *FileWatcher) Events() <-chan WatchEvent {
	return fw.eventChan
}

// IsRunning reports whether the watcher is active.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.isRunning
}

// WatchedPaths returns the watched directories.
func (fw *FileWatcher) WatchedPaths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.watchedPaths...)
}
