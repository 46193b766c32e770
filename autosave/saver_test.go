package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"adventure-editor/adventure"
	"adventure-editor/editor"
	"adventure-editor/store"
)

func loadedSession() *editor.Session {
	s := editor.NewSession("edit-slug")
	s.Load(adventure.Adventure{
		Slug:  "edit-slug",
		Nodes: []adventure.Node{{NodeID: 0, Title: "Start", Type: adventure.NodeTypeRoot}},
	}, 3)
	return s
}

// serverCopy is what a store returns for dto: storage ids and a new version.
func serverCopy(dto adventure.AdventureDTO) adventure.AdventureDTO {
	out := dto
	out.EditVersion = dto.EditVersion + 1
	out.Nodes = append([]adventure.NodeDTO{}, dto.Nodes...)
	for i := range out.Nodes {
		if out.Nodes[i].ID == 0 {
			out.Nodes[i].ID = adventure.FlexInt(100 + i)
		}
	}
	return out
}

type statusLog struct {
	ch chan editor.SaveStatus
}

func watchStatus(s *Saver) *statusLog {
	l := &statusLog{ch: make(chan editor.SaveStatus, 64)}
	s.OnStatus(func(status editor.SaveStatus, _ string) {
		select {
		case l.ch <- status:
		default:
		}
	})
	return l
}

func (l *statusLog) waitFor(t *testing.T, want editor.SaveStatus) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-l.ch:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("status %q never reported", want)
		}
	}
}

func newTestSaver(t *testing.T, session *editor.Session, p Persister, config Config) *Saver {
	t.Helper()
	s := NewSaver(session, p, config)
	s.Attach()
	t.Cleanup(s.Close)
	return s
}

// ============================================
// Debounce and queueing
// ============================================

func TestDebounceCoalescesEdits(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPersister(ctrl)
	session := loadedSession()

	var got adventure.AdventureDTO
	p.EXPECT().Save(gomock.Any(), "edit-slug", gomock.Any()).Times(1).
		DoAndReturn(func(_ context.Context, _ string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error) {
			got = dto
			return serverCopy(dto), nil
		})

	saver := newTestSaver(t, session, p, Config{Debounce: 30 * time.Millisecond})
	statuses := watchStatus(saver)

	session.UpdateNodeTitle(0, "A")
	session.UpdateNodeTitle(0, "B")
	session.UpdateNodeTitle(0, "C")
	statuses.waitFor(t, editor.SaveSaved)

	if got.Nodes[0].Title != "C" || got.EditVersion != 3 {
		t.Errorf("saved payload = %+v", got)
	}
	if session.Dirty() {
		t.Error("session still dirty")
	}
	if session.EditVersion() != 4 {
		t.Errorf("edit version = %d, expected 4", session.EditVersion())
	}
	adv, _ := session.Adventure()
	if adv.Nodes[0].ID != 100 {
		t.Errorf("server id not adopted: %d", adv.Nodes[0].ID)
	}
}

func TestEditsDuringSaveQueueOneFollowUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPersister(ctrl)
	session := loadedSession()

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var payloads []adventure.AdventureDTO
	record := func(dto adventure.AdventureDTO) {
		mu.Lock()
		payloads = append(payloads, dto)
		mu.Unlock()
	}

	gomock.InOrder(
		p.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error) {
				record(dto)
				close(started)
				<-release
				return serverCopy(dto), nil
			}),
		p.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error) {
				record(dto)
				return serverCopy(dto), nil
			}),
	)

	saver := newTestSaver(t, session, p, Config{Debounce: 10 * time.Millisecond})
	statuses := watchStatus(saver)

	session.UpdateNodeTitle(0, "A")
	<-started
	session.UpdateNodeTitle(0, "B")
	time.Sleep(40 * time.Millisecond)
	session.UpdateNodeTitle(0, "C")
	time.Sleep(40 * time.Millisecond)
	close(release)

	statuses.waitFor(t, editor.SaveSaved)

	mu.Lock()
	defer mu.Unlock()
	if len(payloads) != 2 {
		t.Fatalf("expected 2 saves, got %d", len(payloads))
	}
	if payloads[0].Nodes[0].Title != "A" || payloads[1].Nodes[0].Title != "C" {
		t.Errorf("titles = %q, %q", payloads[0].Nodes[0].Title, payloads[1].Nodes[0].Title)
	}
	// the follow-up carries the version returned by the first save
	if payloads[1].EditVersion != 4 || payloads[1].Nodes[0].ID != 100 {
		t.Errorf("follow-up payload = version %d, id %d", payloads[1].EditVersion, payloads[1].Nodes[0].ID)
	}
	if session.Dirty() {
		t.Error("session still dirty")
	}
}

// ============================================
// Errors
// ============================================

func TestLockedSaveMakesSessionReadOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPersister(ctrl)
	session := loadedSession()

	p.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).
		Return(adventure.AdventureDTO{}, fmt.Errorf("%w: stored version 5, got 3", store.ErrLocked))

	saver := newTestSaver(t, session, p, Config{Debounce: 10 * time.Millisecond})
	statuses := watchStatus(saver)

	session.UpdateNodeTitle(0, "A")
	statuses.waitFor(t, editor.SaveLocked)

	if !session.ReadOnly() {
		t.Error("session should be read-only")
	}
	if session.UpdateNodeTitle(0, "B") {
		t.Error("edit accepted after lock")
	}
	if saver.Retry() {
		t.Error("retry is only for errors")
	}
}

func TestErrorWaitsForRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPersister(ctrl)
	session := loadedSession()

	gomock.InOrder(
		p.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(adventure.AdventureDTO{}, errors.New("connection refused")),
		p.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error) {
				return serverCopy(dto), nil
			}),
	)

	saver := newTestSaver(t, session, p, Config{Debounce: 10 * time.Millisecond})
	statuses := watchStatus(saver)

	session.UpdateNodeTitle(0, "A")
	statuses.waitFor(t, editor.SaveError)
	if status, msg := session.SaveStatus(); status != editor.SaveError || msg != "connection refused" {
		t.Errorf("status = %q, %q", status, msg)
	}

	// no automatic retry
	time.Sleep(50 * time.Millisecond)
	if !session.Dirty() {
		t.Fatal("session lost its changes")
	}

	if !saver.Retry() {
		t.Fatal("retry refused")
	}
	statuses.waitFor(t, editor.SaveSaved)
	if session.Dirty() {
		t.Error("session still dirty after retry")
	}
}

// ============================================
// Status lifecycle and Flush
// ============================================

func TestSavedTurnsIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPersister(ctrl)
	session := loadedSession()

	p.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error) {
			return serverCopy(dto), nil
		})

	saver := newTestSaver(t, session, p, Config{Debounce: 10 * time.Millisecond, SavedReset: 20 * time.Millisecond})
	statuses := watchStatus(saver)

	session.UpdateNodeTitle(0, "A")
	statuses.waitFor(t, editor.SaveSaved)
	statuses.waitFor(t, editor.SaveIdle)
	if status, _ := session.SaveStatus(); status != editor.SaveIdle {
		t.Errorf("status = %q", status)
	}
}

func TestFlushSavesImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPersister(ctrl)
	session := loadedSession()

	p.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).
		DoAndReturn(func(_ context.Context, _ string, dto adventure.AdventureDTO) (adventure.AdventureDTO, error) {
			return serverCopy(dto), nil
		})

	saver := newTestSaver(t, session, p, Config{Debounce: time.Hour})
	ctx := context.Background()

	// nothing to save yet
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	session.UpdateNodeTitle(0, "A")
	if err := saver.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if session.Dirty() {
		t.Error("flush left the session dirty")
	}
	if status, _ := session.SaveStatus(); status != editor.SaveSaved {
		t.Errorf("status = %q", status)
	}
}
