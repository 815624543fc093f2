package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cosmic-chat/internal/client/store"
	cosmic_errors "cosmic-chat/pkg/errors"
)

func newAuthenticatedSession(t *testing.T, baseURL string) (*Session, *store.FileStore, *API) {
	t.Helper()
	st := newTestStoreFile(t)
	if err := st.WriteCredential(store.Credential{Token: "opaque-token", User: store.User{ID: "u1", Name: "ana", Email: "ana@example.com"}}); err != nil {
		t.Fatalf("WriteCredential: %v", err)
	}
	api := NewAPI(baseURL, nil)
	s := NewSession(api, st, nil, SessionOptions{})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s, st, api
}

func writeMessages(w http.ResponseWriter, msgs []Message) {
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": msgs})
}

func TestStartRejectsIncompleteCounterpart(t *testing.T) {
	st := newTestStoreFile(t)
	api := NewAPI("http://unused", nil)
	s := NewSession(api, st, nil, SessionOptions{})
	c := NewController(api, s, st, ControllerOptions{})

	if err := c.Start(context.Background(), store.User{ID: "u2"}); err != cosmic_errors.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if c.State() != ConversationNone {
		t.Fatalf("expected no conversation, got %s", c.State())
	}
}

func TestStartFirstContactOnNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, st, api := newAuthenticatedSession(t, srv.URL)
	c := NewController(api, s, st, ControllerOptions{})

	if err := c.Start(context.Background(), store.User{ID: "u2", Name: "ben"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != ConversationActive {
		t.Fatalf("expected active first-contact view, got %s", c.State())
	}
	if len(c.Entries()) != 0 {
		t.Fatalf("expected empty history, got %+v", c.Entries())
	}

	pointer, err := st.ReadActiveConversation()
	if err != nil || pointer == nil || pointer.User.ID != "u2" {
		t.Fatalf("active pointer should be persisted, got %+v err=%v", pointer, err)
	}
}

func TestStartFallsBackToCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, st, api := newAuthenticatedSession(t, srv.URL)
	cached := []store.CachedMessage{
		{ID: "m1", SenderID: "u2", Content: "cached hello", Status: "sent", CreatedAt: time.Now().UTC()},
	}
	if err := st.WriteMessages("u2", cached); err != nil {
		t.Fatalf("WriteMessages: %v", err)
	}

	c := NewController(api, s, st, ControllerOptions{})
	if err := c.Start(context.Background(), store.User{ID: "u2", Name: "ben"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	entries := c.Entries()
	if len(entries) != 1 || entries[0].Content != "cached hello" {
		t.Fatalf("expected cached history, got %+v", entries)
	}
	if c.State() != ConversationActive {
		t.Fatalf("expected active, got %s", c.State())
	}
}

func TestOptimisticSendFailureKeepsSingleEntry(t *testing.T) {
	var sendOK atomic.Bool
	var serverMsgs []Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			writeMessages(w, serverMsgs)
		case r.Method == http.MethodPost:
			if !sendOK.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			msg := Message{
				ID:          "srv-1",
				SenderID:    "u1",
				ReceiverID:  "u2",
				Content:     "hello",
				IsEncrypted: true,
				Status:      "SENT",
				CreatedAt:   time.Now().UTC(),
			}
			serverMsgs = append(serverMsgs, msg)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": msg})
		}
	}))
	defer srv.Close()

	s, st, api := newAuthenticatedSession(t, srv.URL)
	c := NewController(api, s, st, ControllerOptions{})

	if err := c.Start(context.Background(), store.User{ID: "u2", Name: "ben"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	localID, err := c.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected send failure")
	}

	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
	if entries[0].Content != "hello" || entries[0].Status != EntryFailed {
		t.Fatalf("expected failed hello entry, got %+v", entries[0])
	}
	if entries[0].LocalID != localID {
		t.Fatal("returned local id should identify the entry")
	}

	// Manual retry reuses the entry; success supersedes it with the
	// authoritative row, never duplicating it.
	sendOK.Store(true)
	if err := c.Retry(context.Background(), localID); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	entries = c.Entries()
	count := 0
	for _, e := range entries {
		if e.Content == "hello" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one hello entry after retry, got %d (%+v)", count, entries)
	}
	if entries[0].Status != EntrySent || entries[0].ServerID != "srv-1" {
		t.Fatalf("expected confirmed entry, got %+v", entries[0])
	}
}

func TestSendVisibleAfterReloadAtPageLimit(t *testing.T) {
	const window = 100

	// A long-running conversation already filling the history page.
	base := time.Now().UTC().Add(-time.Hour)
	var serverMsgs []Message
	for i := 0; i < window; i++ {
		serverMsgs = append(serverMsgs, Message{
			ID:        fmt.Sprintf("old-%d", i),
			SenderID:  "u2",
			Content:   fmt.Sprintf("old %d", i),
			Status:    "READ",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			// Newest rows win the page, oldest first.
			page := serverMsgs
			if len(page) > window {
				page = page[len(page)-window:]
			}
			writeMessages(w, page)
		case http.MethodPost:
			msg := Message{
				ID:        "srv-new",
				SenderID:  "u1",
				Content:   "hello",
				Status:    "SENT",
				CreatedAt: time.Now().UTC(),
			}
			serverMsgs = append(serverMsgs, msg)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": msg})
		}
	}))
	defer srv.Close()

	s, st, api := newAuthenticatedSession(t, srv.URL)
	c := NewController(api, s, st, ControllerOptions{})
	if err := c.Start(context.Background(), store.User{ID: "u2", Name: "ben"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len(c.Entries()); got != window {
		t.Fatalf("expected full page before send, got %d", got)
	}

	if _, err := c.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	entries := c.Entries()
	if len(entries) != window {
		t.Fatalf("expected the page to stay at %d entries, got %d", window, len(entries))
	}
	count := 0
	for _, e := range entries {
		if e.Content == "hello" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected the sent message exactly once, got %d (%d entries)", count, len(entries))
	}
	last := entries[len(entries)-1]
	if last.ServerID != "srv-new" || last.Status != EntrySent {
		t.Fatalf("expected confirmed row last, got %+v", last)
	}
	if entries[0].Content != "old 1" {
		t.Fatalf("expected oldest row evicted from the page, got %q first", entries[0].Content)
	}
}

func TestSendRejectsBlankText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessages(w, nil)
	}))
	defer srv.Close()

	s, st, api := newAuthenticatedSession(t, srv.URL)
	c := NewController(api, s, st, ControllerOptions{})
	if err := c.Start(context.Background(), store.User{ID: "u2", Name: "ben"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := c.Send(context.Background(), "   \n"); err != cosmic_errors.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(c.Entries()) != 0 {
		t.Fatal("blank send must not append an entry")
	}
}

func TestRestoreOnLoadWithCachedSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/users/u2":
			// Profile re-fetch fails; restore falls back to the
			// persisted snapshot.
			w.WriteHeader(http.StatusInternalServerError)
		case r.Method == http.MethodGet:
			writeMessages(w, []Message{
				{ID: "m1", SenderID: "u2", ReceiverID: "u1", Content: "welcome back", Status: "READ", CreatedAt: time.Now().UTC()},
			})
		}
	}))
	defer srv.Close()

	s, st, api := newAuthenticatedSession(t, srv.URL)
	if err := st.WriteActiveConversation(store.ActiveConversation{User: store.User{ID: "u2", Name: "ben", AvatarURL: "http://cdn/b.png"}}); err != nil {
		t.Fatalf("WriteActiveConversation: %v", err)
	}

	c := NewController(api, s, st, ControllerOptions{})
	if err := c.RestoreOnLoad(context.Background()); err != nil {
		t.Fatalf("RestoreOnLoad: %v", err)
	}

	if c.State() != ConversationActive {
		t.Fatalf("expected active after restore, got %s", c.State())
	}
	if got := c.Counterpart(); got.ID != "u2" || got.Name != "ben" || got.AvatarURL != "http://cdn/b.png" {
		t.Fatalf("expected cached snapshot counterpart, got %+v", got)
	}
	entries := c.Entries()
	if len(entries) != 1 || entries[0].Content != "welcome back" {
		t.Fatalf("expected restored history, got %+v", entries)
	}
}

func TestRestoreOnLoadWithoutPointer(t *testing.T) {
	s, st, api := newAuthenticatedSession(t, "http://unused")
	c := NewController(api, s, st, ControllerOptions{})

	if err := c.RestoreOnLoad(context.Background()); err != nil {
		t.Fatalf("RestoreOnLoad: %v", err)
	}
	if c.State() != ConversationNone {
		t.Fatalf("expected no conversation, got %s", c.State())
	}
}

func TestRestoreOnLoadWaitsForSession(t *testing.T) {
	st := newTestStoreFile(t)
	api := NewAPI("http://unused", nil)
	s := NewSession(api, st, nil, SessionOptions{})
	if err := st.WriteActiveConversation(store.ActiveConversation{User: store.User{ID: "u2", Name: "ben"}}); err != nil {
		t.Fatalf("WriteActiveConversation: %v", err)
	}

	sleeps := 0
	c := NewController(api, s, st, ControllerOptions{
		RestoreRetries: 3,
		RestoreDelay:   10 * time.Millisecond,
		Sleep: func(context.Context, time.Duration) error {
			sleeps++
			return nil
		},
	})

	// Session never authenticates, so restore gives up after the
	// bounded wait.
	if err := c.RestoreOnLoad(context.Background()); err != cosmic_errors.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if sleeps != 3 {
		t.Fatalf("expected 3 bounded waits, got %d", sleeps)
	}
	if c.State() != ConversationNone {
		t.Fatalf("expected no conversation, got %s", c.State())
	}
}
