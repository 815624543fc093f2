package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"cosmic-chat/internal/client/store"
	cosmic_errors "cosmic-chat/pkg/errors"

	"github.com/google/uuid"
)

// ConversationState is the view controller's lifecycle position.
type ConversationState string

const (
	ConversationNone    ConversationState = "no_conversation"
	ConversationLoading ConversationState = "loading"
	ConversationActive  ConversationState = "active"
)

// EntryStatus tracks an entry through the optimistic send cycle.
type EntryStatus string

const (
	EntrySending EntryStatus = "sending"
	EntrySent    EntryStatus = "sent"
	EntryFailed  EntryStatus = "failed"
)

// Entry is one visible message in the conversation view. LocalID is
// assigned client-side and correlates an optimistic entry with its
// confirmation; ServerID is set once the server accepts it.
type Entry struct {
	LocalID   string
	ServerID  string
	SenderID  string
	Content   string
	Status    EntryStatus
	CreatedAt time.Time
}

// ControllerOptions tunes restore behavior.
type ControllerOptions struct {
	// RestoreOnLoad waits for the session user with bounded fixed-delay
	// retries. Defaults 5 / 500ms.
	RestoreRetries int
	RestoreDelay   time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
}

func (o *ControllerOptions) withDefaults() {
	if o.RestoreRetries <= 0 {
		o.RestoreRetries = 5
	}
	if o.RestoreDelay <= 0 {
		o.RestoreDelay = 500 * time.Millisecond
	}
	if o.Sleep == nil {
		o.Sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
}

// Controller drives a single conversation view: opening, history
// loading with cache fallback, optimistic sends, and restart restore.
type Controller struct {
	api     *API
	session *Session
	store   *store.FileStore
	opts    ControllerOptions

	mu          sync.Mutex
	state       ConversationState
	counterpart store.User
	entries     []Entry
	epoch       int
	reloading   bool
}

func NewController(api *API, session *Session, st *store.FileStore, opts ControllerOptions) *Controller {
	opts.withDefaults()
	return &Controller{
		api:     api,
		session: session,
		store:   st,
		opts:    opts,
		state:   ConversationNone,
	}
}

func (c *Controller) State() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Counterpart() store.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counterpart
}

// Entries returns a copy of the visible message list.
func (c *Controller) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Start opens a conversation with the given counterpart, persists the
// active pointer, and loads history. A network failure falls back to
// the cached copy, or an empty first-contact view. A result that
// arrives after the counterpart changed again is discarded.
func (c *Controller) Start(ctx context.Context, counterpart store.User) error {
	if counterpart.ID == "" || counterpart.Name == "" {
		c.mu.Lock()
		c.state = ConversationNone
		c.mu.Unlock()
		return cosmic_errors.ErrInvalidInput
	}

	if err := c.store.WriteActiveConversation(store.ActiveConversation{User: counterpart}); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = ConversationLoading
	c.counterpart = counterpart
	c.entries = nil
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	msgs, err := c.api.ListMessages(ctx, c.session, counterpart.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.counterpart.ID != counterpart.ID {
		return nil // stale load, a newer Start owns the view
	}

	if err != nil {
		cached, cacheErr := c.store.ReadMessages(counterpart.ID)
		if cacheErr == nil && len(cached) > 0 {
			c.entries = entriesFromCache(cached)
		} else {
			c.entries = nil
		}
		c.state = ConversationActive
		return nil
	}

	c.entries = entriesFromMessages(msgs)
	c.state = ConversationActive
	c.cacheLocked(counterpart.ID)
	return nil
}

// RestoreOnLoad reopens the conversation recorded before the last
// shutdown. It waits for the session user with bounded retries,
// re-fetches the counterpart profile, and falls back to the persisted
// snapshot when the fetch fails.
func (c *Controller) RestoreOnLoad(ctx context.Context) error {
	pointer, err := c.store.ReadActiveConversation()
	if err != nil || pointer == nil {
		c.mu.Lock()
		c.state = ConversationNone
		c.mu.Unlock()
		return err
	}

	ready := false
	for attempt := 0; attempt < c.opts.RestoreRetries; attempt++ {
		if c.session.User().ID != "" {
			ready = true
			break
		}
		if err := c.opts.Sleep(ctx, c.opts.RestoreDelay); err != nil {
			return err
		}
	}
	if !ready {
		c.mu.Lock()
		c.state = ConversationNone
		c.mu.Unlock()
		return cosmic_errors.ErrUnauthorized
	}

	counterpart, err := c.api.GetUser(ctx, c.session, pointer.User.ID)
	if err != nil || counterpart.ID == "" {
		counterpart = pointer.User
	}
	return c.Start(ctx, counterpart)
}

// Send appends an optimistic entry and posts the message. Success
// confirms the entry and triggers an authoritative reload; failure
// marks it failed and keeps it visible for a manual retry.
func (c *Controller) Send(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", cosmic_errors.ErrInvalidInput
	}

	c.mu.Lock()
	if c.state != ConversationActive {
		c.mu.Unlock()
		return "", cosmic_errors.ErrInvalidInput
	}
	entry := Entry{
		LocalID:   uuid.NewString(),
		SenderID:  c.session.User().ID,
		Content:   text,
		Status:    EntrySending,
		CreatedAt: time.Now().UTC(),
	}
	c.entries = append(c.entries, entry)
	receiverID := c.counterpart.ID
	c.mu.Unlock()

	return entry.LocalID, c.deliver(ctx, entry.LocalID, receiverID, text)
}

// Retry re-sends a failed entry in place. The entry keeps its local
// id, so a successful retry cannot duplicate it.
func (c *Controller) Retry(ctx context.Context, localID string) error {
	c.mu.Lock()
	idx := c.indexOfLocked(localID)
	if idx < 0 || c.entries[idx].Status != EntryFailed {
		c.mu.Unlock()
		return cosmic_errors.ErrInvalidInput
	}
	c.entries[idx].Status = EntrySending
	receiverID := c.counterpart.ID
	text := c.entries[idx].Content
	c.mu.Unlock()

	return c.deliver(ctx, localID, receiverID, text)
}

func (c *Controller) deliver(ctx context.Context, localID, receiverID, text string) error {
	msg, err := c.api.SendMessage(ctx, c.session, receiverID, text)

	c.mu.Lock()
	if c.counterpart.ID != receiverID {
		c.mu.Unlock()
		return nil // conversation switched mid-flight
	}
	idx := c.indexOfLocked(localID)
	if idx < 0 {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		c.entries[idx].Status = EntryFailed
		c.mu.Unlock()
		return err
	}
	c.entries[idx].ServerID = msg.ID
	c.entries[idx].Status = EntrySent
	c.entries[idx].CreatedAt = msg.CreatedAt
	c.mu.Unlock()

	c.reload(ctx, receiverID)
	return nil
}

// reload replaces the view with the server's authoritative list.
// Confirmed optimistic entries are matched by server id and dropped in
// favor of the loaded rows; in-flight and failed ones stay appended.
// One reload runs at a time.
func (c *Controller) reload(ctx context.Context, counterpartID string) {
	c.mu.Lock()
	if c.reloading {
		c.mu.Unlock()
		return
	}
	c.reloading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.reloading = false
		c.mu.Unlock()
	}()

	msgs, err := c.api.ListMessages(ctx, c.session, counterpartID)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counterpart.ID != counterpartID {
		return
	}

	loaded := entriesFromMessages(msgs)
	for _, e := range c.entries {
		if e.Status == EntrySending || e.Status == EntryFailed {
			loaded = append(loaded, e)
		}
		// Confirmed optimistic entries are superseded by their
		// authoritative rows in the loaded list.
	}
	c.entries = loaded
	c.cacheLocked(counterpartID)
}

// Close leaves the conversation and forgets the active pointer.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.state = ConversationNone
	c.counterpart = store.User{}
	c.entries = nil
	c.epoch++
	c.mu.Unlock()
	return c.store.ClearActiveConversation()
}

func (c *Controller) indexOfLocked(localID string) int {
	for i := range c.entries {
		if c.entries[i].LocalID == localID {
			return i
		}
	}
	return -1
}

// cacheLocked persists the confirmed entries for offline fallback.
// Caller holds the mutex.
func (c *Controller) cacheLocked(counterpartID string) {
	cached := make([]store.CachedMessage, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Status != EntrySent {
			continue
		}
		cached = append(cached, store.CachedMessage{
			ID:        e.ServerID,
			SenderID:  e.SenderID,
			Content:   e.Content,
			Status:    string(e.Status),
			CreatedAt: e.CreatedAt,
		})
	}
	_ = c.store.WriteMessages(counterpartID, cached)
}

func entriesFromMessages(msgs []Message) []Entry {
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, Entry{
			LocalID:   m.ID,
			ServerID:  m.ID,
			SenderID:  m.SenderID,
			Content:   m.Content,
			Status:    EntrySent,
			CreatedAt: m.CreatedAt,
		})
	}
	return entries
}

func entriesFromCache(cached []store.CachedMessage) []Entry {
	entries := make([]Entry, 0, len(cached))
	for _, m := range cached {
		entries = append(entries, Entry{
			LocalID:   m.ID,
			ServerID:  m.ID,
			SenderID:  m.SenderID,
			Content:   m.Content,
			Status:    EntrySent,
			CreatedAt: m.CreatedAt,
		})
	}
	return entries
}
