// Package store persists client session state as a single JSON file.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// User is the client-side profile snapshot.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Credential is the persisted auth state.
type Credential struct {
	Token   string    `json:"token"`
	User    User      `json:"user"`
	SavedAt time.Time `json:"saved_at"`
}

// ActiveConversation records which counterpart was open, so a restart
// can restore the view.
type ActiveConversation struct {
	User User `json:"user"`
}

// CachedMessage is the offline copy of a conversation entry.
type CachedMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	credentialKey   = "credential"
	conversationKey = "active_conversation"
	messagesKey     = "messages"
)

// Older clients scattered state across several keys; reads fall back
// through the aliases so existing state survives an upgrade.
var (
	legacyTokenKeys = []string{"token", "authToken", "jwtToken"}
	legacyUserKeys  = []string{"user", "currentUser", "loggedInUser"}
)

// FileStore is a durable JSON key-value file. Writes go through a
// temp file and rename, so a crash never leaves a half-written state.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}

	state := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &state); err != nil {
		// An unreadable file is treated as empty rather than fatal.
		return map[string]json.RawMessage{}, nil
	}
	return state, nil
}

func (s *FileStore) save(state map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	state[key] = raw
	return s.save(state)
}

func (s *FileStore) delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(state, key)
	}
	return s.save(state)
}

// ReadCredential returns the stored credential, or nil when none
// exists. State written by older clients under the legacy token/user
// aliases is assembled into a credential transparently.
func (s *FileStore) ReadCredential() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}

	if raw, ok := state[credentialKey]; ok {
		var cred Credential
		if err := json.Unmarshal(raw, &cred); err == nil && cred.Token != "" {
			return &cred, nil
		}
	}

	return legacyCredential(state), nil
}

func legacyCredential(state map[string]json.RawMessage) *Credential {
	var token string
	for _, key := range legacyTokenKeys {
		raw, ok := state[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &token); err == nil && token != "" {
			break
		}
		token = ""
	}
	if token == "" {
		return nil
	}

	cred := &Credential{Token: token}
	for _, key := range legacyUserKeys {
		raw, ok := state[key]
		if !ok {
			continue
		}
		if u, ok := decodeLegacyUser(raw); ok {
			cred.User = u
			break
		}
	}
	return cred
}

// decodeLegacyUser tolerates the field names older payloads used.
func decodeLegacyUser(raw json.RawMessage) (User, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return User{}, false
	}

	str := func(keys ...string) string {
		for _, k := range keys {
			raw, ok := fields[k]
			if !ok {
				continue
			}
			var v string
			if err := json.Unmarshal(raw, &v); err == nil && v != "" {
				return v
			}
		}
		return ""
	}

	u := User{
		ID:        str("id", "_id", "userId"),
		Name:      str("name", "username", "displayName"),
		Email:     str("email"),
		AvatarURL: str("avatar_url", "avatarUrl", "avatar"),
	}
	return u, u.ID != "" || u.Name != ""
}

// WriteCredential persists the credential under the canonical key and
// removes any legacy aliases it supersedes.
func (s *FileStore) WriteCredential(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	for _, key := range legacyTokenKeys {
		delete(state, key)
	}
	for _, key := range legacyUserKeys {
		delete(state, key)
	}
	cred.SavedAt = time.Now().UTC()
	raw, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	state[credentialKey] = raw
	return s.save(state)
}

// ClearCredential removes the credential and all its legacy aliases.
func (s *FileStore) ClearCredential() error {
	keys := append([]string{credentialKey}, legacyTokenKeys...)
	keys = append(keys, legacyUserKeys...)
	return s.delete(keys...)
}

func (s *FileStore) ReadActiveConversation() (*ActiveConversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	raw, ok := state[conversationKey]
	if !ok {
		return nil, nil
	}
	var conv ActiveConversation
	if err := json.Unmarshal(raw, &conv); err != nil || conv.User.ID == "" {
		return nil, nil
	}
	return &conv, nil
}

func (s *FileStore) WriteActiveConversation(conv ActiveConversation) error {
	return s.set(conversationKey, conv)
}

func (s *FileStore) ClearActiveConversation() error {
	return s.delete(conversationKey)
}

// ReadMessages returns the cached history for a counterpart, oldest
// first. A missing cache is an empty slice.
func (s *FileStore) ReadMessages(counterpartID string) ([]CachedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	raw, ok := state[messagesKey]
	if !ok {
		return nil, nil
	}
	caches := map[string][]CachedMessage{}
	if err := json.Unmarshal(raw, &caches); err != nil {
		return nil, nil
	}
	return caches[counterpartID], nil
}

func (s *FileStore) WriteMessages(counterpartID string, msgs []CachedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	caches := map[string][]CachedMessage{}
	if raw, ok := state[messagesKey]; ok {
		_ = json.Unmarshal(raw, &caches)
	}
	caches[counterpartID] = msgs
	raw, err := json.Marshal(caches)
	if err != nil {
		return err
	}
	state[messagesKey] = raw
	return s.save(state)
}
