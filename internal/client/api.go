// Package client is the Go client library for the chat API: a thin
// HTTP wrapper, a token-managing session, and a conversation view
// controller with optimistic sends and restart restore.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cosmic-chat/internal/client/store"
	cosmic_errors "cosmic-chat/pkg/errors"
)

// Doer issues HTTP requests. The session implements it so API calls
// pick up bearer injection and the 401 refresh-retry cycle.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthResult mirrors the auth endpoints' response payload.
type AuthResult struct {
	Token     string     `json:"token"`
	ExpiresIn int64      `json:"expires_in"`
	User      store.User `json:"user"`
}

// Message mirrors the message endpoints' response payload.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	ReceiverID  string    `json:"receiver_id"`
	Content     string    `json:"content"`
	IsEncrypted bool      `json:"is_encrypted"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// API wraps the server's HTTP surface.
type API struct {
	baseURL string
	httpc   *http.Client
}

func NewAPI(baseURL string, httpc *http.Client) *API {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{baseURL: baseURL, httpc: httpc}
}

func (a *API) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func decode[T any](resp *http.Response) (T, error) {
	defer resp.Body.Close()

	var env envelope[T]
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			var zero T
			return zero, decodeErr
		}
		return env.Data, nil
	}

	var zero T
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return zero, cosmic_errors.ErrUnauthorized
	case http.StatusForbidden:
		return zero, cosmic_errors.ErrForbidden
	case http.StatusNotFound:
		return zero, cosmic_errors.ErrNotFound
	case http.StatusTooManyRequests:
		return zero, cosmic_errors.ErrRateLimited
	case http.StatusBadRequest:
		return zero, cosmic_errors.ErrInvalidInput
	}
	if env.Error != "" {
		return zero, fmt.Errorf("request failed: %s", env.Error)
	}
	return zero, fmt.Errorf("request failed with status %d", resp.StatusCode)
}

// RefreshToken exchanges stored identity for a fresh bearer token.
// It goes out unauthenticated: it is the call that runs when the
// current token is no longer usable.
func (a *API) RefreshToken(ctx context.Context, email, userID string) (AuthResult, error) {
	body := map[string]string{}
	if email != "" {
		body["email"] = email
	}
	if userID != "" {
		body["user_id"] = userID
	}
	req, err := a.newRequest(ctx, http.MethodPost, "/v1/auth/refresh-token", body)
	if err != nil {
		return AuthResult{}, err
	}
	resp, err := a.httpc.Do(req)
	if err != nil {
		return AuthResult{}, err
	}
	return decode[AuthResult](resp)
}

// Login authenticates with email and password.
func (a *API) Login(ctx context.Context, email, password string) (AuthResult, error) {
	req, err := a.newRequest(ctx, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return AuthResult{}, err
	}
	resp, err := a.httpc.Do(req)
	if err != nil {
		return AuthResult{}, err
	}
	return decode[AuthResult](resp)
}

// GetUser fetches a counterpart's public profile snapshot.
func (a *API) GetUser(ctx context.Context, d Doer, id string) (store.User, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/v1/users/"+id, nil)
	if err != nil {
		return store.User{}, err
	}
	resp, err := d.Do(req)
	if err != nil {
		return store.User{}, err
	}
	return decode[store.User](resp)
}

// ListMessages fetches the decrypted conversation with a counterpart,
// oldest first.
func (a *API) ListMessages(ctx context.Context, d Doer, counterpartID string) ([]Message, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/v1/messages/"+counterpartID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.Do(req)
	if err != nil {
		return nil, err
	}
	return decode[[]Message](resp)
}

// SendMessage posts a new message to a counterpart.
func (a *API) SendMessage(ctx context.Context, d Doer, receiverID, content string) (Message, error) {
	req, err := a.newRequest(ctx, http.MethodPost, "/v1/messages", map[string]string{
		"receiver_id": receiverID,
		"content":     content,
	})
	if err != nil {
		return Message{}, err
	}
	resp, err := d.Do(req)
	if err != nil {
		return Message{}, err
	}
	return decode[Message](resp)
}
