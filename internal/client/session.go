package client

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"cosmic-chat/internal/client/store"
	cosmic_errors "cosmic-chat/pkg/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
)

// SessionState is the lifecycle position of the client session.
type SessionState string

const (
	SessionUninitialized   SessionState = "uninitialized"
	SessionRestoring       SessionState = "restoring"
	SessionAuthenticated   SessionState = "authenticated"
	SessionUnauthenticated SessionState = "unauthenticated"
	SessionRefreshing      SessionState = "refreshing"
	SessionFailed          SessionState = "failed"
)

// SessionOptions tunes restore and refresh behavior. Zero values get
// the defaults below.
type SessionOptions struct {
	// RefreshThreshold is how close to expiry a token may be before it
	// counts as invalid and triggers a refresh. Default 5m.
	RefreshThreshold time.Duration
	// Exponential backoff between refresh attempts: base interval,
	// doubling, capped. Defaults 1s / 30s / 5 attempts.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	MaxRetries  int
	// RedirectDelay is how long after refresh exhaustion the login
	// redirect fires. Default 3s.
	RedirectDelay time.Duration

	// OnSessionExpired runs once when refresh is exhausted, before the
	// redirect is scheduled.
	OnSessionExpired func()
	// ScheduleRedirect schedules navigation to the login surface. The
	// default is a no-op for embedders that poll State instead.
	ScheduleRedirect func(delay time.Duration)

	// Injected for tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func (o *SessionOptions) withDefaults() {
	if o.RefreshThreshold <= 0 {
		o.RefreshThreshold = 5 * time.Minute
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.RedirectDelay <= 0 {
		o.RedirectDelay = 3 * time.Second
	}
	if o.ScheduleRedirect == nil {
		o.ScheduleRedirect = func(time.Duration) {}
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
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Session restores, validates, and refreshes the stored credential,
// and authenticates outgoing requests.
type Session struct {
	api   *API
	store *store.FileStore
	httpc *http.Client
	opts  SessionOptions

	mu         sync.Mutex
	state      SessionState
	token      string
	user       store.User
	refreshing bool
}

func NewSession(api *API, st *store.FileStore, httpc *http.Client, opts SessionOptions) *Session {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	opts.withDefaults()
	return &Session{
		api:   api,
		store: st,
		httpc: httpc,
		opts:  opts,
		state: SessionUninitialized,
	}
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) User() store.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Initialize restores the session from the credential store: a valid
// token authenticates directly, an expiring one goes through the
// refresh cycle, nothing stored means unauthenticated. A second call
// while one is in flight is a no-op.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionUninitialized {
		s.mu.Unlock()
		return nil
	}
	s.state = SessionRestoring
	s.mu.Unlock()

	cred, err := s.store.ReadCredential()
	if err != nil || cred == nil {
		s.setState(SessionUnauthenticated)
		return err
	}

	s.mu.Lock()
	s.token = cred.Token
	s.user = cred.User
	s.mu.Unlock()

	if s.isTokenValid(cred.Token) {
		s.setState(SessionAuthenticated)
		return nil
	}
	return s.Refresh(ctx)
}

// SetCredential installs a freshly obtained credential (e.g. after an
// interactive login) and persists it.
func (s *Session) SetCredential(res AuthResult) error {
	s.mu.Lock()
	s.token = res.Token
	s.user = res.User
	s.state = SessionAuthenticated
	s.mu.Unlock()
	return s.store.WriteCredential(store.Credential{Token: res.Token, User: res.User})
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// isTokenValid treats a token as valid when it is opaque (not JWT
// shaped), or when its exp claim is further out than the refresh
// threshold. No signature check happens client-side.
func (s *Session) isTokenValid(token string) bool {
	if strings.Count(token, ".") != 2 {
		return token != ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Time.After(s.opts.Now().Add(s.opts.RefreshThreshold))
}

// Refresh runs the exponential-backoff refresh cycle. On success the
// new credential is persisted; on exhaustion all session state is
// cleared, the expiry callback fires, and a login redirect is
// scheduled. Only one cycle runs at a time.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return nil
	}
	s.refreshing = true
	s.state = SessionRefreshing
	email, userID := s.user.Email, s.user.ID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	bo := &backoff.ExponentialBackOff{
		InitialInterval:     s.opts.BackoffBase,
		Multiplier:          2,
		MaxInterval:         s.opts.BackoffCap,
		RandomizationFactor: 0,
		Clock:               backoff.SystemClock,
		Stop:                backoff.Stop,
	}
	bo.Reset()

	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		res, err := s.api.RefreshToken(ctx, email, userID)
		if err == nil {
			if err := s.SetCredential(res); err != nil {
				return err
			}
			return nil
		}

		if attempt < s.opts.MaxRetries-1 {
			if err := s.opts.Sleep(ctx, bo.NextBackOff()); err != nil {
				break
			}
		}
	}

	s.expire()
	return cosmic_errors.ErrSessionExpired
}

func (s *Session) expire() {
	s.mu.Lock()
	s.token = ""
	s.user = store.User{}
	s.state = SessionFailed
	s.mu.Unlock()

	_ = s.store.ClearCredential()

	if s.opts.OnSessionExpired != nil {
		s.opts.OnSessionExpired()
	}
	s.opts.ScheduleRedirect(s.opts.RedirectDelay)
}

// Logout clears the session and its stored credential.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.token = ""
	s.user = store.User{}
	s.state = SessionUnauthenticated
	s.mu.Unlock()
	return s.store.ClearCredential()
}

// Do sends the request with the bearer token attached. A 401 response
// triggers exactly one Refresh cycle and one retry; exhaustion of the
// cycle surfaces ErrSessionExpired, a second 401 ErrUnauthorized.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	token := s.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if err := s.Refresh(req.Context()); err != nil {
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+s.Token())

	resp, err = s.httpc.Do(retry)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, cosmic_errors.ErrUnauthorized
	}
	return resp, nil
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}
