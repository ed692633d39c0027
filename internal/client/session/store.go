// Package session owns the authenticated identity and bearer credential of
// the echofeed client, persists them across restarts, and gates every
// authenticated network call.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dvoronkov/echofeed/internal/client/api"
	"github.com/dvoronkov/echofeed/internal/client/config"
	"github.com/dvoronkov/echofeed/internal/client/models"
	"github.com/dvoronkov/echofeed/internal/client/repositories/metadata"
	"github.com/dvoronkov/echofeed/internal/logging"
)

// Store holds the current session. Identity and credential are always set
// or cleared together, in memory and in the local store.
type Store struct {
	transport *api.Client
	repo      metadata.Repository
	log       logging.Logger

	mu      sync.Mutex
	user    models.User
	hasUser bool
	token   string
	loading bool
	lastErr string
	subs    []func()
}

// NewStore builds a session store bound to the given durable repository.
// The HTTP transport is created here so its 401 hook can clear this store.
func NewStore(cfg *config.Config, repo metadata.Repository, log logging.Logger) *Store {
	s := &Store{repo: repo, log: log}
	s.transport = api.New(cfg.APIBaseURL, cfg.RequestTimeout, log, s.invalidate)
	return s
}

// Subscribe registers fn to run after every state transition.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Current returns the authenticated user, if any.
func (s *Store) Current() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.hasUser
}

// Loading reports whether a restore/login/register is resolving.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last user-visible error message, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError resets the last error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
	s.notify()
}

// Request is the sole network gateway for the rest of the client. It
// attaches the bearer credential when present and fails fast, without a
// network call, when requireAuth is set and no credential exists.
func (s *Store) Request(ctx context.Context, method, endpoint string, body any, requireAuth bool) api.Result {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if requireAuth && token == "" {
		return api.Failure(api.ErrAuthRequired)
	}
	return s.transport.Do(ctx, method, endpoint, token, body)
}

// invalidate is the transport's 401 hook: the server no longer accepts the
// credential, so both entries are cleared synchronously.
func (s *Store) invalidate(ctx context.Context) {
	s.clear(ctx)
	s.log.Info(ctx, "session invalidated by server")
}

func (s *Store) clear(ctx context.Context) {
	s.mu.Lock()
	s.user = models.User{}
	s.hasUser = false
	s.token = ""
	s.mu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		s.log.Warn(ctx, "failed to clear persisted session", "error", err)
	}
	s.notify()
}

// tokenUsable reports whether token can still authorize calls. Opaque
// tokens pass; a parseable JWT with an exp claim in the past does not.
func tokenUsable(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return true
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.After(time.Now())
}

// Restore loads the persisted identity and credential. Unless both entries
// are present, well-formed, and the credential is still usable, any partial
// state is cleared and the client starts anonymous.
func (s *Store) Restore(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	rawUser, userErr := s.repo.Get(ctx, metadata.KeySessionUser)
	rawToken, tokenErr := s.repo.Get(ctx, metadata.KeySessionToken)

	if userErr != nil || tokenErr != nil || len(rawToken) == 0 {
		if !errors.Is(userErr, metadata.ErrNotFound) && userErr != nil {
			s.log.Warn(ctx, "failed to read persisted session", "error", userErr)
		}
		s.clear(ctx)
		return
	}

	var user models.User
	if err := json.Unmarshal(rawUser, &user); err != nil || user.ID == "" {
		s.log.Warn(ctx, "persisted identity unreadable, dropping session")
		s.clear(ctx)
		return
	}

	token := string(rawToken)
	if !tokenUsable(token) {
		s.log.Info(ctx, "persisted credential expired, dropping session")
		s.clear(ctx)
		return
	}

	s.mu.Lock()
	s.user = user
	s.hasUser = true
	s.token = token
	s.mu.Unlock()
	s.notify()
	s.log.Info(ctx, "session restored", "user_id", user.ID)
}

// authResponse is the payload of both auth endpoints.
type authResponse struct {
	Success bool           `json:"success"`
	Token   string         `json:"token"`
	User    models.APIUser `json:"user"`
}

// Login authenticates with the remote API. Validation failures return
// before any network call; on success the identity and credential are
// stored and persisted together.
func (s *Store) Login(ctx context.Context, email, password string) error {
	if err := validateLogin(email, password); err != nil {
		s.setErr(err)
		return err
	}

	s.setLoading(true)
	defer s.setLoading(false)

	res := s.Request(ctx, "POST", "/auth/login", map[string]string{
		"email":    strings.ToLower(strings.TrimSpace(email)),
		"password": strings.TrimSpace(password),
	}, false)

	return s.adopt(ctx, res, "invalid email or password")
}

// Register creates an account and, on success, behaves like Login. An
// empty username defaults to the email local part.
func (s *Store) Register(ctx context.Context, name, email, password, username string) error {
	if err := validateRegister(name, email, password); err != nil {
		s.setErr(err)
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" {
		username = models.EmailLocalPart(email)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	res := s.Request(ctx, "POST", "/auth/register", map[string]string{
		"email":        email,
		"password":     strings.TrimSpace(password),
		"display_name": strings.TrimSpace(name),
		"username":     username,
	}, false)

	return s.adopt(ctx, res, "registration failed")
}

// adopt turns a successful auth response into the active session. Prior
// state stays untouched on failure; the 401 path has already cleared it
// through the transport hook.
func (s *Store) adopt(ctx context.Context, res api.Result, rejectMsg string) error {
	if res.Err != nil {
		s.setErr(res.Err)
		return res.Err
	}

	var auth authResponse
	if err := res.Decode(&auth); err != nil {
		s.setErr(err)
		return err
	}
	if auth.Token == "" || auth.User.UserID == "" {
		err := fmt.Errorf("%w: %s", api.ErrServerRejected, rejectMsg)
		s.setErr(err)
		return err
	}

	user := models.NormalizeUser(auth.User)

	s.mu.Lock()
	s.user = user
	s.hasUser = true
	s.token = auth.Token
	s.lastErr = ""
	s.mu.Unlock()

	encoded, err := json.Marshal(user)
	if err == nil {
		err = s.repo.SetAll(ctx, map[string][]byte{
			metadata.KeySessionUser:  encoded,
			metadata.KeySessionToken: []byte(auth.Token),
		})
	}
	if err != nil {
		// The in-memory session stands; it just will not survive a restart.
		s.log.Warn(ctx, "failed to persist session", "error", err)
	}

	s.notify()
	s.log.Info(ctx, "logged in", "user_id", user.ID)
	return nil
}

// Logout synchronously clears in-memory and persisted identity/credential.
func (s *Store) Logout(ctx context.Context) {
	s.clear(ctx)
	s.log.Info(ctx, "logged out")
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.notify()
}
