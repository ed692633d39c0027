package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvoronkov/echofeed/internal/client/api"
	"github.com/dvoronkov/echofeed/internal/client/config"
	"github.com/dvoronkov/echofeed/internal/client/models"
	"github.com/dvoronkov/echofeed/internal/client/repositories/metadata"
	"github.com/dvoronkov/echofeed/internal/logging"

	_ "modernc.org/sqlite"
)

func setupRepo(t *testing.T) *metadata.SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite", "file:sessiontest?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM metadata`)
	require.NoError(t, err)
	return metadata.NewSQLiteRepository(db)
}

// newStore builds a session store backed by an httptest server. requests
// counts every call that actually reached the network.
func newStore(t *testing.T, handler http.HandlerFunc) (*Store, *metadata.SQLiteRepository, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIBaseURL = srv.URL

	repo := setupRepo(t)
	return NewStore(cfg, repo, logging.NopLogger{}), repo, &requests
}

func okAuthHandler(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"token":   token,
			"user": map[string]string{
				"user_id": "u1",
				"email":   "alice@example.com",
			},
		})
	}
}

func TestLogin_ValidationErrorsSkipNetwork(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "", password: "secret"},
		{name: "empty password", email: "a@b.io", password: "  "},
		{name: "not an email", email: "not-an-email", password: "x"},
		{name: "missing tld", email: "a@b", password: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, requests := newStore(t, okAuthHandler("tok"))

			err := s.Login(context.Background(), tt.email, tt.password)

			require.ErrorIs(t, err, api.ErrValidation)
			assert.Zero(t, requests.Load(), "no network call may be attempted")
			_, ok := s.Current()
			assert.False(t, ok)
			assert.NotEmpty(t, s.Err())
		})
	}
}

func TestLogin_SuccessStoresAndPersistsSession(t *testing.T) {
	s, repo, _ := newStore(t, okAuthHandler("tok-1"))
	ctx := context.Background()

	require.NoError(t, s.Login(ctx, "  Alice@Example.COM ", "secret"))

	user, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "alice", user.Name, "falls back to the email local part")
	assert.False(t, s.Loading())
	assert.Empty(t, s.Err())

	rawUser, err := repo.Get(ctx, metadata.KeySessionUser)
	require.NoError(t, err)
	var persisted models.User
	require.NoError(t, json.Unmarshal(rawUser, &persisted))
	assert.Equal(t, user, persisted)

	rawToken, err := repo.Get(ctx, metadata.KeySessionToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", string(rawToken))
}

func TestLogin_ServerRejectedSurfacesMessage(t *testing.T) {
	s, _, _ := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
	})

	err := s.Login(context.Background(), "a@b.io", "secret")

	require.ErrorIs(t, err, api.ErrServerRejected)
	assert.Contains(t, err.Error(), "Invalid credentials")
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestLogin_MissingTokenInResponseIsRejected(t *testing.T) {
	s, _, _ := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	err := s.Login(context.Background(), "a@b.io", "secret")
	require.ErrorIs(t, err, api.ErrServerRejected)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name           string
		displayName    string
		email          string
		password       string
		wantErrMessage string
	}{
		{name: "short name", displayName: "A", email: "a@b.io", password: "longenough", wantErrMessage: "name"},
		{name: "bad email", displayName: "Alice", email: "nope", password: "longenough", wantErrMessage: "email"},
		{name: "short password", displayName: "Alice", email: "a@b.io", password: "12345", wantErrMessage: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, requests := newStore(t, okAuthHandler("tok"))

			err := s.Register(context.Background(), tt.displayName, tt.email, tt.password, "")

			require.ErrorIs(t, err, api.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErrMessage)
			assert.Zero(t, requests.Load())
		})
	}
}

func TestRegister_DefaultsUsernameToEmailLocalPart(t *testing.T) {
	var gotUsername string
	s, _, _ := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotUsername = body["username"]
		okAuthHandler("tok")(w, r)
	})

	require.NoError(t, s.Register(context.Background(), "Alice", "alice@example.com", "secret1", ""))
	assert.Equal(t, "alice", gotUsername)
}

func persistSession(t *testing.T, repo *metadata.SQLiteRepository, user models.User, token string) {
	t.Helper()
	encoded, err := json.Marshal(user)
	require.NoError(t, err)
	require.NoError(t, repo.SetAll(context.Background(), map[string][]byte{
		metadata.KeySessionUser:  encoded,
		metadata.KeySessionToken: []byte(token),
	}))
}

func TestRestore_BothEntriesPresent(t *testing.T) {
	s, repo, _ := newStore(t, okAuthHandler("tok"))
	persistSession(t, repo, models.User{ID: "u7", Name: "Bob", Email: "b@c.io", Username: "bob"}, "opaque-token")

	s.Restore(context.Background())

	user, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "u7", user.ID)
	assert.False(t, s.Loading())
}

func TestRestore_PartialStateClearsBoth(t *testing.T) {
	s, repo, _ := newStore(t, okAuthHandler("tok"))
	ctx := context.Background()
	// Only the identity entry is present.
	require.NoError(t, repo.SetAll(ctx, map[string][]byte{
		metadata.KeySessionUser: []byte(`{"id":"u7"}`),
	}))

	s.Restore(ctx)

	_, ok := s.Current()
	assert.False(t, ok)
	_, err := repo.Get(ctx, metadata.KeySessionUser)
	assert.ErrorIs(t, err, metadata.ErrNotFound, "the dangling entry is cleared too")
}

func TestRestore_MalformedIdentityClears(t *testing.T) {
	s, repo, _ := newStore(t, okAuthHandler("tok"))
	ctx := context.Background()
	require.NoError(t, repo.SetAll(ctx, map[string][]byte{
		metadata.KeySessionUser:  []byte(`not json`),
		metadata.KeySessionToken: []byte("tok"),
	}))

	s.Restore(ctx)

	_, ok := s.Current()
	assert.False(t, ok)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u7",
		"exp":     exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestRestore_ExpiredJWTClears(t *testing.T) {
	s, repo, _ := newStore(t, okAuthHandler("tok"))
	persistSession(t, repo, models.User{ID: "u7"}, signedToken(t, time.Now().Add(-time.Hour)))

	s.Restore(context.Background())

	_, ok := s.Current()
	assert.False(t, ok)
}

func TestRestore_ValidJWTKept(t *testing.T) {
	s, repo, _ := newStore(t, okAuthHandler("tok"))
	persistSession(t, repo, models.User{ID: "u7"}, signedToken(t, time.Now().Add(time.Hour)))

	s.Restore(context.Background())

	_, ok := s.Current()
	assert.True(t, ok)
}

func TestLogout_ClearsMemoryAndPersistedState(t *testing.T) {
	s, repo, _ := newStore(t, okAuthHandler("tok-1"))
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "a@b.io", "secret"))

	s.Logout(ctx)

	_, ok := s.Current()
	assert.False(t, ok)
	_, err := repo.Get(ctx, metadata.KeySessionToken)
	assert.ErrorIs(t, err, metadata.ErrNotFound)
}

func TestRequest_RequireAuthFailsFastWithoutSession(t *testing.T) {
	s, _, requests := newStore(t, okAuthHandler("tok"))

	res := s.Request(context.Background(), "POST", "/posts/create", nil, true)

	require.ErrorIs(t, res.Err, api.ErrAuthRequired)
	assert.Zero(t, requests.Load())
}

func TestRequest_UnauthorizedResponseInvalidatesSession(t *testing.T) {
	authorized := true
	s, repo, requests := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			okAuthHandler("tok")(w, r)
			return
		}
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "a@b.io", "secret"))

	authorized = false
	res := s.Request(ctx, "POST", "/posts/p1/like", nil, true)
	require.ErrorIs(t, res.Err, api.ErrSessionExpired)

	// Identity and credential are gone, in memory and on disk.
	_, ok := s.Current()
	assert.False(t, ok)
	_, err := repo.Get(ctx, metadata.KeySessionToken)
	assert.ErrorIs(t, err, metadata.ErrNotFound)

	// The next authenticated call fails fast before the network.
	before := requests.Load()
	res = s.Request(ctx, "POST", "/posts/p1/like", nil, true)
	require.ErrorIs(t, res.Err, api.ErrAuthRequired)
	assert.Equal(t, before, requests.Load())
}

func TestSubscribe_NotifiedOnLogin(t *testing.T) {
	s, _, _ := newStore(t, okAuthHandler("tok"))
	notified := 0
	s.Subscribe(func() { notified++ })

	require.NoError(t, s.Login(context.Background(), "a@b.io", "secret"))
	assert.Greater(t, notified, 0)
}
