package services

import (
	"context"
	"database/sql"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func cookie(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: value}
}

func signToken(t *testing.T, claims tokenClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

func aliceToken(t *testing.T, exp time.Time) string {
	return signToken(t, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "7", ExpiresAt: jwt.NewNumericDate(exp)},
		Username:         "alice",
	})
}

func newSession(fc *fakeClient, store CredentialStore) *sessionStore {
	return NewSessionStore(fc, store, logging.Nop()).(*sessionStore)
}

// ---- token mechanism ----

func TestTokenLogin_DecodesClaimsAndPersistsToken(t *testing.T) {
	db := setupDB(t)
	store := NewCredentialStore(db)
	token := aliceToken(t, time.Now().Add(time.Hour))

	fc := newFakeClient(client.AuthToken)
	fc.LoginFn = func(identifier, password string) (*client.LoginResult, error) {
		assert.Equal(t, "alice", identifier)
		assert.Equal(t, "pw", password)
		return &client.LoginResult{Token: token}, nil
	}
	s := newSession(fc, store)

	id, err := s.Login(context.Background(), "  alice ", "pw")
	require.NoError(t, err)
	assert.True(t, id.Authenticated)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "7", id.UserID)
	assert.Equal(t, token, fc.Credential().Token)
	assert.Equal(t, id, s.Identity())

	// a later process recovers the session from the store alone
	next := newSession(newFakeClient(client.AuthToken), store)
	resolved := next.ResolveIdentity(context.Background())
	assert.True(t, resolved.Authenticated)
	assert.Equal(t, "alice", resolved.Username)
}

func TestTokenResolve_ExpiredTokenIsAnonymousAndForgotten(t *testing.T) {
	db := setupDB(t)
	store := NewCredentialStore(db)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, client.AuthToken, client.Credential{Token: aliceToken(t, time.Now().Add(-time.Minute))}))

	fc := newFakeClient(client.AuthToken)
	s := newSession(fc, store)

	id := s.ResolveIdentity(ctx)
	assert.False(t, id.Authenticated)
	assert.Empty(t, fc.Credential().Token)

	cred, err := store.Load(ctx, client.AuthToken)
	require.NoError(t, err)
	assert.True(t, cred.IsZero())
	assert.Zero(t, fc.TotalCalls(), "token mode never asks the server")
}

func TestTokenResolve_GarbageTokenIsAnonymous(t *testing.T) {
	fc := newFakeClient(client.AuthToken)
	fc.SetCredential(client.Credential{Token: "not-a-jwt"})
	s := newSession(fc, nil)

	assert.Equal(t, models.Anonymous(), s.ResolveIdentity(context.Background()))
	assert.Empty(t, fc.Credential().Token)
}

func TestTokenLogin_MissingTokenIsAuthFailure(t *testing.T) {
	fc := newFakeClient(client.AuthToken)
	fc.LoginFn = func(identifier, password string) (*client.LoginResult, error) {
		return &client.LoginResult{}, nil
	}
	s := newSession(fc, nil)

	id, err := s.Login(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Equal(t, "authentication failed", err.Error())
	assert.False(t, id.Authenticated)
}

// ---- cookie mechanism ----

func TestCookieLogin_ReprobesProfile(t *testing.T) {
	db := setupDB(t)
	store := NewCredentialStore(db)

	fc := newFakeClient(client.AuthCookie)
	fc.LoginCookies = []string{"abc"}
	fc.LoginFn = func(identifier, password string) (*client.LoginResult, error) {
		// the body is not canonical
		return &client.LoginResult{User: &models.Profile{Username: "somebody-else"}}, nil
	}
	fc.ProfileFn = func() (*models.Profile, error) {
		return &models.Profile{ID: "7", Username: "alice", Email: "a@example.com"}, nil
	}
	s := newSession(fc, store)

	id, err := s.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, 1, fc.Calls("Profile"))

	cred, err := store.Load(context.Background(), client.AuthCookie)
	require.NoError(t, err)
	require.Len(t, cred.Cookies, 1)
	assert.Equal(t, "abc", cred.Cookies[0].Value)
}

func TestCookieLogin_ProbeFailureIsAuthFailure(t *testing.T) {
	fc := newFakeClient(client.AuthCookie)
	fc.LoginFn = func(identifier, password string) (*client.LoginResult, error) {
		return &client.LoginResult{}, nil
	}
	s := newSession(fc, nil)

	id, err := s.Login(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, id.Authenticated)
}

func TestCookieResolve_RestoresStoredCookies(t *testing.T) {
	db := setupDB(t)
	store := NewCredentialStore(db)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, client.AuthCookie, client.Credential{Cookies: []*http.Cookie{cookie("session", "xyz")}}))

	fc := newFakeClient(client.AuthCookie)
	fc.ProfileFn = func() (*models.Profile, error) {
		if c := fc.Credential(); len(c.Cookies) == 0 || c.Cookies[0].Value != "xyz" {
			return nil, &client.APIError{Kind: client.ErrUnauthorized, Status: 401}
		}
		return &models.Profile{ID: "7", Username: "alice"}, nil
	}
	s := newSession(fc, store)

	id := s.ResolveIdentity(ctx)
	assert.True(t, id.Authenticated)
	assert.Equal(t, "alice", id.Username)
}

func TestCookieResolve_FailureIsAnonymousWithoutError(t *testing.T) {
	fc := newFakeClient(client.AuthCookie)
	fc.ProfileFn = func() (*models.Profile, error) {
		return nil, &client.APIError{Kind: client.ErrNetwork}
	}
	s := newSession(fc, nil)

	id := s.ResolveIdentity(context.Background())
	assert.False(t, id.Authenticated)
	assert.Equal(t, 1, fc.Calls("Profile"), "no retry")
}

// ---- shared behavior ----

func TestLogin_ServerMessageOrFallback(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
		wantIs  error
	}{
		{"server message", &client.APIError{Kind: client.ErrUnauthorized, Status: 401, Message: "Invalid credentials"}, "Invalid credentials", client.ErrUnauthorized},
		{"no message", &client.APIError{Kind: client.ErrUnauthorized, Status: 401}, "authentication failed", client.ErrUnauthorized},
		{"malformed", &client.APIError{Kind: client.ErrMalformedResponse, Status: 200}, "authentication failed", client.ErrUnauthorized},
		{"network", &client.APIError{Kind: client.ErrNetwork}, "failed to connect to the server", client.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeClient(client.AuthToken)
			fc.LoginFn = func(identifier, password string) (*client.LoginResult, error) {
				return nil, tt.err
			}
			s := newSession(fc, nil)

			_, err := s.Login(context.Background(), "alice", "pw")
			require.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestLogin_EmptyInputMakesNoRequest(t *testing.T) {
	fc := newFakeClient(client.AuthCookie)
	s := newSession(fc, nil)

	_, err := s.Login(context.Background(), "   ", "pw")
	require.ErrorIs(t, err, client.ErrValidation)
	_, err = s.Login(context.Background(), "alice", "")
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Zero(t, fc.TotalCalls())
}

func TestRegister_DoesNotAuthenticate(t *testing.T) {
	fc := newFakeClient(client.AuthToken)
	fc.RegisterFn = func(email, username, password string) error {
		assert.Equal(t, "a@example.com", email)
		assert.Equal(t, "alice", username)
		return nil
	}
	s := newSession(fc, nil)

	require.NoError(t, s.Register(context.Background(), "a@example.com", "alice", "pw"))
	assert.False(t, s.Identity().Authenticated)
	assert.Zero(t, fc.Calls("Login"))
}

func TestRegister_Failures(t *testing.T) {
	fc := newFakeClient(client.AuthToken)
	fc.RegisterFn = func(email, username, password string) error {
		if username == "taken" {
			return &client.APIError{Kind: client.ErrServer, Status: 400, Message: "Username already exists"}
		}
		return &client.APIError{Kind: client.ErrServer, Status: 500}
	}
	s := newSession(fc, nil)
	ctx := context.Background()

	err := s.Register(ctx, "", "taken", "pw")
	require.ErrorIs(t, err, client.ErrServer)
	assert.Equal(t, "Username already exists", err.Error())

	err = s.Register(ctx, "", "bob", "pw")
	assert.Equal(t, "registration failed", err.Error())

	err = s.Register(ctx, "", "", "pw")
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, 2, fc.Calls("Register"))
}

func TestLogout_CookieNotifiesServerAndClearsEvenOnFailure(t *testing.T) {
	db := setupDB(t)
	store := NewCredentialStore(db)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, client.AuthCookie, client.Credential{Cookies: []*http.Cookie{cookie("session", "xyz")}}))

	fc := newFakeClient(client.AuthCookie)
	fc.SetCredential(client.Credential{Cookies: []*http.Cookie{cookie("session", "xyz")}})
	fc.LogoutErr = &client.APIError{Kind: client.ErrNetwork}
	s := newSession(fc, store)
	s.setIdentity(models.Identity{Username: "alice", Authenticated: true})

	s.Logout(ctx)

	assert.Equal(t, 1, fc.Calls("Logout"))
	assert.True(t, fc.Credential().IsZero())
	assert.False(t, s.Identity().Authenticated)

	cred, err := store.Load(ctx, client.AuthCookie)
	require.NoError(t, err)
	assert.True(t, cred.IsZero())
}

func TestLogout_TokenStaysLocal(t *testing.T) {
	fc := newFakeClient(client.AuthToken)
	fc.SetCredential(client.Credential{Token: "t"})
	s := newSession(fc, nil)

	s.Logout(context.Background())

	assert.Zero(t, fc.Calls("Logout"))
	assert.Empty(t, fc.Credential().Token)
}

func TestLogin_RejectedAttemptKeepsCurrentSession(t *testing.T) {
	db := setupDB(t)
	store := NewCredentialStore(db)
	ctx := context.Background()
	token := aliceToken(t, time.Now().Add(time.Hour))

	fc := newFakeClient(client.AuthToken)
	fc.LoginFn = func(identifier, password string) (*client.LoginResult, error) {
		if identifier == "alice" {
			return &client.LoginResult{Token: token}, nil
		}
		return nil, &client.APIError{Kind: client.ErrUnauthorized, Status: 401, Message: "Invalid credentials"}
	}
	s := newSession(fc, store)

	alice, err := s.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	id, err := s.Login(ctx, "bob", "")
	require.ErrorIs(t, err, client.ErrValidation)
	assert.Equal(t, alice, id)

	id, err = s.Login(ctx, "bob", "wrong")
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Equal(t, alice, id)

	assert.Equal(t, alice, s.Identity())
	assert.Equal(t, token, fc.Credential().Token)
	cred, err := store.Load(ctx, client.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, token, cred.Token)
}

func TestInvalidate_ForgetsSessionWithoutTellingServer(t *testing.T) {
	db := setupDB(t)
	store := NewCredentialStore(db)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, client.AuthCookie, client.Credential{Cookies: []*http.Cookie{cookie("session", "xyz")}}))

	fc := newFakeClient(client.AuthCookie)
	fc.SetCredential(client.Credential{Cookies: []*http.Cookie{cookie("session", "xyz")}})
	s := newSession(fc, store)
	s.setIdentity(models.Identity{Username: "alice", Authenticated: true})

	s.Invalidate(ctx)

	assert.Zero(t, fc.Calls("Logout"))
	assert.True(t, fc.Credential().IsZero())
	assert.False(t, s.Identity().Authenticated)
	cred, err := store.Load(ctx, client.AuthCookie)
	require.NoError(t, err)
	assert.True(t, cred.IsZero())
}
