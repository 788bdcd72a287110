// Package services contains application services for the cardgpt client.
// This file defines the session store: identity resolution under one of two
// credential mechanisms, login, register and logout.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

const (
	msgAuthFailed     = "authentication failed"
	msgRegisterFailed = "registration failed"
)

var errTokenExpired = errors.New("token expired")

// SessionStore owns the current Identity.
//
// Contract:
//   - ResolveIdentity: establish identity with the configured mechanism;
//     never fails, an unresolvable session is anonymous.
//   - Login: authenticate and return the canonical identity. A rejected
//     attempt leaves the current session as it was.
//   - Register: create an account without logging in.
//   - Logout: drop the local credential; the server is told in cookie mode.
//   - Invalidate: drop a credential the server no longer accepts, without
//     telling the server.
//   - Identity: last resolved identity.
type SessionStore interface {
	ResolveIdentity(ctx context.Context) models.Identity
	Login(ctx context.Context, identifier, password string) (models.Identity, error)
	Register(ctx context.Context, email, username, password string) error
	Logout(ctx context.Context)
	Invalidate(ctx context.Context)
	Identity() models.Identity
}

// tokenClaims is what a bearer token is trusted to carry.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type sessionStore struct {
	client client.Client
	store  CredentialStore
	log    logging.Logger
	now    func() time.Time

	mu       sync.RWMutex
	identity models.Identity
}

// NewSessionStore builds a SessionStore over c. store may be nil, in which
// case the credential lives only as long as the process.
func NewSessionStore(c client.Client, store CredentialStore, log logging.Logger) SessionStore {
	return &sessionStore{
		client: c,
		store:  store,
		log:    log.With("component", "session", "mode", string(c.Mode())),
		now:    time.Now,
	}
}

func (s *sessionStore) Identity() models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *sessionStore) setIdentity(id models.Identity) models.Identity {
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
	return id
}

func (s *sessionStore) ResolveIdentity(ctx context.Context) models.Identity {
	if s.client.Mode() == client.AuthToken {
		return s.setIdentity(s.resolveToken(ctx))
	}
	return s.setIdentity(s.resolveCookie(ctx))
}

func (s *sessionStore) resolveToken(ctx context.Context) models.Identity {
	cred := s.client.Credential()
	if cred.Token == "" {
		cred = s.loadCredential(ctx)
	}
	if cred.Token == "" {
		return models.Anonymous()
	}

	id, err := s.decodeToken(cred.Token)
	if err != nil {
		s.log.Warn(ctx, "stored token rejected", "error", err)
		s.forget(ctx)
		return models.Anonymous()
	}

	s.client.SetCredential(client.Credential{Token: cred.Token})
	return id
}

func (s *sessionStore) resolveCookie(ctx context.Context) models.Identity {
	if s.client.Credential().IsZero() {
		if cred := s.loadCredential(ctx); !cred.IsZero() {
			s.client.SetCredential(cred)
		}
	}

	profile, err := s.client.Profile(ctx)
	if err != nil {
		s.log.Info(ctx, "session probe failed", "error", err)
		if errors.Is(err, client.ErrUnauthorized) {
			s.forget(ctx)
		}
		return models.Anonymous()
	}
	return profile.Identity()
}

// decodeToken trusts the claims embedded in token. The signature belongs to
// the server and is not checked here.
func (s *sessionStore) decodeToken(token string) (models.Identity, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return models.Identity{}, fmt.Errorf("decode token: %w", err)
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return models.Identity{}, errTokenExpired
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if claims.Username == "" && userID == "" {
		return models.Identity{}, errors.New("token carries no user")
	}

	return models.Identity{
		UserID:        userID,
		Username:      claims.Username,
		Email:         claims.Email,
		Authenticated: true,
	}, nil
}

func (s *sessionStore) Login(ctx context.Context, identifier, password string) (models.Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return s.Identity(), client.NewValidationError("username and password are required")
	}

	res, err := s.client.Login(ctx, identifier, password)
	if err != nil {
		s.log.Info(ctx, "login rejected", "error", err)
		return s.Identity(), authFailure(err, msgAuthFailed)
	}

	if s.client.Mode() == client.AuthToken {
		return s.completeTokenLogin(ctx, res)
	}

	s.saveCredential(ctx, s.client.Credential())
	id := s.ResolveIdentity(ctx)
	if !id.Authenticated {
		return id, &client.APIError{Kind: client.ErrUnauthorized, Message: msgAuthFailed}
	}
	return id, nil
}

func (s *sessionStore) completeTokenLogin(ctx context.Context, res *client.LoginResult) (models.Identity, error) {
	if res == nil || res.Token == "" {
		s.log.Warn(ctx, "login response carries no token")
		return s.Identity(), &client.APIError{Kind: client.ErrUnauthorized, Message: msgAuthFailed}
	}

	id, err := s.decodeToken(res.Token)
	if err != nil {
		s.log.Warn(ctx, "login token rejected", "error", err)
		return s.Identity(), &client.APIError{Kind: client.ErrUnauthorized, Message: msgAuthFailed}
	}

	cred := client.Credential{Token: res.Token}
	s.client.SetCredential(cred)
	s.saveCredential(ctx, cred)
	return s.setIdentity(id), nil
}

func (s *sessionStore) Register(ctx context.Context, email, username, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return client.NewValidationError("username and password are required")
	}

	if err := s.client.Register(ctx, email, username, password); err != nil {
		s.log.Info(ctx, "registration rejected", "error", err)
		return authFailure(err, msgRegisterFailed)
	}
	return nil
}

func (s *sessionStore) Logout(ctx context.Context) {
	if s.client.Mode() == client.AuthCookie {
		if err := s.client.Logout(ctx); err != nil {
			s.log.Warn(ctx, "server logout failed", "error", err)
		}
	}
	s.forget(ctx)
	s.setIdentity(models.Anonymous())
}

func (s *sessionStore) Invalidate(ctx context.Context) {
	s.log.Info(ctx, "session rejected by server")
	s.forget(ctx)
	s.setIdentity(models.Anonymous())
}

// forget drops the credential from the transport and the store.
func (s *sessionStore) forget(ctx context.Context) {
	s.client.ClearCredential()
	if s.store == nil {
		return
	}
	if err := s.store.Clear(ctx); err != nil {
		s.log.Warn(ctx, "clear stored credential", "error", err)
	}
}

func (s *sessionStore) loadCredential(ctx context.Context) client.Credential {
	if s.store == nil {
		return client.Credential{}
	}
	cred, err := s.store.Load(ctx, s.client.Mode())
	if err != nil {
		s.log.Warn(ctx, "load stored credential", "error", err)
		return client.Credential{}
	}
	return cred
}

func (s *sessionStore) saveCredential(ctx context.Context, cred client.Credential) {
	if s.store == nil || cred.IsZero() {
		return
	}
	if err := s.store.Save(ctx, s.client.Mode(), cred); err != nil {
		s.log.Warn(ctx, "store credential", "error", err)
	}
}

// authFailure is withMessage for auth calls. Malformed answers count as
// rejected credentials.
func authFailure(err error, fallback string) error {
	err = withMessage(err, fallback)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && errors.Is(apiErr.Kind, client.ErrMalformedResponse) {
		apiErr.Kind = client.ErrUnauthorized
	}
	return err
}
