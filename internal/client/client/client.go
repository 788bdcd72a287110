package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/cardgpt/internal/client/models"
)

// AuthMode selects how the transport carries the credential. A deployment
// uses exactly one.
type AuthMode string

const (
	AuthToken  AuthMode = "token"
	AuthCookie AuthMode = "cookie"
)

// Valid reports whether m names a supported mechanism.
func (m AuthMode) Valid() bool {
	return m == AuthToken || m == AuthCookie
}

// Credential is what the transport attaches to outbound requests: a bearer
// token in token mode, session cookies in cookie mode.
type Credential struct {
	Token   string         `json:"token,omitempty"`
	Cookies []*http.Cookie `json:"cookies,omitempty"`
}

// IsZero reports whether the credential carries nothing.
func (c Credential) IsZero() bool {
	return c.Token == "" && len(c.Cookies) == 0
}

// LoginResult is the server answer to a login. Token is set by token-mode
// servers, User by cookie-mode servers.
type LoginResult struct {
	Token string
	User  *models.Profile
}

// GenerateAndSaveResult is the answer of the combined generate+persist call.
type GenerateAndSaveResult struct {
	Pairs       []models.WordPair `json:"word_pairs"`
	CardID      models.CardID     `json:"card_id"`
	PDFFilename string            `json:"pdf_filename"`
}

// SaveRequest is the body of a save call.
type SaveRequest struct {
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Pairs    []models.WordPair `json:"word_pairs"`
	NumPairs int               `json:"num_pairs"`
}

// Client is the transport contract with the card service backend.
type Client interface {
	Mode() AuthMode
	Credential() Credential
	SetCredential(cred Credential)
	ClearCredential()

	Login(ctx context.Context, identifier, password string) (*LoginResult, error)
	Register(ctx context.Context, email, username, password string) error
	Profile(ctx context.Context) (*models.Profile, error)
	Logout(ctx context.Context) error

	Generate(ctx context.Context, category string, numPairs int) ([]models.WordPair, error)
	GenerateAndSave(ctx context.Context, category string, numPairs int) (*GenerateAndSaveResult, error)

	SaveCards(ctx context.Context, req SaveRequest) (models.CardID, error)
	ListCards(ctx context.Context) ([]models.SavedCardSet, error)
	DeleteCard(ctx context.Context, id models.CardID) error

	Community(ctx context.Context) (json.RawMessage, error)

	ArtifactRef(path, filename string) models.ArtifactRef
	Download(ctx context.Context, ref models.ArtifactRef) (*models.Artifact, error)

	Close() error
}
