package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/logging"
)

const (
	msgSaveFailed     = "failed to save"
	msgListFailed     = "failed to load saved cards"
	msgDeleteFailed   = "failed to delete card"
	msgDownloadFailed = "failed to download PDF"
)

// CardService manages the card sets the current user saved on the server.
// Every operation requires an authenticated identity and fails fast, without
// a request, when there is none.
type CardService interface {
	Save(ctx context.Context, displayName string, result *models.GenerationResult) (models.CardID, error)
	List(ctx context.Context) ([]models.SavedCardSet, error)
	// Delete removes a set. confirmed must be true; the caller owns any
	// cached listing and updates it itself.
	Delete(ctx context.Context, id models.CardID, confirmed bool) error
	Download(ctx context.Context, id models.CardID, filename string) (*models.Artifact, error)
}

type cardService struct {
	client  client.Client
	session IdentitySource
	log     logging.Logger
}

func NewCardService(c client.Client, session IdentitySource, log logging.Logger) CardService {
	return &cardService{client: c, session: session, log: log.With("component", "cards")}
}

func (s *cardService) requireIdentity() error {
	if !s.session.Identity().Authenticated {
		return &client.APIError{Kind: client.ErrUnauthorized, Message: "log in to manage saved cards"}
	}
	return nil
}

func (s *cardService) Save(ctx context.Context, displayName string, result *models.GenerationResult) (models.CardID, error) {
	if err := s.requireIdentity(); err != nil {
		return "", err
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		return "", client.NewValidationError("please enter a name for the card set")
	}
	if result == nil || len(result.Pairs) == 0 {
		return "", client.NewValidationError("generate cards before saving")
	}

	id, err := s.client.SaveCards(ctx, client.SaveRequest{
		Name:     name,
		Category: result.Category,
		Pairs:    result.Pairs,
		NumPairs: len(result.Pairs),
	})
	if err != nil {
		s.log.Warn(ctx, "save rejected", "name", name, "error", err)
		return "", withMessage(err, msgSaveFailed)
	}

	s.log.Info(ctx, "card set saved", "id", id.String(), "name", name)
	return id, nil
}

func (s *cardService) List(ctx context.Context) ([]models.SavedCardSet, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}

	sets, err := s.client.ListCards(ctx)
	if err != nil {
		return nil, withMessage(err, msgListFailed)
	}
	if sets == nil {
		sets = []models.SavedCardSet{}
	}
	return sets, nil
}

func (s *cardService) Delete(ctx context.Context, id models.CardID, confirmed bool) error {
	if !confirmed {
		return client.NewValidationError("deletion was not confirmed")
	}
	if err := s.requireIdentity(); err != nil {
		return err
	}
	if strings.TrimSpace(id.String()) == "" {
		return client.NewValidationError("card id is required")
	}

	if err := s.client.DeleteCard(ctx, id); err != nil {
		s.log.Warn(ctx, "delete rejected", "id", id.String(), "error", err)
		return withMessage(err, msgDeleteFailed)
	}

	s.log.Info(ctx, "card set deleted", "id", id.String())
	return nil
}

// Download fetches the rendering of a saved set on demand. filename is the
// name the listing suggested and may be empty.
func (s *cardService) Download(ctx context.Context, id models.CardID, filename string) (*models.Artifact, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	if filename == "" {
		filename = savedFilename(id)
	}

	art, err := s.client.Download(ctx, s.client.ArtifactRef(client.CardArtifactPath(id), filename))
	if err != nil {
		return nil, withMessage(err, msgDownloadFailed)
	}
	return art, nil
}

func savedFilename(id models.CardID) string {
	return fmt.Sprintf("cards-%s.pdf", id)
}

// withMessage keeps the kind of err and makes sure it renders as a short
// message: the server text when present, fallback otherwise.
func withMessage(err error, fallback string) error {
	if client.IsCanceled(err) {
		return err
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return &client.APIError{Kind: client.ErrServer, Message: fallback}
	}
	return &client.APIError{
		Kind:    apiErr.Kind,
		Status:  apiErr.Status,
		Message: client.Message(err, fallback),
	}
}
