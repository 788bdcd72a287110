package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/logging"
)

// CommunityService browses card sets shared by all users. It needs no
// identity and never fails on a bad payload: what cannot be read is shown
// as nothing.
type CommunityService interface {
	List(ctx context.Context) ([]models.CommunityListing, error)
}

type communityService struct {
	client client.Client
	log    logging.Logger
	limit  int
}

// NewCommunityService builds the service; previewLimit <= 0 selects
// models.DefaultPreviewLimit.
func NewCommunityService(c client.Client, log logging.Logger, previewLimit int) CommunityService {
	if previewLimit <= 0 {
		previewLimit = models.DefaultPreviewLimit
	}
	return &communityService{client: c, log: log.With("component", "community"), limit: previewLimit}
}

type communityItem struct {
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Username string            `json:"username"`
	Pairs    []models.WordPair `json:"word_pairs"`
}

func (s *communityService) List(ctx context.Context) ([]models.CommunityListing, error) {
	raw, err := s.client.Community(ctx)
	if err != nil {
		if errors.Is(err, client.ErrNetwork) || client.IsCanceled(err) {
			return nil, err
		}
		s.log.Warn(ctx, "community listing unavailable", "error", err)
		return []models.CommunityListing{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		s.log.Warn(ctx, "community payload is not a list", "error", err)
		return []models.CommunityListing{}, nil
	}

	out := make([]models.CommunityListing, 0, len(elems))
	for i, elem := range elems {
		var item communityItem
		if err := json.Unmarshal(elem, &item); err != nil {
			s.log.Debug(ctx, "skipping malformed community entry", "index", i, "error", err)
			continue
		}
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = item.Category
		}
		if name == "" && len(item.Pairs) == 0 {
			continue
		}
		out = append(out, models.NewCommunityListing(name, item.Username, item.Pairs, s.limit))
	}
	return out, nil
}
