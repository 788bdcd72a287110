// Package coordinator owns the state shared by the cardgpt views: the
// visible panel, the loaded listings and the last user-facing notice. The
// identity it exposes is always the session store's. Views read state
// through accessors and change it only through the entry points, which never
// panic and turn every failure into a short notice.
package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/client/services"
	"github.com/dmitrijs2005/cardgpt/internal/logging"
)

// Panel names a view.
type Panel string

const (
	PanelGenerator Panel = "generator"
	PanelSaved     Panel = "saved"
	PanelCommunity Panel = "community"
	PanelAuth      Panel = "auth"
)

// Valid reports whether p names a known panel.
func (p Panel) Valid() bool {
	switch p {
	case PanelGenerator, PanelSaved, PanelCommunity, PanelAuth:
		return true
	}
	return false
}

const (
	noticeRegistered = "Registration successful! Please log in."
	noticeLoggedOut  = "Logged out."
	noticeSaved      = "Cards saved successfully!"
	noticeDeleted    = "Card set deleted."
)

// Generator is the generation surface the coordinator drives.
type Generator interface {
	Generate(ctx context.Context, category string, pairCount int) (uint64, error)
	GenerateAndPersist(ctx context.Context, category string, pairCount int) (uint64, error)
	Acknowledge()
	Result() *models.GenerationResult
	Download(ctx context.Context) (*models.Artifact, error)
	Snapshot() services.Snapshot
	OnChange(fn func(services.Snapshot))
}

type Coordinator struct {
	session   services.SessionStore
	gen       Generator
	cards     services.CardService
	community services.CommunityService
	log       logging.Logger

	mu         sync.RWMutex
	panel      Panel
	afterLogin Panel
	saved      []models.SavedCardSet
	listings   []models.CommunityListing
	notice     string
}

func New(session services.SessionStore, gen Generator, cards services.CardService, community services.CommunityService, log logging.Logger) *Coordinator {
	c := &Coordinator{
		session:   session,
		gen:       gen,
		cards:     cards,
		community: community,
		log:       log.With("component", "coordinator"),
		panel:     PanelGenerator,
	}
	gen.OnChange(c.onGeneration)
	return c
}

func (c *Coordinator) onGeneration(s services.Snapshot) {
	if s.State != services.StateFailed {
		return
	}
	if s.Kind == services.KindGenerateAndPersist && rejectedSession(s.Err) {
		c.expire(context.Background())
	}
	c.mu.Lock()
	c.notice = s.Message
	c.mu.Unlock()
}

// Start resolves the identity and shows the generator whatever it is.
func (c *Coordinator) Start(ctx context.Context) models.Identity {
	id := c.session.ResolveIdentity(ctx)

	c.mu.Lock()
	c.panel = PanelGenerator
	c.mu.Unlock()

	c.log.Info(ctx, "session resolved", "authenticated", id.Authenticated, "username", id.Username)
	return id
}

// Show switches panels. The saved panel requires a session: without one the
// auth panel is shown and saved becomes the post-login target.
func (c *Coordinator) Show(ctx context.Context, p Panel) error {
	if !p.Valid() {
		return c.fail(client.NewValidationError("unknown view "+string(p)), "")
	}

	if p == PanelSaved && !c.Identity().Authenticated {
		c.mu.Lock()
		c.panel = PanelAuth
		c.afterLogin = PanelSaved
		c.notice = "Please log in to see your saved cards."
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.panel = p
	c.mu.Unlock()

	switch p {
	case PanelSaved:
		return c.RefreshSaved(ctx)
	case PanelCommunity:
		return c.RefreshCommunity(ctx)
	}
	return nil
}

func (c *Coordinator) Login(ctx context.Context, identifier, password string) error {
	if _, err := c.session.Login(ctx, identifier, password); err != nil {
		return c.fail(err, "authentication failed")
	}

	c.mu.Lock()
	c.notice = ""
	next := c.afterLogin
	if next == "" {
		next = PanelGenerator
	}
	c.afterLogin = ""
	c.mu.Unlock()

	return c.Show(ctx, next)
}

// Register creates an account and stays on the auth panel: the user logs in
// separately.
func (c *Coordinator) Register(ctx context.Context, email, username, password string) error {
	if err := c.session.Register(ctx, email, username, password); err != nil {
		return c.fail(err, "registration failed")
	}
	c.mu.Lock()
	c.panel = PanelAuth
	c.notice = noticeRegistered
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) Logout(ctx context.Context) {
	c.session.Logout(ctx)

	c.mu.Lock()
	c.saved = nil
	c.afterLogin = ""
	c.panel = PanelGenerator
	c.notice = noticeLoggedOut
	c.mu.Unlock()
}

func (c *Coordinator) Generate(ctx context.Context, category string, pairCount int) (uint64, error) {
	c.clearNotice()
	id, err := c.gen.Generate(ctx, category, pairCount)
	if err != nil {
		return 0, c.fail(err, "generation failed")
	}
	return id, nil
}

func (c *Coordinator) GenerateAndPersist(ctx context.Context, category string, pairCount int) (uint64, error) {
	c.clearNotice()
	id, err := c.gen.GenerateAndPersist(ctx, category, pairCount)
	if err != nil {
		return 0, c.failSession(ctx, err, "generation failed")
	}
	return id, nil
}

// Acknowledge dismisses the notice and a failed generation.
func (c *Coordinator) Acknowledge() {
	c.gen.Acknowledge()
	c.clearNotice()
}

// Save persists the current generation result under name.
func (c *Coordinator) Save(ctx context.Context, name string) (models.CardID, error) {
	id, err := c.cards.Save(ctx, name, c.gen.Result())
	if err != nil {
		return "", c.failSession(ctx, err, "failed to save")
	}
	c.setNotice(noticeSaved)
	return id, nil
}

// RefreshSaved replaces the held listing with the server's.
func (c *Coordinator) RefreshSaved(ctx context.Context) error {
	sets, err := c.cards.List(ctx)
	if err != nil {
		return c.failSession(ctx, err, "failed to load saved cards")
	}
	c.mu.Lock()
	c.saved = sets
	c.mu.Unlock()
	return nil
}

// DeleteSaved deletes a set and, on success, drops exactly that entry from
// the held listing.
func (c *Coordinator) DeleteSaved(ctx context.Context, id models.CardID, confirmed bool) error {
	if err := c.cards.Delete(ctx, id, confirmed); err != nil {
		return c.failSession(ctx, err, "failed to delete card")
	}

	c.mu.Lock()
	c.saved, _ = models.RemoveCardSet(c.saved, id)
	c.notice = noticeDeleted
	c.mu.Unlock()
	return nil
}

// DownloadSaved fetches the rendering of a saved set, using the filename
// the listing suggested when it is known.
func (c *Coordinator) DownloadSaved(ctx context.Context, id models.CardID) (*models.Artifact, error) {
	var filename string
	c.mu.RLock()
	for _, s := range c.saved {
		if s.ID == id {
			filename = s.PDFFilename
			break
		}
	}
	c.mu.RUnlock()

	art, err := c.cards.Download(ctx, id, filename)
	if err != nil {
		return nil, c.failSession(ctx, err, "failed to download PDF")
	}
	return art, nil
}

// DownloadCurrent fetches the rendering of the current generation result.
func (c *Coordinator) DownloadCurrent(ctx context.Context) (*models.Artifact, error) {
	art, err := c.gen.Download(ctx)
	if err != nil {
		return nil, c.fail(err, "failed to download PDF")
	}
	return art, nil
}

func (c *Coordinator) RefreshCommunity(ctx context.Context) error {
	list, err := c.community.List(ctx)
	if err != nil {
		return c.fail(err, "failed to load community cards")
	}
	c.mu.Lock()
	c.listings = list
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) Panel() Panel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.panel
}

// Identity is the session store's current identity.
func (c *Coordinator) Identity() models.Identity {
	return c.session.Identity()
}

// Saved returns a copy of the held listing of the user's sets.
func (c *Coordinator) Saved() []models.SavedCardSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.SavedCardSet(nil), c.saved...)
}

func (c *Coordinator) Community() []models.CommunityListing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.CommunityListing(nil), c.listings...)
}

// Notice is the last human-readable message for the user.
func (c *Coordinator) Notice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notice
}

func (c *Coordinator) Generation() services.Snapshot {
	return c.gen.Snapshot()
}

// fail records err as the notice and returns it. A rejected session on a
// saved-cards call sends the user to the auth panel.
func (c *Coordinator) fail(err error, fallback string) error {
	msg := client.Message(err, fallback)
	if msg == "" {
		msg = err.Error()
	}

	c.mu.Lock()
	c.notice = msg
	if errors.Is(err, client.ErrUnauthorized) && c.panel == PanelSaved {
		c.panel = PanelAuth
		c.afterLogin = PanelSaved
	}
	c.mu.Unlock()

	c.log.Debug(context.Background(), "action failed", "notice", msg, "error", err)
	return err
}

// failSession is fail for calls made on behalf of the logged-in user. When
// the server rejects the session it is invalidated, so the identity shown
// and the one the services check stay the same.
func (c *Coordinator) failSession(ctx context.Context, err error, fallback string) error {
	if rejectedSession(err) {
		c.expire(ctx)
	}
	return c.fail(err, fallback)
}

func (c *Coordinator) expire(ctx context.Context) {
	c.session.Invalidate(ctx)
	c.mu.Lock()
	c.saved = nil
	c.mu.Unlock()
}

// rejectedSession reports whether err is the server refusing the credential,
// as opposed to a check made before any request.
func rejectedSession(err error) bool {
	var apiErr *client.APIError
	return errors.As(err, &apiErr) && errors.Is(apiErr, client.ErrUnauthorized) && apiErr.Status != 0
}

func (c *Coordinator) setNotice(msg string) {
	c.mu.Lock()
	c.notice = msg
	c.mu.Unlock()
}

func (c *Coordinator) clearNotice() {
	c.setNotice("")
}

var _ Generator = (*services.Generator)(nil)
