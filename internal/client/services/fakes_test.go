package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/models"
)

// ---- fake client ----

// fakeClient implements client.Client for service tests. Hooks left nil
// answer with a zero success.
type fakeClient struct {
	mode client.AuthMode

	mu    sync.Mutex
	cred  client.Credential
	calls map[string]int

	LoginFn           func(identifier, password string) (*client.LoginResult, error)
	RegisterFn        func(email, username, password string) error
	ProfileFn         func() (*models.Profile, error)
	LogoutErr         error
	GenerateFn        func(ctx context.Context, call int, category string, n int) ([]models.WordPair, error)
	GenerateAndSaveFn func(ctx context.Context, call int, category string, n int) (*client.GenerateAndSaveResult, error)
	SaveFn            func(req client.SaveRequest) (models.CardID, error)
	ListFn            func() ([]models.SavedCardSet, error)
	DeleteFn          func(id models.CardID) error
	CommunityFn       func() (json.RawMessage, error)
	DownloadFn        func(ref models.ArtifactRef) (*models.Artifact, error)

	// cookies granted by a successful cookie-mode login
	LoginCookies []string

	LastGenerateN []int
	LastSave      client.SaveRequest
	LastDeleted   models.CardID
	LastDownload  models.ArtifactRef
}

func newFakeClient(mode client.AuthMode) *fakeClient {
	return &fakeClient{mode: mode, calls: map[string]int{}}
}

func (f *fakeClient) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.calls[name]
}

// Calls returns how many times method name was invoked.
func (f *fakeClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls counts every remote call.
func (f *fakeClient) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeClient) Mode() client.AuthMode { return f.mode }

func (f *fakeClient) Credential() client.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred
}

func (f *fakeClient) SetCredential(cred client.Credential) {
	f.mu.Lock()
	f.cred = cred
	f.mu.Unlock()
}

func (f *fakeClient) ClearCredential() { f.SetCredential(client.Credential{}) }

func (f *fakeClient) Login(ctx context.Context, identifier, password string) (*client.LoginResult, error) {
	f.count("Login")
	if f.LoginFn == nil {
		return &client.LoginResult{}, nil
	}
	res, err := f.LoginFn(identifier, password)
	if err == nil && f.mode == client.AuthCookie && len(f.LoginCookies) > 0 {
		cred := client.Credential{}
		for _, v := range f.LoginCookies {
			cred.Cookies = append(cred.Cookies, cookie("session", v))
		}
		f.SetCredential(cred)
	}
	return res, err
}

func (f *fakeClient) Register(ctx context.Context, email, username, password string) error {
	f.count("Register")
	if f.RegisterFn == nil {
		return nil
	}
	return f.RegisterFn(email, username, password)
}

func (f *fakeClient) Profile(ctx context.Context) (*models.Profile, error) {
	f.count("Profile")
	if f.ProfileFn == nil {
		return nil, &client.APIError{Kind: client.ErrUnauthorized, Status: 401}
	}
	return f.ProfileFn()
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.count("Logout")
	return f.LogoutErr
}

func (f *fakeClient) Generate(ctx context.Context, category string, numPairs int) ([]models.WordPair, error) {
	call := f.count("Generate")
	f.mu.Lock()
	f.LastGenerateN = append(f.LastGenerateN, numPairs)
	f.mu.Unlock()
	if f.GenerateFn == nil {
		return pairs("x", numPairs), nil
	}
	return f.GenerateFn(ctx, call, category, numPairs)
}

func (f *fakeClient) GenerateAndSave(ctx context.Context, category string, numPairs int) (*client.GenerateAndSaveResult, error) {
	call := f.count("GenerateAndSave")
	if f.GenerateAndSaveFn == nil {
		return &client.GenerateAndSaveResult{Pairs: pairs("p", numPairs), CardID: "1"}, nil
	}
	return f.GenerateAndSaveFn(ctx, call, category, numPairs)
}

func (f *fakeClient) SaveCards(ctx context.Context, req client.SaveRequest) (models.CardID, error) {
	f.count("SaveCards")
	f.mu.Lock()
	f.LastSave = req
	f.mu.Unlock()
	if f.SaveFn == nil {
		return "1", nil
	}
	return f.SaveFn(req)
}

func (f *fakeClient) ListCards(ctx context.Context) ([]models.SavedCardSet, error) {
	f.count("ListCards")
	if f.ListFn == nil {
		return nil, nil
	}
	return f.ListFn()
}

func (f *fakeClient) DeleteCard(ctx context.Context, id models.CardID) error {
	f.count("DeleteCard")
	f.mu.Lock()
	f.LastDeleted = id
	f.mu.Unlock()
	if f.DeleteFn == nil {
		return nil
	}
	return f.DeleteFn(id)
}

func (f *fakeClient) Community(ctx context.Context) (json.RawMessage, error) {
	f.count("Community")
	if f.CommunityFn == nil {
		return json.RawMessage(`[]`), nil
	}
	return f.CommunityFn()
}

func (f *fakeClient) ArtifactRef(path, filename string) models.ArtifactRef {
	return models.ArtifactRef{URL: "http://api.test" + path, Path: path, Filename: filename}
}

func (f *fakeClient) Download(ctx context.Context, ref models.ArtifactRef) (*models.Artifact, error) {
	f.count("Download")
	f.mu.Lock()
	f.LastDownload = ref
	f.mu.Unlock()
	if f.DownloadFn == nil {
		return &models.Artifact{Filename: ref.Filename, ContentType: "application/pdf", Data: []byte("%PDF")}, nil
	}
	return f.DownloadFn(ref)
}

func (f *fakeClient) Close() error { return nil }

var _ client.Client = (*fakeClient)(nil)

// ---- identities ----

type staticIdentity struct {
	id models.Identity
}

func (s staticIdentity) Identity() models.Identity { return s.id }

var (
	anonymous = staticIdentity{}
	alice     = staticIdentity{id: models.Identity{UserID: "7", Username: "alice", Authenticated: true}}
)

// ---- manual clock ----

type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	c       *manualClock
	at      time.Duration
	f       func()
	fired   bool
	stopped bool
}

func newManualClock() *manualClock {
	return &manualClock{}
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, running due callbacks in deadline order,
// including ones scheduled by callbacks that ran.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		due := make([]*manualTimer, 0, len(c.timers))
		for _, t := range c.timers {
			if !t.fired && !t.stopped && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

// Pending counts scheduled callbacks that have neither fired nor been stopped.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// Stopped returns the callbacks of stopped timers, to replay stale steps.
func (c *manualClock) Stopped() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []func()
	for _, t := range c.timers {
		if t.stopped {
			out = append(out, t.f)
		}
	}
	return out
}

// ---- helpers ----

func pairs(prefix string, n int) []models.WordPair {
	out := make([]models.WordPair, n)
	for i := range out {
		out[i] = models.WordPair{A: fmt.Sprintf("%s%d-a", prefix, i+1), B: fmt.Sprintf("%s%d-b", prefix, i+1)}
	}
	return out
}
