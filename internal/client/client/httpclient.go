package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/common"
	"github.com/dmitrijs2005/cardgpt/internal/netx"
	"github.com/google/uuid"
)

const (
	pathGenerate        = "/generate"
	pathGenerateAndSave = "/generate-and-save"
	pathDownload        = "/download"
	pathLogin           = "/auth/login"
	pathRegister        = "/auth/register"
	pathProfile         = "/auth/profile"
	pathLogout          = "/auth/logout"
	pathSave            = "/cards/save"
	pathMyCards         = "/cards/my-cards"
	pathCard            = "/cards/card/"
	pathCommunity       = "/community"

	// maxResponseSize bounds any body the client is willing to buffer.
	maxResponseSize = 32 << 20
)

// CurrentArtifactPath is where the most recent plain generation is rendered.
const CurrentArtifactPath = pathDownload

// CardArtifactPath is the download path of a persisted card set.
func CardArtifactPath(id models.CardID) string {
	return pathCard + url.PathEscape(id.String()) + "/download"
}

type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	mode    AuthMode
	jar     *sessionJar

	mu    sync.RWMutex
	token string

	newRequestID func() string
}

// NewHTTPClient builds a client for the backend at baseURL. Every call is
// bounded by timeout, which must be positive.
func NewHTTPClient(baseURL string, mode AuthMode, timeout time.Duration) (*HTTPClient, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unsupported auth mode %q", mode)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive, got %s", timeout)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", baseURL)
	}

	c := &HTTPClient{
		baseURL:      u,
		mode:         mode,
		newRequestID: uuid.NewString,
	}

	hc := &http.Client{Timeout: timeout}
	if mode == AuthCookie {
		c.jar, err = newSessionJar()
		if err != nil {
			return nil, err
		}
		hc.Jar = c.jar
	}
	c.http = hc

	return c, nil
}

func (c *HTTPClient) Mode() AuthMode {
	return c.mode
}

func (c *HTTPClient) Credential() Credential {
	if c.mode == AuthCookie {
		return Credential{Cookies: c.jar.Cookies(c.baseURL)}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Credential{Token: c.token}
}

func (c *HTTPClient) SetCredential(cred Credential) {
	if c.mode == AuthCookie {
		c.jar.Reset()
		if len(cred.Cookies) > 0 {
			c.jar.SetCookies(c.baseURL, cred.Cookies)
		}
		return
	}
	c.mu.Lock()
	c.token = cred.Token
	c.mu.Unlock()
}

func (c *HTTPClient) ClearCredential() {
	c.SetCredential(Credential{})
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	req := map[string]string{
		"identifier": identifier,
		"username":   identifier,
		"password":   password,
	}

	var resp struct {
		Token       string          `json:"token"`
		AccessToken string          `json:"access_token"`
		User        *models.Profile `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPost, pathLogin, req, &resp); err != nil {
		return nil, err
	}

	res := &LoginResult{Token: resp.Token, User: resp.User}
	if res.Token == "" {
		res.Token = resp.AccessToken
	}
	return res, nil
}

func (c *HTTPClient) Register(ctx context.Context, email, username, password string) error {
	req := map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}
	return c.doJSON(ctx, http.MethodPost, pathRegister, req, nil)
}

func (c *HTTPClient) Profile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.doJSON(ctx, http.MethodGet, pathProfile, nil, &p); err != nil {
		return nil, err
	}
	if p.Username == "" {
		return nil, &APIError{Kind: ErrMalformedResponse, Status: http.StatusOK, Message: "profile without username"}
	}
	return &p, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, pathLogout, nil, nil)
}

type generateRequest struct {
	Category string `json:"category"`
	NumPairs int    `json:"num_pairs"`
}

func (c *HTTPClient) Generate(ctx context.Context, category string, numPairs int) ([]models.WordPair, error) {
	var pairs []models.WordPair
	req := generateRequest{Category: category, NumPairs: numPairs}
	if err := c.doJSON(ctx, http.MethodPost, pathGenerate, req, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

func (c *HTTPClient) GenerateAndSave(ctx context.Context, category string, numPairs int) (*GenerateAndSaveResult, error) {
	var res GenerateAndSaveResult
	req := generateRequest{Category: category, NumPairs: numPairs}
	if err := c.doJSON(ctx, http.MethodPost, pathGenerateAndSave, req, &res); err != nil {
		return nil, err
	}
	if res.CardID == "" {
		return nil, &APIError{Kind: ErrMalformedResponse, Status: http.StatusOK, Message: "response without card id"}
	}
	return &res, nil
}

func (c *HTTPClient) SaveCards(ctx context.Context, req SaveRequest) (models.CardID, error) {
	var resp struct {
		CardID models.CardID `json:"card_id"`
		ID     models.CardID `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, pathSave, req, &resp); err != nil {
		return "", err
	}
	if resp.CardID != "" {
		return resp.CardID, nil
	}
	return resp.ID, nil
}

func (c *HTTPClient) ListCards(ctx context.Context) ([]models.SavedCardSet, error) {
	var sets []models.SavedCardSet
	if err := c.doJSON(ctx, http.MethodGet, pathMyCards, nil, &sets); err != nil {
		return nil, err
	}
	for i := range sets {
		sets[i].Normalize()
		sets[i].Artifact = c.ArtifactRef(CardArtifactPath(sets[i].ID), sets[i].PDFFilename)
	}
	return sets, nil
}

func (c *HTTPClient) DeleteCard(ctx context.Context, id models.CardID) error {
	return c.doJSON(ctx, http.MethodDelete, pathCard+url.PathEscape(id.String()), nil, nil)
}

// Community returns the raw payload; its shape is not trusted here.
func (c *HTTPClient) Community(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, pathCommunity, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *HTTPClient) ArtifactRef(path, filename string) models.ArtifactRef {
	return models.ArtifactRef{
		URL:      c.resolve(path),
		Path:     path,
		Filename: filename,
	}
}

func (c *HTTPClient) Download(ctx context.Context, ref models.ArtifactRef) (*models.Artifact, error) {
	resp, err := c.send(ctx, http.MethodGet, ref.Path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.mapError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, data)
	}

	name := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = ref.Filename
	}

	return &models.Artifact{
		Filename:    name,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (c *HTTPClient) resolve(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, c.newRequestID())

	if c.mode == AuthToken {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token != "" {
			req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return c.mapError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Kind: ErrMalformedResponse, Status: resp.StatusCode}
	}
	return nil
}

// mapError converts a transport failure into the client error taxonomy.
// Cancellation is kept as-is so callers can tell it from an outage.
func (c *HTTPClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if netx.IsCanceled(err) {
		return fmt.Errorf("request canceled: %w", err)
	}
	if netx.IsNetworkError(err) {
		return &APIError{Kind: ErrNetwork}
	}
	return fmt.Errorf("http error: %w", err)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusError(status int, body []byte) error {
	kind := ErrServer
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = ErrUnauthorized
	}

	var eb errorBody
	msg := ""
	if err := json.Unmarshal(body, &eb); err == nil {
		msg = eb.Error
		if msg == "" {
			msg = eb.Message
		}
	}

	return &APIError{Kind: kind, Status: status, Message: msg}
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// sessionJar is a cookie jar that can be emptied on logout.
type sessionJar struct {
	mu  sync.Mutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	j, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &sessionJar{jar: j}, nil
}

func (s *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(u, cookies)
}

func (s *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jar.Cookies(u)
}

func (s *sessionJar) Reset() {
	j, err := cookiejar.New(nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.jar = j
	s.mu.Unlock()
}

var _ Client = (*HTTPClient)(nil)
var _ http.CookieJar = (*sessionJar)(nil)

// IsCanceled reports whether err is a request abandoned by its caller.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
