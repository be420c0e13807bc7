package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/dealbridge/internal/domain/integration"
)

const (
	serviceName = "erp"

	// sessionIDCookie is the cookie built from a JSON SessionId
	sessionIDCookie = "SessionId"
	// maxResponseSize caps how much of a gateway response is read (4MB)
	maxResponseSize = 4 << 20
)

// AuthResult describes a session obtained from the gateway
type AuthResult struct {
	// SessionID is the id from the JSON body, if the gateway sent one
	SessionID string
	// CookieNames lists the cookies installed from Set-Cookie
	CookieNames []string
}

type authResponse struct {
	SessionID string `json:"SessionId"`
}

// SessionClient authenticates against the gateway with a username and
// password and posts entries carrying the session cookie
type SessionClient struct {
	config     *Config
	httpClient *http.Client
	sessions   *SessionStore
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a SessionClient
type Option func(*SessionClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *SessionClient) {
		s.httpClient = c
	}
}

// WithSessionStore shares a session store
func WithSessionStore(store *SessionStore) Option {
	return func(s *SessionClient) {
		s.sessions = store
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *SessionClient) {
		s.logger = l
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *SessionClient) {
		s.now = now
	}
}

// NewSessionClient creates a client with an empty session store
func NewSessionClient(config *Config, opts ...Option) *SessionClient {
	config.ApplyDefaults()

	c := &SessionClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		sessions: NewSessionStore(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sessions returns the session store
func (c *SessionClient) Sessions() *SessionStore {
	return c.sessions
}

// Authenticate logs in and installs the session for the offer endpoint.
// A Set-Cookie session is preferred over a SessionId in the body.
func (c *SessionClient) Authenticate(ctx context.Context) (*AuthResult, error) {
	const op = "authenticate"

	if err := c.config.ValidateCredentials(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("username", c.config.Username)
	query.Set("password", c.config.Password)
	endpoint := c.config.AuthBaseURL + "/auth?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("erp: failed to create auth request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, integration.NewTransportError(serviceName, op, redact(err, c.config.Password))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, integration.NewTransportError(serviceName, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, integration.NewHTTPStatusError(serviceName, op, resp.StatusCode, integration.ErrorBody(body))
	}

	var parsed authResponse
	_ = json.Unmarshal(body, &parsed)
	parsed.SessionID = strings.TrimSpace(parsed.SessionID)

	result := &AuthResult{SessionID: parsed.SessionID}
	cookies := resp.Cookies()
	if len(cookies) == 0 && parsed.SessionID != "" {
		cookies = []*http.Cookie{{Name: sessionIDCookie, Value: parsed.SessionID}}
	}
	if len(cookies) == 0 {
		c.logger.Error("ERP auth response carried no session",
			zap.Int("status", resp.StatusCode),
			zap.String("body", integration.ErrorBody(body)),
		)
		return nil, integration.NewInvalidResponseError(serviceName, op, "missing SessionId/Set-Cookie")
	}
	for _, ck := range cookies {
		result.CookieNames = append(result.CookieNames, ck.Name)
	}

	target, err := c.offerURL()
	if err != nil {
		// authcheck may run without an offer URL; scope the session to the auth host
		target, err = url.Parse(c.config.AuthBaseURL)
		if err != nil {
			return nil, fmt.Errorf("erp: invalid auth base URL: %w", err)
		}
	}
	c.sessions.Install(target, cookies, c.now())

	c.logger.Info("authenticated with ERP gateway",
		zap.Strings("cookies", result.CookieNames),
		zap.Bool("body_session_id", result.SessionID != ""),
	)
	return result, nil
}

// PostCommercialEntry posts payload as JSON to {offer}/PostCommercialEntry,
// authenticating first unless a fresh session is cached. Non-2xx answers are
// returned as a PostResult; only transport failures produce an error.
// A 401 or 403 answer invalidates the session for the next post.
func (c *SessionClient) PostCommercialEntry(ctx context.Context, payload any) (*integration.PostResult, error) {
	const op = "post commercial entry"

	if err := c.config.ValidateOffer(); err != nil {
		return nil, err
	}
	target, err := c.offerURL()
	if err != nil {
		return nil, err
	}

	if c.sessions.Valid(target, c.config.SessionCookieNames, c.config.SessionTTL, c.now()) {
		c.logger.Debug("reusing ERP session",
			zap.Time("authenticated_at", c.sessions.LastAuthenticatedAt()),
		)
	} else if _, err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("erp: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("erp: failed to create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cookie := c.sessions.CookieHeader(target); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, integration.NewTransportError(serviceName, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, integration.NewTransportError(serviceName, op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.logger.Warn("ERP rejected the session, next post re-authenticates",
			zap.Int("status", resp.StatusCode),
		)
		c.sessions.Invalidate()
	}

	return &integration.PostResult{
		Status:  resp.StatusCode,
		Data:    decodeBody(body),
		Headers: resp.Header,
	}, nil
}

func (c *SessionClient) offerURL() (*url.URL, error) {
	if c.config.OfferBaseURL == "" {
		return nil, integration.NewConfigurationError("BASE_URL_OFFER", "ERP offer base URL is required")
	}
	u, err := url.Parse(c.config.OfferBaseURL + "/PostCommercialEntry")
	if err != nil {
		return nil, fmt.Errorf("erp: invalid offer base URL: %w", err)
	}
	return u, nil
}

// decodeBody returns the JSON value of body, or body as text when it is not JSON
func decodeBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(trimmed)
	}
	return v
}

// redact removes the password from transport errors, which quote the URL
func redact(err error, password string) error {
	if password == "" {
		return err
	}
	msg := err.Error()
	escaped := url.QueryEscape(password)
	if !strings.Contains(msg, escaped) && !strings.Contains(msg, password) {
		return err
	}
	msg = strings.ReplaceAll(msg, escaped, "xxxxx")
	msg = strings.ReplaceAll(msg, password, "xxxxx")
	return &redactedError{msg: msg, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
