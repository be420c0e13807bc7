package crm

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

	"github.com/erp/dealbridge/internal/domain/deal"
	"github.com/erp/dealbridge/internal/domain/integration"
	"github.com/erp/dealbridge/internal/infrastructure/cache"
)

const (
	serviceName = "crm"

	// maxResponseSize caps how much of a CRM response is read (1MB)
	maxResponseSize = 1 << 20
)

// AccountsClient exchanges the refresh token for bearer tokens and reads
// account records from the CRM REST API
type AccountsClient struct {
	config     *Config
	httpClient *http.Client
	tokens     integration.TokenStore
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an AccountsClient
type Option func(*AccountsClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(a *AccountsClient) {
		a.httpClient = c
	}
}

// WithTokenStore shares a token store, e.g. a Redis store across replicas
func WithTokenStore(s integration.TokenStore) Option {
	return func(a *AccountsClient) {
		a.tokens = s
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(a *AccountsClient) {
		a.logger = l
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(a *AccountsClient) {
		a.now = now
	}
}

// NewAccountsClient creates a client. Credentials are not checked here; they
// are checked before the first token exchange.
func NewAccountsClient(config *Config, opts ...Option) *AccountsClient {
	config.ApplyDefaults()

	a := &AccountsClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		tokens: cache.NewInMemoryTokenStore(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LookupDisabled reports whether live account lookups are switched off
func (a *AccountsClient) LookupDisabled() bool {
	return a.config.DisableLookup
}

// GetAccessToken returns a usable bearer token, exchanging the refresh token
// when the cached one is missing or within a minute of expiry
func (a *AccountsClient) GetAccessToken(ctx context.Context) (string, error) {
	if err := a.config.Validate(); err != nil {
		return "", err
	}

	cached, ok, err := a.tokens.Load(ctx)
	if err != nil {
		a.logger.Warn("CRM token store unavailable, exchanging a new token", zap.Error(err))
	} else if ok && cached.UsableAt(a.now()) {
		return cached.Value, nil
	}

	token, err := a.exchangeRefreshToken(ctx)
	if err != nil {
		return "", err
	}
	if err := a.tokens.Save(ctx, token); err != nil {
		a.logger.Warn("failed to cache CRM token", zap.Error(err))
	}
	return token.Value, nil
}

func (a *AccountsClient) exchangeRefreshToken(ctx context.Context) (integration.AccessToken, error) {
	const op = "token exchange"

	form := url.Values{}
	form.Set("refresh_token", a.config.RefreshToken)
	form.Set("client_id", a.config.ClientID)
	form.Set("client_secret", a.config.ClientSecret)
	form.Set("grant_type", "refresh_token")

	endpoint := a.config.AccountsBaseURL + "/oauth/v2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return integration.AccessToken{}, fmt.Errorf("crm: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := a.doRequest(req, op)
	if err != nil {
		return integration.AccessToken{}, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return integration.AccessToken{}, integration.NewInvalidResponseError(serviceName, op, "response is not JSON")
	}
	if resp.AccessToken == "" {
		msg := "no access_token in response"
		if resp.Error != "" {
			msg += ": " + resp.Error
		}
		return integration.AccessToken{}, integration.NewInvalidResponseError(serviceName, op, msg)
	}

	expiresIn := resp.expiresInSeconds()
	a.logger.Debug("exchanged CRM refresh token", zap.Int64("expires_in", expiresIn))
	return integration.AccessToken{
		Value:     resp.AccessToken,
		ExpiresAt: a.now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

// FetchAccountRecord returns the first record for accountID, or nil when the
// id is empty, lookups are disabled or the API returns no data
func (a *AccountsClient) FetchAccountRecord(ctx context.Context, accountID string) (AccountRecord, error) {
	const op = "fetch account"

	accountID = strings.TrimSpace(accountID)
	if accountID == "" || a.config.DisableLookup {
		return nil, nil
	}

	token, err := a.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := a.config.APIBaseURL + "/crm/v2/Accounts/" + url.PathEscape(accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("crm: failed to create account request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")

	body, err := a.doRequest(req, op)
	if err != nil {
		if integration.StatusCodeOf(err) == http.StatusUnauthorized {
			// revoked before expiry; the next lookup exchanges a fresh token
			_ = a.tokens.Clear(ctx)
		}
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var resp accountsResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, integration.NewInvalidResponseError(serviceName, op, "response is not JSON")
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return AccountRecord(resp.Data[0]), nil
}

// GetAccountERPCode returns the account's ERP customer code, or ""
func (a *AccountsClient) GetAccountERPCode(ctx context.Context, accountID string) (string, error) {
	record, err := a.FetchAccountRecord(ctx, accountID)
	if err != nil || record == nil {
		return "", err
	}
	return record.ERPCode(), nil
}

// GetAccountAFM returns the account's tax id, or ""
func (a *AccountsClient) GetAccountAFM(ctx context.Context, accountID string) (string, error) {
	record, err := a.FetchAccountRecord(ctx, accountID)
	if err != nil || record == nil {
		return "", err
	}
	return record.TaxID(), nil
}

// LookupCustomer fetches the account once and returns both the ERP code and
// the tax id
func (a *AccountsClient) LookupCustomer(ctx context.Context, accountID string) (deal.Enrichment, error) {
	record, err := a.FetchAccountRecord(ctx, accountID)
	if err != nil || record == nil {
		return deal.Enrichment{}, err
	}
	return deal.Enrichment{
		ERPCode: record.ERPCode(),
		TaxID:   record.TaxID(),
	}, nil
}

// doRequest sends req and returns the body of a 2xx response. Non-2xx
// responses and transport failures become UpstreamErrors.
func (a *AccountsClient) doRequest(req *http.Request, op string) ([]byte, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, integration.NewTransportError(serviceName, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, integration.NewTransportError(serviceName, op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, integration.NewHTTPStatusError(serviceName, op, resp.StatusCode, integration.ErrorBody(body))
	}
	return body, nil
}
