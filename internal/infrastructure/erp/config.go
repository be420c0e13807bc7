package erp

import (
	"strings"
	"time"

	"github.com/erp/dealbridge/internal/domain/integration"
)

const (
	// DefaultSessionTTL is how long an authenticated session is reused
	DefaultSessionTTL = 25 * time.Minute
	// DefaultTimeoutSeconds bounds each outbound call
	DefaultTimeoutSeconds = 20
)

// DefaultSessionCookieNames are the cookie names the gateway is known to use
var DefaultSessionCookieNames = []string{"SessionId", "ASP.NET_SessionId", "JSESSIONID"}

// Config holds the ERP gateway credentials and endpoints
type Config struct {
	Username     string
	Password     string
	AuthBaseURL  string
	OfferBaseURL string
	SessionTTL   time.Duration
	// SessionCookieNames are the cookies that prove an authenticated session
	SessionCookieNames []string
	TimeoutSeconds     int
}

// NewConfig creates a configuration where auth and offer share one base URL
func NewConfig(username, password, baseURL string) *Config {
	cfg := &Config{
		Username:     username,
		Password:     password,
		AuthBaseURL:  baseURL,
		OfferBaseURL: baseURL,
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills the TTL, cookie names and timeout and strips trailing slashes
func (c *Config) ApplyDefaults() {
	c.AuthBaseURL = strings.TrimRight(strings.TrimSpace(c.AuthBaseURL), "/")
	c.OfferBaseURL = strings.TrimRight(strings.TrimSpace(c.OfferBaseURL), "/")
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if len(c.SessionCookieNames) == 0 {
		c.SessionCookieNames = append([]string(nil), DefaultSessionCookieNames...)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

// ValidateCredentials checks what Authenticate needs
func (c *Config) ValidateCredentials() error {
	switch {
	case c.Username == "":
		return integration.NewConfigurationError("AUTH_USERNAME", "ERP username is required")
	case c.Password == "":
		return integration.NewConfigurationError("AUTH_PASSWORD", "ERP password is required")
	case c.AuthBaseURL == "":
		return integration.NewConfigurationError("BASE_URL_AUTH", "ERP auth base URL is required")
	}
	return nil
}

// ValidateOffer checks what PostCommercialEntry needs before authenticating
func (c *Config) ValidateOffer() error {
	if c.OfferBaseURL == "" {
		return integration.NewConfigurationError("BASE_URL_OFFER", "ERP offer base URL is required")
	}
	return nil
}
