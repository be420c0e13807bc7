package crm

import (
	"strings"

	"github.com/erp/dealbridge/internal/domain/integration"
)

const (
	// DefaultAccountsBaseURL is the EU OAuth host
	DefaultAccountsBaseURL = "https://accounts.zoho.eu"
	// DefaultAPIBaseURL is the EU REST API host
	DefaultAPIBaseURL = "https://www.zohoapis.eu"
	// DefaultTimeoutSeconds bounds each outbound call
	DefaultTimeoutSeconds = 30
)

// Config holds the CRM OAuth client and API endpoints
type Config struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	AccountsBaseURL string
	APIBaseURL      string
	// DisableLookup short-circuits account fetches for offline runs
	DisableLookup  bool
	TimeoutSeconds int
}

// NewConfig creates a configuration with the EU endpoints
func NewConfig(clientID, clientSecret, refreshToken string) *Config {
	return &Config{
		ClientID:        clientID,
		ClientSecret:    clientSecret,
		RefreshToken:    refreshToken,
		AccountsBaseURL: DefaultAccountsBaseURL,
		APIBaseURL:      DefaultAPIBaseURL,
		TimeoutSeconds:  DefaultTimeoutSeconds,
	}
}

// ApplyDefaults fills empty endpoints and timeout and strips trailing slashes
func (c *Config) ApplyDefaults() {
	if c.AccountsBaseURL == "" {
		c.AccountsBaseURL = DefaultAccountsBaseURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	c.AccountsBaseURL = strings.TrimRight(c.AccountsBaseURL, "/")
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

// Validate checks that the OAuth credentials are present.
// It is called before every token exchange rather than at construction,
// so a bridge running with lookups disabled needs no credentials.
func (c *Config) Validate() error {
	switch {
	case c.ClientID == "":
		return integration.NewConfigurationError("ZOHO_CLIENT_ID", "CRM client id is required")
	case c.ClientSecret == "":
		return integration.NewConfigurationError("ZOHO_CLIENT_SECRET", "CRM client secret is required")
	case c.RefreshToken == "":
		return integration.NewConfigurationError("ZOHO_REFRESH_TOKEN", "CRM refresh token is required")
	}
	return nil
}
