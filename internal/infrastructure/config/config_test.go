package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every bound variable for the duration of the test.
// Empty values are treated as unset by viper.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "dealbridge", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.Equal(t, "https://accounts.zoho.eu", cfg.CRM.AccountsBaseURL)
		assert.Equal(t, "https://www.zohoapis.eu", cfg.CRM.APIBaseURL)
		assert.False(t, cfg.CRM.DisableLookup)
		assert.Equal(t, 30*time.Second, cfg.CRM.Timeout)
		assert.Equal(t, 25*time.Minute, cfg.ERP.SessionTTL)
		assert.Equal(t, 20*time.Second, cfg.ERP.Timeout)
		assert.Empty(t, cfg.ERP.AuthBaseURL)
		assert.Empty(t, cfg.ERP.OfferBaseURL)
		assert.Equal(t, "1", cfg.Payload.ClientCode)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, 6379, cfg.Redis.Port)
		assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodySize)
		assert.Zero(t, cfg.HTTP.DedupTTL)
		assert.Zero(t, cfg.HTTP.RateLimit)
	})

	t.Run("enables redelivery detection", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("WEBHOOK_DEDUP_TTL", "24h")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, cfg.HTTP.DedupTTL)
	})

	t.Run("rejects a negative rate limit", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("WEBHOOK_RATE_LIMIT", "-1")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("loads credentials from the deployment environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AUTH_USERNAME", "bridge")
		t.Setenv("AUTH_PASSWORD", "secret")
		t.Setenv("ZOHO_CLIENT_ID", "cid")
		t.Setenv("ZOHO_CLIENT_SECRET", "csecret")
		t.Setenv("ZOHO_REFRESH_TOKEN", "rtoken")
		t.Setenv("ZOHO_API_BASE_URL", "https://www.zohoapis.com")
		t.Setenv("ERP_SESSION_TTL", "10m")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "bridge", cfg.ERP.Username)
		assert.Equal(t, "secret", cfg.ERP.Password)
		assert.Equal(t, "cid", cfg.CRM.ClientID)
		assert.Equal(t, "csecret", cfg.CRM.ClientSecret)
		assert.Equal(t, "rtoken", cfg.CRM.RefreshToken)
		assert.Equal(t, "https://www.zohoapis.com", cfg.CRM.APIBaseURL)
		assert.Equal(t, 10*time.Minute, cfg.ERP.SessionTTL)
	})

	t.Run("BASE_URL feeds both ERP endpoints", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BASE_URL", "https://erp.example.com/api")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "https://erp.example.com/api", cfg.ERP.AuthBaseURL)
		assert.Equal(t, "https://erp.example.com/api", cfg.ERP.OfferBaseURL)
	})

	t.Run("specific ERP URLs override BASE_URL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BASE_URL", "https://erp.example.com/api")
		t.Setenv("BASE_URL_AUTH", "https://auth.example.com")
		t.Setenv("BASE_URL_OFFER", "https://offer.example.com")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "https://auth.example.com", cfg.ERP.AuthBaseURL)
		assert.Equal(t, "https://offer.example.com", cfg.ERP.OfferBaseURL)
	})

	t.Run("DISABLE_ZOHO_LOOKUP", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DISABLE_ZOHO_LOOKUP", "1")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.CRM.DisableLookup)

		t.Setenv("DISABLE_ZOHO_LOOKUP", "0")
		cfg, err = Load()
		require.NoError(t, err)
		assert.False(t, cfg.CRM.DisableLookup)
	})

	t.Run("rejects malformed base URL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ZOHO_ACCOUNTS_BASE_URL", "not a url")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AccountsBaseURL")
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LOG_LEVEL", "verbose")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("rejects sampling ratio above 1", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	t.Run("requires https ERP endpoints", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("BASE_URL", "http://erp.example.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "https")
	})

	t.Run("accepts https ERP endpoints", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "production")
		t.Setenv("BASE_URL", "https://erp.example.com")

		_, err := Load()
		require.NoError(t, err)
	})
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "anything"} {
		assert.True(t, IsTruthy(v), v)
	}
	for _, v := range []string{"", "0", " 0 "} {
		assert.False(t, IsTruthy(v), v)
	}
}
