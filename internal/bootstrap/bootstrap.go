// Package bootstrap builds the bridge components from configuration.
// The webhook server and the command-line tools share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/dealbridge/internal/application/bridge"
	"github.com/erp/dealbridge/internal/domain/deal"
	"github.com/erp/dealbridge/internal/infrastructure/cache"
	"github.com/erp/dealbridge/internal/infrastructure/config"
	"github.com/erp/dealbridge/internal/infrastructure/crm"
	"github.com/erp/dealbridge/internal/infrastructure/erp"
	"github.com/erp/dealbridge/internal/infrastructure/telemetry"
)

// Telemetry groups the OpenTelemetry providers
type Telemetry struct {
	Tracer *telemetry.TracerProvider
	Meter  *telemetry.MeterProvider
	Logs   *telemetry.LoggerProvider
}

// NewTelemetry starts the providers. Disabled providers are no-ops.
// The returned logger also ships entries to the collector when log export is on.
func NewTelemetry(ctx context.Context, cfg config.TelemetryConfig, log *zap.Logger) (*Telemetry, *zap.Logger, error) {
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		SamplingRatio:     cfg.SamplingRatio,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, log)
	if err != nil {
		return nil, log, err
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ExportInterval:    cfg.ExportInterval,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, log, err
	}

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, log)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, log, err
	}

	t := &Telemetry{Tracer: tp, Meter: mp, Logs: lp}
	return t, lp.Bridge(log, zapcore.InfoLevel), nil
}

// Shutdown flushes and stops every provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Logs.Shutdown(ctx),
		t.Meter.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
	)
}

// CRMConfig converts the loaded settings into the accounts client configuration
func CRMConfig(cfg config.CRMConfig) *crm.Config {
	c := crm.NewConfig(cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken)
	c.AccountsBaseURL = cfg.AccountsBaseURL
	c.APIBaseURL = cfg.APIBaseURL
	c.DisableLookup = cfg.DisableLookup
	c.TimeoutSeconds = seconds(cfg.Timeout)
	c.ApplyDefaults()
	return c
}

// ERPConfig converts the loaded settings into the gateway client configuration
func ERPConfig(cfg config.ERPConfig) *erp.Config {
	c := &erp.Config{
		Username:       cfg.Username,
		Password:       cfg.Password,
		AuthBaseURL:    cfg.AuthBaseURL,
		OfferBaseURL:   cfg.OfferBaseURL,
		SessionTTL:     cfg.SessionTTL,
		TimeoutSeconds: seconds(cfg.Timeout),
	}
	c.ApplyDefaults()
	return c
}

// Header returns the literal values copied into every payload header
func Header(cfg config.PayloadConfig) deal.Header {
	h := deal.DefaultHeader()
	if cfg.ClientCode != "" {
		h.ClientCode = cfg.ClientCode
	}
	if cfg.ClientName != "" {
		h.ClientName = cfg.ClientName
	}
	if cfg.WebScenario != "" {
		h.WebScenario = cfg.WebScenario
	}
	return h
}

// NewERPClient builds the gateway client with a traced HTTP client
func NewERPClient(cfg config.ERPConfig, log *zap.Logger) *erp.SessionClient {
	c := ERPConfig(cfg)
	return erp.NewSessionClient(c,
		erp.WithHTTPClient(telemetry.NewHTTPClient(time.Duration(c.TimeoutSeconds)*time.Second)),
		erp.WithLogger(log.Named("erp")),
	)
}

// NewCRMClient builds the accounts client. Tokens are kept in store.
func NewCRMClient(cfg config.CRMConfig, store *cache.StoreFactory, log *zap.Logger) (*crm.AccountsClient, error) {
	tokens, err := store.CreateTokenStore()
	if err != nil {
		return nil, fmt.Errorf("create token store: %w", err)
	}
	c := CRMConfig(cfg)
	return crm.NewAccountsClient(c,
		crm.WithHTTPClient(telemetry.NewHTTPClient(time.Duration(c.TimeoutSeconds)*time.Second)),
		crm.WithTokenStore(tokens),
		crm.WithLogger(log.Named("crm")),
	), nil
}

// Bridge holds the wired pipeline and the clients behind it
type Bridge struct {
	Accounts *crm.AccountsClient
	ERP      *erp.SessionClient
	Metrics  *telemetry.BridgeMetrics
	Mapper   *bridge.Mapper
	Service  *bridge.Service

	dedupe *bridge.Deduplicator
}

// NewBridge wires the mapper and service to live CRM and ERP clients
func NewBridge(cfg *config.Config, stores *cache.StoreFactory, metrics *telemetry.BridgeMetrics, log *zap.Logger) (*Bridge, error) {
	accounts, err := NewCRMClient(cfg.CRM, stores, log)
	if err != nil {
		return nil, err
	}
	gateway := NewERPClient(cfg.ERP, log)

	mapper := bridge.NewMapper(accounts,
		bridge.WithHeader(Header(cfg.Payload)),
		bridge.WithMapperMetrics(metrics),
	)
	service := bridge.NewService(mapper, gateway,
		bridge.WithServiceLogger(log.Named("bridge")),
		bridge.WithServiceMetrics(metrics),
	)
	return &Bridge{
		Accounts: accounts,
		ERP:      gateway,
		Metrics:  metrics,
		Mapper:   mapper,
		Service:  service,
	}, nil
}

// Handler returns the service, wrapped in redelivery detection when ttl is positive
func (b *Bridge) Handler(stores *cache.StoreFactory, ttl time.Duration, log *zap.Logger) (bridge.Handler, error) {
	if ttl <= 0 {
		return b.Service, nil
	}
	deliveries, err := stores.CreateDeliveryStore()
	if err != nil {
		return nil, fmt.Errorf("create delivery store: %w", err)
	}
	b.dedupe = bridge.NewDeduplicator(b.Service, deliveries, ttl,
		bridge.WithDedupLogger(log.Named("dedupe")),
		bridge.WithDedupMetrics(b.Metrics),
	)
	return b.dedupe, nil
}

// Close releases the delivery store, if one was created
func (b *Bridge) Close() error {
	if b.dedupe == nil {
		return nil
	}
	return b.dedupe.Close()
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if s == 0 {
		return 1
	}
	return s
}
