package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/erp/dealbridge/internal/domain/deal"
	"github.com/erp/dealbridge/internal/domain/integration"
	"github.com/erp/dealbridge/internal/infrastructure/logger"
	"github.com/erp/dealbridge/internal/infrastructure/telemetry"
)

// EntryPoster sends a payload to the ERP gateway
type EntryPoster interface {
	PostCommercialEntry(ctx context.Context, payload any) (*integration.PostResult, error)
}

// PostFailedError reports an ERP answer with status >= 400
type PostFailedError struct {
	Result *integration.PostResult
}

func (e *PostFailedError) Error() string {
	return fmt.Sprintf("ERP POST failed: %d", e.Result.Status)
}

// Outcome is what happened to one deal
type Outcome struct {
	Payload *deal.Payload
	Result  *integration.PostResult
}

// Service runs deal events through the mapper and the ERP client
type Service struct {
	mapper  *Mapper
	poster  EntryPoster
	logger  *zap.Logger
	metrics *telemetry.BridgeMetrics
	now     func() time.Time
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithServiceLogger sets the fallback logger used when the context carries none
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithServiceMetrics records event and post metrics
func WithServiceMetrics(m *telemetry.BridgeMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a Service
func NewService(mapper *Mapper, poster EntryPoster, opts ...ServiceOption) *Service {
	s := &Service{
		mapper:  mapper,
		poster:  poster,
		logger:  zap.NewNop(),
		metrics: telemetry.MustBridgeMetrics(noop.NewMeterProvider().Meter("")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mapper returns the service's mapper
func (s *Service) Mapper() *Mapper {
	return s.mapper
}

// Handle processes one webhook invocation and signals exactly one outcome to
// host. The returned error is the failure cause, nil on success.
func (s *Service) Handle(ctx context.Context, ev Event, host HostContext) error {
	once := NewOnceContext(host)
	start := s.now()

	ctx = s.withLogger(ctx)
	ctx, span := telemetry.StartSpan(ctx, "bridge.handle_deal")
	defer span.End()

	env, err := deal.DecodeEnvelope(ev.RawData())
	if err == nil {
		if id, ok := deal.LookupString(env.Data(), deal.DealIDKeys); ok {
			ctx = logger.WithDealID(ctx, id)
			span.SetAttributes(attribute.String("deal.id", id))
		}
		logger.L(ctx).Debug("received deal event", zap.ByteString("envelope", ev.RawData()))
		_, err = s.Forward(ctx, env)
	}

	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}
	s.finish(ctx, once, err, start)
	return err
}

func (s *Service) finish(ctx context.Context, host *OnceContext, err error, start time.Time) {
	log := logger.L(ctx)
	s.metrics.RecordEvent(ctx, err == nil, s.now().Sub(start))
	if err != nil {
		log.Error("deal event failed", zap.Error(err))
		host.CloseWithFailure(err.Error())
		return
	}
	log.Info("deal event forwarded")
	host.CloseWithSuccess()
}

// Forward maps env and posts it. A gateway answer with status >= 400 is
// returned as a *PostFailedError alongside the outcome.
func (s *Service) Forward(ctx context.Context, env deal.Envelope) (*Outcome, error) {
	ctx = s.withLogger(ctx)
	log := logger.L(ctx)

	payload, err := s.mapper.MapDeal(ctx, env)
	if err != nil {
		return nil, err
	}
	if raw, mErr := json.Marshal(payload); mErr == nil {
		log.Debug("posting commercial entry", zap.ByteString("payload", raw))
	}

	started := s.now()
	result, err := s.poster.PostCommercialEntry(ctx, payload)
	s.metrics.RecordERPPost(ctx, statusOf(result, err), s.now().Sub(started))
	if err != nil {
		return &Outcome{Payload: payload}, err
	}

	outcome := &Outcome{Payload: payload, Result: result}
	log.Info("ERP response",
		zap.Int("status", result.Status),
		zap.Any("data", result.Data),
	)
	if result.Failed() {
		return outcome, &PostFailedError{Result: result}
	}
	return outcome, nil
}

// withLogger attaches the service logger unless the caller already
// attached a request-scoped one
func (s *Service) withLogger(ctx context.Context) context.Context {
	if _, ok := logger.FromContextOK(ctx); ok {
		return ctx
	}
	return logger.WithContext(ctx, s.logger)
}

func statusOf(result *integration.PostResult, err error) int {
	if result != nil {
		return result.Status
	}
	return integration.StatusCodeOf(err)
}

// IsPostFailure reports whether err is a gateway rejection rather than a
// mapping, configuration or transport failure
func IsPostFailure(err error) bool {
	var pf *PostFailedError
	return errors.As(err, &pf)
}
