package bridge

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/erp/dealbridge/internal/domain/integration"
	"github.com/erp/dealbridge/internal/infrastructure/logger"
	"github.com/erp/dealbridge/internal/infrastructure/telemetry"
)

// KeyedEvent is an Event carrying the sender's delivery id
type KeyedEvent interface {
	Event
	DeliveryKey() string
}

// Delivery is a webhook body together with its delivery id
type Delivery struct {
	Body []byte
	Key  string
}

// RawData implements Event
func (d Delivery) RawData() []byte {
	return d.Body
}

// DeliveryKey implements KeyedEvent
func (d Delivery) DeliveryKey() string {
	return d.Key
}

// Handler processes one event and signals its outcome to host
type Handler interface {
	Handle(ctx context.Context, ev Event, host HostContext) error
}

// Deduplicator skips redeliveries of events that were already forwarded.
// Only successes are recorded, so a delivery that failed is processed
// again when the sender retries it. Events without a key pass through.
type Deduplicator struct {
	next    Handler
	store   integration.DeliveryStore
	ttl     time.Duration
	logger  *zap.Logger
	metrics *telemetry.BridgeMetrics
}

// DeduplicatorOption configures a Deduplicator
type DeduplicatorOption func(*Deduplicator)

// WithDedupLogger sets the logger used when the context carries none
func WithDedupLogger(l *zap.Logger) DeduplicatorOption {
	return func(d *Deduplicator) {
		d.logger = l
	}
}

// WithDedupMetrics counts skipped redeliveries
func WithDedupMetrics(m *telemetry.BridgeMetrics) DeduplicatorOption {
	return func(d *Deduplicator) {
		d.metrics = m
	}
}

// NewDeduplicator wraps next. Keys are remembered for ttl.
func NewDeduplicator(next Handler, store integration.DeliveryStore, ttl time.Duration, opts ...DeduplicatorOption) *Deduplicator {
	d := &Deduplicator{
		next:    next,
		store:   store,
		ttl:     ttl,
		logger:  zap.NewNop(),
		metrics: telemetry.MustBridgeMetrics(noop.NewMeterProvider().Meter("")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle implements Handler. A store failure never drops an event: the
// event is processed as if it were new.
func (d *Deduplicator) Handle(ctx context.Context, ev Event, host HostContext) error {
	keyed, ok := ev.(KeyedEvent)
	if !ok || keyed.DeliveryKey() == "" {
		return d.next.Handle(ctx, ev, host)
	}
	key := keyed.DeliveryKey()

	base, ok := logger.FromContextOK(ctx)
	if !ok {
		base = d.logger
	}
	log := logger.Enrich(ctx, base).With(zap.String("delivery_key", key))

	seen, err := d.store.IsDelivered(ctx, key)
	if err != nil {
		log.Warn("failed to check delivery, processing anyway", zap.Error(err))
	} else if seen {
		d.metrics.RecordDuplicate(ctx)
		log.Info("duplicate delivery skipped")
		NewOnceContext(host).CloseWithSuccess()
		return nil
	}

	if err := d.next.Handle(ctx, ev, host); err != nil {
		return err
	}

	if _, err := d.store.MarkDelivered(ctx, key, d.ttl); err != nil {
		log.Warn("failed to record delivery", zap.Error(err))
	}
	return nil
}

// Close closes the delivery store
func (d *Deduplicator) Close() error {
	return d.store.Close()
}
