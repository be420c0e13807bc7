package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys used by bridge metrics
var (
	AttrOutcome    = attribute.Key("outcome")
	AttrStatusCode = attribute.Key("http.status_code")
	AttrService    = attribute.Key("upstream.service")
	AttrOperation  = attribute.Key("upstream.operation")
	AttrHTTPMethod = attribute.Key("http.method")
	AttrHTTPRoute  = attribute.Key("http.route")
)

// Event outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// BridgeMetrics holds the instruments recorded while forwarding deals
type BridgeMetrics struct {
	events        *Counter
	erpPosts      *Counter
	erpPostTime   *Histogram
	crmLookups    *Counter
	eventDuration *Histogram
	duplicates    *Counter
}

// NewBridgeMetrics creates the bridge instruments on meter
func NewBridgeMetrics(meter metric.Meter) (*BridgeMetrics, error) {
	events, err := NewCounter(meter, "dealbridge.events", "Deal events handled, by outcome", "{event}")
	if err != nil {
		return nil, err
	}
	erpPosts, err := NewCounter(meter, "dealbridge.erp.posts", "Commercial entries posted, by HTTP status", "{request}")
	if err != nil {
		return nil, err
	}
	erpPostTime, err := NewHistogram(meter, HistogramOpts{
		Name:        "dealbridge.erp.post.duration",
		Description: "Duration of commercial-entry posts including authentication",
		Unit:        "s",
		Boundaries:  UpstreamDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	crmLookups, err := NewCounter(meter, "dealbridge.crm.lookups", "Account enrichment lookups, by outcome", "{request}")
	if err != nil {
		return nil, err
	}
	eventDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "dealbridge.event.duration",
		Description: "End-to-end duration of one deal event",
		Unit:        "s",
		Boundaries:  UpstreamDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	duplicates, err := NewCounter(meter, "dealbridge.deliveries.duplicate", "Webhook redeliveries skipped", "{event}")
	if err != nil {
		return nil, err
	}

	return &BridgeMetrics{
		events:        events,
		erpPosts:      erpPosts,
		erpPostTime:   erpPostTime,
		crmLookups:    crmLookups,
		eventDuration: eventDuration,
		duplicates:    duplicates,
	}, nil
}

// MustBridgeMetrics is NewBridgeMetrics for meters that cannot fail, such as no-op meters
func MustBridgeMetrics(meter metric.Meter) *BridgeMetrics {
	m, err := NewBridgeMetrics(meter)
	if err != nil {
		panic(fmt.Sprintf("telemetry: %v", err))
	}
	return m
}

// RecordEvent counts a handled event and its duration
func (m *BridgeMetrics) RecordEvent(ctx context.Context, success bool, d time.Duration) {
	outcome := AttrOutcome.String(outcomeOf(success))
	m.events.Inc(ctx, outcome)
	m.eventDuration.RecordDuration(ctx, d, outcome)
}

// RecordERPPost records a post answered with status. A zero status means
// the request never got an answer.
func (m *BridgeMetrics) RecordERPPost(ctx context.Context, status int, d time.Duration) {
	attr := AttrStatusCode.Int(status)
	m.erpPosts.Inc(ctx, attr)
	m.erpPostTime.RecordDuration(ctx, d, attr)
}

// RecordCRMLookup counts an account enrichment call
func (m *BridgeMetrics) RecordCRMLookup(ctx context.Context, success bool) {
	m.crmLookups.Inc(ctx, AttrOutcome.String(outcomeOf(success)))
}

// RecordDuplicate counts a redelivered event that was not forwarded again
func (m *BridgeMetrics) RecordDuplicate(ctx context.Context) {
	m.duplicates.Inc(ctx)
}

func outcomeOf(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
