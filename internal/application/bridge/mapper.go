package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/erp/dealbridge/internal/domain/deal"
	"github.com/erp/dealbridge/internal/infrastructure/logger"
	"github.com/erp/dealbridge/internal/infrastructure/telemetry"
)

// AccountLookup resolves a CRM account id to its ERP customer code and tax id.
// An unknown account yields an empty Enrichment and no error.
type AccountLookup interface {
	LookupCustomer(ctx context.Context, accountID string) (deal.Enrichment, error)
}

// Mapper builds ERP payloads from deal envelopes
type Mapper struct {
	accounts AccountLookup
	header   deal.Header
	now      func() time.Time
	newID    func() string
	metrics  *telemetry.BridgeMetrics
}

// MapperOption configures a Mapper
type MapperOption func(*Mapper)

// WithHeader overrides the Client and WebScenario sections
func WithHeader(h deal.Header) MapperOption {
	return func(m *Mapper) {
		m.header = h
	}
}

// WithMapperClock overrides time.Now for OfficialDate and CreatedAt
func WithMapperClock(now func() time.Time) MapperOption {
	return func(m *Mapper) {
		m.now = now
	}
}

// WithMessageIDs overrides the MessageId generator
func WithMessageIDs(newID func() string) MapperOption {
	return func(m *Mapper) {
		m.newID = newID
	}
}

// WithMapperMetrics records enrichment lookups
func WithMapperMetrics(metrics *telemetry.BridgeMetrics) MapperOption {
	return func(m *Mapper) {
		m.metrics = metrics
	}
}

// NewMapper creates a mapper. A nil accounts lookup disables enrichment.
func NewMapper(accounts AccountLookup, opts ...MapperOption) *Mapper {
	m := &Mapper{
		accounts: accounts,
		header:   deal.DefaultHeader(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
		metrics:  telemetry.MustBridgeMetrics(noop.NewMeterProvider().Meter("")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MapDeal builds the ERP payload for env. Missing fields degrade to empty
// values. The customer code comes only from enrichment; the CRM account id is
// never used in its place. An enrichment error aborts the mapping.
func (m *Mapper) MapDeal(ctx context.Context, env deal.Envelope) (*deal.Payload, error) {
	fields := deal.ExtractFields(env)

	ctx, span := telemetry.StartSpan(ctx, "bridge.map_deal",
		attribute.String("deal.id", fields.DealID),
		attribute.Bool("deal.has_account", fields.HasAccount),
	)
	defer span.End()

	customer, err := m.resolveCustomer(ctx, fields)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	params := deal.BuildParams{
		Header:    m.header,
		MessageID: m.newID(),
		Now:       m.now(),
		Customer:  customer,
	}
	if fields.HasDealID {
		id := fields.DealID
		params.DealID = &id
	}
	if fields.HasPaymentCode {
		code := fields.PaymentCode
		params.PaymentCode = &code
	}

	payload := deal.NewPayload(params)
	logger.L(ctx).Debug("mapped deal",
		zap.String("customer_code", customer.Code),
		zap.Bool("has_tin", customer.Tin != ""),
		zap.String("official_date", payload.CommercialEntries[0].OfficialDate),
	)
	telemetry.SetOK(span)
	return payload, nil
}

func (m *Mapper) resolveCustomer(ctx context.Context, fields deal.DealFields) (deal.Customer, error) {
	var customer deal.Customer
	if !fields.HasAccount {
		return customer, nil
	}

	acct := fields.Account
	if acct.HasName {
		name := deal.NormalizeText(acct.Name)
		customer.Name = &name
	}

	taxID := ""
	if acct.Code != "" && m.accounts != nil {
		enrichment, err := m.accounts.LookupCustomer(ctx, acct.Code)
		m.metrics.RecordCRMLookup(ctx, err == nil)
		if err != nil {
			return deal.Customer{}, fmt.Errorf("enrich account %s: %w", acct.Code, err)
		}
		customer.Code = deal.NormalizeText(enrichment.ERPCode)
		taxID = enrichment.TaxID
	}
	if taxID == "" {
		taxID = acct.TaxID
	}
	customer.Tin = deal.NormalizeText(taxID)
	return customer, nil
}
