package bridge

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/erp/dealbridge/internal/domain/deal"
	"github.com/erp/dealbridge/internal/domain/integration"
)

// MockAccountLookup is a mock implementation of AccountLookup
type MockAccountLookup struct {
	mock.Mock
}

func (m *MockAccountLookup) LookupCustomer(ctx context.Context, accountID string) (deal.Enrichment, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(deal.Enrichment), args.Error(1)
}

// MockEntryPoster is a mock implementation of EntryPoster
type MockEntryPoster struct {
	mock.Mock
}

func (m *MockEntryPoster) PostCommercialEntry(ctx context.Context, payload any) (*integration.PostResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PostResult), args.Error(1)
}

// recordingHost counts outcome signals
type recordingHost struct {
	successes int
	failures  []string
}

func (h *recordingHost) CloseWithSuccess() {
	h.successes++
}

func (h *recordingHost) CloseWithFailure(message string) {
	h.failures = append(h.failures, message)
}

func (h *recordingHost) signals() int {
	return h.successes + len(h.failures)
}
