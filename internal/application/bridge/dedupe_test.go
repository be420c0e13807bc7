package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/dealbridge/internal/domain/integration"
	"github.com/erp/dealbridge/internal/infrastructure/logger"
)

// MockDeliveryStore is a mock implementation of DeliveryStore
type MockDeliveryStore struct {
	mock.Mock
}

func (m *MockDeliveryStore) MarkDelivered(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveryStore) IsDelivered(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeliveryStore) Close() error {
	return m.Called().Error(0)
}

// MockHandler is a mock implementation of Handler that signals like the
// real service
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Handle(ctx context.Context, ev Event, host HostContext) error {
	err := m.Called(ctx, ev, host).Error(0)
	if err != nil {
		host.CloseWithFailure(err.Error())
	} else {
		host.CloseWithSuccess()
	}
	return err
}

func TestDeduplicator_FirstDeliveryIsRecorded(t *testing.T) {
	store := new(MockDeliveryStore)
	next := new(MockHandler)
	host := &recordingHost{}
	ev := Delivery{Body: []byte(`{}`), Key: "k1"}

	store.On("IsDelivered", mock.Anything, "k1").Return(false, nil)
	store.On("MarkDelivered", mock.Anything, "k1", time.Hour).Return(true, nil).Once()
	next.On("Handle", mock.Anything, ev, host).Return(nil).Once()

	err := NewDeduplicator(next, store, time.Hour).Handle(context.Background(), ev, host)
	require.NoError(t, err)
	assert.Equal(t, 1, host.successes)
	store.AssertExpectations(t)
	next.AssertExpectations(t)
}

func TestDeduplicator_RedeliveryIsSkipped(t *testing.T) {
	store := new(MockDeliveryStore)
	next := new(MockHandler)
	host := &recordingHost{}

	store.On("IsDelivered", mock.Anything, "k1").Return(true, nil)

	err := NewDeduplicator(next, store, time.Hour).Handle(context.Background(), Delivery{Key: "k1"}, host)
	require.NoError(t, err)
	assert.Equal(t, 1, host.successes)
	next.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeduplicator_LogsToContextLogger(t *testing.T) {
	store := new(MockDeliveryStore)
	store.On("IsDelivered", mock.Anything, "k1").Return(true, nil)

	fallbackCore, fallbackLogs := observer.New(zapcore.DebugLevel)
	d := NewDeduplicator(new(MockHandler), store, time.Hour, WithDedupLogger(zap.New(fallbackCore)))

	t.Run("request logger wins", func(t *testing.T) {
		core, requestLogs := observer.New(zapcore.InfoLevel)
		ctx := logger.WithContext(context.Background(), zap.New(core))
		ctx = logger.WithRequestID(ctx, "req-7")

		require.NoError(t, d.Handle(ctx, Delivery{Key: "k1"}, &recordingHost{}))

		entries := requestLogs.FilterMessage("duplicate delivery skipped").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-7", fields["request_id"])
		assert.Equal(t, "k1", fields["delivery_key"])
		assert.Zero(t, fallbackLogs.Len())
	})

	t.Run("silent request logger still wins", func(t *testing.T) {
		ctx := logger.WithContext(context.Background(), zap.NewNop())

		require.NoError(t, d.Handle(ctx, Delivery{Key: "k1"}, &recordingHost{}))
		assert.Zero(t, fallbackLogs.Len())
	})

	t.Run("falls back without a context logger", func(t *testing.T) {
		require.NoError(t, d.Handle(context.Background(), Delivery{Key: "k1"}, &recordingHost{}))
		assert.Equal(t, 1, fallbackLogs.FilterMessage("duplicate delivery skipped").Len())
	})
}

func TestDeduplicator_FailureIsNotRecorded(t *testing.T) {
	store := new(MockDeliveryStore)
	next := new(MockHandler)
	host := &recordingHost{}
	ev := Delivery{Key: "k2"}

	store.On("IsDelivered", mock.Anything, "k2").Return(false, nil)
	next.On("Handle", mock.Anything, ev, host).Return(&PostFailedError{Result: &integration.PostResult{Status: 500}})

	err := NewDeduplicator(next, store, time.Hour).Handle(context.Background(), ev, host)
	require.Error(t, err)
	assert.Equal(t, []string{"ERP POST failed: 500"}, host.failures)
	store.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeduplicator_StoreErrorProcessesAnyway(t *testing.T) {
	store := new(MockDeliveryStore)
	next := new(MockHandler)
	host := &recordingHost{}
	ev := Delivery{Key: "k3"}

	store.On("IsDelivered", mock.Anything, "k3").Return(false, errors.New("redis down"))
	store.On("MarkDelivered", mock.Anything, "k3", time.Hour).Return(false, errors.New("redis down"))
	next.On("Handle", mock.Anything, ev, host).Return(nil).Once()

	err := NewDeduplicator(next, store, time.Hour).Handle(context.Background(), ev, host)
	require.NoError(t, err)
	assert.Equal(t, 1, host.successes)
	next.AssertExpectations(t)
}

func TestDeduplicator_UnkeyedEventsPassThrough(t *testing.T) {
	store := new(MockDeliveryStore)
	next := new(MockHandler)
	host := &recordingHost{}

	next.On("Handle", mock.Anything, RawEvent(`{}`), host).Return(nil).Twice()

	d := NewDeduplicator(next, store, time.Hour)
	require.NoError(t, d.Handle(context.Background(), RawEvent(`{}`), host))
	require.NoError(t, d.Handle(context.Background(), RawEvent(`{}`), host))

	store.AssertNotCalled(t, "IsDelivered", mock.Anything, mock.Anything)
	assert.Equal(t, 2, host.successes)
}
