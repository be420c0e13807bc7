package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/dealbridge/internal/application/bridge"
	"github.com/erp/dealbridge/internal/infrastructure/logger"
	"github.com/erp/dealbridge/internal/interfaces/http/dto"
	"github.com/erp/dealbridge/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithPrefix("/bridge"))
	r.Register(pingRoutes{}).Setup()

	req := httptest.NewRequest(http.MethodGet, "/bridge/ping", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Len(t, r.registrars, 1)
}

// echoHandler signals success and records the request id it saw
type echoHandler struct {
	requestID string
	body      string
}

func (h *echoHandler) Handle(ctx context.Context, ev bridge.Event, host bridge.HostContext) error {
	h.requestID = logger.GetRequestID(ctx)
	h.body = string(ev.RawData())
	host.CloseWithSuccess()
	return nil
}

func newTestEngine(t *testing.T, processor bridge.Handler, maxBody int64) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	engine := NewEngine(EngineConfig{Logger: zap.New(core), ServiceName: "dealbridge-test", MaxBodySize: maxBody})
	NewRouter(engine).
		Register(handler.NewHealthHandler("dealbridge", "test")).
		Register(handler.NewDealWebhookHandler(processor)).
		Setup()
	return engine, logs
}

func TestEngine_WebhookCarriesRequestID(t *testing.T) {
	processor := &echoHandler{}
	engine, logs := newTestEngine(t, processor, 0)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/deals", strings.NewReader(`{"id":"D1"}`))
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "req-42", processor.requestID)
	assert.Equal(t, `{"id":"D1"}`, processor.body)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}

func TestEngine_GeneratesRequestID(t *testing.T) {
	engine, _ := newTestEngine(t, &echoHandler{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestEngine_BodyLimit(t *testing.T) {
	processor := &echoHandler{}
	engine, _ := newTestEngine(t, processor, 16)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/deals", strings.NewReader(`{"data":{"id":"a-much-longer-deal-id"}}`))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeTooLarge, resp.Error.Code)
	assert.Empty(t, processor.body)
}

func TestEngine_RecoversFromPanics(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	engine.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
