package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/erp/dealbridge/internal/infrastructure/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	var ctxID, ginID string
	engine.GET("/x", func(c *gin.Context) {
		ctxID = logger.GetRequestID(c.Request.Context())
		ginID = GetRequestID(c)
		c.Status(http.StatusNoContent)
	})

	t.Run("keeps caller id", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/x", "", map[string]string{RequestIDHeader: "abc"})
		assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc", ctxID)
		assert.Equal(t, "abc", ginID)
	})

	t.Run("truncates long ids", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/x", "", map[string]string{RequestIDHeader: strings.Repeat("a", 500)})
		assert.Len(t, w.Header().Get(RequestIDHeader), MaxRequestIDLength)
	})

	t.Run("generates an id", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/x", "", nil)
		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
		assert.Equal(t, w.Header().Get(RequestIDHeader), ctxID)
	})
}

func TestSecure(t *testing.T) {
	engine := gin.New()
	engine.Use(Secure())
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, http.MethodGet, "/x", "", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestBodyLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(BodyLimit(8))
	engine.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, "/x", "small", nil).Code)

	w := serve(engine, http.MethodPost, "/x", "far too large", nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_REQUEST_TOO_LARGE")
}

func TestHTTPMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	engine := gin.New()
	engine.Use(HTTPMetrics(provider.Meter("http.server")))
	engine.POST("/webhooks/deals", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	serve(engine, http.MethodPost, "/webhooks/deals", `{"id":"D1"}`, nil)
	serve(engine, http.MethodGet, "/nowhere", "", nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	routes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_server_request_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				routes[route.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"/webhooks/deals": 1, "unknown": 1}, routes)
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	engine := gin.New()
	engine.Use(RequestID(), Tracing(TracingConfig{ServiceName: "test", Enabled: true}), SpanEnricher())
	engine.POST("/webhooks/deals", func(c *gin.Context) { c.Status(http.StatusBadGateway) })
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(engine, http.MethodPost, "/webhooks/deals", "{}", map[string]string{RequestIDHeader: "r-1"})
	serve(engine, http.MethodGet, "/health", "", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1, "health probes are not traced")
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "r-1", attrs["request_id"])
}

func TestTracingDisabled(t *testing.T) {
	engine := gin.New()
	engine.Use(Tracing(TracingConfig{Enabled: false}), SpanEnricher())
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	assert.Equal(t, http.StatusInternalServerError, serve(engine, http.MethodGet, "/x", "", nil).Code)
}
