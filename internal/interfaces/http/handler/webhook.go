package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/dealbridge/internal/application/bridge"
	"github.com/erp/dealbridge/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader carries the sender's delivery id
const IdempotencyKeyHeader = "Idempotency-Key"

// DealWebhookHandler receives CRM deal events
type DealWebhookHandler struct {
	processor  bridge.Handler
	middleware []gin.HandlerFunc
}

// NewDealWebhookHandler creates a DealWebhookHandler. The optional middleware
// runs on the webhook route only.
func NewDealWebhookHandler(processor bridge.Handler, middleware ...gin.HandlerFunc) *DealWebhookHandler {
	return &DealWebhookHandler{processor: processor, middleware: middleware}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *DealWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	handlers := append(append([]gin.HandlerFunc{}, h.middleware...), h.Receive)
	rg.POST("/webhooks/deals", handlers...)
}

// Receive runs the raw request body through the pipeline.
// 200 on success, 400 for a body that is not JSON, 502 when the CRM or ERP
// call failed.
func (h *DealWebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeTooLarge, "Request body exceeds maximum allowed size"))
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest,
			dto.NewErrorResponse(dto.ErrCodeInvalidJSON, "could not read request body"))
		return
	}

	host := &responder{}
	ev := bridge.Delivery{Body: body, Key: c.GetHeader(IdempotencyKeyHeader)}
	err = h.processor.Handle(c.Request.Context(), ev, host)

	switch {
	case host.succeeded:
		c.JSON(http.StatusOK, dto.NewSuccessResponse(nil))
	case host.failed:
		_ = c.Error(err)
		code := dto.CodeForError(err, bridge.IsPostFailure(err))
		c.JSON(dto.GetHTTPStatus(code), dto.NewFailureResponse(code, host.message))
	default:
		_ = c.Error(errors.New("pipeline returned without signalling an outcome"))
		c.JSON(http.StatusInternalServerError,
			dto.NewErrorResponse(dto.ErrCodeInternal, "internal error"))
	}
}

// responder records the outcome signalled by the pipeline; the handler
// renders it once Handle returns
type responder struct {
	succeeded bool
	failed    bool
	message   string
}

func (r *responder) CloseWithSuccess() {
	r.succeeded = true
}

func (r *responder) CloseWithFailure(message string) {
	r.failed = true
	r.message = message
}
