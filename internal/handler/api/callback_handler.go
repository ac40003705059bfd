package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ipgconnect/internal/models"
)

// CallbackReader is the read side of the callback store.
type CallbackReader interface {
	FindAll(limit, page int, query string) ([]models.CallbackRecord, int64, error)
	FindLatestByOrderID(orderID string) (*models.CallbackRecord, error)
}

// CallbackHandler serves the admin view over recorded gateway callbacks.
type CallbackHandler struct {
	callbacks CallbackReader
	logger    *zap.Logger
}

func NewCallbackHandler(callbacks CallbackReader, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{callbacks: callbacks, logger: logger}
}

// Handle routes callback API requests.
// GET|POST /api/callbacks
func (h *CallbackHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "callbacks":
		return h.listCallbacks(c, body)
	case "callback":
		return h.getCallback(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *CallbackHandler) listCallbacks(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)
	q := getStringField(body, "q")
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if page <= 0 {
		page = 1
	}

	records, total, err := h.callbacks.FindAll(limit, page, q)
	if err != nil {
		h.logger.Error("Failed to list callbacks", zap.Error(err))
		return errorResponse(c, "Failed to retrieve callbacks")
	}

	return successResponse(c, "Successful", paginatedResponse(records, total, page, limit))
}

func (h *CallbackHandler) getCallback(c echo.Context, body map[string]interface{}) error {
	orderID := getStringField(body, "oid")
	if orderID == "" {
		return errorResponse(c, "oid is required")
	}

	record, err := h.callbacks.FindLatestByOrderID(orderID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("Failed to load callback", zap.String("oid", orderID), zap.Error(err))
		}
		return errorResponse(c, "Callback not found")
	}

	return successResponse(c, "Successful", record)
}
