package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ipgconnect/internal/dedup"
	"ipgconnect/internal/digest"
	"ipgconnect/internal/metrics"
	"ipgconnect/internal/models"
	"ipgconnect/internal/notification"
	"ipgconnect/internal/relay"
)

// CallbackStore persists verified callbacks.
type CallbackStore interface {
	Create(record *models.CallbackRecord) error
	MarkRelayed(id uint, at time.Time) error
}

// Reporter posts a text report to the admin chat.
type Reporter interface {
	SendMessage(ctx context.Context, chatID, text string) (string, error)
}

// IPGCallbackHandler handles IPG Connect notifications and browser responses.
type IPGCallbackHandler struct {
	notifications *notification.Verifier
	responses     *notification.Verifier
	store         CallbackStore
	deduper       dedup.Deduper
	relay         relay.Relayer
	reporter      Reporter
	reportChatID  string
	logger        *zap.Logger
	now           func() time.Time
}

// CallbackDeps bundles the collaborators of IPGCallbackHandler.
// Deduper, Relay and Reporter are optional.
type CallbackDeps struct {
	Store        CallbackStore
	Deduper      dedup.Deduper
	Relay        relay.Relayer
	Reporter     Reporter
	ReportChatID string
}

// NewIPGCallbackHandler creates the handler with one verifier per flow.
func NewIPGCallbackHandler(
	creds notification.Credentials,
	opts notification.Options,
	deps CallbackDeps,
	logger *zap.Logger,
) *IPGCallbackHandler {
	h := &IPGCallbackHandler{
		notifications: notification.NewVerifier(creds, notification.VariantNotification, opts),
		responses:     notification.NewVerifier(creds, notification.VariantResponse, opts),
		store:         deps.Store,
		deduper:       deps.Deduper,
		relay:         deps.Relay,
		reporter:      deps.Reporter,
		reportChatID:  deps.ReportChatID,
		logger:        logger,
		now:           time.Now,
	}
	if h.relay == nil {
		h.relay = relay.Noop{}
	}
	return h
}

// ── Server-to-server notification ────────────────────────────────────

// Notification handles POST /ipg/notification.
func (h *IPGCallbackHandler) Notification(c echo.Context) error {
	start := h.now()
	variant := notification.VariantNotification.String()
	defer func() { metrics.ObserveCallback(variant, time.Since(start).Seconds()) }()

	fields, err := formFields(c)
	if err != nil {
		metrics.IncCallback(variant, "bad_request")
		return c.String(http.StatusBadRequest, "invalid request")
	}

	n, err := h.notifications.Verify(fields)
	if err != nil {
		code, msg := h.rejected(c, variant, fields, err)
		return c.String(code, msg)
	}

	dup, key := h.duplicate(c.Request().Context(), n)
	if dup {
		metrics.IncCallback(variant, "duplicate")
		return c.String(http.StatusOK, "OK")
	}

	h.process(c.Request().Context(), n, start, key)
	return c.String(http.StatusOK, "OK")
}

// ── Browser redirect response ────────────────────────────────────────

// Response handles GET|POST /ipg/response after the hosted payment page.
func (h *IPGCallbackHandler) Response(c echo.Context) error {
	start := h.now()
	variant := notification.VariantResponse.String()
	defer func() { metrics.ObserveCallback(variant, time.Since(start).Seconds()) }()

	fields, err := formFields(c)
	if err != nil {
		metrics.IncCallback(variant, "bad_request")
		return h.renderResult(c, http.StatusBadRequest, "Error", "Invalid request", "", "")
	}

	n, err := h.responses.Verify(fields)
	if err != nil {
		code, _ := h.rejected(c, variant, fields, err)
		return h.renderResult(c, code, "Error", "The payment result could not be verified", "", "")
	}

	if dup, key := h.duplicate(c.Request().Context(), n); !dup {
		h.process(c.Request().Context(), n, start, key)
	} else {
		metrics.IncCallback(variant, "duplicate")
	}

	orderID, _ := n.TransactionReference()
	amount, _ := n.Amount()
	title, message := resultText(n)
	return h.renderResult(c, http.StatusOK, title, message, orderID, amount)
}

func resultText(n *notification.Notification) (string, string) {
	switch n.Status() {
	case notification.StatusCompleted:
		return "Payment successful", "Thank you, your payment has been approved."
	case notification.StatusPending:
		return "Payment pending", "Your payment is being processed. You will be notified once it completes."
	default:
		msg, ok := n.Message()
		if !ok {
			msg = "The payment was not completed."
		}
		return "Payment failed", msg
	}
}

// ── Shared steps ─────────────────────────────────────────────────────

// rejected logs and counts a failed verification and picks the HTTP status.
func (h *IPGCallbackHandler) rejected(c echo.Context, variant string, fields notification.Fields, err error) (int, string) {
	logFields := []zap.Field{
		zap.String("variant", variant),
		zap.String("oid", fields[notification.FieldOrderID]),
		zap.String("ip", c.RealIP()),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, digest.ErrUnsupportedAlgorithm):
		metrics.IncCallback(variant, "unsupported_algorithm")
		h.logger.Warn("IPG callback uses unsupported hash algorithm", append(logFields,
			zap.String("hash_algorithm", fields[notification.FieldHashAlgorithm]))...)
		return http.StatusBadRequest, "unsupported hash algorithm"
	case errors.Is(err, notification.ErrAuthentication):
		metrics.IncCallback(variant, "rejected")
		h.logger.Warn("IPG callback failed verification", logFields...)
		return http.StatusForbidden, "verification failed"
	default:
		metrics.IncCallback(variant, "bad_request")
		h.logger.Error("IPG callback verification error", logFields...)
		return http.StatusBadRequest, "invalid request"
	}
}

// duplicate reports whether this verified delivery was already processed and
// returns the dedup key it claimed. Dedup failures are logged and treated as
// first delivery.
func (h *IPGCallbackHandler) duplicate(ctx context.Context, n *notification.Notification) (bool, string) {
	if h.deduper == nil {
		return false, ""
	}
	orderID, _ := n.TransactionReference()
	gatewayStatus, _ := n.GatewayStatus()
	key := dedup.Key(n.Variant().String(), orderID, gatewayStatus, n.SuppliedDigest())
	seen, err := h.deduper.Seen(ctx, key)
	if err != nil {
		h.logger.Warn("Callback dedup unavailable", zap.Error(err))
		return false, ""
	}
	return seen, key
}

// release frees a claimed dedup key so the gateway's redelivery is handled.
func (h *IPGCallbackHandler) release(ctx context.Context, key string) {
	if h.deduper == nil || key == "" {
		return
	}
	if err := h.deduper.Forget(ctx, key); err != nil {
		h.logger.Warn("Failed to release callback dedup key", zap.Error(err))
	}
}

// process stores, relays and reports a verified callback. Failures here are
// logged; the gateway still gets its acknowledgement. A stored record that
// could not be relayed is picked up by the re-relay job. When nothing was
// stored the dedup key is released so the gateway's retry is processed.
func (h *IPGCallbackHandler) process(ctx context.Context, n *notification.Notification, receivedAt time.Time, dedupKey string) {
	variant := n.Variant().String()
	metrics.IncCallback(variant, "verified")
	metrics.IncStatus(variant, n.Status().String())

	record := newRecord(n, receivedAt)
	h.logger.Info("IPG callback verified",
		zap.String("variant", variant),
		zap.String("oid", record.OrderID),
		zap.String("status", record.Status),
		zap.String("gateway_status", record.GatewayStatus),
	)

	var storeErr error
	stored := false
	if h.store != nil {
		if storeErr = h.store.Create(record); storeErr != nil {
			metrics.IncSideEffectError("store")
			h.logger.Error("Failed to store IPG callback", zap.String("oid", record.OrderID), zap.Error(storeErr))
		} else {
			stored = true
		}
	}

	relayErr := h.relay.Relay(ctx, relay.FromNotification(n, receivedAt))
	if relayErr != nil {
		metrics.IncSideEffectError("relay")
		h.logger.Error("Failed to relay IPG callback", zap.String("oid", record.OrderID), zap.Error(relayErr))
	} else if stored {
		if err := h.store.MarkRelayed(record.ID, h.now()); err != nil {
			h.logger.Warn("Failed to mark callback relayed", zap.Uint("id", record.ID), zap.Error(err))
		}
	}

	if !stored && (storeErr != nil || relayErr != nil) {
		h.release(ctx, dedupKey)
	}

	h.reportToChannel(ctx, n)
}

func newRecord(n *notification.Notification, receivedAt time.Time) *models.CallbackRecord {
	record := &models.CallbackRecord{
		Variant:       n.Variant().String(),
		Status:        n.Status().String(),
		HashAlgorithm: n.Algorithm().String(),
		ReceivedAt:    receivedAt,
	}
	record.OrderID, _ = n.TransactionReference()
	record.GatewayStatus, _ = n.GatewayStatus()
	record.Message, _ = n.Message()
	record.Amount, _ = n.Amount()
	record.Currency, _ = n.Currency()
	record.ApprovalCode, _ = n.ApprovalCode()
	record.TxnDateTime, _ = n.TransactionTime()
	record.StoredToken, _ = n.StoredDetailsToken()
	record.CardLastFour, _ = n.LastFourDigits()

	if month, ok := n.ExpiryMonth(); ok {
		if year, ok := n.ExpiryYear(); ok {
			record.CardExpiry = month + "/" + year
		}
	}
	if code, ok := n.ThreeDSecureStatus(); ok {
		record.ThreeDSecure = &code
	}

	payload := n.Fields()
	delete(payload, notification.FieldCardNumber)
	if raw, err := json.Marshal(payload); err == nil {
		record.Payload = string(raw)
	}
	return record
}

func (h *IPGCallbackHandler) reportToChannel(ctx context.Context, n *notification.Notification) {
	if h.reporter == nil || h.reportChatID == "" {
		return
	}
	if _, err := h.reporter.SendMessage(ctx, h.reportChatID, reportText(n)); err != nil {
		metrics.IncSideEffectError("report")
		h.logger.Warn("Failed to send payment report", zap.Error(err))
	}
}

func reportText(n *notification.Notification) string {
	orderID, _ := n.TransactionReference()
	gatewayStatus, _ := n.GatewayStatus()
	text := fmt.Sprintf("💳 IPG %s\n\nOrder: %s\nStatus: %s (%s)",
		n.Variant(), template.HTMLEscapeString(orderID), n.Status(), template.HTMLEscapeString(defaultOrDash(gatewayStatus)))
	if amount, ok := n.Amount(); ok {
		currency, _ := n.Currency()
		text += fmt.Sprintf("\nAmount: %s %s", template.HTMLEscapeString(amount), template.HTMLEscapeString(currency))
	}
	if n.Status() == notification.StatusFailed {
		if msg, ok := n.Message(); ok {
			text += "\nReason: " + template.HTMLEscapeString(msg)
		}
	}
	if lastFour, ok := n.LastFourDigits(); ok {
		text += "\nCard: **** " + lastFour
	}
	return text
}

var resultTemplate = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Payment result</title>
    <style>
        body { font-family: Arial, sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 400px; width: 100%; }
        h1 { color: #333; margin-bottom: 20px; }
        p { color: #666; margin-bottom: 10px; }
    </style>
</head>
<body>
    <div class="box">
        <h1>{{.Title}}</h1>
        {{if .OrderID}}<p>Order: <span>{{.OrderID}}</span></p>{{end}}
        {{if .Amount}}<p>Amount: <span>{{.Amount}}</span></p>{{end}}
        <p>{{.Message}}</p>
    </div>
</body>
</html>`))

func (h *IPGCallbackHandler) renderResult(c echo.Context, code int, title, message, orderID, amount string) error {
	data := map[string]interface{}{
		"Title":   title,
		"Message": message,
		"OrderID": orderID,
		"Amount":  amount,
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(code)
	return resultTemplate.Execute(c.Response().Writer, data)
}

// ── Utility functions ────────────────────────────────────────────────

// formFields flattens the form body and query string; the first value wins.
func formFields(c echo.Context) (notification.Fields, error) {
	values, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	fields := make(notification.Fields, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			fields[key] = vals[0]
		}
	}
	return fields, nil
}

func defaultOrDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
