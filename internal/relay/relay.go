// Package relay forwards verified callback outcomes to order processing.
package relay

import (
	"context"
	"fmt"
	"time"

	"ipgconnect/internal/models"
	"ipgconnect/internal/notification"
	"ipgconnect/internal/pkg/httpclient"
)

// Outcome is the canonical payload order processing receives.
type Outcome struct {
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	GatewayStatus string    `json:"gateway_status,omitempty"`
	Message       string    `json:"message,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	ApprovalCode  string    `json:"approval_code,omitempty"`
	StoredToken   string    `json:"stored_token,omitempty"`
	CardLastFour  string    `json:"card_last_four,omitempty"`
	Variant       string    `json:"variant"`
	ReceivedAt    time.Time `json:"received_at"`
}

// FromNotification projects a verified notification onto an Outcome.
func FromNotification(n *notification.Notification, receivedAt time.Time) Outcome {
	out := Outcome{
		Status:     n.Status().String(),
		Variant:    n.Variant().String(),
		ReceivedAt: receivedAt,
	}
	out.OrderID, _ = n.TransactionReference()
	out.GatewayStatus, _ = n.GatewayStatus()
	out.Message, _ = n.Message()
	out.Amount, _ = n.Amount()
	out.Currency, _ = n.Currency()
	out.ApprovalCode, _ = n.ApprovalCode()
	out.StoredToken, _ = n.StoredDetailsToken()
	out.CardLastFour, _ = n.LastFourDigits()
	return out
}

// FromRecord rebuilds the Outcome of a stored callback for re-delivery.
func FromRecord(r models.CallbackRecord) Outcome {
	return Outcome{
		OrderID:       r.OrderID,
		Status:        r.Status,
		GatewayStatus: r.GatewayStatus,
		Message:       r.Message,
		Amount:        r.Amount,
		Currency:      r.Currency,
		ApprovalCode:  r.ApprovalCode,
		StoredToken:   r.StoredToken,
		CardLastFour:  r.CardLastFour,
		Variant:       r.Variant,
		ReceivedAt:    r.ReceivedAt,
	}
}

// Relayer delivers outcomes downstream.
type Relayer interface {
	Relay(ctx context.Context, out Outcome) error
}

// OrderRelay posts outcomes to the order-processing webhook.
type OrderRelay struct {
	url    string
	client *httpclient.Client
}

func NewOrderRelay(url string, timeout time.Duration) *OrderRelay {
	return &OrderRelay{
		url: url,
		// No in-request retries: the gateway is waiting on this call, and
		// stored outcomes that fail are re-relayed by the scheduler.
		client: httpclient.New().
			WithTimeout(timeout).
			WithRetries(0).
			WithHeader("User-Agent", "ipgconnect-relay"),
	}
}

func (r *OrderRelay) Relay(ctx context.Context, out Outcome) error {
	if _, err := r.client.PostJSON(ctx, r.url, out); err != nil {
		return fmt.Errorf("relay order %s: %w", out.OrderID, err)
	}
	return nil
}

// Noop is used when no order webhook is configured.
type Noop struct{}

func (Noop) Relay(context.Context, Outcome) error { return nil }
