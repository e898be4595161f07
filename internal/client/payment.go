package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ChargeRequest is the body of POST /pay.
type ChargeRequest struct {
	UserID       uint64  `json:"user_id"`
	SpecialistID uint64  `json:"specialist_id"`
	ServiceName  string  `json:"service_name"`
	Amount       float64 `json:"amount"`
	CardNumber   string  `json:"card_number"`
	CardCVV      string  `json:"card_cvv"`
	CardExpiry   string  `json:"card_expiry"`
}

// ChargeResponse is the 200 reply of POST /pay.
type ChargeResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	TransactionID uint64 `json:"transaction_id,omitempty"`
}

// PaymentClient charges cards through the payment service.
type PaymentClient struct {
	base
}

func NewPaymentClient(baseURL string, timeout time.Duration, log *slog.Logger) *PaymentClient {
	return &PaymentClient{base: newBase(baseURL, timeout, log)}
}

// Charge posts a payment.  Anything other than 200 with success=true is
// ErrPaymentDeclined; transport failures are ErrUnavailable.
func (c *PaymentClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	const op = "client.payment.charge"
	r, err := c.do(ctx, op, http.MethodPost, "/pay", nil, req)
	if err != nil {
		return nil, err
	}
	if r.status != http.StatusOK {
		return nil, fmt.Errorf("%s: %w: status %d: %s", op, ErrPaymentDeclined, r.status, r.detail())
	}
	var out ChargeResponse
	if err := r.decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w: unreadable response: %v", op, ErrPaymentDeclined, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrPaymentDeclined, out.Message)
	}
	c.log.InfoContext(ctx, op,
		"user_id", req.UserID,
		"specialist_id", req.SpecialistID,
		"amount", req.Amount,
		"transaction_id", out.TransactionID)
	return &out, nil
}
