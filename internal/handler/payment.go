package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/specialist-booking/internal/card"
	"github.com/iliyamo/specialist-booking/internal/logger"
	"github.com/iliyamo/specialist-booking/internal/model"
)

// TransactionStore is the payment ledger.
type TransactionStore interface {
	Create(ctx context.Context, t *model.Transaction) error
	List(ctx context.Context, limit int) ([]model.Transaction, error)
}

// PaymentHandler is the simulated payment collaborator.  Cards are checked
// for expiry and checksum; a charge succeeds when the amount is positive.
// Every attempt that reaches the amount check is recorded.
type PaymentHandler struct {
	store TransactionStore
	log   *slog.Logger
	now   func() time.Time
}

func NewPaymentHandler(store TransactionStore, log *slog.Logger) *PaymentHandler {
	if store == nil {
		panic("nil transaction store passed to NewPaymentHandler")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PaymentHandler{store: store, log: log, now: time.Now}
}

type payReq struct {
	UserID       uint64  `json:"user_id" validate:"required,gt=0"`
	SpecialistID uint64  `json:"specialist_id" validate:"required,gt=0"`
	ServiceName  string  `json:"service_name" validate:"required"`
	Amount       float64 `json:"amount" validate:"gt=-100000000,lt=100000000"` // fits NUMERIC(10,2)
	CardNumber   string  `json:"card_number" validate:"required,len=16,numeric"`
	CardCVV      string  `json:"card_cvv" validate:"required,len=3,numeric"`
	CardExpiry   string  `json:"card_expiry" validate:"required,card_expiry"`
}

type payResp struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID uint64 `json:"transaction_id"`
}

type transactionResp struct {
	ID              uint64    `json:"id"`
	UserID          uint64    `json:"user_id"`
	SpecialistID    uint64    `json:"specialist_id"`
	ServiceName     string    `json:"service_name"`
	Amount          float64   `json:"amount"`
	CardNumber      string    `json:"card_number"`
	Status          string    `json:"transaction_status"`
	TransactionTime time.Time `json:"transaction_time"`
}

func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"detail": msg})
}

// Pay handles POST /pay.
func (h *PaymentHandler) Pay(c echo.Context) error {
	var req payReq
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return detail(c, http.StatusBadRequest, err.Error())
	}
	if !card.ValidateExpiry(req.CardExpiry, h.now().UTC()) {
		return detail(c, http.StatusBadRequest, "Card is expired")
	}
	if !card.ValidateCardNumber(req.CardNumber) {
		return detail(c, http.StatusBadRequest, "Invalid card number")
	}

	tx := model.Transaction{
		UserID:       req.UserID,
		SpecialistID: req.SpecialistID,
		ServiceName:  req.ServiceName,
		Amount:       req.Amount,
		CardLast4:    card.Last4(req.CardNumber),
		Status:       model.TransactionFailed,
	}
	if req.Amount > 0 {
		tx.Status = model.TransactionSuccess
	}
	ctx := c.Request().Context()
	if err := h.store.Create(ctx, &tx); err != nil {
		h.log.ErrorContext(ctx, "payment.record_failed", "user_id", req.UserID, "error", err)
		return detail(c, http.StatusInternalServerError, "Failed to record transaction")
	}
	h.log.InfoContext(ctx, "payment.processed",
		"transaction_id", tx.ID,
		"user_id", tx.UserID,
		"specialist_id", tx.SpecialistID,
		"amount", tx.Amount,
		"status", tx.Status)

	if tx.Status != model.TransactionSuccess {
		return detail(c, http.StatusBadRequest, "Payment failed")
	}
	return c.JSON(http.StatusOK, payResp{Success: true, Message: "Payment successful", TransactionID: tx.ID})
}

// Transactions handles GET /transactions, newest first.  ?limit=N caps
// the result.
func (h *PaymentHandler) Transactions(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return detail(c, http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	list, err := h.store.List(c.Request().Context(), limit)
	if err != nil {
		h.log.ErrorContext(c.Request().Context(), "payment.list_failed", "error", err)
		return detail(c, http.StatusInternalServerError, "Failed to list transactions")
	}
	out := make([]transactionResp, 0, len(list))
	for _, t := range list {
		out = append(out, transactionResp{
			ID:              t.ID,
			UserID:          t.UserID,
			SpecialistID:    t.SpecialistID,
			ServiceName:     t.ServiceName,
			Amount:          t.Amount,
			CardNumber:      card.Mask(t.CardLast4),
			Status:          t.Status,
			TransactionTime: t.TransactionTime,
		})
	}
	return c.JSON(http.StatusOK, out)
}
