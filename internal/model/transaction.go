package model

import "time"

// Transaction statuses recorded by the payment service.
const (
	TransactionSuccess = "success"
	TransactionFailed  = "failed"
)

// Transaction is an append-only payment record kept by the payment
// service.  Only the last four card digits are stored.
type Transaction struct {
	ID              uint64    // transactions.id
	UserID          uint64    // transactions.user_id
	SpecialistID    uint64    // transactions.specialist_id
	ServiceName     string    // transactions.service_name
	Amount          float64   // transactions.amount
	CardLast4       string    // transactions.card_number (last four digits)
	Status          string    // transactions.transaction_status
	TransactionTime time.Time // transactions.transaction_time
}
