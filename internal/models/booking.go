package models

import (
	"time"
)

type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositPaid      DepositStatus = "paid"
	DepositRefunded  DepositStatus = "refunded"
	DepositForfeited DepositStatus = "forfeited"
)

// CanTransitionTo reports whether the deposit machine allows moving to next.
// Refunded and forfeited are terminal.
func (s DepositStatus) CanTransitionTo(next DepositStatus) bool {
	switch s {
	case DepositPending:
		return next == DepositPaid
	case DepositPaid:
		return next == DepositRefunded || next == DepositForfeited
	default:
		return false
	}
}

type Booking struct {
	ID            int           `json:"id" db:"id"`
	ProjectID     int           `json:"project_id" db:"project_id"`
	UserID        int           `json:"user_id" db:"user_id"`
	DepositStatus DepositStatus `json:"deposit_status" db:"deposit_status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}
