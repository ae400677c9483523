package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusApproved   Status = "APPROVED"
	StatusSuspicious Status = "SUSPICIOUS"
	StatusRejected   Status = "REJECTED"
)

// Valid reports whether s is one of the statuses the fraud API can report.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusSuspicious, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s ends the review lifecycle. SUSPICIOUS is not
// terminal: it is waiting on an analyst.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// TransactionSnapshot is the server-reported view of one transaction at the
// time of a fetch. ReviewedBy is empty until an analyst has acted.
type TransactionSnapshot struct {
	ID         string          `json:"id"`
	Status     Status          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	ReviewedBy string          `json:"reviewedBy,omitempty"`
}

// Reviewed reports whether a human analyst has acted on the transaction.
func (t TransactionSnapshot) Reviewed() bool {
	return t.ReviewedBy != ""
}

// SubmitRequest is the customer transfer sent to the fraud API for scoring.
type SubmitRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	UserID   string          `json:"userId"`
	Location string          `json:"location"`
	DeviceID string          `json:"deviceId"`
}

// Verdict is the scorer's answer for a submitted transaction.
type Verdict struct {
	TransactionID string   `json:"transactionId,omitempty"`
	Status        Status   `json:"status"`
	RiskScore     int      `json:"riskScore"`
	Violations    []string `json:"violations"`
}

// Transaction is the full record kept by the sandbox fraud API.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Location    string          `json:"location"`
	DeviceID    string          `json:"deviceId"`
	Status      Status          `json:"status"`
	RiskScore   int             `json:"riskScore"`
	Violations  []string        `json:"violations"`
	ReviewedBy  string          `json:"reviewedBy,omitempty"`
	AnalystNote string          `json:"analystComment,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ReviewedAt  *time.Time      `json:"reviewedAt,omitempty"`
}

// Snapshot projects the record onto the view served to polling clients.
func (t Transaction) Snapshot() TransactionSnapshot {
	return TransactionSnapshot{
		ID:         t.ID,
		Status:     t.Status,
		Amount:     t.Amount,
		ReviewedBy: t.ReviewedBy,
	}
}
