package domain

import "time"

type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindWarning NotificationKind = "warning"
	KindInfo    NotificationKind = "info"
)

type Notification struct {
	ID            string           `json:"id"`
	TransactionID string           `json:"transactionId"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Kind          NotificationKind `json:"kind"`
	CreatedAt     time.Time        `json:"createdAt"`
	Read          bool             `json:"read"`
}
