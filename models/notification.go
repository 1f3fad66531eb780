package models

import (
	"database/sql"
	"time"
)

// NotificationKind is the event a notification reports
type NotificationKind string

const (
	KindStatusChanged NotificationKind = "statusChanged"
	KindEscalated     NotificationKind = "escalated"
	KindAssigned      NotificationKind = "assigned"
)

// NotificationChannel represents the notification channel type
type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "email"
	ChannelWhatsApp NotificationChannel = "whatsapp"
	ChannelTelegram NotificationChannel = "telegram"
)

// NotificationStatus represents the status of a delivery attempt
type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// Metadata keys understood by the dispatcher
const (
	MetaEvent          = "event"
	MetaRecipientEmail = "recipient_email"
	MetaRecipientName  = "recipient_name"
	MetaLevel          = "level"
	MetaReason         = "reason"
	MetaPreviousStatus = "previous_status"
	MetaRemarks        = "remarks"
	MetaEscalatedTo    = "escalated_to" // admin id chosen by the escalation; absent when none qualified
)

// Notification is a rendered message ready for a sender
type Notification struct {
	Kind        NotificationKind
	ComplaintID string
	Channel     NotificationChannel
	Recipient   string // email address, phone number or chat id
	Subject     string
	Body        string
}

// NotificationLog records one delivery attempt
type NotificationLog struct {
	LogID        string              `db:"log_id" json:"log_id"`
	Kind         NotificationKind    `db:"kind" json:"kind"`
	ComplaintID  string              `db:"complaint_id" json:"complaint_id"`
	Channel      NotificationChannel `db:"channel" json:"channel"`
	Recipient    string              `db:"recipient" json:"recipient"`
	Status       NotificationStatus  `db:"status" json:"status"`
	ErrorMessage sql.NullString      `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
}

// DispatchResult is what the notification port reports back. It never
// carries a Go error so that callers cannot accidentally propagate it.
type DispatchResult struct {
	Delivered bool                `json:"delivered"`
	Channel   NotificationChannel `json:"channel,omitempty"`
	Recipient string              `json:"recipient,omitempty"`
	Error     string              `json:"error,omitempty"`
}
