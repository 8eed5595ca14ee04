package model

import "time"

// Status is the last known delivery state of an outbound SMS.
type Status string

const (
	Queued    Status = "queued"
	Accepted  Status = "accepted"
	Sending   Status = "sending"
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Failed    Status = "failed"
	Skipped   Status = "skipped"
)

// Succeeded reports whether the provider status counts as a successful send.
func (s Status) Succeeded() bool {
	switch s {
	case Queued, Accepted, Sending, Sent, Delivered:
		return true
	}
	return false
}

// SendRecord is one row of the send log.
type SendRecord struct {
	ID           int64
	RunID        string
	CampaignRow  int
	CampaignKind Kind
	Phone        string
	Body         string
	Status       Status
	MessageID    *string
	LastError    *string
	Segments     int
	Cost         float64
	SentAt       time.Time
}
