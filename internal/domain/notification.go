package domain

import "time"

// NotificationOutcome records one delivery attempt to one subscriber.
// Append-only audit record.
type NotificationOutcome struct {
	SubscriberID string    `json:"subscriberId"`
	SignalID     string    `json:"signalId"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	SentAt       time.Time `json:"sentAt"`
}

// DeliveryResult aggregates the per-subscriber outcomes of one fan-out batch.
type DeliveryResult struct {
	Total    int                   `json:"total"`
	Success  int                   `json:"success"`
	Failed   int                   `json:"failed"`
	Outcomes []NotificationOutcome `json:"outcomes"`
}

// Delivered reports whether at least one subscriber received the message.
func (r DeliveryResult) Delivered() bool { return r.Success > 0 }

// Notification is the summary record for one dispatch of a signal.
type Notification struct {
	ID           string    `json:"id"`
	SignalID     string    `json:"signalId"`
	Channel      string    `json:"channel"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
