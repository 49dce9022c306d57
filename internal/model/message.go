package model

import "time"

type Status string

const (
	Pending   Status = "pending"
	Queued    Status = "queued"
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Failed    Status = "failed"
)

// rank orders the forward path PENDING -> QUEUED -> SENT -> DELIVERED.
func (s Status) rank() int {
	switch s {
	case Pending:
		return 0
	case Queued:
		return 1
	case Sent:
		return 2
	case Delivered:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s == Failed || s.rank() >= 0
}

func (s Status) Terminal() bool {
	return s == Delivered || s == Failed
}

// CanTransition reports whether moving from s to next is a forward move.
// Terminal states accept nothing; FAILED is reachable from every
// non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	if next == Failed {
		return true
	}
	return next.rank() > s.rank()
}

const GenericFailure = "Delivery failed"

type Message struct {
	ID                int64      `json:"id"`
	ClientID          int64      `json:"client_id"`
	LeadID            int64      `json:"lead_id"`
	TemplateID        *int64     `json:"template_id,omitempty"`
	ToNumber          string     `json:"to_number"`
	Content           string     `json:"content"`
	Status            Status     `json:"status"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
}

// StatusUpdate is the outcome of reconciling one provider report against a
// message.
type StatusUpdate struct {
	Status       Status
	ErrorMessage *string
	DeliveredAt  *time.Time
}

// Reconcile computes the update a provider report implies for m. ok is
// false when the report must be ignored: backward moves, unknown
// statuses, reports against a FAILED message, and repeated DELIVERED
// reports once the delivery time is already stamped.
func (m *Message) Reconcile(next Status, errMsg string, now time.Time) (StatusUpdate, bool) {
	if m.Status == Delivered && next == Delivered {
		if m.DeliveredAt != nil {
			return StatusUpdate{}, false
		}
		return StatusUpdate{Status: Delivered, ErrorMessage: m.ErrorMessage, DeliveredAt: &now}, true
	}
	if !m.Status.CanTransition(next) {
		return StatusUpdate{}, false
	}

	u := StatusUpdate{Status: next, ErrorMessage: m.ErrorMessage, DeliveredAt: m.DeliveredAt}
	switch next {
	case Delivered:
		if u.DeliveredAt == nil {
			u.DeliveredAt = &now
		}
	case Failed:
		if errMsg != "" {
			u.ErrorMessage = &errMsg
		} else if u.ErrorMessage == nil {
			generic := GenericFailure
			u.ErrorMessage = &generic
		}
	}
	return u, true
}

func (m *Message) Apply(u StatusUpdate) {
	m.Status = u.Status
	m.ErrorMessage = u.ErrorMessage
	m.DeliveredAt = u.DeliveredAt
}
