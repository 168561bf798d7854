package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// MaxRetries bounds how often a failed event is picked up again.
const MaxRetries = 5

type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
	LeaseUntil    time.Time
}

// Claimable reports whether a relay may lock the event at now.
func (e Event) Claimable(now time.Time) bool {
	switch e.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return e.RetryCount < MaxRetries
	case StatusInProgress:
		return now.After(e.LeaseUntil)
	}
	return false
}
