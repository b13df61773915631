package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidType     = errors.New("invalid notification type")
	ErrInvalidReceiver = errors.New("receiver key cannot be empty")
	ErrNotFound        = errors.New("notification not found")
)

// Type enumerates the domain events that produce a notification.
type Type string

const (
	TypeFundingTimeout Type = "FUNDING_TIMEOUT"
	TypeFundingSuccess Type = "FUNDING_SUCCESS"
	TypeDonation       Type = "DONATION"
)

// Valid reports whether t is one of the known notification types.
func (t Type) Valid() bool {
	switch t {
	case TypeFundingTimeout, TypeFundingSuccess, TypeDonation:
		return true
	default:
		return false
	}
}

// ParseType accepts the enum name in any case.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Receiver identifies the user a notification is addressed to.
// Key is the stable user key used to name push connections.
type Receiver struct {
	Key   string
	Email string
}

// Draft is the input to the persistence store before an id is assigned.
type Draft struct {
	Receiver Receiver
	Type     Type
	Content  string
	URL      string
}

// Validate checks the fields the store relies on.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Receiver.Key) == "" {
		return ErrInvalidReceiver
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, d.Type)
	}
	return nil
}

// Notification is a persisted notification record.
type Notification struct {
	ID        string
	Receiver  Receiver
	Type      Type
	Content   string
	URL       string
	IsRead    bool
	CreatedAt time.Time
}

// Snapshot is the JSON payload pushed to clients.
type Snapshot struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Type    Type   `json:"type"`
	IsRead  bool   `json:"isRead"`
}

func (n *Notification) Snapshot() Snapshot {
	return Snapshot{
		ID:      n.ID,
		Content: n.Content,
		URL:     n.URL,
		Type:    n.Type,
		IsRead:  n.IsRead,
	}
}
