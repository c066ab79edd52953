package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncRequestMessage asks the consumer to run a sync against the remote
// expense service.
type SyncRequestMessage struct {
	RequestID   string    `json:"request_id"`
	RequestedAt time.Time `json:"requested_at"`
	Source      string    `json:"source"`
}

// NewSyncRequestMessage creates a request with a fresh id
func NewSyncRequestMessage(source string) *SyncRequestMessage {
	return &SyncRequestMessage{
		RequestID:   uuid.NewString(),
		RequestedAt: time.Now(),
		Source:      source,
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON creates a message from JSON bytes
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SyncCompletedMessage is published after every successful sync.
type SyncCompletedMessage struct {
	RequestID   string    `json:"request_id"`
	Period      string    `json:"period"`
	Fetched     int       `json:"fetched"`
	Kept        int       `json:"kept"`
	Total       int       `json:"total"`
	Spent       float64   `json:"spent"`
	CompletedAt time.Time `json:"completed_at"`
}

// ToJSON converts the message to JSON bytes
func (m *SyncCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncCompletedMessageFromJSON creates a message from JSON bytes
func SyncCompletedMessageFromJSON(data []byte) (*SyncCompletedMessage, error) {
	var msg SyncCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
