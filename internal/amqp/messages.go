package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reasons carried by TableChangedMessage.
const (
	ReasonRecorded = "entry_recorded"
	ReasonReplaced = "table_replaced"
	ReasonReset    = "table_reset"
)

// TableChangedMessage announces that the primary record table was saved.
// It carries no rows; consumers reload the table from the primary store.
type TableChangedMessage struct {
	ID        string    `json:"id"`
	Reason    string    `json:"reason"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTableChangedMessage creates a message with a fresh id
func NewTableChangedMessage(reason string, rows int) *TableChangedMessage {
	return &TableChangedMessage{
		ID:        uuid.NewString(),
		Reason:    reason,
		Rows:      rows,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TableChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TableChangedMessageFromJSON creates a message from JSON bytes
func TableChangedMessageFromJSON(data []byte) (*TableChangedMessage, error) {
	var msg TableChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
