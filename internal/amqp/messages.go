package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TransactionSyncMessage asks the worker to mirror one transaction version to
// Google Sheets. It carries references only; the worker reads the row from
// the database.
type TransactionSyncMessage struct {
	QueueID       int64     `json:"queue_id"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Version       int64     `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(queueID int64, transactionID, userID string, version int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		QueueID:       queueID,
		TransactionID: transactionID,
		UserID:        userID,
		Version:       version,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes and checks a message body.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" {
		return nil, errors.New("sync message without transaction id")
	}
	return &msg, nil
}
