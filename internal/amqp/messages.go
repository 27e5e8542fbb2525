package amqp

import (
	"encoding/json"
	"time"
)

// DatasetRefreshedMessage announces that a dataset snapshot was rewritten.
// Consumers only need the name to drop stale caches; row count and fetch
// time ride along for logging.
type DatasetRefreshedMessage struct {
	Dataset   string    `json:"dataset"`
	Rows      int       `json:"rows"`
	FetchedAt time.Time `json:"fetched_at"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetRefreshedMessage creates a refresh announcement for a dataset.
func NewDatasetRefreshedMessage(dataset string, rows int, fetchedAt time.Time) *DatasetRefreshedMessage {
	return &DatasetRefreshedMessage{
		Dataset:   dataset,
		Rows:      rows,
		FetchedAt: fetchedAt,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *DatasetRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetRefreshedMessageFromJSON creates a message from JSON bytes.
func DatasetRefreshedMessageFromJSON(data []byte) (*DatasetRefreshedMessage, error) {
	var msg DatasetRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
