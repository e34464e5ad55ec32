package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RunExportMessage asks the worker to export one recorded run. The worker
// loads the run content from the store.
type RunExportMessage struct {
	RunID     int64     `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRunExportMessage creates an export message stamped with the current time.
func NewRunExportMessage(runID int64) *RunExportMessage {
	return &RunExportMessage{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RunExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunExportMessageFromJSON decodes a message, rejecting non-positive run IDs.
func RunExportMessageFromJSON(data []byte) (*RunExportMessage, error) {
	var msg RunExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID <= 0 {
		return nil, errors.New("run_id must be positive")
	}
	return &msg, nil
}
