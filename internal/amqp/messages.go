package amqp

import (
	"encoding/json"
	"time"
)

// ImportProgressMessage tracks one import batch. Completed counts committed
// rows only; Done marks the final update whether the batch finished or
// aborted.
type ImportProgressMessage struct {
	JobID     string    `json:"jobId"`
	UserID    string    `json:"userId"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Done      bool      `json:"done"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportProgressMessage(jobID, userID string, completed, total int, done bool) *ImportProgressMessage {
	return &ImportProgressMessage{
		JobID:     jobID,
		UserID:    userID,
		Completed: completed,
		Total:     total,
		Done:      done,
		Timestamp: time.Now(),
	}
}

func (m *ImportProgressMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportProgressMessageFromJSON(data []byte) (*ImportProgressMessage, error) {
	var msg ImportProgressMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
