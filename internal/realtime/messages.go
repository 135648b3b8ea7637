package realtime

import "encoding/json"

// MessageType discriminates push-channel envelopes.
type MessageType string

const (
	MessageJobUpdated   MessageType = "job_updated"
	MessageQueueUpdated MessageType = "queue_updated"
	MessagePauseUpdated MessageType = "pause_updated"
	MessageTestProgress MessageType = "test_progress"
)

// Envelope is the top-level push-channel frame. Fields beyond Type are
// populated depending on the message type; Updates stays raw so the store
// can merge it without an intermediate decode.
type Envelope struct {
	Type MessageType `json:"type"`

	// job_updated
	JobID   string          `json:"job_id,omitempty"`
	Updates json.RawMessage `json:"updates,omitempty"`

	// pause_updated
	Paused bool `json:"paused,omitempty"`

	// test_progress
	Name      string   `json:"name,omitempty"`
	Progress  float64  `json:"progress,omitempty"`
	StartedAt *float64 `json:"started_at,omitempty"`
}
