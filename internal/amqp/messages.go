package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RecordsChangedMessage announces a committed mutation so that every
// instance can drop its cached summaries for the user.
type RecordsChangedMessage struct {
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Op        string    `json:"op"`
	IDs       []string  `json:"ids"`
	Revision  string    `json:"revision"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordsChangedMessage(userID, kind, op string, ids []string, revision string) *RecordsChangedMessage {
	return &RecordsChangedMessage{
		UserID:    userID,
		Kind:      kind,
		Op:        op,
		IDs:       ids,
		Revision:  revision,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordsChangedMessage) Validate() error {
	if m.UserID == "" {
		return errors.New("records changed message without user id")
	}
	if m.Revision == "" {
		return errors.New("records changed message without revision")
	}
	return nil
}

func (m *RecordsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordsChangedMessageFromJSON(data []byte) (*RecordsChangedMessage, error) {
	var msg RecordsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
