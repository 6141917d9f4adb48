package models

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a tool session's server-held history.
type Message struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id,omitempty"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	ImageURLs       []string  `json:"image_urls,omitempty"`
	VideoURLs       []string  `json:"video_urls,omitempty"`
	SourceMessageID string    `json:"source_message_id,omitempty"`
	Timestamp       Timestamp `json:"timestamp,omitempty"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		VideoURL string `json:"video_url"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	if aux.VideoURL != "" && len(m.VideoURLs) == 0 {
		m.VideoURLs = []string{aux.VideoURL}
	}
	return nil
}

func (m *Message) HasImages() bool {
	return len(m.ImageURLs) > 0
}

func (m *Message) HasVideos() bool {
	return len(m.VideoURLs) > 0
}

func (m *Message) HasMedia() bool {
	return m.HasImages() || m.HasVideos()
}

// Timestamp accepts both RFC 3339 and the zone-less ISO form the backend emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func ParseTimestamp(s string) (Timestamp, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, true
		}
	}
	return Timestamp{}, false
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	ts, _ := ParseTimestamp(s)
	*t = ts
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
