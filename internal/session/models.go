package session

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusDiscarded Status = "discarded"
)

// Exchange is one journaled generate round-trip.
type Exchange struct {
	ID        string
	ToolID    int
	ToolSlug  string
	SessionID string
	Prompt    string
	Status    Status
	Outputs   []string
	Error     string
	Timestamp time.Time
	Metadata  ExchangeMetadata
}

type ExchangeMetadata struct {
	Options     map[string]any `json:"options,omitempty"`
	Attachments []string       `json:"attachments,omitempty"`
	Credits     float64        `json:"credits,omitempty"`
	Variant     string         `json:"variant,omitempty"`
	DurationMs  int64          `json:"duration_ms,omitempty"`
}

func (m *ExchangeMetadata) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func ParseExchangeMetadata(data string) ExchangeMetadata {
	var m ExchangeMetadata
	if data != "" {
		json.Unmarshal([]byte(data), &m)
	}
	return m
}

func encodeOutputs(outputs []string) string {
	if len(outputs) == 0 {
		return ""
	}
	data, _ := json.Marshal(outputs)
	return string(data)
}

func decodeOutputs(data string) []string {
	var out []string
	if data != "" {
		json.Unmarshal([]byte(data), &out)
	}
	return out
}
