// Package protocol defines the WebSocket message types exchanged with the
// browser client on /ws/talk and /ws/events.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server messages
	TypeTalk MessageType = "talk" // One recorded turn

	// Server → Client messages
	TypeResult MessageType = "result" // Turn result
	TypeError  MessageType = "error"  // Turn failure
	TypeTurn   MessageType = "turn"   // Turn event on the events feed

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"` // Echoed from request to response
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// WithID sets the correlation ID and returns the message.
func (m *Message) WithID(id string) *Message {
	m.ID = id
	return m
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// TalkData carries one recorded turn.
type TalkData struct {
	AudioB64 string          `json:"audio_b64"`          // base64 encoded clip
	Filename string          `json:"filename,omitempty"` // format hint, e.g. "clip.webm"
	History  json.RawMessage `json:"history,omitempty"`  // prior turns, array or JSON string
}

// DecodeAudio decodes the base64 clip.
func (t *TalkData) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(t.AudioB64)
}

// HistoryJSON returns the history as JSON text. The field may hold the
// array itself or a string containing it, as sent in the multipart form.
func (t *TalkData) HistoryJSON() string {
	if len(t.History) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(t.History, &s); err == nil {
		return s
	}
	return string(t.History)
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// ErrorData reports a failed turn.
type ErrorData struct {
	Detail string `json:"detail"`
}

// TurnEvent summarizes a finished turn for the events feed. It carries
// no transcript or reply text.
type TurnEvent struct {
	RequestID string `json:"request_id"`
	Transport string `json:"transport"` // "http" or "ws"
	Path      string `json:"path,omitempty"`
	Keyword   string `json:"keyword,omitempty"`
	Status    string `json:"status"` // "ok", "empty" or "error"
	LatencyMs int64  `json:"latency_ms"`
	HasAudio  bool   `json:"has_audio"`
}

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}

// =============================================================================
// Helpers
// =============================================================================

// NewErrorMessage creates an error message.
func NewErrorMessage(detail string) *Message {
	msg, _ := NewMessage(TypeError, ErrorData{Detail: detail})
	return msg
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS int64) (*Message, error) {
	now := time.Now().UnixMilli()
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    now,
		LatencyMs: now - pingTS,
	})
}

// GetTalkData extracts talk data from a message
func (m *Message) GetTalkData() (*TalkData, error) {
	var data TalkData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
