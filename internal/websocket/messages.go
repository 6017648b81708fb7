package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/realtyvoice/backend/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeSpeak         MessageType = "speak"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeError         MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// SpeakMessage asks the server to synthesize text. The type field may be
// omitted since it is the only message carrying a payload.
type SpeakMessage struct {
	BaseMessage
	entities.SynthesisRequest
}

// SpeakingStartMessage precedes the binary audio frames of one request
type SpeakingStartMessage struct {
	BaseMessage
	ContentType  string                `json:"content_type"`
	OutputFormat entities.OutputFormat `json:"output_format"`
	VoiceID      string                `json:"voice_id"`
}

// SpeakingEndMessage follows the last audio frame of one request
type SpeakingEndMessage struct {
	BaseMessage
	Bytes     int  `json:"bytes"`
	Truncated bool `json:"truncated,omitempty"`
}

// PongMessage answers a ping
type PongMessage struct {
	BaseMessage
}

// ErrorMessage reports a failed request; the connection stays open
type ErrorMessage struct {
	BaseMessage
	Detail string `json:"detail"`
}

// DecodeClientMessage parses a text frame sent by the client. It returns
// either a *SpeakMessage or a ping as *BaseMessage.
func DecodeClientMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON format", entities.ErrInvalidRequest)
	}

	switch base.Type {
	case MessageTypePing:
		return &base, nil

	case MessageTypeSpeak, "":
		var msg SpeakMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("%w: invalid speak message: %v", entities.ErrInvalidRequest, err)
		}
		msg.Type = MessageTypeSpeak
		return &msg, nil

	default:
		return nil, fmt.Errorf("%w: unsupported message type: %s", entities.ErrInvalidRequest, base.Type)
	}
}

// NewSpeakingStartMessage announces the audio of one request
func NewSpeakingStartMessage(requestID string, params entities.SynthesisParams, contentType string) *SpeakingStartMessage {
	return &SpeakingStartMessage{
		BaseMessage:  newBase(MessageTypeSpeakingStart, requestID),
		ContentType:  contentType,
		OutputFormat: params.OutputFormat,
		VoiceID:      params.VoiceID,
	}
}

// NewSpeakingEndMessage closes the audio of one request
func NewSpeakingEndMessage(requestID string, bytes int, truncated bool) *SpeakingEndMessage {
	return &SpeakingEndMessage{
		BaseMessage: newBase(MessageTypeSpeakingEnd, requestID),
		Bytes:       bytes,
		Truncated:   truncated,
	}
}

// NewPongMessage answers a client ping
func NewPongMessage(requestID string) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong, requestID)}
}

// NewErrorMessage creates a standardized error message
func NewErrorMessage(requestID, detail string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError, requestID),
		Detail:      detail,
	}
}

func newBase(t MessageType, requestID string) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Unix(),
		RequestID: requestID,
	}
}
