// Package ws implements the realtime channel: the wire message schema,
// the connection registry/broadcaster and the session protocol handler.
package ws

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates the outbound event union. The payload shape
// is fully determined by the type.
type MessageType string

const (
	TypeTranscription    MessageType = "transcription"
	TypeActionItem       MessageType = "action_item"
	TypeMeetingStatus    MessageType = "meeting_status"
	TypeError            MessageType = "error"
	TypeConnectionStatus MessageType = "connection_status"
	TypePing             MessageType = "ping"
	TypePong             MessageType = "pong"
)

// Message is one outbound event frame.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// TranscriptionData is the payload for transcription events, both the
// finalized fragments and the streaming partials.
type TranscriptionData struct {
	MeetingID       string `json:"meetingId"`
	SpeakerName     string `json:"speakerName"`
	SpeakerInitials string `json:"speakerInitials"`
	SpeakerColor    string `json:"speakerColor"`
	Content         string `json:"content"`
	IsStreaming     bool   `json:"isStreaming"`
}

// ActionItemData is the payload for extracted action item events.
type ActionItemData struct {
	MeetingID   string `json:"meetingId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AssignedTo  string `json:"assignedTo,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	Status      string `json:"status,omitempty"`
	IsCompleted bool   `json:"isCompleted"`
}

// MeetingStatusData reports meeting statistics and lifecycle changes.
type MeetingStatusData struct {
	MeetingID    string `json:"meetingId"`
	Status       string `json:"status"`
	Duration     int    `json:"duration"`
	SpeakerCount int    `json:"speakerCount"`
}

// ErrorData carries a human-readable message and an optional machine code.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ConnectionStatusData reports channel occupancy.
type ConnectionStatusData struct {
	Connected   bool `json:"connected"`
	ActiveUsers int  `json:"activeUsers"`
}

// PongData answers a client ping with a server timestamp in milliseconds.
type PongData struct {
	Timestamp int64 `json:"timestamp"`
}

func NewTranscription(data TranscriptionData) Message {
	return Message{Type: TypeTranscription, Data: data}
}

func NewActionItem(data ActionItemData) Message {
	return Message{Type: TypeActionItem, Data: data}
}

func NewMeetingStatus(data MeetingStatusData) Message {
	return Message{Type: TypeMeetingStatus, Data: data}
}

func NewError(message, code string) Message {
	return Message{Type: TypeError, Data: ErrorData{Message: message, Code: code}}
}

func NewConnectionStatus(activeUsers int) Message {
	return Message{Type: TypeConnectionStatus, Data: ConnectionStatusData{Connected: true, ActiveUsers: activeUsers}}
}

func NewPong(timestamp int64) Message {
	return Message{Type: TypePong, Data: PongData{Timestamp: timestamp}}
}

// SpeakerInfo identifies the speaker of a streaming text partial.
type SpeakerInfo struct {
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
}

// Command is the closed set of inbound frames. Decoding rejects unknown
// discriminants instead of falling through.
type Command interface {
	isCommand()
}

// JoinMeeting associates the sending connection with a meeting.
type JoinMeeting struct {
	MeetingID string `json:"meetingId"`
}

// AudioStream submits one utterance of recognized speech text.
type AudioStream struct {
	AudioText string `json:"audioText"`
}

// TextStream carries a live partial that is re-broadcast without
// invoking the text service.
type TextStream struct {
	PartialText string      `json:"partialText"`
	SpeakerInfo SpeakerInfo `json:"speakerInfo"`
}

// ChatMessage requests a streamed assistant reply for the sender only.
type ChatMessage struct {
	Content string `json:"content"`
}

// StopMeeting finalizes a meeting.
type StopMeeting struct {
	MeetingID string `json:"meetingId"`
}

// Ping requests a pong reply.
type Ping struct{}

func (JoinMeeting) isCommand() {}
func (AudioStream) isCommand() {}
func (TextStream) isCommand()  {}
func (ChatMessage) isCommand() {}
func (StopMeeting) isCommand() {}
func (Ping) isCommand()        {}

// DecodeCommand parses one inbound frame into its typed command.
func DecodeCommand(raw []byte) (Command, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch envelope.Type {
	case "join_meeting":
		var cmd JoinMeeting
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return nil, fmt.Errorf("malformed join_meeting: %w", err)
		}
		return cmd, nil
	case "audio_stream":
		var cmd AudioStream
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return nil, fmt.Errorf("malformed audio_stream: %w", err)
		}
		return cmd, nil
	case "text_stream":
		var cmd TextStream
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return nil, fmt.Errorf("malformed text_stream: %w", err)
		}
		return cmd, nil
	case "chat_message":
		var cmd ChatMessage
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return nil, fmt.Errorf("malformed chat_message: %w", err)
		}
		return cmd, nil
	case "stop_meeting":
		var cmd StopMeeting
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return nil, fmt.Errorf("malformed stop_meeting: %w", err)
		}
		return cmd, nil
	case "ping":
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("unknown message type: %q", envelope.Type)
	}
}
