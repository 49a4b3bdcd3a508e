package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Fixed identity for streamed assistant replies.
const (
	assistantName     = "MeetingFlow AI"
	assistantInitials = "AI"
	assistantColor    = "bg-purple-500"
)

// Orchestrator is the transcription pipeline reached from inbound
// commands. Emitted events are routed by the handler.
type Orchestrator interface {
	ProcessUtterance(ctx context.Context, meetingID, text string, emit func(Message))
	PassthroughText(meetingID, partialText string, speaker SpeakerInfo, emit func(Message))
	FinalizeMeeting(ctx context.Context, meetingID string, emit func(Message))
}

// ChatStreamer produces the streamed assistant reply for chat messages.
type ChatStreamer interface {
	StreamChatReply(ctx context.Context, meetingID, userMessage string, onChunk func(chunk string) error) error
}

// Handler decodes inbound frames, enforces the joined-meeting
// precondition and dispatches to the orchestrator and chat streamer.
type Handler struct {
	hub          *Hub
	orchestrator Orchestrator
	chat         ChatStreamer
	upgrader     websocket.Upgrader
	logger       zerolog.Logger
}

// NewHandler wires the protocol handler. chat may be nil when the AI
// dependency is not configured; chat messages then fail with CHAT_ERROR.
func NewHandler(hub *Hub, orchestrator Orchestrator, chat ChatStreamer, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:          hub,
		orchestrator: orchestrator,
		chat:         chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// RegisterRoutes mounts the realtime endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.serveWS)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	client := h.hub.Admit(conn)
	conn.SetPongHandler(func(string) error {
		h.hub.HandlePong(client.ID())
		return nil
	})

	defer func() {
		h.hub.Remove(client.ID())
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("client_id", client.ID()).Msg("read error")
			}
			return
		}
		h.dispatch(r.Context(), client, raw)
	}
}

// dispatch handles one inbound frame. A panic anywhere below is
// converted into an error event so one bad command cannot take the
// connection down with it.
func (h *Handler) dispatch(ctx context.Context, client *Client, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error().Interface("panic", rec).Str("client_id", client.ID()).Msg("command dispatch panicked")
			h.sendError(client, "Failed to process message", "MESSAGE_PROCESSING_ERROR")
		}
	}()

	cmd, err := DecodeCommand(raw)
	if err != nil {
		h.logger.Debug().Err(err).Str("client_id", client.ID()).Msg("rejected frame")
		h.sendError(client, "Invalid message format", "INVALID_MESSAGE")
		return
	}

	switch c := cmd.(type) {
	case JoinMeeting:
		h.handleJoin(client, c)
	case AudioStream:
		h.handleAudioStream(ctx, client, c)
	case TextStream:
		h.handleTextStream(client, c)
	case ChatMessage:
		h.handleChatMessage(ctx, client, c)
	case StopMeeting:
		h.handleStopMeeting(ctx, client, c)
	case Ping:
		h.send(client, NewPong(time.Now().UnixMilli()))
	}
}

func (h *Handler) handleJoin(client *Client, cmd JoinMeeting) {
	h.hub.JoinMeeting(client.ID(), cmd.MeetingID)
	h.send(client, NewMeetingStatus(MeetingStatusData{
		MeetingID:    cmd.MeetingID,
		Status:       "active",
		Duration:     0,
		SpeakerCount: 1,
	}))
}

func (h *Handler) handleAudioStream(ctx context.Context, client *Client, cmd AudioStream) {
	meetingID, ok := h.hub.MeetingOf(client.ID())
	if !ok {
		h.sendError(client, "No active meeting", "NO_ACTIVE_MEETING")
		return
	}

	h.orchestrator.ProcessUtterance(ctx, meetingID, cmd.AudioText, func(msg Message) {
		h.hub.BroadcastToMeeting(meetingID, msg)
	})
}

func (h *Handler) handleTextStream(client *Client, cmd TextStream) {
	meetingID, ok := h.hub.MeetingOf(client.ID())
	if !ok {
		h.sendError(client, "No active meeting", "NO_ACTIVE_MEETING")
		return
	}

	h.orchestrator.PassthroughText(meetingID, cmd.PartialText, cmd.SpeakerInfo, func(msg Message) {
		h.hub.BroadcastToMeeting(meetingID, msg)
	})
}

// handleChatMessage streams the assistant reply to the sending
// connection only. Unlike transcription events, chat replies are never
// broadcast to the rest of the meeting.
func (h *Handler) handleChatMessage(ctx context.Context, client *Client, cmd ChatMessage) {
	meetingID, ok := h.hub.MeetingOf(client.ID())
	if !ok {
		h.sendError(client, "No active meeting", "NO_ACTIVE_MEETING")
		return
	}

	if h.chat == nil {
		h.sendError(client, "Chat is unavailable", "CHAT_ERROR")
		return
	}

	err := h.chat.StreamChatReply(ctx, meetingID, cmd.Content, func(chunk string) error {
		return h.hub.SendTo(client, NewTranscription(TranscriptionData{
			MeetingID:       meetingID,
			SpeakerName:     assistantName,
			SpeakerInitials: assistantInitials,
			SpeakerColor:    assistantColor,
			Content:         chunk,
			IsStreaming:     true,
		}))
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("meeting_id", meetingID).Msg("chat stream failed")
		h.sendError(client, "Failed to process chat message", "CHAT_ERROR")
	}
}

func (h *Handler) handleStopMeeting(ctx context.Context, client *Client, cmd StopMeeting) {
	if _, ok := h.hub.MeetingOf(client.ID()); !ok {
		h.sendError(client, "No active meeting", "NO_ACTIVE_MEETING")
		return
	}

	h.orchestrator.FinalizeMeeting(ctx, cmd.MeetingID, func(msg Message) {
		h.hub.BroadcastToMeeting(cmd.MeetingID, msg)
	})
}

func (h *Handler) send(client *Client, msg Message) {
	if err := h.hub.SendTo(client, msg); err != nil {
		h.logger.Warn().Err(err).Str("client_id", client.ID()).Msg("send failed")
	}
}

func (h *Handler) sendError(client *Client, message, code string) {
	h.send(client, NewError(message, code))
}
