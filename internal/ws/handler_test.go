package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeOrchestrator records calls and replays canned events through emit.
type fakeOrchestrator struct {
	utterances []string
	partials   []string
	finalized  []string
	emitOnNext []Message
}

func (f *fakeOrchestrator) ProcessUtterance(_ context.Context, meetingID, text string, emit func(Message)) {
	f.utterances = append(f.utterances, text)
	for _, msg := range f.emitOnNext {
		emit(msg)
	}
}

func (f *fakeOrchestrator) PassthroughText(meetingID, partialText string, speaker SpeakerInfo, emit func(Message)) {
	f.partials = append(f.partials, partialText)
	emit(NewTranscription(TranscriptionData{
		MeetingID:   meetingID,
		SpeakerName: speaker.Name,
		Content:     partialText,
		IsStreaming: true,
	}))
}

func (f *fakeOrchestrator) FinalizeMeeting(_ context.Context, meetingID string, emit func(Message)) {
	f.finalized = append(f.finalized, meetingID)
	emit(NewMeetingStatus(MeetingStatusData{MeetingID: meetingID, Status: "completed"}))
}

type fakeChatStreamer struct {
	chunks []string
	err    error
	calls  int
}

func (f *fakeChatStreamer) StreamChatReply(_ context.Context, meetingID, userMessage string, onChunk func(string) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for _, chunk := range f.chunks {
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func newTestHandler(orch *fakeOrchestrator, chat ChatStreamer) (*Handler, *Hub) {
	hub := NewHub(30*time.Second, zerolog.Nop())
	return NewHandler(hub, orch, chat, zerolog.Nop()), hub
}

func requireLastError(t *testing.T, conn *fakeConn, code string) {
	t.Helper()
	msg, ok := conn.lastOfType(TypeError)
	require.True(t, ok, "expected an error event")
	require.Equal(t, code, msg.Data.(ErrorData).Code)
}

func TestDispatchRejectsMalformedFrame(t *testing.T) {
	handler, hub := newTestHandler(&fakeOrchestrator{}, nil)
	conn := &fakeConn{}
	client := hub.Admit(conn)

	handler.dispatch(context.Background(), client, []byte(`not json`))

	requireLastError(t, conn, "INVALID_MESSAGE")
}

func TestDispatchRejectsUnknownType(t *testing.T) {
	handler, hub := newTestHandler(&fakeOrchestrator{}, nil)
	conn := &fakeConn{}
	client := hub.Admit(conn)

	handler.dispatch(context.Background(), client, []byte(`{"type":"subscribe"}`))

	requireLastError(t, conn, "INVALID_MESSAGE")
}

func TestCommandsRequireJoinedMeeting(t *testing.T) {
	frames := map[string]string{
		"audio_stream": `{"type":"audio_stream","audioText":"hello"}`,
		"text_stream":  `{"type":"text_stream","partialText":"hel","speakerInfo":{"name":"Sarah"}}`,
		"chat_message": `{"type":"chat_message","content":"summarize"}`,
		"stop_meeting": `{"type":"stop_meeting","meetingId":"m-1"}`,
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			orch := &fakeOrchestrator{}
			handler, hub := newTestHandler(orch, &fakeChatStreamer{})
			conn := &fakeConn{}
			client := hub.Admit(conn)

			handler.dispatch(context.Background(), client, []byte(frame))

			requireLastError(t, conn, "NO_ACTIVE_MEETING")
			require.Empty(t, orch.utterances)
			require.Empty(t, orch.partials)
			require.Empty(t, orch.finalized)
		})
	}
}

func TestJoinConfirmsMeetingStatus(t *testing.T) {
	handler, hub := newTestHandler(&fakeOrchestrator{}, nil)
	conn := &fakeConn{}
	client := hub.Admit(conn)

	handler.dispatch(context.Background(), client, []byte(`{"type":"join_meeting","meetingId":"m-1"}`))

	meetingID, ok := hub.MeetingOf(client.ID())
	require.True(t, ok)
	require.Equal(t, "m-1", meetingID)

	msg, ok := conn.lastOfType(TypeMeetingStatus)
	require.True(t, ok)
	data := msg.Data.(MeetingStatusData)
	require.Equal(t, "m-1", data.MeetingID)
	require.Equal(t, "active", data.Status)
}

func TestAudioStreamBroadcastsToMeeting(t *testing.T) {
	orch := &fakeOrchestrator{
		emitOnNext: []Message{NewTranscription(TranscriptionData{MeetingID: "m-1", Content: "hello"})},
	}
	handler, hub := newTestHandler(orch, nil)

	connSender, connPeer, connOther := &fakeConn{}, &fakeConn{}, &fakeConn{}
	sender := hub.Admit(connSender)
	peer := hub.Admit(connPeer)
	other := hub.Admit(connOther)
	hub.JoinMeeting(sender.ID(), "m-1")
	hub.JoinMeeting(peer.ID(), "m-1")
	hub.JoinMeeting(other.ID(), "m-2")

	handler.dispatch(context.Background(), sender, []byte(`{"type":"audio_stream","audioText":"hello"}`))

	require.Equal(t, []string{"hello"}, orch.utterances)
	require.Equal(t, 1, connSender.countOfType(TypeTranscription))
	require.Equal(t, 1, connPeer.countOfType(TypeTranscription))
	require.Equal(t, 0, connOther.countOfType(TypeTranscription))
}

func TestTextStreamBroadcastsPartial(t *testing.T) {
	orch := &fakeOrchestrator{}
	handler, hub := newTestHandler(orch, nil)

	connSender, connPeer := &fakeConn{}, &fakeConn{}
	sender := hub.Admit(connSender)
	peer := hub.Admit(connPeer)
	hub.JoinMeeting(sender.ID(), "m-1")
	hub.JoinMeeting(peer.ID(), "m-1")

	handler.dispatch(context.Background(), sender, []byte(`{"type":"text_stream","partialText":"typing","speakerInfo":{"name":"Sarah","initials":"SJ","color":"bg-blue-500"}}`))

	require.Equal(t, []string{"typing"}, orch.partials)
	msg, ok := connPeer.lastOfType(TypeTranscription)
	require.True(t, ok)
	require.True(t, msg.Data.(TranscriptionData).IsStreaming)
}

func TestChatReplyGoesToSenderOnly(t *testing.T) {
	chat := &fakeChatStreamer{chunks: []string{"Here", " is", " a summary"}}
	handler, hub := newTestHandler(&fakeOrchestrator{}, chat)

	connSender, connPeer := &fakeConn{}, &fakeConn{}
	sender := hub.Admit(connSender)
	peer := hub.Admit(connPeer)
	hub.JoinMeeting(sender.ID(), "m-1")
	hub.JoinMeeting(peer.ID(), "m-1")

	handler.dispatch(context.Background(), sender, []byte(`{"type":"chat_message","content":"summarize"}`))

	require.Equal(t, 1, chat.calls)
	require.Equal(t, 3, connSender.countOfType(TypeTranscription))
	require.Equal(t, 0, connPeer.countOfType(TypeTranscription))

	msg, ok := connSender.lastOfType(TypeTranscription)
	require.True(t, ok)
	data := msg.Data.(TranscriptionData)
	require.Equal(t, "MeetingFlow AI", data.SpeakerName)
	require.Equal(t, "AI", data.SpeakerInitials)
	require.Equal(t, "bg-purple-500", data.SpeakerColor)
	require.True(t, data.IsStreaming)
}

func TestChatFailureEmitsChatError(t *testing.T) {
	chat := &fakeChatStreamer{err: errors.New("model unreachable")}
	handler, hub := newTestHandler(&fakeOrchestrator{}, chat)

	conn := &fakeConn{}
	client := hub.Admit(conn)
	hub.JoinMeeting(client.ID(), "m-1")

	handler.dispatch(context.Background(), client, []byte(`{"type":"chat_message","content":"hi"}`))

	requireLastError(t, conn, "CHAT_ERROR")
}

func TestChatUnavailableWithoutStreamer(t *testing.T) {
	handler, hub := newTestHandler(&fakeOrchestrator{}, nil)

	conn := &fakeConn{}
	client := hub.Admit(conn)
	hub.JoinMeeting(client.ID(), "m-1")

	handler.dispatch(context.Background(), client, []byte(`{"type":"chat_message","content":"hi"}`))

	requireLastError(t, conn, "CHAT_ERROR")
}

func TestStopMeetingFinalizes(t *testing.T) {
	orch := &fakeOrchestrator{}
	handler, hub := newTestHandler(orch, nil)

	conn := &fakeConn{}
	client := hub.Admit(conn)
	hub.JoinMeeting(client.ID(), "m-1")

	handler.dispatch(context.Background(), client, []byte(`{"type":"stop_meeting","meetingId":"m-1"}`))

	require.Equal(t, []string{"m-1"}, orch.finalized)
	msg, ok := conn.lastOfType(TypeMeetingStatus)
	require.True(t, ok)
	require.Equal(t, "completed", msg.Data.(MeetingStatusData).Status)
}

func TestPingAnsweredWithPong(t *testing.T) {
	handler, hub := newTestHandler(&fakeOrchestrator{}, nil)

	conn := &fakeConn{}
	client := hub.Admit(conn)

	before := time.Now().UnixMilli()
	handler.dispatch(context.Background(), client, []byte(`{"type":"ping"}`))

	msg, ok := conn.lastOfType(TypePong)
	require.True(t, ok)
	require.GreaterOrEqual(t, msg.Data.(PongData).Timestamp, before)
}
