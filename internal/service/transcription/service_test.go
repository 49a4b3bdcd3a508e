package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/meetingflow/backend/internal/model/meeting"
	"github.com/meetingflow/backend/internal/service/ai"
	"github.com/meetingflow/backend/internal/storage"
	"github.com/meetingflow/backend/internal/ws"
)

// fakeTextService replays canned responses and records call counts.
type fakeTextService struct {
	mu sync.Mutex

	transcribeResult ai.TranscriptionResult
	transcribeErr    error
	transcribeCalls  int
	speakerContexts  []string

	actionItems  []ai.ActionItemCandidate
	extractErr   error
	extractCalls int

	insights    ai.Insights
	insightsErr error

	cleared []string
}

func (f *fakeTextService) Transcribe(_ context.Context, _, rawText, speakerContext string) (ai.TranscriptionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcribeCalls++
	f.speakerContexts = append(f.speakerContexts, speakerContext)
	if f.transcribeErr != nil {
		return ai.TranscriptionResult{}, f.transcribeErr
	}
	result := f.transcribeResult
	if result.Text == "" {
		result.Text = rawText
	}
	return result, nil
}

func (f *fakeTextService) ExtractActionItems(_ context.Context, _, _ string) ([]ai.ActionItemCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalls++
	return f.actionItems, f.extractErr
}

func (f *fakeTextService) GenerateInsights(_ context.Context, _, _ string) (ai.Insights, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insights, f.insightsErr
}

func (f *fakeTextService) ClearHistory(meetingID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, meetingID)
}

func (f *fakeTextService) extractCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extractCalls
}

type recorder struct {
	messages []ws.Message
}

func (r *recorder) emit(msg ws.Message) {
	r.messages = append(r.messages, msg)
}

func (r *recorder) typesSeen() []ws.MessageType {
	types := make([]ws.MessageType, 0, len(r.messages))
	for _, msg := range r.messages {
		types = append(types, msg.Type)
	}
	return types
}

func (r *recorder) lastOfType(mt ws.MessageType) (ws.Message, bool) {
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Type == mt {
			return r.messages[i], true
		}
	}
	return ws.Message{}, false
}

func newTestService(t *testing.T, fake *fakeTextService) (*Service, *storage.MemStorage, meeting.Meeting) {
	t.Helper()

	store := storage.NewMemStorage()
	user, err := store.GetUserByUsername(context.Background(), "john.smith")
	require.NoError(t, err)
	m, err := store.CreateMeeting(context.Background(), meeting.Meeting{UserID: user.ID, Title: "Weekly Sync"})
	require.NoError(t, err)

	var svc *Service
	if fake != nil {
		svc = NewService(store, fake, zerolog.Nop())
	} else {
		svc = NewService(store, nil, zerolog.Nop())
	}
	return svc, store, m
}

func TestProcessUtterancePersistsAndEmitsInOrder(t *testing.T) {
	fake := &fakeTextService{
		transcribeResult: ai.TranscriptionResult{
			Text:            "let's review the roadmap",
			SpeakerName:     "Sarah Johnson",
			SpeakerInitials: "SJ",
			SpeakerColor:    "bg-blue-500",
		},
	}
	svc, store, m := newTestService(t, fake)

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), m.ID, "lets review the roadmap", rec.emit)

	require.Equal(t, []ws.MessageType{ws.TypeTranscription, ws.TypeMeetingStatus}, rec.typesSeen())

	data := rec.messages[0].Data.(ws.TranscriptionData)
	require.Equal(t, "Sarah Johnson", data.SpeakerName)
	require.Equal(t, "let's review the roadmap", data.Content)
	require.False(t, data.IsStreaming)

	records, err := store.GetTranscriptionsByMeeting(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "let's review the roadmap", records[0].Content)

	status := rec.messages[1].Data.(ws.MeetingStatusData)
	require.Equal(t, 1, status.SpeakerCount)

	updated, err := store.GetMeeting(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, 1, updated.SpeakerCount)
	require.Equal(t, 1, svc.ActiveMeetingCount())
}

func TestProcessUtteranceWithoutTextService(t *testing.T) {
	svc, _, m := newTestService(t, nil)

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), m.ID, "hello", rec.emit)

	require.Len(t, rec.messages, 1)
	require.Equal(t, ws.TypeError, rec.messages[0].Type)
	require.Equal(t, "TRANSCRIPTION_ERROR", rec.messages[0].Data.(ws.ErrorData).Code)
}

func TestProcessUtteranceTranscribeFailure(t *testing.T) {
	fake := &fakeTextService{transcribeErr: errors.New("model unreachable")}
	svc, store, m := newTestService(t, fake)

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), m.ID, "hello", rec.emit)

	require.Len(t, rec.messages, 1)
	require.Equal(t, "TRANSCRIPTION_ERROR", rec.messages[0].Data.(ws.ErrorData).Code)

	records, err := store.GetTranscriptionsByMeeting(context.Background(), m.ID)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestExtractionTriggersOncePerThresholdCrossing(t *testing.T) {
	fake := &fakeTextService{
		transcribeResult: ai.TranscriptionResult{
			Text:            strings.Repeat("a", 300),
			SpeakerName:     "Sarah Johnson",
			SpeakerInitials: "SJ",
			SpeakerColor:    "bg-blue-500",
		},
	}
	svc, _, m := newTestService(t, fake)

	// freeze the clock so only the buffer threshold can trigger
	frozen := time.Now()
	svc.now = func() time.Time { return frozen }

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	require.Equal(t, 0, fake.extractCount())

	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	require.Equal(t, 1, fake.extractCount())

	// buffer was reset at the crossing, so the next utterance stays under
	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	require.Equal(t, 1, fake.extractCount())

	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	require.Equal(t, 2, fake.extractCount())
}

func TestExtractionTriggersAfterInterval(t *testing.T) {
	fake := &fakeTextService{
		transcribeResult: ai.TranscriptionResult{
			Text:            "short",
			SpeakerName:     "Sarah Johnson",
			SpeakerInitials: "SJ",
			SpeakerColor:    "bg-blue-500",
		},
	}
	svc, _, m := newTestService(t, fake)

	current := time.Now()
	svc.now = func() time.Time { return current }

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	require.Equal(t, 0, fake.extractCount())

	current = current.Add(31 * time.Second)
	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	require.Equal(t, 1, fake.extractCount())

	// the interval restarts from the last extraction
	current = current.Add(10 * time.Second)
	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	require.Equal(t, 1, fake.extractCount())
}

func TestActionItemDeduplication(t *testing.T) {
	fake := &fakeTextService{
		transcribeResult: ai.TranscriptionResult{
			Text:            strings.Repeat("b", 600),
			SpeakerName:     "Sarah Johnson",
			SpeakerInitials: "SJ",
			SpeakerColor:    "bg-blue-500",
		},
		actionItems: []ai.ActionItemCandidate{
			{Title: "Send the budget report", AssignedTo: "Sarah"},
			{Title: "send the budget report", AssignedTo: "Mike"},
			{Title: "   "},
		},
	}
	svc, store, m := newTestService(t, fake)

	frozen := time.Now()
	svc.now = func() time.Time { return frozen }

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	require.Equal(t, 2, fake.extractCount())

	items, err := store.GetActionItemsByMeeting(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Send the budget report", items[0].Title)
	require.Equal(t, "pending", items[0].Status)
	require.False(t, items[0].IsCompleted)

	actionEvents := 0
	for _, msg := range rec.messages {
		if msg.Type == ws.TypeActionItem {
			actionEvents++
		}
	}
	require.Equal(t, 1, actionEvents)
}

func TestSpeakerStatsAccumulate(t *testing.T) {
	fake := &fakeTextService{}
	svc, store, m := newTestService(t, fake)

	speakers := []string{"Sarah Johnson", "Mike Chen", "Sarah Johnson"}
	rec := &recorder{}
	for i, name := range speakers {
		fake.mu.Lock()
		fake.transcribeResult = ai.TranscriptionResult{
			Text:            fmt.Sprintf("utterance %d", i),
			SpeakerName:     name,
			SpeakerInitials: "XX",
			SpeakerColor:    "bg-blue-500",
		}
		fake.mu.Unlock()
		svc.ProcessUtterance(context.Background(), m.ID, "x", rec.emit)
	}

	updated, err := store.GetMeeting(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, 2, updated.SpeakerCount)

	status, ok := rec.lastOfType(ws.TypeMeetingStatus)
	require.True(t, ok)
	require.Equal(t, 2, status.Data.(ws.MeetingStatusData).SpeakerCount)
}

func TestUnknownMeetingSkipsStats(t *testing.T) {
	fake := &fakeTextService{
		transcribeResult: ai.TranscriptionResult{
			Text:            "hello",
			SpeakerName:     "Sarah Johnson",
			SpeakerInitials: "SJ",
			SpeakerColor:    "bg-blue-500",
		},
	}
	store := storage.NewMemStorage()
	svc := NewService(store, fake, zerolog.Nop())

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), "ghost-meeting", "hello", rec.emit)

	// the transcription still flows, only the stats update is skipped
	require.Equal(t, []ws.MessageType{ws.TypeTranscription}, rec.typesSeen())
}

func TestPassthroughTextEmitsStreamingEvent(t *testing.T) {
	svc, _, m := newTestService(t, nil)

	rec := &recorder{}
	svc.PassthroughText(m.ID, "partial tex", ws.SpeakerInfo{Name: "Sarah", Initials: "SJ", Color: "bg-blue-500"}, rec.emit)

	require.Len(t, rec.messages, 1)
	data := rec.messages[0].Data.(ws.TranscriptionData)
	require.True(t, data.IsStreaming)
	require.Equal(t, "partial tex", data.Content)
	require.Equal(t, "Sarah", data.SpeakerName)

	// passthrough never creates session state
	require.Equal(t, 0, svc.ActiveMeetingCount())
}

func TestFinalizeMeetingTearsDownState(t *testing.T) {
	fake := &fakeTextService{
		transcribeResult: ai.TranscriptionResult{
			Text:            "we agreed on the plan",
			SpeakerName:     "Sarah Johnson",
			SpeakerInitials: "SJ",
			SpeakerColor:    "bg-blue-500",
		},
		insights: ai.Insights{
			KeyTopics:      []string{"roadmap"},
			Sentiment:      "positive",
			SentimentScore: "Upbeat and focused",
			Summary:        "The plan was agreed.",
			NextSteps:      "Ship it",
		},
	}
	svc, store, m := newTestService(t, fake)

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), m.ID, "we agreed on the plan", rec.emit)
	require.Equal(t, 1, svc.ActiveMeetingCount())

	final := &recorder{}
	svc.FinalizeMeeting(context.Background(), m.ID, final.emit)

	require.Len(t, final.messages, 1)
	status := final.messages[0].Data.(ws.MeetingStatusData)
	require.Equal(t, meeting.StatusCompleted, status.Status)

	insight, err := store.GetMeetingInsight(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"roadmap"}, insight.KeyTopics)
	require.Equal(t, "positive", insight.Sentiment)

	updated, err := store.GetMeeting(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, meeting.StatusCompleted, updated.Status)
	require.NotNil(t, updated.EndTime)

	require.Equal(t, 0, svc.ActiveMeetingCount())
	require.Equal(t, []string{m.ID}, fake.cleared)

	// the next utterance starts over with an empty speaker table
	svc.ProcessUtterance(context.Background(), m.ID, "post-meeting note", rec.emit)
	require.Equal(t, "No previous speakers", fake.speakerContexts[len(fake.speakerContexts)-1])
	require.Equal(t, 1, svc.ActiveMeetingCount())
}

func TestFinalizeFailureEmitsError(t *testing.T) {
	fake := &fakeTextService{
		transcribeResult: ai.TranscriptionResult{
			Text:            "hello",
			SpeakerName:     "Sarah Johnson",
			SpeakerInitials: "SJ",
			SpeakerColor:    "bg-blue-500",
		},
		insightsErr: errors.New("model unreachable"),
	}
	svc, store, m := newTestService(t, fake)

	rec := &recorder{}
	svc.ProcessUtterance(context.Background(), m.ID, "hello", rec.emit)

	final := &recorder{}
	svc.FinalizeMeeting(context.Background(), m.ID, final.emit)

	require.Len(t, final.messages, 1)
	require.Equal(t, ws.TypeError, final.messages[0].Type)
	require.Equal(t, "FINALIZATION_ERROR", final.messages[0].Data.(ws.ErrorData).Code)

	// the session survives a failed finalization
	require.Equal(t, 1, svc.ActiveMeetingCount())
	require.Empty(t, fake.cleared)

	updated, err := store.GetMeeting(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, meeting.StatusActive, updated.Status)
}

func TestFinalizeWithoutTextService(t *testing.T) {
	svc, _, m := newTestService(t, nil)

	rec := &recorder{}
	svc.FinalizeMeeting(context.Background(), m.ID, rec.emit)

	require.Len(t, rec.messages, 1)
	require.Equal(t, "FINALIZATION_ERROR", rec.messages[0].Data.(ws.ErrorData).Code)
}

func TestConcurrentUtterancesSameMeeting(t *testing.T) {
	fake := &fakeTextService{
		transcribeResult: ai.TranscriptionResult{
			Text:            "hello",
			SpeakerName:     "Sarah Johnson",
			SpeakerInitials: "SJ",
			SpeakerColor:    "bg-blue-500",
		},
	}
	svc, store, m := newTestService(t, fake)

	var wg sync.WaitGroup
	var mu sync.Mutex
	rec := &recorder{}
	emit := func(msg ws.Message) {
		mu.Lock()
		rec.emit(msg)
		mu.Unlock()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ProcessUtterance(context.Background(), m.ID, "hello", emit)
		}()
	}
	wg.Wait()

	records, err := store.GetTranscriptionsByMeeting(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, records, 10)
	require.Equal(t, 1, svc.ActiveMeetingCount())
}
