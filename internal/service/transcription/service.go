// Package transcription drives the per-meeting pipeline: it turns inbound
// utterances into persisted records and realtime events, paces action-item
// extraction, and finalizes meetings into insight records.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetingflow/backend/internal/model/meeting"
	"github.com/meetingflow/backend/internal/service/ai"
	"github.com/meetingflow/backend/internal/storage"
	"github.com/meetingflow/backend/internal/ws"
)

const (
	// extractionInterval and bufferThreshold gate the action-item
	// extraction cadence: extraction runs when either the interval has
	// elapsed since the last check or the transcript buffer has grown
	// past the threshold.
	extractionInterval = 30 * time.Second
	bufferThreshold    = 500
)

// TextService is the external AI dependency the pipeline calls.
type TextService interface {
	Transcribe(ctx context.Context, meetingID, rawText, speakerContext string) (ai.TranscriptionResult, error)
	ExtractActionItems(ctx context.Context, meetingID, transcriptText string) ([]ai.ActionItemCandidate, error)
	GenerateInsights(ctx context.Context, meetingID, fullTranscript string) (ai.Insights, error)
	ClearHistory(meetingID string)
}

type speakerRecord struct {
	name     string
	initials string
	color    string
}

// session is the ephemeral per-meeting state. Its mutex serializes
// concurrent utterances for the same meeting so buffer appends and
// speaker-table updates cannot interleave; different meetings proceed
// independently.
type session struct {
	mu             sync.Mutex
	buffer         strings.Builder
	lastExtraction time.Time
	speakers       map[string]speakerRecord
}

// Service owns the meeting session registry. Sessions exist only while a
// meeting has processed at least one utterance since creation or the
// last finalization.
type Service struct {
	store       storage.Storage
	textService TextService
	logger      zerolog.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService wires the orchestrator. textService may be nil when the AI
// dependency is not configured; utterances then fail with an error event.
func NewService(store storage.Storage, textService TextService, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		textService: textService,
		logger:      logger.With().Str("component", "transcription").Logger(),
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// ProcessUtterance converts one utterance into a transcription record and
// event, paces action-item extraction, and refreshes meeting statistics.
// Any failure is reported as a single error event to the meeting; side
// effects already committed are not rolled back.
func (s *Service) ProcessUtterance(ctx context.Context, meetingID, text string, emit func(ws.Message)) {
	if s.textService == nil {
		emit(ws.NewError("Transcription is unavailable", "TRANSCRIPTION_ERROR"))
		return
	}

	sess := s.session(meetingID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	result, err := s.textService.Transcribe(ctx, meetingID, text, speakerContext(sess.speakers))
	if err != nil {
		s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("transcription failed")
		emit(ws.NewError("Failed to process transcription", "TRANSCRIPTION_ERROR"))
		return
	}

	sess.speakers[result.SpeakerName] = speakerRecord{
		name:     result.SpeakerName,
		initials: result.SpeakerInitials,
		color:    result.SpeakerColor,
	}

	record, err := s.store.CreateTranscription(ctx, meeting.Transcription{
		MeetingID:       meetingID,
		SpeakerName:     result.SpeakerName,
		SpeakerInitials: result.SpeakerInitials,
		SpeakerColor:    result.SpeakerColor,
		Content:         result.Text,
		IsStreaming:     false,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("persist transcription failed")
		emit(ws.NewError("Failed to process transcription", "TRANSCRIPTION_ERROR"))
		return
	}

	emit(ws.NewTranscription(ws.TranscriptionData{
		MeetingID:       meetingID,
		SpeakerName:     record.SpeakerName,
		SpeakerInitials: record.SpeakerInitials,
		SpeakerColor:    record.SpeakerColor,
		Content:         record.Content,
		IsStreaming:     false,
	}))

	sess.buffer.WriteString(" ")
	sess.buffer.WriteString(result.Text)

	now := s.now()
	if now.Sub(sess.lastExtraction) > extractionInterval || sess.buffer.Len() > bufferThreshold {
		s.extractActionItems(ctx, meetingID, sess.buffer.String(), emit)
		sess.lastExtraction = now
		sess.buffer.Reset()
	}

	s.updateMeetingStats(ctx, meetingID, emit)
}

// PassthroughText re-emits a live partial as a streaming transcription
// event without touching the text service or the session state.
func (s *Service) PassthroughText(meetingID, partialText string, speaker ws.SpeakerInfo, emit func(ws.Message)) {
	emit(ws.NewTranscription(ws.TranscriptionData{
		MeetingID:       meetingID,
		SpeakerName:     speaker.Name,
		SpeakerInitials: speaker.Initials,
		SpeakerColor:    speaker.Color,
		Content:         partialText,
		IsStreaming:     true,
	}))
}

// extractActionItems persists and emits each extracted item. Items whose
// title already exists for the meeting are skipped so repeated extraction
// over overlapping transcript windows does not duplicate tasks. Failures
// here are logged and swallowed; the utterance pipeline carries on.
func (s *Service) extractActionItems(ctx context.Context, meetingID, transcriptText string, emit func(ws.Message)) {
	candidates, err := s.textService.ExtractActionItems(ctx, meetingID, transcriptText)
	if err != nil {
		s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("action item extraction failed")
		return
	}

	existing, err := s.store.GetActionItemsByMeeting(ctx, meetingID)
	if err != nil {
		s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("load existing action items failed")
		return
	}
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[strings.ToLower(item.Title)] = struct{}{}
	}

	for _, candidate := range candidates {
		key := strings.ToLower(strings.TrimSpace(candidate.Title))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}

		item, err := s.store.CreateActionItem(ctx, meeting.ActionItem{
			MeetingID:   meetingID,
			Title:       candidate.Title,
			Description: candidate.Description,
			AssignedTo:  candidate.AssignedTo,
			DueDate:     candidate.DueDate,
			Status:      "pending",
			IsCompleted: false,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("persist action item failed")
			continue
		}
		seen[key] = struct{}{}

		emit(ws.NewActionItem(ws.ActionItemData{
			MeetingID:   item.MeetingID,
			Title:       item.Title,
			Description: item.Description,
			AssignedTo:  item.AssignedTo,
			DueDate:     item.DueDate,
			Status:      item.Status,
			IsCompleted: item.IsCompleted,
		}))
	}
}

// updateMeetingStats recomputes duration and distinct speaker count,
// persists them onto the meeting record and emits a status event. A
// meeting unknown to the store is skipped silently.
func (s *Service) updateMeetingStats(ctx context.Context, meetingID string, emit func(ws.Message)) {
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("load meeting failed")
		}
		return
	}

	transcriptions, err := s.store.GetTranscriptionsByMeeting(ctx, meetingID)
	if err != nil {
		s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("load transcriptions failed")
		return
	}

	speakers := make(map[string]struct{}, len(transcriptions))
	for _, t := range transcriptions {
		speakers[t.SpeakerName] = struct{}{}
	}

	duration := int(s.now().Sub(m.StartTime).Seconds())
	speakerCount := len(speakers)

	if _, err := s.store.UpdateMeeting(ctx, meetingID, storage.MeetingUpdate{
		Duration:     &duration,
		SpeakerCount: &speakerCount,
	}); err != nil {
		s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("update meeting stats failed")
		return
	}

	emit(ws.NewMeetingStatus(ws.MeetingStatusData{
		MeetingID:    meetingID,
		Status:       m.Status,
		Duration:     duration,
		SpeakerCount: speakerCount,
	}))
}

// FinalizeMeeting generates and persists the insight record, marks the
// meeting completed and tears down all in-memory state for it. A failure
// leaves whatever partial state existed before the failing step.
func (s *Service) FinalizeMeeting(ctx context.Context, meetingID string, emit func(ws.Message)) {
	if s.textService == nil {
		emit(ws.NewError("Finalization is unavailable", "FINALIZATION_ERROR"))
		return
	}

	if err := s.finalize(ctx, meetingID); err != nil {
		s.logger.Error().Err(err).Str("meeting_id", meetingID).Msg("finalization failed")
		emit(ws.NewError("Failed to finalize meeting", "FINALIZATION_ERROR"))
		return
	}

	emit(ws.NewMeetingStatus(ws.MeetingStatusData{
		MeetingID:    meetingID,
		Status:       meeting.StatusCompleted,
		Duration:     0,
		SpeakerCount: 0,
	}))
}

func (s *Service) finalize(ctx context.Context, meetingID string) error {
	transcriptions, err := s.store.GetTranscriptionsByMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load transcriptions: %w", err)
	}

	lines := make([]string, 0, len(transcriptions))
	for _, t := range transcriptions {
		lines = append(lines, fmt.Sprintf("%s: %s", t.SpeakerName, t.Content))
	}
	fullTranscript := strings.Join(lines, "\n")

	insights, err := s.textService.GenerateInsights(ctx, meetingID, fullTranscript)
	if err != nil {
		return fmt.Errorf("generate insights: %w", err)
	}

	if _, err := s.store.CreateMeetingInsight(ctx, meeting.MeetingInsight{
		MeetingID:      meetingID,
		KeyTopics:      insights.KeyTopics,
		Sentiment:      insights.Sentiment,
		SentimentScore: insights.SentimentScore,
		Summary:        insights.Summary,
		NextSteps:      insights.NextSteps,
	}); err != nil {
		return fmt.Errorf("persist insight: %w", err)
	}

	status := meeting.StatusCompleted
	endTime := s.now()
	if _, err := s.store.UpdateMeeting(ctx, meetingID, storage.MeetingUpdate{
		Status:  &status,
		EndTime: &endTime,
	}); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("complete meeting: %w", err)
	}

	s.mu.Lock()
	delete(s.sessions, meetingID)
	s.mu.Unlock()
	s.textService.ClearHistory(meetingID)

	return nil
}

// ActiveMeetingCount reports the number of meetings with live session
// state.
func (s *Service) ActiveMeetingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// session lazily creates the per-meeting state.
func (s *Service) session(meetingID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[meetingID]
	if !ok {
		sess = &session{
			lastExtraction: s.now(),
			speakers:       make(map[string]speakerRecord),
		}
		s.sessions[meetingID] = sess
	}
	return sess
}

func speakerContext(speakers map[string]speakerRecord) string {
	if len(speakers) == 0 {
		return "No previous speakers"
	}

	parts := make([]string, 0, len(speakers))
	for _, sp := range speakers {
		parts = append(parts, fmt.Sprintf("%s (%s)", sp.name, sp.initials))
	}
	return "Known speakers: " + strings.Join(parts, ", ")
}
