// Package storage provides the persistence boundary for meeting records.
// The contract is simple key-addressed create/read/update with
// single-record atomicity; updates replace whole records, last writer wins.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/meetingflow/backend/internal/model/meeting"
)

// ErrNotFound is returned when a record with the given key does not exist.
var ErrNotFound = errors.New("record not found")

// MeetingUpdate carries the fields a meeting update may patch. Nil fields
// are left unchanged.
type MeetingUpdate struct {
	Status       *string
	Duration     *int
	SpeakerCount *int
	EndTime      *time.Time
}

// TranscriptionUpdate carries the patchable fields of a transcription.
type TranscriptionUpdate struct {
	Content     *string
	IsStreaming *bool
}

// ActionItemUpdate carries the patchable fields of an action item.
type ActionItemUpdate struct {
	Title       *string
	Description *string
	AssignedTo  *string
	DueDate     *string
	Status      *string
	IsCompleted *bool
}

// InsightUpdate carries the patchable fields of a meeting insight.
type InsightUpdate struct {
	KeyTopics      []string
	Sentiment      *string
	SentimentScore *string
	Summary        *string
	NextSteps      *string
}

// Storage is the record store consumed by the transcription pipeline and
// the REST handlers.
type Storage interface {
	GetUser(ctx context.Context, id string) (meeting.User, error)
	GetUserByUsername(ctx context.Context, username string) (meeting.User, error)
	CreateUser(ctx context.Context, user meeting.User) (meeting.User, error)

	GetMeeting(ctx context.Context, id string) (meeting.Meeting, error)
	GetMeetingsByUser(ctx context.Context, userID string) ([]meeting.Meeting, error)
	CreateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error)
	UpdateMeeting(ctx context.Context, id string, update MeetingUpdate) (meeting.Meeting, error)

	GetTranscriptionsByMeeting(ctx context.Context, meetingID string) ([]meeting.Transcription, error)
	CreateTranscription(ctx context.Context, t meeting.Transcription) (meeting.Transcription, error)
	UpdateTranscription(ctx context.Context, id string, update TranscriptionUpdate) (meeting.Transcription, error)

	GetActionItemsByMeeting(ctx context.Context, meetingID string) ([]meeting.ActionItem, error)
	CreateActionItem(ctx context.Context, item meeting.ActionItem) (meeting.ActionItem, error)
	UpdateActionItem(ctx context.Context, id string, update ActionItemUpdate) (meeting.ActionItem, error)

	GetMeetingInsight(ctx context.Context, meetingID string) (meeting.MeetingInsight, error)
	CreateMeetingInsight(ctx context.Context, insight meeting.MeetingInsight) (meeting.MeetingInsight, error)
	UpdateMeetingInsight(ctx context.Context, meetingID string, update InsightUpdate) (meeting.MeetingInsight, error)
}
