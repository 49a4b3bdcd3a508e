package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetingflow/backend/internal/model/meeting"
)

// MemStorage is the in-memory Storage implementation. It is the only
// persistence backend; records live for the process lifetime.
type MemStorage struct {
	mu              sync.RWMutex
	users           map[string]meeting.User
	meetings        map[string]meeting.Meeting
	transcriptions  map[string]meeting.Transcription
	actionItems     map[string]meeting.ActionItem
	meetingInsights map[string]meeting.MeetingInsight
}

// NewMemStorage bootstraps the store with a default user so the app is
// usable without a signup flow.
func NewMemStorage() *MemStorage {
	s := &MemStorage{
		users:           make(map[string]meeting.User),
		meetings:        make(map[string]meeting.Meeting),
		transcriptions:  make(map[string]meeting.Transcription),
		actionItems:     make(map[string]meeting.ActionItem),
		meetingInsights: make(map[string]meeting.MeetingInsight),
	}

	_, _ = s.CreateUser(context.Background(), meeting.User{
		Username: "john.smith",
		Password: "password123",
		Name:     "John Smith",
		Role:     "Newsletter Publisher",
	})

	return s
}

func (s *MemStorage) GetUser(_ context.Context, id string) (meeting.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return meeting.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemStorage) GetUserByUsername(_ context.Context, username string) (meeting.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return meeting.User{}, ErrNotFound
}

func (s *MemStorage) CreateUser(_ context.Context, user meeting.User) (meeting.User, error) {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	if user.Role == "" {
		user.Role = "Newsletter Publisher"
	}

	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()

	return user, nil
}

func (s *MemStorage) GetMeeting(_ context.Context, id string) (meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return meeting.Meeting{}, ErrNotFound
	}
	return m, nil
}

func (s *MemStorage) GetMeetingsByUser(_ context.Context, userID string) ([]meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var meetings []meeting.Meeting
	for _, m := range s.meetings {
		if m.UserID == userID {
			meetings = append(meetings, m)
		}
	}
	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].StartTime.Before(meetings[j].StartTime)
	})
	return meetings, nil
}

func (s *MemStorage) CreateMeeting(_ context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	m.ID = uuid.NewString()
	m.StartTime = time.Now().UTC()
	m.EndTime = nil
	if m.Status == "" {
		m.Status = meeting.StatusActive
	}
	if m.AudioQuality == "" {
		m.AudioQuality = "excellent"
	}
	if m.SpeakerCount == 0 {
		m.SpeakerCount = 1
	}
	if m.Language == "" {
		m.Language = "en-US"
	}

	s.mu.Lock()
	s.meetings[m.ID] = m
	s.mu.Unlock()

	return m, nil
}

func (s *MemStorage) UpdateMeeting(_ context.Context, id string, update MeetingUpdate) (meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return meeting.Meeting{}, ErrNotFound
	}

	if update.Status != nil {
		m.Status = *update.Status
	}
	if update.Duration != nil {
		m.Duration = *update.Duration
	}
	if update.SpeakerCount != nil {
		m.SpeakerCount = *update.SpeakerCount
	}
	if update.EndTime != nil {
		endTime := *update.EndTime
		m.EndTime = &endTime
	}

	s.meetings[id] = m
	return m, nil
}

func (s *MemStorage) GetTranscriptionsByMeeting(_ context.Context, meetingID string) ([]meeting.Transcription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var transcriptions []meeting.Transcription
	for _, t := range s.transcriptions {
		if t.MeetingID == meetingID {
			transcriptions = append(transcriptions, t)
		}
	}
	sort.Slice(transcriptions, func(i, j int) bool {
		return transcriptions[i].Timestamp.Before(transcriptions[j].Timestamp)
	})
	return transcriptions, nil
}

func (s *MemStorage) CreateTranscription(_ context.Context, t meeting.Transcription) (meeting.Transcription, error) {
	t.ID = uuid.NewString()
	t.Timestamp = time.Now().UTC()

	s.mu.Lock()
	s.transcriptions[t.ID] = t
	s.mu.Unlock()

	return t, nil
}

func (s *MemStorage) UpdateTranscription(_ context.Context, id string, update TranscriptionUpdate) (meeting.Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transcriptions[id]
	if !ok {
		return meeting.Transcription{}, ErrNotFound
	}

	if update.Content != nil {
		t.Content = *update.Content
	}
	if update.IsStreaming != nil {
		t.IsStreaming = *update.IsStreaming
	}

	s.transcriptions[id] = t
	return t, nil
}

func (s *MemStorage) GetActionItemsByMeeting(_ context.Context, meetingID string) ([]meeting.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []meeting.ActionItem
	for _, item := range s.actionItems {
		if item.MeetingID == meetingID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ExtractedAt.Before(items[j].ExtractedAt)
	})
	return items, nil
}

func (s *MemStorage) CreateActionItem(_ context.Context, item meeting.ActionItem) (meeting.ActionItem, error) {
	item.ID = uuid.NewString()
	item.ExtractedAt = time.Now().UTC()
	if item.Status == "" {
		item.Status = "pending"
	}

	s.mu.Lock()
	s.actionItems[item.ID] = item
	s.mu.Unlock()

	return item, nil
}

func (s *MemStorage) UpdateActionItem(_ context.Context, id string, update ActionItemUpdate) (meeting.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.actionItems[id]
	if !ok {
		return meeting.ActionItem{}, ErrNotFound
	}

	if update.Title != nil {
		item.Title = *update.Title
	}
	if update.Description != nil {
		item.Description = *update.Description
	}
	if update.AssignedTo != nil {
		item.AssignedTo = *update.AssignedTo
	}
	if update.DueDate != nil {
		item.DueDate = *update.DueDate
	}
	if update.Status != nil {
		item.Status = *update.Status
	}
	if update.IsCompleted != nil {
		item.IsCompleted = *update.IsCompleted
	}

	s.actionItems[id] = item
	return item, nil
}

func (s *MemStorage) GetMeetingInsight(_ context.Context, meetingID string) (meeting.MeetingInsight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, insight := range s.meetingInsights {
		if insight.MeetingID == meetingID {
			return insight, nil
		}
	}
	return meeting.MeetingInsight{}, ErrNotFound
}

func (s *MemStorage) CreateMeetingInsight(_ context.Context, insight meeting.MeetingInsight) (meeting.MeetingInsight, error) {
	insight.ID = uuid.NewString()
	insight.GeneratedAt = time.Now().UTC()
	if insight.KeyTopics == nil {
		insight.KeyTopics = []string{}
	}

	s.mu.Lock()
	s.meetingInsights[insight.ID] = insight
	s.mu.Unlock()

	return insight, nil
}

func (s *MemStorage) UpdateMeetingInsight(_ context.Context, meetingID string, update InsightUpdate) (meeting.MeetingInsight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, insight := range s.meetingInsights {
		if insight.MeetingID != meetingID {
			continue
		}

		if update.KeyTopics != nil {
			insight.KeyTopics = update.KeyTopics
		}
		if update.Sentiment != nil {
			insight.Sentiment = *update.Sentiment
		}
		if update.SentimentScore != nil {
			insight.SentimentScore = *update.SentimentScore
		}
		if update.Summary != nil {
			insight.Summary = *update.Summary
		}
		if update.NextSteps != nil {
			insight.NextSteps = *update.NextSteps
		}

		s.meetingInsights[id] = insight
		return insight, nil
	}

	return meeting.MeetingInsight{}, ErrNotFound
}
