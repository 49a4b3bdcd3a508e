// Package meeting defines the persisted record types shared between the
// storage layer, the transcription pipeline and the HTTP handlers.
package meeting

import "time"

// Meeting lifecycle states.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// User is an account record. Authentication here is a plain credential
// check against the store; there is no session or token layer.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Meeting is one recorded meeting. Duration is tracked in seconds and
// recomputed on every transcription turn.
type Meeting struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Duration     int        `json:"duration"`
	AudioQuality string     `json:"audioQuality"`
	SpeakerCount int        `json:"speakerCount"`
	Language     string     `json:"language"`
}

// Transcription is one recognized utterance attributed to a speaker.
type Transcription struct {
	ID              string    `json:"id"`
	MeetingID       string    `json:"meetingId"`
	SpeakerName     string    `json:"speakerName"`
	SpeakerInitials string    `json:"speakerInitials"`
	SpeakerColor    string    `json:"speakerColor"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	IsStreaming     bool      `json:"isStreaming"`
}

// ActionItem is a task extracted from the transcript buffer.
type ActionItem struct {
	ID          string    `json:"id"`
	MeetingID   string    `json:"meetingId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AssignedTo  string    `json:"assignedTo,omitempty"`
	DueDate     string    `json:"dueDate,omitempty"`
	Status      string    `json:"status"`
	IsCompleted bool      `json:"isCompleted"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// MeetingInsight is the end-of-meeting analysis record.
type MeetingInsight struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meetingId"`
	KeyTopics      []string  `json:"keyTopics"`
	Sentiment      string    `json:"sentiment"`
	SentimentScore string    `json:"sentimentScore"`
	Summary        string    `json:"summary"`
	NextSteps      string    `json:"nextSteps"`
	GeneratedAt    time.Time `json:"generatedAt"`
}
