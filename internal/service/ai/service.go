// Package ai wraps the external text-generation service behind the four
// operations the transcription pipeline needs. It keeps a bounded rolling
// conversation history per meeting so follow-up calls stay contextual
// without the prompt growing with meeting length.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/meetingflow/backend/internal/config"
	"github.com/meetingflow/backend/internal/metrics"
)

const (
	// contextWindow is the number of history turns supplied to each call.
	contextWindow = 20
	// historyMax / historyTrim bound the stored history: once it exceeds
	// historyMax turns it is cut down to the most recent historyTrim.
	historyMax  = 40
	historyTrim = 30
)

// TranscriptionResult is the structured output of a transcription call.
type TranscriptionResult struct {
	Text            string `json:"text"`
	SpeakerName     string `json:"speakerName"`
	SpeakerInitials string `json:"speakerInitials"`
	SpeakerColor    string `json:"speakerColor"`
}

// ActionItemCandidate is one extracted action item before persistence.
type ActionItemCandidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assignedTo"`
	DueDate     string `json:"dueDate"`
}

// Insights is the end-of-meeting analysis.
type Insights struct {
	KeyTopics      []string `json:"keyTopics"`
	Sentiment      string   `json:"sentiment"`
	SentimentScore string   `json:"sentimentScore"`
	Summary        string   `json:"summary"`
	NextSteps      string   `json:"nextSteps"`
}

// Service adapts the chat model for meeting transcription. No internal
// retries: failures propagate to the caller, which converts them into
// protocol error events.
type Service struct {
	chatModel model.ChatModel
	timeout   time.Duration
	logger    zerolog.Logger

	mu        sync.Mutex
	histories map[string][]*schema.Message
}

// NewService builds the adapter from configuration.
func NewService(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	svc := NewServiceWithModel(chatModel, logger)
	if cfg.RequestTimeout > 0 {
		svc.timeout = cfg.RequestTimeout
	}
	return svc, nil
}

// NewServiceWithModel builds the adapter around an existing chat model.
func NewServiceWithModel(chatModel model.ChatModel, logger zerolog.Logger) *Service {
	return &Service{
		chatModel: chatModel,
		timeout:   30 * time.Second,
		logger:    logger.With().Str("component", "ai").Logger(),
		histories: make(map[string][]*schema.Message),
	}
}

// generate runs one structured completion call under the request timeout.
func (s *Service) generate(ctx context.Context, meetingID, prompt string) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.chatModel.Generate(ctx, s.buildMessages(meetingID, prompt))
}

// Transcribe turns raw utterance text into a speaker-attributed fragment.
// Missing or malformed response fields fall back to the raw text and a
// sentinel speaker identity rather than failing the turn.
func (s *Service) Transcribe(ctx context.Context, meetingID, rawText, speakerContext string) (TranscriptionResult, error) {
	metrics.AIRequestsTotal.WithLabelValues("transcribe").Inc()

	prompt := transcribePrompt(rawText, speakerContext)
	response, err := s.generate(ctx, meetingID, prompt)
	if err != nil {
		metrics.AIFailuresTotal.WithLabelValues("transcribe").Inc()
		return TranscriptionResult{}, fmt.Errorf("transcription request failed: %w", err)
	}

	var result TranscriptionResult
	if err := decodeJSONObject(response.Content, &result); err != nil {
		s.logger.Warn().Err(err).Str("meeting_id", meetingID).Msg("unparseable transcription response, using fallbacks")
	}
	if result.Text == "" {
		result.Text = rawText
	}
	if result.SpeakerName == "" {
		result.SpeakerName = "Unknown Speaker"
	}
	if result.SpeakerInitials == "" {
		result.SpeakerInitials = "US"
	}
	if result.SpeakerColor == "" {
		result.SpeakerColor = "bg-gray-500"
	}

	s.appendHistory(meetingID, prompt, response.Content)
	return result, nil
}

// ExtractActionItems pulls action items out of the buffered transcript.
// An empty list is a legitimate success.
func (s *Service) ExtractActionItems(ctx context.Context, meetingID, transcriptText string) ([]ActionItemCandidate, error) {
	metrics.AIRequestsTotal.WithLabelValues("extract_action_items").Inc()

	prompt := actionItemsPrompt(transcriptText)
	response, err := s.generate(ctx, meetingID, prompt)
	if err != nil {
		metrics.AIFailuresTotal.WithLabelValues("extract_action_items").Inc()
		return nil, fmt.Errorf("action item extraction failed: %w", err)
	}

	var result struct {
		ActionItems []ActionItemCandidate `json:"actionItems"`
	}
	if err := decodeJSONObject(response.Content, &result); err != nil {
		s.logger.Warn().Err(err).Str("meeting_id", meetingID).Msg("unparseable action item response, treating as empty")
	}

	s.appendHistory(meetingID, prompt, response.Content)
	return result.ActionItems, nil
}

// GenerateInsights produces the final meeting analysis. Missing fields
// default to neutral placeholders.
func (s *Service) GenerateInsights(ctx context.Context, meetingID, fullTranscript string) (Insights, error) {
	metrics.AIRequestsTotal.WithLabelValues("generate_insights").Inc()

	prompt := insightsPrompt(fullTranscript)
	response, err := s.generate(ctx, meetingID, prompt)
	if err != nil {
		metrics.AIFailuresTotal.WithLabelValues("generate_insights").Inc()
		return Insights{}, fmt.Errorf("insight generation failed: %w", err)
	}

	var insights Insights
	if err := decodeJSONObject(response.Content, &insights); err != nil {
		s.logger.Warn().Err(err).Str("meeting_id", meetingID).Msg("unparseable insight response, using placeholders")
	}
	if insights.KeyTopics == nil {
		insights.KeyTopics = []string{}
	}
	if insights.Sentiment == "" {
		insights.Sentiment = "neutral"
	}
	if insights.SentimentScore == "" {
		insights.SentimentScore = "Neutral meeting tone"
	}
	if insights.Summary == "" {
		insights.Summary = "Meeting discussion completed"
	}
	if insights.NextSteps == "" {
		insights.NextSteps = "Follow up on discussed items"
	}

	s.appendHistory(meetingID, prompt, response.Content)
	return insights, nil
}

// StreamChatReply streams the assistant reply chunk by chunk through
// onChunk. The concatenated reply is appended to the meeting history only
// after the stream is fully drained; a callback or receive error aborts
// the drain and skips the history update.
func (s *Service) StreamChatReply(ctx context.Context, meetingID, userMessage string, onChunk func(chunk string) error) error {
	metrics.AIRequestsTotal.WithLabelValues("chat").Inc()

	stream, err := s.chatModel.Stream(ctx, s.buildMessages(meetingID, userMessage))
	if err != nil {
		metrics.AIFailuresTotal.WithLabelValues("chat").Inc()
		return fmt.Errorf("chat stream failed: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			metrics.AIFailuresTotal.WithLabelValues("chat").Inc()
			return fmt.Errorf("chat stream recv failed: %w", recvErr)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		reply.WriteString(chunk.Content)
		if err := onChunk(chunk.Content); err != nil {
			return fmt.Errorf("deliver chat chunk: %w", err)
		}
	}

	s.appendHistory(meetingID, userMessage, reply.String())
	return nil
}

// ClearHistory drops the meeting's conversation history. Called when a
// meeting is finalized.
func (s *Service) ClearHistory(meetingID string) {
	s.mu.Lock()
	delete(s.histories, meetingID)
	s.mu.Unlock()
}

func (s *Service) buildMessages(meetingID, userPrompt string) []*schema.Message {
	messages := make([]*schema.Message, 0, contextWindow+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, s.conversationContext(meetingID)...)
	messages = append(messages, schema.UserMessage(userPrompt))
	return messages
}

func (s *Service) conversationContext(meetingID string) []*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.histories[meetingID]
	if len(history) > contextWindow {
		history = history[len(history)-contextWindow:]
	}
	context := make([]*schema.Message, len(history))
	copy(context, history)
	return context
}

func (s *Service) appendHistory(meetingID, userContent, assistantContent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.histories[meetingID]
	history = append(history,
		schema.UserMessage(userContent),
		schema.AssistantMessage(assistantContent, nil),
	)
	if len(history) > historyMax {
		history = history[len(history)-historyTrim:]
	}
	s.histories[meetingID] = history
}

func (s *Service) historyLen(meetingID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories[meetingID])
}

// decodeJSONObject extracts the first JSON object embedded in the model
// output. Models occasionally wrap JSON in prose or code fences.
func decodeJSONObject(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("missing json object")
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), v)
}
