package ai

import "fmt"

// systemPrompt is fixed for the whole process and sent with every call.
const systemPrompt = `You are MeetingFlow, an AI assistant specialized in transcribing meetings for newsletter publishers and content creators. You help extract actionable insights, identify speakers, and highlight important action items.

Your responses should be:
- Professional but conversational
- Focused on content strategy and newsletter publishing
- Helpful in identifying actionable tasks
- Natural and human-like, avoiding robotic language
- Contextually aware of previous conversation

When processing meeting content, focus on:
- Content strategy discussions
- Editorial calendar planning
- Audience engagement metrics
- Campaign performance reviews
- Team assignments and deadlines
- Tool integrations and workflows`

func transcribePrompt(audioText, speakerContext string) string {
	if speakerContext == "" {
		speakerContext = "New speaker"
	}
	return fmt.Sprintf(`Process this meeting transcription and identify the speaker. If speaker context is provided, use it to maintain consistency.

Audio text: %q
Speaker context: %s

Respond with JSON in this format:
{
  "text": "cleaned and formatted transcription",
  "speakerName": "Speaker Full Name",
  "speakerInitials": "XX",
  "speakerColor": "css-color-class"
}`, audioText, speakerContext)
}

func actionItemsPrompt(transcriptText string) string {
	return fmt.Sprintf(`Analyze this meeting transcript and extract action items relevant to newsletter publishing and content creation.

Transcript: %q

Focus on identifying:
- Content creation tasks
- Editorial deadlines
- Campaign planning items
- Tool integrations
- Follow-up meetings
- Performance analysis tasks

Respond with JSON in this format:
{
  "actionItems": [
    {
      "title": "Brief action title",
      "description": "Detailed description",
      "assignedTo": "Person name if mentioned",
      "dueDate": "Timeframe if mentioned"
    }
  ]
}`, transcriptText)
}

func insightsPrompt(fullTranscript string) string {
	return fmt.Sprintf(`Analyze this complete meeting transcript and provide insights for newsletter publishers.

Full transcript: %q

Generate comprehensive insights including:
- Key discussion topics
- Overall sentiment and team dynamics
- Strategic next steps
- Summary of decisions made

Respond with JSON in this format:
{
  "keyTopics": ["topic1", "topic2", "topic3"],
  "sentiment": "positive|neutral|negative",
  "sentimentScore": "descriptive explanation",
  "summary": "3-4 sentence meeting summary",
  "nextSteps": "Key next steps and recommendations"
}`, fullTranscript)
}
