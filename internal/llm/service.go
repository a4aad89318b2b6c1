// Package llm generates conversational feedback for learner utterances
// through an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/observability/metrics"
)

// ChatClient is the minimal chat-completion surface the service needs.
// *openai.Client satisfies it; tests substitute a fake.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Message is one prior exchange in the conversation history.
type Message struct {
	Role    string
	Content string
}

// Config holds LLM service settings.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Service produces feedback and conversational responses.
type Service struct {
	client  ChatClient
	cfg     Config
	metrics *metrics.Metrics
}

// New creates an LLM feedback service.
func New(client ChatClient, cfg Config) *Service {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Service{
		client:  client,
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
	}
}

var levelInstructions = map[models.Level]string{
	models.LevelBeginner: `- Use simple vocabulary and short sentences
- Explain grammar concepts in very basic terms
- Give lots of encouragement
- Provide simple example corrections
- Focus on basic sentence structure
- Use common everyday words`,
	models.LevelIntermediate: `- Use moderate vocabulary complexity
- Explain grammar rules with clear examples
- Balance corrections with positive feedback
- Introduce idioms and phrasal verbs occasionally
- Focus on improving fluency and accuracy`,
	models.LevelAdvanced: `- Use sophisticated vocabulary when appropriate
- Discuss nuanced grammar and style
- Focus on native-like expressions
- Introduce advanced idioms and collocations
- Emphasize precision and natural flow
- Challenge the learner with complex constructions`,
}

// BuildSystemPrompt composes the teaching persona prompt for a level
// and topic. The LEARNER LEVEL / CONVERSATION TOPIC markers are also
// parsed back out by LevelTopicFromPrompt.
func BuildSystemPrompt(level models.Level, topic string) string {
	instructions, ok := levelInstructions[level]
	if !ok {
		instructions = levelInstructions[models.LevelIntermediate]
	}
	if topic == "" {
		topic = "general"
	}

	return fmt.Sprintf(`You are a friendly, encouraging English conversation partner and teacher.
Your role is to help the learner improve their English speaking skills.

LEARNER LEVEL: %s
CONVERSATION TOPIC: %s

LEVEL-SPECIFIC APPROACH:
%s

RESPONSE GUIDELINES:
1. Respond naturally to what the learner said
2. Gently correct any grammar or vocabulary mistakes
3. Explain why corrections are needed (briefly)
4. Note any pronunciation issues based on confidence scores
5. Suggest alternative ways to express the same idea
6. Always end with a follow-up question to continue the conversation
7. Be warm, patient, and encouraging

RESPONSE FORMAT:
- Keep responses conversational and not too long (2-4 sentences for feedback)
- If there are mistakes, address 1-2 main ones, don't overwhelm
- Use a natural, friendly tone
- After feedback, ask an engaging follow-up question

IMPORTANT: You are having a real conversation. Make it feel natural, not like a test.`,
		strings.ToUpper(string(level)), topic, instructions)
}

// LevelTopicFromPrompt recovers the level and topic markers from a
// system prompt built by BuildSystemPrompt. Unknown levels default to
// intermediate, a missing topic to "general".
func LevelTopicFromPrompt(prompt string) (models.Level, string) {
	level := models.LevelIntermediate
	topic := "general"
	for _, line := range strings.Split(prompt, "\n") {
		if v, ok := strings.CutPrefix(line, "LEARNER LEVEL:"); ok {
			candidate := models.Level(strings.ToLower(strings.TrimSpace(v)))
			if candidate.Valid() {
				level = candidate
			}
		}
		if v, ok := strings.CutPrefix(line, "CONVERSATION TOPIC:"); ok {
			if t := strings.TrimSpace(v); t != "" {
				topic = t
			}
		}
	}
	return level, topic
}

// GenerateFeedback produces learning feedback for an utterance. LLM
// failures degrade to a canned encouragement rather than an error: a
// conversation must keep moving even when the model is down.
func (s *Service) GenerateFeedback(ctx context.Context, userText string, scores []models.WordConfidence, level models.Level, topic, retrievedContext string, history []Message) *models.Feedback {
	system := BuildSystemPrompt(level, topic)
	if retrievedContext != "" {
		system += "\n\nRELEVANT LEARNING MATERIALS:\n" + retrievedContext
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, m := range history {
		role := openai.ChatMessageRoleAssistant
		if m.Role == "user" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Messages:    messages,
	})
	s.metrics.RecordLLMCall("feedback", err, time.Since(start).Seconds())
	if err != nil || len(resp.Choices) == 0 {
		log.Error().Err(err).Msg("Feedback generation failed, using fallback")
		return &models.Feedback{
			Text:              "That's interesting! Keep going.",
			PronunciationTips: pronunciationTips(scores),
			FollowUpQuestion:  "What else would you like to talk about?",
		}
	}

	text := resp.Choices[0].Message.Content
	return &models.Feedback{
		Text:               text,
		GrammarCorrections: grammarCorrections(userText, text),
		PronunciationTips:  pronunciationTips(scores),
		FollowUpQuestion:   followUpQuestion(text),
	}
}

// QuickResponse generates a short conversational reply without the full
// feedback analysis.
func (s *Service) QuickResponse(ctx context.Context, userText string, level models.Level, topic string) string {
	prompt := fmt.Sprintf(`You are an English conversation partner. Respond naturally to: %q

Keep your response brief (1-2 sentences) and ask a follow-up question.
Be friendly and encouraging. Match the %s proficiency level.`, userText, level)

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: 0.8,
		MaxTokens:   150,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	s.metrics.RecordLLMCall("quick_response", err, time.Since(start).Seconds())
	if err != nil || len(resp.Choices) == 0 {
		log.Error().Err(err).Msg("Quick response generation failed, using fallback")
		return "That's interesting! Tell me more."
	}
	return resp.Choices[0].Message.Content
}

// Complete runs a raw chat completion with the configured model. Used
// by the OpenAI-compatible think endpoint.
func (s *Service) Complete(ctx context.Context, messages []openai.ChatCompletionMessage, temperature float32, maxTokens int) (openai.ChatCompletionResponse, error) {
	if temperature == 0 {
		temperature = s.cfg.Temperature
	}
	if maxTokens <= 0 {
		maxTokens = s.cfg.MaxTokens
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages:    messages,
	})
	s.metrics.RecordLLMCall("think", err, time.Since(start).Seconds())
	return resp, err
}

// correctionIndicators are phrases that signal the model corrected the
// learner. Structured output would be better; this heuristic follows
// the plain-text protocol the agent speaks.
var correctionIndicators = []string{
	"should be",
	"instead of",
	"correct form is",
	"properly say",
}

func grammarCorrections(originalText, feedbackText string) []models.GrammarCorrection {
	lower := strings.ToLower(feedbackText)
	for _, indicator := range correctionIndicators {
		if strings.Contains(lower, indicator) {
			return []models.GrammarCorrection{{
				Original:    originalText,
				Corrected:   "(see feedback)",
				Explanation: "See the feedback for details",
			}}
		}
	}
	return nil
}

// pronunciationTips flags up to three clearly mispronounced words.
func pronunciationTips(scores []models.WordConfidence) []models.PronunciationTip {
	var tips []models.PronunciationTip
	for _, s := range scores {
		if s.Word == "" || s.Confidence >= 0.7 {
			continue
		}
		tips = append(tips, models.PronunciationTip{
			Word:            s.Word,
			Tip:             "This word may need clearer pronunciation",
			ConfidenceScore: s.Confidence,
		})
		if len(tips) >= 3 {
			break
		}
	}
	return tips
}

// followUpQuestion pulls the last question out of the feedback text.
func followUpQuestion(feedbackText string) string {
	parts := strings.Split(feedbackText, "?")
	if len(parts) < 2 {
		return ""
	}
	question := parts[len(parts)-2]
	if idx := strings.LastIndex(question, "."); idx >= 0 {
		question = question[idx+1:]
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return ""
	}
	return question + "?"
}
