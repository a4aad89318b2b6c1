package bridge

import (
	"encoding/json"
	"fmt"

	"ai-practice-session-service/internal/models"
)

// Inbound control message types accepted from the client.
const (
	clientMsgInit  = "init"
	clientMsgAudio = "audio"
	clientMsgStop  = "stop"
)

// Downstream audio parameters, fixed by the upstream output format.
const (
	downstreamAudioFormat = "linear16"
	downstreamSampleRate  = 24000
)

// clientEnvelope is the JSON control frame received from the client.
// Binary frames carry raw audio and bypass this envelope entirely.
type clientEnvelope struct {
	Type    string `json:"type"`
	Level   string `json:"level,omitempty"`
	Topic   string `json:"topic,omitempty"`
	VoiceID string `json:"voice_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Audio   string `json:"audio,omitempty"`
}

func parseClientEnvelope(data []byte) (clientEnvelope, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return clientEnvelope{}, fmt.Errorf("malformed client message: %w", err)
	}
	return env, nil
}

// sessionStartedMessage confirms session creation to the client.
type sessionStartedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Level     string `json:"level"`
	Topic     string `json:"topic"`
}

func newSessionStartedMessage(sessionID string, level models.Level, topic models.Topic) sessionStartedMessage {
	return sessionStartedMessage{
		Type:      "session_started",
		SessionID: sessionID,
		Level:     string(level),
		Topic:     string(topic),
	}
}

// finalTranscriptMessage carries one finalized user utterance.
type finalTranscriptMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
}

func newFinalTranscriptMessage(text string, confidence float64) finalTranscriptMessage {
	return finalTranscriptMessage{
		Type:       "final_transcript",
		Text:       text,
		Confidence: confidence,
		IsFinal:    true,
	}
}

// feedbackMessage carries one agent reply with any attached feedback.
type feedbackMessage struct {
	Type                  string                        `json:"type"`
	Text                  string                        `json:"text"`
	GrammarCorrections    []models.GrammarCorrection    `json:"grammar_corrections"`
	VocabularySuggestions []models.VocabularySuggestion `json:"vocabulary_suggestions"`
	PronunciationTips     []models.PronunciationTip     `json:"pronunciation_tips"`
	FollowUpQuestion      string                        `json:"follow_up_question"`
}

func newFeedbackMessage(text string) feedbackMessage {
	return feedbackMessage{
		Type:                  "feedback",
		Text:                  text,
		GrammarCorrections:    []models.GrammarCorrection{},
		VocabularySuggestions: []models.VocabularySuggestion{},
		PronunciationTips:     []models.PronunciationTip{},
	}
}

// audioMessage carries one synthesized audio chunk, base64 encoded.
type audioMessage struct {
	Type       string `json:"type"`
	Audio      string `json:"audio"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

func newAudioMessage(audioB64 string) audioMessage {
	return audioMessage{
		Type:       "audio",
		Audio:      audioB64,
		Format:     downstreamAudioFormat,
		SampleRate: downstreamSampleRate,
	}
}

// errorMessage notifies the client of a failure, best effort.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorMessage(message string) errorMessage {
	return errorMessage{Type: "error", Message: message}
}
