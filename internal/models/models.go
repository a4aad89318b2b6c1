// Package models defines the data structures for practice sessions,
// turns, summaries and learning materials.
package models

import "time"

// Level is a learner proficiency level.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Valid reports whether the level is one of the known values.
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Topic is a conversation topic for a practice session.
type Topic string

const (
	TopicDailyLife Topic = "daily_life"
	TopicBusiness  Topic = "business"
	TopicTravel    Topic = "travel"
	TopicAcademic  Topic = "academic"
	TopicFreeTalk  Topic = "free_talk"
)

// Valid reports whether the topic is one of the known values.
func (t Topic) Valid() bool {
	switch t {
	case TopicDailyLife, TopicBusiness, TopicTravel, TopicAcademic, TopicFreeTalk:
		return true
	}
	return false
}

// Session status values. Transitions are forward-only: active -> completed.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// WordConfidence is a word-level confidence score from transcription.
// Confidence is a 0.0-1.0 fraction.
type WordConfidence struct {
	Word       string  `json:"word" bson:"word"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// Turn is one user-utterance/feedback exchange within a session.
// Turns are immutable once appended.
type Turn struct {
	UserText           string           `json:"userText" bson:"user_text"`
	WordCount          int              `json:"wordCount" bson:"word_count"`
	AvgConfidence      float64          `json:"avgConfidence" bson:"avg_confidence"`
	LowConfidenceWords []WordConfidence `json:"lowConfidenceWords,omitempty" bson:"low_confidence_words,omitempty"`
	GrammarCorrections int              `json:"grammarCorrections" bson:"grammar_corrections"`
	FeedbackGiven      string           `json:"feedbackGiven,omitempty" bson:"feedback_given,omitempty"`
	Timestamp          time.Time        `json:"timestamp" bson:"timestamp"`
}

// SessionMetrics are running aggregates over a session's turns. They are a
// cache: AvgConfidence must always equal the arithmetic mean of the turns'
// per-turn averages, recomputable from scratch.
type SessionMetrics struct {
	TotalWords      int     `json:"totalWords" bson:"total_words"`
	AvgConfidence   float64 `json:"avgConfidence" bson:"avg_confidence"`
	GrammarMistakes int     `json:"grammarMistakes" bson:"grammar_mistakes"`
}

// Session is one continuous practice conversation, bounded by start/end.
type Session struct {
	ID        string         `json:"sessionId" bson:"_id"`
	UserID    string         `json:"userId,omitempty" bson:"user_id,omitempty"`
	Level     Level          `json:"level" bson:"level"`
	Topic     Topic          `json:"topic" bson:"topic"`
	VoiceID   string         `json:"voiceId" bson:"voice_id"`
	Status    string         `json:"status" bson:"status"`
	CreatedAt time.Time      `json:"createdAt" bson:"created_at"`
	StartedAt time.Time      `json:"startedAt" bson:"started_at"`
	EndedAt   time.Time      `json:"endedAt,omitempty" bson:"ended_at,omitempty"`
	Turns     []Turn         `json:"turns" bson:"turns"`
	Metrics   SessionMetrics `json:"metrics" bson:"metrics"`
}

// Summary is the persisted, post-hoc statistical digest of one completed
// session. AvgConfidence here is percentage-scaled (0-100).
type Summary struct {
	SessionID         string   `json:"sessionId" bson:"session_id"`
	DurationSeconds   int      `json:"durationSeconds" bson:"duration_seconds"`
	DurationFormatted string   `json:"durationFormatted" bson:"duration_formatted"`
	TurnsCount        int      `json:"turnsCount" bson:"turns_count"`
	TotalWordsSpoken  int      `json:"totalWordsSpoken" bson:"total_words_spoken"`
	AvgConfidence     float64  `json:"avgConfidence" bson:"avg_confidence"`
	GrammarMistakes   int      `json:"grammarMistakes" bson:"grammar_mistakes"`
	ImprovementAreas  []string `json:"improvementAreas" bson:"improvement_areas"`
}

// Progress is one analytics record per completed session. It outlives the
// session itself: analytics over Progress records never needs the live
// Session document.
type Progress struct {
	SessionID string    `json:"sessionId" bson:"session_id"`
	UserID    string    `json:"userId,omitempty" bson:"user_id,omitempty"`
	Summary   Summary   `json:"summary" bson:"summary"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Analytics is the aggregate view over a user's Progress history.
type Analytics struct {
	UserID                 string    `json:"userId"`
	TotalSessions          int       `json:"totalSessions"`
	TotalPracticeTime      string    `json:"totalPracticeTime,omitempty"`
	TotalWordsSpoken       int       `json:"totalWordsSpoken"`
	AvgConfidence          float64   `json:"avgConfidence"`
	ConfidenceTrend        string    `json:"confidenceTrend,omitempty"`
	RecentScores           []float64 `json:"recentScores,omitempty"`
	CommonImprovementAreas []string  `json:"commonImprovementAreas,omitempty"`
	ImprovementScore       float64   `json:"improvementScore"`
	Message                string    `json:"message,omitempty"`
}

// GrammarRule is a grammar learning material record.
type GrammarRule struct {
	Topic          string   `json:"topic" bson:"topic"`
	Level          Level    `json:"level" bson:"level"`
	Content        string   `json:"content" bson:"content"`
	Examples       []string `json:"examples,omitempty" bson:"examples,omitempty"`
	CommonMistakes []string `json:"commonMistakes,omitempty" bson:"common_mistakes,omitempty"`
}

// VocabularyItem is a vocabulary learning material record.
type VocabularyItem struct {
	Word          string `json:"word" bson:"word"`
	Definition    string `json:"definition" bson:"definition"`
	Level         Level  `json:"level" bson:"level"`
	Usage         string `json:"usage" bson:"usage"`
	Pronunciation string `json:"pronunciation,omitempty" bson:"pronunciation,omitempty"`
	Topic         string `json:"topic,omitempty" bson:"topic,omitempty"`
}

// PronunciationGuide is a pronunciation learning material record.
type PronunciationGuide struct {
	Word           string `json:"word" bson:"word"`
	Phonetic       string `json:"phonetic" bson:"phonetic"`
	CommonMistakes string `json:"commonMistakes,omitempty" bson:"common_mistakes,omitempty"`
	Tips           string `json:"tips" bson:"tips"`
}
