// Package store defines persistence for sessions, progress records and
// learning materials, with in-memory and MongoDB implementations.
package store

import (
	"context"
	"errors"
	"time"

	"ai-practice-session-service/internal/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrSessionCompleted is returned when writing a turn to a session that
// has already been finalized.
var ErrSessionCompleted = errors.New("store: session already completed")

// Store is the persistence interface for the service.
//
// Session writes are conditional: AppendTurn and CompleteSession only
// apply to sessions in the active state, so a late writer cannot mutate
// a finalized session.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	AppendTurn(ctx context.Context, sessionID string, turn models.Turn, metrics models.SessionMetrics) error
	CompleteSession(ctx context.Context, sessionID string, endedAt time.Time) (*models.Session, error)

	// Progress history
	SaveProgress(ctx context.Context, progress *models.Progress) error
	ListProgress(ctx context.Context, userID string, limit int) ([]models.Progress, error)

	// Learning materials
	FindGrammarRules(ctx context.Context, level models.Level, topics []string, limit int) ([]models.GrammarRule, error)
	GrammarRulesByLevel(ctx context.Context, level models.Level, limit int) ([]models.GrammarRule, error)
	FindVocabulary(ctx context.Context, level models.Level, topic string, limit int) ([]models.VocabularyItem, error)
	VocabularyByLevel(ctx context.Context, level models.Level, limit int) ([]models.VocabularyItem, error)
	FindPronunciation(ctx context.Context, words []string, limit int) ([]models.PronunciationGuide, error)

	// SeedMaterials loads learning materials if the store is empty.
	SeedMaterials(ctx context.Context, grammar []models.GrammarRule, vocab []models.VocabularyItem, pron []models.PronunciationGuide) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
