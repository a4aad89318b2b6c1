package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"ai-practice-session-service/internal/models"
)

// Memory is an in-memory Store used for local development and tests.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	progress []models.Progress

	grammar []models.GrammarRule
	vocab   []models.VocabularyItem
	pron    []models.PronunciationGuide
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*models.Session),
	}
}

func (m *Memory) CreateSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *Memory) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	cp.Turns = append([]models.Turn(nil), s.Turns...)
	return &cp, nil
}

func (m *Memory) AppendTurn(_ context.Context, sessionID string, turn models.Turn, metrics models.SessionMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.Status != models.StatusActive {
		return ErrSessionCompleted
	}
	s.Turns = append(s.Turns, turn)
	s.Metrics = metrics
	return nil
}

func (m *Memory) CompleteSession(_ context.Context, sessionID string, endedAt time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status != models.StatusActive {
		return nil, ErrSessionCompleted
	}
	s.Status = models.StatusCompleted
	s.EndedAt = endedAt

	cp := *s
	cp.Turns = append([]models.Turn(nil), s.Turns...)
	return &cp, nil
}

func (m *Memory) SaveProgress(_ context.Context, progress *models.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress = append(m.progress, *progress)
	return nil
}

// ListProgress returns progress records for a user, newest first.
func (m *Memory) ListProgress(_ context.Context, userID string, limit int) ([]models.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Progress
	for i := len(m.progress) - 1; i >= 0; i-- {
		if m.progress[i].UserID != userID {
			continue
		}
		out = append(out, m.progress[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) FindGrammarRules(_ context.Context, level models.Level, topics []string, limit int) ([]models.GrammarRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topicSet := make(map[string]bool, len(topics))
	for _, t := range topics {
		topicSet[strings.ToLower(t)] = true
	}

	var out []models.GrammarRule
	for _, r := range m.grammar {
		if r.Level != level || !topicSet[strings.ToLower(r.Topic)] {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) GrammarRulesByLevel(_ context.Context, level models.Level, limit int) ([]models.GrammarRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.GrammarRule
	for _, r := range m.grammar {
		if r.Level != level {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) FindVocabulary(_ context.Context, level models.Level, topic string, limit int) ([]models.VocabularyItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.VocabularyItem
	for _, v := range m.vocab {
		if v.Level != level || !strings.EqualFold(v.Topic, topic) {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) VocabularyByLevel(_ context.Context, level models.Level, limit int) ([]models.VocabularyItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.VocabularyItem
	for _, v := range m.vocab {
		if v.Level != level {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) FindPronunciation(_ context.Context, words []string, limit int) ([]models.PronunciationGuide, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[strings.ToLower(w)] = true
	}

	var out []models.PronunciationGuide
	for _, p := range m.pron {
		if !wordSet[strings.ToLower(p.Word)] {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) SeedMaterials(_ context.Context, grammar []models.GrammarRule, vocab []models.VocabularyItem, pron []models.PronunciationGuide) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.grammar) == 0 {
		m.grammar = append(m.grammar, grammar...)
	}
	if len(m.vocab) == 0 {
		m.vocab = append(m.vocab, vocab...)
	}
	if len(m.pron) == 0 {
		m.pron = append(m.pron, pron...)
	}
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close(_ context.Context) error { return nil }
