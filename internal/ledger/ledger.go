// Package ledger accumulates practice sessions, turns and per-turn
// metrics, and derives summaries and user analytics from them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ai-practice-session-service/internal/events"
	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/observability/metrics"
	"ai-practice-session-service/internal/store"
)

// ErrSessionNotFound is returned when a session id is unknown or the
// session has already been finalized. Callers should treat it as a
// benign empty result: end signals can race and arrive twice.
var ErrSessionNotFound = errors.New("ledger: session not found")

// lowConfidenceThreshold marks word-level scores worth a pronunciation tip.
const lowConfidenceThreshold = 0.8

// defaultAnalyticsLimit bounds how much history feeds a user's analytics.
const defaultAnalyticsLimit = 100

// Ledger tracks sessions and turns and computes analytics.
type Ledger struct {
	store     store.Store
	publisher *events.Publisher
	metrics   *metrics.Metrics
}

// New creates a Ledger on top of a store. The publisher may be nil, in
// which case no events are emitted.
func New(s store.Store, publisher *events.Publisher) *Ledger {
	return &Ledger{
		store:     s,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
	}
}

// StartSession creates a new active session and returns it.
func (l *Ledger) StartSession(ctx context.Context, userID string, level models.Level, topic models.Topic, voiceID string) (*models.Session, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Level:     level,
		Topic:     topic,
		VoiceID:   voiceID,
		Status:    models.StatusActive,
		CreatedAt: now,
		StartedAt: now,
		Turns:     []models.Turn{},
	}

	if err := l.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	l.metrics.RecordSessionStarted()
	log.Info().
		Str("sessionId", session.ID).
		Str("userId", userID).
		Str("level", string(level)).
		Str("topic", string(topic)).
		Msg("Session started")

	return session, nil
}

// GetSession returns a session by id.
func (l *Ledger) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := l.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// RecordTurn appends a turn to a session and recomputes the running
// metrics as the full mean over all turns. Recording against a session
// that has already completed is a logged no-op, not an error.
func (l *Ledger) RecordTurn(ctx context.Context, sessionID, userText string, scores []models.WordConfidence, feedback *models.Feedback) error {
	session, err := l.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	if session.Status != models.StatusActive {
		log.Warn().
			Str("sessionId", sessionID).
			Msg("Turn arrived after session end, ignoring")
		l.metrics.RecordTurnAfterEnd()
		return nil
	}

	turn := buildTurn(userText, scores, feedback)
	updated := recomputeMetrics(append(session.Turns, turn))

	err = l.store.AppendTurn(ctx, sessionID, turn, updated)
	if errors.Is(err, store.ErrSessionCompleted) {
		// Lost the race with EndSession.
		log.Warn().
			Str("sessionId", sessionID).
			Msg("Turn arrived after session end, ignoring")
		l.metrics.RecordTurnAfterEnd()
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}

	l.metrics.RecordTurn(turn.AvgConfidence)
	l.publishTurn(ctx, session, turn)

	return nil
}

// EndSession finalizes a session and produces its Summary. Unknown or
// already-completed sessions yield ErrSessionNotFound so racing
// duplicate end signals stay benign.
func (l *Ledger) EndSession(ctx context.Context, sessionID string) (*models.Summary, error) {
	endedAt := time.Now().UTC()
	session, err := l.store.CompleteSession(ctx, sessionID, endedAt)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrSessionCompleted) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}

	summary := buildSummary(session)

	progress := &models.Progress{
		SessionID: sessionID,
		UserID:    session.UserID,
		Summary:   *summary,
		Timestamp: endedAt,
	}
	if err := l.store.SaveProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}

	l.metrics.RecordSessionCompleted()
	l.publishSessionCompleted(ctx, session, summary)

	log.Info().
		Str("sessionId", sessionID).
		Int("turns", summary.TurnsCount).
		Str("duration", summary.DurationFormatted).
		Float64("avgConfidence", summary.AvgConfidence).
		Msg("Session completed")

	return summary, nil
}

// GetUserAnalytics aggregates a user's progress history into trend and
// improvement signals. With no history it returns a defined empty
// result, not an error.
func (l *Ledger) GetUserAnalytics(ctx context.Context, userID string, limit int) (*models.Analytics, error) {
	if limit <= 0 {
		limit = defaultAnalyticsLimit
	}
	progress, err := l.store.ListProgress(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("user analytics: %w", err)
	}

	if len(progress) == 0 {
		return &models.Analytics{
			UserID:           userID,
			TotalSessions:    0,
			ImprovementScore: 50.0,
			Message:          "No practice sessions found. Start practicing!",
		}, nil
	}

	var totalSeconds, totalWords int
	scores := make([]float64, 0, len(progress))
	areaCounts := make(map[string]int)
	for _, p := range progress {
		totalSeconds += p.Summary.DurationSeconds
		totalWords += p.Summary.TotalWordsSpoken
		scores = append(scores, p.Summary.AvgConfidence)
		for _, area := range p.Summary.ImprovementAreas {
			areaCounts[area]++
		}
	}

	recent := scores
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return &models.Analytics{
		UserID:                 userID,
		TotalSessions:          len(progress),
		TotalPracticeTime:      FormatDuration(totalSeconds),
		TotalWordsSpoken:       totalWords,
		AvgConfidence:          round1(mean(scores)),
		ConfidenceTrend:        confidenceTrend(scores),
		RecentScores:           recent,
		CommonImprovementAreas: topAreas(areaCounts, 5),
		ImprovementScore:       improvementScore(scores),
	}, nil
}

func (l *Ledger) publishTurn(ctx context.Context, session *models.Session, turn models.Turn) {
	if l.publisher == nil {
		return
	}
	event := events.TurnEvent{
		EventType: "practice.turn.final",
		SessionID: session.ID,
		UserID:    session.UserID,
		Turn:      turn,
	}
	// Best effort: a broker outage must not fail the turn.
	if err := l.publisher.PublishTurn(ctx, session.ID, event); err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("Failed to publish turn event")
	}
}

func (l *Ledger) publishSessionCompleted(ctx context.Context, session *models.Session, summary *models.Summary) {
	if l.publisher == nil {
		return
	}
	event := events.SessionCompletedEvent{
		EventType: "practice.session.completed",
		SessionID: session.ID,
		UserID:    session.UserID,
		Summary:   summary,
	}
	if err := l.publisher.PublishSessionCompleted(ctx, session.ID, event); err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("Failed to publish session event")
	}
}

// buildTurn assembles an immutable Turn from the utterance, its word
// scores, and the feedback attached to it.
func buildTurn(userText string, scores []models.WordConfidence, feedback *models.Feedback) models.Turn {
	turn := models.Turn{
		UserText:      userText,
		WordCount:     len(strings.Fields(userText)),
		AvgConfidence: AvgConfidence(scores),
		Timestamp:     time.Now().UTC(),
	}
	for _, s := range scores {
		if s.Confidence < lowConfidenceThreshold {
			turn.LowConfidenceWords = append(turn.LowConfidenceWords, s)
		}
	}
	if feedback != nil {
		turn.GrammarCorrections = len(feedback.GrammarCorrections)
		turn.FeedbackGiven = feedback.Text
	}
	return turn
}

// AvgConfidence computes the mean word confidence as a 0-1 fraction.
// Transcripts without word-level detail get a neutral 1.0.
func AvgConfidence(scores []models.WordConfidence) float64 {
	if len(scores) == 0 {
		return 1.0
	}
	var sum float64
	for _, s := range scores {
		sum += s.Confidence
	}
	return sum / float64(len(scores))
}

// recomputeMetrics derives the running aggregates from scratch over the
// full turn sequence.
func recomputeMetrics(turns []models.Turn) models.SessionMetrics {
	var m models.SessionMetrics
	if len(turns) == 0 {
		return m
	}
	var confSum float64
	for _, t := range turns {
		m.TotalWords += t.WordCount
		m.GrammarMistakes += t.GrammarCorrections
		confSum += t.AvgConfidence
	}
	m.AvgConfidence = confSum / float64(len(turns))
	return m
}

func buildSummary(session *models.Session) *models.Summary {
	duration := session.EndedAt.Sub(session.StartedAt)
	seconds := int(duration.Seconds())
	if seconds < 0 {
		seconds = 0
	}

	// Percentage-scaled for display; a silent session reads as full
	// confidence rather than zero.
	avg := 100.0
	if len(session.Turns) > 0 {
		var sum float64
		for _, t := range session.Turns {
			sum += t.AvgConfidence
		}
		avg = sum / float64(len(session.Turns)) * 100
	}

	return &models.Summary{
		SessionID:         session.ID,
		DurationSeconds:   seconds,
		DurationFormatted: FormatDuration(seconds),
		TurnsCount:        len(session.Turns),
		TotalWordsSpoken:  session.Metrics.TotalWords,
		AvgConfidence:     round1(avg),
		GrammarMistakes:   session.Metrics.GrammarMistakes,
		ImprovementAreas:  improvementAreas(session.Turns),
	}
}

// FormatDuration renders a second count in human-readable form.
func FormatDuration(seconds int) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}

// improvementAreas tags what the learner should work on next:
// pronunciation when any low-confidence words exist, grammar when
// corrections pile up, sentence_length when responses stay short.
func improvementAreas(turns []models.Turn) []string {
	var areas []string

	lowConf := false
	totalGrammar := 0
	totalWords := 0
	for _, t := range turns {
		if len(t.LowConfidenceWords) > 0 {
			lowConf = true
		}
		totalGrammar += t.GrammarCorrections
		totalWords += t.WordCount
	}

	if lowConf {
		areas = append(areas, "pronunciation")
	}
	if totalGrammar > 2 {
		areas = append(areas, "grammar")
	}
	n := len(turns)
	if n == 0 {
		n = 1
	}
	if float64(totalWords)/float64(n) < 5 {
		areas = append(areas, "sentence_length")
	}

	return areas
}

// confidenceTrend compares the five most recent scores against the next
// five (or the older half when history is short). Scores are ordered
// newest first.
func confidenceTrend(scores []float64) string {
	if len(scores) < 2 {
		return "stable"
	}

	recent := scores
	if len(recent) > 5 {
		recent = recent[:5]
	}

	var older []float64
	if len(scores) > 5 {
		end := len(scores)
		if end > 10 {
			end = 10
		}
		older = scores[5:end]
	} else {
		older = scores[len(scores)/2:]
	}
	if len(older) == 0 {
		return "stable"
	}

	diff := mean(recent) - mean(older)
	switch {
	case diff > 5:
		return "improving"
	case diff < -5:
		return "declining"
	default:
		return "stable"
	}
}

// improvementScore scales recent-vs-oldest confidence into a 0-100
// score centered on a neutral 50. Scores are ordered newest first.
func improvementScore(scores []float64) float64 {
	if len(scores) < 2 {
		return 50.0
	}

	recent := scores
	if len(recent) > 5 {
		recent = recent[:5]
	}
	oldest := scores
	if len(oldest) > 5 {
		oldest = oldest[len(oldest)-5:]
	}

	score := 50 + (mean(recent) - mean(oldest))
	return math.Max(0, math.Min(100, round1(score)))
}

func topAreas(counts map[string]int, limit int) []string {
	type areaCount struct {
		area  string
		count int
	}
	items := make([]areaCount, 0, len(counts))
	for area, count := range counts {
		items = append(items, areaCount{area, count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].area < items[j].area
	})
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.area)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
