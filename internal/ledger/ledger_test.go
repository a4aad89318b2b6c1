package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/store"
)

func newTestLedger() (*Ledger, *store.Memory) {
	mem := store.NewMemory()
	return New(mem, nil), mem
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	session, err := l.StartSession(ctx, "u1", models.LevelBeginner, models.TopicTravel, "aura-2-thalia-en")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if session.ID == "" {
		t.Error("expected a generated session id")
	}
	if session.Status != models.StatusActive {
		t.Errorf("expected status %q, got %q", models.StatusActive, session.Status)
	}
	if session.Level != models.LevelBeginner || session.Topic != models.TopicTravel {
		t.Errorf("unexpected level/topic: %s/%s", session.Level, session.Topic)
	}

	got, err := l.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("expected user u1, got %s", got.UserID)
	}
}

func TestRecordTurn_MetricsAreFullMean(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	session, err := l.StartSession(ctx, "u1", models.LevelBeginner, models.TopicDailyLife, "")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	for _, conf := range []float64{0.9, 0.8, 0.7} {
		scores := []models.WordConfidence{{Word: "hello", Confidence: conf}}
		if err := l.RecordTurn(ctx, session.ID, "hello there my friend", scores, nil); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
	}

	got, err := l.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(got.Turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got.Turns))
	}
	if !floatEq(got.Metrics.AvgConfidence, 0.8) {
		t.Errorf("expected metrics avg confidence 0.8, got %v", got.Metrics.AvgConfidence)
	}
	if got.Metrics.TotalWords != 12 {
		t.Errorf("expected 12 total words, got %d", got.Metrics.TotalWords)
	}
}

func TestRecordTurn_NoScoresIsNeutral(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	session, _ := l.StartSession(ctx, "u1", models.LevelBeginner, models.TopicDailyLife, "")
	if err := l.RecordTurn(ctx, session.ID, "no word detail here", nil, nil); err != nil {
		t.Fatalf("RecordTurn failed: %v", err)
	}

	got, _ := l.GetSession(ctx, session.ID)
	if !floatEq(got.Turns[0].AvgConfidence, 1.0) {
		t.Errorf("expected neutral confidence 1.0, got %v", got.Turns[0].AvgConfidence)
	}
	if len(got.Turns[0].LowConfidenceWords) != 0 {
		t.Errorf("expected no low-confidence words, got %v", got.Turns[0].LowConfidenceWords)
	}
}

func TestRecordTurn_LowConfidenceWordsAndFeedback(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	session, _ := l.StartSession(ctx, "u1", models.LevelBeginner, models.TopicDailyLife, "")
	scores := []models.WordConfidence{
		{Word: "thought", Confidence: 0.6},
		{Word: "clearly", Confidence: 0.95},
	}
	feedback := &models.Feedback{
		Text: "Good effort!",
		GrammarCorrections: []models.GrammarCorrection{
			{Original: "I have went", Corrected: "I went"},
		},
	}
	if err := l.RecordTurn(ctx, session.ID, "I thought clearly", scores, feedback); err != nil {
		t.Fatalf("RecordTurn failed: %v", err)
	}

	got, _ := l.GetSession(ctx, session.ID)
	turn := got.Turns[0]
	if len(turn.LowConfidenceWords) != 1 || turn.LowConfidenceWords[0].Word != "thought" {
		t.Errorf("expected 'thought' as the low-confidence word, got %v", turn.LowConfidenceWords)
	}
	if turn.GrammarCorrections != 1 {
		t.Errorf("expected 1 grammar correction, got %d", turn.GrammarCorrections)
	}
	if turn.FeedbackGiven != "Good effort!" {
		t.Errorf("unexpected feedback text: %q", turn.FeedbackGiven)
	}
}

func TestRecordTurn_AfterEndIsNoOp(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	session, _ := l.StartSession(ctx, "u1", models.LevelBeginner, models.TopicDailyLife, "")
	if _, err := l.EndSession(ctx, session.ID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	if err := l.RecordTurn(ctx, session.ID, "too late", nil, nil); err != nil {
		t.Errorf("expected no error for turn after end, got %v", err)
	}

	got, _ := l.GetSession(ctx, session.ID)
	if len(got.Turns) != 0 {
		t.Errorf("expected no turns recorded after end, got %d", len(got.Turns))
	}
}

func TestRecordTurn_UnknownSession(t *testing.T) {
	l, _ := newTestLedger()
	err := l.RecordTurn(context.Background(), "missing", "hello", nil, nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEndSession_Summary(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger()

	// Backdate the start so the duration lands in the minutes range.
	now := time.Now().UTC()
	session := &models.Session{
		ID:        "sess-1",
		UserID:    "u1",
		Level:     models.LevelBeginner,
		Topic:     models.TopicDailyLife,
		Status:    models.StatusActive,
		CreatedAt: now.Add(-90 * time.Second),
		StartedAt: now.Add(-90 * time.Second),
	}
	if err := mem.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	for _, conf := range []float64{0.9, 0.8, 0.7} {
		scores := []models.WordConfidence{{Word: "word", Confidence: conf}}
		if err := l.RecordTurn(ctx, "sess-1", "one two three four five six", scores, nil); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
	}

	summary, err := l.EndSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if summary.TurnsCount != 3 {
		t.Errorf("expected 3 turns, got %d", summary.TurnsCount)
	}
	if !floatEq(summary.AvgConfidence, 80.0) {
		t.Errorf("expected percentage avg confidence 80.0, got %v", summary.AvgConfidence)
	}
	if summary.DurationSeconds < 90 || summary.DurationSeconds > 92 {
		t.Errorf("expected duration near 90s, got %d", summary.DurationSeconds)
	}
	if summary.DurationFormatted != "1m 30s" && summary.DurationFormatted != "1m 31s" {
		t.Errorf("expected minutes-form duration, got %q", summary.DurationFormatted)
	}
	if summary.TotalWordsSpoken != 18 {
		t.Errorf("expected 18 words, got %d", summary.TotalWordsSpoken)
	}

	// Progress record saved for analytics.
	records, err := mem.ListProgress(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListProgress failed: %v", err)
	}
	if len(records) != 1 || records[0].SessionID != "sess-1" {
		t.Errorf("expected one progress record for sess-1, got %+v", records)
	}
}

func TestEndSession_UnknownAndDuplicate(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger()

	if _, err := l.EndSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for unknown session, got %v", err)
	}

	session, _ := l.StartSession(ctx, "u1", models.LevelBeginner, models.TopicDailyLife, "")
	if _, err := l.EndSession(ctx, session.ID); err != nil {
		t.Fatalf("first EndSession failed: %v", err)
	}
	if _, err := l.EndSession(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on duplicate end, got %v", err)
	}
}

func TestImprovementAreas(t *testing.T) {
	tests := []struct {
		name  string
		turns []models.Turn
		want  []string
	}{
		{
			name: "fluent long sentences",
			turns: []models.Turn{
				{WordCount: 8, AvgConfidence: 0.95},
				{WordCount: 10, AvgConfidence: 0.92},
			},
			want: nil,
		},
		{
			name: "low confidence words",
			turns: []models.Turn{
				{WordCount: 8, LowConfidenceWords: []models.WordConfidence{{Word: "thought", Confidence: 0.5}}},
			},
			want: []string{"pronunciation"},
		},
		{
			name: "many grammar corrections",
			turns: []models.Turn{
				{WordCount: 8, GrammarCorrections: 2},
				{WordCount: 8, GrammarCorrections: 1},
			},
			want: []string{"grammar"},
		},
		{
			name: "short responses",
			turns: []models.Turn{
				{WordCount: 2},
				{WordCount: 3},
			},
			want: []string{"sentence_length"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := improvementAreas(tt.turns)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{45, "45 seconds"},
		{60, "1m 0s"},
		{90, "1m 30s"},
		{3599, "59m 59s"},
		{3600, "1h 0m"},
		{5400, "1h 30m"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestConfidenceTrend(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   string
	}{
		{"too little history", []float64{80}, "stable"},
		{"improving", []float64{90, 92, 91, 90, 93, 70, 72, 71, 69, 70}, "improving"},
		{"declining", []float64{60, 62, 61, 59, 60, 85, 88, 86, 84, 85}, "declining"},
		{"flat", []float64{80, 81, 79, 80, 80, 80, 81, 79, 80, 80}, "stable"},
		{"short improving history", []float64{95, 94, 70, 71}, "improving"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidenceTrend(tt.scores); got != tt.want {
				t.Errorf("confidenceTrend(%v) = %q, want %q", tt.scores, got, tt.want)
			}
		})
	}
}

func TestGetUserAnalytics_NoHistory(t *testing.T) {
	l, _ := newTestLedger()

	analytics, err := l.GetUserAnalytics(context.Background(), "nobody", 0)
	if err != nil {
		t.Fatalf("GetUserAnalytics failed: %v", err)
	}
	if analytics.TotalSessions != 0 {
		t.Errorf("expected 0 sessions, got %d", analytics.TotalSessions)
	}
	if analytics.Message == "" {
		t.Error("expected a no-history message")
	}
	if !floatEq(analytics.ImprovementScore, 50.0) {
		t.Errorf("expected neutral improvement score, got %v", analytics.ImprovementScore)
	}
}

func TestGetUserAnalytics_TwoSessionsNeutralScore(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger()

	base := time.Now().UTC()
	for i, conf := range []float64{70.0, 95.0} {
		p := &models.Progress{
			SessionID: "s" + string(rune('1'+i)),
			UserID:    "u1",
			Summary: models.Summary{
				AvgConfidence:   conf,
				DurationSeconds: 120,
			},
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
		if err := mem.SaveProgress(ctx, p); err != nil {
			t.Fatalf("SaveProgress failed: %v", err)
		}
	}

	analytics, err := l.GetUserAnalytics(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("GetUserAnalytics failed: %v", err)
	}
	if analytics.TotalSessions != 2 {
		t.Errorf("expected 2 sessions, got %d", analytics.TotalSessions)
	}
	// With only two records, recent and oldest windows coincide.
	if !floatEq(analytics.ImprovementScore, 50.0) {
		t.Errorf("expected neutral improvement score with 2 records, got %v", analytics.ImprovementScore)
	}
	if analytics.TotalPracticeTime != "4m 0s" {
		t.Errorf("expected total practice time 4m 0s, got %q", analytics.TotalPracticeTime)
	}
}

func TestGetUserAnalytics_Aggregates(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger()

	base := time.Now().UTC()
	// confs is newest first; insert oldest first so ListProgress
	// (newest first) returns them in this order.
	confs := []float64{95, 94, 93, 92, 91, 70, 71, 72, 69, 68}
	for i := len(confs) - 1; i >= 0; i-- {
		p := &models.Progress{
			SessionID: "s" + string(rune('a'+i)),
			UserID:    "u1",
			Summary: models.Summary{
				AvgConfidence:    confs[i],
				DurationSeconds:  60,
				TotalWordsSpoken: 50,
				ImprovementAreas: []string{"pronunciation", "grammar"},
			},
			Timestamp: base.Add(-time.Duration(i) * time.Hour),
		}
		if err := mem.SaveProgress(ctx, p); err != nil {
			t.Fatalf("SaveProgress failed: %v", err)
		}
	}

	analytics, err := l.GetUserAnalytics(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("GetUserAnalytics failed: %v", err)
	}
	if analytics.TotalSessions != 10 {
		t.Errorf("expected 10 sessions, got %d", analytics.TotalSessions)
	}
	if analytics.TotalWordsSpoken != 500 {
		t.Errorf("expected 500 words, got %d", analytics.TotalWordsSpoken)
	}
	if analytics.ConfidenceTrend != "improving" {
		t.Errorf("expected improving trend, got %q", analytics.ConfidenceTrend)
	}
	if analytics.ImprovementScore <= 50 {
		t.Errorf("expected improvement score above neutral, got %v", analytics.ImprovementScore)
	}
	if len(analytics.RecentScores) != 10 {
		t.Errorf("expected 10 recent scores, got %d", len(analytics.RecentScores))
	}
	if len(analytics.CommonImprovementAreas) != 2 {
		t.Errorf("expected 2 common areas, got %v", analytics.CommonImprovementAreas)
	}
}
