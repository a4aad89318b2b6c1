package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"ai-practice-session-service/internal/ledger"
	"ai-practice-session-service/internal/llm"
	"ai-practice-session-service/internal/models"
)

// upgrader accepts any origin: cross-origin access control is the
// reverse proxy's concern, not this service's.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type handlers struct {
	deps Dependencies
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type createSessionRequest struct {
	UserID  string `json:"userId"`
	Level   string `json:"level"`
	Topic   string `json:"topic"`
	VoiceID string `json:"voiceId"`
}

type createSessionResponse struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	Level     string    `json:"level"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status"`
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	level := models.Level(req.Level)
	if !level.Valid() {
		writeError(w, http.StatusBadRequest, "invalid level")
		return
	}
	topic := models.Topic(req.Topic)
	if !topic.Valid() {
		writeError(w, http.StatusBadRequest, "invalid topic")
		return
	}

	session, err := h.deps.Ledger.StartSession(r.Context(), req.UserID, level, topic, req.VoiceID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID,
		UserID:    session.UserID,
		Level:     string(session.Level),
		Topic:     string(session.Topic),
		CreatedAt: session.CreatedAt,
		Status:    string(session.Status),
	})
}

type sessionProgressResponse struct {
	SessionID  string                `json:"sessionId"`
	Status     string                `json:"status"`
	Level      string                `json:"level"`
	Topic      string                `json:"topic"`
	Metrics    models.SessionMetrics `json:"metrics"`
	TurnsCount int                   `json:"turnsCount"`
}

func (h *handlers) sessionProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.deps.Ledger.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ledger.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to get session progress")
		writeError(w, http.StatusInternalServerError, "failed to get session progress")
		return
	}

	writeJSON(w, http.StatusOK, sessionProgressResponse{
		SessionID:  session.ID,
		Status:     string(session.Status),
		Level:      string(session.Level),
		Topic:      string(session.Topic),
		Metrics:    session.Metrics,
		TurnsCount: len(session.Turns),
	})
}

func (h *handlers) endSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := h.deps.Ledger.EndSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ledger.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to end session")
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) userAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := queryInt(r, "limit", 0)

	analytics, err := h.deps.Ledger.GetUserAnalytics(r.Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to get user analytics")
		writeError(w, http.StatusInternalServerError, "failed to get user analytics")
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

func (h *handlers) grammarMaterials(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	rules := make([]models.GrammarRule, 0)
	for _, level := range levelsParam(r) {
		found, err := h.deps.Store.GrammarRulesByLevel(r.Context(), level, limit)
		if err != nil {
			log.Error().Err(err).Msg("failed to get grammar rules")
			writeError(w, http.StatusInternalServerError, "failed to get grammar rules")
			return
		}
		rules = append(rules, found...)
	}

	writeJSON(w, http.StatusOK, map[string]any{"grammarRules": rules})
}

func (h *handlers) vocabularyMaterials(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	vocab := make([]models.VocabularyItem, 0)
	for _, level := range levelsParam(r) {
		found, err := h.deps.Store.VocabularyByLevel(r.Context(), level, limit)
		if err != nil {
			log.Error().Err(err).Msg("failed to get vocabulary")
			writeError(w, http.StatusInternalServerError, "failed to get vocabulary")
			return
		}
		vocab = append(vocab, found...)
	}

	writeJSON(w, http.StatusOK, map[string]any{"vocabulary": vocab})
}

type textPracticeRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId,omitempty"`
	Level     string `json:"level,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

type textPracticeResponse struct {
	UserInput          string                     `json:"userInput"`
	Feedback           string                     `json:"feedback"`
	GrammarCorrections []models.GrammarCorrection `json:"grammarCorrections"`
	FollowUpQuestion   string                     `json:"followUpQuestion,omitempty"`
}

// textPractice runs one practice turn without audio: retrieval context
// plus generated feedback, optionally recorded against a session.
func (h *handlers) textPractice(w http.ResponseWriter, r *http.Request) {
	var req textPracticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	level := models.Level(req.Level)
	if !level.Valid() {
		level = models.LevelIntermediate
	}
	topic := models.Topic(req.Topic)
	if !topic.Valid() {
		topic = models.TopicFreeTalk
	}

	context := h.deps.Retrieval.Retrieve(r.Context(), req.Text, level, 0)
	feedback := h.deps.LLM.GenerateFeedback(r.Context(), req.Text, nil, level, string(topic), context, nil)

	if req.SessionID != "" {
		if err := h.deps.Ledger.RecordTurn(r.Context(), req.SessionID, req.Text, nil, feedback); err != nil {
			log.Warn().Err(err).Str("sessionId", req.SessionID).Msg("failed to record text practice turn")
		}
	}

	writeJSON(w, http.StatusOK, textPracticeResponse{
		UserInput:          req.Text,
		Feedback:           feedback.Text,
		GrammarCorrections: feedback.GrammarCorrections,
		FollowUpQuestion:   feedback.FollowUpQuestion,
	})
}

type thinkRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Temperature float32                        `json:"temperature"`
	MaxTokens   int                            `json:"max_tokens"`
}

// think is the OpenAI-compatible completion endpoint the upstream
// voice agent calls for its generation step. The learner level and
// topic ride inside the system prompt; retrieval context is injected
// there before the request is forwarded to the LLM.
func (h *handlers) think(w http.ResponseWriter, r *http.Request) {
	var req thinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	level := models.LevelIntermediate
	userInput := ""
	systemIdx := -1
	for i, msg := range req.Messages {
		switch msg.Role {
		case openai.ChatMessageRoleSystem:
			systemIdx = i
			level, _ = llm.LevelTopicFromPrompt(msg.Content)
		case openai.ChatMessageRoleUser:
			userInput = msg.Content
		}
	}

	if userInput != "" && systemIdx >= 0 {
		if context := h.deps.Retrieval.Retrieve(r.Context(), userInput, level, 0); context != "" {
			req.Messages[systemIdx].Content += "\n\nRELEVANT LEARNING MATERIALS:\n" + context
		}
	}

	resp, err := h.deps.LLM.Complete(r.Context(), req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		log.Error().Err(err).Msg("think completion failed")
		writeError(w, http.StatusInternalServerError, "completion failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// voiceWebSocket upgrades the connection and hands it to the bridge.
func (h *handlers) voiceWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.deps.Bridge.Handle(r.Context(), conn)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// levelsParam resolves the optional level filter; absent or invalid
// means all levels.
func levelsParam(r *http.Request) []models.Level {
	if level := models.Level(r.URL.Query().Get("level")); level.Valid() {
		return []models.Level{level}
	}
	return []models.Level{models.LevelBeginner, models.LevelIntermediate, models.LevelAdvanced}
}
