package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sashabaranov/go-openai"

	"ai-practice-session-service/internal/agent"
	"ai-practice-session-service/internal/agent/mock"
	"ai-practice-session-service/internal/bridge"
	"ai-practice-session-service/internal/ledger"
	"ai-practice-session-service/internal/llm"
	"ai-practice-session-service/internal/materials"
	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/retrieval"
	"ai-practice-session-service/internal/store"
)

type fakeChatClient struct {
	mu      sync.Mutex
	content string
	lastReq openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	return openai.ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: f.content}},
		},
	}, nil
}

func (f *fakeChatClient) captured() openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory, *fakeChatClient) {
	t.Helper()

	mem := store.NewMemory()
	if err := materials.Seed(context.Background(), mem); err != nil {
		t.Fatalf("seed materials: %v", err)
	}

	chat := &fakeChatClient{content: "Great effort! We usually say 'I went to school'."}
	led := ledger.New(mem, nil)

	deps := Dependencies{
		Ledger:    led,
		Store:     mem,
		Retrieval: retrieval.New(mem, nil, retrieval.Config{}),
		LLM:       llm.New(chat, llm.Config{Model: "test-model"}),
		Bridge:    bridge.New(led, func() agent.Adapter { return mock.New() }),
	}

	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv, mem, chat
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{
		"userId": "user-1",
		"level":  "beginner",
		"topic":  "daily_life",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var got createSessionResponse
	decodeBody(t, resp, &got)
	if got.SessionID == "" {
		t.Error("expected a session id")
	}
	if got.Status != "active" {
		t.Errorf("expected active status, got %q", got.Status)
	}
	if got.Level != "beginner" || got.Topic != "daily_life" {
		t.Errorf("unexpected session response: %+v", got)
	}
}

func TestCreateSession_InvalidLevel(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/sessions", map[string]string{
		"level": "expert",
		"topic": "daily_life",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSessionProgressAndEnd(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	led := ledger.New(mem, nil)

	session, err := led.StartSession(context.Background(), "user-1", models.LevelIntermediate, models.TopicTravel, "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := led.RecordTurn(context.Background(), session.ID, "I like to travel", nil, nil); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	resp, err := http.Get(srv.URL + "/v1/sessions/" + session.ID + "/progress")
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var progress sessionProgressResponse
	decodeBody(t, resp, &progress)
	if progress.TurnsCount != 1 {
		t.Errorf("expected 1 turn, got %d", progress.TurnsCount)
	}
	if progress.Status != "active" {
		t.Errorf("expected active, got %q", progress.Status)
	}

	resp = postJSON(t, srv.URL+"/v1/sessions/"+session.ID+"/end", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on end, got %d", resp.StatusCode)
	}
	var summary models.Summary
	decodeBody(t, resp, &summary)
	if summary.SessionID != session.ID || summary.TurnsCount != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	// Ending again is a not-found, per the benign duplicate-end rule.
	resp = postJSON(t, srv.URL+"/v1/sessions/"+session.ID+"/end", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on duplicate end, got %d", resp.StatusCode)
	}
}

func TestSessionProgress_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/sessions/nope/progress")
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUserAnalytics_NoHistory(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/users/newbie/analytics")
	if err != nil {
		t.Fatalf("GET analytics: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var analytics models.Analytics
	decodeBody(t, resp, &analytics)
	if analytics.TotalSessions != 0 {
		t.Errorf("expected 0 sessions, got %d", analytics.TotalSessions)
	}
	if analytics.Message == "" {
		t.Error("expected a no-history message")
	}
	if analytics.ImprovementScore != 50.0 {
		t.Errorf("expected neutral improvement score, got %v", analytics.ImprovementScore)
	}
}

func TestGrammarMaterials_LevelFilter(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/materials/grammar?level=beginner")
	if err != nil {
		t.Fatalf("GET materials: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		GrammarRules []models.GrammarRule `json:"grammarRules"`
	}
	decodeBody(t, resp, &body)
	if len(body.GrammarRules) == 0 {
		t.Fatal("expected seeded beginner grammar rules")
	}
	for _, rule := range body.GrammarRules {
		if rule.Level != models.LevelBeginner {
			t.Errorf("unexpected level in filtered result: %+v", rule)
		}
	}
}

func TestVocabularyMaterials_AllLevels(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/materials/vocabulary")
	if err != nil {
		t.Fatalf("GET materials: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Vocabulary []models.VocabularyItem `json:"vocabulary"`
	}
	decodeBody(t, resp, &body)
	levels := map[models.Level]bool{}
	for _, item := range body.Vocabulary {
		levels[item.Level] = true
	}
	if len(levels) < 2 {
		t.Errorf("expected vocabulary across levels, got %v", levels)
	}
}

func TestTextPractice(t *testing.T) {
	srv, mem, chat := newTestServer(t)
	led := ledger.New(mem, nil)

	session, err := led.StartSession(context.Background(), "user-1", models.LevelBeginner, models.TopicDailyLife, "")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	resp := postJSON(t, srv.URL+"/v1/practice/text", map[string]string{
		"text":      "I have went to school yesterday",
		"level":     "beginner",
		"sessionId": session.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got textPracticeResponse
	decodeBody(t, resp, &got)
	if got.UserInput != "I have went to school yesterday" {
		t.Errorf("unexpected user input echo: %q", got.UserInput)
	}
	if got.Feedback == "" {
		t.Error("expected feedback text")
	}

	// The retrieval blob rides into the LLM system message.
	sysMsg := chat.captured().Messages[0].Content
	if !strings.Contains(sysMsg, "GRAMMAR TIPS:") {
		t.Errorf("expected retrieval context in system message, got %q", sysMsg)
	}

	// The turn lands on the session.
	updated, err := mem.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(updated.Turns) != 1 {
		t.Errorf("expected 1 recorded turn, got %d", len(updated.Turns))
	}
}

func TestThink(t *testing.T) {
	srv, _, chat := newTestServer(t)

	system := llm.BuildSystemPrompt(models.LevelBeginner, "daily_life")
	resp := postJSON(t, srv.URL+"/v1/llm/think", map[string]any{
		"model": "test-model",
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": "I have went to school yesterday"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got openai.ChatCompletionResponse
	decodeBody(t, resp, &got)
	if got.Object != "chat.completion" || len(got.Choices) != 1 {
		t.Errorf("unexpected completion response: %+v", got)
	}

	sysMsg := chat.captured().Messages[0].Content
	if !strings.Contains(sysMsg, "RELEVANT LEARNING MATERIALS:") {
		t.Errorf("expected retrieval context injected into system prompt, got %q", sysMsg)
	}
}

func TestVoiceWebSocket_InitAndStop(t *testing.T) {
	srv, mem, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/voice"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{
		"type": "init", "level": "beginner", "topic": "daily_life", "user_id": "user-ws",
	}); err != nil {
		t.Fatalf("write init: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var started struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := conn.ReadJSON(&started); err != nil {
		t.Fatalf("read session_started: %v", err)
	}
	if started.Type != "session_started" || started.SessionID == "" {
		t.Fatalf("unexpected first message: %+v", started)
	}

	if err := conn.WriteJSON(map[string]string{"type": "stop"}); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	// The session is finalized once the bridge tears down.
	deadline := time.Now().Add(2 * time.Second)
	for {
		session, err := mem.GetSession(context.Background(), started.SessionID)
		if err == nil && session.Status == models.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session not finalized: %+v err=%v", session, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
