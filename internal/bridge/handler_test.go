package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ai-practice-session-service/internal/agent"
	"ai-practice-session-service/internal/agent/mock"
	"ai-practice-session-service/internal/ledger"
	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/store"
)

// fakeClientConn simulates the downstream WebSocket. Inbound frames
// are queued on a channel; outbound messages are captured for asserts.
type fakeClientConn struct {
	frames chan clientFrame
	done   chan struct{}

	mu      sync.Mutex
	written []any
	closed  bool
}

type clientFrame struct {
	messageType int
	data        []byte
}

func newFakeClientConn() *fakeClientConn {
	return &fakeClientConn{
		frames: make(chan clientFrame, 32),
		done:   make(chan struct{}),
	}
}

func (c *fakeClientConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return 0, nil, errors.New("client went away")
		}
		return f.messageType, f.data, nil
	case <-c.done:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeClientConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.written = append(c.written, v)
	return nil
}

func (c *fakeClientConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeClientConn) sendText(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	c.frames <- clientFrame{messageType: websocket.TextMessage, data: data}
}

func (c *fakeClientConn) sendBinary(data []byte) {
	c.frames <- clientFrame{messageType: websocket.BinaryMessage, data: data}
}

func (c *fakeClientConn) snapshot() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.written))
	copy(out, c.written)
	return out
}

// waitFor polls until the predicate over written messages holds.
func (c *fakeClientConn) waitFor(t *testing.T, what string, pred func([]any) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pred(c.snapshot()) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; got %#v", what, c.snapshot())
}

// fakeAdapter records forwarded audio and can fail on demand.
type fakeAdapter struct {
	mu       sync.Mutex
	startErr error
	sendErr  error
	audio    [][]byte
	closed   bool
}

func (a *fakeAdapter) Start(_ context.Context, _ agent.SessionSettings, _ agent.Callback) error {
	return a.startErr
}

func (a *fakeAdapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return a.sendErr
	}
	buf := make([]byte, len(audio))
	copy(buf, audio)
	a.audio = append(a.audio, buf)
	return nil
}

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *fakeAdapter) received() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([][]byte, len(a.audio))
	copy(out, a.audio)
	return out
}

func newTestBridge(agents AdapterFactory) (*Bridge, *store.Memory) {
	mem := store.NewMemory()
	return New(ledger.New(mem, nil), agents), mem
}

func initMessage() map[string]any {
	return map[string]any{
		"type":    "init",
		"level":   "beginner",
		"topic":   "daily_life",
		"user_id": "user-1",
	}
}

func runHandle(b *Bridge, client ClientConn) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Handle(context.Background(), client)
	}()
	return done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Handle did not return")
	}
}

func TestHandle_FullExchange(t *testing.T) {
	exchanges := []mock.SimulatedExchange{
		{UserText: "I have went to the park", AgentText: "Nice! We say 'I went to the park'."},
	}
	b, mem := newTestBridge(func() agent.Adapter { return mock.NewScripted(exchanges) })
	client := newFakeClientConn()
	done := runHandle(b, client)

	client.sendText(t, initMessage())
	client.waitFor(t, "session_started", func(msgs []any) bool {
		return len(msgs) > 0
	})

	first, ok := client.snapshot()[0].(sessionStartedMessage)
	if !ok {
		t.Fatalf("first message should be session_started, got %#v", client.snapshot()[0])
	}
	if first.Level != "beginner" || first.Topic != "daily_life" {
		t.Errorf("unexpected session_started: %#v", first)
	}
	if first.SessionID == "" {
		t.Error("session_started carries no session id")
	}

	// The scripted adapter plays one exchange after five audio frames.
	for i := 0; i < 5; i++ {
		client.sendBinary(make([]byte, 320))
	}

	var gotTranscript, gotFeedback, gotAudio bool
	client.waitFor(t, "transcript, feedback and audio", func(msgs []any) bool {
		gotTranscript, gotFeedback, gotAudio = false, false, false
		for _, m := range msgs {
			switch v := m.(type) {
			case finalTranscriptMessage:
				if v.Text == exchanges[0].UserText && v.IsFinal {
					gotTranscript = true
				}
			case feedbackMessage:
				if v.Text == exchanges[0].AgentText {
					gotFeedback = true
				}
			case audioMessage:
				if v.Format == "linear16" && v.SampleRate == 24000 {
					gotAudio = true
				}
			}
		}
		return gotTranscript && gotFeedback && gotAudio
	})

	client.sendText(t, map[string]any{"type": "stop"})
	waitDone(t, done)

	// The turn was recorded and the session finalized.
	session, err := mem.GetSession(context.Background(), first.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Status != models.StatusCompleted {
		t.Errorf("expected completed session, got %v", session.Status)
	}
	if len(session.Turns) != 1 {
		t.Fatalf("expected 1 recorded turn, got %d", len(session.Turns))
	}
	if session.Turns[0].UserText != exchanges[0].UserText {
		t.Errorf("unexpected turn text: %q", session.Turns[0].UserText)
	}
}

func TestHandle_FirstMessageNotInit(t *testing.T) {
	adapter := &fakeAdapter{}
	b, mem := newTestBridge(func() agent.Adapter { return adapter })
	client := newFakeClientConn()
	done := runHandle(b, client)

	client.sendText(t, map[string]any{"type": "audio", "audio": "aGVsbG8="})
	waitDone(t, done)

	msgs := client.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %#v", msgs)
	}
	errMsg, ok := msgs[0].(errorMessage)
	if !ok || errMsg.Message != "Expected init message" {
		t.Errorf("expected init protocol error, got %#v", msgs[0])
	}
	if len(adapter.received()) != 0 {
		t.Error("no audio should reach the adapter before init")
	}
	if sessions, _ := mem.ListProgress(context.Background(), "user-1", 10); len(sessions) != 0 {
		t.Error("no session should have been created")
	}
}

func TestHandle_Base64AudioEnvelope(t *testing.T) {
	adapter := &fakeAdapter{}
	b, _ := newTestBridge(func() agent.Adapter { return adapter })
	client := newFakeClientConn()
	done := runHandle(b, client)

	client.sendText(t, initMessage())
	client.waitFor(t, "session_started", func(msgs []any) bool { return len(msgs) > 0 })

	client.sendText(t, map[string]any{
		"type":  "audio",
		"audio": base64.StdEncoding.EncodeToString([]byte("hello")),
	})
	client.sendText(t, map[string]any{"type": "stop"})
	waitDone(t, done)

	got := adapter.received()
	if len(got) != 1 || string(got[0]) != "hello" {
		t.Errorf("expected decoded audio [hello], got %q", got)
	}
	if !adapter.closed {
		t.Error("adapter should be closed after stop")
	}
}

func TestHandle_ClientDisconnectFinalizesSession(t *testing.T) {
	adapter := &fakeAdapter{}
	b, mem := newTestBridge(func() agent.Adapter { return adapter })
	client := newFakeClientConn()
	done := runHandle(b, client)

	client.sendText(t, initMessage())
	client.waitFor(t, "session_started", func(msgs []any) bool { return len(msgs) > 0 })
	sessionID := client.snapshot()[0].(sessionStartedMessage).SessionID

	close(client.frames)
	waitDone(t, done)

	session, err := mem.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Status != models.StatusCompleted {
		t.Errorf("expected completed session after disconnect, got %v", session.Status)
	}
	if !adapter.closed {
		t.Error("adapter should be closed after disconnect")
	}
}

func TestHandle_UpstreamStartFailure(t *testing.T) {
	adapter := &fakeAdapter{startErr: errors.New("dial refused")}
	b, mem := newTestBridge(func() agent.Adapter { return adapter })
	client := newFakeClientConn()
	done := runHandle(b, client)

	client.sendText(t, initMessage())
	waitDone(t, done)

	var sessionID string
	var gotErr bool
	for _, m := range client.snapshot() {
		switch v := m.(type) {
		case sessionStartedMessage:
			sessionID = v.SessionID
		case errorMessage:
			if v.Message == "Failed to connect to voice agent" {
				gotErr = true
			}
		}
	}
	if !gotErr {
		t.Errorf("expected connect failure notification, got %#v", client.snapshot())
	}
	if sessionID == "" {
		t.Fatal("session_started should precede the failure")
	}
	// The already-created session is still finalized.
	session, err := mem.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Status != models.StatusCompleted {
		t.Errorf("expected completed session, got %v", session.Status)
	}
}

func TestHandle_UpstreamSendFailureTearsDown(t *testing.T) {
	adapter := &fakeAdapter{sendErr: errors.New("broken pipe")}
	b, _ := newTestBridge(func() agent.Adapter { return adapter })
	client := newFakeClientConn()
	done := runHandle(b, client)

	client.sendText(t, initMessage())
	client.waitFor(t, "session_started", func(msgs []any) bool { return len(msgs) > 0 })

	client.sendBinary([]byte{1, 2, 3})
	waitDone(t, done)

	var gotErr bool
	for _, m := range client.snapshot() {
		if v, ok := m.(errorMessage); ok && v.Message == "Voice agent connection lost" {
			gotErr = true
		}
	}
	if !gotErr {
		t.Errorf("expected connection-lost notification, got %#v", client.snapshot())
	}
	if !adapter.closed {
		t.Error("adapter should be closed after send failure")
	}
}

func TestHandle_MalformedFramesAreDropped(t *testing.T) {
	adapter := &fakeAdapter{}
	b, _ := newTestBridge(func() agent.Adapter { return adapter })
	client := newFakeClientConn()
	done := runHandle(b, client)

	client.sendText(t, initMessage())
	client.waitFor(t, "session_started", func(msgs []any) bool { return len(msgs) > 0 })

	client.frames <- clientFrame{messageType: websocket.TextMessage, data: []byte("{not json")}
	client.sendText(t, map[string]any{"type": "audio", "audio": "!!! not base64 !!!"})
	client.sendBinary([]byte("ok"))
	client.sendText(t, map[string]any{"type": "stop"})
	waitDone(t, done)

	got := adapter.received()
	if len(got) != 1 || string(got[0]) != "ok" {
		t.Errorf("only the valid frame should be forwarded, got %q", got)
	}
}
