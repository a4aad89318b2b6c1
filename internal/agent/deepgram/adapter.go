// Package deepgram provides a Deepgram Voice Agent adapter speaking the
// agent's duplex WebSocket protocol.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ai-practice-session-service/internal/agent"
	"ai-practice-session-service/internal/observability/metrics"
)

// Config holds the upstream connection parameters.
type Config struct {
	URL                string
	APIKey             string
	Language           string
	ListenModel        string
	SpeakVoice         string
	InputSampleRateHz  int
	OutputSampleRateHz int
	ThinkModel         string
	ThinkTemperature   float64
	ThinkURL           string
}

// inboundEvent is the discriminated upstream control frame.
type inboundEvent struct {
	Type        string `json:"type"`
	Role        string `json:"role,omitempty"`
	Content     string `json:"content,omitempty"`
	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`
}

// Adapter implements agent.Adapter against the Deepgram Voice Agent.
type Adapter struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	cb     agent.Callback
	closed bool

	// done is closed when the receive loop exits; Close waits on it so
	// the socket is never released with a read still in flight.
	done chan struct{}

	metrics *metrics.Metrics
}

// New creates a Deepgram Voice Agent adapter.
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:     cfg,
		done:    make(chan struct{}),
		metrics: metrics.DefaultMetrics,
	}
}

// Start dials the agent, sends the Settings envelope and launches the
// receive loop.
func (a *Adapter) Start(ctx context.Context, settings agent.SessionSettings, cb agent.Callback) error {
	header := http.Header{}
	if a.cfg.APIKey != "" {
		header.Set("Authorization", "Token "+a.cfg.APIKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, a.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial voice agent: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial voice agent: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.cb = cb
	a.mu.Unlock()

	if err := conn.WriteJSON(a.cfg.buildSettings(settings)); err != nil {
		conn.Close()
		a.mu.Lock()
		a.conn = nil
		a.mu.Unlock()
		return fmt.Errorf("send agent settings: %w", err)
	}
	log.Info().
		Str("level", string(settings.Level)).
		Str("topic", string(settings.Topic)).
		Msg("Voice agent settings sent")

	go a.receiveLoop()
	return nil
}

// SendAudio forwards caller audio to the agent as a binary frame.
func (a *Adapter) SendAudio(_ context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.conn == nil {
		return fmt.Errorf("voice agent connection closed")
	}
	return a.conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Close shuts the upstream connection and waits for the receive loop to
// drain before returning.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Best effort close handshake, then tear the socket down to unblock
	// the pending read.
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := conn.Close()

	<-a.done
	return err
}

func (a *Adapter) receiveLoop() {
	defer close(a.done)

	for {
		msgType, data, err := a.conn.ReadMessage()
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			cb := a.cb
			a.mu.Unlock()
			if !closed && cb != nil {
				cb.OnError(fmt.Errorf("voice agent read: %w", err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			a.deliverAudio(data)
		case websocket.TextMessage:
			a.deliverEvent(data)
		}
	}
}

func (a *Adapter) deliverAudio(data []byte) {
	a.mu.Lock()
	cb := a.cb
	closed := a.closed
	a.mu.Unlock()
	if closed || cb == nil {
		return
	}
	cb.OnAudio(data)
}

func (a *Adapter) deliverEvent(data []byte) {
	a.mu.Lock()
	cb := a.cb
	closed := a.closed
	a.mu.Unlock()
	if closed || cb == nil {
		return
	}

	var ev inboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		// Malformed frame: log and drop, the connection continues.
		a.metrics.RecordAgentError("malformed_event")
		log.Warn().Err(err).Msg("Malformed voice agent event, dropping")
		return
	}

	a.metrics.RecordAgentEvent(ev.Type)

	switch ev.Type {
	case "Welcome":
		cb.OnControl(agent.EventWelcome)
	case "SettingsApplied":
		cb.OnControl(agent.EventSettingsApplied)
	case "ConversationText":
		cb.OnConversationText(ev.Role, ev.Content)
	case "UserStartedSpeaking":
		cb.OnControl(agent.EventUserStartedSpeaking)
	case "AgentThinking":
		cb.OnControl(agent.EventAgentThinking)
	case "AgentStartedSpeaking":
		cb.OnControl(agent.EventAgentStartedSpeak)
	case "AgentAudioDone":
		cb.OnControl(agent.EventAgentAudioDone)
	case "Interrupt":
		cb.OnControl(agent.EventInterrupt)
	case "Error":
		msg := ev.Message
		if msg == "" {
			msg = ev.Description
		}
		a.metrics.RecordAgentError("upstream_error")
		cb.OnError(fmt.Errorf("voice agent error: %s", msg))
	default:
		// Unknown event types are logged and dropped.
		log.Debug().Str("type", ev.Type).Msg("Unhandled voice agent event")
	}
}
