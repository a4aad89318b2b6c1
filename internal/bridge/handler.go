// Package bridge multiplexes one client WebSocket and one upstream
// voice-agent connection per practice session, translating between the
// two event vocabularies and driving the session lifecycle.
package bridge

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-practice-session-service/internal/agent"
	"ai-practice-session-service/internal/ledger"
	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/observability/logging"
	"ai-practice-session-service/internal/observability/metrics"
)

// ClientConn is the downstream transport as seen by the bridge.
// *websocket.Conn satisfies it; tests substitute a fake.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// AdapterFactory produces a fresh upstream adapter per connection.
type AdapterFactory func() agent.Adapter

// Bridge handles client voice connections. One Handle call runs the
// full lifecycle of one connection and returns when it is closed.
type Bridge struct {
	ledger  *ledger.Ledger
	agents  AdapterFactory
	metrics *metrics.Metrics
}

// New creates a bridge over the given ledger and adapter factory.
func New(l *ledger.Ledger, agents AdapterFactory) *Bridge {
	return &Bridge{
		ledger:  l,
		agents:  agents,
		metrics: metrics.DefaultMetrics,
	}
}

// Handle runs one client connection to completion. It always closes
// the client connection before returning.
func (b *Bridge) Handle(ctx context.Context, client ClientConn) {
	start := time.Now()
	b.metrics.RecordConnectionStart()

	c := &connection{
		id:        uuid.NewString(),
		client:    client,
		ledger:    b.ledger,
		metrics:   b.metrics,
		lifecycle: NewLifecycle(),
	}
	c.logger = logging.WithConnection(c.id, "")

	c.run(ctx, b.agents)

	b.metrics.RecordConnectionEnd(!c.failed.Load(), time.Since(start).Seconds())
}

// connection is the per-client context. Its two duties - the inbound
// relay loop and the upstream event callbacks - run concurrently and
// share state only through this struct.
type connection struct {
	id        string
	client    ClientConn
	ledger    *ledger.Ledger
	metrics   *metrics.Metrics
	lifecycle *Lifecycle
	logger    zerolog.Logger

	ctx       context.Context
	adapter   agent.Adapter
	sessionID string

	writeMu   sync.Mutex
	closeOnce sync.Once
	failed    atomic.Bool

	// Scratch buffer for diagnostics. Never gates forwarding.
	scratchMu sync.Mutex
	scratch   []byte
}

func (c *connection) run(ctx context.Context, agents AdapterFactory) {
	c.ctx = ctx
	defer c.closeClient()

	settings, userID, ok := c.awaitInit()
	if !ok {
		c.lifecycle.Finish()
		return
	}

	if err := c.lifecycle.BeginConnecting(); err != nil {
		c.logger.Error().Err(err).Msg("init transition rejected")
		c.lifecycle.Finish()
		return
	}

	session, err := c.ledger.StartSession(ctx, userID, settings.Level, settings.Topic, settings.VoiceID)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to start session")
		c.sendError("Failed to start session")
		c.failed.Store(true)
		c.lifecycle.Finish()
		return
	}
	c.sessionID = session.ID
	c.logger = logging.WithConnection(c.id, session.ID)
	c.logger.Info().
		Str("userId", userID).
		Str("level", string(settings.Level)).
		Str("topic", string(settings.Topic)).
		Msg("session started")

	c.send(newSessionStartedMessage(session.ID, settings.Level, settings.Topic))

	c.adapter = agents()
	if err := c.adapter.Start(ctx, settings, c); err != nil {
		c.logger.Error().Err(err).Msg("failed to connect to voice agent")
		c.sendError("Failed to connect to voice agent")
		c.failed.Store(true)
		c.teardown()
		return
	}

	if err := c.lifecycle.Activate(); err != nil {
		c.logger.Error().Err(err).Msg("activate transition rejected")
		c.teardown()
		return
	}
	c.logger.Info().Msg("voice agent connected, relaying audio")

	c.relayLoop(ctx)
	c.teardown()
}

// awaitInit reads and validates the mandatory first client message.
func (c *connection) awaitInit() (agent.SessionSettings, string, bool) {
	messageType, data, err := c.client.ReadMessage()
	if err != nil {
		c.logger.Info().Err(err).Msg("client disconnected before init")
		return agent.SessionSettings{}, "", false
	}
	if messageType != websocket.TextMessage {
		c.sendError("Expected init message")
		return agent.SessionSettings{}, "", false
	}
	env, err := parseClientEnvelope(data)
	if err != nil || env.Type != clientMsgInit {
		c.sendError("Expected init message")
		return agent.SessionSettings{}, "", false
	}

	level := models.Level(env.Level)
	if !level.Valid() {
		level = models.LevelIntermediate
	}
	topic := models.Topic(env.Topic)
	if !topic.Valid() {
		topic = models.TopicFreeTalk
	}
	settings := agent.SessionSettings{
		Level:   level,
		Topic:   topic,
		VoiceID: env.VoiceID,
	}
	return settings, env.UserID, true
}

// relayLoop forwards inbound client audio to the upstream adapter
// until the client disconnects, sends stop, or the upstream fails.
func (c *connection) relayLoop(ctx context.Context) {
	for {
		messageType, data, err := c.client.ReadMessage()
		if err != nil {
			if !c.lifecycle.State().IsTerminal() {
				c.logger.Info().Err(err).Msg("client disconnected")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if !c.forwardAudio(ctx, data) {
				return
			}
		case websocket.TextMessage:
			env, err := parseClientEnvelope(data)
			if err != nil {
				c.logger.Warn().Err(err).Msg("dropping malformed client frame")
				continue
			}
			switch env.Type {
			case clientMsgAudio:
				audio, err := base64.StdEncoding.DecodeString(env.Audio)
				if err != nil {
					c.logger.Warn().Err(err).Msg("dropping undecodable audio frame")
					continue
				}
				if !c.forwardAudio(ctx, audio) {
					return
				}
			case clientMsgStop:
				c.logger.Info().Msg("stop requested by client")
				return
			default:
				c.logger.Debug().Str("type", env.Type).Msg("ignoring client control frame")
			}
		default:
			// Ping/pong and close frames are handled by the transport.
		}
	}
}

// forwardAudio relays one audio frame upstream. A send failure is
// fatal for the session; it is reported downstream and ends the loop.
func (c *connection) forwardAudio(ctx context.Context, audio []byte) bool {
	if err := c.adapter.SendAudio(ctx, audio); err != nil {
		c.logger.Error().Err(err).Msg("failed to forward audio upstream")
		c.sendError("Voice agent connection lost")
		c.failed.Store(true)
		return false
	}
	c.metrics.RecordAudioUpstream(len(audio))
	return true
}

// teardown closes the upstream connection, then finalizes the session.
// Both steps are best effort. The upstream adapter is closed first and
// awaited, so no upstream read is in flight once teardown returns.
func (c *connection) teardown() {
	if !c.lifecycle.BeginClosing() {
		return
	}

	if c.adapter != nil {
		if err := c.adapter.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("error closing voice agent connection")
		}
	}

	if c.sessionID != "" {
		if _, err := c.ledger.EndSession(context.Background(), c.sessionID); err != nil {
			c.logger.Warn().Err(err).Msg("failed to finalize session")
		}
	}

	c.lifecycle.Finish()
	c.logger.Info().Msg("connection closed")
}

// --- agent.Callback implementation ---

// OnConversationText translates transcripts and agent replies into the
// downstream vocabulary. User turns are also recorded in the ledger.
func (c *connection) OnConversationText(role, content string) {
	switch role {
	case "user":
		c.logger.Info().Str("text", content).Msg("user transcript")
		c.send(newFinalTranscriptMessage(content, ledger.AvgConfidence(nil)))
		if err := c.ledger.RecordTurn(c.ctx, c.sessionID, content, nil, nil); err != nil {
			c.logger.Warn().Err(err).Msg("failed to record turn")
		}
	case "assistant":
		c.logger.Info().Str("text", content).Msg("agent reply")
		c.send(newFeedbackMessage(content))
	default:
		c.logger.Debug().Str("role", role).Msg("ignoring conversation text")
	}
}

// OnControl resets the diagnostics scratch buffer on speaking-boundary
// events. Forwarding is never gated on these signals.
func (c *connection) OnControl(event agent.EventType) {
	switch event {
	case agent.EventUserStartedSpeaking, agent.EventAgentStartedSpeak:
		c.scratchMu.Lock()
		c.scratch = c.scratch[:0]
		c.scratchMu.Unlock()
	}
	c.logger.Debug().Str("event", string(event)).Msg("agent control event")
}

// OnAudio forwards one synthesized chunk downstream as it arrives.
func (c *connection) OnAudio(chunk []byte) {
	c.scratchMu.Lock()
	c.scratch = append(c.scratch, chunk...)
	c.scratchMu.Unlock()

	c.send(newAudioMessage(base64.StdEncoding.EncodeToString(chunk)))
	c.metrics.RecordAudioDownstream(len(chunk))
}

// OnError reports an upstream failure downstream and forces teardown
// by closing the client connection, which unblocks the relay loop.
func (c *connection) OnError(err error) {
	if c.lifecycle.State().IsTerminal() {
		return
	}
	c.logger.Error().Err(err).Msg("voice agent error")
	c.sendError(err.Error())
	c.failed.Store(true)
	c.closeClient()
}

// --- downstream writes ---

func (c *connection) send(v any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.client.WriteJSON(v); err != nil {
		c.logger.Debug().Err(err).Msg("downstream write failed")
	}
}

func (c *connection) sendError(message string) {
	c.send(newErrorMessage(message))
}

func (c *connection) closeClient() {
	c.closeOnce.Do(func() {
		if err := c.client.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("client close error")
		}
	})
}
