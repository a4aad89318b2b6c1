// Package agent defines the interface for upstream voice-agent adapters.
package agent

import (
	"context"

	"ai-practice-session-service/internal/models"
)

// SessionSettings carries the per-session parameters sent to the
// upstream agent once, on connect.
type SessionSettings struct {
	Level   models.Level
	Topic   models.Topic
	VoiceID string
}

// EventType enumerates the upstream control events relevant to callers.
type EventType string

const (
	EventWelcome             EventType = "Welcome"
	EventSettingsApplied     EventType = "SettingsApplied"
	EventUserStartedSpeaking EventType = "UserStartedSpeaking"
	EventAgentThinking       EventType = "AgentThinking"
	EventAgentStartedSpeak   EventType = "AgentStartedSpeaking"
	EventAgentAudioDone      EventType = "AgentAudioDone"
	EventInterrupt           EventType = "Interrupt"
)

// Callback receives translated events from the voice agent.
type Callback interface {
	// OnConversationText is called for each transcript or agent reply.
	// Role is "user" or "assistant".
	OnConversationText(role, content string)

	// OnControl is called for lifecycle control events.
	OnControl(event EventType)

	// OnAudio is called with each raw synthesized audio chunk. Chunks
	// must be handed on as they arrive, without accumulation.
	OnAudio(chunk []byte)

	// OnError is called when the upstream reports or causes an error.
	OnError(err error)
}

// Adapter defines the interface for voice-agent providers.
type Adapter interface {
	// Start opens the upstream connection, applies the session settings
	// and begins delivering events to the callback.
	Start(ctx context.Context, settings SessionSettings, cb Callback) error

	// SendAudio forwards caller audio bytes to the agent.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases the connection. It waits for
	// the event delivery loop to stop before returning.
	Close() error
}
