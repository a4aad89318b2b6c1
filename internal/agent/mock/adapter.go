// Package mock provides a mock voice-agent adapter for running without
// upstream credentials. It scripts a short practice conversation:
// audio in triggers a user transcript, an agent reply and a burst of
// synthesized audio, with the surrounding control events in realistic
// order.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-practice-session-service/internal/agent"
)

// SimulatedExchange is one scripted user/agent exchange.
type SimulatedExchange struct {
	UserText  string
	AgentText string
}

// DefaultExchanges provides sample exchanges for simulation.
var DefaultExchanges = []SimulatedExchange{
	{
		UserText:  "Hello I want to practice my English",
		AgentText: "Great to hear! What did you do today?",
	},
	{
		UserText:  "I have went to the park this morning",
		AgentText: "Nice! Small tip: say 'I went to the park'. What did you see there?",
	},
	{
		UserText:  "I saw many dogs and childrens playing",
		AgentText: "Lovely! Remember, 'children' is already plural. Do you have a dog yourself?",
	},
}

// Adapter implements agent.Adapter with scripted responses. Each burst
// of audio frames advances the conversation by one exchange.
type Adapter struct {
	mu            sync.Mutex
	cb            agent.Callback
	exchanges     []SimulatedExchange
	exchangeIndex int
	audioReceived int
	closed        bool
	started       bool
}

// framesPerExchange is how many audio frames trigger the next exchange.
const framesPerExchange = 5

// New creates a mock voice-agent adapter.
func New() *Adapter {
	return &Adapter{exchanges: DefaultExchanges}
}

// NewScripted creates a mock adapter with a custom conversation script.
func NewScripted(exchanges []SimulatedExchange) *Adapter {
	return &Adapter{exchanges: exchanges}
}

// Start registers the callback and emits the connection handshake.
func (a *Adapter) Start(_ context.Context, _ agent.SessionSettings, cb agent.Callback) error {
	a.mu.Lock()
	a.cb = cb
	a.started = true
	a.mu.Unlock()

	go func() {
		time.Sleep(10 * time.Millisecond)
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if closed {
			return
		}
		cb.OnControl(agent.EventWelcome)
		cb.OnControl(agent.EventSettingsApplied)
	}()
	return nil
}

// SendAudio counts frames and plays out the next scripted exchange once
// enough audio has arrived.
func (a *Adapter) SendAudio(_ context.Context, _ []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}
	a.audioReceived++
	trigger := a.audioReceived%framesPerExchange == 0 && a.exchangeIndex < len(a.exchanges)
	var exchange SimulatedExchange
	if trigger {
		exchange = a.exchanges[a.exchangeIndex]
		a.exchangeIndex++
	}
	cb := a.cb
	a.mu.Unlock()

	if !trigger {
		return nil
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if closed {
			return
		}

		cb.OnControl(agent.EventUserStartedSpeaking)
		cb.OnConversationText("user", exchange.UserText)
		cb.OnControl(agent.EventAgentThinking)
		cb.OnConversationText("assistant", exchange.AgentText)
		cb.OnControl(agent.EventAgentStartedSpeak)
		// A short burst of fake PCM.
		for i := 0; i < 3; i++ {
			cb.OnAudio(make([]byte, 320))
		}
		cb.OnControl(agent.EventAgentAudioDone)
	}()

	return nil
}

// Close ends the mock session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}
