package deepgram

import (
	"fmt"

	"ai-practice-session-service/internal/agent"
	"ai-practice-session-service/internal/models"
)

// Settings is the one-time configuration envelope sent on connect.
type Settings struct {
	Type  string        `json:"type"`
	Audio AudioSettings `json:"audio"`
	Agent AgentSettings `json:"agent"`
}

type AudioSettings struct {
	Input  AudioFormat `json:"input"`
	Output AudioFormat `json:"output"`
}

type AudioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container,omitempty"`
}

type AgentSettings struct {
	Language string       `json:"language"`
	Listen   ListenConfig `json:"listen"`
	Think    ThinkConfig  `json:"think"`
	Speak    SpeakConfig  `json:"speak"`
	Greeting string       `json:"greeting"`
}

type ListenConfig struct {
	Provider Provider `json:"provider"`
}

type ThinkConfig struct {
	Provider Provider       `json:"provider"`
	Endpoint *ThinkEndpoint `json:"endpoint,omitempty"`
	Prompt   string         `json:"prompt"`
}

type ThinkEndpoint struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

type SpeakConfig struct {
	Provider Provider `json:"provider"`
}

type Provider struct {
	Type        string  `json:"type"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

var levelPrompts = map[models.Level]string{
	models.LevelBeginner:     "Speak slowly and use simple vocabulary. Keep sentences short.",
	models.LevelIntermediate: "Use natural conversation speed with moderate vocabulary.",
	models.LevelAdvanced:     "Use complex vocabulary, idioms, and natural speech patterns.",
}

var topicPrompts = map[models.Topic]string{
	models.TopicFreeTalk:  "Have an open conversation about any topic the user wants.",
	models.TopicDailyLife: "Focus on everyday situations like shopping, cooking, or daily routines.",
	models.TopicBusiness:  "Discuss professional topics like meetings, presentations, or workplace scenarios.",
	models.TopicTravel:    "Talk about travel experiences, destinations, and travel-related situations.",
	models.TopicAcademic:  "Discuss educational topics, study habits, or academic subjects.",
}

var greetings = map[models.Level]string{
	models.LevelBeginner:     "Hello! I am here to help you practice English. Say hello to start!",
	models.LevelIntermediate: "Hi there! I'm excited to practice English with you today. What would you like to talk about?",
	models.LevelAdvanced:     "Welcome! I'm looking forward to having an engaging conversation with you. What's on your mind?",
}

// SystemPrompt builds the speaking-partner prompt for a level and topic.
func SystemPrompt(level models.Level, topic models.Topic) string {
	levelPrompt, ok := levelPrompts[level]
	if !ok {
		levelPrompt = levelPrompts[models.LevelIntermediate]
	}
	topicPrompt, ok := topicPrompts[topic]
	if !ok {
		topicPrompt = topicPrompts[models.TopicFreeTalk]
	}

	return fmt.Sprintf(`You are SpeakMate, an AI English speaking practice partner. Your role is to:
1. Have natural conversations to help the user practice English
2. %s
3. %s
4. Gently correct grammar mistakes when appropriate
5. Encourage the user and keep the conversation flowing
6. Ask follow-up questions to keep them talking
7. Keep responses concise (1-3 sentences)

Be warm, patient, and supportive. Focus on helping them improve their English speaking skills.`,
		levelPrompt, topicPrompt)
}

// Greeting returns the level-appropriate opening line.
func Greeting(level models.Level) string {
	if g, ok := greetings[level]; ok {
		return g
	}
	return greetings[models.LevelIntermediate]
}

// buildSettings assembles the configuration envelope for a session.
func (c Config) buildSettings(session agent.SessionSettings) Settings {
	voice := session.VoiceID
	if voice == "" {
		voice = c.SpeakVoice
	}

	think := ThinkConfig{
		Provider: Provider{
			Type:        "groq",
			Model:       c.ThinkModel,
			Temperature: c.ThinkTemperature,
		},
		Prompt: SystemPrompt(session.Level, session.Topic),
	}
	if c.ThinkURL != "" {
		think.Endpoint = &ThinkEndpoint{
			URL:     c.ThinkURL,
			Headers: map[string]string{"Content-Type": "application/json"},
		}
	}

	return Settings{
		Type: "Settings",
		Audio: AudioSettings{
			Input: AudioFormat{
				Encoding:   "linear16",
				SampleRate: c.InputSampleRateHz,
			},
			Output: AudioFormat{
				Encoding:   "linear16",
				SampleRate: c.OutputSampleRateHz,
				Container:  "none",
			},
		},
		Agent: AgentSettings{
			Language: c.Language,
			Listen: ListenConfig{
				Provider: Provider{Type: "deepgram", Model: c.ListenModel},
			},
			Think: think,
			Speak: SpeakConfig{
				Provider: Provider{Type: "deepgram", Model: voice},
			},
			Greeting: Greeting(session.Level),
		},
	}
}
