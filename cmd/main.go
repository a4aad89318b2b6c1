package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"ai-practice-session-service/internal/agent"
	"ai-practice-session-service/internal/agent/deepgram"
	"ai-practice-session-service/internal/agent/mock"
	"ai-practice-session-service/internal/app"
	"ai-practice-session-service/internal/bridge"
	"ai-practice-session-service/internal/config"
	"ai-practice-session-service/internal/events"
	httpapi "ai-practice-session-service/internal/http"
	"ai-practice-session-service/internal/ledger"
	"ai-practice-session-service/internal/llm"
	"ai-practice-session-service/internal/materials"
	"ai-practice-session-service/internal/observability"
	"ai-practice-session-service/internal/retrieval"
	"ai-practice-session-service/internal/store"
)

func main() {
	cfg := config.Load()

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("application start failed")
	}

	ctx := context.Background()

	st := newStore(ctx, cfg)
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()

	if err := materials.Seed(ctx, st); err != nil {
		log.Warn().Err(err).Msg("seeding learning materials failed")
	}

	publisher := events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicTurns:    cfg.Kafka.TopicTurns,
		TopicSessions: cfg.Kafka.TopicSessions,
		Principal:     cfg.Kafka.Principal,
	})
	defer publisher.Close()

	led := ledger.New(st, publisher)

	var ranker *retrieval.Ranker
	if cfg.Ranker.Enabled {
		ranker = retrieval.NewRanker(newChatClient(cfg.Ranker.BaseURL, cfg.Ranker.APIKey), cfg.Ranker.Model, cfg.Ranker.Timeout)
	}
	engine := retrieval.New(st, ranker, retrieval.Config{
		CacheSize:    cfg.Retrieval.CacheSize,
		DefaultLimit: cfg.Retrieval.DefaultLimit,
	})

	llmService := llm.New(newChatClient(cfg.LLM.BaseURL, cfg.LLM.APIKey), llm.Config{
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	voiceBridge := bridge.New(led, newAdapterFactory(cfg))

	router := httpapi.NewRouter(httpapi.Dependencies{
		Ledger:    led,
		Store:     st,
		Retrieval: engine,
		LLM:       llmService,
		Bridge:    voiceBridge,
	})

	obsServer := observability.NewServer(cfg.Service.MetricsAddr)
	obsServer.Start()

	apiServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", apiServer.Addr).Msg("HTTP server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("observability shutdown failed")
	}
	application.Shutdown()
}

func newStore(ctx context.Context, cfg *config.Configuration) store.Store {
	switch cfg.Store.Provider {
	case "mongo":
		m, err := store.NewMongo(ctx, cfg.Store.MongoURI, cfg.Store.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connection failed")
		}
		log.Info().Str("database", cfg.Store.Database).Msg("using mongo store")
		return m
	default:
		log.Info().Msg("using in-memory store")
		return store.NewMemory()
	}
}

func newChatClient(baseURL, apiKey string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

func newAdapterFactory(cfg *config.Configuration) bridge.AdapterFactory {
	switch cfg.Agent.Provider {
	case "deepgram":
		dgCfg := deepgram.Config{
			URL:                cfg.Agent.URL,
			APIKey:             cfg.Agent.APIKey,
			Language:           cfg.Agent.Language,
			ListenModel:        cfg.Agent.ListenModel,
			SpeakVoice:         cfg.Agent.SpeakVoice,
			InputSampleRateHz:  cfg.Agent.InputSampleRateHz,
			OutputSampleRateHz: cfg.Agent.OutputSampleRateHz,
			ThinkModel:         cfg.LLM.Model,
			ThinkTemperature:   cfg.LLM.Temperature,
			ThinkURL:           cfg.LLM.ThinkURL,
		}
		return func() agent.Adapter { return deepgram.New(dgCfg) }
	default:
		log.Info().Msg("using mock voice agent")
		return func() agent.Adapter { return mock.New() }
	}
}
