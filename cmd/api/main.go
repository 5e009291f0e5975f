package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/voiceline-ai/internal/agents"
	"github.com/wolfman30/voiceline-ai/internal/api/router"
	appconfig "github.com/wolfman30/voiceline-ai/internal/config"
	"github.com/wolfman30/voiceline-ai/internal/call"
	"github.com/wolfman30/voiceline-ai/internal/functions"
	"github.com/wolfman30/voiceline-ai/internal/http/handlers"
	"github.com/wolfman30/voiceline-ai/internal/llm"
	"github.com/wolfman30/voiceline-ai/internal/observability/metrics"
	"github.com/wolfman30/voiceline-ai/internal/orchestrator"
	"github.com/wolfman30/voiceline-ai/internal/retrieval"
	"github.com/wolfman30/voiceline-ai/internal/routing"
	"github.com/wolfman30/voiceline-ai/internal/stt"
	"github.com/wolfman30/voiceline-ai/internal/telephony"
	"github.com/wolfman30/voiceline-ai/internal/tts"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voiceline-ai server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Redis: live call state and transcripts.
	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "error", err)
		os.Exit(1)
	}
	callStore := call.NewStore(rdb)

	// Postgres: agent roster.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	agentRepo := agents.NewRepository(pool, logger)

	// LLM vendors: OpenAI primary, Bedrock fallback when configured.
	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	primary := llm.NewOpenAIClient(openaiClient, cfg.OpenAIModel)
	var chat llm.StreamingClient = primary
	if cfg.BedrockModelID != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("aws config load failed", "error", err)
			os.Exit(1)
		}
		bedrock := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
		chat = llm.NewFallbackClient(primary, bedrock, cfg.BedrockModelID, logger)
	}

	// Knowledge store and retrieval discipline.
	knowledge := retrieval.NewMemoryStore(openaiClient, cfg.EmbeddingModel, logger)
	retriever := retrieval.NewRetriever(knowledge, retrieval.RetrieverConfig{
		Timeout:    cfg.RetrievalTimeout,
		TopK:       cfg.RetrievalTopK,
		CharBudget: cfg.RetrievalCharBudget,
	}, logger)
	decider := retrieval.NewDecisionEngine(primary, cfg.OpenAIRouterModel, logger)
	intentRouter := routing.NewRouter(primary, cfg.OpenAIRouterModel, logger)

	// Speech providers.
	sttProvider, err := stt.NewDeepgramProvider(stt.DeepgramConfig{
		APIKey: cfg.DeepgramAPIKey,
		Model:  cfg.DeepgramModel,
	})
	if err != nil {
		logger.Error("deepgram config invalid", "error", err)
		os.Exit(1)
	}
	ttsProvider, err := tts.NewElevenLabsProvider(tts.ElevenLabsConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceID,
	})
	if err != nil {
		logger.Error("elevenlabs config invalid", "error", err)
		os.Exit(1)
	}

	// Tool registry.
	registry := functions.NewRegistry()
	(&functions.Handlers{Logger: logger}).RegisterAll(registry)

	promRegistry := prometheus.NewRegistry()
	callMetrics := metrics.NewCallMetrics(promRegistry)
	executor := functions.NewExecutor(registry, callMetrics, logger)

	callRegistry := call.NewRegistry()
	orch := orchestrator.New(orchestrator.Config{
		FrameDurationMS:    cfg.FrameDurationMS,
		SampleRate:         cfg.SampleRate,
		VADEnergyThreshold: cfg.VADEnergyThreshold,
		VADDebounceFrames:  cfg.VADDebounceFrames,
		SilenceGap:         cfg.SilenceGap,
		STTConnectTimeout:  cfg.STTConnectTimeout,
		TurnBudget:         cfg.TurnBudget,
		Model:              cfg.OpenAIModel,
		Tools:              functions.Definitions(),
	}, orchestrator.Deps{
		Registry:  callRegistry,
		Store:     callStore,
		Agents:    agentRepo,
		STT:       sttProvider,
		TTS:       ttsProvider,
		Router:    intentRouter,
		Decider:   decider,
		Retriever: retriever,
		LLM:       chat,
		Executor:  executor,
		Metrics:   callMetrics,
		Logger:    logger,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		CallEvents:     handlers.NewCallEventsHandler(callRegistry, logger),
		MediaStream:    telephony.NewWSHandler(orch, logger),
		MetricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}
