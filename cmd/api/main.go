package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/minidefi/localrag/internal/api/handlers"
	"github.com/minidefi/localrag/internal/config"
	"github.com/minidefi/localrag/internal/llm"
	"github.com/minidefi/localrag/internal/retrieval"
	"github.com/minidefi/localrag/internal/server"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("localrag-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().
		Int("port", cfg.Port).
		Int("threads", cfg.Threads).
		Str("provider", cfg.Provider).
		Str("model", cfg.ModelPath()).
		Msg("starting localrag api")

	// Thread environment first: runtime clients must only be constructed
	// after these are exported.
	config.SetThreadEnv(cfg.Threads)

	provider := llm.Provider(strings.ToLower(cfg.Provider))
	if provider != llm.ProviderStub {
		if _, err := os.Stat(cfg.ModelPath()); err != nil {
			log.Fatalf("Model not found at %s. Please download the model first.", cfg.ModelPath())
		}
	}

	client, err := llm.NewClient(&llm.ClientConfig{
		Provider:   provider,
		BaseURL:    cfg.RuntimeURL,
		APIKey:     cfg.APIKey,
		EmbedModel: cfg.EmbedModel,
		GenModel:   cfg.GenModel,
		Threads:    cfg.Threads,
	})
	if err != nil {
		log.Fatalf("Failed to create runtime client: %v", err)
	}

	svc := retrieval.NewService(client, cfg.DocsDir)

	// Eager build so the first request does not pay for it. A failure here
	// is not fatal: retrieval retries the build lazily.
	if err := svc.Build(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("vector store build failed, will retry on first request")
	}

	chat := handlers.NewChatHandler(svc, client, cfg.ModelName(), cfg.TopK, cfg.Threads)

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(server.NewRouter(chat)),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
