package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/minidefi/localrag/internal/bench"
	"github.com/minidefi/localrag/internal/config"
	"github.com/minidefi/localrag/internal/llm"
)

func main() {
	fs := pflag.NewFlagSet("localrag-bench", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	zlog.Logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	provider := llm.Provider(strings.ToLower(cfg.Provider))
	if provider != llm.ProviderStub {
		if _, err := os.Stat(cfg.ModelPath()); err != nil {
			log.Fatalf("Model not found at %s. Please download the model first.", cfg.ModelPath())
		}
	}

	fmt.Println("============================================================")
	fmt.Println("LLM Thread Benchmark")
	fmt.Println("============================================================")
	fmt.Printf("Model: %s\n", cfg.ModelPath())
	fmt.Printf("Runs per config: %d\n", cfg.Runs)
	fmt.Println("============================================================")

	driver := &bench.Driver{
		Runs: cfg.Runs,
		NewClient: func(threads int) (llm.Client, error) {
			return llm.NewClient(&llm.ClientConfig{
				Provider:   provider,
				BaseURL:    cfg.RuntimeURL,
				APIKey:     cfg.APIKey,
				EmbedModel: cfg.EmbedModel,
				GenModel:   cfg.GenModel,
				Threads:    threads,
			})
		},
	}

	results := driver.Run(context.Background(), cfg.ThreadsList)

	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("%-10s %-12s %-12s %-12s\n", "Threads", "Avg Time", "Min Time", "Avg Speed")
	fmt.Println(strings.Repeat("-", 46))
	for _, r := range results {
		fmt.Printf("%-10d %-12.2f %-12.2f %-12.1f\n",
			r.Threads, r.AvgTime.Seconds(), r.MinTime.Seconds(), r.AvgSpeed)
	}

	best, ok := bench.Best(results)
	if !ok {
		log.Fatal("No configuration completed successfully")
	}
	fmt.Println(strings.Repeat("-", 46))
	fmt.Printf("\nRECOMMENDED: --threads %d (fastest average: %.2fs)\n", best.Threads, best.AvgTime.Seconds())
	fmt.Println("\nUse this with the server:")
	fmt.Printf("  localrag-api --threads %d\n", best.Threads)
}
