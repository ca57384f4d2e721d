// Package bench measures generation latency across candidate thread counts
// and recommends the fastest configuration.
package bench

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minidefi/localrag/internal/config"
	"github.com/minidefi/localrag/internal/llm"
)

// Prompt is the fixed benchmark prompt, in Mistral instruct format.
const Prompt = `<s>[INST] You are a helpful assistant. Explain in 2-3 sentences how DeFi lending pools work and what is a health factor. [/INST]`

const (
	warmupTokens = 64
	runTokens    = 128
)

// Stats aggregates the timed runs for one thread count. Tokens are estimated
// by whitespace word count, matching the numbers the summary has always
// reported; it is not a vocabulary token count.
type Stats struct {
	Threads  int
	LoadTime time.Duration
	AvgTime  time.Duration
	MinTime  time.Duration
	MaxTime  time.Duration
	AvgSpeed float64 // estimated tokens per second
}

// Driver runs the benchmark. NewClient must return a fresh runtime client for
// the given thread count; the driver releases each instance before moving on.
type Driver struct {
	NewClient func(threads int) (llm.Client, error)
	Runs      int
}

// Run benchmarks every candidate in order. A failing candidate is logged and
// excluded from the results; the sweep continues.
func (d *Driver) Run(ctx context.Context, threadCounts []int) []Stats {
	results := make([]Stats, 0, len(threadCounts))
	for _, n := range threadCounts {
		stats, err := d.benchOne(ctx, n)
		if err != nil {
			log.Error().Err(err).Int("threads", n).Msg("benchmark configuration failed")
			continue
		}
		results = append(results, stats)
	}
	return results
}

func (d *Driver) benchOne(ctx context.Context, threads int) (Stats, error) {
	// Thread environment must be in place before the runtime client exists.
	config.SetThreadEnv(threads)

	client, err := d.NewClient(threads)
	if err != nil {
		return Stats{}, err
	}

	log.Info().Int("threads", threads).Msg("loading model")
	t0 := time.Now()
	if err := client.Load(ctx, threads); err != nil {
		return Stats{}, err
	}
	loadTime := time.Since(t0)
	log.Info().Dur("load_time", loadTime).Msg("model loaded")

	// Release before the next configuration so memory does not accumulate.
	defer func() {
		if err := client.Unload(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Int("threads", threads).Msg("failed to release model")
		}
	}()

	if _, err := client.Generate(ctx, Prompt, genOpts(warmupTokens, threads)); err != nil {
		return Stats{}, err
	}

	runs := d.Runs
	if runs < 1 {
		runs = 1
	}

	times := make([]time.Duration, 0, runs)
	tokens := make([]int, 0, runs)
	for i := 0; i < runs; i++ {
		t0 := time.Now()
		out, err := client.Generate(ctx, Prompt, genOpts(runTokens, threads))
		if err != nil {
			return Stats{}, err
		}
		dt := time.Since(t0)

		n := len(strings.Fields(out))
		times = append(times, dt)
		tokens = append(tokens, n)

		log.Info().
			Int("run", i+1).
			Dur("time", dt).
			Int("tokens", n).
			Float64("tok_per_sec", float64(n)/dt.Seconds()).
			Msg("benchmark run")
	}

	stats := aggregate(times, tokens)
	stats.Threads = threads
	stats.LoadTime = loadTime
	return stats, nil
}

func genOpts(maxTokens, threads int) llm.GenerateOptions {
	return llm.GenerateOptions{
		MaxTokens:   maxTokens,
		Temperature: 0.7,
		TopP:        0.9,
		Stop:        []string{"</s>", "[INST]"},
		Threads:     threads,
	}
}

func aggregate(times []time.Duration, tokens []int) Stats {
	var total time.Duration
	min, max := times[0], times[0]
	for _, t := range times {
		total += t
		if t < min {
			min = t
		}
		if t > max {
			max = t
		}
	}
	avg := total / time.Duration(len(times))

	var totalTokens int
	for _, n := range tokens {
		totalTokens += n
	}
	avgTokens := float64(totalTokens) / float64(len(tokens))

	return Stats{
		AvgTime:  avg,
		MinTime:  min,
		MaxTime:  max,
		AvgSpeed: avgTokens / avg.Seconds(),
	}
}

// Best returns the configuration with the lowest mean duration.
func Best(results []Stats) (Stats, bool) {
	if len(results) == 0 {
		return Stats{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.AvgTime < best.AvgTime {
			best = r
		}
	}
	return best, true
}
