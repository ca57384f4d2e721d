package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultModelFile is the quantized model expected under the models directory.
const DefaultModelFile = "mistral-7b-instruct-v0.2.Q4_K_M.gguf"

type Specification struct {
	Port       int    `yaml:"port" split_words:"true"`
	Threads    int    `yaml:"threads" split_words:"true"`
	Model      string `yaml:"model" split_words:"true"`
	ModelDir   string `yaml:"modelDir" split_words:"true"`
	DocsDir    string `yaml:"docsDir" split_words:"true"`
	Provider   string `yaml:"provider"`
	RuntimeURL string `yaml:"runtimeURL" envconfig:"RUNTIME_URL"`
	APIKey     string `yaml:"apiKey" envconfig:"API_KEY"`
	EmbedModel string `yaml:"embedModel" split_words:"true"`
	GenModel   string `yaml:"genModel" split_words:"true"`
	TopK       int    `yaml:"topK" envconfig:"TOP_K"`
	LogLevel   string `yaml:"logLevel" split_words:"true"`

	// Benchmark settings.
	Runs        int   `yaml:"runs"`
	ThreadsList []int `yaml:"threadsList" split_words:"true"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "LOCALRAG"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// ModelPath resolves the model file: an explicit --model wins, otherwise the
// conventional file under the models directory.
func (s *Specification) ModelPath() string {
	if s.Model != "" {
		return s.Model
	}
	return filepath.Join(s.ModelDir, DefaultModelFile)
}

// ModelName is the model's filename, as reported by /health.
func (s *Specification) ModelName() string {
	return filepath.Base(s.ModelPath())
}

// SetThreadEnv exports the thread-count variables the numeric backends read.
// It must run before any runtime client is constructed; in-process runtimes
// pick these up at initialization only.
func SetThreadEnv(n int) {
	v := strconv.Itoa(n)
	os.Setenv("OMP_NUM_THREADS", v)
	os.Setenv("MKL_NUM_THREADS", v)
	os.Setenv("OPENBLAS_NUM_THREADS", v)
	os.Setenv("NUMEXPR_NUM_THREADS", v)
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	_ = godotenv.Load()

	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/localrag.yaml",
				"config/config.yaml",
				"./localrag.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	if cfg.Threads < 1 {
		return Specification{}, fmt.Errorf("threads must be at least 1, got %d", cfg.Threads)
	}
	if cfg.TopK < 1 {
		cfg.TopK = 3
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.Int("port", c.Port, "Server port")
	fs.Int("threads", c.Threads, "CPU threads for inference")
	fs.String("model", c.Model, "Path to GGUF model file")
	fs.String("model-dir", c.ModelDir, "Directory holding model files")
	fs.String("docs-dir", c.DocsDir, "Directory holding markdown documentation")

	fs.String("provider", c.Provider, "Runtime provider (ollama, openai, stub)")
	fs.String("runtime-url", c.RuntimeURL, "Base URL of the local model runtime")
	fs.String("api-key", c.APIKey, "API key for OpenAI-compatible runtimes")
	fs.String("embed-model", c.EmbedModel, "Embedding model name")
	fs.String("gen-model", c.GenModel, "Generation model name")

	fs.Int("top-k", c.TopK, "Chunks retrieved per chat request")
	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")

	fs.Int("runs", c.Runs, "Benchmark runs per thread count")
	fs.IntSlice("threads-list", c.ThreadsList, "Thread counts to benchmark")

	// Used later for usage/help
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}

	setInt("port", &c.Port)
	setInt("threads", &c.Threads)
	setStr("model", &c.Model)
	setStr("model-dir", &c.ModelDir)
	setStr("docs-dir", &c.DocsDir)

	setStr("provider", &c.Provider)
	setStr("runtime-url", &c.RuntimeURL)
	setStr("api-key", &c.APIKey)
	setStr("embed-model", &c.EmbedModel)
	setStr("gen-model", &c.GenModel)

	setInt("top-k", &c.TopK)
	setStr("log-level", &c.LogLevel)

	setInt("runs", &c.Runs)
	if fs.Changed("threads-list") {
		if v, err := fs.GetIntSlice("threads-list"); err == nil {
			c.ThreadsList = v
		}
	}
}

func setDefaults(c *Specification) {
	c.Port = 5000
	c.Threads = 8
	c.ModelDir = "models"
	c.DocsDir = "rag_docs"
	c.Provider = "ollama"
	c.RuntimeURL = "http://localhost:11434"
	c.EmbedModel = "nomic-embed-text"
	c.GenModel = "mistral"
	c.TopK = 3
	c.LogLevel = "info"
	c.Runs = 3
	c.ThreadsList = []int{4, 6, 8, 10, 12}
}
