package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider identifies the LLM backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Defaults for the pipeline.
const (
	DefaultCorpusPath        = "data/questions.csv"
	DefaultLabelsPath        = "data/labels.txt"
	DefaultClustersDir       = "data/clusters"
	DefaultSummaryPath       = "data/clustered_questions.json"
	DefaultTextColumn        = "instruction"
	DefaultSampleSize        = 500
	DefaultSummarySampleSize = 50
	DefaultChunkSize         = 100
	DefaultModelID           = "llama3.2"
)

// Config holds all configuration values.
// It is built once at startup and passed into each component.
type Config struct {
	// Paths
	CorpusPath  string
	LabelsPath  string
	ClustersDir string
	SummaryPath string
	TextColumn  string

	// Sampling
	SampleSize        int
	SummarySampleSize int

	// Dispatch
	Workers   int
	ChunkSize int

	// LLM
	LLMProvider     Provider
	ModelID         string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		CorpusPath:  getEnv("TAXONOMIST_CORPUS_PATH", DefaultCorpusPath),
		LabelsPath:  getEnv("TAXONOMIST_LABELS_PATH", DefaultLabelsPath),
		ClustersDir: getEnv("TAXONOMIST_CLUSTERS_DIR", DefaultClustersDir),
		SummaryPath: getEnv("TAXONOMIST_SUMMARY_PATH", DefaultSummaryPath),
		TextColumn:  getEnv("TAXONOMIST_TEXT_COLUMN", DefaultTextColumn),

		SampleSize:        getEnvInt("TAXONOMIST_SAMPLE_SIZE", DefaultSampleSize),
		SummarySampleSize: getEnvInt("TAXONOMIST_SUMMARY_SAMPLE_SIZE", DefaultSummarySampleSize),

		Workers:   getEnvInt("TAXONOMIST_WORKERS", runtime.NumCPU()*2),
		ChunkSize: getEnvInt("TAXONOMIST_CHUNK_SIZE", DefaultChunkSize),

		LLMProvider:     Provider(strings.ToLower(getEnv("TAXONOMIST_LLM_PROVIDER", string(ProviderOllama)))),
		ModelID:         getEnv("TAXONOMIST_MODEL", DefaultModelID),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		LogFile:  getEnv("TAXONOMIST_LOG_FILE", "/tmp/taxonomist.log"),
		LogLevel: parseLogLevel(getEnv("TAXONOMIST_LOG_LEVEL", "INFO")),
	}
}

// fileConfig mirrors Config for YAML overlays. Pointer fields distinguish
// "unset" from zero values.
type fileConfig struct {
	CorpusPath        *string `yaml:"corpus_path"`
	LabelsPath        *string `yaml:"labels_path"`
	ClustersDir       *string `yaml:"clusters_dir"`
	SummaryPath       *string `yaml:"summary_path"`
	TextColumn        *string `yaml:"text_column"`
	SampleSize        *int    `yaml:"sample_size"`
	SummarySampleSize *int    `yaml:"summary_sample_size"`
	Workers           *int    `yaml:"workers"`
	ChunkSize         *int    `yaml:"chunk_size"`
	LLMProvider       *string `yaml:"llm_provider"`
	ModelID           *string `yaml:"model_id"`
	OllamaHost        *string `yaml:"ollama_host"`
	AWSRegion         *string `yaml:"aws_region"`
	LogFile           *string `yaml:"log_file"`
	LogLevel          *string `yaml:"log_level"`
}

// LoadFile overlays the YAML file at path on top of base.
// Keys missing from the file keep their value from base.
func LoadFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, fmt.Errorf("parse config file: %w", err)
	}

	cfg := base
	setString(&cfg.CorpusPath, fc.CorpusPath)
	setString(&cfg.LabelsPath, fc.LabelsPath)
	setString(&cfg.ClustersDir, fc.ClustersDir)
	setString(&cfg.SummaryPath, fc.SummaryPath)
	setString(&cfg.TextColumn, fc.TextColumn)
	setInt(&cfg.SampleSize, fc.SampleSize)
	setInt(&cfg.SummarySampleSize, fc.SummarySampleSize)
	setInt(&cfg.Workers, fc.Workers)
	setInt(&cfg.ChunkSize, fc.ChunkSize)
	setString(&cfg.ModelID, fc.ModelID)
	setString(&cfg.OllamaHost, fc.OllamaHost)
	setString(&cfg.AWSRegion, fc.AWSRegion)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.LLMProvider != nil {
		cfg.LLMProvider = Provider(strings.ToLower(*fc.LLMProvider))
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = parseLogLevel(*fc.LogLevel)
	}

	return cfg, nil
}

// Validate checks that the config can drive a run.
func (c Config) Validate() error {
	var errs []error
	if c.CorpusPath == "" {
		errs = append(errs, errors.New("corpus path is empty"))
	}
	if c.LabelsPath == "" {
		errs = append(errs, errors.New("labels path is empty"))
	}
	if c.ClustersDir == "" {
		errs = append(errs, errors.New("clusters dir is empty"))
	}
	if c.SummaryPath == "" {
		errs = append(errs, errors.New("summary path is empty"))
	}
	if c.TextColumn == "" {
		errs = append(errs, errors.New("text column is empty"))
	}
	if c.SampleSize <= 0 {
		errs = append(errs, fmt.Errorf("sample size must be positive, got %d", c.SampleSize))
	}
	if c.SummarySampleSize <= 0 {
		errs = append(errs, fmt.Errorf("summary sample size must be positive, got %d", c.SummarySampleSize))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize))
	}
	if c.ModelID == "" {
		errs = append(errs, errors.New("model id is empty"))
	}
	switch c.LLMProvider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM provider: %q", c.LLMProvider))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("ignoring non-numeric env value", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
