// Package llm adapts LLM backends to the single-shot prompt/completion call
// used by the pipeline.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/taxonomist/internal/config"
	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// CallOptions tunes a single completion.
type CallOptions struct {
	// Operation names the call for metrics ("llm_classify", ...).
	Operation string
	// Temperature overrides the model default when non-nil.
	Temperature *float64
	// JSON asks the backend to constrain output to JSON where supported.
	JSON bool
}

// Generator sends one prompt and returns the raw completion text.
// Calls are blocking, stateless and never retried.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts CallOptions) (string, error)
}

// Temperature returns a pointer for CallOptions.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// Model wraps a langchaingo model.
type Model struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
}

var _ Generator = (*Model)(nil)

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.ModelID),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.ModelID),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.ModelID),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.ModelID),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewModelWithLLM(model, cfg.ModelID, collector), nil
}

// NewModelWithLLM wraps an already constructed langchaingo model.
func NewModelWithLLM(model llms.Model, modelName string, collector *metrics.Collector) *Model {
	return &Model{
		llm:       model,
		modelName: modelName,
		metrics:   collector,
	}
}

// Generate sends prompt as a single user message.
func (m *Model) Generate(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var callOpts []llms.CallOption
	if opts.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(*opts.Temperature))
	}
	if opts.JSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages, callOpts...)
	duration := time.Since(start)

	if err != nil {
		m.metrics.RecordCall(opts.Operation, duration, true, 0, 0)
		slog.Debug("llm call failed", "model", m.modelName, "op", opts.Operation, "duration_ms", duration.Milliseconds(), "error", err)
		return "", wrapFatalError(fmt.Errorf("generate: %w", err))
	}

	if len(response.Choices) == 0 {
		m.metrics.RecordCall(opts.Operation, duration, true, 0, 0)
		return "", fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	m.metrics.RecordCall(opts.Operation, duration, false, in, out)
	slog.Debug("llm call complete", "model", m.modelName, "op", opts.Operation, "duration_ms", duration.Milliseconds())

	return choice.Content, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// tokenUsage pulls prompt/completion token counts out of provider-specific
// generation info. Missing keys count as zero.
func tokenUsage(info map[string]any) (int64, int64) {
	in := firstInt(info, "PromptTokens", "InputTokens")
	out := firstInt(info, "CompletionTokens", "OutputTokens")
	return in, out
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
