package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/BillClerici/skill-forge-sub000/internal/config"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// LLM is the production Generator backed by a langchaingo model.
type LLM struct {
	model   llms.Model
	timeout time.Duration
	logger  *slog.Logger
}

// LLMOption configures an LLM generator.
type LLMOption func(*LLM)

// WithLogger sets the logger used for call diagnostics.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(l *LLM) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLLM builds a Generator for the configured provider. API credentials
// come from the provider's standard environment variables.
func NewLLM(cfg config.GeneratorConfig, opts ...LLMOption) (*LLM, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.Provider {
	case "anthropic":
		model, err = anthropic.New(anthropic.WithModel(cfg.Model))
	case "openai":
		model, err = openai.New(openai.WithModel(cfg.Model))
	case "ollama":
		model, err = ollama.New(ollama.WithModel(cfg.Model))
	default:
		return nil, types.NewError(types.GEN_PROVIDER_UNKNOWN, "unknown generator provider: "+cfg.Provider)
	}
	if err != nil {
		return nil, types.WrapError(types.GEN_CALL_FAILED, "failed to initialize generator provider", err)
	}

	l := &LLM{
		model:   model,
		timeout: cfg.Timeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// GenerateInto runs one structured-generation call with the configured
// per-call timeout and decodes the response into out. Call failures are
// retryable; schema violations are not (retrying the same malformed shape
// is pointless, the calling node regenerates with a fresh prompt instead).
func (l *LLM) GenerateInto(ctx context.Context, req Request, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	started := time.Now()

	resp, err := l.model.GenerateContent(callCtx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, req.System),
			llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt),
		},
		llms.WithJSONMode(),
	)
	if err != nil {
		return types.WrapRetryableError(types.GEN_CALL_FAILED, "generator call failed", err)
	}
	if len(resp.Choices) == 0 {
		return types.NewRetryableError(types.GEN_CALL_FAILED, "generator returned no choices")
	}

	l.logger.Debug("generator call completed",
		"duration", time.Since(started),
		"response_len", len(resp.Choices[0].Content))

	return Decode(resp.Choices[0].Content, out)
}

var _ Generator = (*LLM)(nil)
