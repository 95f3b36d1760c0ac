// Package openai implements the embedding client against the Qwen
// OpenAI-compatible endpoint (DashScope compatible mode).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/vincent-zhou/knowbase/internal/domain"
	"github.com/vincent-zhou/knowbase/internal/metrics"
)

const (
	// DefaultBaseURL is the public DashScope compatible-mode endpoint.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	// DefaultModel is the Qwen embedding model.
	DefaultModel = "text-embedding-v3"

	// fallbackDimension is the text-embedding-v3 output size, returned when
	// the dimension probe fails. Degrade-to-default, not an error path.
	fallbackDimension = 1024

	// requestTimeout bounds every embedding HTTP call.
	requestTimeout = 30 * time.Second
)

// defaultProbeText is the fixed text used to measure the model's output dimension.
const defaultProbeText = "测试"

// Embedder is an embedding provider using the Qwen OpenAI-compatible API.
type Embedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	probeText string
	provider  string
	logger    *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	ProbeText string
	Provider  string
	Logger    *zap.Logger
}

// NewEmbedder creates a Qwen embedding provider. The credential is required
// at construction; there is no anonymous mode.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key: %w", domain.ErrMissingCredentials)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	probeText := cfg.ProbeText
	if probeText == "" {
		probeText = defaultProbeText
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = &http.Client{Timeout: requestTimeout}

	return &Embedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     openai.EmbeddingModel(model),
		probeText: probeText,
		provider:  cfg.Provider,
		logger:    logger,
	}, nil
}

// Embed implements domain.Embedder. Single text, single HTTP call, no retries.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.request(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed vectorizes multiple texts in one HTTP call, preserving input
// order. A single failing item fails the whole batch; there are no partial
// results.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.request(ctx, texts)
}

// Dimension measures the model's output dimension by embedding a fixed probe
// text. On failure it returns the hardcoded fallback instead of propagating
// the error.
func (e *Embedder) Dimension(ctx context.Context) int {
	res, err := e.Embed(ctx, e.probeText)
	if err != nil {
		e.logger.Warn("Dimension probe failed, using fallback",
			zap.Int("fallback", fallbackDimension),
			zap.Error(err),
		)
		return fallbackDimension
	}
	return len(res.Embedding)
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// request performs one embeddings call and validates the response shape.
func (e *Embedder) request(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "api_error").Inc()
		return domain.BatchEmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding response has %d vectors for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrEmbeddingProviderError,
		)
	}

	// Restore input order: the API is expected to mirror it, but Index is authoritative.
	data := make([]openai.Embedding, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	embeddings := make([][]float32, len(data))
	for i, item := range data {
		if len(item.Embedding) == 0 {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), "empty_embedding").Inc()
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"embedding response item %d has no embedding field: %w", i, domain.ErrEmbeddingProviderError,
			)
		}
		embeddings[i] = item.Embedding
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())

	totalTokens := resp.Usage.TotalTokens
	promptTokens := resp.Usage.PromptTokens
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").Add(float64(promptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").Add(float64(totalTokens))
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: promptTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbeddingProviderError.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractMessage(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractMessage extracts the "message" field from a JSON error body
// (DashScope error format).
func extractMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		return parsed.Message
	}
	return ""
}
