package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dupdex/dupdex/domain/search"
	"github.com/dupdex/dupdex/internal/config"
)

// errEmbeddingCountMismatch indicates the API returned fewer embedding
// vectors than requested. Transient upstream issues can produce partial
// responses behind a 200 status, so this is retryable.
var errEmbeddingCountMismatch = errors.New("embedding response count mismatch")

// OpenAIEmbedder generates embeddings through an OpenAI-compatible API.
// Returned vectors are normalized to unit length so cosine similarity can be
// computed as a plain dot product by pgvector.
type OpenAIEmbedder struct {
	client        *openai.Client
	model         string
	dimensions    int
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewOpenAIEmbedder creates an embedder from endpoint configuration.
func NewOpenAIEmbedder(endpoint config.Endpoint) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(endpoint.APIKey())
	if endpoint.BaseURL() != "" {
		clientCfg.BaseURL = endpoint.BaseURL()
	}
	if endpoint.Timeout() > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: endpoint.Timeout()}
	}

	return &OpenAIEmbedder{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         endpoint.Model(),
		dimensions:    endpoint.Dimensions(),
		maxRetries:    endpoint.MaxRetries(),
		initialDelay:  endpoint.InitialDelay(),
		backoffFactor: endpoint.BackoffFactor(),
	}
}

// Embed generates embeddings for the given texts in a single API call.
func (p *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	var resp openai.EmbeddingResponse

	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateEmbeddings(ctx, req)
		if callErr != nil {
			return callErr
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts", errEmbeddingCountMismatch, len(resp.Data), len(texts))
		}
		return nil
	})
	if err != nil {
		return nil, p.wrapError(err)
	}

	vectors := make([][]float64, len(resp.Data))
	for i, data := range resp.Data {
		v := make([]float64, len(data.Embedding))
		for j, f := range data.Embedding {
			v[j] = float64(f)
		}
		vectors[i] = normalize(v)
	}
	return vectors, nil
}

// withRetry executes the function with exponential backoff retry.
func (p *OpenAIEmbedder) withRetry(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !p.isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable determines if an error should be retried.
func (p *OpenAIEmbedder) isRetryable(err error) bool {
	if errors.Is(err, errEmbeddingCountMismatch) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return true
	}

	return false
}

// wrapError maps a failed call to ErrRemoteUnavailable with status detail.
func (p *OpenAIEmbedder) wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s",
			ErrRemoteUnavailable,
			NewProviderError("embedding", apiErr.HTTPStatusCode, apiErr.Message, err))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %s",
			ErrRemoteUnavailable,
			NewProviderError("embedding", reqErr.HTTPStatusCode, reqErr.Error(), err))
	}

	return fmt.Errorf("%w: %s", ErrRemoteUnavailable, err)
}

func normalize(v []float64) []float64 {
	var mag float64
	for _, f := range v {
		mag += f * f
	}
	mag = math.Sqrt(mag)
	if mag == 0 {
		return v
	}
	for i := range v {
		v[i] /= mag
	}
	return v
}

var _ search.Embedder = (*OpenAIEmbedder)(nil)
