package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/sirupsen/logrus"

	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/metrics"
)

const embeddingBatchSize = 96

// EmbeddingConfig holds configuration for the OpenAI embeddings endpoint.
type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
}

// EmbeddingService turns texts into vectors with the OpenAI embeddings API.
type EmbeddingService struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	client  openai.Client
	model   string
}

func NewEmbeddingService(cfg EmbeddingConfig, logger *logger.Logger, m *metrics.Metrics) *EmbeddingService {
	return &EmbeddingService{
		Logger:  logger.With(logrus.Fields{"component": "embeddings", "model": cfg.Model}),
		Metrics: m,
		client:  newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.MaxRetries, cfg.Timeout, cfg.HTTPClient),
		model:   cfg.Model,
	}
}

// Model returns the embedding model name.
func (th *EmbeddingService) Model() string {
	return th.model
}

// Embed returns one vector per text, in input order.
func (th *EmbeddingService) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := min(start+embeddingBatchSize, len(texts))
		batch := texts[start:end]

		began := time.Now()
		resp, err := th.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
			Model: openai.EmbeddingModel(th.model),
		})
		th.observe(began, err)
		if err != nil {
			err = mapOpenAIError(err)
			th.Logger.Error(fmt.Sprintf("Embedding request failed: %v", err))
			return nil, err
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(batch))
		}

		for i, item := range resp.Data {
			idx := int(item.Index)
			if idx < 0 || idx >= len(batch) {
				idx = i
			}
			vectors[start+idx] = item.Embedding
		}
	}
	return vectors, nil
}

func (th *EmbeddingService) observe(start time.Time, err error) {
	if th.Metrics == nil {
		return
	}
	th.Metrics.LLMRequests.WithLabelValues("embedding", metrics.Status(err)).Inc()
	th.Metrics.LLMLatency.WithLabelValues("embedding").Observe(time.Since(start).Seconds())
}
