package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"

	"messenger-connector/internal/domain/dto"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/metrics"
)

// ErrRateLimited is returned when the model provider answers 429.
var ErrRateLimited = errors.New("language model rate limited")

// ErrEmptyCompletion is returned when the model answers without any text.
var ErrEmptyCompletion = errors.New("language model returned an empty completion")

// ChatConfig holds configuration for an OpenAI-compatible chat endpoint.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
	HTTPClient  *http.Client // Optional (tests)
	Kind        string       // metrics label: "reply", "draft", "extraction", "summary"
}

// QueryAIService sends chat completions to OpenAI or a DeepSeek-compatible API.
type QueryAIService struct {
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	client      openai.Client
	model       string
	temperature float64
	kind        string
}

var _ Iservices.IQueryAIService = (*QueryAIService)(nil)

func NewQueryAIService(cfg ChatConfig, logger *logger.Logger, m *metrics.Metrics) *QueryAIService {
	if cfg.Kind == "" {
		cfg.Kind = "reply"
	}
	return &QueryAIService{
		Logger:      logger.With(logrus.Fields{"component": "llm", "model": cfg.Model}),
		Metrics:     m,
		client:      newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.MaxRetries, cfg.Timeout, cfg.HTTPClient),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		kind:        cfg.Kind,
	}
}

func newOpenAIClient(apiKey, baseURL string, maxRetries int, timeout time.Duration, httpClient *http.Client) openai.Client {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(maxRetries),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

// ExecuteQueryAI sends one system and one user message and returns the
// first choice of the completion.
func (th *QueryAIService) ExecuteQueryAI(ctx context.Context, systemPrompt string, userPrompt string) (dto.QueryAIResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	start := time.Now()
	resp, err := th.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(th.model),
		Messages:    messages,
		Temperature: openai.Float(th.temperature),
	})
	th.observe(start, err)
	if err != nil {
		err = mapOpenAIError(err)
		th.Logger.Error(fmt.Sprintf("Chat completion (%s) failed: %v", th.kind, err))
		return dto.QueryAIResponse{}, err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		th.Logger.Warn(fmt.Sprintf("Chat completion (%s) returned no content", th.kind))
		return dto.QueryAIResponse{}, ErrEmptyCompletion
	}

	return dto.QueryAIResponse{
		Response:         strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (th *QueryAIService) observe(start time.Time, err error) {
	if th.Metrics == nil {
		return
	}
	th.Metrics.LLMRequests.WithLabelValues(th.kind, metrics.Status(err)).Inc()
	th.Metrics.LLMLatency.WithLabelValues(th.kind).Observe(time.Since(start).Seconds())
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("language model error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("language model error (status %d)", apiErr.StatusCode)
	}
	return err
}
