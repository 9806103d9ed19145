package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const providerOpenAI = "openai"

// OpenAIConfig defines configuration options for an OpenAI-compatible
// chat completion endpoint. BaseURL may point at any compatible gateway.
//
// The chat API only takes images in image_url parts. InlineDocuments sends
// other inline data the same way, for gateways that accept document data
// URIs there. Without it, requests carrying a non-image part fail before
// anything is sent.
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	Temperature     float32
	Timeout         time.Duration
	InlineDocuments bool
	Logger          zerolog.Logger
}

// OpenAICompatClient implements Generator against the chat completion API.
type OpenAICompatClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAICompatClient builds a new client using the provided configuration.
func NewOpenAICompatClient(cfg OpenAIConfig) (*OpenAICompatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAICompatClient{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/exam-grader-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_client").Logger(),
	}, nil
}

// Generate sends the request as a single multimodal user message.
func (c *OpenAICompatClient) Generate(parent context.Context, req GenerateRequest) (string, error) {
	ctx, span := c.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("parts", len(req.Parts())),
	))
	defer span.End()

	if err := c.checkMedia(req); err != nil {
		return "", c.fail(span, err)
	}

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: chatParts(req),
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(providerOpenAI, c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", c.fail(span, &TransportError{Provider: providerOpenAI, StatusCode: statusCodeOf(err), Err: err})
	}

	if len(resp.Choices) == 0 {
		return "", c.fail(span, &EmptyResponseError{Provider: providerOpenAI, Reason: "no choices"})
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", c.fail(span, &EmptyResponseError{Provider: providerOpenAI, Reason: "empty message content"})
	}

	span.SetAttributes(attribute.Int("usage.total_tokens", resp.Usage.TotalTokens))
	return content, nil
}

func (c *OpenAICompatClient) fail(span trace.Span, err error) error {
	kind := failureTransport
	var (
		empty *EmptyResponseError
		media *UnsupportedMediaError
	)
	switch {
	case errors.As(err, &empty):
		kind = failureEmpty
	case errors.As(err, &media):
		kind = failureMedia
	}
	aiFailures.WithLabelValues(providerOpenAI, c.cfg.Model, kind).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	c.logger.Warn().Err(err).Str("model", c.cfg.Model).Str("kind", kind).Msg("openai request failed")
	return err
}

// SupportsMediaType reports whether inline data of mimeType can be sent.
func (c *OpenAICompatClient) SupportsMediaType(mimeType string) bool {
	return c.cfg.InlineDocuments || strings.HasPrefix(mimeType, "image/")
}

func (c *OpenAICompatClient) checkMedia(req GenerateRequest) error {
	for _, part := range req.Parts() {
		if part.InlineData != nil && !c.SupportsMediaType(part.InlineData.MimeType) {
			return &UnsupportedMediaError{Provider: providerOpenAI, MimeType: part.InlineData.MimeType}
		}
	}
	return nil
}

func chatParts(req GenerateRequest) []openai.ChatMessagePart {
	source := req.Parts()
	parts := make([]openai.ChatMessagePart, 0, len(source))
	for _, part := range source {
		if part.InlineData != nil {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + part.InlineData.MimeType + ";base64," + part.InlineData.Data,
					Detail: openai.ImageURLDetailHigh,
				},
			})
			continue
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: part.Text,
		})
	}
	return parts
}

func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
