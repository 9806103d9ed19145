package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const providerGemini = "gemini"

// GeminiConfig defines configuration options for the Gemini client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	NewsModel  string
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// GeminiClient talks to the Gemini generateContent REST endpoint.
type GeminiClient struct {
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type geminiSearchRequest struct {
	Contents []Content    `json:"contents"`
	Tools    []geminiTool `json:"tools"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason      string `json:"finishReason"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type agentResult struct {
	code int
	body []byte
	errs []error
}

// NewGeminiClient builds a Gemini client using the provided configuration.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.NewsModel == "" {
		cfg.NewsModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &GeminiClient{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/exam-grader-api/pkg/ai/gemini"),
		logger: cfg.Logger.With().Str("component", "gemini_client").Logger(),
	}, nil
}

// Generate sends the multimodal request and returns the first text part of
// the first candidate that has one.
func (c *GeminiClient) Generate(parent context.Context, req GenerateRequest) (string, error) {
	ctx, span := c.tracer.Start(parent, "gemini.generate", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("parts", len(req.Parts())),
	))
	defer span.End()

	start := time.Now()
	var resp geminiResponse
	err := c.post(ctx, c.cfg.Model, req, &resp)
	aiDuration.WithLabelValues(providerGemini, c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", c.fail(span, c.cfg.Model, err)
	}

	text, reason := resp.firstText()
	if text == "" {
		return "", c.fail(span, c.cfg.Model, &EmptyResponseError{Provider: providerGemini, Reason: reason})
	}

	c.logger.Debug().Str("model", c.cfg.Model).Int("chars", len(text)).Msg("gemini response received")
	return text, nil
}

// SearchNews asks the news model with Google Search grounding and returns up
// to limit web sources from the grounding metadata.
func (c *GeminiClient) SearchNews(parent context.Context, prompt string, limit int) ([]NewsItem, error) {
	ctx, span := c.tracer.Start(parent, "gemini.search_news", trace.WithAttributes(
		attribute.String("model", c.cfg.NewsModel),
	))
	defer span.End()

	payload := geminiSearchRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
		Tools:    []geminiTool{{GoogleSearch: &struct{}{}}},
	}

	start := time.Now()
	var resp geminiResponse
	err := c.post(ctx, c.cfg.NewsModel, payload, &resp)
	aiDuration.WithLabelValues(providerGemini, c.cfg.NewsModel).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.fail(span, c.cfg.NewsModel, err)
	}

	items := resp.webSources(limit)
	span.SetAttributes(attribute.Int("news.items", len(items)))
	return items, nil
}

func (c *GeminiClient) endpoint(model string) string {
	return fmt.Sprintf("%s/%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.APIVersion, model)
}

// post performs exactly one request. The agent is bounded by the configured
// timeout; cancellation of ctx abandons the call and its late response.
func (c *GeminiClient) post(ctx context.Context, model string, payload interface{}, out *geminiResponse) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Provider: providerGemini, Err: err}
	}

	agent := fiber.Post(c.endpoint(model))
	agent.Set("x-goog-api-key", c.cfg.APIKey)
	agent.Timeout(c.cfg.Timeout)
	agent.JSON(payload)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return &TransportError{Provider: providerGemini, Err: fmt.Errorf("prepare request: %w", err)}
	}

	done := make(chan agentResult, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- agentResult{code: code, body: body, errs: errs}
	}()

	var res agentResult
	select {
	case <-ctx.Done():
		return &TransportError{Provider: providerGemini, Err: ctx.Err()}
	case res = <-done:
	}

	if len(res.errs) > 0 {
		return &TransportError{Provider: providerGemini, Err: errors.Join(res.errs...)}
	}
	if res.code < fiber.StatusOK || res.code >= fiber.StatusMultipleChoices {
		return &TransportError{Provider: providerGemini, StatusCode: res.code, Err: errors.New(apiErrorMessage(res.body))}
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return &EmptyResponseError{Provider: providerGemini, Reason: "response body is not a JSON envelope"}
	}
	return nil
}

func (c *GeminiClient) fail(span trace.Span, model string, err error) error {
	kind := failureTransport
	var empty *EmptyResponseError
	if errors.As(err, &empty) {
		kind = failureEmpty
	}
	aiFailures.WithLabelValues(providerGemini, model, kind).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	c.logger.Warn().Err(err).Str("model", model).Str("kind", kind).Msg("gemini request failed")
	return err
}

func (r geminiResponse) firstText() (string, string) {
	if len(r.Candidates) == 0 {
		if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
			return "", "prompt blocked: " + r.PromptFeedback.BlockReason
		}
		return "", "no candidates"
	}
	for _, candidate := range r.Candidates {
		for _, part := range candidate.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text, ""
			}
		}
	}
	if reason := r.Candidates[0].FinishReason; reason != "" {
		return "", "no text parts, finish reason " + reason
	}
	return "", "no text parts"
}

func (r geminiResponse) webSources(limit int) []NewsItem {
	items := make([]NewsItem, 0, limit)
	if len(r.Candidates) == 0 || r.Candidates[0].GroundingMetadata == nil {
		return items
	}
	for _, chunk := range r.Candidates[0].GroundingMetadata.GroundingChunks {
		if limit > 0 && len(items) >= limit {
			break
		}
		if chunk.Web == nil || strings.TrimSpace(chunk.Web.URI) == "" {
			continue
		}
		items = append(items, NewsItem{Title: strings.TrimSpace(chunk.Web.Title), URI: chunk.Web.URI})
	}
	return items
}

func apiErrorMessage(body []byte) string {
	var payload geminiErrorBody
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		if payload.Error.Status != "" {
			return payload.Error.Status + ": " + payload.Error.Message
		}
		return payload.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 256 {
		text = text[:256]
	}
	if text == "" {
		return "empty error body"
	}
	return text
}
