package ai

import "context"

// MimeTypePDF is the media type of stored model-answer documents.
const MimeTypePDF = "application/pdf"

// InlineData carries a base64 payload and its media type.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one element of a multimodal prompt. Exactly one field is set.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// Content groups the parts of a single conversational turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerateRequest is the provider-neutral multimodal request.
type GenerateRequest struct {
	Contents []Content `json:"contents"`
}

// Parts returns the parts of the first content block.
func (r GenerateRequest) Parts() []Part {
	if len(r.Contents) == 0 {
		return nil
	}
	return r.Contents[0].Parts
}

// Generator sends a multimodal request to a model and returns its raw text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// NewsItem is a single grounded web result.
type NewsItem struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// NewsSearcher finds headlines through a search-grounded model.
type NewsSearcher interface {
	SearchNews(ctx context.Context, prompt string, limit int) ([]NewsItem, error)
}
