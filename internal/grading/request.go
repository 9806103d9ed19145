package grading

import (
	"strings"

	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

// DefaultInstruction is sent as the first part of every grading request.
const DefaultInstruction = "You are a strict academic professor. You are provided with a Model Answer (PDF) and a Student's Handwritten Answer (Image). Grade the student's answer strictly against the model answer. Provide the response in a JSON format with the following keys: 'score' (number), 'max_score' (number), 'feedback' (string), and 'mistakes' (string[]). Do not include any other text or formatting outside the JSON."

// EncodedPart is an encoded payload with its declared media type.
type EncodedPart struct {
	MimeType string
	Data     string
}

// BuildRequest assembles [instruction, reference, submission] as the parts
// of a single content block.
func BuildRequest(instruction string, reference, submission EncodedPart) (ai.GenerateRequest, error) {
	if strings.TrimSpace(reference.Data) == "" {
		return ai.GenerateRequest{}, &PreconditionError{Missing: "model answer"}
	}
	if strings.TrimSpace(reference.MimeType) == "" {
		return ai.GenerateRequest{}, &PreconditionError{Missing: "model answer media type"}
	}
	if strings.TrimSpace(submission.Data) == "" {
		return ai.GenerateRequest{}, &PreconditionError{Missing: "student image"}
	}
	if strings.TrimSpace(submission.MimeType) == "" {
		return ai.GenerateRequest{}, &PreconditionError{Missing: "student image media type"}
	}
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}

	parts := []ai.Part{
		{Text: instruction},
		{InlineData: &ai.InlineData{MimeType: reference.MimeType, Data: reference.Data}},
		{InlineData: &ai.InlineData{MimeType: submission.MimeType, Data: submission.Data}},
	}
	return ai.GenerateRequest{Contents: []ai.Content{{Parts: parts}}}, nil
}
