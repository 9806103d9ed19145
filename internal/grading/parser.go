package grading

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/exam-grader-api/internal/models"
)

// Result is the validated grading outcome.
type Result = models.GradeResult

//go:embed result_schema.json
var resultSchemaJSON string

var (
	resultSchema = jsonschema.MustCompileString("grade-result.json", resultSchemaJSON)
	fencedJSON   = regexp.MustCompile("(?s)```(?i:json)[ \\t]*\\r?\\n(.*?)\\r?\\n[ \\t]*```")
)

// ParseResult extracts a result from raw model text. A ```json fenced block
// is preferred; otherwise the whole text is decoded. Out-of-range scores are
// rejected, never clamped.
func ParseResult(raw string) (Result, error) {
	candidate := extractCandidate(raw)
	if candidate == "" {
		return Result{}, &MalformedResultError{Reason: "empty response text"}
	}

	decoder := json.NewDecoder(strings.NewReader(candidate))
	decoder.UseNumber()

	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return Result{}, &MalformedResultError{Reason: "invalid json", Err: err}
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return Result{}, &MalformedResultError{Reason: "trailing data after json object"}
	}
	if err := resultSchema.Validate(document); err != nil {
		return Result{}, &MalformedResultError{Reason: "schema mismatch", Err: err}
	}

	fields := document.(map[string]interface{})
	score, err := finiteNumber(fields["score"])
	if err != nil {
		return Result{}, &MalformedResultError{Reason: "score", Err: err}
	}
	maxScore, err := finiteNumber(fields["max_score"])
	if err != nil {
		return Result{}, &MalformedResultError{Reason: "max_score", Err: err}
	}
	if score < 0 {
		return Result{}, &MalformedResultError{Reason: fmt.Sprintf("score %v is negative", score)}
	}
	if score > maxScore {
		return Result{}, &MalformedResultError{Reason: fmt.Sprintf("score %v exceeds max_score %v", score, maxScore)}
	}

	rawMistakes := fields["mistakes"].([]interface{})
	mistakes := make([]string, 0, len(rawMistakes))
	for _, item := range rawMistakes {
		mistakes = append(mistakes, item.(string))
	}

	return Result{
		Score:    score,
		MaxScore: maxScore,
		Feedback: fields["feedback"].(string),
		Mistakes: mistakes,
	}, nil
}

// FormatFenced renders a result the way the model is expected to answer.
func FormatFenced(result Result) string {
	if result.Mistakes == nil {
		result.Mistakes = []string{}
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return ""
	}
	return "```json\n" + string(payload) + "\n```"
}

func extractCandidate(raw string) string {
	if match := fencedJSON.FindStringSubmatch(raw); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(raw)
}

func finiteNumber(value interface{}) (float64, error) {
	number, ok := value.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number")
	}
	parsed, err := number.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return parsed, nil
}
