package grading_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-grader-api/internal/grading"
	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

func TestBuildRequestPartOrder(t *testing.T) {
	pairs := []struct {
		reference  grading.EncodedPart
		submission grading.EncodedPart
	}{
		{grading.EncodedPart{MimeType: ai.MimeTypePDF, Data: "UERG"}, grading.EncodedPart{MimeType: "image/png", Data: "iVBO"}},
		{grading.EncodedPart{MimeType: ai.MimeTypePDF, Data: "JVBERi0xLjQK"}, grading.EncodedPart{MimeType: "image/jpeg", Data: "/9j/"}},
		{grading.EncodedPart{MimeType: ai.MimeTypePDF, Data: "QQ=="}, grading.EncodedPart{MimeType: "image/webp", Data: "UklGRg=="}},
	}

	for _, pair := range pairs {
		req, err := grading.BuildRequest("instruction", pair.reference, pair.submission)
		require.NoError(t, err)
		require.Len(t, req.Contents, 1)

		parts := req.Parts()
		require.Len(t, parts, 3)
		require.Equal(t, "instruction", parts[0].Text)
		require.Nil(t, parts[0].InlineData)
		require.Equal(t, &ai.InlineData{MimeType: pair.reference.MimeType, Data: pair.reference.Data}, parts[1].InlineData)
		require.Equal(t, &ai.InlineData{MimeType: pair.submission.MimeType, Data: pair.submission.Data}, parts[2].InlineData)
	}
}

func TestBuildRequestDefaultsInstruction(t *testing.T) {
	req, err := grading.BuildRequest("  ", grading.EncodedPart{MimeType: ai.MimeTypePDF, Data: "UERG"}, grading.EncodedPart{MimeType: "image/png", Data: "iVBO"})
	require.NoError(t, err)
	require.Equal(t, grading.DefaultInstruction, req.Parts()[0].Text)
}

func TestBuildRequestRefusesMissingReference(t *testing.T) {
	submissions := []grading.EncodedPart{
		{MimeType: "image/png", Data: "iVBO"},
		{MimeType: "image/jpeg", Data: ""},
		{},
	}
	for _, submission := range submissions {
		_, err := grading.BuildRequest(grading.DefaultInstruction, grading.EncodedPart{MimeType: ai.MimeTypePDF}, submission)
		var precondition *grading.PreconditionError
		require.True(t, errors.As(err, &precondition))
		require.Equal(t, "model answer", precondition.Missing)
	}
}

func TestBuildRequestRequiresMediaTypes(t *testing.T) {
	_, err := grading.BuildRequest("x", grading.EncodedPart{Data: "UERG"}, grading.EncodedPart{MimeType: "image/png", Data: "iVBO"})
	var precondition *grading.PreconditionError
	require.ErrorAs(t, err, &precondition)

	_, err = grading.BuildRequest("x", grading.EncodedPart{MimeType: ai.MimeTypePDF, Data: "UERG"}, grading.EncodedPart{Data: "iVBO"})
	require.ErrorAs(t, err, &precondition)
	require.Equal(t, "student image media type", precondition.Missing)
}
