package grading_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-grader-api/internal/grading"
)

var pngHeader = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestEncodeDetectsMediaType(t *testing.T) {
	file, err := grading.Encode(context.Background(), "sheet.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.Equal(t, "image/png", file.MimeType)
	require.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), file.Data)
	require.Equal(t, grading.EncodedPart{MimeType: "image/png", Data: file.Data}, file.Part())

	pdf, err := grading.Encode(context.Background(), "answer.pdf", bytes.NewReader([]byte("%PDF-1.4\n1 0 obj\n")))
	require.NoError(t, err)
	require.Equal(t, "application/pdf", pdf.MimeType)
}

func TestEncodeFailures(t *testing.T) {
	_, err := grading.Encode(context.Background(), "sheet.png", failingReader{})
	var encoding *grading.EncodingError
	require.ErrorAs(t, err, &encoding)
	require.Equal(t, "sheet.png", encoding.Name)

	_, err = grading.Encode(context.Background(), "empty.png", bytes.NewReader(nil))
	require.ErrorIs(t, err, grading.ErrEmptyFile)

	_, err = grading.EncodeImage(context.Background(), "answer.pdf", bytes.NewReader([]byte("%PDF-1.4\n")))
	require.ErrorIs(t, err, grading.ErrUnsupportedMedia)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = grading.Encode(ctx, "sheet.png", bytes.NewReader(pngHeader))
	require.ErrorAs(t, err, &encoding)
}

func TestStripDataURI(t *testing.T) {
	payload, err := grading.StripDataURI("data:application/pdf;base64,JVBERi0x\nLjQK")
	require.NoError(t, err)
	require.Equal(t, "JVBERi0xLjQK", payload)

	payload, err = grading.StripDataURI("  JVBERi0xLjQK ")
	require.NoError(t, err)
	require.Equal(t, "JVBERi0xLjQK", payload)

	for _, input := range []string{"data:text/plain,hello", "data:application/pdf;base64", "%%%not-base64", ""} {
		_, err := grading.StripDataURI(input)
		var encoding *grading.EncodingError
		require.ErrorAs(t, err, &encoding, input)
	}
}
