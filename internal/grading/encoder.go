package grading

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrEmptyFile is wrapped by EncodingError when a read yields no bytes.
var ErrEmptyFile = errors.New("file is empty")

// ErrUnsupportedMedia is wrapped by EncodingError when the detected media
// type does not match what the caller accepts.
var ErrUnsupportedMedia = errors.New("unsupported media type")

// EncodedFile is a file converted to a bare base64 payload.
type EncodedFile struct {
	Name     string
	MimeType string
	Data     string
}

// Part returns the payload as a request part input.
func (f EncodedFile) Part() EncodedPart {
	return EncodedPart{MimeType: f.MimeType, Data: f.Data}
}

// Encode reads r to the end and returns its standard base64 encoding with the
// media type detected from content.
func Encode(ctx context.Context, name string, r io.Reader) (EncodedFile, error) {
	if err := ctx.Err(); err != nil {
		return EncodedFile{}, &EncodingError{Name: name, Err: err}
	}
	if r == nil {
		return EncodedFile{}, &EncodingError{Name: name, Err: ErrEmptyFile}
	}

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, r); err != nil {
		return EncodedFile{}, &EncodingError{Name: name, Err: err}
	}
	if buf.Len() == 0 {
		return EncodedFile{}, &EncodingError{Name: name, Err: ErrEmptyFile}
	}

	return EncodedFile{
		Name:     name,
		MimeType: DetectMediaType(buf.Bytes()),
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// EncodeImage is Encode restricted to image media types.
func EncodeImage(ctx context.Context, name string, r io.Reader) (EncodedFile, error) {
	file, err := Encode(ctx, name, r)
	if err != nil {
		return EncodedFile{}, err
	}
	if !isImage(file.MimeType) {
		return EncodedFile{}, &EncodingError{Name: name, Err: ErrUnsupportedMedia}
	}
	return file, nil
}

// DetectMediaType sniffs the payload and returns its media type without
// parameters.
func DetectMediaType(payload []byte) string {
	detected := mimetype.Detect(payload).String()
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = detected[:idx]
	}
	return strings.TrimSpace(strings.ToLower(detected))
}

// StripDataURI removes a data URL header and returns the bare base64 payload.
// Input without a header is returned trimmed once it is confirmed to be
// valid base64.
func StripDataURI(value string) (string, error) {
	payload := strings.TrimSpace(value)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma < 0 {
			return "", &EncodingError{Err: errors.New("data url has no payload")}
		}
		header := payload[len("data:"):comma]
		if !strings.HasSuffix(header, ";base64") {
			return "", &EncodingError{Err: errors.New("data url is not base64 encoded")}
		}
		payload = payload[comma+1:]
	}

	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		return "", &EncodingError{Err: ErrEmptyFile}
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", &EncodingError{Err: err}
	}
	return payload, nil
}
