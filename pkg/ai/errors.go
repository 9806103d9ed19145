package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
)

// TransportError reports a failed exchange with the model endpoint: network
// failure, timeout, cancellation or a non-2xx status.
type TransportError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s transport: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the failure was a deadline expiry.
func (e *TransportError) IsTimeout() bool {
	return errors.Is(e.Err, fasthttp.ErrTimeout) || errors.Is(e.Err, context.DeadlineExceeded)
}

// UnsupportedMediaError reports an inline part the endpoint cannot accept.
// No request is sent.
type UnsupportedMediaError struct {
	Provider string
	MimeType string
}

func (e *UnsupportedMediaError) Error() string {
	return fmt.Sprintf("%s cannot accept inline %s parts", e.Provider, e.MimeType)
}

// EmptyResponseError reports a response that carried no usable text.
type EmptyResponseError struct {
	Provider string
	Reason   string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s returned no text: %s", e.Provider, e.Reason)
}
