package models

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds raised at the data-provider boundary.
var (
	ErrNetworkFault      = errors.New("network fault")
	ErrMalformedResponse = errors.New("malformed response")
)

// RemoteError is a non-2xx answer from the prediction API.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("remote status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("remote status %d", e.Status)
}

// Classify labels an error for logs and metrics.
func Classify(err error) string {
	var re *RemoteError
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &re):
		return "remote"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrNetworkFault), errors.Is(err, context.DeadlineExceeded):
		return "network"
	default:
		return "other"
	}
}
