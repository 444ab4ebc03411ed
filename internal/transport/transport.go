// Package transport defines the authenticated HTTP call the Klarna client
// is built on. A Requester resolves a named credential, performs exactly one
// call and returns the raw response body, or an *HTTPError for non-2xx
// responses. Requesters never retry.
package transport

import (
	"context"
	"fmt"
	"net/url"
)

// Request is one outbound call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any        // JSON-encoded when non-nil
	Query   url.Values // appended only when non-empty
}

// Requester performs an authenticated request using the credential
// registered under credentialName.
type Requester interface {
	Do(ctx context.Context, credentialName string, req Request) ([]byte, error)
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode    int
	ErrorCode     string   // Klarna error_code, if the body carried one
	Messages      []string // Klarna error_messages
	CorrelationID string
	Body          []byte
}

func (e *HTTPError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("request failed with HTTP %d: %s", e.StatusCode, e.ErrorCode)
	}
	return fmt.Sprintf("request failed with HTTP %d", e.StatusCode)
}

// Message is the upstream summary, falling back to the status line.
func (e *HTTPError) Message() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Description joins the upstream error messages and the correlation id.
func (e *HTTPError) Description() string {
	desc := ""
	for i, m := range e.Messages {
		if i > 0 {
			desc += "; "
		}
		desc += m
	}
	if e.CorrelationID != "" {
		if desc != "" {
			desc += " "
		}
		desc += "(correlation_id: " + e.CorrelationID + ")"
	}
	return desc
}
