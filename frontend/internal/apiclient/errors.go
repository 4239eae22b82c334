package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy. Use errors.Is against these; use errors.As with *APIError to
// read the server's status and body.
//
//	chatrooms, err := client.ListChatrooms(ctx)
//	if errors.Is(err, apiclient.ErrUnauthorized) {
//		// the session has already been cleared and session.invalidated emitted
//	}
var (
	// ErrTransport: the server was never reached or never answered.
	ErrTransport = errors.New("apiclient: transport failure")

	// ErrUnauthorized: the server answered 401.
	ErrUnauthorized = errors.New("apiclient: unauthorized")

	// ErrApplication: the server answered with any other non-2xx status.
	ErrApplication = errors.New("apiclient: application error")

	// ErrDecode: a 2xx answer did not carry the expected JSON.
	ErrDecode = errors.New("apiclient: unexpected response body")

	// ErrResponseTooLarge: the body exceeded the client's read limit. It is
	// always wrapped together with ErrTransport.
	ErrResponseTooLarge = errors.New("apiclient: response body too large")
)

// APIError is a non-2xx answer, passed through verbatim.
type APIError struct {
	Status    int
	Message   string // backend {"error": "..."} when present
	Body      []byte
	Method    string
	Path      string
	RequestID string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("apiclient: %s %s: %d: %s", e.Method, e.Path, e.Status, msg)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return ErrApplication
}

func newAPIError(resp *Response) *APIError {
	e := &APIError{
		Status:    resp.Status,
		Body:      resp.Body,
		RequestID: resp.RequestID,
	}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.Path = resp.Request.Path
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(resp.Body, &payload) == nil {
		e.Message = payload.Error
	}
	return e
}
