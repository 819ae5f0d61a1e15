package gemini

import (
	"errors"
	"fmt"
)

// Kind classifies why a suggestion request failed.
type Kind int

const (
	KindMissingCredential Kind = iota + 1
	KindNetworkUnavailable
	KindAPIRequestFailed
	KindUnexpectedResponseShape
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindAPIRequestFailed:
		return "api_request_failed"
	case KindUnexpectedResponseShape:
		return "unexpected_response_shape"
	default:
		return "unknown"
	}
}

const (
	msgMissingCredential  = "API key required"
	msgNetworkUnavailable = "Network request failed. Check your internet connection."
	msgUnexpectedShape    = "Unexpected response structure from API."

	// DetailUnparseable is the detail of an APIRequestFailed error whose body
	// carried no usable error.message.
	DetailUnparseable = "Could not parse error response."
)

// Error is returned for every failed suggestion request. Status and Detail
// are only set for KindAPIRequestFailed.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingCredential:
		return msgMissingCredential
	case KindNetworkUnavailable:
		return msgNetworkUnavailable
	case KindAPIRequestFailed:
		return fmt.Sprintf("Request failed with status: %d - %s", e.Status, e.Detail)
	case KindUnexpectedResponseShape:
		return msgUnexpectedShape
	default:
		return "suggestion request failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the Err* values below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMissingCredential       = &Error{Kind: KindMissingCredential}
	ErrNetworkUnavailable      = &Error{Kind: KindNetworkUnavailable}
	ErrAPIRequestFailed        = &Error{Kind: KindAPIRequestFailed}
	ErrUnexpectedResponseShape = &Error{Kind: KindUnexpectedResponseShape}
)

func shapeError(reason string) *Error {
	return &Error{Kind: KindUnexpectedResponseShape, Err: errors.New(reason)}
}
