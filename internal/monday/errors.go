package monday

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed API call for retry and verification
// decisions.
type ErrorKind int

const (
	// ErrKindConnection covers dial/TLS failures and reset connections
	ErrKindConnection ErrorKind = iota
	// ErrKindTimeout covers read timeouts after a connection was established
	ErrKindTimeout
	// ErrKindRateLimited covers HTTP 429 and in-envelope rate/complexity hints
	ErrKindRateLimited
	// ErrKindServerFault covers HTTP 5xx
	ErrKindServerFault
	// ErrKindProxyAuth covers HTTP 407, a configuration problem
	ErrKindProxyAuth
	// ErrKindMalformed covers 200 responses that are not valid JSON
	ErrKindMalformed
	// ErrKindGraphQL covers domain-level GraphQL errors
	ErrKindGraphQL
	// ErrKindHTTP covers any other unexpected HTTP status
	ErrKindHTTP
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindConnection:
		return "connection"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindRateLimited:
		return "rate_limited"
	case ErrKindServerFault:
		return "server_fault"
	case ErrKindProxyAuth:
		return "proxy_auth"
	case ErrKindMalformed:
		return "malformed_response"
	case ErrKindGraphQL:
		return "graphql"
	default:
		return "http"
	}
}

// APIError is the terminal error of one logical API call, raised after
// the client's own retry budget is spent.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("monday: %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("monday: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("monday: %s", e.Kind)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transport-level failure
// (connection or read timeout) after which a non-idempotent mutation
// may have committed server-side. The upsert engine uses this to gate
// its verification read.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == ErrKindConnection || apiErr.Kind == ErrKindTimeout
}
