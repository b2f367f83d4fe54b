package rpc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dojo-planner/dojo/internal/platform/httpx"
)

// Sentinel errors. Each wraps the httpx error that decides its status code.
var (
	ErrMethodNotFound = fmt.Errorf("rpc: method not found: %w", httpx.ErrNotFound)
	ErrInvalidArgs    = fmt.Errorf("rpc: invalid arguments: %w", httpx.ErrValidation)
	ErrUnauthorized   = fmt.Errorf("rpc: %w", httpx.ErrUnauthorized)
	ErrTransport      = errors.New("rpc: transport failure")
)

// RemoteError reports a problem document returned by a remote host.
type RemoteError struct {
	Method string
	Status int
	Title  string
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("rpc: %s: %d %s: %s", e.Method, e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("rpc: %s: %d %s", e.Method, e.Status, e.Title)
}

// Unwrap maps the remote status back onto the local sentinels.
func (e *RemoteError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrMethodNotFound
	case http.StatusBadRequest:
		return ErrInvalidArgs
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return ErrTransport
	}
}
