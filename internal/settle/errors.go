package settle

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when a 200 response cannot be decoded
// into a verdict.
var ErrMalformedResponse = errors.New("settle: malformed response")

// RemoteError is a rejection declared by the settlement service, such as
// an insufficient balance.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("settle: rejected (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsInsufficientBalance reports the service's balance check failing.
func (e *RemoteError) IsInsufficientBalance() bool {
	return e.StatusCode == http.StatusBadRequest && e.Message == "Insufficient balance"
}

// IsBanned reports a blocked account.
func (e *RemoteError) IsBanned() bool {
	return e.StatusCode == http.StatusForbidden
}

// HTTPError is a non-200 response without an error message.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("settle: HTTP %d: %s", e.StatusCode, e.Body)
}

// TransportError wraps a connectivity failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("settle: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Message renders err for a player-facing notification.
func Message(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return "Cannot reach the game server. Please try again."
	}
	return "Error playing game. Please try again."
}
