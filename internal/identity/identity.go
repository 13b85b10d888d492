// Package identity supplies the stable player identity every round is
// settled against.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound means no identity has been stored yet.
var ErrNotFound = errors.New("identity: not found")

// Provider returns the current player's identity.
type Provider interface {
	Identity(ctx context.Context) (string, error)
}

// Static is a fixed identity, typically from configuration.
type Static string

func (s Static) Identity(context.Context) (string, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

// Chain asks each provider in turn and returns the first identity found.
type Chain []Provider

func (c Chain) Identity(ctx context.Context) (string, error) {
	for _, p := range c {
		id, err := p.Identity(ctx)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", ErrNotFound
}
