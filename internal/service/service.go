// Package service is the mock backend: every call waits a simulated
// latency, checks the caller's bearer token and then works on the shared
// in-memory store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/auth"
	"github.com/EmaRG1/user-manager/internal/mockdb"
)

var (
	ErrMissingToken       = errors.New("missing_token")
	ErrInvalidToken       = auth.ErrInvalidToken
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidInput       = errors.New("invalid_request")
	ErrNotFound           = mockdb.ErrNotFound
	ErrDuplicateEmail     = mockdb.ErrDuplicateEmail
)

// TokenSource yields the bearer token for the current caller.
type TokenSource interface {
	Token(ctx context.Context) string
}

type TokenSourceFunc func(ctx context.Context) string

func (f TokenSourceFunc) Token(ctx context.Context) string { return f(ctx) }

// ContextTokens reads the token attached with auth.WithToken.
var ContextTokens TokenSource = TokenSourceFunc(auth.TokenFromContext)

type Latency struct {
	Read        time.Duration
	Write       time.Duration
	RecordWrite time.Duration
	Login       time.Duration
	Logout      time.Duration
}

type Deps struct {
	Store    *mockdb.Store
	Codec    *auth.Codec
	Tokens   TokenSource
	Latency  Latency
	TokenTTL any
	Log      zerolog.Logger
}

type Services struct {
	Auth      *Auth
	Users     *Users
	Studies   *Studies
	Addresses *Addresses
	Dashboard *Dashboard
}

func New(deps Deps) *Services {
	if deps.Tokens == nil {
		deps.Tokens = ContextTokens
	}
	g := gate{tokens: deps.Tokens, codec: deps.Codec}
	return &Services{
		Auth:      &Auth{store: deps.Store, codec: deps.Codec, ttl: deps.TokenTTL, latency: deps.Latency, log: deps.Log.With().Str("service", "auth").Logger()},
		Users:     &Users{store: deps.Store, gate: g, latency: deps.Latency},
		Studies:   &Studies{store: deps.Store, gate: g, latency: deps.Latency},
		Addresses: &Addresses{store: deps.Store, gate: g, latency: deps.Latency},
		Dashboard: &Dashboard{store: deps.Store, gate: g, latency: deps.Latency},
	}
}

type gate struct {
	tokens TokenSource
	codec  *auth.Codec
}

// enter reads the caller's token, waits delay and then verifies the token.
func (g gate) enter(ctx context.Context, delay time.Duration) error {
	token := g.tokens.Token(ctx)
	if err := sleep(ctx, delay); err != nil {
		return err
	}
	if token == "" {
		return ErrMissingToken
	}
	if !g.codec.Verify(token) {
		return ErrInvalidToken
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func notFound(entity string, id int) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}
