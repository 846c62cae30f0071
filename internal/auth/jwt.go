package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/model"
)

var (
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrInvalidToken   = errors.New("invalid_token")
)

// Payload is the identity snapshot carried in a token. Studies and
// Addresses reflect the records at issue time only.
type Payload struct {
	UserID    int             `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      model.Role      `json:"role"`
	Studies   []model.Study   `json:"studies"`
	Addresses []model.Address `json:"addresses"`
}

type Claims struct {
	Payload
	jwt.RegisteredClaims
}

type Codec struct {
	secret      []byte
	maxEmbedded int
	log         zerolog.Logger
	now         func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithMaxEmbedded caps the studies and addresses copied into a token.
// Zero or negative disables the cap.
func WithMaxEmbedded(n int) Option {
	return func(c *Codec) { c.maxEmbedded = n }
}

func NewCodec(secret string, log zerolog.Logger, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(secret),
		log:    log.With().Str("component", "token").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs payload for ttl, which may be a time.Duration, an integer
// number of seconds or a "<n>h|m|s" string.
func (c *Codec) Issue(payload Payload, ttl any) (string, error) {
	if payload.UserID == 0 || payload.Email == "" {
		return "", ErrInvalidPayload
	}
	lifetime, ok := ParseTTL(ttl)
	if !ok {
		c.log.Warn().Interface("ttl", ttl).Msg("unrecognized token ttl, using 1h")
	}

	payload.Studies = capped(payload.Studies, c.maxEmbedded)
	payload.Addresses = capped(payload.Addresses, c.maxEmbedded)

	now := c.now().UTC()
	claims := Claims{
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify reports whether token carries a valid signature and has not
// expired. Failures are logged, never returned.
func (c *Codec) Verify(token string) bool {
	if token == "" {
		return false
	}
	_, err := c.Parse(token)
	if err != nil {
		c.log.Debug().Err(err).Msg("token verification failed")
		return false
	}
	return true
}

// Parse verifies token and returns its claims.
func (c *Codec) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Decode returns the claims without checking the signature. Only use it
// on tokens that were already verified or come from a trusted source.
func (c *Codec) Decode(tokenString string) (*Claims, bool) {
	if tokenString == "" {
		return nil, false
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		c.log.Debug().Err(err).Msg("token decode failed")
		return nil, false
	}
	return claims, true
}

// RemainingSeconds returns exp minus now. The second result is false when
// the token cannot be decoded or has no expiry.
func (c *Codec) RemainingSeconds(tokenString string) (int64, bool) {
	claims, ok := c.Decode(tokenString)
	if !ok || claims.ExpiresAt == nil {
		return 0, false
	}
	return claims.ExpiresAt.Unix() - c.now().Unix(), true
}

func capped[T any](items []T, max int) []T {
	if items == nil {
		return []T{}
	}
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
