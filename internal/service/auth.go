package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/auth"
	"github.com/EmaRG1/user-manager/internal/crypto"
	"github.com/EmaRG1/user-manager/internal/mockdb"
	"github.com/EmaRG1/user-manager/internal/model"
)

type Auth struct {
	store   *mockdb.Store
	codec   *auth.Codec
	ttl     any
	latency Latency
	log     zerolog.Logger
}

type LoginResult struct {
	Token string        `json:"token"`
	User  model.Profile `json:"user"`
}

// Login checks the credentials and issues a token embedding the user's
// studies and addresses as of now.
func (s *Auth) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if err := sleep(ctx, s.latency.Login); err != nil {
		return LoginResult{}, err
	}

	user, ok := s.store.UserByEmail(email)
	if !ok || crypto.CheckPassword(user.Password, password) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	profile := model.NewProfile(user)
	profile.Studies = s.store.StudiesByUser(user.ID)
	profile.Addresses = s.store.AddressesByUser(user.ID)

	ttl := s.ttl
	if ttl == nil {
		ttl = auth.DefaultTTL
	}
	token, err := s.codec.Issue(auth.Payload{
		UserID:    profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		Role:      profile.Role,
		Studies:   profile.Studies,
		Addresses: profile.Addresses,
	}, ttl)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info().Int("user_id", user.ID).Str("role", string(user.Role)).Msg("login")
	return LoginResult{Token: token, User: profile}, nil
}

// Logout only simulates the round trip; it succeeds unless ctx is done.
func (s *Auth) Logout(ctx context.Context) error {
	return sleep(ctx, s.latency.Logout)
}

// ProcessUserData copies the studies and addresses embedded in token onto
// user.
func (s *Auth) ProcessUserData(token string, user *model.Profile) (model.Profile, error) {
	if token == "" || user == nil {
		return model.Profile{}, fmt.Errorf("incomplete session data: %w", ErrInvalidToken)
	}
	claims, ok := s.codec.Decode(token)
	if !ok || claims.UserID == 0 || claims.Email == "" {
		return model.Profile{}, ErrInvalidToken
	}
	out := *user
	out.Studies = claims.Studies
	if out.Studies == nil {
		out.Studies = []model.Study{}
	}
	out.Addresses = claims.Addresses
	if out.Addresses == nil {
		out.Addresses = []model.Address{}
	}
	return out, nil
}
