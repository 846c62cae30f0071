package session

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/kv"
	"github.com/EmaRG1/user-manager/internal/model"
)

const (
	TokenKey    = "auth_token"
	UserDataKey = "user_data"
)

// State is what a tab remembers about its login.
type State struct {
	IsAuthenticated bool           `json:"isAuthenticated"`
	Token           string         `json:"token,omitempty"`
	User            *model.Profile `json:"user,omitempty"`
	Role            model.Role     `json:"role,omitempty"`
}

// Store persists the session in tab-scoped storage. It does not verify
// tokens; the Manager re-validates them on a schedule.
type Store struct {
	kv  kv.Store
	log zerolog.Logger
}

func NewStore(storage kv.Store, log zerolog.Logger) *Store {
	return &Store{kv: storage, log: log.With().Str("component", "session_store").Logger()}
}

func (s *Store) Save(ctx context.Context, user model.Profile, token string) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return err
	}
	return s.kv.Set(ctx, UserDataKey, string(data))
}

// Load returns the stored session, or the zero State when nothing usable
// is stored.
func (s *Store) Load(ctx context.Context) State {
	token, ok, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		s.log.Error().Err(err).Msg("read session token")
		return State{}
	}
	if !ok || token == "" {
		return State{}
	}
	raw, ok, err := s.kv.Get(ctx, UserDataKey)
	if err != nil {
		s.log.Error().Err(err).Msg("read session user")
		return State{}
	}
	if !ok {
		return State{}
	}
	var user model.Profile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.log.Error().Err(err).Msg("decode session user")
		return State{}
	}
	return State{IsAuthenticated: true, Token: token, User: &user, Role: user.Role}
}

func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, TokenKey, UserDataKey)
}

// Token makes the store usable as the services' token source.
func (s *Store) Token(ctx context.Context) string {
	token, _, err := s.kv.Get(ctx, TokenKey)
	if err != nil {
		s.log.Error().Err(err).Msg("read session token")
		return ""
	}
	return token
}

// MergeUser applies patch to the persisted user snapshot, if any.
func (s *Store) MergeUser(ctx context.Context, patch model.ProfilePatch) error {
	raw, ok, err := s.kv.Get(ctx, UserDataKey)
	if err != nil || !ok {
		return err
	}
	var user model.Profile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return err
	}
	data, err := json.Marshal(user.Apply(patch))
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, UserDataKey, string(data))
}
