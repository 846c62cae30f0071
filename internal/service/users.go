package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/EmaRG1/user-manager/internal/crypto"
	"github.com/EmaRG1/user-manager/internal/mockdb"
	"github.com/EmaRG1/user-manager/internal/model"
)

type Users struct {
	store   *mockdb.Store
	gate    gate
	latency Latency
}

// GetAll lists every user without credentials. Callers gate it to admins.
func (s *Users) GetAll(ctx context.Context) ([]model.Profile, error) {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return nil, err
	}
	users := s.store.Users()
	out := make([]model.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, model.NewProfile(u))
	}
	return out, nil
}

// GetByID returns the user joined with the studies and addresses it owns.
func (s *Users) GetByID(ctx context.Context, id int) (model.Profile, error) {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return model.Profile{}, err
	}
	u, ok := s.store.UserByID(id)
	if !ok {
		return model.Profile{}, notFound("user", id)
	}
	p := model.NewProfile(u)
	p.Studies = s.store.StudiesByUser(id)
	p.Addresses = s.store.AddressesByUser(id)
	return p, nil
}

func (s *Users) Create(ctx context.Context, in model.UserInput) (model.Profile, error) {
	if err := s.gate.enter(ctx, s.latency.Write); err != nil {
		return model.Profile{}, err
	}
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return model.Profile{}, fmt.Errorf("email required: %w", ErrInvalidInput)
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if !in.Role.Valid() {
		return model.Profile{}, fmt.Errorf("role %q: %w", in.Role, ErrInvalidInput)
	}

	u := model.User{Name: in.Name, Email: in.Email, Role: in.Role}
	if in.Password != "" {
		hash, err := crypto.HashPassword(in.Password)
		if err != nil {
			return model.Profile{}, err
		}
		u.Password = hash
	}
	created, err := s.store.InsertUser(u)
	if err != nil {
		return model.Profile{}, err
	}
	return model.NewProfile(created), nil
}

// Update overwrites name, email and role with the submitted values. Empty
// fields keep the stored value; an empty password keeps the old one.
func (s *Users) Update(ctx context.Context, id int, in model.UserInput) (model.Profile, error) {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return model.Profile{}, err
	}
	if in.Role != "" && !in.Role.Valid() {
		return model.Profile{}, fmt.Errorf("role %q: %w", in.Role, ErrInvalidInput)
	}
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = crypto.HashPassword(in.Password); err != nil {
			return model.Profile{}, err
		}
	}

	updated, err := s.store.UpdateUser(id, func(u *model.User) {
		if in.Name != "" {
			u.Name = in.Name
		}
		if email := strings.TrimSpace(in.Email); email != "" {
			u.Email = email
		}
		if in.Role != "" {
			u.Role = in.Role
		}
		if hash != "" {
			u.Password = hash
		}
	})
	if errors.Is(err, ErrNotFound) {
		return model.Profile{}, notFound("user", id)
	}
	if err != nil {
		return model.Profile{}, err
	}
	return model.NewProfile(updated), nil
}

// Delete removes the user and cascades to its studies and addresses.
func (s *Users) Delete(ctx context.Context, id int) error {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return err
	}
	if err := s.store.DeleteUser(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound("user", id)
		}
		return err
	}
	return nil
}
