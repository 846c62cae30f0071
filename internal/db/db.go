package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EmaRG1/user-manager/internal/mockdb"
	"github.com/EmaRG1/user-manager/internal/model"
)

func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// LoadSeed reads the fixture tables once. The mock store keeps working on
// its own copy; nothing is written back.
func LoadSeed(ctx context.Context, pool *pgxpool.Pool) (mockdb.Seed, error) {
	var seed mockdb.Seed

	users, err := collect(ctx, pool, `
		SELECT id, name, email, password, role
		FROM users
		ORDER BY id
	`, func(row pgx.CollectableRow) (model.User, error) {
		var u model.User
		err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role)
		return u, err
	})
	if err != nil {
		return seed, fmt.Errorf("load users: %w", err)
	}

	studies, err := collect(ctx, pool, `
		SELECT id, user_id, institution, title, degree, field_of_study,
		       start_year, COALESCE(end_year, ''), description, currently_studying
		FROM studies
		ORDER BY id
	`, func(row pgx.CollectableRow) (model.Study, error) {
		var s model.Study
		err := row.Scan(&s.ID, &s.UserID, &s.Institution, &s.Title, &s.Degree, &s.FieldOfStudy,
			&s.StartYear, &s.EndYear, &s.Description, &s.CurrentlyStudying)
		return s, err
	})
	if err != nil {
		return seed, fmt.Errorf("load studies: %w", err)
	}

	addresses, err := collect(ctx, pool, `
		SELECT id, user_id, street, city, state, zip_code, country
		FROM addresses
		ORDER BY id
	`, func(row pgx.CollectableRow) (model.Address, error) {
		var a model.Address
		err := row.Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.ZipCode, &a.Country)
		return a, err
	})
	if err != nil {
		return seed, fmt.Errorf("load addresses: %w", err)
	}

	seed.Users = users
	seed.Studies = studies
	seed.Addresses = addresses
	return seed, nil
}

func collect[T any](ctx context.Context, pool *pgxpool.Pool, query string, scan pgx.RowToFunc[T]) ([]T, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}
