// Package bootstrap wires the pieces both binaries need: the logger, the seed
// data and the mock services.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/auth"
	"github.com/EmaRG1/user-manager/internal/config"
	"github.com/EmaRG1/user-manager/internal/db"
	"github.com/EmaRG1/user-manager/internal/mockdb"
	"github.com/EmaRG1/user-manager/internal/service"
)

func NewLogger(level string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// LoadSeed reads the fixtures from Postgres when DATABASE_URL is set,
// otherwise from SEED_FILE or the embedded defaults.
func LoadSeed(ctx context.Context, cfg config.Config, log zerolog.Logger) (mockdb.Seed, error) {
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return mockdb.Seed{}, fmt.Errorf("db connection failed: %w", err)
		}
		defer pool.Close()
		seed, err := db.LoadSeed(ctx, pool)
		if err != nil {
			return mockdb.Seed{}, err
		}
		log.Info().Int("users", len(seed.Users)).Msg("seed loaded from postgres")
		return seed, nil
	}
	seed, err := mockdb.LoadSeed(cfg.SeedFile)
	if err != nil {
		return mockdb.Seed{}, err
	}
	source := cfg.SeedFile
	if source == "" {
		source = "embedded"
	}
	log.Info().Str("source", source).Int("users", len(seed.Users)).Msg("seed loaded")
	return seed, nil
}

func NewCodec(cfg config.Config, log zerolog.Logger) *auth.Codec {
	if cfg.InsecureSecret() {
		log.Warn().Msg("JWT_SECRET not set, using the insecure development secret")
	}
	return auth.NewCodec(cfg.JWTSecret, log, auth.WithMaxEmbedded(cfg.TokenMaxEmbedded))
}

func NewServices(cfg config.Config, store *mockdb.Store, codec *auth.Codec, tokens service.TokenSource, log zerolog.Logger) *service.Services {
	return service.New(service.Deps{
		Store:  store,
		Codec:  codec,
		Tokens: tokens,
		Latency: service.Latency{
			Read:        cfg.ReadLatency,
			Write:       cfg.WriteLatency,
			RecordWrite: cfg.RecordWriteLatency,
			Login:       cfg.LoginLatency,
			Logout:      cfg.LogoutLatency,
		},
		TokenTTL: cfg.TokenTTL,
		Log:      log,
	})
}
