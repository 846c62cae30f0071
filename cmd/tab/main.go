// Command tab drives the session layer the way a browser tab would: it logs
// in, keeps the session re-validated and edits the user's own records. With
// REDIS_ADDR set the tab survives between invocations when -tab is reused.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/EmaRG1/user-manager/internal/bootstrap"
	"github.com/EmaRG1/user-manager/internal/config"
	"github.com/EmaRG1/user-manager/internal/crud"
	"github.com/EmaRG1/user-manager/internal/guard"
	"github.com/EmaRG1/user-manager/internal/kv"
	"github.com/EmaRG1/user-manager/internal/mockdb"
	"github.com/EmaRG1/user-manager/internal/model"
	"github.com/EmaRG1/user-manager/internal/service"
	"github.com/EmaRG1/user-manager/internal/session"
)

const usage = `usage: tab [-tab ID] <command>

commands:
  login EMAIL PASSWORD
  whoami
  logout
  watch                      re-validate until the token expires or Ctrl-C
  sidebar [WIDTH]
  add-study INSTITUTION TITLE START_YEAR
  delete-study ID
`

type tab struct {
	cfg      config.Config
	log      zerolog.Logger
	services *service.Services
	manager  *session.Manager
	guard    *guard.Guard
	sidebar  *session.Sidebar
}

func main() {
	_ = godotenv.Load()
	tabID := flag.String("tab", "", "tab id to resume (requires REDIS_ADDR)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := bootstrap.NewLogger(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, closeStorage, err := open(ctx, cfg, log, *tabID)
	if err != nil {
		log.Fatal().Err(err).Msg("tab init failed")
	}
	defer closeStorage()

	if err := t.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Error().Err(err).Msg(flag.Arg(0))
		os.Exit(1)
	}
}

func open(ctx context.Context, cfg config.Config, log zerolog.Logger, tabID string) (*tab, func(), error) {
	var (
		tabStore   kv.Store = kv.NewMemory()
		prefsStore kv.Store = kv.NewMemory()
		closeFn             = func() {}
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		redisTab := kv.NewTab(client, cfg.SessionTabTTL)
		if tabID != "" {
			redisTab = kv.NewRedis(client, tabID, cfg.SessionTabTTL)
		}
		log.Info().Str("tab", redisTab.Namespace()).Msg("using redis tab storage")
		tabStore = redisTab
		prefsStore = kv.NewRedis(client, "prefs", 0)
		closeFn = func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("redis close error")
			}
		}
	} else if tabID != "" {
		log.Warn().Msg("-tab ignored without REDIS_ADDR")
	}

	seed, err := bootstrap.LoadSeed(ctx, cfg, log)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	codec := bootstrap.NewCodec(cfg, log)
	store := session.NewStore(tabStore, log)
	services := bootstrap.NewServices(cfg, mockdb.New(seed), codec, store, log)
	manager := session.NewManager(store, services.Auth, codec, session.Options{
		RevalidateInterval: cfg.RevalidateInterval,
		RenewWarning:       cfg.RenewWarning,
	}, log)

	return &tab{
		cfg:      cfg,
		log:      log,
		services: services,
		manager:  manager,
		guard:    guard.New(codec),
		sidebar:  session.NewSidebar(prefsStore),
	}, closeFn, nil
}

func (t *tab) run(ctx context.Context, cmd string, args []string) error {
	t.manager.Init(ctx)

	switch cmd {
	case "login":
		if len(args) != 2 {
			return errors.New("login needs EMAIL and PASSWORD")
		}
		if err := t.manager.Login(ctx, args[0], args[1]); err != nil {
			return err
		}
		return printJSON(t.manager.Snapshot().User)
	case "logout":
		t.manager.Logout(ctx)
		return nil
	case "sidebar":
		width := session.MobileBreakpoint
		if len(args) > 0 {
			w, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("width: %w", err)
			}
			open, err := t.sidebar.Resize(ctx, w)
			if err != nil {
				return err
			}
			return printJSON(map[string]bool{"open": open})
		}
		return printJSON(map[string]bool{"open": t.sidebar.Open(ctx, width)})
	}

	if decision := t.guard.Check(t.manager.Snapshot().State, guard.Requirement{}); decision != guard.Allow {
		return fmt.Errorf("not signed in (%s)", decision)
	}

	switch cmd {
	case "whoami":
		return printJSON(t.manager.Snapshot().State)
	case "watch":
		return t.watch(ctx)
	case "add-study":
		if len(args) != 3 {
			return errors.New("add-study needs INSTITUTION, TITLE and START_YEAR")
		}
		studies := t.studies()
		studies.Add()
		study, err := studies.Save(ctx, model.StudyInput{Institution: args[0], Title: args[1], StartYear: args[2], CurrentlyStudying: true})
		if err != nil {
			return err
		}
		t.manager.UpdateUser(ctx, model.ProfilePatch{Studies: ptr(studies.Items())})
		return printJSON(study)
	case "delete-study":
		if len(args) != 1 {
			return errors.New("delete-study needs ID")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("id: %w", err)
		}
		studies := t.studies()
		studies.RequestDelete(id)
		if err := studies.ConfirmDelete(ctx); err != nil {
			return err
		}
		t.manager.UpdateUser(ctx, model.ProfilePatch{Studies: ptr(studies.Items())})
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// studies builds the CRUD controller over the signed-in user's studies, as
// embedded in the session.
func (t *tab) studies() *crud.Controller[model.Study, model.StudyInput] {
	user := t.manager.Snapshot().User
	return crud.New(crud.Options[model.Study, model.StudyInput]{
		Items:   user.Studies,
		Service: t.services.Studies,
		UserID:  user.ID,
		Messages: crud.Messages{
			CreateSuccess: "Study added",
			DeleteSuccess: "Study removed",
		},
		Notifier: crud.NotifierFunc(func(message string, kind crud.Kind) {
			t.log.Info().Str("kind", string(kind)).Msg(message)
		}),
		Log: t.log,
	})
}

func (t *tab) watch(ctx context.Context) error {
	done := make(chan struct{})
	var once sync.Once
	unsubscribe := t.manager.Subscribe(func(s session.Session) {
		if s.Status == session.StatusUnauthenticated {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go t.manager.Run(runCtx)

	t.log.Info().Dur("interval", t.cfg.RevalidateInterval).Msg("watching session")
	select {
	case <-ctx.Done():
		return nil
	case <-done:
		return errors.New("session expired")
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ptr[T any](v T) *T {
	return &v
}
