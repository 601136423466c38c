package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/udisondev/frpg2go/internal/authsvc"
	"github.com/udisondev/frpg2go/internal/authtoken"
	"github.com/udisondev/frpg2go/internal/cipher"
	"github.com/udisondev/frpg2go/internal/config"
	"github.com/udisondev/frpg2go/internal/gamesvc"
	"github.com/udisondev/frpg2go/internal/persist"
	"github.com/udisondev/frpg2go/internal/rudp"
	"github.com/udisondev/frpg2go/internal/session"
	"github.com/udisondev/frpg2go/internal/titles/example"

	"golang.org/x/sync/errgroup"
)

const ConfigPath = "config/gameserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("frpg2go game server starting")

	cfgPath := ConfigPath
	if p := os.Getenv("FRPG2GO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadGameServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded",
		"auth_bind", fmt.Sprintf("%s:%d", cfg.Auth.BindAddress, cfg.Auth.Port),
		"game_bind", fmt.Sprintf("%s:%d", cfg.Game.BindAddress, cfg.Game.Port))

	keys, err := cipher.LoadOrGenerateRSAKeyPair(cfg.Auth.Keys.PrivateKeyPath, cfg.Auth.Keys.PublicKeyPath)
	if err != nil {
		return fmt.Errorf("loading RSA keypair: %w", err)
	}
	slog.Info("RSA keypair ready", "path", cfg.Auth.Keys.PrivateKeyPath)

	store, closeStore, err := openPlayerStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening player store: %w", err)
	}
	defer closeStore()

	// Auth and Game share one process (see DESIGN.md): the auth-token
	// registry Auth writes to and Game reads from is a single in-process
	// object, never an RPC between two services.
	tokens := authtoken.NewRegistry(time.Duration(cfg.Auth.AuthTokenTTLSeconds) * time.Second)

	authServer := authsvc.NewServer(cfg.Auth, keys, tokens)

	feed := example.NewFeed()
	feed.Post("frpg2go game service online")
	table := example.NewTable()
	handler := example.NewHandler(feed)
	_ = store // the example title doesn't persist yet; real titles plug PlayerStore into their own handlers.

	rudpCfg := rudp.Config{
		MaxInFlight:          cfg.RUDP.MaxInFlight,
		RetransmitInterval:   cfg.RUDP.RetransmitInterval,
		MinAckResendInterval: cfg.RUDP.MinAckResendInterval,
		CloseGraceTimeout:    cfg.RUDP.CloseGraceTimeout,
	}
	newSession := func(addr *net.UDPAddr, playerID string, gameKey []byte) *session.Session {
		return session.New(addr, playerID, gameKey, table, rudpCfg, cfg.Fragment.MaxFragmentLength, cfg.Fragment.MinCompressSize)
	}
	gameServer := gamesvc.NewServer(cfg.Game, cfg.RUDP, tokens, handler, newSession)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := authServer.Run(gctx); err != nil {
			return fmt.Errorf("auth service: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := gameServer.Run(gctx); err != nil {
			return fmt.Errorf("game service: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openPlayerStore connects to Postgres when configured, falling back to the
// in-memory store so a first run (or a test deployment with no database)
// still starts.
func openPlayerStore(ctx context.Context, dbCfg config.DatabaseConfig) (persist.PlayerStore, func(), error) {
	if dbCfg.Host == "" {
		slog.Warn("no database configured, using in-memory player store")
		return persist.NewMemoryPlayerStore(), func() {}, nil
	}

	if err := persist.RunMigrations(ctx, dbCfg.DSN()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	store, err := persist.NewPostgresPlayerStore(ctx, dbCfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	slog.Info("database connected")
	return store, store.Close, nil
}
