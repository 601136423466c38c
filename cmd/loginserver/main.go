package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/udisondev/frpg2go/internal/cipher"
	"github.com/udisondev/frpg2go/internal/config"
	"github.com/udisondev/frpg2go/internal/loginsvc"
)

const ConfigPath = "config/loginserver.yaml"

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

	slog.Info("frpg2go login server starting")

	cfgPath := ConfigPath
	if p := os.Getenv("FRPG2GO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadLoginServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port, "auth_host", cfg.AuthHost, "auth_port", cfg.AuthPort)

	// Login and Auth run as separate processes but must answer the client
	// with the same RSA keypair, since the client uses Login's public key
	// to encrypt both Login's own handshake and Auth's RequestHandshake.
	// Sharing the on-disk key pair is how they stay in sync without an
	// RPC between them.
	keys, err := cipher.LoadOrGenerateRSAKeyPair(cfg.Keys.PrivateKeyPath, cfg.Keys.PublicKeyPath)
	if err != nil {
		return fmt.Errorf("loading RSA keypair: %w", err)
	}
	slog.Info("RSA keypair ready", "path", cfg.Keys.PrivateKeyPath)

	server := loginsvc.NewServer(cfg, keys)

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running login server: %w", err)
	}

	return nil
}
