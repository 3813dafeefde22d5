package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/StacksTasker/x402-stacks-agent-console/internal/api"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/config"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/marketplace"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/relay"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/wallet"
	"github.com/StacksTasker/x402-stacks-agent-console/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("stacks-relayd failed: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := pflag.StringP("config", "c", "", "path to the relay config file")
	pflag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("X402_CONSOLE_CONFIG")
	}

	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := logger.Init(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Outputs: cfg.Log.Outputs,
		Rotate: logger.RotateConfig{
			Enabled:    cfg.Log.Rotate.Enabled,
			MaxSizeMB:  cfg.Log.Rotate.MaxSizeMB,
			MaxBackups: cfg.Log.Rotate.MaxBackups,
			MaxAgeDays: cfg.Log.Rotate.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	wallets := wallet.LoadDir(cfg.Wallets.Dir)
	logger.L().Info("wallets loaded",
		slog.Int("files", len(wallets.Files)),
		slog.Int("wallets", len(wallets.Wallets)),
	)

	client := marketplace.NewClient(marketplace.Config{
		BaseURL: cfg.Marketplace.BaseURL,
		Timeout: cfg.MarketplaceTimeout(),
	})

	// Best-effort bootstrap: a directory failure leaves zero resolved agent
	// ids and the relay still starts.
	resolveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	identity := relay.ResolveIdentity(resolveCtx, client, wallets.Addresses())
	cancel()

	state := relay.NewState()
	hub := relay.NewHub()

	poller := relay.NewPoller(client, state, identity, hub, relay.Intervals{
		Open:    cfg.OpenInterval(),
		Agent:   cfg.AgentInterval(),
		Watched: cfg.WatchedInterval(),
	})
	poller.Start(ctx)

	server := api.NewServer(api.Config{
		Address: cfg.Server.Address,
		Hub:     hub,
		State:   state,
		Poller:  poller,
		Wallets: wallets,
	})

	logger.L().Info("relay listening", slog.String("address", cfg.Server.Address))
	return server.Start(ctx)
}
