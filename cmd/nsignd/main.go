package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/rexliu/nsign/pkg/callback"
	"github.com/rexliu/nsign/pkg/config"
	"github.com/rexliu/nsign/pkg/ipc"
	"github.com/rexliu/nsign/pkg/logging"
	"github.com/rexliu/nsign/pkg/nostr"
	"github.com/rexliu/nsign/pkg/signer"
	"github.com/rexliu/nsign/pkg/storage/sqlite"
)

func main() {
	profile := flag.String("profile", config.Directory("default"), "Path to profile directory")
	socket := flag.String("socket", "", "Override IPC socket path (optional)")
	flag.Parse()

	logger := logging.New("nsignd")
	logger.Printf("starting daemon with profile %s", *profile)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *profile, *socket, logger); err != nil {
		logger.Error().Err(err).Msg("fatal error")
		os.Exit(1)
	}
}

type daemon struct {
	profileDir string
	cfg        *config.ProfileConfig
	store      *sqlite.Store
	dispatcher *signer.Dispatcher
	bus        *callback.Bus
	hub        *eventHub
	logger     *logging.Logger
	log        zerolog.Logger
}

func loadConfig(profileDir string, logger *logging.Logger) (*config.ProfileConfig, error) {
	cfg, err := config.LoadProfile(profileDir)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("profile", profileDir).Msg("no profile config, using defaults")
		return config.DefaultProfile(filepath.Base(profileDir)), nil
	}
	return cfg, err
}

func run(ctx context.Context, profileDir, socketOverride string, logger *logging.Logger) error {
	if err := os.MkdirAll(profileDir, 0o700); err != nil {
		return err
	}
	cfg, err := loadConfig(profileDir, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logCfg := cfg.Logging
	logCfg.FilePath = config.ResolvePath(profileDir, logCfg.FilePath)
	if err := logger.Configure(logCfg); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Close()

	store, err := sqlite.Open(config.ResolvePath(profileDir, cfg.Storage.DBPath), sqlite.Options{
		JournalMode: cfg.Storage.JournalMode,
		Synchronous: cfg.Storage.Synchronous,
	})
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	if _, err := store.Active(ctx); errors.Is(err, sqlite.ErrNotFound) {
		logger.Warn().Msg("no identity configured; requests will be answered with not_logged_in")
	}

	d := newDaemon(profileDir, cfg, store, logger)
	defer d.bus.Close()

	socketPath := socketOverride
	if socketPath == "" {
		socketPath = config.ResolvePath(profileDir, cfg.IPC.SocketPath)
	}
	srv := ipc.NewServer(logger)
	d.registerHandlers(srv)
	if err := srv.Start(ctx, socketPath); err != nil {
		return fmt.Errorf("start ipc: %w", err)
	}
	defer srv.Stop()

	logger.Printf("daemon ready; socket at %s", socketPath)

	<-ctx.Done()
	logger.Printf("shutting down")
	return nil
}

func newDaemon(profileDir string, cfg *config.ProfileConfig, store *sqlite.Store, logger *logging.Logger) *daemon {
	bus := callback.NewBus(logger.Component("bus"))
	opener := callback.NewExecOpener(cfg.Callback.OpenCommand, cfg.Callback.OpenSchemes)
	channel := callback.NewChannel(opener, bus, logger.Component("callback"))

	d := &daemon{
		profileDir: profileDir,
		cfg:        cfg,
		store:      store,
		bus:        bus,
		hub:        newEventHub(logger),
		logger:     logger,
		log:        logger.Component("router"),
	}
	d.dispatcher = signer.NewDispatcher(store, nostr.NewCrypto(), channel,
		signer.WithLogger(logger.Component("dispatcher")))

	bus.Subscribe(d.hub.publishCallback)
	bus.Subscribe(d.routeInbound)
	return d
}
