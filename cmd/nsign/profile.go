package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rexliu/nsign/pkg/config"
	"github.com/rexliu/nsign/pkg/ipc"
	"github.com/rexliu/nsign/pkg/storage/sqlite"
)

var (
	initName  string
	initForce bool
	initYAML  bool

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a local profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(profileDir, 0o700); err != nil {
				return err
			}
			name := config.FileName
			if initYAML {
				name = "config.yaml"
			}
			if existing, err := config.FindProfileFile(profileDir); err == nil && !initForce {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", existing)
			}
			cfg := config.DefaultProfile(initName)
			if err := config.Save(filepath.Join(profileDir, name), cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized profile %s at %s\n", cfg.ProfileName, profileDir)
			return nil
		},
	}

	diagCmd = &cobra.Command{
		Use:   "diag",
		Short: "Print profile configuration paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadProfile()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile: %s\n", cfg.ProfileName)
			fmt.Fprintf(out, "Config: %s\n", path)
			fmt.Fprintf(out, "DB Path: %s\n", config.ResolvePath(profileDir, cfg.Storage.DBPath))
			fmt.Fprintf(out, "Socket: %s\n", socketPath(cfg))
			if cfg.Logging.FilePath != "" {
				fmt.Fprintf(out, "Log File: %s\n", config.ResolvePath(profileDir, cfg.Logging.FilePath))
			}
			fmt.Fprintf(out, "Open Command: %s (schemes %v)\n", cfg.Callback.OpenCommand, cfg.Callback.OpenSchemes)

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Schema Version: %s\n", version)
			return nil
		},
	}
)

func init() {
	initCmd.Flags().StringVar(&initName, "name", "default", "profile name")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config if present")
	initCmd.Flags().BoolVar(&initYAML, "yaml", false, "write config.yaml instead of config.toml")
}

func loadProfile() (*config.ProfileConfig, string, error) {
	path, err := config.FindProfileFile(profileDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("config not found in %s (run 'nsign init --profile %s')", profileDir, profileDir)
		}
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

func socketPath(cfg *config.ProfileConfig) string {
	if socketOverride != "" {
		return socketOverride
	}
	return config.ResolvePath(profileDir, cfg.IPC.SocketPath)
}

// openStore opens the profile database directly; key management does not
// need a running daemon.
func openStore(ctx context.Context, cfg *config.ProfileConfig) (*sqlite.Store, error) {
	store, err := sqlite.Open(config.ResolvePath(profileDir, cfg.Storage.DBPath), sqlite.Options{
		JournalMode: cfg.Storage.JournalMode,
		Synchronous: cfg.Storage.Synchronous,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	return store, nil
}

// dial connects to the daemon of the current profile.
func dial(ctx context.Context) (*ipc.Client, error) {
	path := socketOverride
	if path == "" {
		cfg, _, err := loadProfile()
		if err != nil {
			return nil, err
		}
		path = socketPath(cfg)
	}
	client, err := ipc.Dial(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w (is nsignd running?)", err)
	}
	return client, nil
}

// rpcCall performs a single request against the daemon.
func rpcCall(ctx context.Context, method string, params, out any) error {
	client, err := dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Call(ctx, method, params, out)
}
