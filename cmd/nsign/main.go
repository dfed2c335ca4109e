package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rexliu/nsign/pkg/config"
)

var (
	profileDir     string
	socketOverride string

	rootCmd = &cobra.Command{
		Use:          "nsign",
		Short:        "Local nostr signer for nostrsigner:// requests",
		Version:      "0.1.0",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&profileDir, "profile", config.Directory("default"), "profile directory")
	rootCmd.PersistentFlags().StringVar(&socketOverride, "socket", "", "override IPC socket path")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(diagCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
