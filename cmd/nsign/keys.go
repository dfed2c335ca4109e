package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rexliu/nsign/pkg/nostr"
	"github.com/rexliu/nsign/pkg/storage/sqlite"
)

var (
	keyLabel   string
	showSecret bool
	assumeYes  bool

	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Manage the signing identity",
	}

	keysGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a new secret key and make it active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *sqlite.Store) error {
				if err := confirmReplace(cmd, store); err != nil {
					return err
				}
				id, err := store.Generate(cmd.Context(), keyLabel)
				if err != nil {
					return err
				}
				return printIdentity(cmd.OutOrStdout(), id)
			})
		},
	}

	keysImportCmd = &cobra.Command{
		Use:   "import [<nsec>]",
		Short: "Import an nsec and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nsec string
			if len(args) == 1 {
				nsec = args[0]
			} else {
				var err error
				if nsec, err = askSecret(); err != nil {
					return err
				}
			}
			nsec = strings.TrimSpace(nsec)
			if !strings.HasPrefix(nsec, nostr.PrefixSecretKey+"1") {
				return fmt.Errorf("expected an %s1... key", nostr.PrefixSecretKey)
			}
			return withStore(cmd, func(store *sqlite.Store) error {
				if err := confirmReplace(cmd, store); err != nil {
					return err
				}
				id, err := store.SaveNsec(cmd.Context(), nsec, keyLabel)
				if err != nil {
					return err
				}
				return printIdentity(cmd.OutOrStdout(), id)
			})
		},
	}

	keysShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the active identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *sqlite.Store) error {
				id, err := store.Active(cmd.Context())
				if errors.Is(err, sqlite.ErrNotFound) {
					return fmt.Errorf("no identity configured (run 'nsign keys generate')")
				}
				if err != nil {
					return err
				}
				if err := printIdentity(cmd.OutOrStdout(), id); err != nil {
					return err
				}
				if !showSecret {
					return nil
				}
				if err := confirmOrAbort("Print the secret key to the terminal?", assumeYes); err != nil {
					return err
				}
				nsec, err := store.ExportNsec(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "nsec:    %s\n", nsec)
				return nil
			})
		},
	}

	keysListCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored identities",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *sqlite.Store) error {
				ids, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				return renderIdentities(cmd.OutOrStdout(), ids)
			})
		},
	}

	keysForgetCmd = &cobra.Command{
		Use:   "forget",
		Short: "Delete every stored secret key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirmOrAbort("Forget all stored keys? This cannot be undone.", assumeYes); err != nil {
				return err
			}
			return withStore(cmd, func(store *sqlite.Store) error {
				n, err := store.Forget(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %d key(s)\n", n)
				return nil
			})
		},
	}
)

func init() {
	keysGenerateCmd.Flags().StringVar(&keyLabel, "label", "", "label for the new key")
	keysImportCmd.Flags().StringVar(&keyLabel, "label", "", "label for the imported key")
	keysShowCmd.Flags().BoolVar(&showSecret, "secret", false, "also print the nsec")
	for _, c := range []*cobra.Command{keysGenerateCmd, keysImportCmd, keysShowCmd, keysForgetCmd} {
		c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")
	}

	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysImportCmd)
	keysCmd.AddCommand(keysShowCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysForgetCmd)
}

func withStore(cmd *cobra.Command, fn func(*sqlite.Store) error) error {
	cfg, _, err := loadProfile()
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// confirmReplace asks before a new key replaces the active one.
func confirmReplace(cmd *cobra.Command, store *sqlite.Store) error {
	_, err := store.Active(cmd.Context())
	if errors.Is(err, sqlite.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return confirmOrAbort("Replace the active identity?", assumeYes)
}

func printIdentity(w io.Writer, id sqlite.Identity) error {
	npub, err := nostr.EncodePublicKey(id.PublicKey)
	if err != nil {
		return err
	}
	if id.Label != "" {
		fmt.Fprintf(w, "label:   %s\n", id.Label)
	}
	fmt.Fprintf(w, "pubkey:  %s\n", id.PublicKey)
	fmt.Fprintf(w, "npub:    %s\n", npub)
	return nil
}

func renderIdentities(w io.Writer, ids []sqlite.Identity) error {
	if len(ids) == 0 {
		fmt.Fprintln(w, "no identities stored")
		return nil
	}
	table := newTable(w)
	table.SetHeader([]string{"Active", "Label", "Npub", "Created"})
	for _, id := range ids {
		npub, err := nostr.EncodePublicKey(id.PublicKey)
		if err != nil {
			return err
		}
		active := ""
		if id.Active {
			active = "*"
		}
		table.Append([]string{active, id.Label, npub, time.UnixMilli(id.CreatedAt).UTC().Format(time.RFC3339)})
	}
	table.Render()
	return nil
}
