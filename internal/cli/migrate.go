package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assayimport/internal/store"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the store schema",
		Long: `Migrate applies the embedded schema to the configured store. It is safe to
run repeatedly. SQLite files are migrated on open; the in-memory store has no
schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := store.Migrate(ctx, s); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			kind, _ := store.KindOf(cfg.Database.URL)
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", kind)
			return nil
		},
	}
}
