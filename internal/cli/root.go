// Package cli wires the assayimport commands.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assayimport/internal/config"
	"github.com/JonMunkholm/assayimport/internal/core"
	"github.com/JonMunkholm/assayimport/internal/logging"
	"github.com/JonMunkholm/assayimport/internal/store"
	"github.com/JonMunkholm/assayimport/internal/store/postgres"
)

// Exit codes returned by ExitCode.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configFile  string
	databaseURL string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "assayimport",
		Short: "Import treatment and generic assay metadata into the entity store",
		Long: `assayimport reads tab-separated metadata files and creates or updates
treatments and generic assay entities, one transaction per record.

Examples:
  assayimport import --data treatments.txt --entity-type TREATMENT
  assayimport import --data 'data/**/*.txt' --entity-type GENERIC_ASSAY --column-names NAME,DESCRIPTION
  assayimport runs --limit 10
  assayimport serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default $"+config.FileEnv+")")
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "Store URL: postgres://, sqlite: or memory:// (overrides DATABASE_URL)")

	cmd.AddCommand(
		newImportCmd(opts),
		newMigrateCmd(opts),
		newRunsCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// Execute runs the command tree with args under ctx.
func Execute(ctx context.Context, args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, core.ErrUsage):
		return exitUsage
	default:
		return exitFailure
	}
}

// loadConfig reads the configuration and sets up logging. Commands call it
// only after their own flags validated.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var overrides []func(*config.Config)
	if o.databaseURL != "" {
		overrides = append(overrides, func(c *config.Config) { c.Database.URL = o.databaseURL })
	}
	cfg, err := config.Load(o.configFile, overrides...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrUsage, err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// openStore opens the store named by the configuration.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	s, err := store.Open(ctx, cfg.Database.URL, postgres.Options{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// newImporter builds the importer used by the import and serve commands.
func newImporter(cfg *config.Config, s core.Store, extra ...core.Reporter) *core.Importer {
	reporters := core.Reporters{core.NewLogReporter(logging.FromContext)}
	reporters = append(reporters, extra...)
	return core.NewImporter(s, core.ImporterConfig{
		MetaFieldPrefix: cfg.Import.MetaFieldPrefix,
		Reporter:        reporters,
		Logger:          logging.FromContext,
	})
}
