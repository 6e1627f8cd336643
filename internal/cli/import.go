package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assayimport/internal/config"
	"github.com/JonMunkholm/assayimport/internal/core"
	"github.com/JonMunkholm/assayimport/internal/logging"
	"github.com/JonMunkholm/assayimport/internal/source"
)

type importOptions struct {
	data        string
	entityType  string
	columnNames string
	updateInfo  string
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a treatment or generic assay metadata file",
		Long: `Import reads a tab-separated file whose first line is a header and creates
or updates one entity per data line.

--entity-type TREATMENT imports treatments: entity_stable_id plus optional
name, description and url columns. Any other type imports generic assay
entities, storing the --column-names columns as properties.

--data may be a local path, a glob (data/**/*.txt), s3://bucket/key or an
s3:// glob. Matching files are imported one after another in sorted order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			importOpts, err := opts.parse(cmd)
			if err != nil {
				return err
			}
			return runImport(cmd, root, opts.data, importOpts)
		},
	}

	cmd.Flags().StringVar(&opts.data, "data", "", "Input file, glob or s3:// URL (required)")
	cmd.Flags().StringVar(&opts.entityType, "entity-type", "", "Genetic alteration type, e.g. TREATMENT or GENERIC_ASSAY (required)")
	cmd.Flags().StringVar(&opts.columnNames, "column-names", "", "Comma-separated generic assay property columns")
	cmd.Flags().StringVar(&opts.updateInfo, "update-info", "", "Mark the run as an info update; any value counts")
	cmd.Flags().Lookup("update-info").NoOptDefVal = "1"

	return cmd
}

// parse validates the flags. It touches neither the config nor the data.
// --update-info is read by presence, so --update-info=0 still sets it.
func (o importOptions) parse(cmd *cobra.Command) (core.ImportOptions, error) {
	if o.data == "" {
		return core.ImportOptions{}, fmt.Errorf("%w: --data is required", core.ErrUsage)
	}
	if o.entityType == "" {
		return core.ImportOptions{}, fmt.Errorf("%w: --entity-type is required", core.ErrUsage)
	}
	entityType, err := core.ParseEntityType(o.entityType)
	if err != nil {
		return core.ImportOptions{}, err
	}
	return core.ImportOptions{
		EntityType:  entityType,
		ColumnNames: core.ParseColumnNames(o.columnNames),
		UpdateInfo:  cmd.Flags().Changed("update-info"),
	}, nil
}

func runImport(cmd *cobra.Command, root *rootOptions, data string, opts core.ImportOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	resolver, err := newResolver(ctx, cfg, data)
	if err != nil {
		return err
	}
	inputs, err := resolver.Resolve(ctx, data)
	if err != nil {
		return err
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	importer := newImporter(cfg, s)
	logger := logging.WithFields(ctx, "entity_type", opts.EntityType, "update_info", opts.UpdateInfo)
	logger.Info("import started", "inputs", len(inputs), "columns", len(opts.ColumnNames))

	out := cmd.OutOrStdout()
	var partial []error
	for _, in := range inputs {
		runOpts := opts
		runOpts.Source = in.Ref
		runOpts.Size = in.Size

		result, err := importFile(ctx, cfg, resolver, importer, in, runOpts)
		if result != nil {
			printResult(out, result, err)
		}
		switch {
		case err == nil:
		case errors.Is(err, core.ErrRecordsFailed):
			partial = append(partial, fmt.Errorf("%s: %w", in.Ref, err))
		default:
			// A fatal fault stops the remaining inputs as well.
			return fmt.Errorf("%s: %w", in.Ref, err)
		}
	}
	return errors.Join(partial...)
}

// importFile runs one input under the per-run timeout.
func importFile(ctx context.Context, cfg *config.Config, resolver *source.Resolver, importer *core.Importer, in source.Input, opts core.ImportOptions) (*core.ImportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Import.Timeout)
	defer cancel()

	rc, err := resolver.Open(ctx, in)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return importer.Run(ctx, rc, opts)
}

// newResolver builds a resolver; the S3 client is only configured for s3:// data.
func newResolver(ctx context.Context, cfg *config.Config, data string) (*source.Resolver, error) {
	if !source.IsS3(data) {
		return source.NewResolver(nil), nil
	}
	s3src, err := source.NewS3Source(ctx, source.S3Config{
		Region:    cfg.Source.S3Region,
		Endpoint:  cfg.Source.S3Endpoint,
		PathStyle: cfg.Source.S3PathStyle,
	})
	if err != nil {
		return nil, err
	}
	return source.NewResolver(s3src), nil
}

// printResult writes the run summary. err is the error returned with r.
func printResult(w io.Writer, r *core.ImportResult, err error) {
	fmt.Fprintf(w, "%s: %d records, %d created, %d updated, %d failed (%s)\n",
		r.Source, r.Records, r.Created, r.Updated, len(r.Failed), r.Duration.Round(time.Millisecond))
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  line %d %s: %s [%s]\n", f.Line, f.StableID, f.Reason, f.Code)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  aborted: %s\n", core.FormatUserError(err))
		fmt.Fprintf(w, "    cause: %s\n", r.Error)
	}
}
