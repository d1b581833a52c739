package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"linkcore/internal/changes"
	"linkcore/internal/logging"
	"linkcore/internal/schema"
	"linkcore/pkg/domain"
)

// SchemaResult is printed by "schema validate".
type SchemaResult struct {
	Valid bool     `json:"valid"`
	Types []string `json:"types"`
}

func newSchemaCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the schema registry",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [schema.yaml]",
		Short: "Check a schema registry for dangling links and asymmetric inverses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.SchemaPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Schema.Path
			}
			if path == "" {
				return errors.New("schema path is required")
			}
			registry, err := schema.Load(path)
			if err != nil {
				return &ExitError{Code: ExitUserError, Message: "schema " + path, Err: err}
			}
			return writeJSON(cmd.OutOrStdout(), SchemaResult{Valid: true, Types: registry.Types()})
		},
	})
	return cmd
}

// ChangesResult is printed by "changes".
type ChangesResult struct {
	Events []domain.ChangeEvent `json:"events"`
}

func newChangesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "changes",
		Short: "Print archived change events in commit order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			archive, err := changes.OpenArchive(ctx, cfg.Changes, logger)
			if err != nil {
				return err
			}
			if archive == nil {
				return errors.New("change archiving is disabled (changes.driver=none)")
			}
			events, err := archive.Replay(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ChangesResult{Events: events})
		},
	}
}
