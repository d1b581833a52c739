// Package cli implements the linkstore command tree.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"linkcore/internal/changes"
	"linkcore/internal/config"
	"linkcore/internal/core"
	"linkcore/internal/logging"
	"linkcore/internal/persistence"
	"linkcore/internal/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	SchemaPath string
	LogLevel   string
}

// NewRootCommand creates the root command for the linkstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "linkstore",
		Short: "Create and delete linked records with inverse links kept consistent",
		Long: `linkstore drives the link-consistency engine against the configured
storage backend. Every create or delete runs in one transaction together
with the inverse-link updates it implies, and each committed request is
archived as a change event.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.SchemaPath, "schema", "", "schema registry path (overrides schema.path)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (overrides log.level)")

	cmd.AddCommand(newCreateCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newFindCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))
	cmd.AddCommand(newChangesCommand(opts))

	return cmd
}

// loadConfig layers the flags over the config file, environment and
// defaults.
func (o *RootOptions) loadConfig() (config.Config, error) {
	v := config.New()
	if o.ConfigPath != "" {
		v.SetConfigFile(o.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if o.SchemaPath != "" {
		v.Set("schema.path", o.SchemaPath)
	}
	if o.LogLevel != "" {
		v.Set("log.level", o.LogLevel)
	}
	return config.FromViper(v)
}

// app bundles the collaborators one command invocation needs.
type app struct {
	logger  *zap.Logger
	store   *persistence.Handle
	service *core.Service
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	if cfg.Schema.Path == "" {
		return nil, errors.New("schema path is required (--schema or schema.path)")
	}
	registry, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}
	store, err := persistence.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	archive, err := changes.OpenArchive(ctx, cfg.Changes, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var sinks changes.Multi
	if archive != nil {
		sinks = append(sinks, archive)
	}
	svc, err := core.NewService(store, registry,
		core.WithLogger(logger),
		core.WithChangeSink(sinks),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Debug("linkstore ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("changes", cfg.Changes.Driver),
		zap.Strings("types", registry.Types()),
	)
	return &app{logger: logger, store: store, service: svc}, nil
}

func (a *app) Close() error {
	_ = a.logger.Sync()
	return a.store.Close()
}

// withApp opens the app, runs fn and closes the app again.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close storage: %w", cerr)
		}
	}()
	return fn(ctx, a)
}
