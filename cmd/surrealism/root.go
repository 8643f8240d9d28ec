package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Chooks22/surrealism"
	"github.com/Chooks22/surrealism/internal/config"
	"github.com/Chooks22/surrealism/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// rootOptions holds the global flags and what PersistentPreRunE builds
// from them.
type rootOptions struct {
	configPath string
	endpoint   string
	httpURL    string
	wsURL      string
	user       string
	pass       string
	namespace  string
	database   string
	format     string
	logLevel   string

	cfg *config.Config
	log *logger.LogData
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "surrealism",
		Short:         "SurrealDB client over HTTP and WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if opts.log == nil {
				return nil
			}
			return opts.log.Close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flags.StringVarP(&opts.endpoint, "endpoint", "e", config.DefaultEndpoint, "connection uri, the other transport is inferred")
	flags.StringVar(&opts.httpURL, "http", "", "explicit HTTP endpoint")
	flags.StringVar(&opts.wsURL, "ws", "", "explicit WebSocket endpoint")
	flags.StringVarP(&opts.user, "user", "u", "", "user to sign in as")
	flags.StringVarP(&opts.pass, "pass", "p", "", "password")
	flags.StringVar(&opts.namespace, "ns", "", "namespace")
	flags.StringVar(&opts.database, "db", "", "database")
	flags.StringVar(&opts.format, "format", config.FormatJSON, "RPC wire format (json|cbor)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")

	cmd.AddCommand(newSQLCommand(opts))
	cmd.AddCommand(newLiveCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newHealthCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newImportCommand(opts))

	return cmd
}

// load layers the config file, the environment and then every flag given
// on the command line.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	override("endpoint", &cfg.Endpoint, o.endpoint)
	override("http", &cfg.Endpoints.HTTP, o.httpURL)
	override("ws", &cfg.Endpoints.WS, o.wsURL)
	override("user", &cfg.User, o.user)
	override("pass", &cfg.Pass, o.pass)
	override("ns", &cfg.Namespace, o.namespace)
	override("db", &cfg.Database, o.database)
	override("format", &cfg.Format, o.format)
	override("log-level", &cfg.LogLevel, o.logLevel)

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	o.cfg = cfg
	o.log = log
	return nil
}

func (o *rootOptions) connect(ctx context.Context) (*surrealism.DB, error) {
	db, err := o.cfg.Connect(ctx, o.log)
	if err != nil {
		return nil, err
	}
	for _, diag := range db.Diagnostics() {
		o.log.Warn("transport unavailable", "error", diag)
	}
	return db, nil
}

// run connects, hands the DB to fn and closes it afterwards.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, db *surrealism.DB) error) error {
	ctx := cmd.Context()
	db, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(context.WithoutCancel(ctx)); closeErr != nil {
			o.log.Debug("failed to close connection", "error", closeErr)
		}
	}()
	return fn(ctx, db)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
