package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	attackkb "github.com/zero-day-ai/attack-kb"
	"github.com/zero-day-ai/attack-kb/config"
	"github.com/zero-day-ai/attack-kb/stix"
	"github.com/zero-day-ai/attack-kb/telemetry"
	"github.com/zero-day-ai/attack-kb/tool"
	"github.com/zero-day-ai/attack-kb/toolset"
)

// app carries the streams, global flags and resolved configuration shared
// by every subcommand.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	lookup config.LookupFunc

	configPath      string
	datasetPath     string
	redisURL        string
	logLevel        string
	logFormat       string
	includeInactive bool
	telemetry       bool

	cfg       *config.Config
	logger    *slog.Logger
	providers *telemetry.Providers
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, lookup: os.LookupEnv}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "attack-kb",
		Short: "Query the MITRE ATT&CK knowledge base",
		Long: `attack-kb indexes a MITRE ATT&CK STIX bundle in memory and answers:
  - technique lookups by ID or name fragment
  - mitigations and detections of a technique
  - tactics and the techniques that belong to them

Queries run once from the command line, or continuously behind the gRPC
tool server (serve) or the JSON-lines stdio transport (stdio).`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file or directory (default: search attack-kb.yaml upwards from the working directory)")
	flags.StringVarP(&a.datasetPath, "dataset", "d", "", "ATT&CK bundle file, optionally gzip or zstd compressed")
	flags.StringVar(&a.redisURL, "redis-url", "", "read the bundle from Redis instead of a file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.BoolVar(&a.includeInactive, "include-inactive", false, "keep revoked and deprecated objects")
	flags.BoolVar(&a.telemetry, "telemetry", false, "log query spans and flush query metrics on exit")

	root.AddCommand(
		newServeCmd(a),
		newStdioCmd(a),
		newTechniqueCmd(a),
		newMitigationsCmd(a),
		newDetectionsCmd(a),
		newTacticsCmd(a),
		newTacticTechniquesCmd(a),
		newSchemaCmd(a),
		newDatasetCmd(a),
		newQueueCmd(a),
		newInstancesCmd(a),
		newHealthCmd(a),
	)
	return root
}

// setup resolves configuration in precedence order: file, environment,
// flags. Validation is left to the commands that need a dataset.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := a.readConfig()
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(a.lookup); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Dataset.Path = a.datasetPath
	}
	if flags.Changed("redis-url") {
		cfg.Dataset.RedisURL = a.redisURL
	}
	if flags.Changed("include-inactive") {
		cfg.Dataset.IncludeInactive = a.includeInactive
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}

	a.cfg = cfg
	a.logger = cfg.Log.NewLogger(a.errOut)
	if a.telemetry {
		a.providers = telemetry.Setup("attack-kb", version, a.logger)
	}
	return nil
}

func (a *app) readConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.Load(a.configPath)
	}
	cfg, err := config.LoadFromDir(".")
	if errors.Is(err, os.ErrNotExist) {
		return &config.Config{}, nil
	}
	return cfg, err
}

func (a *app) teardown(ctx context.Context) error {
	if a.providers == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.providers.Shutdown(ctx)
}

// open validates the configuration and loads the knowledge base.
func (a *app) open(ctx context.Context) (*attackkb.KB, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	src, closeSrc, err := a.source()
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	opts := []attackkb.Option{
		attackkb.WithSource(src),
		attackkb.WithLogger(a.logger),
	}
	if a.cfg.Dataset.IncludeInactive {
		opts = append(opts, attackkb.WithInactive())
	}
	if a.providers != nil {
		opts = append(opts,
			attackkb.WithTracerProvider(a.providers.TracerProvider),
			attackkb.WithMeterProvider(a.providers.MeterProvider),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Dataset.GetLoadTimeout())
	defer cancel()
	return attackkb.Open(ctx, opts...)
}

// source picks Redis when a URL is configured, the bundle file otherwise.
func (a *app) source() (stix.Source, func(), error) {
	d := a.cfg.Dataset
	if d.RedisURL == "" {
		return stix.FileSource{Path: d.Path}, func() {}, nil
	}
	src, err := stix.NewRedisSource(stix.RedisOptions{URL: d.RedisURL, Key: d.RedisKey})
	if err != nil {
		return nil, nil, err
	}
	return src, func() { src.Close() }, nil
}

func (a *app) tools(ctx context.Context) (*tool.Registry, error) {
	kb, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	return kb.Tools(toolset.WithLogger(a.logger))
}

// execute runs a single tool and prints its output.
func (a *app) execute(ctx context.Context, name string, input map[string]any) error {
	tools, err := a.tools(ctx)
	if err != nil {
		return err
	}
	out, err := tools.Execute(ctx, name, input)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
