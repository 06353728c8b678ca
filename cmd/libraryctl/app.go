package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/config"
	"github.com/jonwraymond/querycache/library"
	"github.com/jonwraymond/querycache/observe"
)

type app struct {
	stdout io.Writer
	stderr io.Writer
	load   func() (config.Config, error)

	apiURL   string
	token    string
	logLevel string
	timeout  time.Duration

	cfg    config.Config
	obs    observe.Observer
	client *library.Client
}

func newApp(stdout, stderr io.Writer, load func() (config.Config, error)) *app {
	return &app{stdout: stdout, stderr: stderr, load: load}
}

// run executes the command line and releases the client and telemetry.
func (a *app) run(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Library management client with a tag-invalidated query cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API root (overrides LIBRARY_API_URL)")
	cmd.PersistentFlags().StringVar(&a.token, "token", "", "bearer token (overrides LIBRARY_API_TOKEN)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug|info|warn|error (overrides LIBRARY_LOG_LEVEL)")
	cmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "overall command timeout (0 for none)")

	cmd.AddGroup(
		&cobra.Group{ID: "query", Title: "Queries:"},
		&cobra.Group{ID: "mutation", Title: "Mutations:"},
	)
	cmd.AddCommand(
		newStatsCmd(a),
		newBooksCmd(a),
		newBookCmd(a),
		newUsersCmd(a),
		newHistoryCmd(a),
		newDashboardCmd(a),
		newWatchBooksCmd(a),
		newAddBookCmd(a),
		newUpdateBookCmd(a),
		newDeleteBookCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newLoginCmd(a),
		newHealthCmd(a),
	)
	return cmd
}

// setup loads configuration, applies flag overrides and builds the client.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.token != "" {
		cfg.APIToken = a.token
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	obsCfg := cfg.ObserveConfig()
	obsCfg.Output = a.stderr
	obs, err := observe.NewObserver(cmd.Context(), obsCfg)
	if err != nil {
		return err
	}
	a.obs = obs

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return err
	}

	client, err := library.New(library.Config{
		BaseURL:        cfg.APIURL,
		UserAgent:      "libraryctl",
		Token:          cfg.APIToken,
		Middleware:     mw,
		CacheOptions:   []cache.Option{cache.WithPolicy(cfg.CachePolicy())},
		RetryAttempts:  cfg.RetryAttempts,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
		a.client = nil
	}
	if a.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.obs.Shutdown(ctx))
		a.obs = nil
	}
	return errors.Join(errs...)
}

// context returns the command context bounded by --timeout.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(cmd.Context(), a.timeout)
	}
	return context.WithCancel(cmd.Context())
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printLine writes v as one compact JSON line.
func (a *app) printLine(v any) error {
	return json.NewEncoder(a.stdout).Encode(v)
}
