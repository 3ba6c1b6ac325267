package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shopassist/internal/banner"
	"shopassist/internal/catalog"
	"shopassist/internal/cli"
	"shopassist/internal/config"
	"shopassist/internal/domain"
	"shopassist/internal/gateway"
	"shopassist/internal/logging"
	"shopassist/internal/signals"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("shopassist %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:           "shopassist",
		Short:         "Conversational shopping assistant",
		Long:          "shopassist answers shopping questions with a language model that can search the catalog and price purchases.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return runServe(cmd, bm, serveShutdownCh)
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")
	root.PersistentFlags().String("config", "", "config file (default $SHOPASSIST_CONFIG or shopassist.json)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, bm, serveShutdownCh)
		},
	})

	askCmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the assistant one question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	askCmd.Flags().String("context", "", "additional context for the assistant")
	root.AddCommand(askCmd)

	searchCmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search the catalog by product name",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().Int("limit", 10, "maximum number of products")
	root.AddCommand(searchCmd)

	calcCmd := &cobra.Command{
		Use:   "calc",
		Short: "Price a purchase",
		Example: `  shopassist calc --item "GoPro Hero 11:$399.99:5" --discount 10
  shopassist calc --item "Tripod:25" --item "Cable:9.90:3" --json`,
		Args: cobra.NoArgs,
		RunE: runCalc,
	}
	calcCmd.Flags().StringArray("item", nil, "line item as name:price[:quantity] (repeatable)")
	calcCmd.Flags().String("discount", "", "discount percentage between 0 and 100")
	calcCmd.Flags().Bool("json", false, "print the breakdown as JSON")
	root.AddCommand(calcCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check config, gateway, catalog and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigFlag(cmd); err != nil {
				return err
			}
			fix, _ := cmd.Flags().GetBool("fix")
			checkArgs := []string{"shopassist", "check"}
			if fix {
				checkArgs = append(checkArgs, "--fix")
			}
			code := cli.RunCheck(checkArgs, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if code != 0 {
				return exitCodeErr(code)
			}
			return nil
		},
	}
	checkCmd.Flags().Bool("fix", false, "write default config if missing")
	root.AddCommand(checkCmd)

	configCmd := &cobra.Command{Use: "config", Short: "Get, set or unset config values by dot path"}
	configCmd.AddCommand(
		configActionCommand("get <path>", "Print a config value", "get", 1),
		configActionCommand("set <path> <value>", "Set a config value", "set", 2),
		configActionCommand("unset <path>", "Remove a config value", "unset", 1),
	)
	root.AddCommand(configCmd)

	return root
}

func configActionCommand(use, short, action string, nargs int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			opts := cli.ConfigOptions{File: file, Action: action, Path: args[0]}
			if nargs > 1 {
				opts.Value = args[1]
			}
			if code := cli.RunConfig(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
				return exitCodeErr(code)
			}
			return nil
		},
	}
}

// applyConfigFlag exports --config as SHOPASSIST_CONFIG for code that reads
// the environment.
func applyConfigFlag(cmd *cobra.Command) error {
	file, _ := cmd.Flags().GetString("config")
	if file == "" {
		return nil
	}
	return os.Setenv("SHOPASSIST_CONFIG", file)
}

// loadConfig resolves the config named by --config or the environment and
// installs the configured logger as the slog default.
func loadConfig(cmd *cobra.Command) (*domain.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := configResolve(path, ".env")
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cfg.Infra, cmd.ErrOrStderr()), nil
}

// runServe runs the gateway until a shutdown signal arrives. If shutdownCh is
// non-nil, closing it stops the server too (for tests).
func runServe(cmd *cobra.Command, bm buildMeta, shutdownCh <-chan struct{}) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContextFn(cmd.Context())
	defer stop()

	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	srv, err := gateway.NewServer(cfg.Gateway, app.Service, app.Checker,
		gateway.WithLogger(logger),
		gateway.WithVersion(bm.Version),
	)
	if err != nil {
		return err
	}
	gatewayServerForTest = srv

	shutdown := make(chan struct{})
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCh:
		case <-stopped:
		}
		close(shutdown)
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(shutdown) }()

	bound := ""
	for i := 0; i < serveBindWaitIterations && bound == ""; i++ {
		select {
		case err := <-runErr:
			if err != nil {
				return fmt.Errorf("gateway failed to bind: %w", err)
			}
			return nil
		case <-time.After(20 * time.Millisecond):
		}
		bound = srv.Addr()
	}
	if bound == "" {
		if err := srv.ListenErr(); err != nil {
			return fmt.Errorf("gateway failed to bind: %w", err)
		}
		return errors.New("gateway failed to bind (check port or permissions)")
	}
	banner.Startup(cmd.OutOrStdout(), banner.Info{
		Version: bm.Version,
		Model:   app.Agent.ModelName(),
		Catalog: cfg.Catalog.Driver,
		Listen:  bound,
	})

	err = <-runErr
	logger.Info("shutdown complete")
	return err
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContextFn(cmd.Context())
	defer stop()
	if cfg.Gateway.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Gateway.RequestTimeout)*time.Second)
		defer cancel()
	}

	app, err := cli.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	extra, _ := cmd.Flags().GetString("context")
	return cli.RunAsk(ctx, app.Service, strings.Join(args, " "), extra, cmd.OutOrStdout())
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContextFn(cmd.Context())
	defer stop()

	store, err := catalog.Open(ctx, cfg.Catalog, logger)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))

	limit, _ := cmd.Flags().GetInt("limit")
	return cli.RunSearch(ctx, store, strings.Join(args, " "), limit, cmd.OutOrStdout())
}

func runCalc(cmd *cobra.Command, args []string) error {
	items, _ := cmd.Flags().GetStringArray("item")
	discount, _ := cmd.Flags().GetString("discount")
	asJSON, _ := cmd.Flags().GetBool("json")
	return cli.RunCalc(cli.CalcOptions{Items: items, Discount: discount, JSON: asJSON}, cmd.OutOrStdout())
}

func getVersion() string {
	if version != "" {
		return version
	}
	b, err := os.ReadFile("VERSION")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(b))
}

// version is set at build time via ldflags for build metadata, e.g.:
//
//	go build -ldflags "-X main.version=1.0.0" -o shopassist ./cmd/shopassist
var version string

// serveShutdownCh is set by tests to stop runServe without signals. Production leaves it nil.
var serveShutdownCh <-chan struct{}

// serveBindWaitIterations is the max loop count waiting for the gateway to bind.
var serveBindWaitIterations = 50

// gatewayServerForTest is set when the gateway server starts so tests can read Addr().
var gatewayServerForTest *gateway.Server

// signalContextFn is replaced in tests to avoid registering OS signal handlers.
var signalContextFn = signals.NotifyContext

var configResolve = config.Resolve

// exitCodeErr carries an exit code for the process. When returned from a command, runApp exits with that code.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// runApp runs the root command with the given args and returns the exit code.
func runApp(args []string) int {
	bm := newBuildMeta(version, "", "")
	if bm.Version == "" {
		bm.Version = getVersion()
	}
	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		var ec interface{ ExitCode() int }
		if errors.As(err, &ec) {
			return ec.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
