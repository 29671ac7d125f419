// Package cli implements fincachectl, a command-line client that operates
// on the cache storage directly, without going through the HTTP server.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/fincache/internal/config"
	"github.com/aristath/fincache/internal/di"
	"github.com/aristath/fincache/pkg/logger"
)

// Output formats
const (
	outputTable = "table"
	outputJSON  = "json"
)

const tabPadding = 2

// Opener wires the dependencies a command runs against. The returned
// function releases them.
type Opener func(log zerolog.Logger) (*di.Container, func() error, error)

// app is the state shared by every subcommand of one invocation.
type app struct {
	open      Opener
	container *di.Container
	closeFn   func() error
	output    string
	debug     bool
	log       zerolog.Logger
}

// NewRootCmd creates the root command, wired from the environment the same
// way the server is.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithOpener(ver, openFromEnvironment)
}

// NewRootCmdWithOpener creates the root command with an explicit opener for
// testability.
func NewRootCmdWithOpener(ver string, open Opener) *cobra.Command {
	a := &app{open: open}

	cmd := &cobra.Command{
		Use:           "fincachectl",
		Short:         "Inspect and manage the financial statement cache",
		Version:       ver,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # Fetch a record through the cache
  fincachectl get alice AAPL

  # Force a refetch and print JSON
  fincachectl get alice AAPL --force --output json

  # Warm the cache for a watchlist
  fincachectl preload alice AAPL MSFT NVDA

  # Drop everything cached for a user
  fincachectl invalidate alice`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.output != outputTable && a.output != outputJSON {
				return fmt.Errorf("output must be %q or %q, got %q", outputTable, outputJSON, a.output)
			}

			level := "warn"
			if a.debug {
				level = "debug"
			}
			a.log = logger.New(logger.Config{Level: level, Pretty: true, Output: cmd.ErrOrStderr()})

			container, closeFn, err := a.open(a.log)
			if err != nil {
				return fmt.Errorf("failed to initialize cache: %w", err)
			}
			a.container = container
			a.closeFn = closeFn
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", outputTable, "Output format: table or json")

	cmd.AddCommand(
		newGetCmd(a),
		newCachedCmd(a),
		newSymbolsCmd(a),
		newStatsCmd(a),
		newInvalidateCmd(a),
		newPreloadCmd(a),
		newRefreshCmd(a),
		newConfigCmd(a),
		newQuotaCmd(a),
	)

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ver string) int {
	cmd := NewRootCmd(ver)
	err := cmd.Execute()
	if err != nil {
		cmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}

func (a *app) close() error {
	if a.closeFn == nil {
		return nil
	}
	err := a.closeFn()
	a.closeFn = nil
	return err
}

// openFromEnvironment loads configuration and wires the full container. The
// scheduler is left stopped; commands run one operation and exit.
func openFromEnvironment(log zerolog.Logger) (*di.Container, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return container, container.Close, nil
}

func (a *app) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// run wraps a command body so the container is released even when the
// body fails; cobra skips post-run hooks after an error.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if closeErr := a.close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close cache: %w", closeErr)
		}
		return err
	}
}
