// Command proverbs serves the proverbs agent over HTTP or MCP.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/proverbs/internal/app"
	"github.com/hupe1980/proverbs/internal/config"
	"github.com/hupe1980/proverbs/logging"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
}

func main() {
	app.Version = version

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "proverbs",
		Short: "Proverbs agent service",
		Long: `proverbs runs a tool calling agent that maintains a shared list of
proverbs and answers weather questions. The same tools are available to
MCP clients over stdio.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(opts), newMCPCmd(opts))

	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.Serve(ctx)
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol; logs go to stderr.
			a, err := build(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.ServeMCP(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func build(opts *rootOptions, logOut io.Writer) (*app.App, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger := logging.New(cfg.Log.Backend, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, logOut)

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("startup: %w", err)
	}

	return a, nil
}
