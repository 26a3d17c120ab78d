package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/apimeta/internal/cli/ui"
	"github.com/conduit-lang/apimeta/internal/config"
	"github.com/conduit-lang/apimeta/internal/kernel"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every subcommand
type globalFlags struct {
	configPath string
	format     string
	verbose    bool
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "apimeta",
		Short: "Inspect resolved API resource metadata",
		Long: color.CyanString(`apimeta - API resource metadata pipeline

apimeta resolves the metadata of declared API resources (properties,
operations, identifiers and URI variables) through the resolver chains
configured in apimeta.yaml, and shows what the pipeline decided.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.noColor {
				color.NoColor = true
			}
			if flags.format != "table" && flags.format != "json" {
				return fmt.Errorf("--format must be table or json, got: %s", flags.format)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file (default: nearest apimeta.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.format, "format", "table", "Output format: table or json")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log pipeline diagnostics")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newResourcesCommand(flags))
	rootCmd.AddCommand(newInspectCommand(flags))
	rootCmd.AddCommand(newMatchCommand(flags))
	rootCmd.AddCommand(newInitCommand(flags))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			kv.AddRow("apimeta version", Version)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", runtime.Version())
			kv.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var reported *reportedError
		if errors.As(err, &reported) {
			fmt.Fprint(rootCmd.ErrOrStderr(), reported.rendered)
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig reads --config, or the nearest apimeta.yaml above the working
// directory, or the defaults
func (f *globalFlags) loadConfig() (*config.Config, error) {
	path := f.configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path, _ = config.FindConfigFile(wd)
		}
	}
	return config.Load(path)
}

func (f *globalFlags) logger() *zap.Logger {
	if !f.verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// kernel builds the pipeline. Callers close it.
func (f *globalFlags) kernel(ctx context.Context) (*kernel.Kernel, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, &reportedError{err: err, rendered: ui.ConfigError(err.Error(), color.NoColor)}
	}
	return kernel.New(ctx, cfg, kernel.WithLogger(f.logger()))
}

// reportedError carries an error already rendered for the terminal
type reportedError struct {
	err      error
	rendered string
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

func (f *globalFlags) json() bool {
	return f.format == "json"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
