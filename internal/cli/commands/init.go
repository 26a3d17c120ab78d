package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/apimeta/internal/cli/ui"
	"github.com/conduit-lang/apimeta/internal/config"
)

// askOne is swapped in tests
var askOne = survey.AskOne

type initOptions struct {
	dir          string
	cacheDriver  string
	dbDriver     string
	dbURL        string
	stream       string
	declarations []string
	yes          bool
	force        bool
}

// scaffold is the subset of the configuration init writes
type scaffold struct {
	Cache        scaffoldCache     `yaml:"cache"`
	Database     *scaffoldDatabase `yaml:"database,omitempty"`
	Stream       *scaffoldStream   `yaml:"stream,omitempty"`
	Declarations []string          `yaml:"declarations,omitempty"`
}

type scaffoldCache struct {
	Driver string `yaml:"driver"`
}

type scaffoldDatabase struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

type scaffoldStream struct {
	Name string `yaml:"name"`
}

func newInitCommand(flags *globalFlags) *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an apimeta.yaml configuration",
		Long: `Create an apimeta.yaml configuration in the current directory.

Without --yes the cache driver, database, event stream and declaration
files are asked for interactively; flags seed the answers.`,
		Example: `  apimeta init
  apimeta init --yes --database sqlite3 --database-url app.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.yes {
				if err := askInit(opts); err != nil {
					return err
				}
			}

			dir := opts.dir
			if dir == "" {
				dir = "."
			}
			path := filepath.Join(dir, config.FileName)
			if flags.configPath != "" {
				path = flags.configPath
			}

			if err := writeScaffold(path, opts); err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), "Created "+path, color.NoColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory to write apimeta.yaml to")
	cmd.Flags().StringVar(&opts.cacheDriver, "cache", "memory", "Cache driver: memory, redis or none")
	cmd.Flags().StringVar(&opts.dbDriver, "database", "", "Database driver: pgx, postgres or sqlite3")
	cmd.Flags().StringVar(&opts.dbURL, "database-url", "", "Database connection URL")
	cmd.Flags().StringVar(&opts.stream, "stream", "", "Redis stream to publish writes to")
	cmd.Flags().StringSliceVar(&opts.declarations, "declarations", nil, "Resource declaration files")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Skip prompts and use flag values")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing configuration")

	return cmd
}

func askInit(opts *initOptions) error {
	if err := askOne(&survey.Select{
		Message: "Cache driver for resolved metadata:",
		Options: []string{"memory", "redis", "none"},
		Default: opts.cacheDriver,
	}, &opts.cacheDriver); err != nil {
		return err
	}

	dbDriver := opts.dbDriver
	if dbDriver == "" {
		dbDriver = "none"
	}
	if err := askOne(&survey.Select{
		Message: "Database for the relational backend:",
		Options: []string{"none", "pgx", "postgres", "sqlite3"},
		Default: dbDriver,
	}, &dbDriver); err != nil {
		return err
	}
	opts.dbDriver = strings.TrimPrefix(dbDriver, "none")

	if opts.dbDriver != "" {
		if err := askOne(&survey.Input{
			Message: "Database URL:",
			Default: opts.dbURL,
		}, &opts.dbURL, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	if err := askOne(&survey.Input{
		Message: "Redis stream for write events (empty to disable):",
		Default: opts.stream,
	}, &opts.stream); err != nil {
		return err
	}

	declarations := strings.Join(opts.declarations, ",")
	if err := askOne(&survey.Input{
		Message: "Declaration files (comma separated):",
		Default: declarations,
	}, &declarations); err != nil {
		return err
	}
	opts.declarations = splitList(declarations)
	return nil
}

// writeScaffold writes the configuration and loads it back, so an invalid
// combination never stays on disk
func writeScaffold(path string, opts *initOptions) error {
	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	s := scaffold{
		Cache:        scaffoldCache{Driver: opts.cacheDriver},
		Declarations: opts.declarations,
	}
	if opts.dbDriver != "" {
		s.Database = &scaffoldDatabase{Driver: opts.dbDriver, URL: opts.dbURL}
	}
	if opts.stream != "" {
		s.Stream = &scaffoldStream{Name: opts.stream}
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if _, err := config.Load(path); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
