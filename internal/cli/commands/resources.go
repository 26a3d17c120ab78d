package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/apimeta/internal/cli/ui"
)

type resourceSummary struct {
	Class       string   `json:"class"`
	ShortName   string   `json:"short_name"`
	Backend     string   `json:"backend,omitempty"`
	Identifiers []string `json:"identifiers"`
	Operations  int      `json:"operations"`
}

func newResourcesCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List every declared resource class",
		Long: `List every declared resource class with the short name, persistence
backend, identifiers and number of operations the pipeline resolved.`,
		Example: `  apimeta resources
  apimeta resources --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			k, err := flags.kernel(ctx)
			if err != nil {
				return err
			}
			defer k.Close(ctx)

			classes, err := k.Names.Names(ctx)
			if err != nil {
				return err
			}

			summaries := make([]resourceSummary, 0, len(classes))
			for _, class := range classes {
				c, err := k.Resources.Create(ctx, class)
				if err != nil {
					return fmt.Errorf("failed to resolve %s: %w", class, err)
				}
				s := resourceSummary{
					Class:      class.String(),
					Operations: len(c.Operations()) + len(c.GraphQLOperations()),
				}
				if len(c.Resources) > 0 {
					s.ShortName = c.Resources[0].ShortName
					s.Backend = c.Resources[0].Persistence.Backend
					s.Identifiers = c.Resources[0].Identifiers
				}
				summaries = append(summaries, s)
			}

			if flags.json() {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}

			table := ui.NewTable(cmd.OutOrStdout(), color.NoColor, "Class", "Short name", "Backend", "Identifiers", "Operations")
			for _, s := range summaries {
				table.AddRow(s.Class, s.ShortName, s.Backend, strings.Join(s.Identifiers, ", "), strconv.Itoa(s.Operations))
			}
			table.Render()
			return nil
		},
	}
}
