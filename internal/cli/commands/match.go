package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/apimeta/internal/cli/ui"
	"github.com/conduit-lang/apimeta/internal/metadata"
)

type matchResult struct {
	Class     string         `json:"class"`
	Operation string         `json:"operation"`
	Template  string         `json:"uri_template"`
	Variables map[string]any `json:"uri_variables"`
	Provider  string         `json:"provider,omitempty"`
	Processor string         `json:"processor,omitempty"`
}

func newMatchCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "match <METHOD> <path>",
		Short: "Resolve a request to its operation and typed URI variables",
		Long: `Resolve a request the way a transport would: route the method and path,
look the operation up and convert the URI variables to the types of the
identifier properties.`,
		Example: `  apimeta match GET /books/42
  apimeta match GET "/editions/tenantId=acme;localId=2"
  apimeta match DELETE /authors/7/books --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			k, err := flags.kernel(ctx)
			if err != nil {
				return err
			}
			defer k.Close(ctx)

			resolver, err := k.Resolver(ctx)
			if err != nil {
				return err
			}

			req, err := resolver.Resolve(ctx, args[0], args[1])
			if errors.Is(err, metadata.ErrOperationNotFound) {
				return &reportedError{err: err, rendered: ui.RouteNotFound(args[0], args[1], color.NoColor)}
			}
			if err != nil {
				return err
			}

			result := matchResult{
				Class:     req.Operation.Class.String(),
				Operation: req.Operation.Name,
				Template:  req.Operation.URITemplate,
				Variables: req.URIVariables,
				Provider:  req.Operation.Provider,
				Processor: req.Operation.Processor,
			}
			if flags.json() {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			w := cmd.OutOrStdout()
			kv := ui.NewKeyValueTable(w, color.NoColor)
			kv.AddRow("Class", result.Class)
			kv.AddRow("Operation", result.Operation)
			kv.AddRow("Template", result.Template)
			kv.AddRow("Provider", result.Provider)
			kv.AddRow("Processor", result.Processor)
			kv.Render()

			if len(result.Variables) > 0 {
				fmt.Fprintln(w)
				table := ui.NewTable(w, color.NoColor, "Variable", "Value", "Type")
				names := make([]string, 0, len(result.Variables))
				for name := range result.Variables {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					v := result.Variables[name]
					table.AddRow(name, fmt.Sprint(v), fmt.Sprintf("%T", v))
				}
				table.Render()
			}
			return nil
		},
	}
}
