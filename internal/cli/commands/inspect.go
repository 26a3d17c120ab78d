package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/apimeta/internal/cli/ui"
	"github.com/conduit-lang/apimeta/internal/metadata"
	"github.com/conduit-lang/apimeta/internal/metadata/property"
)

type inspection struct {
	Resource   metadata.ResourceCollection `json:"resource"`
	Properties []metadata.APIProperty      `json:"properties"`
}

func newInspectCommand(flags *globalFlags) *cobra.Command {
	var groups []string

	cmd := &cobra.Command{
		Use:   "inspect <class>",
		Short: "Show the resolved metadata of a resource class",
		Long: `Show the resolved metadata of a resource class: its views, operations
with URI templates and variables, and every property with its identifier,
readable, writable and required flags.

The class may be given by full name, local name or short name.`,
		Example: `  apimeta inspect library.Book
  apimeta inspect book --groups read
  apimeta inspect Book --format json`,
		Args: cobra.ExactArgs(1),
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
			class, ok := findClass(args[0], classes)
			if !ok {
				candidates := make([]string, len(classes))
				for i, c := range classes {
					candidates[i] = c.String()
				}
				notFound := &metadata.ResourceNotFoundError{Class: metadata.ResourceClass(args[0])}
				return &reportedError{
					err:      notFound,
					rendered: ui.ClassNotFound(args[0], ui.FindSimilar(args[0], candidates), color.NoColor),
				}
			}

			c, err := k.Resources.Create(ctx, class)
			if err != nil {
				return err
			}

			opts := property.Options{NormalizationGroups: groups}
			names, err := k.PropertyNames.Names(ctx, class, opts)
			if err != nil {
				return err
			}
			props := make([]metadata.APIProperty, 0, len(names))
			for _, name := range names {
				prop, err := k.Properties.Create(ctx, class, name, opts)
				if err != nil {
					return fmt.Errorf("failed to resolve %s.%s: %w", class, name, err)
				}
				props = append(props, prop)
			}

			if flags.json() {
				return writeJSON(cmd.OutOrStdout(), inspection{Resource: c, Properties: props})
			}
			renderInspection(cmd, c, props)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&groups, "groups", nil, "Normalization groups to resolve properties for")
	return cmd
}

// findClass accepts the full class name, its local name or a short name,
// case-insensitively
func findClass(arg string, classes []metadata.ResourceClass) (metadata.ResourceClass, bool) {
	for _, class := range classes {
		if string(class) == arg {
			return class, true
		}
	}
	for _, class := range classes {
		if strings.EqualFold(class.String(), arg) || strings.EqualFold(localName(class), arg) {
			return class, true
		}
	}
	return "", false
}

func localName(class metadata.ResourceClass) string {
	s := class.String()
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func renderInspection(cmd *cobra.Command, c metadata.ResourceCollection, props []metadata.APIProperty) {
	w := cmd.OutOrStdout()
	noColor := color.NoColor

	for _, res := range c.Resources {
		ui.Header(w, string(c.Class), noColor)
		kv := ui.NewKeyValueTable(w, noColor)
		kv.AddRow("Short name", res.ShortName)
		kv.AddRow("Version", res.Version)
		kv.AddRow("Backend", res.Persistence.Backend)
		kv.AddRow("Target", res.Persistence.Target)
		kv.AddRow("Provider", res.Provider)
		kv.AddRow("Processor", res.Processor)
		kv.AddRow("Identifiers", strings.Join(res.Identifiers, ", "))
		kv.Render()
		fmt.Fprintln(w)

		if len(res.Operations) > 0 {
			ui.Header(w, "Operations", noColor)
			table := ui.NewTable(w, noColor, "Method", "Template", "Name", "Kind", "Variables")
			for _, op := range res.Operations {
				table.AddRow(op.Method, op.URITemplate, op.Name, string(op.Kind), formatVariables(op.URIVariables))
			}
			table.Render()
			fmt.Fprintln(w)
		}

		if len(res.GraphQLOperations) > 0 {
			ui.Header(w, "GraphQL operations", noColor)
			table := ui.NewTable(w, noColor, "Name", "Kind", "Method")
			for _, op := range res.GraphQLOperations {
				table.AddRow(op.Name, string(op.Kind), op.Method)
			}
			table.Render()
			fmt.Fprintln(w)
		}
	}

	ui.Header(w, "Properties", noColor)
	table := ui.NewTable(w, noColor, "Name", "Types", "Identifier", "Readable", "Writable", "Required")
	for _, p := range props {
		types := make([]string, len(p.Types))
		for i, t := range p.Types {
			types[i] = t.String()
		}
		table.AddRow(p.Name, strings.Join(types, "|"),
			p.Identifier.String(), p.Readable.String(), p.Writable.String(), p.Required.String())
	}
	table.Render()
}

// formatVariables renders "id=Book(id)" or "authorId=Author(id)->author"
func formatVariables(vars []metadata.URIVariable) string {
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		s := v.Parameter
		if v.FromClass != "" {
			s += "=" + localName(v.FromClass) + "(" + strings.Join(v.Identifiers, ";") + ")"
		}
		if v.ToProperty != "" {
			s += "->" + v.ToProperty
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
