package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablesync/internal/registry"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "tables",
		Short:         "List synchronized tables and their columns",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Table(
				[]string{"id", "name", "kind", "writable", "columns"},
				tableRows(registry.Default()),
			)
		},
	}
}

func tableRows(reg *registry.Registry) [][]string {
	var rows [][]string
	for _, t := range reg.Tables() {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, c.Name+":"+c.Classification.String())
		}
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			t.Name,
			t.Kind.String(),
			strconv.FormatBool(reg.IsMutable(t.Name)),
			strings.Join(cols, ","),
		})
	}
	return rows
}
