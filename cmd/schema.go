package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"datakit/core/database"
	"datakit/feature/stories"

	"github.com/spf13/cobra"
)

// schemaCmd prints the columns of the story table as the database sees them.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the story table columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		columns, err := database.GetTableColumns(a.container.DB(), stories.Story{}.TableName())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FIELD\tTYPE\tNULL\tKEY\tDEFAULT")
		for _, c := range columns {
			def := "NULL"
			if c.Default != nil {
				def = *c.Default
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Field, c.Type, c.Null, c.Key, def)
		}
		return w.Flush()
	},
}

func init() {
	RootCmd.AddCommand(schemaCmd)
}
