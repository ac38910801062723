package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var storiesLimit int

// storiesCmd is the parent command for reading the mirror.
var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "Read the local story mirror",
}

var storiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored stories, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		list, err := a.service.List(cmd.Context(), storiesLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tSCORE\tBY\tTITLE")
		for _, s := range list {
			ts := "-"
			if !s.Time.IsZero() {
				ts = s.Time.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", s.StoryID, ts, s.Score, s.By, s.Title)
		}
		return w.Flush()
	},
}

var storiesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one mirrored story as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid story id %q", args[0])
		}

		a, err := bootstrap(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		story, err := a.service.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(story, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	storiesListCmd.Flags().IntVar(&storiesLimit, "limit", 40, "Maximum number of stories (0 for all)")

	storiesCmd.AddCommand(storiesListCmd)
	storiesCmd.AddCommand(storiesShowCmd)
	RootCmd.AddCommand(storiesCmd)
}
