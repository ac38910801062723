package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// snapshotCmd is the parent command for mirror snapshots in object storage.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export and list mirror snapshots in object storage",
	Long: `Snapshots hold the mirror in source wire format and can be read back with
"refresh --source snapshot". Requires storage.enabled.`,
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the mirror to the snapshot object",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		snap, err := a.service.ExportSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		a.logger.Info("Snapshot written",
			zap.String("bucket", snap.Bucket),
			zap.String("object", snap.Object),
			zap.Int("stories", snap.Stories),
			zap.Int64("size", snap.Size))
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshot objects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		objs, err := a.service.Snapshots(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OBJECT\tSIZE\tMODIFIED")
		for _, o := range objs {
			fmt.Fprintf(w, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	RootCmd.AddCommand(snapshotCmd)
}
