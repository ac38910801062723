package cmd

import (
	"errors"

	"datakit/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fixFlag bool

// integrityCmd checks the mirror's database schema and snapshot storage.
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Perform integrity checks on the database and snapshot storage",
	Long: `Checks that the story table carries every model column and that the snapshot
bucket exists. Use --fix to create a missing bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		svc := a.integrity()
		l := a.logger

		schemaReport, err := svc.CheckSchema()
		if err != nil {
			return err
		}
		for table, tbl := range schemaReport.Tables {
			l.Info("Schema check",
				zap.String("table", table),
				zap.String("status", tbl.Status),
				zap.Strings("missing_columns", tbl.MissingColumns),
				zap.Strings("key_mismatches", tbl.KeyMismatches))
		}
		for _, e := range schemaReport.Errors {
			l.Error("Schema check error", zap.String("error", e))
		}

		storageReport, err := svc.CheckStorage(cmd.Context())
		if errors.Is(err, integrity.ErrStorageDisabled) {
			l.Info("Storage check skipped, storage is disabled")
			return nil
		}
		if err != nil {
			return err
		}
		if !storageReport.BucketExists && fixFlag {
			if err := svc.FixStorage(cmd.Context()); err != nil {
				return err
			}
			storageReport.BucketExists = true
		}
		l.Info("Storage check",
			zap.String("bucket", storageReport.Bucket),
			zap.Bool("bucket_exists", storageReport.BucketExists),
			zap.String("object", storageReport.Object),
			zap.Bool("snapshot_exists", storageReport.SnapshotExists))
		return nil
	},
}

func init() {
	integrityCmd.Flags().BoolVar(&fixFlag, "fix", false, "Create the snapshot bucket when missing")
	RootCmd.AddCommand(integrityCmd)
}
