package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortiblox/x1-token/pkg/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export, import and verify account store snapshots",
	}

	var batchSize int
	importCmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Load a snapshot into an empty account store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			config := a.snapshotConfig()
			config.BatchSize = batchSize
			result, err := snapshot.ImportFile(args[0], db, config)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	importCmd.Flags().IntVar(&batchSize, "batch-size", 1024, "accounts committed per store batch")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "export <archive>",
			Short: "Write every account to a tar.zst snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := a.openStore()
				if err != nil {
					return err
				}
				defer db.Close()

				manifest, err := snapshot.ExportFile(db, args[0], a.snapshotConfig())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), manifest)
			},
		},
		importCmd,
		&cobra.Command{
			Use:   "verify <archive>",
			Short: "Check a snapshot's manifest against its account stream",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				result, err := snapshot.VerifyFile(args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			},
		},
	)
	return cmd
}

func (a *app) snapshotConfig() snapshot.Config {
	config := snapshot.DefaultConfig()
	config.Logger = a.log.Named("snapshot")
	config.ProgressCallback = func(p snapshot.Progress) {
		a.log.Debug("snapshot progress",
			zap.String("stage", p.Stage),
			zap.Uint64("processed", p.AccountsProcessed),
			zap.Uint64("total", p.AccountsTotal),
		)
	}
	return config
}
