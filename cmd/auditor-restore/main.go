package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/archive"
	"github.com/auditor-project/auditor/internal/config"
	"github.com/auditor-project/auditor/internal/sqlstore"
)

func main() {
	if err := NewRestoreCommand().Execute(); err != nil {
		klog.ErrorS(err, "auditor-restore exited with error")
		os.Exit(1)
	}
}

// NewRestoreCommand builds the auditor-restore CLI: a thin wrapper around
// archive.Restore for re-inserting an archived Parquet month back into the
// live store (§4.5's restore sibling tool).
func NewRestoreCommand() *cobra.Command {
	var configPath string
	var archivePath string

	cmd := &cobra.Command{
		Use:   "auditor-restore",
		Short: "Restore an archived Parquet month into the AUDITOR store",
		Long: `Reads every row from the given Parquet archive file and
re-inserts them into the relational store. This is the inverse of the
archival scheduler's write-verify-delete pass (§4.5).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if archivePath == "" {
				return fmt.Errorf("--archive-path is required")
			}

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			ctx := cmd.Context()
			store, err := sqlstore.Open(ctx, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			n, err := archive.Restore(ctx, store, archivePath)
			if err != nil {
				return err
			}
			fmt.Printf("restored %d records from %s\n", n, archivePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file (§6.4)")
	cmd.Flags().StringVar(&archivePath, "archive-path", "", "Path to the .parquet archive file to restore")

	return cmd
}
