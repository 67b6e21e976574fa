package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindpattern/internal/storage"
	"mindpattern/internal/worker"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete analyses older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("older-than") {
			cfg.Storage.Retention, _ = cmd.Flags().GetDuration("older-than")
		}

		repo, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer repo.Close()

		n := worker.NewJanitor(repo, cfg.Storage).RunOnce(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d analyses older than %s\n", okay.Sprint("purged"), n, cfg.Storage.Retention)
		return nil
	},
}

func init() {
	purgeCmd.Flags().Duration("older-than", 0, "retention period (defaults to storage.retention)")
}
