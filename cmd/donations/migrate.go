package main

import (
	"context"

	"github.com/spf13/cobra"

	"donation-gate/internal/config"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the intents schema (postgres) or buckets (bolt)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			store, err := openStore(context.Background(), cfg)
			if err != nil {
				return err
			}
			return store.Close()
		},
	}
}
