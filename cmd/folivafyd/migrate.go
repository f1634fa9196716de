package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/foliva/folivafy/internal/config"
	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/migrate"
	"github.com/foliva/folivafy/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the relational schema and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, rlog := logger.ContextWithLogger(context.Background())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db := store.Open(cfg.Database, cfg.Schema)
	if err := migrate.Run(ctx, db); err != nil {
		return err
	}
	rlog.Info("migrate: schema up to date")
	return nil
}
