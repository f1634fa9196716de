package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/foliva/folivafy/internal/collection"
	"github.com/foliva/folivafy/internal/config"
	"github.com/foliva/folivafy/internal/grants"
	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/store"
)

var rebuildGrantsCmd = &cobra.Command{
	Use:   "rebuild-grants [name]",
	Short: "Rebuild materialized grant rows for one or all OAO collections",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRebuildGrants,
}

var rebuildGrantsAll bool

func init() {
	rebuildGrantsCmd.Flags().BoolVar(&rebuildGrantsAll, "all", false, "rebuild every collection instead of naming one")
}

func runRebuildGrants(cmd *cobra.Command, args []string) error {
	ctx, rlog := logger.ContextWithLogger(context.Background())

	if !rebuildGrantsAll && len(args) != 1 {
		return errRebuildGrantsUsage
	}
	if rebuildGrantsAll && len(args) == 1 {
		return errRebuildGrantsUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db := store.Open(cfg.Database, cfg.Schema)
	st := store.New(db)
	facade := collection.New(st, grants.New(st), cfg.DeletionPolicies, nil)

	if !rebuildGrantsAll {
		name := args[0]
		if err := facade.RebuildGrants(ctx, operatorPrincipal, name); err != nil {
			return err
		}
		rlog.WithField("collection", name).Info("rebuild-grants: done")
		return nil
	}

	const page = 100
	for offset := 0; ; offset += page {
		cols, total, err := facade.ListCollections(ctx, operatorPrincipal, page, offset)
		if err != nil {
			return err
		}
		for _, col := range cols {
			if !col.OAO {
				continue
			}
			if err := facade.RebuildGrants(ctx, operatorPrincipal, col.Name); err != nil {
				return err
			}
			rlog.WithField("collection", col.Name).Info("rebuild-grants: done")
		}
		if offset+len(cols) >= total {
			break
		}
	}
	return nil
}

var errRebuildGrantsUsage = rebuildGrantsUsageError{}

type rebuildGrantsUsageError struct{}

func (rebuildGrantsUsageError) Error() string {
	return "rebuild-grants: pass exactly one collection name, or --all"
}
