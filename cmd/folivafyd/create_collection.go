package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/foliva/folivafy/internal/authz"
	"github.com/foliva/folivafy/internal/collection"
	"github.com/foliva/folivafy/internal/config"
	"github.com/foliva/folivafy/internal/grants"
	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/store"
)

var createCollectionCmd = &cobra.Command{
	Use:   "create-collection <name> <title>",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreateCollection,
}

var createCollectionOAO bool

func init() {
	createCollectionCmd.Flags().BoolVar(&createCollectionOAO, "oao", false, "restrict the collection to owner-and-admin visibility")
}

// operatorPrincipal is the implicit caller identity every CLI subcommand
// acts as: whoever can reach the database connection string this process
// was started with already holds more trust than any HTTP bearer token
// could grant, so the CLI never asks for one of its own.
var operatorPrincipal = collection.Principal{ID: uuid.Nil, Roles: []string{authz.PlatformAdminRole}}

func runCreateCollection(cmd *cobra.Command, args []string) error {
	ctx, rlog := logger.ContextWithLogger(context.Background())
	name, title := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db := store.Open(cfg.Database, cfg.Schema)
	st := store.New(db)
	facade := collection.New(st, grants.New(st), cfg.DeletionPolicies, nil)

	if err := facade.CreateCollection(ctx, operatorPrincipal, name, title, createCollectionOAO); err != nil {
		return err
	}
	rlog.WithField("collection", name).Info("create-collection: created")
	return nil
}
