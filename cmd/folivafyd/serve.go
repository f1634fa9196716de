package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/foliva/folivafy/internal/authn"
	"github.com/foliva/folivafy/internal/authz"
	"github.com/foliva/folivafy/internal/collection"
	"github.com/foliva/folivafy/internal/config"
	"github.com/foliva/folivafy/internal/grants"
	"github.com/foliva/folivafy/internal/httpapi"
	"github.com/foliva/folivafy/internal/identity"
	"github.com/foliva/folivafy/internal/logger"
	"github.com/foliva/folivafy/internal/mail"
	"github.com/foliva/folivafy/internal/metrics"
	"github.com/foliva/folivafy/internal/notify"
	"github.com/foliva/folivafy/internal/registry"
	"github.com/foliva/folivafy/internal/schema"
	"github.com/foliva/folivafy/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and its background workers",
	RunE:  runServe,
}

// purgeSweepInterval is how often the deletion-stage purge sweep runs; it is
// deliberately coarse, since purging is driven by day-granularity deadlines
// (spec §6's FOLIVAFY_ENABLE_DELETION policy), not real-time pressure.
const purgeSweepInterval = 10 * time.Minute

func runServe(cmd *cobra.Command, args []string) error {
	ctx, rlog := logger.ContextWithLogger(context.Background())
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db := store.Open(cfg.Database, cfg.Schema)
	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	outbox := notify.New(db, cfg.KafkaBrokers, cfg.KafkaTopic, cfg.OutboxWorkers)
	if err := outbox.EnsureTable(ctx); err != nil {
		return err
	}
	go outbox.Run(ctx, time.Duration(cfg.OutboxPollSeconds)*time.Second)

	grantEngine := grants.New(st)
	facade := collection.New(st, grantEngine, cfg.DeletionPolicies, outbox)
	if err := facade.EnsureSystemCollections(ctx); err != nil {
		return err
	}

	reg := registry.MustNew(db)
	go runPurgeSweep(ctx, st, reg, cfg.DeletionPolicies)

	systemPrincipal := collection.Principal{
		ID:    uuid.Nil,
		Roles: []string{authz.PlatformAdminRole, "C_FOLIVAFY-MAIL_ADMIN", "C_FOLIVAFY-MAIL_EDITOR"},
	}
	sender := mail.NewSMTPSender(cfg.MailHost, strconv.Itoa(cfg.MailPort), cfg.MailFrom)
	mailWorker := mail.NewWorker(facade, sender, systemPrincipal)
	go mailWorker.Run(ctx, cfg.CronInterval)

	var lookup identity.Lookup = identity.NoopLookup{}
	if cfg.UserdataURL != "" {
		lookup = identity.NewHTTPLookup(cfg.UserdataURL)
	}

	verifier := authn.NewVerifier(cfg.JWTIssuer, cfg.JWTSecret)
	validator := schema.MustLoad()
	router := httpapi.New(facade, verifier, validator, lookup).Router()
	router.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rlog.WithError(err).Warn("serve: shutdown")
		}
	}()

	rlog.WithField("port", cfg.Port).Info("serve: listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// runPurgeSweep periodically drives both halves of the deletion lifecycle's
// tail (spec §4.5): first it promotes every deleted_stage1 document whose
// first-stage window has elapsed to deleted_stage2, per collection using
// that collection's configured Stage2Days; then it physically purges
// documents already in deleted_stage2 past their deadline. The combined
// counts are recorded in the registry so an operator can see the sweep is
// alive even between runs that find nothing to advance or purge.
func runPurgeSweep(ctx context.Context, st *store.Store, reg *registry.Registry, policies map[string]config.DeletionPolicy) {
	rlog := logger.FromContext(ctx)
	ticker := time.NewTicker(purgeSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			var promoted int
			for name, policy := range policies {
				n, err := st.PromoteExpiredStage1(ctx, name, now, policy.Stage2Days)
				if err != nil {
					rlog.WithError(err).WithField("collection", name).Warn("purge sweep: promote stage2")
					continue
				}
				promoted += n
			}

			purged, err := st.PurgeExpired(ctx, now)
			if err != nil {
				rlog.WithError(err).Warn("purge sweep: purge expired")
				continue
			}

			state := registry.PurgeSweepState{PromotedToStage2: promoted, Purged: purged, At: now}
			if err := reg.SavePurgeSweepState(state); err != nil {
				rlog.WithError(err).Warn("purge sweep: record last run")
			}
		}
	}
}
