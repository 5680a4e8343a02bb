package main

import (
	"context"
	"net/http"

	"github.com/antinvestor/service-login-consent/apps/default/config"
	"github.com/antinvestor/service-login-consent/apps/default/service/business"
	"github.com/antinvestor/service-login-consent/apps/default/service/handlers"
	"github.com/antinvestor/service-login-consent/apps/default/service/hydra"
	"github.com/antinvestor/service-login-consent/apps/default/service/repository"
	"github.com/antinvestor/service-login-consent/apps/default/utils"
	"github.com/pitabwire/frame"
	"github.com/pitabwire/util"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {

	ctx := context.Background()
	serviceName := "service_login_consent"

	cfg, err := frame.ConfigLoadWithOIDC[config.LoginConsentConfig](ctx)
	if err != nil {
		util.Log(ctx).WithError(err).Fatal("could not process configs")
		return
	}

	ctx, svc := frame.NewServiceWithContext(ctx, serviceName, frame.WithConfig(&cfg))
	log := svc.Log(ctx)

	serviceOptions := []frame.Option{frame.WithDatastore()}

	// Handle database migration if requested
	if handleDatabaseMigration(ctx, svc, cfg, log) {
		return
	}

	hydraCli := hydra.NewDefaultHydra(
		&http.Client{Timeout: cfg.HydraRequestTimeout()},
		cfg.GetOauth2ServiceAdminURI(),
		cfg.HydraAdminPathPrefix,
	)

	metrics, err := business.NewDecisionMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.WithError(err).Fatal("could not register decision metrics")
	}

	resolver := business.NewChallengeResolver(
		hydraCli,
		repository.NewUserRepository(svc),
		repository.NewBanRepository(svc),
		repository.NewLoginAttemptRepository(svc),
		utils.NewBCrypt(),
		business.ThrottlePolicyFromConfig(&cfg),
		business.ResolverSettingsFromConfig(&cfg),
		business.WithMetrics(metrics),
	)

	srv, err := handlers.NewAuthServer(ctx, &cfg, resolver, prometheus.DefaultGatherer)
	if err != nil {
		log.WithError(err).Fatal("could not setup auth server")
	}

	router, err := srv.SetupRouterV1(ctx)
	if err != nil {
		log.WithError(err).Fatal("could not setup router")
	}

	serviceOptions = append(serviceOptions, frame.WithHTTPHandler(router))

	svc.Init(ctx, serviceOptions...)

	log.WithField("server http port", cfg.HTTPPort()).
		WithField("hydra admin", cfg.GetOauth2ServiceAdminURI()).
		Info(" Initiating server operations")
	err = svc.Run(ctx, "")
	if err != nil {
		log.WithError(err).Error("could not run service")
	}
}

// handleDatabaseMigration performs database migration if configured to do so.
func handleDatabaseMigration(
	ctx context.Context,
	svc *frame.Service,
	cfg config.LoginConsentConfig,
	log *util.LogEntry,
) bool {
	serviceOptions := []frame.Option{frame.WithDatastore()}

	if cfg.DoDatabaseMigrate() {
		svc.Init(ctx, serviceOptions...)

		err := repository.Migrate(ctx, svc, cfg.GetDatabaseMigrationPath())
		if err != nil {
			log.WithError(err).Fatal("main -- Could not migrate successfully")
		}
		return true
	}
	return false
}
