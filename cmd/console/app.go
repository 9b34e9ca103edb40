package main

import (
	"context"
	"io"

	"github.com/HARD953/distribut-sub001/apiclient"
	"github.com/HARD953/distribut-sub001/auth"
	"github.com/HARD953/distribut-sub001/internal/config"
	"github.com/HARD953/distribut-sub001/internal/logging"
	"github.com/HARD953/distribut-sub001/internal/metrics"
	"github.com/HARD953/distribut-sub001/sessions"
	"github.com/HARD953/distribut-sub001/sessions/filestore"
	fakesessionrepo "github.com/HARD953/distribut-sub001/sessions/repofakes"
	"github.com/HARD953/distribut-sub001/sessions/sqlitestore"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// app is the wiring shared by every subcommand:
// config -> logger -> repo -> API client -> session store.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	api      *apiclient.Client
	store    *auth.SessionStore
	out      io.Writer

	closeRepo func() error
}

func newApp(cfg config.Config, out io.Writer) (*app, error) {
	logger := logging.Setup(cfg.GetEnv(), cfg.GetLogLevel())

	repo, closeRepo, err := openRepo(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		_ = closeRepo()
		return nil, errors.Wrap(err, "[newApp] metrics")
	}

	options := []apiclient.Option{
		apiclient.WithTimeout(cfg.GetRequestTimeout()),
		apiclient.WithLogger(logger),
		apiclient.WithMetrics(m),
	}
	if rps := cfg.GetRateLimit(); rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		options = append(options, apiclient.WithRateLimiter(rate.NewLimiter(rate.Limit(rps), burst)))
	}
	if cfg.GetSingleFlightRefresh() {
		options = append(options, apiclient.WithSingleFlightRefresh())
	}
	api, err := apiclient.New(cfg.GetAPIBaseURL(), options...)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	store, err := auth.NewSessionStore(repo, api,
		auth.WithLogger(logger),
		auth.WithUserEndpoint(cfg.GetUserEndpoint()),
		auth.WithProbeEndpoint(cfg.GetProbeEndpoint()),
	)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		api:       api,
		store:     store,
		out:       out,
		closeRepo: closeRepo,
	}, nil
}

// restore validates the persisted session, the first step of every command
// except login.
func (a *app) restore(ctx context.Context) auth.State {
	return a.store.Restore(ctx)
}

func (a *app) Close() error {
	return a.closeRepo()
}

func openRepo(cfg config.Config) (sessions.Repo, func() error, error) {
	noop := func() error { return nil }

	switch cfg.GetSessionBackend() {
	case config.SessionBackendMemory:
		return fakesessionrepo.NewFakeSessionRepo(), noop, nil
	case config.SessionBackendSQLite:
		store, err := sqlitestore.Open(cfg.GetSessionPath())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		var options []filestore.Option
		if p := cfg.GetSessionPassphrase(); p != "" {
			options = append(options, filestore.WithPassphrase(p))
		}
		store, err := filestore.New(cfg.GetSessionPath(), options...)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}
}
