package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/HARD953/distribut-sub001/dashboard"
	"github.com/HARD953/distribut-sub001/server"
	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
)

const shutdownTimeout = 5 * time.Second

// cmdServe runs the console gateway until ctx is cancelled. A panic inside
// the serve loop restarts it.
func cmdServe(ctx context.Context, a *app, _ []string) error {
	displayAppname(a.cfg.GetAppName())
	state := a.restore(ctx)
	a.logger.Info().Str("session", state.String()).Msg("session state at startup")

	// The cache listens on the store for the whole process, restarts reuse it.
	cache, err := dashboard.NewCache(a.api, dashboard.WithTTL(a.cfg.GetDashboardTTL()), dashboard.WithEndpoint(a.cfg.GetProbeEndpoint()))
	if err != nil {
		return err
	}
	cache.Attach(a.store)

	for {
		err := runServer(ctx, a, cache)
		if err == nil || ctx.Err() != nil {
			return err
		}
		a.logger.Error().Err(err).Msg("gateway stopped, restarting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func runServer(ctx context.Context, a *app, cache *dashboard.Cache) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	handler, err := server.New(a.cfg, a.store, a.api, cache, server.WithLogger(a.logger), server.WithGatherer(a.registry))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.cfg.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(a, srv)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return shutdown(srv)
}

func listenAndServe(a *app, srv *http.Server) error {
	a.logger.Info().Str("addr", srv.Addr).Str("backend", a.api.BaseURL()).Msg("gateway listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
