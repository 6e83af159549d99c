package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/zona9/capture"
	"github.com/hazyhaar/zona9/config"
	"github.com/hazyhaar/zona9/dashboard"
	"github.com/hazyhaar/zona9/dbopen"
	"github.com/hazyhaar/zona9/observability"
	"github.com/hazyhaar/zona9/rendermode"
	"github.com/hazyhaar/zona9/shield"
	"github.com/hazyhaar/zona9/store"
)

// app holds the process-wide collaborators. It is built once from the
// configuration and never reconfigured.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	obsDB   *sql.DB
	metrics *observability.MetricsManager
	events  *observability.EventLogger
	dash    *dashboard.Service
	driver  *capture.Driver
	live    *capture.Fallback
}

// openApp opens both databases and wires the services.
func openApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	obsDB, err := dbopen.Open(cfg.ObsDBPath, dbopen.WithMkdirAll(), dbopen.WithRole(dbopen.Telemetry))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("observability db: %w", err)
	}
	if err := observability.Init(obsDB); err != nil {
		st.Close()
		obsDB.Close()
		return nil, fmt.Errorf("observability init: %w", err)
	}
	if err := shield.Init(obsDB); err != nil {
		st.Close()
		obsDB.Close()
		return nil, fmt.Errorf("shield init: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		obsDB:   obsDB,
		metrics: observability.NewMetricsManager(obsDB, 100, 5*time.Second),
		events:  observability.NewEventLogger(obsDB),
	}

	a.dash = dashboard.New(st, dashboard.Config{
		BaseURL:        cfg.BaseURL,
		LabelThreshold: cfg.Report.LabelThreshold,
		SettleDelay:    cfg.Capture.SettleDelay,
		Metrics:        a.metrics,
		Events:         a.events,
	}, logger)

	launcher := capture.NewRodLauncher(capture.RodConfig{
		RemoteURL: cfg.Capture.Remote,
		Bin:       cfg.Capture.Bin,
		Logger:    logger,
	})
	a.driver = capture.NewDriver(launcher, capture.Config{
		BaseURL:           cfg.BaseURL,
		AllowedHosts:      cfg.Capture.AllowedHosts,
		ViewportWidth:     cfg.Capture.ViewportWidth,
		DeviceScale:       cfg.Capture.DeviceScale,
		NavigationTimeout: cfg.Capture.NavigationTimeout,
		ReadyTimeout:      cfg.Capture.ReadyTimeout,
		Readiness: rendermode.Readiness{
			PollInterval: cfg.Capture.PollInterval,
			SettleDelay:  cfg.Capture.SettleDelay,
		},
		Logger:  logger,
		Metrics: a.metrics,
		Events:  a.events,
	})
	a.live = capture.NewFallback(a.driver)
	return a, nil
}

// Close flushes metrics and closes the databases.
func (a *app) Close() {
	if err := a.metrics.Close(); err != nil {
		a.logger.Warn("metrics close", "error", err)
	}
	a.obsDB.Close()
	a.store.Close()
}

// router builds the HTTP surface: shield stack, request log, dashboard and
// capture endpoints.
func (a *app) router() (http.Handler, *shield.RateLimiter) {
	r := chi.NewRouter()
	stack, rl := shield.DefaultStack(a.obsDB, "/static/", "/healthz")
	for _, mw := range stack {
		r.Use(mw)
	}
	r.Use(observability.RequestLog(a.obsDB, "/healthz"))

	a.dash.Mount(r)
	(&capture.Handler{
		Renderer: a.driver,
		Live:     a.live,
		BaseURL:  a.cfg.BaseURL,
	}).Mount(r)
	return r, rl
}
