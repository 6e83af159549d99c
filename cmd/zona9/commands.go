package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/zona9/capture"
	"github.com/hazyhaar/zona9/horosafe"
	"github.com/hazyhaar/zona9/observability"
	"github.com/hazyhaar/zona9/report"
)

func newServeCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard and export HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(gf)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			handler, rl := a.router()
			rl.StartReloader(ctx)
			go a.retention(ctx)

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				// Exports wait for navigation plus readiness.
				WriteTimeout: cfg.Capture.NavigationTimeout + cfg.Capture.ReadyTimeout + 30*time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				logger.Info("zona9 listening", "addr", cfg.Addr, "base_url", cfg.BaseURL)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("zona9 shutting down")
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer shutCancel()
			return srv.Shutdown(shutCtx)
		},
	}
}

// retention prunes the observability database once a day.
func (a *app) retention(ctx context.Context) {
	rc := observability.RetentionConfig{
		HTTPLogsDays:  a.cfg.Retention.HTTPLogsDays,
		EventLogsDays: a.cfg.Retention.EventLogsDays,
		MetricsDays:   a.cfg.Retention.MetricsDays,
	}
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		if err := observability.Cleanup(ctx, a.obsDB, rc); err != nil && ctx.Err() == nil {
			a.logger.Warn("observability cleanup", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func newSeedCmd(gf *globalFlags) *cobra.Command {
	var date string
	c := &cobra.Command{
		Use:   "seed",
		Short: "Write the demo report for a date and its prior-day baseline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(gf)
			if err != nil {
				return err
			}
			d := time.Now()
			if date != "" {
				if d, err = report.ParseDate(date); err != nil {
					return err
				}
			}
			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.store.Seed(cmd.Context(), d); err != nil {
				return err
			}
			logger.Info("seeded", "date", report.Day(d).String(), "db", cfg.DBPath)
			return nil
		},
	}
	c.Flags().StringVar(&date, "date", "", "report date, YYYY-MM-DD (default: today)")
	return c
}

func newCaptureCmd(gf *globalFlags) *cobra.Command {
	var (
		date, start, end, view, format, host, out, dir string
		live                                      bool
	)
	c := &cobra.Command{
		Use:   "capture",
		Short: "Render one report export against a running dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(gf)
			if err != nil {
				return err
			}
			q := map[string][]string{
				report.ParamView:   {view},
				report.ParamFormat: {format},
				report.ParamHost:   {host},
			}
			if start != "" || end != "" {
				q[report.ParamStartDate] = []string{start}
				q[report.ParamEndDate] = []string{end}
			} else {
				q[report.ParamDate] = []string{date}
			}
			req, err := report.ParseExportRequest(q)
			if err != nil {
				return err
			}
			if req.View == report.ViewWeek && req.Period.IsDay() {
				req.Period = report.WeekOf(req.Period.Start)
			}
			if req.Host == "" {
				req.Host = cfg.BaseURL
			}

			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var data []byte
			name := req.Filename()
			if live {
				u, err := capture.LiveURL(req, req.Host)
				if err != nil {
					return err
				}
				art, err := a.live.CaptureCurrentView(ctx, u)
				if err != nil {
					return err
				}
				data, name = art.Data, art.Filename
			} else {
				art, err := a.driver.Render(ctx, req)
				if err != nil {
					return err
				}
				data = art.Data
			}
			if out == "" {
				out = name
			}
			if dir != "" {
				if out, err = horosafe.SafePath(dir, out); err != nil {
					return fmt.Errorf("capture: %w", err)
				}
				if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
					return fmt.Errorf("capture: %w", err)
				}
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("capture: write %s: %w", out, err)
			}
			logger.Info("capture written", "file", out, "bytes", len(data))
			return nil
		},
	}
	f := c.Flags()
	f.StringVar(&date, "date", time.Now().Format(report.DateLayout), "report date, YYYY-MM-DD")
	f.StringVar(&start, "start", "", "interval start, YYYY-MM-DD")
	f.StringVar(&end, "end", "", "interval end, YYYY-MM-DD")
	f.StringVar(&view, "view", "day", "day|week")
	f.StringVar(&format, "format", "png", "png|pdf")
	f.StringVar(&host, "host", "", "dashboard origin (default: base_url)")
	f.StringVarP(&out, "output", "o", "", "output file (default: Zona9_Report_<period>.<ext>)")
	f.StringVar(&dir, "dir", "", "directory the output file must stay under")
	f.BoolVar(&live, "live", false, "capture the interactive page instead of the export mode")
	return c
}

func newMCPCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the report tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(gf)
			if err != nil {
				return err
			}
			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcp.NewServer(&mcp.Implementation{Name: "zona9", Version: "1.0.0"}, nil)
			a.dash.RegisterMCP(srv)
			logger.Info("mcp serving on stdio")
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
