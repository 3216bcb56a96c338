// Package app wires the Rally server runtime: config, logging, storage,
// planning services, the realtime gateway, and the archival sweeper.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"rally/cmd/internal/api"
	"rally/cmd/internal/archive"
	"rally/cmd/internal/invite"
	"rally/cmd/internal/planning"
	"rally/cmd/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App owns the HTTP server and every wired service.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	planningStore planning.Store

	planning *planning.Service
	invites  *invite.Service
	archive  *archive.Service
	ws       *realtime.WSGateway
	api      *api.Handler
}

// New constructs a fully wired App from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	planningStore, inviteStore, dbPool, dbEnabled, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	invites, err := invite.NewService(inviteStore)
	if err != nil {
		closePool(dbPool)
		return nil, err
	}

	hub := realtime.NewHub(log)

	planningSvc, err := planning.NewService(planningStore, invites, planning.WithPublisher(hub))
	if err != nil {
		closePool(dbPool)
		return nil, err
	}

	archiveSvc, err := archive.NewService(log, planningStore,
		archive.WithInactiveFor(cfg.ArchiveInactiveFor),
		archive.WithBatchLimit(cfg.ArchiveBatchLimit),
	)
	if err != nil {
		closePool(dbPool)
		return nil, err
	}

	ws := realtime.NewWSGateway(log, hub, planningSvc)

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = runtimeBaseURL(cfg.HTTPAddr)
	}

	return &App{
		cfg:           cfg,
		log:           log,
		dbPool:        dbPool,
		dbEnabled:     dbEnabled,
		planningStore: planningStore,
		planning:      planningSvc,
		invites:       invites,
		archive:       archiveSvc,
		ws:            ws,
		api:           api.NewHandler(log, planningSvc, archiveSvc, baseURL),
	}, nil
}

// Run starts the HTTP server and the archival runner, blocking until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.api)

	var handler http.Handler = mux
	handler = WithSecurityHeaders(handler)
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	archiveDone := make(chan struct{})
	if a.cfg.ArchiveEnabled {
		runner, err := archive.NewRunner(a.archive, a.cfg.ArchiveInterval)
		if err != nil {
			return err
		}
		go func() {
			defer close(archiveDone)
			if err := runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("archive.runner.fail", "err", err)
			}
		}()
	} else {
		close(archiveDone)
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", base,
		"ws_url", wsBaseURL(base)+"/ws",
		"db_enabled", a.dbEnabled,
		"archive_enabled", a.cfg.ArchiveEnabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		cancel()
		<-archiveDone
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	<-archiveDone

	if err := a.planningStore.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}
	closePool(a.dbPool)

	a.log.Info("server.stopped")
	return nil
}

// newStores decides between Postgres-backed persistence and the in-memory
// dev stores. Both planning and invite stores always share the same backend.
func newStores(ctx context.Context, cfg Config, log Logger) (planning.Store, invite.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return planning.NewMemoryStore(), invite.NewMemoryStore(), nil, false, nil
	}

	if cfg.MigrateOnStart {
		if err := RunMigrations(cfg, log); err != nil {
			return nil, nil, nil, false, err
		}
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, false, err
	}

	planningStore, err := planning.NewPostgresStore(pool, planning.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	inviteStore, err := invite.NewPostgresStore(pool, invite.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return planningStore, inviteStore, pool, true, nil
}

func closePool(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL converts a listen address into a client-usable base URL,
// substituting loopback for wildcard binds.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port
}

// wsBaseURL maps an HTTP base URL onto the matching WebSocket scheme.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
