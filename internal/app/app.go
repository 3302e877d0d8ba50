package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/newsupernova0617/convert-for-you/cmd/migrate"
	"github.com/newsupernova0617/convert-for-you/internal/cache"
	"github.com/newsupernova0617/convert-for-you/internal/config"
	"github.com/newsupernova0617/convert-for-you/internal/converter"
	"github.com/newsupernova0617/convert-for-you/internal/gc"
	"github.com/newsupernova0617/convert-for-you/internal/pool"
	"github.com/newsupernova0617/convert-for-you/internal/r2"
	"github.com/newsupernova0617/convert-for-you/internal/redisholder"
	"github.com/newsupernova0617/convert-for-you/internal/repository/storage"
	"github.com/newsupernova0617/convert-for-you/internal/transport/handler"
	"github.com/newsupernova0617/convert-for-you/internal/transport/router"
	use_case "github.com/newsupernova0617/convert-for-you/internal/use-case"
)

type App struct {
	HttpServer *http.Server

	pool      *pool.Pool
	collector *gc.Collector
	repo      *storage.Store
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations)
	if err != nil {
		return nil, err
	}

	repo, err := storage.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	holder, err := redisholder.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rc := holder.Get()

	rowCache := cache.NewCache("convertforyou:files", rc)

	blobs, err := r2.NewStorage(&cfg.R2)
	if err != nil {
		return nil, err
	}

	workers := pool.New(pool.Config{
		MinWorkers:  cfg.Pool.MinWorkers,
		MaxWorkers:  cfg.Pool.MaxWorkers,
		QueueSize:   cfg.Pool.QueueSize,
		TaskTimeout: time.Duration(cfg.Pool.TaskTimeoutSec) * time.Second,
		IdleTimeout: time.Duration(cfg.Pool.IdleTimeoutSec) * time.Second,
	})

	docs := converter.NewSofficeEngine()
	registry := converter.NewRegistry(
		docs,
		converter.NewGhostscriptEngine(),
		converter.NewFFmpegTranscoder(),
		nil,
	)
	probe := &converter.CapabilityProbe{
		Engine:       docs,
		ForceEnable:  cfg.Converter.PdfToExcelForceEnable,
		ForceDisable: cfg.Converter.PdfToExcelForceDisable,
	}

	uc := use_case.New(
		repo, blobs, workers, registry, rowCache, probe,
		cfg.Lifecycle.ArtifactTTL(), cfg.Lifecycle.RowCacheTTL(),
	)

	var lock gc.Locker
	if cfg.Lifecycle.SweepLock {
		lock = gc.NewRedisLock(rc, "convertforyou:gc:lock", cfg.Lifecycle.SweepInterval())
	}
	collector := gc.New(repo, blobs, rowCache, lock, cfg.Lifecycle.SweepInterval())

	h := handler.New(uc, cfg, workers, probe)
	r := router.NewRouter(h)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{
		HttpServer: s,
		pool:       workers,
		collector:  collector,
		repo:       repo,
	}, nil
}

// Run serves HTTP and the expiry sweeper until ctx is cancelled, then
// shuts both down in order.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("starting server on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.collector.Run(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.HttpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}

		a.pool.Close()
		a.repo.Close()
		return nil
	})

	return g.Wait()
}
