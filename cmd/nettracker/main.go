package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"nettracker/internal/amqp"
	"nettracker/internal/cli"
	"nettracker/internal/config"
	apphttp "nettracker/internal/http"
	"nettracker/internal/log"
	"nettracker/internal/services"
	gsheet "nettracker/internal/sheets/google"
	memsheets "nettracker/internal/sheets/memory"
	"nettracker/internal/splitwise"
	"nettracker/internal/storage"
	"nettracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting nettracker", log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp", cfg.AMQPEnabled(),
		"export", cfg.ExportMode(),
		"auto_sync_interval", cfg.AutoSyncInterval)

	startCtx := context.Background()
	backendRes := cli.InitBackend(startCtx, logger, cfg)
	store := storage.NewStore(backendRes.KV, logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	remote, err := splitwise.NewClient(splitwise.Config{
		BaseURL:     cfg.SplitwiseBaseURL,
		PageLimit:   cfg.SplitwisePageLimit,
		MaxPages:    cfg.SplitwiseMaxPages,
		Timeout:     cfg.SplitwiseTimeout,
		IdentityTTL: cfg.IdentityCacheTTL,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Splitwise client", log.FieldError, err)
		os.Exit(1)
	}

	opts := []services.Option{
		services.WithLocation(loc),
		services.WithLogger(logger),
	}

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPEventsRoutingKey)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeNetwork)
			os.Exit(1)
		}
		opts = append(opts, services.WithEventPublisher(amqpClient))
	} else {
		logger.Info("AMQP disabled, sync requests are accepted over HTTP only")
	}

	switch cfg.ExportMode() {
	case config.ExportSheets:
		exporter, err := gsheet.NewFromEnv(startCtx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeConfiguration)
			os.Exit(1)
		}
		opts = append(opts, services.WithExporter(exporter))
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	case config.ExportMemory:
		opts = append(opts, services.WithExporter(memsheets.New()))
		logger.Warn("In-memory export enabled, statements are lost on exit")
	}

	budget := services.NewBudgetService(store, remote, opts...)
	budget.Init(startCtx)

	var scheduler *services.SyncScheduler
	if cfg.AutoSyncInterval > 0 {
		sc := services.DefaultSyncSchedulerConfig()
		sc.Interval = cfg.AutoSyncInterval
		scheduler = services.NewSyncScheduler(budget, sc)
	}

	srv := apphttp.NewServer(":"+cfg.Port, budget, store, apphttp.WithServerLogger(logger))

	var cleanupOnce sync.Once
	cleanup := func(ctx context.Context) {
		cleanupOnce.Do(func() {
			if scheduler != nil {
				if err := scheduler.Stop(ctx); err != nil {
					logger.Warn("Scheduler stop error", log.FieldError, err)
				}
			}
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Server shutdown error", log.FieldError, err)
			}
			if amqpClient != nil {
				if err := amqpClient.Close(); err != nil {
					logger.Warn("AMQP close error", log.FieldError, err)
				}
			}
			if err := backendRes.Cleanup(); err != nil {
				logger.Warn("Backend close error", log.FieldError, err)
			}
		})
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, cleanup)
	g, gctx := errgroup.WithContext(ctx)

	if scheduler != nil {
		if err := scheduler.Start(gctx); err != nil {
			logger.Error("Failed to start sync scheduler", log.FieldError, err)
			os.Exit(1)
		}
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// A failed consumer must not leave the server running.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server shutdown error", log.FieldError, err)
		}
		return nil
	})

	if amqpClient != nil {
		syncWorker := worker.NewSyncWorker(budget, worker.DefaultMaxAge)
		g.Go(func() error {
			err := amqpClient.ConsumeSyncRequests(gctx, syncWorker.HandleSyncRequest)
			if errors.Is(err, context.Canceled) || gctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Fatal runtime error", log.FieldError, err)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		cleanup(shutdownCtx)
		cancel()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
