package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"earcheck/internal/config"
	"earcheck/internal/core"
	"earcheck/internal/db"
	httpserver "earcheck/internal/http"
	"earcheck/internal/inference"
	"earcheck/internal/llm"
	"earcheck/internal/logger"
	"earcheck/internal/trees"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	engine, err := inference.Default()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	catalog, err := trees.Default()
	if err != nil {
		return fmt.Errorf("load trees: %w", err)
	}

	var (
		store    core.Store
		notifier core.Notifier
		listener httpserver.Listener
	)
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer dbConn.Close()
		if err := db.Migrate(ctx, dbConn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		n := db.NewNotifier(dbConn, cfg.DatabaseURL, cfg.NotifyChannel, log)
		store, notifier, listener = db.NewRepository(dbConn), n, n
		log.Info("using postgres store", "channel", cfg.NotifyChannel)
	} else {
		b := db.NewBroadcaster()
		store, notifier, listener = db.NewMemoryStore(), b, b
		log.Warn("DATABASE_URL not set; sessions are kept in memory")
	}

	var (
		summarizer     *core.Summarizer
		treeSummarizer *core.TreeSummarizer
	)
	if cfg.GenerationEnabled() {
		client := llm.NewOpenAIClient(llm.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			Temperature: cfg.Temperature,
		})
		summarizer = core.NewSummarizer(client, cfg.AttemptTimeout, log)
		treeSummarizer = core.NewTreeSummarizer(client, cfg.AttemptTimeout, log)
		log.Info("generation backend configured", "model", client.Model())
	} else {
		log.Warn("OPENAI_API_KEY not set; summary endpoints will answer 503")
	}

	srv := httpserver.NewServer(httpserver.Options{
		Assessments:    core.NewAssessmentService(engine, store, summarizer, notifier, log),
		Trees:          catalog,
		TreeSummarizer: treeSummarizer,
		Listener:       listener,
		Limiter:        httpserver.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Log:            log,
	})

	g, gctx := errgroup.WithContext(ctx)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,

		// Open summary streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}
	g.Go(func() error {
		log.Info("listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
