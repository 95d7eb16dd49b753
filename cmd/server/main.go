// Package main serves interactive token-flow sessions: pair records are
// fetched per session, turned into a filtered graph and laid out, and layout
// frames are streamed over websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"token-flow-lab/internal/config"
	"token-flow-lab/internal/explorer"
	"token-flow-lab/internal/imagecache"
	"token-flow-lab/internal/ingestion"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/source"
	"token-flow-lab/internal/storage"
	chstore "token-flow-lab/internal/storage/clickhouse"
	"token-flow-lab/internal/storage/memory"
	pgstore "token-flow-lab/internal/storage/postgres"
	"token-flow-lab/internal/tokenid"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Load .env file if exists
	if err := config.LoadEnvFile(); err != nil {
		logger.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Parse()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Parse flags (env values as defaults)
	flag.StringVar(&cfg.Source, "source", cfg.Source, "Pair source: http, postgres, clickhouse or memory")
	flag.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "Token pairs API base URL (http source)")
	flag.StringVar(&cfg.ImagesBaseURL, "images-url", cfg.ImagesBaseURL, "Token images API base URL (empty to disable)")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	flag.IntVar(&cfg.PostgresMaxConns, "pg-max-conns", cfg.PostgresMaxConns, "PostgreSQL pool size (0 for the driver default)")
	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	flag.StringVar(&cfg.DefaultToken, "token", cfg.DefaultToken, "Central token of new sessions")
	flag.IntVar(&cfg.DefaultLimit, "limit", cfg.DefaultLimit, "Default pair limit")
	flag.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Pair fetch timeout")
	flag.IntVar(&cfg.FetchRetries, "fetch-retries", cfg.FetchRetries, "Pair fetch retries on 429/5xx")
	flag.DurationVar(&cfg.SessionIdleTimeout, "idle-timeout", cfg.SessionIdleTimeout, "Close sessions idle for this long (0 disables)")
	seedFile := flag.String("seed-swaps", "", "JSON swaps file loaded into the memory source")
	seedMetadata := flag.String("seed-metadata", "", "JSON token metadata file loaded into the memory store")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, cleanup, err := createDeps(ctx, cfg, *seedFile, *seedMetadata, logger)
	if err != nil {
		logger.Fatalf("Failed to create pair source: %v", err)
	}
	defer cleanup()

	layoutCfg := layout.DefaultConfig()
	layoutCfg.Width = cfg.LayoutWidth
	layoutCfg.Height = cfg.LayoutHeight
	layoutCfg.TickInterval = cfg.LayoutTickInterval

	defaults := explorer.DefaultControls(cfg.DefaultToken)
	defaults.Limit = cfg.DefaultLimit
	defaults.Window = cfg.DefaultWindow

	srv := NewServer(Options{
		Source:       deps.source,
		SourceName:   cfg.Source,
		Resolver:     tokenid.NewResolver(deps.metadata),
		Images:       deps.images,
		Loader:       deps.loader,
		Layout:       layoutCfg,
		Defaults:     defaults,
		FetchTimeout: cfg.FetchTimeout,
		IdleTimeout:  cfg.SessionIdleTimeout,
		Logger:       logger,
	})
	defer srv.Close()

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, srv, cfg, logger)
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// run serves HTTP and expires idle sessions until ctx is cancelled.
func run(ctx context.Context, srv *Server, cfg config.Config, logger *log.Logger) error {
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("Starting HTTP server on %s (source=%s)", cfg.HTTPAddr, cfg.Source)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Close()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if cfg.SessionIdleTimeout > 0 {
		g.Go(func() error {
			return srv.RunSweeper(ctx, sweepInterval(cfg.SessionIdleTimeout))
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// sweepInterval checks a few times per idle timeout.
func sweepInterval(idle time.Duration) time.Duration {
	d := idle / 4
	if d < time.Second {
		d = time.Second
	}
	return d
}

// deps holds what sessions share.
type deps struct {
	source   source.PairSource
	metadata storage.TokenMetadataStore
	images   imagecache.Cache
	loader   explorer.ImageLoader
}

// createDeps builds the pair source selected by cfg.Source. Metadata comes
// from PostgreSQL when a DSN is configured, otherwise from memory.
func createDeps(ctx context.Context, cfg config.Config, seedSwaps, seedMetadata string, logger *log.Logger) (*deps, func(), error) {
	d := &deps{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var pool *pgstore.Pool
	if cfg.PostgresDSN != "" {
		p, err := pgstore.NewPool(ctx, cfg.PostgresDSN,
			pgstore.WithMaxConns(int32(cfg.PostgresMaxConns)),
			pgstore.WithMaxConnLifetime(time.Hour),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pool = p
		closers = append(closers, pool.Close)
		d.metadata = pgstore.NewTokenMetadataStore(pool)
	}

	switch cfg.Source {
	case config.SourceHTTP:
		d.source = source.NewHTTPClient(cfg.APIBaseURL,
			source.WithTimeout(cfg.FetchTimeout),
			source.WithMaxRetries(cfg.FetchRetries),
		)

	case config.SourcePostgres:
		d.source = source.NewStoreSource(pgstore.NewPairFlowStore(pool), config.SourcePostgres)

	case config.SourceClickhouse:
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		d.source = source.NewStoreSource(chstore.NewPairFlowStore(conn), config.SourceClickhouse)

	case config.SourceMemory:
		swaps := memory.NewSwapStore()
		metas := memory.NewTokenMetadataStore()
		if d.metadata == nil {
			d.metadata = metas
		}
		if err := seed(ctx, swaps, metas, seedSwaps, seedMetadata, logger); err != nil {
			cleanup()
			return nil, nil, err
		}
		d.source = source.NewStoreSource(swaps, config.SourceMemory)
	}

	if cfg.ImagesBaseURL != "" {
		cache := imagecache.NewMemory()
		d.images = cache
		d.loader = imagecache.NewLoader(cfg.ImagesBaseURL, cache)
	}

	return d, cleanup, nil
}

// seed fills the memory stores from JSON files.
func seed(ctx context.Context, swaps *memory.SwapStore, metas *memory.TokenMetadataStore, swapsPath, metaPath string, logger *log.Logger) error {
	opts := ingestion.ManagerOptions{
		SwapStores:    []ingestion.NamedSwapStore{{Name: config.SourceMemory, Store: swaps}},
		MetadataStore: metas,
		SkipExisting:  true,
		Logger:        logger,
	}
	if swapsPath != "" {
		opts.SwapSource = ingestion.NewFileSwapSource(swapsPath)
	}
	if metaPath != "" {
		opts.MetadataSource = ingestion.NewFileMetadataSource(metaPath)
	}

	if _, err := ingestion.NewManager(opts).Run(ctx); err != nil {
		return fmt.Errorf("seed memory store: %w", err)
	}
	return nil
}
