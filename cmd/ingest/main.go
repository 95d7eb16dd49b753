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
	"sort"
	"syscall"
	"time"

	"token-flow-lab/internal/config"
	"token-flow-lab/internal/ingestion"
	"token-flow-lab/internal/observability"
	"token-flow-lab/internal/storage"
	chstore "token-flow-lab/internal/storage/clickhouse"
	"token-flow-lab/internal/storage/memory"
	"token-flow-lab/internal/storage/migrations"
	pgstore "token-flow-lab/internal/storage/postgres"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		os.Exit(1)
	}

	swapsFile := flag.String("swaps", "", "Swaps file (JSON array or JSON lines)")
	metadataFile := flag.String("metadata", "", "Token metadata file (JSON array or JSON lines)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Ingest into in-memory storage (dry run)")
	batchSize := flag.Int("batch-size", ingestion.DefaultBatchSize, "Swaps per bulk insert")
	skipExisting := flag.Bool("skip-existing", false, "Count duplicate swaps instead of failing")
	runMigrations := flag.Bool("migrate", true, "Apply schema migrations before ingesting")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	if *swapsFile == "" && *metadataFile == "" {
		logger.Fatal("Nothing to ingest. Use --swaps and/or --metadata")
	}
	if !*useMemory && *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn or --clickhouse-dsn is required (use --use-memory for a dry run)")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping after the current batch...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	opts := runOptions{
		swapsFile:     *swapsFile,
		metadataFile:  *metadataFile,
		postgresDSN:   *postgresDSN,
		clickhouseDSN: *clickhouseDSN,
		useMemory:     *useMemory,
		batchSize:     *batchSize,
		skipExisting:  *skipExisting,
		migrate:       *runMigrations,
	}
	err = run(ctx, logger, opts)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Ingestion complete")
}

type runOptions struct {
	swapsFile     string
	metadataFile  string
	postgresDSN   string
	clickhouseDSN string
	useMemory     bool
	batchSize     int
	skipExisting  bool
	migrate       bool
}

func run(ctx context.Context, logger *log.Logger, opts runOptions) error {
	stores, metadata, cleanup, err := openStores(ctx, logger, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	mopts := ingestion.ManagerOptions{
		SwapStores:    stores,
		MetadataStore: metadata,
		BatchSize:     opts.batchSize,
		SkipExisting:  opts.skipExisting,
		Logger:        logger,
	}
	if opts.swapsFile != "" {
		mopts.SwapSource = ingestion.NewFileSwapSource(opts.swapsFile)
	}
	if opts.metadataFile != "" {
		if metadata == nil {
			logger.Println("No metadata store configured (metadata needs postgres or memory), skipping metadata")
		} else {
			mopts.MetadataSource = ingestion.NewFileMetadataSource(opts.metadataFile)
		}
	}

	start := time.Now()
	res, err := ingestion.NewManager(mopts).Run(ctx)
	if res != nil {
		logResult(logger, res, time.Since(start))
	}
	return err
}

func logResult(logger *log.Logger, res *ingestion.Result, elapsed time.Duration) {
	logger.Printf("Read %d swaps, upserted %d metadata records in %v", res.Read, res.Metadata, elapsed.Truncate(time.Millisecond))

	names := make([]string, 0, len(res.Inserted))
	for name := range res.Inserted {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logger.Printf("  %s: inserted=%d duplicates=%d", name, res.Inserted[name], res.Duplicates[name])
	}
}

// openStores connects the configured backends, running migrations first when
// requested. Metadata lives in postgres, or in memory for a dry run.
func openStores(ctx context.Context, logger *log.Logger, opts runOptions) ([]ingestion.NamedSwapStore, storage.TokenMetadataStore, func(), error) {
	var (
		stores   []ingestion.NamedSwapStore
		metadata storage.TokenMetadataStore
		closers  []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if opts.useMemory {
		swaps := memory.NewSwapStore()
		stores = append(stores, ingestion.NamedSwapStore{Name: "memory", Store: swaps})
		metadata = memory.NewTokenMetadataStore()
		closers = append(closers, func() {
			logger.Printf("Memory store holds %d swaps (discarded on exit)", swaps.Len())
		})
		return stores, metadata, cleanup, nil
	}

	if opts.postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, opts.postgresDSN, pgstore.WithMaxConns(4))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if opts.migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				cleanup()
				return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Printf("PostgreSQL migrations: %d applied %v", len(applied), applied)
		}
		stores = append(stores, ingestion.NamedSwapStore{Name: "postgres", Store: pgstore.NewSwapStore(pool)})
		metadata = pgstore.NewTokenMetadataStore(pool)
	}

	if opts.clickhouseDSN != "" {
		open := chstore.NewConn
		if opts.migrate {
			open = chstore.OpenDatabase
		}
		conn, err := open(ctx, opts.clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() {
			if err := conn.Close(); err != nil {
				logger.Printf("close clickhouse: %v", err)
			}
		})

		if opts.migrate {
			applied, err := migrations.RunClickhouseMigrations(ctx, conn)
			if err != nil {
				cleanup()
				return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
			}
			logger.Printf("ClickHouse migrations: %d applied %v", len(applied), applied)
		}
		stores = append(stores, ingestion.NamedSwapStore{Name: "clickhouse", Store: chstore.NewSwapStore(conn)})
	}

	return stores, metadata, cleanup, nil
}
