// Package main renders one token-flow snapshot: pairs are fetched, filtered,
// encoded and laid out, then written as Markdown, CSV and JSON with a
// coloured terminal summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-flow-lab/internal/config"
	"token-flow-lab/internal/domain"
	"token-flow-lab/internal/encoding"
	"token-flow-lab/internal/explorer"
	"token-flow-lab/internal/graph"
	"token-flow-lab/internal/imagecache"
	"token-flow-lab/internal/ingestion"
	"token-flow-lab/internal/layout"
	"token-flow-lab/internal/reporting"
	"token-flow-lab/internal/source"
	"token-flow-lab/internal/storage"
	chstore "token-flow-lab/internal/storage/clickhouse"
	"token-flow-lab/internal/storage/memory"
	pgstore "token-flow-lab/internal/storage/postgres"
	"token-flow-lab/internal/tokenid"
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

	// Parse flags (env values as defaults)
	flag.StringVar(&cfg.Source, "source", cfg.Source, "Pair source: http, postgres, clickhouse or memory")
	flag.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "Token pairs API base URL (http source)")
	flag.StringVar(&cfg.ImagesBaseURL, "images-url", cfg.ImagesBaseURL, "Token images API base URL (empty to disable)")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	flag.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Pair fetch timeout")
	token := flag.String("token", cfg.DefaultToken, "Central token symbol or mint address")
	limit := flag.Int("limit", cfg.DefaultLimit, "Maximum number of pairs")
	window := flag.Int("window", int(cfg.DefaultWindow), "Time window in minutes")
	volumeIndex := flag.Int("volume-index", 0, fmt.Sprintf("Minimum volume bucket index %v", graph.VolumeBuckets))
	mode := flag.String("mode", string(domain.LinkModeAll), "Link mode: all, buy or sell")
	legend := flag.String("legend", string(domain.DirectionInflow), "Highlighted direction: inflow or outflow")
	ticks := flag.Int("ticks", 1000, "Maximum layout ticks (0 skips the layout)")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	top := flag.Int("top", 15, "Pairs shown in the terminal summary (0 for all)")
	seedSwaps := flag.String("seed-swaps", "", "JSON swaps file for the memory source")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	linkMode, err := graph.ParseMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	tw, err := domain.ParseTimeWindow(*window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "[snapshot] ", log.LstdFlags|log.Lshortfile)

	src, metadata, cleanup, err := createSource(ctx, cfg, *seedSwaps, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating pair source: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	var (
		images imagecache.Cache
		loader explorer.ImageLoader
	)
	if cfg.ImagesBaseURL != "" {
		cache := imagecache.NewMemory()
		images = cache
		loader = imagecache.NewLoader(cfg.ImagesBaseURL, cache)
	}

	layoutCfg := layout.DefaultConfig()
	layoutCfg.Width = cfg.LayoutWidth
	layoutCfg.Height = cfg.LayoutHeight

	b := &builder{
		fetcher:  source.NewFetcher(src, logger, source.WithFetchTimeout(cfg.FetchTimeout)),
		resolver: tokenid.NewResolver(metadata),
		encoder:  encoding.New(images),
		loader:   loader,
		layout:   layoutCfg,
	}
	req := request{
		Token:       *token,
		Limit:       *limit,
		Window:      tw,
		VolumeIndex: *volumeIndex,
		Mode:        linkMode,
		Legend:      domain.Direction(*legend),
		MaxTicks:    *ticks,
	}

	start := time.Now()
	snap, err := b.build(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building snapshot: %v\n", err)
		os.Exit(1)
	}

	r := snap.report(reporting.NewGenerator(), req)
	paths, err := writeFiles(*outputDir, snap, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing snapshot: %v\n", err)
		os.Exit(1)
	}

	reporting.WriteSummary(os.Stdout, r, *top)
	fmt.Printf("\nSnapshot generated in %v:\n", time.Since(start).Truncate(time.Millisecond))
	for _, p := range paths {
		fmt.Printf("  - %s\n", p)
	}
}

// createSource builds the pair source selected by cfg.Source.
func createSource(ctx context.Context, cfg config.Config, seedSwaps string, logger *log.Logger) (source.PairSource, storage.TokenMetadataStore, func(), error) {
	var (
		metadata storage.TokenMetadataStore
		closers  []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var pool *pgstore.Pool
	if cfg.PostgresDSN != "" {
		p, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(int32(cfg.PostgresMaxConns)))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pool = p
		closers = append(closers, pool.Close)
		metadata = pgstore.NewTokenMetadataStore(pool)
	}

	switch cfg.Source {
	case config.SourcePostgres:
		return source.NewStoreSource(pgstore.NewPairFlowStore(pool), cfg.Source), metadata, cleanup, nil

	case config.SourceClickhouse:
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		return source.NewStoreSource(chstore.NewPairFlowStore(conn), cfg.Source), metadata, cleanup, nil

	case config.SourceMemory:
		store := memory.NewSwapStore()
		if seedSwaps != "" {
			mgr := ingestion.NewManager(ingestion.ManagerOptions{
				SwapSource:   ingestion.NewFileSwapSource(seedSwaps),
				SwapStores:   []ingestion.NamedSwapStore{{Name: cfg.Source, Store: store}},
				SkipExisting: true,
				Logger:       logger,
			})
			if _, err := mgr.IngestSwaps(ctx); err != nil {
				cleanup()
				return nil, nil, nil, err
			}
		}
		return source.NewStoreSource(store, cfg.Source), metadata, cleanup, nil

	default:
		client := source.NewHTTPClient(cfg.APIBaseURL,
			source.WithTimeout(cfg.FetchTimeout),
			source.WithMaxRetries(cfg.FetchRetries),
		)
		return client, metadata, cleanup, nil
	}
}
