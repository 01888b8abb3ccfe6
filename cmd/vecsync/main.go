package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/vecsync/vecsync/internal/config"
	"github.com/vecsync/vecsync/internal/embedder"
	"github.com/vecsync/vecsync/internal/ingest"
	"github.com/vecsync/vecsync/internal/mcp"
	"github.com/vecsync/vecsync/internal/searcher"
	"github.com/vecsync/vecsync/internal/vectorstore"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// app bundles the wired collaborators behind every subcommand.
type app struct {
	cfg      *config.Config
	store    vectorstore.Store
	embedder embedder.Embedder
	engine   *ingest.Engine
	logger   *slog.Logger
}

func (a *app) close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// setup loads configuration and wires the store, embedder, and engine.
// Logs go to stderr so stdout stays clean for command output (and for the
// MCP protocol when serving).
func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		CacheSize: cfg.Embedding.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	var store vectorstore.Store
	switch cfg.Store.Backend {
	case config.BackendQdrant:
		store, err = vectorstore.NewQdrantStore(ctx, vectorstore.QdrantConfig{
			Addr:       cfg.Store.Qdrant.Addr,
			Collection: cfg.Store.Qdrant.Collection,
			Dimension:  emb.Dimension(),
		})
	default:
		store, err = vectorstore.NewSQLiteStore(cfg.Store.SQLite.Path)
	}
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("vector store: %w", err)
	}

	engine, err := ingest.New(store, emb, logger, ingest.Config{
		ChunkSize:    cfg.Sync.ChunkSize,
		ChunkOverlap: cfg.Sync.ChunkOverlap,
		BatchSize:    cfg.Sync.BatchSize,
		Workers:      cfg.Sync.Workers,
	})
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &app{cfg: cfg, store: store, embedder: emb, engine: engine, logger: logger}, nil
}

func runIndex(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: vecsync index <path>")
	}

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := a.engine.Sync(ctx, path)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: vecsync search <query>")
	}

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	s := searcher.New(a.store, a.embedder)
	resp, err := s.Search(ctx, searcher.Request{
		Query:     query,
		ScopeRoot: cmd.String("path"),
		Limit:     int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	for i, r := range resp.Results {
		fmt.Printf("%d. %s (chunk %d, score %.4f)\n", i+1, r.Metadata.SourcePath, r.Metadata.ChunkIndex, r.Score)
		fmt.Printf("   %s\n", snippet(r.Text, 160))
	}
	if len(resp.Results) == 0 {
		fmt.Println("no results")
	}
	return nil
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: vecsync status <path>")
	}

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	states, err := a.store.ListFileStates(ctx, path)
	if err != nil {
		return err
	}
	count, err := a.store.Count(ctx, path)
	if err != nil {
		return err
	}

	incomplete := 0
	for _, st := range states {
		if !st.Complete() {
			incomplete++
		}
	}

	return printJSON(map[string]interface{}{
		"scope_root":       path,
		"files_indexed":    len(states),
		"files_incomplete": incomplete,
		"chunks_stored":    count,
	})
}

func runWipe(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("wipe removes every indexed chunk; re-run with --yes to confirm")
	}

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Wipe(ctx); err != nil {
		return err
	}
	a.logger.Info("store wiped")
	return nil
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: vecsync watch <path>")
	}

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.engine.Watch(ctx, path, cmd.Duration("debounce"))
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	server, err := mcp.NewServer(a.store, a.embedder, a.engine)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("MCP server listening on stdio",
		slog.String("version", version),
		slog.String("store", a.cfg.Store.Backend))
	return server.Serve(ctx)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func main() {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Printf("vecsync %s\n", cmd.Version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", vectorstore.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", vectorstore.DriverName)
	}

	cmd := &cli.Command{
		Name:    "vecsync",
		Usage:   "Incremental content-addressed vector index synchronization",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "vecsync.yaml",
				Sources: cli.EnvVars("VECSYNC_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Sync a folder into the vector store",
				ArgsUsage: "<path>",
				Action:    runIndex,
			},
			{
				Name:      "search",
				Usage:     "Semantic search over indexed content",
				ArgsUsage: "<query>",
				Action:    runSearch,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Restrict results to one indexed scope root",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   searcher.DefaultLimit,
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show index state for a scope root",
				ArgsUsage: "<path>",
				Action:    runStatus,
			},
			{
				Name:   "wipe",
				Usage:  "Delete every indexed chunk across all scopes",
				Action: runWipe,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the wipe",
					},
				},
			},
			{
				Name:      "watch",
				Usage:     "Watch a folder and re-sync on changes",
				ArgsUsage: "<path>",
				Action:    runWatch,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before a change triggers a sync",
						Value: ingest.DefaultDebounce,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run as an MCP server on stdio",
				Action: runServe,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
