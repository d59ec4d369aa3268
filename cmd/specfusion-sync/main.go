// Command specfusion-sync is the ingest-side CLI: it drives the
// SyncRunner against one or all registered sources, lists what sources
// exist, and lets operators register new OpenAPI-backed sources without
// a code change.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/bootstrap"
	"github.com/specfusion/specfusion/internal/config"
	"github.com/specfusion/specfusion/internal/storage"
	"github.com/specfusion/specfusion/internal/sync"
	"github.com/specfusion/specfusion/internal/tokenizer"
	"github.com/specfusion/specfusion/pkg/utils"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		os.Exit(runSync(os.Args[2:]))
	case "list-sources":
		os.Exit(runListSources())
	case "add-openapi":
		os.Exit(runAddOpenAPI(os.Args[2:]))
	case "version", "--version", "-v":
		fmt.Println("specfusion-sync version dev")
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runSync(args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	all := fs.Bool("all", false, "sync every registered source")
	incremental := fs.Bool("incremental", false, "only fetch entries changed since the last sync")
	limit := fs.Int("limit", 0, "cap the number of documents fetched (0 = unlimited, for debug runs)")
	apiURL := fs.String("api-url", "", "base URL of a running specfusion-server (overrides SPECFUSION_API_URL)")
	adminToken := fs.String("admin-token", "", "admin bearer token (overrides ADMIN_TOKEN)")
	_ = fs.Parse(args)

	var sourceID string
	if fs.NArg() > 0 {
		sourceID = fs.Arg(0)
	}
	if sourceID == "" && !*all {
		fmt.Println("Usage: specfusion-sync sync [source] [--all] [--incremental] [--limit N] [--api-url URL] [--admin-token TOKEN]")
		return 1
	}

	cfg := config.Load()
	if *apiURL != "" {
		cfg.SpecFusionAPIURL = *apiURL
	}
	if *adminToken != "" {
		cfg.AdminToken = *adminToken
	}

	logger, _ := utils.NewLogger(cfg.Debug)
	defer logger.Sync()

	tok := tokenizer.Default()
	if err := tok.Init(cfg.UserDictPath); err != nil {
		logger.Fatal("failed to initialize tokenizer", zap.Error(err))
	}

	store, err := storage.Open(cfg.DBPath, tok)
	if err != nil {
		fmt.Printf("failed to open document store: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx := context.Background()
	registry, err := bootstrap.BuildRegistry(ctx, cfg, store, logger)
	if err != nil {
		fmt.Printf("failed to build source registry: %v\n", err)
		return 1
	}

	runner := sync.NewRunner(store, registry, cfg.SpecFusionAPIURL, cfg.AdminToken, logger)
	opts := sync.Options{Incremental: *incremental, Limit: *limit}

	var results []sync.Result
	if *all {
		results, err = runner.RunAll(ctx, opts)
	} else {
		var res sync.Result
		res, err = runner.RunSource(ctx, sourceID, opts)
		results = []sync.Result{res}
	}
	if err != nil {
		fmt.Printf("sync failed: %v\n", err)
		return 1
	}

	exit := 0
	for _, res := range results {
		status := "ok"
		if res.Aborted {
			status = "ABORTED: " + res.Message
			exit = 1
		} else if res.Counts.Errors > 0 {
			exit = 1
		}
		fmt.Printf("%-24s created=%-4d updated=%-4d unchanged=%-4d deleted=%-4d errors=%-4d %s\n",
			res.SourceID, res.Counts.Created, res.Counts.Updated, res.Counts.Unchanged,
			res.Counts.Deleted, res.Counts.Errors, status)
	}
	return exit
}

func runListSources() int {
	cfg := config.Load()
	logger, _ := utils.NewLogger(cfg.Debug)
	defer logger.Sync()

	tok := tokenizer.Default()
	if err := tok.Init(cfg.UserDictPath); err != nil {
		logger.Fatal("failed to initialize tokenizer", zap.Error(err))
	}

	store, err := storage.Open(cfg.DBPath, tok)
	if err != nil {
		fmt.Printf("failed to open document store: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx := context.Background()
	registry, err := bootstrap.BuildRegistry(ctx, cfg, store, logger)
	if err != nil {
		fmt.Printf("failed to build source registry: %v\n", err)
		return 1
	}

	synced, err := store.GetSources(ctx)
	if err != nil {
		fmt.Printf("failed to read sources: %v\n", err)
		return 1
	}
	byID := make(map[string]int)
	for _, s := range synced {
		byID[s.ID] = s.DocCount
	}

	for _, id := range registry.IDs() {
		a := registry.Get(id)
		docCount, everSynced := byID[id]
		status := "never synced"
		if everSynced {
			status = fmt.Sprintf("%d docs", docCount)
		}
		fmt.Printf("%-24s %-24s %s\n", id, a.SourceName(), status)
	}
	return 0
}

func runAddOpenAPI(args []string) int {
	fs := flag.NewFlagSet("add-openapi", flag.ExitOnError)
	name := fs.String("name", "", "display name for the source")
	specURL := fs.String("spec-url", "", "URL of the Swagger/OpenAPI document")
	doSync := fs.Bool("sync", false, "run a sync immediately after registering")
	_ = fs.Parse(args)

	if fs.NArg() < 1 || *name == "" || *specURL == "" {
		fmt.Println("Usage: specfusion-sync add-openapi <id> --name <name> --spec-url <url> [--sync]")
		return 1
	}
	id := fs.Arg(0)

	cfg := config.Load()
	logger, _ := utils.NewLogger(cfg.Debug)
	defer logger.Sync()

	tok := tokenizer.Default()
	if err := tok.Init(cfg.UserDictPath); err != nil {
		logger.Fatal("failed to initialize tokenizer", zap.Error(err))
	}

	store, err := storage.Open(cfg.DBPath, tok)
	if err != nil {
		fmt.Printf("failed to open document store: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx := context.Background()
	configJSON := fmt.Sprintf(`{"type":"openapi","name":%q,"spec_url":%q}`, *name, *specURL)
	if err := store.UpsertSourceConfig(ctx, id, *name, *specURL, configJSON); err != nil {
		fmt.Printf("failed to register source: %v\n", err)
		return 1
	}
	fmt.Printf("registered openapi source %q (%s)\n", id, *specURL)

	if !*doSync {
		return 0
	}

	registry, err := bootstrap.BuildRegistry(ctx, cfg, store, logger)
	if err != nil {
		fmt.Printf("failed to build source registry: %v\n", err)
		return 1
	}
	runner := sync.NewRunner(store, registry, cfg.SpecFusionAPIURL, cfg.AdminToken, logger)

	syncCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	res, err := runner.RunSource(syncCtx, id, sync.Options{})
	if err != nil {
		fmt.Printf("sync failed: %v\n", err)
		return 1
	}
	fmt.Printf("%s created=%d updated=%d unchanged=%d deleted=%d errors=%d\n",
		res.SourceID, res.Counts.Created, res.Counts.Updated, res.Counts.Unchanged,
		res.Counts.Deleted, res.Counts.Errors)
	if res.Aborted || res.Counts.Errors > 0 {
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Println(`specfusion-sync - SpecFusion ingest CLI

Usage:
  specfusion-sync sync [source] [--all] [--incremental] [--limit N] [--api-url URL] [--admin-token TOKEN]
  specfusion-sync list-sources
  specfusion-sync add-openapi <id> --name <name> --spec-url <url> [--sync]
  specfusion-sync version
  specfusion-sync help

Exit codes: 0 on clean completion (errors=0 for every source), 1 otherwise.`)
}
