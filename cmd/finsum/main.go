// Package main is the finsum CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/finsum/internal/cli"
	"github.com/hyperjump/finsum/internal/config"
	"github.com/hyperjump/finsum/internal/embedding"
	"github.com/hyperjump/finsum/internal/extract"
	"github.com/hyperjump/finsum/internal/fileid"
	"github.com/hyperjump/finsum/internal/indexer"
	"github.com/hyperjump/finsum/internal/llm"
	"github.com/hyperjump/finsum/internal/models"
	"github.com/hyperjump/finsum/internal/server"
	"github.com/hyperjump/finsum/internal/storage"
	"github.com/hyperjump/finsum/internal/summarize"
	"github.com/hyperjump/finsum/internal/vector"
	"github.com/hyperjump/finsum/internal/watcher"
	"github.com/hyperjump/finsum/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/finsum/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default and config.yaml exists in the
// current directory, that file is used instead. A missing file yields the defaults.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				path = local
			}
		}
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys may live in .env next to the config; a missing file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "chunk":
		runChunk()
	case "import":
		runImport()
	case "search":
		runSearch()
	case "summarize":
		runSummarize()
	case "sections":
		runSections()
	case "version", "--version", "-v":
		fmt.Printf("finsum version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func parseFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	}
	fail("Unknown output format %q; use text or json", s)
	return cli.OutputText
}

// Components holds the services shared by the server and the direct (no server) commands.
type Components struct {
	Config     *config.Config
	Logger     *zap.Logger
	Sections   *storage.SQLiteStorage
	Embedder   embedding.Embedder
	Store      *vector.Store
	Summarizer *summarize.Summarizer
	Server     *server.Server
}

// Close releases the section cache and the embedder.
func (c *Components) Close() {
	if c.Sections != nil {
		_ = c.Sections.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// initializeComponents wires storage, embedder, reranker, generator and server from cfg.
// A missing LLM key only disables summaries.
func initializeComponents(cfg *config.Config, logger *zap.Logger, opts ...server.Option) (*Components, error) {
	sections, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Config: cfg, Logger: logger, Sections: sections}

	c.Embedder, err = embedding.New(cfg.Embedding, cfg.Retrieval.VectorDim, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store, err = vector.NewStore(c.Embedder.Dimensions())
	if err != nil {
		c.Close()
		return nil, err
	}

	reranker, err := summarize.NewReranker(cfg.Reranker, cfg.Retrieval.RerankTopK, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	sumOpts := []summarize.Option{summarize.WithLogger(logger), summarize.WithFilingSource(sections)}
	if reranker != nil {
		sumOpts = append(sumOpts, summarize.WithReranker(reranker))
		opts = append(opts, server.WithReranker(reranker))
	}
	generator, err := llm.NewChatGenerator(cfg.LLM, llm.WithLogger(logger))
	if err != nil {
		logger.Warn("summaries disabled", zap.Error(err))
	} else {
		c.Summarizer = summarize.New(cfg, c.Embedder, generator, sumOpts...)
	}

	opts = append([]server.Option{server.WithLogger(logger)}, opts...)
	c.Server = server.NewServer(cfg, c.Store, c.Embedder, sections, c.Summarizer, opts...)
	return c, nil
}

// setup loads the config and builds a logger for a direct command.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	return cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	// The watcher handler needs the server, which needs the watcher for status; srv is
	// assigned before the watcher starts.
	var srv *server.Server
	watchSvc := watcher.New(cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(),
		func(ev watcher.Event) {
			switch ev.Op {
			case watcher.OpImport:
				if _, err := srv.ImportFile(context.Background(), ev.File); err != nil {
					logger.Warn("watch import failed", zap.String("path", ev.File.Path), zap.Error(err))
				}
			case watcher.OpRemove:
				// Removing a file keeps its cached section; the next import replaces it.
				logger.Info("section file removed", zap.String("path", ev.File.Path), zap.String("source", ev.File.Source()))
			}
		},
		watcher.WithLogger(logger))

	components, err := initializeComponents(cfg, logger, server.WithWatcher(watchSvc))
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()
	srv = components.Server

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := srv.LoadCached(ctx); err != nil {
		logger.Warn("loading cached sections failed", zap.Error(err))
	}
	if len(cfg.Watch.Directories) > 0 {
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		watchSvc.SyncExistingFiles()
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// resolveSection returns the ticker and item for path, preferring explicit flag values over
// what the file name says.
func resolveSection(path, ticker, item string) (string, string, error) {
	if ticker != "" && item != "" {
		return strings.ToUpper(ticker), models.NormalizeItem(item), nil
	}
	f, err := fileid.Parse(path)
	if err != nil {
		if ticker == "" && item == "" {
			return "", "", fmt.Errorf("%w; pass --ticker and --item", err)
		}
		return "", "", fmt.Errorf("both --ticker and --item are required for %s", path)
	}
	if ticker == "" {
		ticker = f.Ticker
	}
	if item == "" {
		item = f.Item
	}
	return strings.ToUpper(ticker), models.NormalizeItem(item), nil
}

func runChunk() {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	ticker := fs.String("ticker", "", "company ticker (default: from file name)")
	item := fs.String("item", "", "10-K item, e.g. 1a or item7 (default: from file name)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fail("Usage: finsum chunk [flags] <file>")
	}
	format := parseFormat(*outputFormat)
	path := fs.Arg(0)

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	t, it, err := resolveSection(path, *ticker, *item)
	if err != nil {
		fail("%v", err)
	}
	text, err := extract.NewExtractor().Extract(path)
	if err != nil {
		fail("Extraction failed: %v", err)
	}
	pipeline := indexer.NewPipeline(cfg.Chunking, indexer.WithPipelineLogger(logger))
	chunks := pipeline.Process(indexer.Preprocess(text), models.SourceID(t, it), t)
	if err := cli.WriteChunks(os.Stdout, chunks, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// collectFiles returns path itself when it is a file, or every file below it whose
// extension is listed and whose name maps to a 10-K section.
func collectFiles(path string, extensions []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !hasExtension(p, extensions) {
			return nil
		}
		if _, err := fileid.Parse(p); err == nil {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = write to the section cache directly)")
	ticker := fs.String("ticker", "", "company ticker (single file only; default: from file name)")
	item := fs.String("item", "", "10-K item (single file only; default: from file name)")
	title := fs.String("title", "", "section title (default: standard 10-K item title)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fail("Usage: finsum import [flags] <file-or-directory>")
	}
	format := parseFormat(*outputFormat)

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	files, err := collectFiles(fs.Arg(0), cfg.Watch.Extensions)
	if err != nil {
		fail("Failed to read %s: %v", fs.Arg(0), err)
	}
	if len(files) > 1 && (*ticker != "" || *item != "") {
		fail("--ticker and --item apply to a single file")
	}

	var sections *storage.SQLiteStorage
	if *serverURL == "" {
		sections, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fail("Failed to open section cache: %v", err)
		}
		defer sections.Close()
	}

	ctx := context.Background()
	extractor := extract.NewExtractor()
	failed := 0
	for _, path := range files {
		t, it, err := resolveSection(path, *ticker, *item)
		if err == nil {
			var text string
			if text, err = extractor.Extract(path); err == nil {
				in := models.SectionInput{Ticker: t, Item: it, Title: *title, Content: text}
				err = importSection(ctx, *serverURL, sections, in, format)
			}
		}
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		}
	}
	if failed > 0 {
		fail("%d of %d file(s) failed", failed, len(files))
	}
}

// importSection posts in to the server, or caches it locally when serverURL is empty. The
// server indexes cached sections when it next starts.
func importSection(ctx context.Context, serverURL string, sections storage.SectionStore, in models.SectionInput, format cli.OutputFormat) error {
	if serverURL == "" {
		if err := in.Validate(); err != nil {
			return err
		}
		if err := sections.SaveSection(ctx, in.Ticker, models.NewSection(in.Item, in.Title, in.Content)); err != nil {
			return err
		}
		fmt.Printf("Cached %s\n", models.SourceID(in.Ticker, models.NormalizeItem(in.Item)))
		return nil
	}
	var res indexer.Result
	if err := postJSON(ctx, serverURL+"/api/v1/sections", in, &res); err != nil {
		return err
	}
	return cli.WriteImportResult(os.Stdout, &res, format)
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query to the
// front so that flag.Parse sees them; the flag package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// sectionList collects repeated --section flags.
type sectionList []string

func (s *sectionList) String() string { return strings.Join(*s, ",") }

func (s *sectionList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = index cached sections in-process)")
	topK := fs.Int("top-k", 0, "number of results (default from config)")
	minScore := fs.Float64("min-score", -1, "minimum cosine score (default from config)")
	rerank := fs.Bool("rerank", false, "rerank results with the configured provider")
	outputFormat := fs.String("output", "text", "output format: text or json")
	var sections sectionList
	fs.Var(&sections, "section", "restrict to a section path (repeatable)")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		fail("Usage: finsum search [flags] <query>")
	}
	format := parseFormat(*outputFormat)
	req := models.SearchRequest{Query: query, Sections: sections, TopK: *topK, Rerank: *rerank}
	if *minScore >= 0 {
		req.MinScore = minScore
	}

	ctx := context.Background()
	var resp *models.SearchResponse
	if *serverURL != "" {
		resp = &models.SearchResponse{}
		if err := postJSON(ctx, *serverURL+"/api/v1/search", req, resp); err != nil {
			fail("Search failed: %v", err)
		}
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fail("Failed to initialize: %v", err)
		}
		defer components.Close()
		if _, err := components.Server.LoadCached(ctx); err != nil {
			fail("Loading cached sections failed: %v", err)
		}
		if resp, err = components.Server.Search(ctx, req); err != nil {
			fail("Search failed: %v", err)
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runSummarize() {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = summarize in-process)")
	ticker := fs.String("ticker", "", "company ticker")
	item := fs.String("item", "", "10-K item, e.g. 1a or item7")
	topK := fs.Int("top-k", 0, "passages passed to the model (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	req := models.SummarizeRequest{Ticker: *ticker, Item: *item, Query: buildSearchQuery(fs.Args()), TopK: *topK}
	if err := req.Validate(); err != nil {
		fail("Usage: finsum summarize --ticker T --item I <question>: %v", err)
	}
	format := parseFormat(*outputFormat)

	ctx := context.Background()
	var resp *models.SummaryResponse
	if *serverURL != "" {
		resp = &models.SummaryResponse{}
		if err := postJSON(ctx, *serverURL+"/api/v1/summarize", req, resp); err != nil {
			fail("Summarize failed: %v", err)
		}
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fail("Failed to initialize: %v", err)
		}
		defer components.Close()
		if components.Summarizer == nil {
			fail("Summarize needs an LLM API key in $%s", cfg.LLM.APIKeyEnv)
		}
		if resp, err = components.Summarizer.Summarize(ctx, req); err != nil {
			fail("Summarize failed: %v", err)
		}
	}
	if err := cli.WriteSummary(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runSections() {
	fs := flag.NewFlagSet("sections", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	ticker := fs.String("ticker", "", "only list this ticker")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	sections, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fail("Failed to open section cache: %v", err)
	}
	defer sections.Close()
	infos, err := sections.ListSections(context.Background(), *ticker)
	if err != nil {
		fail("List sections failed: %v", err)
	}
	if err := cli.WriteSections(os.Stdout, infos, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func printUsage() {
	fmt.Println(`finsum - 10-K section chunking, search and summaries

Usage:
  finsum server [flags]                 Start the HTTP server (indexes cached sections, watches directories)
  finsum chunk [flags] <file>           Print the chunks a section file produces
  finsum import [flags] <file-or-dir>   Import section files (AAPL/item1a.htm, AAPL_item7.txt, ...)
  finsum search [flags] <query>         Search indexed chunks
  finsum summarize [flags] <question>   Answer a question from one filing section
  finsum sections [flags]               List cached sections
  finsum version                        Show version
  finsum help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/finsum/config.yaml, or ./config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to work in-process.
  --output string    Output format: text or json (default: text)

Chunk/Import Flags:
  --ticker string    Company ticker (default: from file name)
  --item string      10-K item (default: from file name)
  --title string     Section title (import only)

Search Flags:
  --top-k int        Number of results (default from config)
  --min-score float  Minimum cosine score
  --section string   Restrict to a section path (repeatable)
  --rerank           Rerank results with the configured provider

Summarize Flags:
  --ticker string    Company ticker (required)
  --item string      10-K item (required)
  --top-k int        Passages passed to the model

Examples:
  finsum server --debug
  finsum chunk filings/AAPL/item1a.htm
  finsum import filings/
  finsum search --section "Item 1A/Risk Factors" supply chain
  finsum summarize --ticker AAPL --item 1a "What are the main supply chain risks?"
  finsum sections --ticker AAPL --output json`)
}
