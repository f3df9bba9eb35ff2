// Package main is the ohlcvrag CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quantel/ohlcvrag/internal/cache"
	"github.com/quantel/ohlcvrag/internal/chunker"
	"github.com/quantel/ohlcvrag/internal/cli"
	"github.com/quantel/ohlcvrag/internal/config"
	"github.com/quantel/ohlcvrag/internal/embedding"
	"github.com/quantel/ohlcvrag/internal/ingest"
	"github.com/quantel/ohlcvrag/internal/keyword"
	"github.com/quantel/ohlcvrag/internal/llm"
	"github.com/quantel/ohlcvrag/internal/metrics"
	"github.com/quantel/ohlcvrag/internal/models"
	"github.com/quantel/ohlcvrag/internal/pipeline"
	"github.com/quantel/ohlcvrag/internal/prompt"
	"github.com/quantel/ohlcvrag/internal/retriever"
	"github.com/quantel/ohlcvrag/internal/server"
	"github.com/quantel/ohlcvrag/internal/storage"
	"github.com/quantel/ohlcvrag/internal/vector"
	"github.com/quantel/ohlcvrag/internal/vectorstore"
	"github.com/quantel/ohlcvrag/internal/watcher"
	"github.com/quantel/ohlcvrag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ohlcvrag/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so "ohlcvrag server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "setup":
		runSetup()
	case "query":
		runQuery()
	case "analyze":
		runAnalyze()
	case "interactive":
		runInteractive()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("ohlcvrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, metrics.New())
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		ing := components.Ingestor
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(cfg.Watch.Directory, cfg.Watch.Extensions, func(path string) {
			ticker := watcher.TickerFromPath(path)
			res := ing.IngestTicker(context.Background(), ticker, ingest.FetchRange{})
			if res.Err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(res.Err))
				return
			}
			logger.Info("watch ingest complete",
				zap.String("ticker", ticker), zap.Int("chunks", res.Chunks))
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	var refresher *ingest.Refresher
	if cfg.Refresh.Enabled {
		refresher, err = ingest.NewRefresher(components.Ingestor, cfg.Refresh, logger)
		if err != nil {
			logger.Fatal("Failed to create refresher", zap.Error(err))
		}
		refresher.Start()
	}

	srv := server.NewServer(
		components.Pipeline,
		components.Ingestor,
		components.Storage,
		components.Vectors,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if refresher != nil {
		refresher.Stop()
	}
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Vectors.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runSetup() {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	tickersFlag := fs.String("tickers", "", "comma-separated tickers to ingest (required)")
	days := fs.Int("days", 365, "number of trailing days to ingest")
	sourceFlag := fs.String("source", "", "bar source override: csv, xlsx, alphavantage, or synthetic")
	_ = fs.Parse(os.Args[2:])

	tickers := splitTickers(*tickersFlag)
	if len(tickers) == 0 {
		fmt.Println("Usage: ohlcvrag setup --tickers AAPL,MSFT [--days 365] [--source synthetic]")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *sourceFlag != "" {
		cfg.Ingest.Source = *sourceFlag
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var r ingest.FetchRange
	if *days > 0 {
		r.Start = time.Now().AddDate(0, 0, -*days)
	}
	report := components.Ingestor.IngestAll(context.Background(), tickers, r)
	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Printf("%-8s FAILED: %v\n", res.Ticker, res.Err)
			continue
		}
		fmt.Printf("%-8s %d bars, %d chunks\n", res.Ticker, res.Bars, res.Chunks)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Vectors.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed", zap.Error(err))
		}
	}
	if len(report.Failed()) == len(tickers) {
		os.Exit(1)
	}
	fmt.Printf("Ingested %d chunk(s) across %d ticker(s)\n", report.TotalChunks(), len(tickers))
}

// queryArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "ohlcvrag query \"...\" -ticker X"
// would otherwise leave -ticker unparsed.
func queryArgsReorder(args []string) []string {
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

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer locally without a server)")
	typeHint := fs.String("type", "", "query type hint: general, pattern, comparison, prediction, or technical")
	ticker := fs.String("ticker", "", "restrict retrieval to one ticker")
	nResults := fs.Int("n", 0, "number of chunks to retrieve (0 = config default)")
	noCache := fs.Bool("no-cache", false, "bypass the response cache")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(queryArgsReorder(os.Args[2:]))

	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryStr == "" {
		fmt.Println("Usage: ohlcvrag query [flags] <question>")
		os.Exit(1)
	}
	format := cli.OutputFormat(*outputFormat)
	req := models.QueryRequest{
		Query:       queryStr,
		TypeHint:    *typeHint,
		Ticker:      strings.ToUpper(strings.TrimSpace(*ticker)),
		NResults:    *nResults,
		BypassCache: *noCache,
	}

	if *serverURL != "" {
		// Use the HTTP API when a server is running (avoids a Bleve/SQLite
		// lock conflict with the server process).
		result, err := queryViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteQueryResult(os.Stdout, result, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components, logger := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	result, err := components.Pipeline.Query(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL string, req models.QueryRequest) (*models.QueryResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func runAnalyze() {
	if len(os.Args) < 3 {
		printAnalyzeUsage()
		os.Exit(1)
	}
	analysisType := os.Args[2]

	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run locally without a server)")
	tickersFlag := fs.String("tickers", "", "comma-separated tickers")
	pattern := fs.String("pattern", "", "pattern name for pattern analysis")
	indicator := fs.String("indicator", "", "indicator name for indicator analysis")
	condition := fs.String("condition", ">", "indicator condition: >, <, or =")
	threshold := fs.Float64("threshold", 0, "indicator threshold")
	nResults := fs.Int("n", 0, "number of chunks to retrieve (0 = config default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[3:])

	req := pipeline.AnalysisRequest{
		Type:      analysisType,
		Tickers:   splitTickers(*tickersFlag),
		Pattern:   *pattern,
		Indicator: *indicator,
		Condition: *condition,
		Threshold: *threshold,
		NResults:  *nResults,
	}
	format := cli.OutputFormat(*outputFormat)

	if *serverURL != "" {
		result, err := analyzeViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnalysisResult(os.Stdout, result, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components, logger := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	result, err := components.Pipeline.Analyze(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnalysisResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func analyzeViaHTTP(serverURL string, req pipeline.AnalysisRequest) (*models.AnalysisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func printAnalyzeUsage() {
	fmt.Println(`Usage: ohlcvrag analyze <trend|pattern|indicator|comparison> [flags]

  ohlcvrag analyze trend --tickers AAPL
  ohlcvrag analyze pattern --pattern uptrend
  ohlcvrag analyze indicator --indicator rsi --condition ">" --threshold 70
  ohlcvrag analyze comparison --tickers AAPL,MSFT`)
}

func runInteractive() {
	fs := flag.NewFlagSet("interactive", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, logger := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	fmt.Println("ohlcvrag interactive mode. Ask about indexed market data; 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		result, err := components.Pipeline.Query(context.Background(), models.QueryRequest{Query: line})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			continue
		}
		cli.PrintQueryResult(result)
	}
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Chunks          int64                  `json:"chunks"`
	Tickers         []string               `json:"tickers"`
	VectorIndexSize int                    `json:"vector_index_size"`
	DiskUsageBytes  *int64                 `json:"disk_usage_bytes,omitempty"`
	Config          map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		chunkCount, err := components.Storage.CountChunks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		tickers, err := components.Storage.ListTickers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List tickers failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Chunks:          chunkCount,
			Tickers:         tickers,
			VectorIndexSize: components.Vectors.Size(),
			Config: map[string]interface{}{
				"embedding_provider":   cfg.Embedding.Provider,
				"embedding_dimensions": cfg.Embedding.Dimensions,
				"chunk_window":         cfg.Chunker.Window,
				"chunk_stride":         cfg.Chunker.Stride,
				"llm_model":            cfg.LLM.Model,
				"database_path":        cfg.Storage.DatabasePath,
				"bleve_index_path":     cfg.Storage.BleveIndexPath,
				"vector_index_path":    cfg.Storage.VectorIndexPath,
			},
		}
		diskBytes, err := storage.DiskUsageBytes(
			cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("chunks:             %d   # indexed window chunks\n", status.Chunks)
		fmt.Printf("tickers:            %s\n", strings.Join(status.Tickers, ", "))
		fmt.Printf("vector_index_size:  %d   # vectors in semantic index\n", status.VectorIndexSize)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d   # storage + indices on disk\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{
				"embedding_provider", "embedding_dimensions", "chunk_window",
				"chunk_stride", "llm_model", "database_path", "bleve_index_path",
				"vector_index_path",
			} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-20s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func splitTickers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		t := strings.ToUpper(strings.TrimSpace(part))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Keywords keyword.Index
	Vectors  *vectorstore.Store
	Ingestor *ingest.Ingestor
	Pipeline *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Keywords != nil {
		_ = c.Keywords.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// mustInitialize loads config, builds a logger, and wires components, exiting
// on failure. One-shot commands share it; the server wires metrics itself.
func mustInitialize(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return components, logger
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, rec *metrics.Recorder) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		// The onnx provider needs a model file and a CGO build; fall back to
		// the deterministic hash embedder so the pipeline stays usable.
		logger.Warn("embedder init failed, falling back to hash",
			zap.String("provider", cfg.Embedding.Provider), zap.Error(err))
		embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	}

	vectorIndex, err := vector.New("memory", cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	vectors := vectorstore.New(embedder, vectorIndex)
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectors.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Debug("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	ck := chunker.New(cfg.Chunker)

	source, err := ingest.NewSource(cfg.Ingest)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bar source: %w", err)
	}
	ingestor := ingest.NewIngestor(source, ck, store, keywordIndex, vectors, rec, logger, 0)

	ret := retriever.New(vectors, keywordIndex, store, cfg.Retriever, logger)

	prompts, err := prompt.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}

	llmCfg := cfg.LLM
	if llmCfg.APIKey == "" {
		llmCfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	client, err := llm.New(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	responseCache, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	pipe := pipeline.New(ret, prompts, client, responseCache, rec, logger, cfg.Pipeline)

	return &Components{
		Storage:  store,
		Keywords: keywordIndex,
		Vectors:  vectors,
		Ingestor: ingestor,
		Pipeline: pipe,
	}, nil
}

func printUsage() {
	fmt.Println(`ohlcvrag - Retrieval-augmented analysis of historical OHLCV market data

Usage:
  ohlcvrag server [flags]                Start the HTTP server
  ohlcvrag setup [flags]                 Ingest tickers into the index
  ohlcvrag query [flags] <question>      Ask a question about indexed data
  ohlcvrag analyze <type> [flags]        Run a structured analysis
  ohlcvrag interactive [flags]           Interactive question loop
  ohlcvrag status [flags]                Show storage and index status
  ohlcvrag version                       Show version
  ohlcvrag help                          Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ohlcvrag/config.yaml)
  --debug            Enable debug logging

Setup Flags:
  --config string    Config file path
  --tickers string   Comma-separated tickers to ingest (required)
  --days int         Trailing days to ingest (default: 365)
  --source string    Bar source override: csv, xlsx, alphavantage, or synthetic

Query Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to answer locally.
  --type string      Query type hint: general, pattern, comparison, prediction, or technical
  --ticker string    Restrict retrieval to one ticker
  --n int            Number of chunks to retrieve
  --no-cache         Bypass the response cache
  --output string    Output format: text or json (default: text)

Analyze Flags:
  --tickers string     Comma-separated tickers
  --pattern string     Pattern name (pattern analysis)
  --indicator string   Indicator name (indicator analysis)
  --condition string   Indicator condition: >, <, or = (default: >)
  --threshold float    Indicator threshold
  --output string      Output format: text or json (default: text)

Examples:
  ohlcvrag setup --tickers AAPL,MSFT --days 365 --source synthetic
  ohlcvrag server
  ohlcvrag query "How did AAPL perform in early 2024?"
  ohlcvrag query --ticker MSFT --type technical "What is the RSI trend?"
  ohlcvrag analyze comparison --tickers AAPL,MSFT
  ohlcvrag analyze indicator --indicator rsi --threshold 70
  ohlcvrag status --output json`)
}
