package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/oddsmith/foresight/internal/backtest"
	"github.com/oddsmith/foresight/internal/config"
	"github.com/oddsmith/foresight/internal/logger"
	"github.com/oddsmith/foresight/internal/runs"
	"github.com/oddsmith/foresight/internal/store"
	"github.com/oddsmith/foresight/internal/telemetry"
	"github.com/shopspring/decimal"
)

var (
	// Data sources
	dataFile       = flag.String("data", "", "Path to CSV file with price history (market_id,timestamp,yes_price,no_price,volume)")
	generateSample = flag.Bool("generate-sample", false, "Generate sample price history instead of loading from file")
	sampleMarkets  = flag.Int("sample-markets", 3, "Number of markets to generate for sample data")
	samplePoints   = flag.Int("sample-points", 500, "Number of price points per generated market")

	// Run configuration
	runName        = flag.String("name", "backtest", "Human-readable run name")
	strategyName   = flag.String("strategy", "mean-reversion", "Strategy name")
	initialCapital = flag.Float64("capital", 10000, "Initial capital")
	startDate      = flag.String("start", "", "Window start (YYYY-MM-DD), default 30 days ago")
	endDate        = flag.String("end", "", "Window end (YYYY-MM-DD), default now")

	// Strategy parameters
	minEdge     = flag.Float64("min-edge", 0, "Minimum deviation from rolling mean to enter (0 = default)")
	positionPct = flag.Float64("position-pct", 0, "Position size as fraction of capital (0 = default)")
	takeProfit  = flag.Float64("take-profit", 0, "Take-profit threshold (0 = default)")
	stopLoss    = flag.Float64("stop-loss", 0, "Stop-loss threshold (0 = default)")
	seed        = flag.Int64("seed", 0, "Seed for the stochastic fallback (0 = random)")

	// Storage
	dbPath = flag.String("db", "", "SQLite database path (empty = in-memory store)")

	// Other modes
	compareIDs     = flag.String("compare", "", "Comma-separated run ids to compare (requires -db)")
	deleteID       = flag.String("delete", "", "Run id to delete (requires -db)")
	listRuns       = flag.Bool("list", false, "List stored runs")
	filterStrategy = flag.String("filter-strategy", "", "Restrict -list to a strategy name")

	// Output options
	verbose = flag.Bool("verbose", false, "Show detailed trade log")
)

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func loadLoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.Level = slog.LevelDebug
	case "warn", "warning":
		cfg.Level = slog.LevelWarn
	case "error":
		cfg.Level = slog.LevelError
	case "info", "":
		cfg.Level = slog.LevelInfo
	}

	if format := strings.ToLower(os.Getenv("LOG_FORMAT")); format == "json" {
		cfg.Format = "json"
	} else {
		cfg.Format = "text"
	}

	cfg.AddSource = getEnvBool("LOG_ADD_SOURCE", false)
	if output := os.Getenv("LOG_OUTPUT_PATH"); output != "" {
		cfg.OutputPath = output
	}

	return cfg
}

func main() {
	// Load .env file if it exists
	godotenv.Load()

	flag.Parse()

	logger.SetDefault(logger.New(loadLoggerConfig()))

	if err := run(); err != nil {
		logger.Default().Error("foresight exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *dbPath != "" {
		appConfig.DatabasePath = *dbPath
	}

	st, closeStore, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer closeStore()

	provider := backtest.NewSeriesProvider(st, appConfig.PriceRowCap)
	manager := runs.NewManager(provider, st)
	comparator := runs.NewComparator(st)

	// Sweep runs orphaned by a previous process before doing anything else.
	if recovered, err := manager.RecoverStale(ctx, appConfig.StaleRunAfter); err == nil && recovered > 0 {
		logger.Info("recovered stale runs", "count", recovered)
	}

	switch {
	case *compareIDs != "":
		return compareRuns(ctx, comparator)
	case *deleteID != "":
		return deleteRun(ctx, manager)
	case *listRuns:
		return listStoredRuns(ctx, manager)
	default:
		return executeRun(ctx, manager, st)
	}
}

// runStore is the concrete store surface the CLI needs beyond the engine
// boundaries: seeding price history.
type runStore interface {
	backtest.PriceStore
	runs.Store
	AddPrices(ctx context.Context, marketID string, points []backtest.PricePoint) error
}

func openStore(appConfig *config.AppConfig) (runStore, func(), error) {
	if appConfig.DatabasePath == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	s, err := store.NewSQLiteStore(appConfig.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, func() { s.Close() }, nil
}

func executeRun(ctx context.Context, manager *runs.Manager, st runStore) error {
	end := time.Now().UTC().Truncate(time.Hour)
	if *endDate != "" {
		parsed, err := time.Parse("2006-01-02", *endDate)
		if err != nil {
			return fmt.Errorf("invalid -end date: %w", err)
		}
		end = parsed
	}
	start := end.Add(-30 * 24 * time.Hour)
	if *startDate != "" {
		parsed, err := time.Parse("2006-01-02", *startDate)
		if err != nil {
			return fmt.Errorf("invalid -start date: %w", err)
		}
		start = parsed
	}

	loader := backtest.NewDataLoader()
	switch {
	case *dataFile != "":
		series, err := loader.LoadFromCSV(*dataFile)
		if err != nil {
			return fmt.Errorf("failed to load data: %w", err)
		}
		total := 0
		for _, s := range series {
			if err := st.AddPrices(ctx, s.MarketID, s.Points); err != nil {
				return fmt.Errorf("failed to store prices: %w", err)
			}
			total += len(s.Points)
		}
		logger.Info("loaded price history", "markets", len(series), "points", total)
	case *generateSample:
		markets := make([]string, *sampleMarkets)
		for i := range markets {
			markets[i] = fmt.Sprintf("market-%02d", i+1)
		}
		for _, s := range loader.GenerateSampleSeries(markets, start, *samplePoints, *seed) {
			if err := st.AddPrices(ctx, s.MarketID, s.Points); err != nil {
				return fmt.Errorf("failed to store prices: %w", err)
			}
		}
		logger.Info("generated sample price history", "markets", len(markets), "points", *samplePoints)
	}

	params := config.DefaultParams()
	if *minEdge > 0 {
		params.MinEdge = *minEdge
	}
	if *positionPct > 0 {
		params.PositionPct = *positionPct
	}
	if *takeProfit > 0 {
		params.TakeProfit = *takeProfit
	}
	if *stopLoss > 0 {
		params.StopLoss = *stopLoss
	}
	params.Seed = *seed

	run, err := manager.Execute(ctx, runs.Request{
		Name:           *runName,
		Strategy:       *strategyName,
		Params:         params,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: decimal.NewFromFloat(*initialCapital),
	})
	if err != nil {
		return err
	}

	_, trades, err := manager.GetDetail(ctx, run.ID)
	if err != nil {
		return err
	}

	reporter := backtest.NewReporter()
	fmt.Println(reporter.GenerateReport(run.Name, run.ModelSource, run.Metrics, trades))
	if *verbose {
		fmt.Println(reporter.GenerateTradeLog(trades))
		fmt.Println(telemetry.Snapshot())
	}
	fmt.Printf("Run ID: %s\n", run.ID)

	return nil
}

func compareRuns(ctx context.Context, comparator *runs.Comparator) error {
	ids := strings.Split(*compareIDs, ",")
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}

	result, err := comparator.Compare(ctx, ids)
	if err != nil {
		return err
	}

	fmt.Println("COMPARISON")
	fmt.Println("───────────────────────────────────────────────")
	for _, run := range result.Runs {
		fmt.Printf("%-20s return=%7.2f%%  sharpe=%6.2f  win rate=%5.1f%%\n",
			run.Name, run.Metrics.TotalReturnPct, run.Metrics.SharpeRatio, run.Metrics.WinRate*100)
	}
	fmt.Println()
	fmt.Printf("Best return:   %s (%.2f%%)\n", result.BestReturn.Name, result.BestReturn.Metrics.TotalReturnPct)
	fmt.Printf("Best Sharpe:   %s (%.2f)\n", result.BestSharpe.Name, result.BestSharpe.Metrics.SharpeRatio)
	fmt.Printf("Best win rate: %s (%.1f%%)\n", result.BestWinRate.Name, result.BestWinRate.Metrics.WinRate*100)
	return nil
}

func deleteRun(ctx context.Context, manager *runs.Manager) error {
	deleted, err := manager.Delete(ctx, *deleteID)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Printf("Run %s not found\n", *deleteID)
		return nil
	}
	fmt.Printf("Run %s deleted\n", *deleteID)
	return nil
}

func listStoredRuns(ctx context.Context, manager *runs.Manager) error {
	stored, err := manager.List(ctx, *filterStrategy, 50)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		fmt.Println("No runs stored")
		return nil
	}

	for _, run := range stored {
		line := fmt.Sprintf("%s  %-20s %-12s %s", run.ID, run.Name, run.Status, run.CreatedAt.Format("2006-01-02 15:04"))
		if run.Metrics != nil {
			line += fmt.Sprintf("  return=%.2f%%", run.Metrics.TotalReturnPct)
		}
		fmt.Println(line)
	}
	return nil
}
