package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/newthinker/sigsim/internal/app"
	"github.com/newthinker/sigsim/internal/collector"
	"github.com/newthinker/sigsim/internal/collector/binance"
	"github.com/newthinker/sigsim/internal/collector/cdd"
	"github.com/newthinker/sigsim/internal/collector/okx"
	"github.com/newthinker/sigsim/internal/config"
	"github.com/newthinker/sigsim/internal/logger"
	"github.com/newthinker/sigsim/internal/metrics"
	"github.com/newthinker/sigsim/internal/series"
	"github.com/newthinker/sigsim/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	simulateOut    string
	simulateFormat string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [signals-file]",
	Short: "Backtest every signal in a file and write the report",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVarP(&simulateOut, "out", "o", "", "report path (default from config)")
	simulateCmd.Flags().StringVarP(&simulateFormat, "format", "f", "", "report format: html, csv or json")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	log := logger.WithRun(logger.Must(debug), uuid.NewString())
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	signalsPath := cfg.Signals
	if len(args) > 0 {
		signalsPath = args[0]
	}
	// an --out without --format takes its format from the file extension
	out, format := cfg.Report.Path, cfg.Report.Format
	if simulateOut != "" {
		out, format = simulateOut, ""
	}
	if simulateFormat != "" {
		format = simulateFormat
	}

	reg := metrics.NewRegistry()

	fetcher, err := newFetcher(cfg.Data, log, reg)
	if err != nil {
		return err
	}
	storage, err := archive.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("creating cache storage: %w", err)
	}

	provider := series.NewProvider(fetcher, storage, log,
		series.WithCacheName(cfg.Data.CacheName),
		series.WithMetrics(reg),
	)
	sim := app.New(provider, log, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := sim.Run(ctx, signalsPath)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	if err := sim.WriteReport(res, out, format); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if cfg.Metrics.Textfile != "" {
		if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("writing metrics failed", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	fmt.Printf("Simulation completed. Result has been saved as '%s'.\n", out)
	return nil
}

// newFetcher builds the configured data source behind an instrumented HTTP client
func newFetcher(cfg config.DataConfig, log *zap.Logger, reg *metrics.Registry) (collector.Fetcher, error) {
	client := func(source string) *http.Client {
		transport := metrics.LogTransport(log, http.DefaultTransport)
		return &http.Client{
			Timeout:   cfg.Timeout,
			Transport: metrics.InstrumentTransport(reg, source, transport),
		}
	}

	// exchange sources are built only when selected, so an unused date range never fails a run
	registry := collector.NewRegistry()
	registry.Register(cdd.New(client("cdd"), cfg.URLTemplate))

	switch cfg.Source {
	case "binance":
		start, end, err := cfg.Binance.Range()
		if err != nil {
			return nil, fmt.Errorf("binance: %w", err)
		}
		registry.Register(binance.New(client("binance"), cfg.Binance.Quote, start, end).WithBaseURL(cfg.Binance.BaseURL))
	case "okx":
		start, end, err := cfg.OKX.Range()
		if err != nil {
			return nil, fmt.Errorf("okx: %w", err)
		}
		registry.Register(okx.New(client("okx"), cfg.OKX.Quote, start, end).WithBaseURL(cfg.OKX.BaseURL))
	}

	return registry.Get(cfg.Source)
}
