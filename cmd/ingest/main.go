// Command ingest reads a workbook from disk, publishes it into the configured
// snapshot store and prints the ingestion report.
//
//	ingest -file schools.xlsx
//	ingest -file schools.xlsx -out catalog.csv
//	ingest -file schools.xlsx -ranking accuracy_index > ranking.csv
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"schoolpulse/internal/config"
	"schoolpulse/internal/exporter"
	"schoolpulse/internal/infrastructure"
	"schoolpulse/internal/services"
	"schoolpulse/internal/store"
	"schoolpulse/internal/validation"
	"schoolpulse/pkg/contracts"
	"schoolpulse/pkg/contracts/domain"
)

// options holds the parsed command line
type options struct {
	file    string
	out     string
	ranking string
	bom     bool
	driver  string
	path    string
	version bool
}

var errUsage = errors.New("usage error")

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "file", "", "workbook to ingest (.xlsx or .xlsm)")
	fs.StringVar(&opts.out, "out", "", "write the whole catalog as CSV to this path")
	fs.StringVar(&opts.ranking, "ranking", "", "print the ranking CSV of this metric instead of the report")
	fs.BoolVar(&opts.bom, "bom", false, "prefix CSV output with a UTF-8 byte order mark")
	fs.StringVar(&opts.driver, "store", "", "override the configured store driver (memory, file, sqlite)")
	fs.StringVar(&opts.path, "data", "", "override the configured store path")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("%w: %v", errUsage, err)
	}
	if opts.file == "" && !opts.version {
		fs.Usage()
		return opts, fmt.Errorf("%w: -file is required", errUsage)
	}
	return opts, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = run(ctx, cfg, logger, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	infrastructure.CloseLogFile()

	switch {
	case errors.Is(err, errUsage):
		os.Exit(2)
	case err != nil:
		infrastructure.WithError(logger, err).Error("ingestion failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		_, err := fmt.Fprintln(stdout, contracts.GetVersionString())
		return err
	}

	// Every log line of one run shares a trace id
	ctx = infrastructure.EnsureTraceID(ctx)

	var metric domain.MetricID
	if opts.ranking != "" {
		m, ok := domain.LookupMetric(opts.ranking)
		if !ok {
			return fmt.Errorf("%w: unknown metric %q", errUsage, opts.ranking)
		}
		metric = m.ID
	}

	if err := validation.NewFileValidator(logger).ValidateExcelFile(opts.file); err != nil {
		return err
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("failed to read workbook: %w", err)
	}

	driver, path := cfg.Store.Driver, cfg.Store.Path
	if opts.driver != "" {
		driver = opts.driver
	}
	if opts.path != "" {
		path = opts.path
	}
	st, err := store.Open(driver, path)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	if closer, ok := st.(io.Closer); ok {
		defer closer.Close()
	}

	logger.InfoContext(ctx, "ingesting workbook",
		slog.String("file", opts.file),
		slog.String("store_driver", driver),
		slog.Int("bytes", len(data)))

	svc := services.NewCatalogService(st, logger)
	report, err := svc.IngestWorkbook(ctx, filepath.Base(opts.file), data)
	if err != nil {
		return err
	}
	if !report.Persisted {
		return fmt.Errorf("workbook %s was read but the snapshot could not be persisted", opts.file)
	}

	if opts.out != "" {
		if err := exportCatalog(svc, opts.out, opts.bom); err != nil {
			return err
		}
		logger.InfoContext(ctx, "catalog exported", slog.String("path", opts.out))
	}

	if metric != "" {
		entries, err := svc.RankingFor(metric)
		if err != nil {
			return err
		}
		_, err = exporter.WriteRanking(stdout, entries, opts.bom)
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func exportCatalog(svc *services.CatalogService, path string, bom bool) error {
	catalog, err := svc.Catalog()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := exporter.WriteCatalog(f, catalog, bom); err != nil {
		f.Close()
		return fmt.Errorf("failed to export catalog: %w", err)
	}
	return f.Close()
}
