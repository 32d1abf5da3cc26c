package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"macpulse/internal/config"
	"macpulse/internal/dataprocessing"
	"macpulse/internal/files"
	"macpulse/internal/infrastructure"
	"macpulse/internal/services"
	"macpulse/internal/transmission"
	"macpulse/pkg/contracts"
)

func main() {
	inputPath := flag.String("in", "", "pillar score table (.csv or .xlsx); defaults to the newest table in the data directory")
	configPath := flag.String("config", "", "configuration file (defaults to config.yaml search)")
	outputDir := flag.String("out", "", "output directory for reports (defaults to data/reports)")
	sheet := flag.String("sheet", "", "workbook sheet to read (defaults to the first sheet)")
	fill := flag.Bool("fill", false, "forward-fill empty pillar cells")
	validationPath := flag.String("validation", "", "CSV of out-of-sample records: scenario,as_of,predicted,realized")
	permutations := flag.Int("permutations", 0, "maximum identification orderings (0 keeps the configured value)")
	quiet := flag.Bool("quiet", false, "do not print the text report")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(contracts.GetFullVersionString())
		return
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Paths.ReportsDir = *outputDir
	}
	if *permutations > 0 {
		cfg.Estimator.MaxPermutations = *permutations
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = infrastructure.EnsureTraceID(ctx)

	report, err := run(ctx, cfg, options{
		input:      *inputPath,
		validation: *validationPath,
		parse:      dataprocessing.ParseOptions{Sheet: *sheet, FillMissing: *fill},
	}, logger)
	if err != nil {
		logger.Error("Transmission report failed", "error", err)
		if report == nil {
			os.Exit(1)
		}
	}

	if !*quiet {
		fmt.Print(transmission.FormatReport(report))
	}
}

type options struct {
	input      string
	validation string
	parse      dataprocessing.ParseOptions
}

// run estimates the input table and writes every report output. A returned
// report with an error means the estimate succeeded but outputs did not.
func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger) (*transmission.Report, error) {
	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	if opts.input == "" {
		latest, ok, err := files.NewDiscovery(paths.DataDir).LatestTable("")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no pillar table found in %s", paths.DataDir)
		}
		logger.Info("Using newest pillar table", "path", latest.Path, "modified", latest.ModTime)
		opts.input = latest.Path
	}
	if err := files.ValidateTable(opts.input); err != nil {
		return nil, err
	}

	params, err := cfg.Estimator.Params()
	if err != nil {
		return nil, err
	}
	estimator, err := transmission.NewEstimator(params, logger)
	if err != nil {
		return nil, err
	}

	svc, err := services.NewTransmissionService(services.TransmissionDeps{
		Estimator: estimator,
		Paths:     paths,
		Timeout:   cfg.Estimator.Timeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	var records []transmission.ValidationRecord
	if opts.validation != "" {
		f, err := os.Open(opts.validation)
		if err != nil {
			return nil, fmt.Errorf("open validation records: %w", err)
		}
		records, err = loadValidation(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", opts.validation, err)
		}
		logger.Info("Loaded validation records", "path", opts.validation, "records", len(records))
	}

	start := time.Now()
	report, err := svc.EstimateFromFile(ctx, opts.input, opts.parse, records)
	if report != nil {
		logger.Info("Transmission report written",
			"run_id", report.RunID,
			"reports_dir", paths.ReportsDir,
			"duration", time.Since(start).String())
	}
	return report, err
}

// loadValidation reads scenario,as_of,predicted,realized rows. The header
// row is required; as_of is a YYYY-MM-DD date.
func loadValidation(r io.Reader) ([]transmission.ValidationRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	want := []string{"scenario", "as_of", "predicted", "realized"}
	if len(header) < len(want) {
		return nil, fmt.Errorf("expected columns %s", strings.Join(want, ","))
	}
	for i, name := range want {
		if strings.ToLower(strings.TrimSpace(header[i])) != name {
			return nil, fmt.Errorf("column %d is %q, expected %q", i+1, header[i], name)
		}
	}

	var records []transmission.ValidationRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		asOf, err := time.Parse("2006-01-02", strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid as_of %q", line, row[1])
		}
		predicted, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid predicted %q", line, row[2])
		}
		realized, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid realized %q", line, row[3])
		}

		records = append(records, transmission.ValidationRecord{
			Scenario:  strings.TrimSpace(row[0]),
			AsOf:      asOf,
			Predicted: predicted,
			Realized:  realized,
		})
	}
	return records, nil
}
