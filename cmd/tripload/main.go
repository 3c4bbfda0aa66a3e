// Command tripload loads a taxi trip CSV and its zone lookup into a
// database, writing a cleaning report when the load completes.
//
// Settings come from built-in defaults, then a YAML file (--config), then
// .env and TRIPLOAD_* environment variables, then flags.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/bjaus/tripload"
	"github.com/bjaus/tripload/config"
	"github.com/bjaus/tripload/memstore"
	"github.com/bjaus/tripload/sqlstore"
	"github.com/bjaus/tripload/trip"
	"github.com/bjaus/tripload/zone"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "tripload:", err)
		os.Exit(1)
	}
}

// store is what the command needs from a destination.
type store interface {
	tripload.Store
	Close() error
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, dryRun, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	catalog, err := zone.LoadFile(cfg.ZonesPath)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"path": cfg.ZonesPath, "zones": catalog.Len()}).Info("zone catalog loaded")

	dst, err := openStore(ctx, cfg, dryRun, logger)
	if err != nil {
		return err
	}
	defer dst.Close()

	summary, err := tripload.New(dst).
		WithChunkSize(cfg.ChunkSize).
		WithRowLimit(cfg.RowLimit).
		WithReportInterval(cfg.ReportInterval).
		WithProgress(tripload.LogProgress(logger)).
		WithLogger(logger).
		WithJob(cfg.Job).
		WithResume(cfg.Resume).
		WithZoneCache(cfg.CacheZones).
		Run(ctx, trip.NewCSVFile(cfg.TripsPath), catalog)

	if cfg.SummaryPath != "" {
		if werr := writeSummary(cfg.SummaryPath, summary); werr != nil {
			logger.WithError(werr).Error("summary not written")
		}
	}
	if err != nil {
		return fmt.Errorf("load stopped after %d inserted trips: %w", summary.Inserted(), err)
	}

	if err := summary.Rejections().WriteFile(cfg.ReportPath); err != nil {
		return err
	}
	logger.WithField("path", cfg.ReportPath).Info("cleaning report written")
	return nil
}

// parseConfig builds the configuration from every source and validates it.
func parseConfig(args []string, stderr io.Writer) (config.Config, bool, error) {
	fs := flag.NewFlagSet("tripload", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath = fs.String("config", "", "YAML config file")
		envFile    = fs.String("env-file", ".env", "dotenv file with TRIPLOAD_* variables")
		driver     = fs.String("driver", "", "database driver: sqlite3, duckdb or memory")
		dsn        = fs.String("dsn", "", "database connection target")
		tripsPath  = fs.String("file", "", "raw trip CSV")
		zonesPath  = fs.String("zones", "", "zone lookup CSV")
		chunkSize  = fs.Int("batch", 0, "rows per chunk")
		rowLimit   = fs.Int64("limit", 0, "stop after this many input rows (0 = all)")
		report     = fs.String("report", "", "cleaning report output path")
		summary    = fs.String("summary", "", "run summary JSON output path")
		logLevel   = fs.String("log-level", "", "log level")
		job        = fs.String("job", "", "checkpoint name")
		resume     = fs.Bool("resume", false, "continue from the last checkpoint")
		cacheZones = fs.Bool("cache-zones", false, "read committed zones once instead of per chunk")
		dryRun     = fs.Bool("dry-run", false, "process everything but write to memory only")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, false, err
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return cfg, false, err
	}

	// Flags override only when given.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "dsn":
			cfg.DSN = *dsn
		case "file":
			cfg.TripsPath = *tripsPath
		case "zones":
			cfg.ZonesPath = *zonesPath
		case "batch":
			cfg.ChunkSize = *chunkSize
		case "limit":
			cfg.RowLimit = *rowLimit
		case "report":
			cfg.ReportPath = *report
		case "summary":
			cfg.SummaryPath = *summary
		case "log-level":
			cfg.LogLevel = *logLevel
		case "job":
			cfg.Job = *job
		case "resume":
			cfg.Resume = *resume
		case "cache-zones":
			cfg.CacheZones = *cacheZones
		}
	})
	if *dryRun {
		cfg.Driver = config.DriverMemory
	}

	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, *dryRun, nil
}

func openStore(ctx context.Context, cfg config.Config, dryRun bool, logger *logrus.Logger) (store, error) {
	if cfg.Driver == config.DriverMemory {
		logger.WithField("dry_run", dryRun).Warn("using in-memory store; nothing will be persisted")
		return memoryStore{memstore.New()}, nil
	}

	s, err := sqlstore.Open(cfg.Driver, cfg.DSN, logger)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// memoryStore gives memstore.Store the Close the command expects.
type memoryStore struct {
	*memstore.Store
}

func (memoryStore) Close() error { return nil }

func writeSummary(path string, summary *tripload.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
