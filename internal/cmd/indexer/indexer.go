// Package indexer parses indexer command flags and runs the projection loop.
package indexer

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/wandeoki/afritrace/internal/ledger/projection"
	"github.com/wandeoki/afritrace/internal/ledger/storage/sqlite"
	"github.com/wandeoki/afritrace/internal/ledger/stream"
	"github.com/wandeoki/afritrace/internal/platform/config"
	"github.com/wandeoki/afritrace/internal/platform/otel"
)

// Config holds indexer command configuration.
type Config struct {
	DBPath      string        `env:"AFRITRACE_DB_PATH" envDefault:"afritrace.db"`
	EventsPath  string        `env:"AFRITRACE_EVENTS_PATH"`
	Strict      bool          `env:"AFRITRACE_STRICT" envDefault:"false"`
	IdleTimeout time.Duration `env:"AFRITRACE_IDLE_TIMEOUT"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite read-model database")
	fs.StringVar(&cfg.EventsPath, "events", cfg.EventsPath, "Path to an NDJSON event export (- or empty reads stdin)")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail on rejected events instead of logging and skipping")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Abort when the source is silent this long (0 disables)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run projects the configured event export into the read model.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "afritrace-indexer")
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := openEvents(cfg.EventsPath)
	if err != nil {
		return err
	}
	defer events.Close()

	opts := []projection.Option{}
	if cfg.Strict {
		opts = append(opts, projection.WithStrict())
	}
	projector, err := projection.New(db, opts...)
	if err != nil {
		return err
	}

	runnerOpts := []stream.RunnerOption{}
	if cfg.IdleTimeout > 0 {
		runnerOpts = append(runnerOpts, stream.WithIdleTimeout(cfg.IdleTimeout))
	}
	runner, err := stream.NewRunner(stream.NewReaderSource(events), projector, runnerOpts...)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}

func openEvents(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event export: %w", err)
	}
	return f, nil
}
