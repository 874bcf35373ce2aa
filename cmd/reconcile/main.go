// Command reconcile runs a single reconcile_document pass over one contract
// document and prints the resulting report as JSON. It is a thin host
// around the public reconcile package — the embeddable library, not a
// server — for operators who want to trigger a run from a shell or a cron
// job without writing Go.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	reconcile "github.com/clauseguard/reconcile"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := parseLogLevel(os.Getenv("RECONCILE_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	var documentID, tenantID, dealID, updatedBy string
	flag.StringVar(&documentID, "document", "", "document_id to reconcile (required)")
	flag.StringVar(&tenantID, "tenant", "", "tenant_id the document belongs to (required)")
	flag.StringVar(&dealID, "deal", "", "deal_id whose PATs apply (required)")
	flag.StringVar(&updatedBy, "updated-by", "", "agent/user id attributed as the run's author (required)")
	flag.Parse()

	ids, err := parseIDs(documentID, tenantID, dealID, updatedBy)
	if err != nil {
		return err
	}

	app, err := reconcile.New(
		reconcile.WithVersion(version),
		reconcile.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	report, err := app.Reconcile(ctx, ids.documentID, ids.tenantID, ids.dealID, ids.updatedBy)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

type runIDs struct {
	documentID, tenantID, dealID, updatedBy uuid.UUID
}

func parseIDs(documentID, tenantID, dealID, updatedBy string) (runIDs, error) {
	var ids runIDs
	var err error
	if ids.documentID, err = uuid.Parse(documentID); err != nil {
		return ids, fmt.Errorf("-document: %w", err)
	}
	if ids.tenantID, err = uuid.Parse(tenantID); err != nil {
		return ids, fmt.Errorf("-tenant: %w", err)
	}
	if ids.dealID, err = uuid.Parse(dealID); err != nil {
		return ids, fmt.Errorf("-deal: %w", err)
	}
	if ids.updatedBy, err = uuid.Parse(updatedBy); err != nil {
		return ids, fmt.Errorf("-updated-by: %w", err)
	}
	return ids, nil
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
