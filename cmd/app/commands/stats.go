package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	outboxDomain "github.com/allisson/chainsync/internal/outbox/domain"
	outboxUsecase "github.com/allisson/chainsync/internal/outbox/usecase"
)

// RunStats reports per-status outbox entry counts.
//
// Requirements: Database must be migrated and accessible.
func RunStats(
	ctx context.Context,
	store outboxUsecase.Store,
	logger *slog.Logger,
	out io.Writer,
	format string,
) error {
	logger.Info("loading outbox processing stats")

	stats, err := store.GetProcessingStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load processing stats: %w", err)
	}

	if format == "json" {
		outputStatsJSON(out, stats)
	} else {
		outputStatsText(out, stats)
	}

	return nil
}

// outputStatsText outputs the stats in human-readable text format.
func outputStatsText(out io.Writer, stats *outboxUsecase.ProcessingStats) {
	statuses := make([]string, 0, len(stats.Counts))
	for status := range stats.Counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	fmt.Fprintf(out, "Outbox entries (total: %d)\n", stats.Total)
	for _, status := range statuses {
		fmt.Fprintf(out, "  %-14s %d\n", status, stats.Counts[outboxDomain.EntryStatus(status)])
	}
}

// outputStatsJSON outputs the stats in JSON format for machine consumption.
func outputStatsJSON(out io.Writer, stats *outboxUsecase.ProcessingStats) {
	jsonBytes, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(out, string(jsonBytes))
}
