package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	outboxDomain "github.com/allisson/chainsync/internal/outbox/domain"
	outboxUsecase "github.com/allisson/chainsync/internal/outbox/usecase"
)

// RunRetryEntry requeues an outbox entry for processing. The entry must
// be in the manual_review status; the attempt counter is reset so the
// entry gets a fresh allowance.
//
// Requirements: Database must be migrated and accessible.
func RunRetryEntry(
	ctx context.Context,
	store outboxUsecase.Store,
	logger *slog.Logger,
	out io.Writer,
	idStr string,
	format string,
) error {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid entry id: %s", idStr)
	}

	logger.Info("retrying outbox entry", slog.String("entry_id", id.String()))

	if err := store.Retry(ctx, id); err != nil {
		return fmt.Errorf("failed to retry entry: %w", err)
	}

	entry, err := store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load entry after retry: %w", err)
	}

	if format == "json" {
		outputRetryEntryJSON(out, entry)
	} else {
		outputRetryEntryText(out, entry)
	}

	logger.Info("entry requeued",
		slog.String("entry_id", id.String()),
		slog.String("status", string(entry.Status)),
	)

	return nil
}

// outputRetryEntryText outputs the result in human-readable text format.
func outputRetryEntryText(out io.Writer, entry *outboxDomain.OutboxEntry) {
	fmt.Fprintf(out, "Entry %s requeued (kind: %s, status: %s)\n", entry.ID, entry.Kind, entry.Status)
}

// outputRetryEntryJSON outputs the result in JSON format for machine consumption.
func outputRetryEntryJSON(out io.Writer, entry *outboxDomain.OutboxEntry) {
	result := map[string]interface{}{
		"id":     entry.ID,
		"kind":   entry.Kind,
		"status": entry.Status,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(out, string(jsonBytes))
}
