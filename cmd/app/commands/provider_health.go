package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	chaindomain "github.com/allisson/chainsync/internal/chain/domain"
	"github.com/allisson/chainsync/internal/chain/manager"
)

// RunProviderHealth performs a one-shot connection probe against every
// configured chain provider and reports the per-network outcome.
func RunProviderHealth(
	ctx context.Context,
	providerManager *manager.ProviderManager,
	logger *slog.Logger,
	out io.Writer,
	format string,
) error {
	logger.Info("probing chain providers")

	_, initErr := providerManager.InitializeProviders(ctx)
	defer providerManager.Shutdown(context.Background())

	snapshot := providerManager.HealthSnapshot()

	if format == "json" {
		outputProviderHealthJSON(out, snapshot)
	} else {
		outputProviderHealthText(out, snapshot)
	}

	if initErr != nil {
		return fmt.Errorf("provider probe failed: %w", initErr)
	}

	return nil
}

// outputProviderHealthText outputs the snapshot in human-readable text format.
func outputProviderHealthText(out io.Writer, snapshot map[chaindomain.Network]chaindomain.ProviderHealth) {
	networks := make([]string, 0, len(snapshot))
	for network := range snapshot {
		networks = append(networks, string(network))
	}
	sort.Strings(networks)

	for _, network := range networks {
		info := snapshot[chaindomain.Network(network)]
		line := fmt.Sprintf("%-16s %-13s response_time=%s errors=%d",
			network, info.Status, info.ResponseTime, info.ErrorCount)
		if info.LastError != nil {
			line += fmt.Sprintf(" last_error=%q", *info.LastError)
		}
		fmt.Fprintln(out, line)
	}
}

// outputProviderHealthJSON outputs the snapshot in JSON format for machine consumption.
func outputProviderHealthJSON(out io.Writer, snapshot map[chaindomain.Network]chaindomain.ProviderHealth) {
	jsonBytes, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(out, string(jsonBytes))
}
