package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check graph database connectivity and health",
	Long: `Connect to the configured graph database, run a health check, and
report the result. Exits non-zero when the database is unreachable.`,
	RunE: runStatus,
}

// GraphStatus is the serialized health report.
type GraphStatus struct {
	URI       string             `json:"uri"`
	Health    types.HealthStatus `json:"health"`
	CheckedAt time.Time          `json:"checked_at"`
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output status in JSON format")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newGraphClient(cfg, logger)
	if err != nil {
		return err
	}

	status := GraphStatus{URI: cfg.Graph.URI, CheckedAt: time.Now().UTC()}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Graph.ConnectionTimeout)
	defer cancel()

	if err := client.Connect(connectCtx); err != nil {
		status.Health = types.Unhealthy(err.Error())
	} else {
		defer client.Close(ctx)
		status.Health = client.Health(ctx)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		encoded, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(encoded))
	} else {
		symbol := "✓"
		if status.Health.IsUnhealthy() {
			symbol = "✗"
		} else if status.Health.IsDegraded() {
			symbol = "⚠"
		}
		cmd.Printf("%s %s: %s\n", symbol, status.URI, status.Health.State)
		if status.Health.Message != "" {
			cmd.Printf("  %s\n", status.Health.Message)
		}
	}

	if status.Health.IsUnhealthy() {
		return fmt.Errorf("graph database unhealthy")
	}
	return nil
}
