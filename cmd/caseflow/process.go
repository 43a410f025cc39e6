package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/caseflow/caseflow/internal/graph/txn"
	"github.com/caseflow/caseflow/internal/process"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Inspect process instances",
}

var processListCmd = &cobra.Command{
	Use:   "list",
	Short: "List process instances in a given state",
	RunE:  runProcessList,
}

func init() {
	processListCmd.Flags().String("state", "active", "Lifecycle state to filter by")
	processListCmd.Flags().Bool("json", false, "Output instances in JSON format")

	processCmd.AddCommand(processListCmd)
}

func runProcessList(cmd *cobra.Command, args []string) error {
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
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close(ctx)

	manager := txn.NewManager(client,
		txn.WithPolicy(retryPolicy(cfg)),
		txn.WithLogger(logger))
	repo := process.NewRepository(manager, process.WithLogger(logger))

	stateFlag, _ := cmd.Flags().GetString("state")
	instances, err := repo.ListByState(ctx, process.State(stateFlag))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		encoded, err := json.MarshalIndent(instances, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(encoded))
		return nil
	}

	if len(instances) == 0 {
		cmd.Printf("No process instances in state %q\n", stateFlag)
		return nil
	}
	for _, instance := range instances {
		cmd.Printf("%s  %-24s %-12s %s\n",
			instance.ID,
			instance.BusinessKey,
			instance.State,
			instance.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}
