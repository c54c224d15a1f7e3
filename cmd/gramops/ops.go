package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gramops/pkg/models"
)

// opsCmd groups operation management subcommands.
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Inspect and resume operations",
}

// opsListCmd lists resumable operations.
var opsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List operations that can be resumed",
	Long: `List operations left Running or Paused by a previous run.

An operation shows as Running after a crash or kill; its checkpoint is still
valid and it resumes from the persisted cursor.`,
	RunE: runOpsList,
}

// opsStatusCmd shows one operation's persisted state.
var opsStatusCmd = &cobra.Command{
	Use:   "status <operation-id>",
	Short: "Show the persisted state of an operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpsStatus,
}

// opsResumeCmd resumes an interrupted operation.
var opsResumeCmd = &cobra.Command{
	Use:   "resume <operation-id>",
	Short: "Resume an interrupted operation from its checkpoint",
	Long: `Resume an interrupted operation from its last checkpoint.

Completed items are never re-processed: the cursor picks up where the loop
stopped and the results file absorbs any re-fetched duplicates.`,
	Args: cobra.ExactArgs(1),
	RunE: runOpsResume,
}

func init() {
	rootCmd.AddCommand(opsCmd)
	opsCmd.AddCommand(opsListCmd)
	opsCmd.AddCommand(opsStatusCmd)
	opsCmd.AddCommand(opsResumeCmd)
}

func runOpsList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	states, err := a.engine.ListResumable()
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Println("No resumable operations.")
		return nil
	}

	for _, state := range states {
		fmt.Printf("%-28s %-8s %-9s %d/%d completed, %d failed\n",
			state.ID, state.Kind, state.Status, state.CompletedItems, state.TotalItems, state.FailedItems)
	}
	return nil
}

func runOpsStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	printOperation(a, args[0])
	return nil
}

func runOpsResume(cmd *cobra.Command, args []string) error {
	operationID := args[0]

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.sim != nil {
		state, err := a.engine.GetStatus(operationID)
		if err != nil {
			return err
		}
		if state.Kind == models.KindScrape {
			a.sim.SeedSynthetic(state.Target, state.TotalItems)
		}
	}

	if err := a.engine.Resume(operationID); err != nil {
		return err
	}

	fmt.Printf("Operation resumed: %s\n", operationID)
	waitInterruptible(a.engine)
	printOperation(a, operationID)
	return nil
}

// printOperation prints an operation's state in a fixed human layout.
func printOperation(a *app, operationID string) {
	state, err := a.engine.GetStatus(operationID)
	if err != nil {
		fmt.Printf("Failed to load operation %s: %v\n", operationID, err)
		return
	}

	fmt.Printf("Operation:  %s\n", state.ID)
	fmt.Printf("Kind:       %s\n", state.Kind)
	fmt.Printf("Target:     %s\n", state.Target)
	fmt.Printf("Status:     %s\n", state.Status)
	fmt.Printf("Progress:   %d/%d completed, %d failed\n", state.CompletedItems, state.TotalItems, state.FailedItems)
	fmt.Printf("Profile:    %s\n", state.Profile)
	fmt.Printf("Started:    %s\n", state.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Checkpoint: %s\n", state.LastCheckpoint.Format("2006-01-02 15:04:05"))
	if state.LastError != "" {
		fmt.Printf("Last error: %s\n", state.LastError)
	}
}
