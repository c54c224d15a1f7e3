package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gramops/pkg/engine"
)

var (
	inviteProfile      string
	inviteRequireProxy bool
	inviteRotate       bool
)

// inviteCmd represents the invite command
var inviteCmd = &cobra.Command{
	Use:   "invite <target-group> <source>",
	Short: "Invite scraped members into a group",
	Long: `Invite members into a target group.

The source is either the id of a finished scrape operation or a path to a
members JSON file. Members whose privacy settings reject the invitation are
counted as failed items and skipped; the operation keeps going.

Daily invite quotas apply per account. When every account is exhausted the
operation pauses until an account becomes eligible again.`,
	Example: `  # Invite members collected by a scrape operation
  gramops invite mygroup scrape-a1b2c3d4e5f6

  # Invite from a file, rotating accounts after every invitation
  gramops invite mygroup ./members.json --rotate-accounts`,
	Args: cobra.ExactArgs(2),
	RunE: runInviteCmd,
}

func init() {
	rootCmd.AddCommand(inviteCmd)

	inviteCmd.Flags().StringVar(&inviteProfile, "rate-profile", "", "rate profile (stealth, normal, aggressive, fast)")
	inviteCmd.Flags().BoolVar(&inviteRequireProxy, "require-proxy", false, "only use accounts with a proxy configured")
	inviteCmd.Flags().BoolVar(&inviteRotate, "rotate-accounts", false, "switch accounts after every successful invitation")
}

func runInviteCmd(cmd *cobra.Command, args []string) error {
	targetGroup := strings.TrimSpace(args[0])
	source := strings.TrimSpace(args[1])

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.engine.StartInvite(targetGroup, source, engine.StartOptions{
		Profile:        inviteProfile,
		RequireProxy:   inviteRequireProxy,
		RotateAccounts: inviteRotate,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Operation started: %s\n", id)
	waitInterruptible(a.engine)
	printOperation(a, id)
	return nil
}
