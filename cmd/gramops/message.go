package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gramops/pkg/engine"
)

var (
	messageTemplate     string
	messageTemplateFile string
	messageProfile      string
	messageRequireProxy bool
)

// messageCmd represents the message command
var messageCmd = &cobra.Command{
	Use:   "message <audience>",
	Short: "Send a templated direct message to scraped members",
	Long: `Send a direct message to every member in an audience.

The audience is either the id of a finished scrape operation or a path to a
members JSON file. Templates substitute {first_name}, {last_name} and
{username} per recipient.

Members who do not accept messages are counted as failed items and skipped.
Daily message quotas apply per account.`,
	Example: `  # Message members collected by a scrape operation
  gramops message scrape-a1b2c3d4e5f6 -t "Hi {first_name}!"

  # Load the template from a file
  gramops message ./members.json --template-file ./welcome.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runMessageCmd,
}

func init() {
	rootCmd.AddCommand(messageCmd)

	messageCmd.Flags().StringVarP(&messageTemplate, "template", "t", "", "message template")
	messageCmd.Flags().StringVar(&messageTemplateFile, "template-file", "", "file containing the message template")
	messageCmd.Flags().StringVar(&messageProfile, "rate-profile", "", "rate profile (stealth, normal, aggressive, fast)")
	messageCmd.Flags().BoolVar(&messageRequireProxy, "require-proxy", false, "only use accounts with a proxy configured")
}

func runMessageCmd(cmd *cobra.Command, args []string) error {
	audience := strings.TrimSpace(args[0])

	template := messageTemplate
	if template == "" && messageTemplateFile != "" {
		data, err := os.ReadFile(messageTemplateFile)
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		template = strings.TrimSpace(string(data))
	}
	if template == "" {
		return fmt.Errorf("a message template is required (--template or --template-file)")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.engine.StartMessage(template, audience, engine.StartOptions{
		Profile:      messageProfile,
		RequireProxy: messageRequireProxy,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Operation started: %s\n", id)
	waitInterruptible(a.engine)
	printOperation(a, id)
	return nil
}
