package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gramops/pkg/engine"
)

var (
	scrapeMax          int
	scrapeQuery        string
	scrapeProfile      string
	scrapeRequireProxy bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <group>",
	Short: "Scrape the member list of a group",
	Long: `Scrape the member list of a group into a results file.

Members are written to <output-dir>/<operation-id>.members.json as the
operation progresses. Progress checkpoints persist to the operation store,
so an interrupted scrape resumes from its cursor with 'gramops ops resume'.

The group reference is a username, invite link or numeric id, passed through
to the client adapter unchanged.`,
	Example: `  # Scrape up to 1000 members
  gramops scrape mygroup --max 1000

  # Slow and careful, proxied accounts only
  gramops scrape mygroup --max 500 --rate-profile stealth --require-proxy

  # Rehearse without touching the network
  gramops scrape mygroup --max 200 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runScrapeCmd,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().IntVar(&scrapeMax, "max", 1000, "maximum members to scrape")
	scrapeCmd.Flags().StringVar(&scrapeQuery, "query", "", "search query to seed the enumeration")
	scrapeCmd.Flags().StringVar(&scrapeProfile, "rate-profile", "", "rate profile (stealth, normal, aggressive, fast)")
	scrapeCmd.Flags().BoolVar(&scrapeRequireProxy, "require-proxy", false, "only use accounts with a proxy configured")
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	groupRef := strings.TrimSpace(args[0])

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.sim != nil {
		a.sim.SeedSynthetic(groupRef, scrapeMax)
	}

	id, err := a.engine.StartScrape(groupRef, scrapeMax, scrapeQuery, engine.StartOptions{
		Profile:      scrapeProfile,
		RequireProxy: scrapeRequireProxy,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Operation started: %s\n", id)
	waitInterruptible(a.engine)
	printOperation(a, id)
	return nil
}
