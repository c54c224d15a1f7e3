package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"gramops/pkg/account"
	"gramops/pkg/config"
	"gramops/pkg/engine"
	"gramops/pkg/logger"
	"gramops/pkg/store"
	"gramops/pkg/telegram"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dryRun     bool

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gramops",
	Short: "Multi-account bulk operation engine for group scraping, inviting and messaging",
	Long: `gramops runs long, rate-limited bulk operations across a pool of accounts.

Operations:
  - Scrape the member list of a group into a results file
  - Invite scraped members into a target group
  - Send templated direct messages to scraped members

Every operation checkpoints its progress to a local database so it can
resume after a crash, a shutdown, or a server-imposed wait. Account
rotation, daily quotas and adaptive delays keep the pool usable.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}
		if err := logger.Initialize(&loaded.Logging); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .gramops.yaml or $HOME/.gramops.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "rehearse against a simulated platform instead of the live API")

	rootCmd.SetVersionTemplate(`gramops {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// app bundles the collaborators a command needs to run operations.
type app struct {
	engine *engine.Engine
	store  store.OperationStore
	sim    *telegram.Simulator
}

// buildApp wires the pool, store, adapter and engine from the loaded config.
func buildApp() (*app, error) {
	accounts, err := cfg.LoadAccounts()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, errors.New("no accounts configured; add accounts to the config or accounts file")
	}

	log := logger.GetLogger()
	pool := account.NewPool(accounts, cfg.Quotas, log)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	adapter, sim, err := newAdapter()
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		engine: engine.New(cfg, pool, st, adapter, log),
		store:  st,
		sim:    sim,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.GetLogger().WithError(err).Warn("Failed to close operation store")
	}
}

// newAdapter picks the client adapter. The live MTProto client is linked in
// separately; this build carries the simulator for rehearsal runs.
func newAdapter() (telegram.ClientAdapter, *telegram.Simulator, error) {
	if !dryRun {
		return nil, nil, errors.New("no live client adapter in this build; use --dry-run to rehearse")
	}
	sim := telegram.NewSimulator()
	return sim, sim, nil
}

// waitInterruptible blocks until every operation finishes or the process
// receives an interrupt, in which case operations are paused resumably.
func waitInterruptible(eng *engine.Engine) {
	done := make(chan struct{})
	go func() {
		eng.Wait()
		close(done)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-done:
	case <-sig:
		fmt.Fprintln(os.Stderr, "Interrupted, pausing operations...")
		eng.StopAll()
		eng.Wait()
	}
}
