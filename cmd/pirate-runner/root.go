package main

import (
	"github.com/spf13/cobra"

	"github.com/ligun0805/pirate-runner/internal/config"
)

// globals are the flags every subcommand shares. Flags default to the
// environment settings and override them.
type globals struct {
	st      config.Settings
	wallets string
}

func newRootCmd(st config.Settings) *cobra.Command {
	g := &globals{st: st}
	cmd := &cobra.Command{
		Use:   "pirate-runner",
		Short: "Run Pirate Nation bounties and quests for a list of wallets",
		Long: `pirate-runner submits game transactions for every wallet in the accounts
CSV, a few wallets at a time, and prints a summary of what landed.

Settings come from the environment (.env, then .env.local); flags override them.
Per-action gas budgets and retries are read from the policies TOML file.

Examples:
  # Claim finished bounties and start new ones for wallets 1 to 10
  pirate-runner bounties --wallets 1-10

  # Only claim, using 8 workers
  pirate-runner bounties --end --workers 8

  # Chop wood three times while energy stays above 10
  pirate-runner quests --commands "Chop Wood:3:10"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.IntVar(&g.st.Workers, "workers", g.st.Workers, "wallets processed in parallel")
	pf.StringVar(&g.st.AddressesCSV, "accounts", g.st.AddressesCSV, "accounts CSV (wallet,address,key)")
	pf.StringVar(&g.wallets, "wallets", "", "wallet ranges to run, e.g. 1-10,15,88-92 (default all)")
	pf.StringVar(&g.st.PoliciesFile, "policies", g.st.PoliciesFile, "action policies TOML file")
	pf.StringVar(&g.st.MetricsAddr, "metrics-addr", g.st.MetricsAddr, "serve Prometheus metrics on this address")
	pf.StringVar(&g.st.LogLevel, "log-level", g.st.LogLevel, "debug, info, warn or error")
	pf.BoolVar(&g.st.LogJSON, "log-json", g.st.LogJSON, "log JSON lines instead of console output")

	cmd.AddCommand(
		newBountiesCmd(g),
		newQuestsCmd(g),
		newPriceCmd(g),
		newNetcheckCmd(g),
	)
	return cmd
}
