package main

import (
	"context"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ligun0805/pirate-runner/internal/bounty"
)

type bountyFlags struct {
	start    bool
	end      bool
	skipMax  bool
	fallback string
	every    time.Duration
	rounds   int
}

func newBountiesCmd(g *globals) *cobra.Command {
	var f bountyFlags
	cmd := &cobra.Command{
		Use:   "bounties",
		Short: "End finished bounties and start new ones",
		Long: `End every active bounty of each wallet, then start bounties for its pirates
as planned by the bounty group mappings and the per-pirate assignments.

With neither --start nor --end both steps run. Pirates without an
assignment try the --fallback groups in order.

Examples:
  pirate-runner bounties
  pirate-runner bounties --start --skip-level-30 --fallback "Ore Galore,231"
  pirate-runner bounties --every 4h --rounds 6`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !f.start && !f.end {
				f.start, f.end = true, true
			}
			return runBounties(cmd.Context(), g, f)
		},
	}
	cmd.Flags().BoolVar(&f.start, "start", false, "start bounties")
	cmd.Flags().BoolVar(&f.end, "end", false, "end active bounties")
	cmd.Flags().BoolVar(&f.skipMax, "skip-level-30", false, "keep level 30 pirates off bounties")
	cmd.Flags().StringVar(&f.fallback, "fallback", "", "fallback bounty groups, by name or group id, in order")
	cmd.Flags().DurationVar(&f.every, "every", 0, "repeat the round at this interval (0 runs once)")
	cmd.Flags().IntVar(&f.rounds, "rounds", 0, "stop after this many rounds when repeating (0 is unlimited)")
	return cmd
}

func runBounties(ctx context.Context, g *globals, f bountyFlags) error {
	if g.st.BountyContract == "" {
		return errors.New("bounty_contract is not set")
	}
	bountyAddr, err := parseAddress("bounty_contract", g.st.BountyContract)
	if err != nil {
		return err
	}
	genesis, err := parseAddress("pirate_nft", g.st.PirateNFT)
	if err != nil {
		return err
	}

	a, err := newApp(g.st)
	if err != nil {
		return err
	}
	defer a.close()

	accts, err := a.loadAccounts(g.wallets)
	if err != nil {
		return err
	}
	cs, err := a.dial(ctx)
	if err != nil {
		return err
	}
	contract := bounty.NewContract(bountyAddr, cs.client)

	var failed bool
	for round := 1; ; round++ {
		lggr := a.lggr.With("round", round)
		// Mappings and assignments are re-read every round so edits between
		// rounds take effect.
		mappings, err := bounty.LoadMappings(a.st.BountyGroupsCSV)
		if err != nil {
			return err
		}
		assignments, err := loadAssignments(a.st.PirateBountiesCSV)
		if err != nil {
			return err
		}
		if assignments == nil {
			lggr.Warnw("no pirate assignments file, every pirate falls back", "file", a.st.PirateBountiesCSV)
		}
		fallback, err := resolveFallback(mappings, f.fallback)
		if err != nil {
			return err
		}
		ents, err := cs.indexer.Bounties(ctx)
		if err != nil {
			return errors.Wrap(err, "load bounties")
		}
		catalog := bounty.NewCatalog(ents)
		lggr.Infow("bounty round", "accounts", len(accts), "bounties", catalog.Len(), "start", f.start, "end", f.end)

		runner := bounty.NewRunner(bounty.RunnerConfig{
			Contract:    contract,
			Pirates:     cs.indexer,
			Executor:    cs.executor,
			Catalog:     catalog,
			Mappings:    mappings,
			Assignments: assignments,
			GenesisNFT:  genesis,
			StartPolicy: a.policies.For(bounty.ActionStart),
			EndPolicy:   a.policies.For(bounty.ActionEnd),
			Spacing:     a.st.SubmitSpacing,
		}, bounty.Options{End: f.end, Start: f.start, SkipMaxLevel: f.skipMax, Fallback: fallback}, lggr)

		if err := a.runBatch(ctx, accts, runner.Run); err != nil {
			if !errors.Is(err, errAccountsFailed) {
				return err
			}
			failed = true
		}

		if f.every <= 0 || (f.rounds > 0 && round >= f.rounds) {
			break
		}
		lggr.Infow("waiting for next round", "in", f.every)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.every):
		}
	}
	if failed {
		return errAccountsFailed
	}
	return nil
}

// loadAssignments returns nil when the file does not exist.
func loadAssignments(path string) (*bounty.Assignments, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return bounty.LoadAssignments(path)
}

// resolveFallback maps a comma list of bounty names or decimal group ids to
// mappings, keeping the given order and dropping repeats.
func resolveFallback(m *bounty.Mappings, list string) ([]bounty.Mapping, error) {
	var (
		out  []bounty.Mapping
		seen = map[string]bool{}
	)
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		mp, ok := m.ByName(item)
		if !ok {
			if id, isNum := new(big.Int).SetString(item, 10); isNum {
				mp, ok = m.ByGroup(id)
			}
		}
		if !ok {
			return nil, errors.Errorf("fallback %q is not in the bounty group mappings", item)
		}
		if key := mp.GroupID.String(); !seen[key] {
			seen[key] = true
			out = append(out, mp)
		}
	}
	return out, nil
}
