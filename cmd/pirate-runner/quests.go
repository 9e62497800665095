package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ligun0805/pirate-runner/internal/quest"
)

func newQuestsCmd(g *globals) *cobra.Command {
	var (
		commands string
		list     bool
	)
	cmd := &cobra.Command{
		Use:   "quests",
		Short: "Play quests with every pirate while energy lasts",
		Long: `Run quest commands for every pirate of each wallet. A command is
name:times:energy; a following times:energy segment reuses the name.
A quest is started at most times times and only while the pirate's energy is
at or above the threshold.

Examples:
  pirate-runner quests --commands "Chop Wood:3:10"
  pirate-runner quests --commands "Mine Iron:5:20,2:10,Load Cargo:1:0"
  pirate-runner quests --list`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				return listQuests(g)
			}
			return runQuests(cmd.Context(), g, commands)
		},
	}
	cmd.Flags().StringVar(&commands, "commands", "", "quest commands, e.g. \"Chop Wood:3:10\"")
	cmd.Flags().BoolVar(&list, "list", false, "print the quest menu and exit")
	return cmd
}

func listQuests(g *globals) error {
	nft, err := parseAddress("pirate_nft", g.st.PirateNFT)
	if err != nil {
		return err
	}
	a, err := newApp(g.st)
	if err != nil {
		return err
	}
	defer a.close()
	cat := a.policies.QuestCatalog(nft)
	for _, name := range cat.Names() {
		q, _ := cat.Lookup(name)
		fmt.Fprintf(os.Stdout, "%4d  %s\n", q.ID, q.Name)
	}
	return nil
}

func runQuests(ctx context.Context, g *globals, commands string) error {
	cmds, err := quest.ParseCommands(commands)
	if err != nil {
		return err
	}
	if len(cmds) == 0 {
		return errors.New("--commands is empty")
	}
	questAddr, err := parseAddress("quest_contract", g.st.QuestContract)
	if err != nil {
		return err
	}
	energyAddr, err := parseAddress("energy_contract", g.st.EnergyContract)
	if err != nil {
		return err
	}
	nft, err := parseAddress("pirate_nft", g.st.PirateNFT)
	if err != nil {
		return err
	}

	a, err := newApp(g.st)
	if err != nil {
		return err
	}
	defer a.close()

	cat := a.policies.QuestCatalog(nft)
	for _, c := range cmds {
		if _, ok := cat.Lookup(c.Name); !ok {
			a.lggr.Warnw("quest not in the menu, it will be skipped", "quest", c.Name)
		}
	}

	accts, err := a.loadAccounts(g.wallets)
	if err != nil {
		return err
	}
	cs, err := a.dial(ctx)
	if err != nil {
		return err
	}

	runner := quest.NewRunner(quest.RunnerConfig{
		Contract: quest.NewContract(questAddr, energyAddr, cs.client),
		Pirates:  cs.indexer,
		Executor: cs.executor,
		Catalog:  cat,
		Policy:   a.policies.For(quest.ActionStart),
		Spacing:  a.st.SubmitSpacing,
	}, cmds, a.lggr)
	return a.runBatch(ctx, accts, runner.Run)
}
