package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/spf13/cobra"

	"github.com/ligun0805/pirate-runner/internal/chain"
	"github.com/ligun0805/pirate-runner/internal/config"
	"github.com/ligun0805/pirate-runner/internal/costguard"
	"github.com/ligun0805/pirate-runner/internal/fees"
)

func newNetcheckCmd(g *globals) *cobra.Command {
	var probeGas uint64
	cmd := &cobra.Command{
		Use:   "netcheck",
		Short: "Print network fees and the worst-case cost of each action",
		Long: `Print the head block base fee and, for every action policy, the most a
single transaction could cost at current fees next to its USD ceiling.
Actions without a pinned gas limit are priced at --gas.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(g.st)
			if err != nil {
				return err
			}
			defer a.close()
			cs, err := a.dial(ctx)
			if err != nil {
				return err
			}

			if baseFee, head, err := chain.LatestBaseFee(ctx, cs.client); err != nil {
				fmt.Fprintf(os.Stdout, "[net] base fee: n/a (%v)\n", err)
			} else {
				fmt.Fprintf(os.Stdout, "[net] block %s base fee %s gwei\n", head, chain.FormatGwei(baseFee))
			}
			price := a.feed.USD(ctx)
			fmt.Fprintf(os.Stdout, "[net] ETH/USD %.2f\n", price)

			names := make([]string, 0, len(a.policies.Actions))
			for name := range a.policies.Actions {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				p := a.policies.Actions[name]
				gas := p.GasLimit
				if gas == 0 {
					gas = probeGas
				}
				plan, err := cs.fees.Estimate(ctx, ethereum.CallMsg{}, gas, p.FeeMode)
				if err != nil {
					fmt.Fprintf(os.Stdout, "  %-14s fee estimate failed: %v\n", name, err)
					continue
				}
				printActionCost(os.Stdout, name, p, plan, price)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&probeGas, "gas", 300000, "gas used to price actions that estimate their limit")
	return cmd
}

func printActionCost(w io.Writer, action string, p config.Policy, plan fees.Plan, ethUSD float64) {
	cost := plan.MaxCostWei()
	usd := costguard.WeiToUSD(cost, ethUSD)
	verdict := "ok"
	if p.MaxUSD > 0 && usd > p.MaxUSD {
		verdict = "over ceiling"
	}
	fmt.Fprintf(w, "  %-14s %s: max %s ETH = $%.4f, ceiling $%.4f, %s\n",
		action, plan.String(), chain.FormatETH(cost), usd, p.MaxUSD, verdict)
}
