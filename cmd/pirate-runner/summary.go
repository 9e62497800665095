package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ligun0805/pirate-runner/internal/orchestrator"
	"github.com/ligun0805/pirate-runner/internal/txsubmit"
)

func paint(colored bool, attrs ...color.Attribute) func(a ...interface{}) string {
	c := color.New(attrs...)
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintFunc()
}

// printSummary writes per-action counts, the addresses behind every
// non-success, the notes and the failed accounts.
func printSummary(w io.Writer, sum *orchestrator.Summary, colored bool) {
	var (
		bold   = paint(colored, color.Bold)
		green  = paint(colored, color.FgGreen)
		red    = paint(colored, color.FgRed)
		yellow = paint(colored, color.FgYellow)
	)
	kindColor := map[txsubmit.Kind]func(a ...interface{}) string{
		txsubmit.Success: green,
		txsubmit.Failed:  red,
		txsubmit.Pending: yellow,
		txsubmit.Aborted: red,
	}

	failed := sum.FailedAccounts()
	fmt.Fprintf(w, "\n%s %d accounts, %d failed\n", bold("Summary:"), sum.Accounts(), len(failed))

	actions := sum.Actions()
	if len(actions) == 0 {
		fmt.Fprintln(w, "  no transactions")
	}
	for _, action := range actions {
		c := sum.Counts(action)
		fmt.Fprintf(w, "  %-14s %s %s %s %s\n", action,
			green(fmt.Sprintf("succeeded %d", c.Succeeded)),
			red(fmt.Sprintf("failed %d", c.Failed)),
			yellow(fmt.Sprintf("pending %d", c.Pending)),
			red(fmt.Sprintf("aborted %d", c.Aborted)))
		for _, k := range txsubmit.Kinds {
			if k == txsubmit.Success {
				continue
			}
			for _, addr := range sum.Addresses(action, k) {
				fmt.Fprintf(w, "    %s %s\n", kindColor[k](k.String()+":"), addr.Hex())
			}
		}
	}

	if topics := sum.Topics(); len(topics) > 0 {
		fmt.Fprintln(w, bold("Notes:"))
		for _, t := range topics {
			addrs := sum.Noted(t)
			fmt.Fprintf(w, "  %s (%d)\n", yellow(t), len(addrs))
			for _, addr := range addrs {
				fmt.Fprintf(w, "    %s\n", addr.Hex())
			}
		}
	}

	if len(failed) > 0 {
		fmt.Fprintln(w, red("Failed accounts:"))
		for _, addr := range failed {
			fmt.Fprintf(w, "  %s\n", addr.Hex())
		}
	}
}
