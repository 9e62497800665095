package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPriceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Print the ETH/USD price the cost guard would use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(g.st)
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Fprintf(os.Stdout, "ETH/USD %.2f\n", a.feed.USD(cmd.Context()))
			return nil
		},
	}
}
