package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tastythames/ssh-transfer/internal/inventory"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the inventory without connecting anywhere",
	RunE: func(cmd *cobra.Command, _ []string) error {
		inv, err := inventory.Load(inventoryPath)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, w := range inv.Warnings() {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		errs := inv.Validate()
		for _, e := range errs {
			fmt.Fprintf(out, "error: %v\n", e)
		}
		if len(errs) > 0 {
			return fmt.Errorf("%d problem(s) in %s", len(errs), inventoryPath)
		}
		fmt.Fprintf(out, "%s: ok, %d server(s)\n", inventoryPath, len(inv.Servers))
		return nil
	},
}
