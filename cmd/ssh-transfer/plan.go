package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tastythames/ssh-transfer/internal/inventory"
	"github.com/tastythames/ssh-transfer/internal/scheduler"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show every job, its trigger and its next firings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		inv, err := loadInventory(inventoryPath)
		if err != nil {
			return err
		}
		loc, err := inv.Location()
		if err != nil {
			return err
		}
		return renderPlan(cmd.OutOrStdout(), inv, time.Now().In(loc))
	},
}

func renderPlan(w io.Writer, inv *inventory.Inventory, now time.Time) error {
	jobs, cleanups, err := inv.Jobs()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Job", "Host", "Trigger", "Work", "Next"})
	for _, j := range jobs {
		kinds := make([]string, 0, len(j.Transfers))
		for _, d := range j.Transfers {
			kinds = append(kinds, d.Kind.String())
		}
		t.AppendRow(table.Row{j.Name, j.Target.Host, j.Trigger.String(), strings.Join(kinds, ", "), nextFirings(j.Trigger, now)})
	}
	for _, j := range cleanups {
		t.AppendRow(table.Row{j.Name, j.Target.Host, j.Trigger.String(), fmt.Sprintf("cleanup x%d", len(j.Targets)), nextFirings(j.Trigger, now)})
	}
	t.Render()
	return nil
}

func nextFirings(tr scheduler.Trigger, now time.Time) string {
	const n = 3
	out := make([]string, 0, n)
	at := now
	for i := 0; i < n; i++ {
		at = tr.Next(at)
		out = append(out, at.Format("Jan 02 15:04"))
	}
	return strings.Join(out, ", ")
}
