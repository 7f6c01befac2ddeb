// Package status implements the status command: a formatted summary of the
// local ledger.
package status

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/campuscnr/cmd/common"
)

// Command returns the status command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger record counts and the notice high-water mark",
		RunE:  runStatus,
	}
}

// runStatus renders the ledger summary table.
func runStatus(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx := cmd.Context()

	counts, err := deps.Store.Counts(ctx)
	if err != nil {
		return err
	}

	highWater, err := deps.Store.MaxNoticeID(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Table", "Records"})
	for _, c := range counts {
		t.AppendRow(table.Row{c.Table, c.Count})
	}
	t.AppendFooter(table.Row{"last notice id", highWater})

	t.Render()
	return nil
}
