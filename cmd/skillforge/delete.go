package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BillClerici/skill-forge-sub000/internal/deletion"
	"github.com/BillClerici/skill-forge-sub000/internal/engine"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <campaign-id>",
		Short: "Delete a campaign and everything it owns across all stores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			campaignID, err := types.ParseID(args[0])
			if err != nil {
				return err
			}

			if !yes && !confirm(fmt.Sprintf("delete campaign %s and all of its content?", campaignID)) {
				fmt.Println("aborted")
				return nil
			}

			d, cleanup, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			coord := a.deletionCoordinator(d)
			exec := engine.NewExecutor[deletion.Manifest](d.snapshots,
				engine.WithLogger[deletion.Manifest](a.logger),
				engine.WithBus[deletion.Manifest](d.bus))

			st, err := exec.Run(ctx, coord.Definition(), coord.NewState(campaignID, a.cfg.Engine.MaxRetries))
			if err != nil {
				return err
			}

			printDeletionState(st)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func printDeletionState(st *engine.State[deletion.Manifest]) {
	headerColor.Printf("deletion %s\n", st.InstanceID)
	printStatusLine(st.Status, st.StatusMessage)

	m := st.Content
	for category, n := range m.Deleted {
		fmt.Printf("  deleted %s: %d\n", category, n)
	}
	for category, reasons := range m.Retained {
		for _, reason := range reasons {
			warnColor.Printf("  retained %s: %s\n", category, reason)
		}
	}
	if !m.AuditID.IsZero() {
		fmt.Printf("  audit: %s\n", m.AuditID)
	}

	printProblems(st.Errors, st.Warnings)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
