package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BillClerici/skill-forge-sub000/internal/engine"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Status and rollback work on any workflow family, so they load snapshots
// with an opaque content payload instead of a typed one.

func newStatusCmd(a *app) *cobra.Command {
	var (
		showAudit bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "status <instance-id>",
		Short: "Show the state of a workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			instanceID, err := types.ParseID(args[0])
			if err != nil {
				return err
			}

			d, cleanup, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			exec := engine.NewExecutor[json.RawMessage](d.snapshots,
				engine.WithLogger[json.RawMessage](a.logger))
			st, err := exec.Load(ctx, instanceID)
			if err != nil {
				return err
			}

			if output != "text" {
				return renderState(st, output)
			}

			headerColor.Printf("%s workflow %s\n", st.Workflow, st.InstanceID)
			printStatusLine(st.Status, st.StatusMessage)
			fmt.Printf("  node: %s  phase: %s  retries: %d/%d\n",
				st.CurrentNode, st.Phase, st.RetryCount, st.MaxRetries)
			if !st.CampaignID.IsZero() {
				fmt.Printf("  campaign: %s\n", st.CampaignID)
			}
			if len(st.Checkpoints) > 0 {
				fmt.Print("  checkpoints:")
				for phase := range st.Checkpoints {
					fmt.Printf(" %s", phase)
				}
				fmt.Println()
			}

			printProblems(st.Errors, st.Warnings)

			if showAudit {
				for _, entry := range st.Audit {
					fmt.Printf("  %s  %-24s %-20s %s %s\n",
						entry.Timestamp.Format("15:04:05"),
						entry.Node, entry.Action, entry.Status, entry.Details)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showAudit, "audit", false, "show the full action log")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

// renderState dumps the full snapshot, audit log included, in a machine
// format. The JSON round-trip through a generic map keeps the yaml output
// free of raw byte blobs from the opaque content payload.
func renderState(st *engine.State[json.RawMessage], format string) error {
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	switch format {
	case "json":
		var buf map[string]any
		if err := json.Unmarshal(data, &buf); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(buf)
	case "yaml":
		var buf map[string]any
		if err := json.Unmarshal(data, &buf); err != nil {
			return err
		}
		return yaml.NewEncoder(os.Stdout).Encode(buf)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func newRollbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <instance-id> <phase>",
		Short: "Restore a workflow instance to a named checkpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			instanceID, err := types.ParseID(args[0])
			if err != nil {
				return err
			}
			phase := args[1]

			d, cleanup, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			exec := engine.NewExecutor[json.RawMessage](d.snapshots,
				engine.WithLogger[json.RawMessage](a.logger))
			st, err := exec.Rollback(ctx, instanceID, phase)
			if err != nil {
				return err
			}

			okColor.Printf("rolled back %s to checkpoint %q\n", instanceID, phase)
			fmt.Printf("  resume with: skillforge resume %s\n", st.InstanceID)
			return nil
		},
	}
}
