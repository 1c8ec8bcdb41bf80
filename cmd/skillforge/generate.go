package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BillClerici/skill-forge-sub000/internal/campaign"
	"github.com/BillClerici/skill-forge-sub000/internal/engine"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		worldID    string
		premise    string
		numQuests  int
		objectives []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Start a campaign generation workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			wid, err := types.ParseID(worldID)
			if err != nil {
				return err
			}

			d, cleanup, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			wf := a.generationWorkflow(d)
			exec := engine.NewExecutor[campaign.Content](d.snapshots,
				engine.WithLogger[campaign.Content](a.logger),
				engine.WithBus[campaign.Content](d.bus))

			st, err := exec.Run(ctx, wf.Definition(), wf.NewState(campaign.GenerationRequest{
				WorldID:    wid,
				Premise:    premise,
				NumQuests:  numQuests,
				Objectives: objectives,
			}, a.cfg.Engine.MaxRetries))
			if err != nil {
				return err
			}

			printGenerationState(st)
			return nil
		},
	}

	cmd.Flags().StringVar(&worldID, "world", "", "world id (required)")
	cmd.Flags().StringVar(&premise, "premise", "", "campaign premise (required)")
	cmd.Flags().IntVar(&numQuests, "quests", 3, "number of quests")
	cmd.Flags().StringArrayVar(&objectives, "objective", nil, "top-level objective (repeatable, required)")
	_ = cmd.MarkFlagRequired("world")
	_ = cmd.MarkFlagRequired("premise")
	_ = cmd.MarkFlagRequired("objective")
	return cmd
}

func newResumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <instance-id>",
		Short: "Resume a parked or crashed generation workflow",
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

			wf := a.generationWorkflow(d)
			exec := engine.NewExecutor[campaign.Content](d.snapshots,
				engine.WithLogger[campaign.Content](a.logger),
				engine.WithBus[campaign.Content](d.bus))

			st, err := exec.Resume(ctx, wf.Definition(), instanceID)
			if err != nil {
				return err
			}
			printGenerationState(st)
			return nil
		},
	}
}

func newApproveCmd(a *app) *cobra.Command {
	return newDecisionCmd(a, "approve", "Approve the pending review and continue generation", true)
}

func newRejectCmd(a *app) *cobra.Command {
	return newDecisionCmd(a, "reject", "Reject the pending review and abandon the draft", false)
}

func newDecisionCmd(a *app, use, short string, approved bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <instance-id>",
		Short: short,
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

			wf := a.generationWorkflow(d)
			exec := engine.NewExecutor[campaign.Content](d.snapshots,
				engine.WithLogger[campaign.Content](a.logger),
				engine.WithBus[campaign.Content](d.bus))

			st, err := exec.Decide(ctx, wf.Definition(), instanceID, campaign.DecisionCoreReview, approved)
			if err != nil {
				return err
			}
			printGenerationState(st)
			return nil
		},
	}
}

func printGenerationState(st *engine.State[campaign.Content]) {
	headerColor.Printf("workflow %s\n", st.InstanceID)
	printStatusLine(st.Status, st.StatusMessage)

	if st.Content.Campaign != nil {
		fmt.Printf("  campaign: %s (%s)\n", st.Content.Campaign.Name, st.Content.Campaign.ID)
		fmt.Printf("  quests=%d places=%d scenes=%d knowledge=%d items=%d\n",
			len(st.Content.Quests), len(st.Content.Places), len(st.Content.Scenes),
			len(st.Content.Knowledge), len(st.Content.Items))
	}

	if st.Status == engine.StatusAwaitingDecision {
		warnColor.Printf("  awaiting decision, run: skillforge approve %s\n", st.InstanceID)
	}

	if report := st.Content.Report; report != nil {
		fmt.Printf("  validation: passed=%t errors=%d warnings=%d\n",
			report.Passed, len(report.Errors), len(report.Warnings))
		for _, f := range report.Errors {
			errColor.Printf("    critical: %s\n", f.Message)
		}
		for _, s := range report.Suggestions {
			fmt.Printf("    suggest: %s (priority %d)\n", s.Action, s.Priority)
		}
	}

	printProblems(st.Errors, st.Warnings)
}

func printStatusLine(status engine.Status, message string) {
	line := string(status)
	if message != "" {
		line += ": " + message
	}
	switch status {
	case engine.StatusCompleted:
		okColor.Println("  " + line)
	case engine.StatusFailed:
		errColor.Println("  " + line)
	default:
		warnColor.Println("  " + line)
	}
}

func printProblems(errors, warnings []string) {
	for _, w := range warnings {
		warnColor.Printf("  warning: %s\n", w)
	}
	for _, e := range errors {
		errColor.Printf("  error: %s\n", e)
	}
}
