// Command skillforge drives campaign content workflows: generation with
// human review gates, resumption of parked instances, and dependency-aware
// deletion.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BillClerici/skill-forge-sub000/internal/campaign"
	"github.com/BillClerici/skill-forge-sub000/internal/config"
	"github.com/BillClerici/skill-forge-sub000/internal/deletion"
	"github.com/BillClerici/skill-forge-sub000/internal/events"
	"github.com/BillClerici/skill-forge-sub000/internal/generator"
	"github.com/BillClerici/skill-forge-sub000/internal/store/document"
	"github.com/BillClerici/skill-forge-sub000/internal/store/graph"
	"github.com/BillClerici/skill-forge-sub000/internal/store/relational"
	"github.com/BillClerici/skill-forge-sub000/internal/store/resume"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries configuration and lazily connected stores shared by the
// subcommands.
type app struct {
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "skillforge",
		Short:         "Campaign content orchestration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newGenerateCmd(a),
		newResumeCmd(a),
		newApproveCmd(a),
		newRejectCmd(a),
		newDeleteCmd(a),
		newStatusCmd(a),
		newRollbackCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	return nil
}

// deps holds every connected collaborator. Connections the current command
// does not use are still cheap to open compared to a workflow run.
type deps struct {
	repo      *document.Repository
	graphSync *graph.Synchronizer
	rel       *relational.DB
	snapshots *resume.RedisStore
	bus       *events.InProcBus
	gen       *generator.LLM
}

// connect opens the full store set. The graph and relational stores are
// best-effort: a connection failure logs a warning and leaves them nil, and
// workflows degrade accordingly.
func (a *app) connect(ctx context.Context) (*deps, func(), error) {
	d := &deps{bus: events.NewBus(events.WithLogger(a.logger))}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	docs, err := document.Connect(ctx, a.cfg.Document, document.WithLogger(a.logger))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = docs.Close(context.Background()) })
	d.repo = document.NewRepository(docs)

	graphClient := graph.NewNeo4jClient(a.cfg.Graph)
	if err := graphClient.Connect(ctx); err != nil {
		a.logger.Warn("graph store unavailable, continuing without it", "error", err)
	} else {
		closers = append(closers, func() { _ = graphClient.Close(context.Background()) })
		d.graphSync = graph.NewSynchronizer(graphClient, a.logger)
	}

	rel, err := relational.Open(a.cfg.Relational, a.logger)
	if err != nil {
		a.logger.Warn("relational store unavailable, continuing without it", "error", err)
	} else {
		closers = append(closers, func() { _ = rel.Close() })
		if err := rel.Migrate(ctx); err != nil {
			a.logger.Warn("relational migration failed", "error", err)
		}
		d.rel = rel
	}

	snapshots, err := resume.NewRedisStore(ctx, a.cfg.Resume)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = snapshots.Close() })
	d.snapshots = snapshots

	gen, err := generator.NewLLM(a.cfg.Generator, generator.WithLogger(a.logger))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	d.gen = gen

	closers = append(closers, func() { _ = d.bus.Close() })
	return d, cleanup, nil
}

// generationWorkflow assembles the generation workflow from connected deps.
func (a *app) generationWorkflow(d *deps) *campaign.GenerationWorkflow {
	var sync *campaign.GraphSync
	if d.graphSync != nil {
		sync = campaign.NewGraphSync(d.graphSync, a.logger)
	}
	return campaign.NewGenerationWorkflow(d.repo, d.gen, sync, a.logger)
}

// deletionCoordinator assembles the deletion workflow from connected deps.
func (a *app) deletionCoordinator(d *deps) *deletion.Coordinator {
	var graphs deletion.GraphStore
	if d.graphSync != nil {
		graphs = d.graphSync
	}
	var rel deletion.RelationalStore
	if d.rel != nil {
		rel = d.rel
	}
	return deletion.NewCoordinator(d.repo, graphs, rel, d.bus, a.logger)
}
