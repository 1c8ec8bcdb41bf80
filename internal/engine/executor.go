package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/BillClerici/skill-forge-sub000/internal/events"
	"github.com/BillClerici/skill-forge-sub000/internal/store/resume"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Executor drives workflow instances through a Definition. One executor is
// shared across instances; all per-instance state lives in State.
type Executor[C any] struct {
	bus       events.Bus
	snapshots resume.Store
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures an Executor.
type Option[C any] func(*Executor[C])

// WithLogger sets the structured logger.
func WithLogger[C any](logger *slog.Logger) Option[C] {
	return func(e *Executor[C]) { e.logger = logger }
}

// WithTracer enables span emission. Without it no spans are created.
func WithTracer[C any](tracer trace.Tracer) Option[C] {
	return func(e *Executor[C]) { e.tracer = tracer }
}

// WithBus sets the progress event bus.
func WithBus[C any](bus events.Bus) Option[C] {
	return func(e *Executor[C]) { e.bus = bus }
}

// NewExecutor builds an executor persisting snapshots to the given store.
func NewExecutor[C any](snapshots resume.Store, opts ...Option[C]) *Executor[C] {
	e := &Executor[C]{
		snapshots: snapshots,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the instance from its current node until a terminal state or
// a decision park. A parked or terminal state is returned with a nil error;
// the error return covers only engine-level defects (unknown node, broken
// definition, cancelled context), never node-level failures, which live in
// the state's error list.
func (e *Executor[C]) Run(ctx context.Context, def *Definition[C], st *State[C]) (*State[C], error) {
	if err := def.Validate(); err != nil {
		return st, err
	}
	if st.CurrentNode == "" {
		st.CurrentNode = def.Entry
	}
	st.Status = StatusRunning
	st.StatusMessage = ""

	ctx, span := e.startSpan(ctx, "workflow.run",
		attribute.String("workflow", def.Name),
		attribute.String("instance_id", st.InstanceID.String()))
	defer span.End()

	e.logger.Info("workflow running",
		"workflow", def.Name,
		"instance_id", st.InstanceID,
		"campaign_id", st.CampaignID,
		"entry_node", st.CurrentNode)

	for {
		select {
		case <-ctx.Done():
			st.AddError(ctx.Err())
			e.finish(ctx, st, StatusFailed, "cancelled at node "+st.CurrentNode)
			return st, ctx.Err()
		default:
		}

		node, ok := def.Nodes[st.CurrentNode]
		if !ok {
			err := types.NewError(types.ENGINE_UNKNOWN_NODE, "no node named "+st.CurrentNode)
			st.AddError(err)
			e.finish(ctx, st, StatusFailed, err.Message)
			return st, err
		}

		e.publish(ctx, events.EventNodeStarted, st, "")
		st.beginNode()
		e.execNode(ctx, node, st)
		st.UpdatedAt = time.Now().UTC()

		if st.Failing() {
			st.AddAudit(st.CurrentNode, "execute", AuditError, st.Errors[len(st.Errors)-1])
			e.publish(ctx, events.EventNodeFailed, st, st.Errors[len(st.Errors)-1])
		} else {
			st.AddAudit(st.CurrentNode, "execute", AuditSuccess, "")
			e.publish(ctx, events.EventNodeCompleted, st, "")
		}

		e.persist(ctx, st)

		if st.Status == StatusAwaitingDecision {
			e.publish(ctx, events.EventAwaitingDecision, st, st.StatusMessage)
			e.logger.Info("workflow awaiting decision",
				"instance_id", st.InstanceID, "node", st.CurrentNode)
			return st, nil
		}

		route, ok := def.Routing[st.CurrentNode]
		if !ok {
			err := types.NewError(types.ENGINE_UNMAPPED_ROUTE, "no route out of node "+st.CurrentNode)
			st.AddError(err)
			e.finish(ctx, st, StatusFailed, err.Message)
			return st, err
		}

		next := route(st)
		switch next {
		case End:
			e.finish(ctx, st, StatusCompleted, "")
			return st, nil
		case Fail:
			e.finish(ctx, st, StatusFailed, "failed at node "+st.CurrentNode)
			return st, nil
		case st.CurrentNode:
			st.RetryCount++
			e.publish(ctx, events.EventNodeRetrying, st,
				fmt.Sprintf("attempt %d of %d", st.RetryCount+1, st.MaxRetries+1))
			e.logger.Warn("retrying node",
				"instance_id", st.InstanceID,
				"node", st.CurrentNode,
				"retry", st.RetryCount,
				"max_retries", st.MaxRetries)
		default:
			if _, ok := def.Nodes[next]; !ok {
				err := types.NewError(types.ENGINE_UNMAPPED_ROUTE,
					"route from "+st.CurrentNode+" names unknown node "+next)
				st.AddError(err)
				e.finish(ctx, st, StatusFailed, err.Message)
				return st, err
			}
			st.CurrentNode = next
			st.RetryCount = 0
		}
	}
}

// Resume reloads a parked or crashed instance from the snapshot store and
// continues it. Re-entering the node that parked is safe: decision nodes
// re-check their flag and park again if it is still pending.
func (e *Executor[C]) Resume(ctx context.Context, def *Definition[C], instanceID types.ID) (*State[C], error) {
	st, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if st.Status.Terminal() {
		return st, types.NewError(types.ENGINE_RESUME_FAILED,
			"instance "+instanceID.String()+" already reached status "+string(st.Status))
	}

	e.publish(ctx, events.EventWorkflowResumed, st, "")
	e.logger.Info("workflow resumed", "instance_id", instanceID, "node", st.CurrentNode)
	return e.Run(ctx, def, st)
}

// Decide records a human decision on a parked instance and continues it.
func (e *Executor[C]) Decide(ctx context.Context, def *Definition[C], instanceID types.ID, key string, approved bool) (*State[C], error) {
	st, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusAwaitingDecision {
		return st, types.NewError(types.ENGINE_RESUME_FAILED,
			"instance "+instanceID.String()+" is not awaiting a decision")
	}

	st.SetDecision(key, approved)
	st.AddAudit(st.CurrentNode, "decision", AuditSuccess,
		fmt.Sprintf("%s approved=%t", key, approved))
	e.persist(ctx, st)

	e.publish(ctx, events.EventWorkflowResumed, st, "decision "+key)
	return e.Run(ctx, def, st)
}

// Rollback restores a persisted instance to a named checkpoint. The
// instance is left parked at its current node with a clean error slate;
// Resume continues it.
func (e *Executor[C]) Rollback(ctx context.Context, instanceID types.ID, phase string) (*State[C], error) {
	st, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if err := st.RollbackToCheckpoint(phase); err != nil {
		return st, err
	}
	if st.Status == StatusFailed {
		st.Status = StatusPending
		st.StatusMessage = "rolled back to checkpoint " + phase
	}
	e.persist(ctx, st)

	e.logger.Info("rolled back workflow",
		"instance_id", instanceID, "phase", phase, "node", st.CurrentNode)
	return st, nil
}

// Load returns the persisted state of an instance without running it.
func (e *Executor[C]) Load(ctx context.Context, instanceID types.ID) (*State[C], error) {
	return e.load(ctx, instanceID)
}

// execNode runs one node, converting a panic into a recorded error so a
// misbehaving node cannot take down sibling instances.
func (e *Executor[C]) execNode(ctx context.Context, node NodeFunc[C], st *State[C]) {
	defer func() {
		if r := recover(); r != nil {
			err := types.NewError(types.ENGINE_NODE_PANIC,
				fmt.Sprintf("node %s panicked: %v", st.CurrentNode, r))
			st.AddError(err)
			e.logger.Error("node panic recovered",
				"instance_id", st.InstanceID, "node", st.CurrentNode, "panic", r)
		}
	}()

	ctx, span := e.startSpan(ctx, "workflow.node",
		attribute.String("node", st.CurrentNode))
	defer span.End()

	node(ctx, st)
}

func (e *Executor[C]) finish(ctx context.Context, st *State[C], status Status, message string) {
	now := time.Now().UTC()
	st.Status = status
	st.StatusMessage = message
	st.UpdatedAt = now
	st.CompletedAt = &now

	e.persist(ctx, st)

	if status == StatusCompleted {
		e.publish(ctx, events.EventWorkflowDone, st, "")
		e.logger.Info("workflow completed",
			"instance_id", st.InstanceID, "campaign_id", st.CampaignID)
	} else {
		e.publish(ctx, events.EventWorkflowFailed, st, message)
		e.logger.Error("workflow failed",
			"instance_id", st.InstanceID,
			"campaign_id", st.CampaignID,
			"node", st.CurrentNode,
			"errors", len(st.Errors))
	}
}

// persist writes the state snapshot. A snapshot failure never interrupts
// the workflow; losing resumability is better than losing the run.
func (e *Executor[C]) persist(ctx context.Context, st *State[C]) {
	data, err := st.Marshal()
	if err == nil {
		err = e.snapshots.Save(ctx, st.InstanceID, data)
	}
	if err != nil {
		e.logger.Warn("failed to persist workflow snapshot",
			"instance_id", st.InstanceID, "error", err)
	}
}

func (e *Executor[C]) load(ctx context.Context, instanceID types.ID) (*State[C], error) {
	data, err := e.snapshots.Load(ctx, instanceID)
	if err != nil {
		return nil, types.WrapError(types.ENGINE_RESUME_FAILED,
			"no snapshot for instance "+instanceID.String(), err)
	}
	return UnmarshalState[C](data)
}

func (e *Executor[C]) publish(ctx context.Context, eventType events.EventType, st *State[C], message string) {
	if e.bus == nil {
		return
	}
	err := e.bus.Publish(ctx, events.Event{
		Type:       eventType,
		InstanceID: st.InstanceID,
		CampaignID: st.CampaignID,
		Phase:      st.Phase,
		Node:       st.CurrentNode,
		Message:    message,
	})
	if err != nil {
		e.logger.Debug("event publish skipped", "type", eventType, "error", err)
	}
}

func (e *Executor[C]) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
