package engine

import (
	"context"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Sentinel route keys. Routing functions return one of these to terminate
// the workflow instead of a node name.
const (
	// End terminates the instance with status completed.
	End = "__end__"

	// Fail terminates the instance with status failed.
	Fail = "__fail__"
)

// NodeFunc is one unit of work. Nodes mutate the state in place and return
// it; they record failures with State.AddError instead of returning errors,
// so that routing can decide between retry, fallback, and abort.
type NodeFunc[C any] func(ctx context.Context, st *State[C]) *State[C]

// RoutingFunc inspects the state after a node ran and names the next node,
// or returns End or Fail.
type RoutingFunc[C any] func(st *State[C]) string

// Definition is a complete workflow: a node table, a routing table, and an
// entry node. Definitions are immutable once built and shared across
// concurrently running instances.
type Definition[C any] struct {
	Name    string
	Entry   string
	Nodes   map[string]NodeFunc[C]
	Routing map[string]RoutingFunc[C]
}

// Validate checks the definition for structural defects before any
// instance runs on it: a known entry node and a routing entry for every
// node.
func (d *Definition[C]) Validate() error {
	if _, ok := d.Nodes[d.Entry]; !ok {
		return types.NewError(types.ENGINE_UNKNOWN_NODE, "entry node "+d.Entry+" is not defined")
	}
	for name := range d.Nodes {
		if _, ok := d.Routing[name]; !ok {
			return types.NewError(types.ENGINE_UNMAPPED_ROUTE, "node "+name+" has no routing function")
		}
	}
	return nil
}

// Always routes unconditionally to the named node.
func Always[C any](next string) RoutingFunc[C] {
	return func(*State[C]) string { return next }
}

// RetryOrAdvance routes to next on success. On failure it re-enters the
// same node until the retry ceiling, then returns Fail.
func RetryOrAdvance[C any](self, next string) RoutingFunc[C] {
	return func(st *State[C]) string {
		if !st.Failing() {
			return next
		}
		if st.RetryCount < st.MaxRetries {
			return self
		}
		return Fail
	}
}

// AdvanceOrFail routes to next on success and gives up immediately on
// failure. For nodes whose errors are never transient.
func AdvanceOrFail[C any](next string) RoutingFunc[C] {
	return func(st *State[C]) string {
		if st.Failing() {
			return Fail
		}
		return next
	}
}

// OnDecision branches on a named human decision flag. A pending flag
// re-enters the same node, which parks the instance again.
func OnDecision[C any](key, self, approved, rejected string) RoutingFunc[C] {
	return func(st *State[C]) string {
		switch st.Decision(key) {
		case DecisionApproved:
			return approved
		case DecisionRejected:
			return rejected
		default:
			return self
		}
	}
}
