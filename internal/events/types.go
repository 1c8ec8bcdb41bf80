// Package events provides the fire-and-forget progress event bus used by
// workflow instances. Consumers (UIs, log shippers) are out of scope; the
// bus guarantees only that a slow consumer never blocks a workflow.
package events

import (
	"time"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// EventType identifies the kind of progress event.
type EventType string

// Workflow lifecycle events, published by the graph executor.
const (
	EventNodeStarted      EventType = "workflow.node.started"
	EventNodeCompleted    EventType = "workflow.node.completed"
	EventNodeFailed       EventType = "workflow.node.failed"
	EventNodeRetrying     EventType = "workflow.node.retrying"
	EventAwaitingDecision EventType = "workflow.awaiting_decision"
	EventWorkflowResumed  EventType = "workflow.resumed"
	EventWorkflowDone     EventType = "workflow.completed"
	EventWorkflowFailed   EventType = "workflow.failed"
)

// Deletion coordinator events.
const (
	EventDeletionPhase    EventType = "deletion.phase.completed"
	EventDeletionRetained EventType = "deletion.entity.retained"
	EventDeletionDone     EventType = "deletion.completed"
)

// Event is a single progress event keyed by workflow-instance id.
type Event struct {
	Type       EventType      `json:"type"`
	InstanceID types.ID       `json:"instance_id"`
	CampaignID types.ID       `json:"campaign_id,omitempty"`
	Phase      string         `json:"phase,omitempty"`
	Node       string         `json:"node,omitempty"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Filter selects which events a subscriber receives. Zero-value fields match
// everything.
type Filter struct {
	// Types restricts delivery to the listed event types.
	Types []EventType

	// InstanceID restricts delivery to one workflow instance.
	InstanceID types.ID
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(e Event) bool {
	if !f.InstanceID.IsZero() && f.InstanceID != e.InstanceID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == e.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
