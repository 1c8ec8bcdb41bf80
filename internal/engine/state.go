// Package engine implements the generic workflow graph executor: named
// nodes over a mutable state record, pure routing functions selecting the
// next node, bounded retries, write-once checkpoints, parked
// human-decision suspension, and per-node crash-recovery snapshots.
//
// One run of the executor is one workflow instance. Exactly one node of an
// instance executes at a time; arbitrarily many instances run concurrently
// with no shared mutable state besides the stores.
package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Status is the lifecycle state of a workflow instance.
type Status string

const (
	StatusPending          Status = "pending"
	StatusRunning          Status = "running"
	StatusAwaitingDecision Status = "awaiting_decision"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DecisionState tracks one human decision flag.
type DecisionState string

const (
	DecisionPending  DecisionState = "pending"
	DecisionApproved DecisionState = "approved"
	DecisionRejected DecisionState = "rejected"
)

// AuditStatus grades one audit entry.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditError   AuditStatus = "error"
	AuditWarning AuditStatus = "warning"
)

// AuditEntry is one append-only action log record.
type AuditEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Node      string      `json:"node"`
	Action    string      `json:"action"`
	Status    AuditStatus `json:"status"`
	Details   string      `json:"details,omitempty"`
}

// Checkpoint is an immutable, deep-copied snapshot of the content payload
// at a named phase boundary. Never mutated after creation.
type Checkpoint[C any] struct {
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	Content   C         `json:"content"`
}

// State is the mutable record threaded through every node of a workflow
// instance. All fields are explicit: a missing key is a compile error, not
// a runtime surprise.
type State[C any] struct {
	InstanceID types.ID `json:"instance_id"`
	CampaignID types.ID `json:"campaign_id"`

	// Workflow names the node/routing table family this instance runs,
	// e.g. "generation" or "deletion".
	Workflow string `json:"workflow"`

	CurrentNode   string `json:"current_node"`
	Phase         string `json:"phase,omitempty"`
	Status        Status `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`

	Errors     []string `json:"errors,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	RetryCount int      `json:"retry_count"`
	MaxRetries int      `json:"max_retries"`

	Checkpoints map[string]Checkpoint[C] `json:"checkpoints,omitempty"`
	Audit       []AuditEntry             `json:"audit,omitempty"`
	Decisions   map[string]DecisionState `json:"decisions,omitempty"`

	// Content accumulates everything the workflow produces.
	Content C `json:"content"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// errMark is the error count observed before the current node ran;
	// Failing compares against it. Rebuilt each execution, not persisted.
	errMark int
}

// NewState initializes a workflow instance state with a fresh instance id.
func NewState[C any](workflow string, campaignID types.ID, content C, maxRetries int) *State[C] {
	return &State[C]{
		InstanceID:  types.NewID(),
		CampaignID:  campaignID,
		Workflow:    workflow,
		Status:      StatusPending,
		MaxRetries:  maxRetries,
		Checkpoints: make(map[string]Checkpoint[C]),
		Decisions:   make(map[string]DecisionState),
		Content:     content,
		StartedAt:   time.Now().UTC(),
	}
}

// AddError appends an error message. Nodes catch everything and record it
// here; nothing ever escapes to the executor as a panic or return value.
func (s *State[C]) AddError(err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, err.Error())
}

// AddWarning appends a non-blocking warning message.
func (s *State[C]) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// beginNode marks the error-list high water before a node executes.
func (s *State[C]) beginNode() {
	s.errMark = len(s.Errors)
}

// Failing reports whether the most recent node execution appended errors.
// Routing functions branch on this plus the retry counter.
func (s *State[C]) Failing() bool {
	return len(s.Errors) > s.errMark
}

// AwaitDecision parks the instance on a named decision flag. The node that
// calls this is re-entered on resume and checks Decision to proceed.
func (s *State[C]) AwaitDecision(key, message string) {
	if s.Decisions == nil {
		s.Decisions = make(map[string]DecisionState)
	}
	if _, ok := s.Decisions[key]; !ok {
		s.Decisions[key] = DecisionPending
	}
	s.Status = StatusAwaitingDecision
	s.StatusMessage = message
}

// Decision returns the state of a named decision flag, defaulting pending.
func (s *State[C]) Decision(key string) DecisionState {
	if s.Decisions == nil {
		return DecisionPending
	}
	if d, ok := s.Decisions[key]; ok {
		return d
	}
	return DecisionPending
}

// SetDecision flips a decision flag. Called from the external resume entry
// point, never from inside a node.
func (s *State[C]) SetDecision(key string, approved bool) {
	if s.Decisions == nil {
		s.Decisions = make(map[string]DecisionState)
	}
	if approved {
		s.Decisions[key] = DecisionApproved
	} else {
		s.Decisions[key] = DecisionRejected
	}
}

// AddAudit appends one action log entry.
func (s *State[C]) AddAudit(node, action string, status AuditStatus, details string) {
	s.Audit = append(s.Audit, AuditEntry{
		Timestamp: time.Now().UTC(),
		Node:      node,
		Action:    action,
		Status:    status,
		Details:   details,
	})
}

// CreateCheckpoint deep-copies the content payload under the phase name.
// Checkpoints are write-once: creating the same phase twice is an error.
func (s *State[C]) CreateCheckpoint(phase string) error {
	if s.Checkpoints == nil {
		s.Checkpoints = make(map[string]Checkpoint[C])
	}
	if _, exists := s.Checkpoints[phase]; exists {
		return types.NewError(types.ENGINE_CHECKPOINT_EXISTS, "checkpoint already exists for phase "+phase)
	}

	content, err := deepCopy(s.Content)
	if err != nil {
		return types.WrapError(types.ENGINE_SNAPSHOT_FAILED, "failed to copy content for checkpoint "+phase, err)
	}

	s.Checkpoints[phase] = Checkpoint[C]{
		Phase:     phase,
		CreatedAt: time.Now().UTC(),
		Content:   content,
	}
	s.AddAudit(s.CurrentNode, "create_checkpoint", AuditSuccess, "phase "+phase)
	return nil
}

// RollbackToCheckpoint restores the content payload from a named checkpoint
// and resets the error list and retry counter. This is a manual,
// administrative operation; routing never invokes it.
func (s *State[C]) RollbackToCheckpoint(phase string) error {
	cp, ok := s.Checkpoints[phase]
	if !ok {
		return types.NewError(types.ENGINE_CHECKPOINT_MISSING, "no checkpoint for phase "+phase)
	}

	content, err := deepCopy(cp.Content)
	if err != nil {
		return types.WrapError(types.ENGINE_SNAPSHOT_FAILED, "failed to restore checkpoint "+phase, err)
	}

	s.Content = content
	s.Errors = nil
	s.RetryCount = 0
	s.errMark = 0
	s.AddAudit(s.CurrentNode, "rollback_to_checkpoint", AuditWarning, "phase "+phase)
	return nil
}

// Marshal serializes the state for the resume store.
func (s *State[C]) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, types.WrapError(types.ENGINE_SNAPSHOT_FAILED, "failed to serialize state", err)
	}
	return data, nil
}

// UnmarshalState deserializes a resume-store snapshot.
func UnmarshalState[C any](data []byte) (*State[C], error) {
	var st State[C]
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, types.WrapError(types.ENGINE_RESUME_FAILED, "failed to deserialize state", err)
	}
	return &st, nil
}

// deepCopy clones a content payload through a JSON round-trip. Content
// payloads are plain data records, so this is exact.
func deepCopy[C any](content C) (C, error) {
	var out C
	data, err := json.Marshal(content)
	if err != nil {
		return out, fmt.Errorf("marshal: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unmarshal: %w", err)
	}
	return out, nil
}
