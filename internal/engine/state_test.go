package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

type draftContent struct {
	Title  string   `json:"title"`
	Quests []string `json:"quests,omitempty"`
}

func TestCheckpointRollbackRestoresContent(t *testing.T) {
	st := NewState("generation", types.NewID(), draftContent{Title: "Sands of Arrakeen"}, 3)

	require.NoError(t, st.CreateCheckpoint("core"))

	st.Content.Title = "mangled"
	st.Content.Quests = append(st.Content.Quests, "q1", "q2")
	st.AddError(assert.AnError)
	st.RetryCount = 2

	require.NoError(t, st.RollbackToCheckpoint("core"))

	assert.Equal(t, "Sands of Arrakeen", st.Content.Title)
	assert.Empty(t, st.Content.Quests)
	assert.Empty(t, st.Errors)
	assert.Zero(t, st.RetryCount)
}

func TestCheckpointIsDeepCopy(t *testing.T) {
	st := NewState("generation", types.NewID(), draftContent{Quests: []string{"q1"}}, 3)
	require.NoError(t, st.CreateCheckpoint("quests"))

	// Mutating live content must not reach through into the checkpoint.
	st.Content.Quests[0] = "mangled"

	require.NoError(t, st.RollbackToCheckpoint("quests"))
	assert.Equal(t, []string{"q1"}, st.Content.Quests)
}

func TestCheckpointWriteOnce(t *testing.T) {
	st := NewState("generation", types.NewID(), draftContent{}, 3)

	require.NoError(t, st.CreateCheckpoint("core"))
	err := st.CreateCheckpoint("core")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.ENGINE_CHECKPOINT_EXISTS, ""))
}

func TestRollbackToUnknownCheckpoint(t *testing.T) {
	st := NewState("generation", types.NewID(), draftContent{}, 3)

	err := st.RollbackToCheckpoint("never_created")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.ENGINE_CHECKPOINT_MISSING, ""))
}

func TestFailingTracksErrorsSinceNodeStart(t *testing.T) {
	st := NewState("generation", types.NewID(), draftContent{}, 3)

	st.AddError(assert.AnError)
	st.beginNode()
	assert.False(t, st.Failing(), "errors from earlier nodes must not count")

	st.AddError(assert.AnError)
	assert.True(t, st.Failing())
}

func TestDecisionDefaultsPending(t *testing.T) {
	st := NewState("generation", types.NewID(), draftContent{}, 3)
	assert.Equal(t, DecisionPending, st.Decision("core_review"))

	st.AwaitDecision("core_review", "review the campaign core")
	assert.Equal(t, StatusAwaitingDecision, st.Status)
	assert.Equal(t, DecisionPending, st.Decision("core_review"))

	st.SetDecision("core_review", true)
	assert.Equal(t, DecisionApproved, st.Decision("core_review"))

	// Parking again must not reset an already-made decision.
	st.AwaitDecision("core_review", "review again")
	assert.Equal(t, DecisionApproved, st.Decision("core_review"))
}

func TestStateMarshalRoundTrip(t *testing.T) {
	st := NewState("generation", types.NewID(), draftContent{Title: "t"}, 3)
	st.CurrentNode = "generate_quests"
	st.Phase = "quests"
	st.SetDecision("core_review", true)
	require.NoError(t, st.CreateCheckpoint("core"))
	st.AddAudit("generate_quests", "execute", AuditSuccess, "")

	data, err := st.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalState[draftContent](data)
	require.NoError(t, err)

	assert.Equal(t, st.InstanceID, restored.InstanceID)
	assert.Equal(t, "generate_quests", restored.CurrentNode)
	assert.Equal(t, DecisionApproved, restored.Decision("core_review"))
	assert.Contains(t, restored.Checkpoints, "core")
	assert.Len(t, restored.Audit, 2)
}
