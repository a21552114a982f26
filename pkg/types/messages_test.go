package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachResult_TransitionsOnlyMatching(t *testing.T) {
	msg := NewAssistantMessage("conv-1", "", []ToolInvocation{
		NewCall("call-a", "searchToken", map[string]any{"query": "SOL"}),
		NewCall("call-b", "getTokenPrice", map[string]any{"symbol": "SOL"}),
	})
	history := []Message{NewUserMessage("conv-1", "price of SOL?"), msg}

	idx := AttachResult(history, "call-b", DataResult(map[string]any{"price": 150.0}))
	require.Equal(t, 1, idx)

	a, ok := history[1].Invocation("call-a")
	require.True(t, ok)
	assert.Equal(t, StateCall, a.State)
	assert.Nil(t, a.Result)

	b, ok := history[1].Invocation("call-b")
	require.True(t, ok)
	assert.Equal(t, StateResult, b.State)
	require.NotNil(t, b.Result)
	assert.Equal(t, map[string]any{"price": 150.0}, b.Result.Data)
}

func TestAttachResult_SetOnce(t *testing.T) {
	history := []Message{
		NewAssistantMessage("conv-1", "", []ToolInvocation{NewCall("call-x", "transferSol", nil)}),
	}

	require.Equal(t, 0, AttachResult(history, "call-x", DataResult("first")))
	assert.Equal(t, -1, AttachResult(history, "call-x", DataResult("second")))

	inv, _ := history[0].Invocation("call-x")
	assert.Equal(t, "first", inv.Result.Data)
	assert.Len(t, history[0].ToolInvocations, 1)
}

func TestAttachResult_Unmatched(t *testing.T) {
	history := []Message{NewUserMessage("conv-1", "hi")}
	assert.Equal(t, -1, AttachResult(history, "missing", DataResult(nil)))
}

func TestPendingInvocations(t *testing.T) {
	msg := NewAssistantMessage("c", "", []ToolInvocation{
		NewCall("1", "a", nil),
		NewCall("2", "b", nil),
	})
	msg.AttachResult("1", ErrorResult("boom"))

	pending := msg.PendingInvocations()
	require.Len(t, pending, 1)
	assert.Equal(t, "2", pending[0].ToolCallID)
}

func TestClone_IsDeep(t *testing.T) {
	msg := NewAssistantMessage("c", "", []ToolInvocation{NewCall("1", "a", map[string]any{"k": "v"})})
	c := msg.Clone()
	c.AttachResult("1", DataResult("x"))
	c.ToolInvocations[0].Args["k"] = "changed"

	assert.Equal(t, StateCall, msg.ToolInvocations[0].State)
	assert.Equal(t, "v", msg.ToolInvocations[0].Args["k"])
}

func TestLastUserMessageAndCount(t *testing.T) {
	history := []Message{
		NewUserMessage("c", "one"),
		NewAssistantMessage("c", "reply", nil),
		NewUserMessage("c", "two"),
		NewAssistantMessage("c", "reply", nil),
	}
	last, ok := LastUserMessage(history)
	require.True(t, ok)
	assert.Equal(t, "two", last.Content)
	assert.Equal(t, 2, CountUserMessages(history))

	_, ok = LastUserMessage(nil)
	assert.False(t, ok)
}

func TestNewCall_Defaults(t *testing.T) {
	inv := NewCall("", "searchToken", nil)
	assert.NotEmpty(t, inv.ToolCallID)
	assert.NotNil(t, inv.Args)
	assert.Equal(t, StateCall, inv.State)
	assert.False(t, inv.HasResult())
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("bot").Valid())
}
