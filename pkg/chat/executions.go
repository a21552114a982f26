package chat

import (
	"context"
	"sync"

	"github.com/jg-phare/gatekeep/pkg/types"
)

type executionKey struct{ conversationID, toolCallID string }

type memoryExecutions struct {
	mu   sync.Mutex
	runs map[executionKey]types.Execution
}

func newMemoryExecutions() *memoryExecutions {
	return &memoryExecutions{runs: make(map[executionKey]types.Execution)}
}

func (m *memoryExecutions) RecordExecution(_ context.Context, e types.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := executionKey{e.ConversationID, e.ToolCallID}
	if _, ok := m.runs[k]; !ok {
		m.runs[k] = e
	}
	return nil
}

func (m *memoryExecutions) LookupExecution(_ context.Context, conversationID, toolCallID string) (types.Execution, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.runs[executionKey{conversationID, toolCallID}]
	return e, ok, nil
}
