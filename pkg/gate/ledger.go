package gate

import (
	"context"
	"sync"

	"github.com/jg-phare/gatekeep/pkg/types"
)

// Ledger persists confirmation records. Saving a record with an existing
// (ConversationID, ToolCallID) replaces it.
type Ledger interface {
	SaveConfirmation(ctx context.Context, c types.Confirmation) error
	LoadConfirmations(ctx context.Context, conversationID string) ([]types.Confirmation, error)
}

// MemoryLedger keeps records in process memory.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string][]types.Confirmation
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string][]types.Confirmation)}
}

func (l *MemoryLedger) SaveConfirmation(_ context.Context, c types.Confirmation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	recs := l.records[c.ConversationID]
	for i := range recs {
		if recs[i].ToolCallID == c.ToolCallID {
			recs[i] = c.Clone()
			return nil
		}
	}
	l.records[c.ConversationID] = append(recs, c.Clone())
	return nil
}

func (l *MemoryLedger) LoadConfirmations(_ context.Context, conversationID string) ([]types.Confirmation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	recs := l.records[conversationID]
	out := make([]types.Confirmation, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out, nil
}
