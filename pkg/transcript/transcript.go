// Package transcript keeps an append-only JSONL audit trail per
// conversation: user messages, confirmation requests and their resolution,
// and every tool execution.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jg-phare/gatekeep/pkg/types"
)

const maxLineSize = 10 * 1024 * 1024

var (
	// ErrLockTimeout is returned when the file lock cannot be acquired.
	ErrLockTimeout = errors.New("transcript: lock acquisition timeout")
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("transcript: closed")
)

// EventType names a transcript entry.
type EventType string

const (
	EventUserMessage           EventType = "user_message"
	EventAssistantMessage      EventType = "assistant_message"
	EventConfirmationRequested EventType = "confirmation_requested"
	EventConfirmationResolved  EventType = "confirmation_resolved"
	EventToolExecuted          EventType = "tool_executed"
	EventToolFailed            EventType = "tool_failed"
	EventTurnFailed            EventType = "turn_failed"
)

// Event is one transcript line.
type Event struct {
	Time           time.Time         `json:"time"`
	ConversationID string            `json:"conversationId"`
	Type           EventType         `json:"type"`
	Text           string            `json:"text,omitempty"`
	ToolCallID     string            `json:"toolCallId,omitempty"`
	Tool           string            `json:"tool,omitempty"`
	Args           map[string]any    `json:"args,omitempty"`
	Result         *types.ToolResult `json:"result,omitempty"`
	State          string            `json:"state,omitempty"`
}

// Recorder receives transcript events. Record must not block the caller on I/O.
type Recorder interface {
	Record(ev Event)
}

// SyncRecorder can also wait until an event is on disk.
type SyncRecorder interface {
	Recorder
	RecordSync(ev Event) error
}

// Durable reports whether events of type t should be written synchronously.
// These are the ones an audit of moved funds depends on.
func Durable(t EventType) bool {
	return t == EventConfirmationResolved || t == EventToolExecuted
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(Event) {}

// Log writes events to <dir>/<conversationID>.jsonl.
type Log struct {
	dir    string
	writer *asyncWriter
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Open creates dir if needed and starts the background writer.
func Open(dir string, logger *zap.Logger) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript: create dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{dir: dir, logger: logger.Named("transcript")}
	l.writer = newAsyncWriter(func(path string, err error) {
		l.logger.Warn("transcript write failed", zap.String("path", path), zap.Error(err))
	})
	return l, nil
}

// Path returns the transcript file of a conversation.
func (l *Log) Path(conversationID string) string {
	return filepath.Join(l.dir, fileName(conversationID))
}

// Record queues ev. Failures are logged, never returned.
func (l *Log) Record(ev Event) {
	if err := l.enqueue(ev, nil); err != nil {
		l.logger.Warn("transcript event dropped", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// RecordSync writes ev and waits for the result.
func (l *Log) RecordSync(ev Event) error {
	errCh := make(chan error, 1)
	if err := l.enqueue(ev, errCh); err != nil {
		return err
	}
	return <-errCh
}

func (l *Log) enqueue(ev Event, errCh chan error) error {
	if ev.ConversationID == "" {
		return errors.New("transcript: event without conversation id")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("transcript: marshal event: %w", err)
	}
	data = append(data, '\n')

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	l.writer.Write(l.Path(ev.ConversationID), data, errCh)
	return nil
}

// Load reads a conversation's events. Corrupt lines are skipped.
func (l *Log) Load(conversationID string) ([]Event, error) {
	f, err := os.Open(l.Path(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// Close flushes pending events and closes all files.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.writer.Close()
}

// fileName maps a conversation id to a safe file name.
func fileName(conversationID string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, conversationID)
	return s + ".jsonl"
}
