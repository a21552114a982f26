package transcript

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"
)

const (
	queueSize      = 256
	lockTimeout    = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

type writeOp struct {
	path string
	data []byte
	err  chan error // nil when the caller does not wait
}

// sink is an open transcript file and its cross-process lock.
type sink struct {
	f    *os.File
	lock *flock.Flock
}

// asyncWriter appends lines to files from one background goroutine. Each
// batch takes a file's lock once and writes that file's lines in queue order.
type asyncWriter struct {
	ch      chan writeOp
	done    chan struct{}
	onError func(path string, err error) // for writes nobody waits on

	mu    sync.Mutex
	sinks map[string]*sink
}

func newAsyncWriter(onError func(path string, err error)) *asyncWriter {
	w := &asyncWriter{
		ch:      make(chan writeOp, queueSize),
		done:    make(chan struct{}),
		onError: onError,
		sinks:   make(map[string]*sink),
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	var batch []writeOp
	for op := range w.ch {
		batch = append(batch[:0], op)
	more:
		for {
			select {
			case next, ok := <-w.ch:
				if !ok {
					break more
				}
				batch = append(batch, next)
			default:
				break more
			}
		}
		w.flush(batch)
	}
}

func (w *asyncWriter) flush(batch []writeOp) {
	var order []string
	byPath := make(map[string][]writeOp)
	for _, op := range batch {
		if _, seen := byPath[op.path]; !seen {
			order = append(order, op.path)
		}
		byPath[op.path] = append(byPath[op.path], op)
	}
	for _, path := range order {
		ops := byPath[path]
		errs := w.writeBatch(path, ops)
		for i, op := range ops {
			switch {
			case op.err != nil:
				op.err <- errs[i]
			case errs[i] != nil && w.onError != nil:
				w.onError(path, errs[i])
			}
		}
	}
}

// writeBatch writes ops to path under the file lock and returns one error per op.
func (w *asyncWriter) writeBatch(path string, ops []writeOp) []error {
	errs := make([]error, len(ops))
	fail := func(err error) []error {
		for i := range errs {
			errs[i] = err
		}
		return errs
	}

	s, err := w.sink(path)
	if err != nil {
		return fail(err)
	}
	// A second gatekeep serving the same directory appends too.
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return fail(ErrLockTimeout)
	}
	defer s.lock.Unlock()

	for i, op := range ops {
		_, errs[i] = s.f.Write(op.data)
	}
	return errs
}

func (w *asyncWriter) sink(path string) (*sink, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.sinks[path]; ok {
		return s, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	s := &sink{f: f, lock: flock.New(path + ".lock")}
	w.sinks[path] = s
	return s, nil
}

// Write enqueues data for path. If errCh is non-nil the write error is sent on it.
func (w *asyncWriter) Write(path string, data []byte, errCh chan error) {
	w.ch <- writeOp{path: path, data: data, err: errCh}
}

// Close flushes queued writes, stops the goroutine and closes all files.
func (w *asyncWriter) Close() error {
	close(w.ch)
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	var err error
	for _, s := range w.sinks {
		err = multierr.Append(err, s.f.Close())
	}
	w.sinks = nil
	return err
}
