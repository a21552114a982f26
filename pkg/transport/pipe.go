package transport

import (
	"sync"
	"sync/atomic"
)

// pipe is the inbound queue and close state shared by every transport.
// Embedders call init before use and push decoded frames through deliver.
type pipe struct {
	in     chan Envelope
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
	wmu    sync.Mutex
}

func (p *pipe) init(buffer int) {
	if buffer <= 0 {
		buffer = 16
	}
	p.in = make(chan Envelope, buffer)
	p.done = make(chan struct{})
}

// deliver queues env for the router. It reports false once the pipe is shut.
func (p *pipe) deliver(env Envelope) bool {
	select {
	case p.in <- env:
		return true
	case <-p.done:
		return false
	}
}

// write runs fn under the write lock unless the pipe is shut.
func (p *pipe) write(fn func() error) error {
	if p.closed.Load() {
		return ErrTransportClosed
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return fn()
}

// shutdown marks the pipe closed once, then runs release.
func (p *pipe) shutdown(release func()) {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.done)
		if release != nil {
			release()
		}
	})
}

func (p *pipe) IsReady() bool { return !p.closed.Load() }

func (p *pipe) ReadMessages() <-chan Envelope { return p.in }

// Done is closed when the transport is closed.
func (p *pipe) Done() <-chan struct{} { return p.done }
