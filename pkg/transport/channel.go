package transport

import (
	"encoding/json"
	"sync"
)

// ChannelTransport is an in-process transport. Tests and embedding programs
// use it to drive a Router without a socket: Send plays the client, Receive
// reads what the router wrote back.
type ChannelTransport struct {
	pipe
	out     chan []byte
	endOnce sync.Once
}

// NewChannelTransport creates a transport whose queues hold buffer items.
func NewChannelTransport(buffer int) *ChannelTransport {
	t := &ChannelTransport{}
	t.init(buffer)
	t.out = make(chan []byte, cap(t.in))
	return t
}

func (t *ChannelTransport) Write(data []byte) error {
	if !t.IsReady() {
		return ErrTransportClosed
	}
	select {
	case t.out <- data:
		return nil
	case <-t.done:
		return ErrTransportClosed
	}
}

// Close ends input and unblocks pending sends and receives.
func (t *ChannelTransport) Close() error {
	t.shutdown(t.EndInput)
	return nil
}

// EndInput signals that the client will send nothing more. Send must not be
// called afterwards.
func (t *ChannelTransport) EndInput() {
	t.endOnce.Do(func() { close(t.in) })
}

// Send injects a client envelope.
func (t *ChannelTransport) Send(env Envelope) error {
	if !t.IsReady() || !t.deliver(env) {
		return ErrTransportClosed
	}
	return nil
}

// Receive returns the next envelope written to the client, or false once
// the transport is closed.
func (t *ChannelTransport) Receive() (Envelope, bool) {
	select {
	case data := <-t.out:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return Envelope{Kind: KindError, Err: err}, true
		}
		return env, true
	case <-t.done:
		return Envelope{}, false
	}
}
