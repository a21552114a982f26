package transport

import (
	"bufio"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single inbound envelope on every transport.
const MaxFrameBytes = 1 << 20

// StdioTransport exchanges envelopes as JSON lines over a reader/writer
// pair, usually stdin and stdout. Blank lines are skipped.
type StdioTransport struct {
	pipe
	w io.Writer
}

// NewStdioTransport starts reading envelopes from r. Closing the transport
// does not close r.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	t := &StdioTransport{w: w}
	t.init(16)
	go t.readLines(r)
	return t
}

func (t *StdioTransport) readLines(r io.Reader) {
	defer close(t.in)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), MaxFrameBytes)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if !t.deliver(decodeEnvelope(sc.Bytes())) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		t.deliver(Envelope{Kind: KindError, Err: fmt.Errorf("transport: read: %w", err)})
	}
}

// Write emits data and a trailing newline. Safe for concurrent use.
func (t *StdioTransport) Write(data []byte) error {
	return t.write(func() error {
		line := make([]byte, 0, len(data)+1)
		line = append(append(line, data...), '\n')
		_, err := t.w.Write(line)
		return err
	})
}

func (t *StdioTransport) Close() error {
	t.shutdown(nil)
	return nil
}
