package transport

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestStdioTransport_ReadsEnvelopes(t *testing.T) {
	in := strings.NewReader("{\"type\":\"user_message\",\"text\":\"hello\"}\n\n{broken\n")
	var out bytes.Buffer
	tr := NewStdioTransport(in, &out)
	defer tr.Close()

	var got []Envelope
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case env, ok := <-tr.ReadMessages():
			if !ok {
				done = true
				continue
			}
			got = append(got, env)
		case <-timeout:
			t.Fatal("timeout reading envelopes")
		}
	}

	if len(got) != 2 {
		t.Fatalf("got %d envelopes, want 2", len(got))
	}
	if got[0].Kind != KindUserMessage || got[0].Text != "hello" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Err == nil {
		t.Error("expected a read error for the malformed line")
	}

	if err := tr.Write([]byte(`{"type":"turn"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out.String() != "{\"type\":\"turn\"}\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestStdioTransport_CloseStopsWrites(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	tr := NewStdioTransport(r, io.Discard)
	tr.Close()
	tr.Close()
	if err := tr.Write([]byte("x")); err != ErrTransportClosed {
		t.Errorf("err = %v, want ErrTransportClosed", err)
	}
}
