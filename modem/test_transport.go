package modem

import (
	"io"
	"sync"
)

// TestTransport simulates a modem over channels: reads block until data
// is queued, like a real serial port. A Responder, when set, answers
// every written command, which is enough to script a whole modem
// conversation in tests.
type TestTransport struct {
	mu        sync.Mutex
	readChan  chan []byte
	writes    []string
	closed    bool
	Responder func(cmd string) string
}

func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 16),
	}
}

func (t *TestTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.writes = append(t.writes, string(p))
	responder := t.Responder
	t.mu.Unlock()
	if responder != nil {
		if reply := responder(string(p)); reply != "" {
			t.SendData(reply)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (int, error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues raw bytes for the modem to read, simulating data coming
// in from the network side.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns everything written to the transport so far.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.writes))
	copy(out, t.writes)
	return out
}

type testDialer struct {
	transport *TestTransport
}

func (d testDialer) Dial() (io.ReadWriteCloser, error) {
	return d.transport, nil
}
