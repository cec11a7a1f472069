package protocol

import (
	"bufio"
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"scope-service/internal/config"
)

// fakeStream records writes and serves reads from a canned buffer.
type fakeStream struct {
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
}

func (f *fakeStream) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeStream) Write(p []byte) (int, error) { return f.out.Write(p) }
func (f *fakeStream) Close() error                { f.closed = true; return nil }

func newTestLineTransport(response []byte) (*LineTransport, *fakeStream) {
	stream := &fakeStream{}
	stream.in.Write(response)

	lt := NewLineTransport(&config.LineConfig{
		Pattern: "/dev/usbtmc*",
		Timeout: time.Second,
	}, zap.NewNop())
	lt.stream = stream
	lt.reader = bufio.NewReader(stream)
	lt.isOpen = true

	return lt, stream
}

func TestLineTransport_Transmit(t *testing.T) {
	lt, stream := newTestLineTransport(nil)

	if err := lt.Transmit(context.Background(), []byte("CH1:SCA?")); err != nil {
		t.Fatalf("Transmit failed: %v", err)
	}

	if got, want := stream.out.String(), "CH1:SCA?\n"; got != want {
		t.Errorf("wrote %q, want %q", got, want)
	}
}

func TestLineTransport_ReceiveLine(t *testing.T) {
	lt, _ := newTestLineTransport([]byte("1.0E-3\nleftover"))

	line, err := lt.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if got, want := string(line), "1.0E-3\n"; got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestLineTransport_ReceiveExact(t *testing.T) {
	payload := append([]byte("#42500"), bytes.Repeat([]byte{0x7F}, 8)...)
	lt, _ := newTestLineTransport(payload)

	data, err := lt.ReceiveExact(context.Background(), 6)
	if err != nil {
		t.Fatalf("ReceiveExact failed: %v", err)
	}
	if got, want := string(data), "#42500"; got != want {
		t.Errorf("data = %q, want %q", got, want)
	}

	// Short stream must fail, not return a truncated payload.
	if _, err := lt.ReceiveExact(context.Background(), 100); err == nil {
		t.Error("expected error for short read")
	}
}

func TestLineTransport_NotOpen(t *testing.T) {
	lt := NewLineTransport(&config.LineConfig{Pattern: "/dev/usbtmc*"}, zap.NewNop())

	if err := lt.Transmit(context.Background(), []byte("*IDN?")); err == nil {
		t.Error("expected error transmitting on closed transport")
	}
	if _, err := lt.Receive(context.Background()); err == nil {
		t.Error("expected error receiving on closed transport")
	}
}
