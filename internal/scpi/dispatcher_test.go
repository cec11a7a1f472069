package scpi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"scope-service/internal/protocol"
)

// fakeTransport scripts responses keyed by the command that requested
// them and records the exact issue order.
type fakeTransport struct {
	responses map[string][]byte
	sent      []string
	pending   string
	failOn    string
}

func (f *fakeTransport) Open(ctx context.Context) error { return nil }
func (f *fakeTransport) Close() error                   { return nil }
func (f *fakeTransport) IsOpen() bool                   { return true }
func (f *fakeTransport) Kind() protocol.Kind            { return protocol.KindBulk }

func (f *fakeTransport) Transmit(ctx context.Context, command []byte) error {
	cmd := string(command)
	if cmd == f.failOn {
		return errors.New("bulk write failed")
	}
	f.sent = append(f.sent, cmd)
	f.pending = cmd
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	resp, ok := f.responses[f.pending]
	if !ok {
		return nil, fmt.Errorf("no response scripted for %q", f.pending)
	}
	return resp, nil
}

func (f *fakeTransport) ReceiveExact(ctx context.Context, size int) ([]byte, error) {
	resp, err := f.Receive(ctx)
	if err != nil {
		return nil, err
	}
	if len(resp) != size {
		return nil, fmt.Errorf("scripted response is %d bytes, want %d", len(resp), size)
	}
	return resp, nil
}

func TestDispatcher_Query(t *testing.T) {
	ft := &fakeTransport{responses: map[string][]byte{
		"*IDN?": []byte("TEKTRONIX,TDS 2022B,0,CF:91.1CT\n"),
	}}
	d := NewDispatcher(ft, zap.NewNop())

	got, err := d.Query(context.Background(), "*IDN?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if want := "TEKTRONIX,TDS 2022B,0,CF:91.1CT"; got != want {
		t.Errorf("Query = %q, want %q", got, want)
	}
}

func TestDispatcher_PreservesIssueOrder(t *testing.T) {
	ft := &fakeTransport{responses: map[string][]byte{
		"DAT:SOU CH1;:CURV?": []byte("#0a\n"),
		"DAT:SOU CH2;:CURV?": []byte("#0b\n"),
	}}
	d := NewDispatcher(ft, zap.NewNop())

	commands := []string{"DAT:SOU CH1;:CURV?", "DAT:SOU CH2;:CURV?"}
	for _, cmd := range commands {
		if _, err := d.Query(context.Background(), cmd); err != nil {
			t.Fatalf("Query(%q) failed: %v", cmd, err)
		}
	}

	if len(ft.sent) != len(commands) {
		t.Fatalf("sent %d commands, want %d", len(ft.sent), len(commands))
	}
	for i, cmd := range commands {
		if ft.sent[i] != cmd {
			t.Errorf("sent[%d] = %q, want %q", i, ft.sent[i], cmd)
		}
	}
}

func TestDispatcher_QueryBinary(t *testing.T) {
	payload := []byte("#42500abcdef\n")
	ft := &fakeTransport{responses: map[string][]byte{
		"DAT:SOU CH1;:CURV?": payload,
	}}
	d := NewDispatcher(ft, zap.NewNop())

	got, err := d.QueryBinary(context.Background(), "DAT:SOU CH1;:CURV?", len(payload))
	if err != nil {
		t.Fatalf("QueryBinary failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("QueryBinary = %q, want %q", got, payload)
	}

	if _, err := d.QueryBinary(context.Background(), "DAT:SOU CH1;:CURV?", len(payload)+1); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestDispatcher_TransmitError(t *testing.T) {
	ft := &fakeTransport{failOn: "CURS:FUNC?"}
	d := NewDispatcher(ft, zap.NewNop())

	if _, err := d.Query(context.Background(), "CURS:FUNC?"); err == nil {
		t.Fatal("expected transmit error to propagate")
	}
}
