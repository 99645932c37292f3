package pool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/torosent/pipefire/internal/clientmetrics"
)

type mockConn struct {
	closes   int
	closeErr error
	snap     clientmetrics.Snapshot
}

func (m *mockConn) Connect(context.Context, string) error { return nil }
func (m *mockConn) Send(context.Context, []byte) error    { return nil }
func (m *mockConn) CloseActive() error {
	m.closes++
	return m.closeErr
}
func (m *mockConn) Metrics() clientmetrics.Snapshot { return m.snap }

func TestConnectionPool_CloseClosesAll(t *testing.T) {
	p := NewConnectionPool(3)
	conns := []*mockConn{{}, {}, {}}
	for _, c := range conns {
		if err := p.Add(c); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", p.Len())
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	for i, c := range conns {
		if c.closes != 1 {
			t.Errorf("conn %d closed %d times, want 1", i, c.closes)
		}
	}
}

func TestConnectionPool_AddAfterClose(t *testing.T) {
	p := NewConnectionPool(0)
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	late := &mockConn{}
	if err := p.Add(late); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if late.closes != 1 {
		t.Fatalf("late conn closes = %d, want 1", late.closes)
	}
	if p.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", p.Len())
	}
}

func TestConnectionPool_CloseCollectsErrors(t *testing.T) {
	p := NewConnectionPool(2)
	_ = p.Add(&mockConn{closeErr: errors.New("reset")})
	_ = p.Add(&mockConn{})

	err := p.Close()
	if err == nil {
		t.Fatal("Close() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "connection 0: reset") {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestConnectionPool_Totals(t *testing.T) {
	p := NewConnectionPool(2)
	_ = p.Add(&mockConn{snap: clientmetrics.Snapshot{BytesSent: 10, BytesReceived: 4}})
	_ = p.Add(&mockConn{snap: clientmetrics.Snapshot{BytesSent: 5, BytesReceived: 6}})

	total := p.Totals()
	if total.BytesSent != 15 || total.BytesReceived != 10 {
		t.Fatalf("Totals() = %+v", total)
	}
}
