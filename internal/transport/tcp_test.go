package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/pipefire/internal/transport"
)

func startEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestTCPConnFixedLengthEcho(t *testing.T) {
	addr := startEchoServer(t)
	factory := &transport.TCPFactory{DialTimeout: time.Second}

	var received atomic.Int64
	done := make(chan struct{})
	var once sync.Once
	conn := factory.New(transport.RoleWorker, 5, transport.Callbacks{
		OnMessage: func(msg []byte) {
			if string(msg) != "hello" {
				t.Errorf("message = %q, want hello", msg)
			}
			if received.Add(1) == 100 {
				once.Do(func() { close(done) })
			}
		},
	})
	ctx := context.Background()
	if err := conn.Connect(ctx, addr); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.CloseActive()

	payload := make([]byte, 0, 500)
	for i := 0; i < 100; i++ {
		payload = append(payload, "hello"...)
	}
	if err := conn.Send(ctx, payload); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("received %d messages, want 100", received.Load())
	}

	tc := conn.(*transport.TCPConn)
	snap := tc.Metrics()
	if snap.BytesSent != 500 {
		t.Errorf("BytesSent = %d, want 500", snap.BytesSent)
	}
	if snap.MessagesReceived != 100 {
		t.Errorf("MessagesReceived = %d, want 100", snap.MessagesReceived)
	}
}

func TestTCPConnCloseActiveIsIdempotentAndSilent(t *testing.T) {
	addr := startEchoServer(t)
	factory := &transport.TCPFactory{}

	var closes atomic.Int64
	conn := factory.New(transport.RoleWorker, 4, transport.Callbacks{
		OnClose: func(error) { closes.Add(1) },
	})
	if err := conn.Connect(context.Background(), addr); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := conn.CloseActive(); err != nil {
		t.Fatalf("CloseActive() error = %v", err)
	}
	if err := conn.CloseActive(); err != nil {
		t.Fatalf("second CloseActive() error = %v", err)
	}

	select {
	case <-conn.(*transport.TCPConn).Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}
	if closes.Load() != 0 {
		t.Fatalf("OnClose called %d times after CloseActive, want 0", closes.Load())
	}
	if err := conn.Send(context.Background(), []byte("x")); err == nil {
		t.Fatal("Send() after close succeeded, want error")
	}
}

func TestTCPConnCloseInsideCallbackStopsDelivery(t *testing.T) {
	addr := startEchoServer(t)
	factory := &transport.TCPFactory{}

	var count atomic.Int64
	var conn transport.Conn
	conn = factory.New(transport.RoleWorker, 1, transport.Callbacks{
		OnMessage: func([]byte) {
			if count.Add(1) == 3 {
				_ = conn.CloseActive()
			}
		},
	})
	if err := conn.Connect(context.Background(), addr); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := conn.Send(context.Background(), []byte("abcdefghij")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case <-conn.(*transport.TCPConn).Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}
	if got := count.Load(); got != 3 {
		t.Fatalf("messages delivered = %d, want 3", got)
	}
}

func TestTCPConnRemoteCloseReported(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	closed := make(chan error, 1)
	conn := (&transport.TCPFactory{}).New(transport.RoleWorker, 4, transport.Callbacks{
		OnClose: func(err error) { closed <- err },
	})
	if err := conn.Connect(context.Background(), ln.Addr().String()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	select {
	case err := <-closed:
		if !errors.Is(err, io.EOF) {
			t.Logf("OnClose error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called after remote close")
	}
}

func TestTCPConnConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	conn := (&transport.TCPFactory{DialTimeout: time.Second}).New(transport.RoleProbe, 0, transport.Callbacks{})
	if err := conn.Connect(context.Background(), addr); err == nil {
		t.Fatal("Connect() to closed port succeeded, want error")
	}
}

func TestSendBeforeConnect(t *testing.T) {
	conn := (&transport.TCPFactory{}).New(transport.RoleWorker, 1, transport.Callbacks{})
	if err := conn.Send(context.Background(), []byte("x")); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("Send() error = %v, want ErrNotConnected", err)
	}
}
