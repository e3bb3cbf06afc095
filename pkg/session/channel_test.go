// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 DBTM Project

package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// rigStub is a WebSocket endpoint standing in for the measurement rig.
type rigStub struct {
	t  *testing.T
	mu sync.Mutex

	srv      *httptest.Server
	conns    []*websocket.Conn
	received []string
}

func newRigStub(t *testing.T) *rigStub {
	t.Helper()
	stub := &rigStub{t: t}
	upgrader := websocket.Upgrader{}
	stub.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		stub.mu.Lock()
		stub.conns = append(stub.conns, conn)
		stub.mu.Unlock()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			stub.mu.Lock()
			stub.received = append(stub.received, string(raw))
			stub.mu.Unlock()
		}
	}))
	t.Cleanup(stub.srv.Close)
	return stub
}

// url returns the stub as a ws:// address.
func (s *rigStub) url() string {
	return "ws://" + strings.TrimPrefix(s.srv.URL, "http://") + "/"
}

func (s *rigStub) push(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		s.t.Fatal("no rig connection to push on")
	}
	conn := s.conns[len(s.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		s.t.Fatalf("rig push failed: %v", err)
	}
}

func (s *rigStub) frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *rigStub) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

// channelSink records channel callbacks for assertions.
type channelSink struct {
	mu       sync.Mutex
	opened   int
	closed   int
	errs     []error
	messages []string
}

func (s *channelSink) events() Events {
	return Events{
		OnOpen: func() {
			s.mu.Lock()
			s.opened++
			s.mu.Unlock()
		},
		OnMessage: func(raw []byte) {
			s.mu.Lock()
			s.messages = append(s.messages, string(raw))
			s.mu.Unlock()
		},
		OnError: func(err error) {
			s.mu.Lock()
			s.errs = append(s.errs, err)
			s.mu.Unlock()
		},
		OnClose: func() {
			s.mu.Lock()
			s.closed++
			s.mu.Unlock()
		},
	}
}

func (s *channelSink) snapshot() (opened, closed int, messages []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed, append([]string(nil), s.messages...)
}

func TestSendNotConnected(t *testing.T) {
	ch := NewChannel()
	ch.Bind(Events{})

	err := ch.Send([]byte("START_MEASUREMENT"))
	if err != ErrNotConnected {
		t.Fatalf("Send() = %v, want ErrNotConnected", err)
	}
}

func TestConnectSendReceive(t *testing.T) {
	rig := newRigStub(t)
	sink := &channelSink{}
	ch := NewChannel()
	ch.Bind(sink.events())

	if err := ch.Connect(rig.url()); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	defer ch.Close()

	opened, _, _ := sink.snapshot()
	if opened != 1 {
		t.Fatalf("OnOpen fired %d times, want 1", opened)
	}

	if err := ch.Send([]byte("START_MEASUREMENT")); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	waitFor(t, "rig to receive the command", func() bool {
		frames := rig.frames()
		return len(frames) == 1 && frames[0] == "START_MEASUREMENT"
	})

	rig.push(`{"type":"done","data":{}}`)
	waitFor(t, "inbound frame delivery", func() bool {
		_, _, msgs := sink.snapshot()
		return len(msgs) == 1 && msgs[0] == `{"type":"done","data":{}}`
	})
}

func TestConnectRefused(t *testing.T) {
	ch := NewChannel()
	ch.Bind(Events{})

	// Port 1 on loopback is assumed closed.
	err := ch.Connect("ws://127.0.0.1:1/")
	if err == nil {
		t.Fatal("Connect() to a dead endpoint succeeded")
	}
	if serr := ch.Send([]byte("x")); serr != ErrNotConnected {
		t.Errorf("Send() after failed connect = %v, want ErrNotConnected", serr)
	}
}

func TestRemoteDropFiresClose(t *testing.T) {
	rig := newRigStub(t)
	sink := &channelSink{}
	ch := NewChannel()
	ch.Bind(sink.events())

	if err := ch.Connect(rig.url()); err != nil {
		t.Fatalf("Connect() = %v", err)
	}

	rig.dropConnections()

	waitFor(t, "close callback", func() bool {
		_, closed, _ := sink.snapshot()
		return closed == 1
	})

	if err := ch.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("Send() after remote drop = %v, want ErrNotConnected", err)
	}
}

func TestCloseSuppressesCallbacks(t *testing.T) {
	rig := newRigStub(t)
	sink := &channelSink{}
	ch := NewChannel()
	ch.Bind(sink.events())

	if err := ch.Connect(rig.url()); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	ch.Close()

	// The rig side fails its read once the client is gone; none of that
	// may surface as events.
	time.Sleep(100 * time.Millisecond)
	opened, closed, msgs := sink.snapshot()
	if opened != 1 || closed != 0 || len(msgs) != 0 {
		t.Errorf("callbacks after Close: opened=%d closed=%d msgs=%v", opened, closed, msgs)
	}
}

func TestReconnectReplacesConnection(t *testing.T) {
	rigA := newRigStub(t)
	rigB := newRigStub(t)
	sink := &channelSink{}
	ch := NewChannel()
	ch.Bind(sink.events())

	if err := ch.Connect(rigA.url()); err != nil {
		t.Fatalf("Connect(A) = %v", err)
	}
	if err := ch.Connect(rigB.url()); err != nil {
		t.Fatalf("Connect(B) = %v", err)
	}
	defer ch.Close()

	opened, closed, _ := sink.snapshot()
	if opened != 2 {
		t.Fatalf("OnOpen fired %d times, want 2", opened)
	}
	if closed != 0 {
		t.Errorf("address change surfaced %d close events, the teardown is internal", closed)
	}

	if err := ch.Send([]byte("1")); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	waitFor(t, "command on the new rig", func() bool {
		return len(rigB.frames()) == 1
	})
	if len(rigA.frames()) != 0 {
		t.Errorf("old rig received frames after replacement: %v", rigA.frames())
	}

	if got := ch.Address(); got != rigB.url() {
		t.Errorf("Address() = %q, want %q", got, rigB.url())
	}
}

func TestDeviceURL(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"bare host gets rig port", "192.168.0.50", "ws://192.168.0.50:81/"},
		{"host with port kept", "192.168.0.50:8081", "ws://192.168.0.50:8081/"},
		{"full url passes through", "ws://rig.local:81/", "ws://rig.local:81/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviceURL(tt.address); got != tt.want {
				t.Errorf("deviceURL(%q) = %q, want %q", tt.address, got, tt.want)
			}
		})
	}
}
