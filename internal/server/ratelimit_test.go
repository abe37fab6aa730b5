package server

import (
	"net"
	"testing"
)

func TestConnLimiter_Disabled(t *testing.T) {
	t.Parallel()
	var l *connLimiter = newConnLimiter(0)
	if l != nil {
		t.Fatal("newConnLimiter(0) should return nil")
	}
	for i := range 5 {
		if !l.allow("1.2.3.4") {
			t.Errorf("connection %d blocked by disabled limiter", i+1)
		}
	}
	l.stop()
}

func TestConnLimiter_BlocksOverLimit(t *testing.T) {
	t.Parallel()
	// rps=1, burst=1: the second connection from the same IP is blocked.
	l := newConnLimiter(1)
	defer l.stop()

	if !l.allow("5.6.7.8") {
		t.Error("first connection: blocked, want allowed")
	}
	if l.allow("5.6.7.8") {
		t.Error("second connection: allowed, want blocked")
	}
	// Other IPs have their own budget.
	if !l.allow("9.9.9.9") {
		t.Error("connection from another IP: blocked, want allowed")
	}
}

func TestRemoteIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		addr net.Addr
		want string
	}{
		{&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5555}, "10.0.0.1"},
		{&net.TCPAddr{IP: net.ParseIP("::1"), Port: 80}, "::1"},
		{&net.UnixAddr{Name: "/tmp/sock", Net: "unix"}, "/tmp/sock"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := remoteIP(tt.addr); got != tt.want {
			t.Errorf("remoteIP(%v) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
