package http

import (
	"errors"
	"net"
	"strings"
	"testing"

	applog "allowance/internal/log"
)

func TestCandidates(t *testing.T) {
	got := candidates("127.0.0.1", "8080")
	if got[0] != "127.0.0.1:8080" || got[1] != "127.0.0.1:8000" {
		t.Fatalf("preferred address must come first, got %v", got[:2])
	}
	seen := map[string]bool{}
	for _, addr := range got {
		if seen[addr] {
			t.Fatalf("duplicate candidate %s", addr)
		}
		seen[addr] = true
	}
	if !seen["[::1]:0"] {
		t.Fatalf("ipv6 loopback missing: %v", got)
	}
	if want := len(fallbackHosts) * len(fallbackPorts); len(got) != want {
		t.Fatalf("len = %d, want %d", len(got), want)
	}
}

type fakeListener struct {
	net.Listener
	addr net.Addr
}

func (l fakeListener) Addr() net.Addr { return l.addr }

func TestBindFallsThrough(t *testing.T) {
	var tried []string
	listen := func(network, address string) (net.Listener, error) {
		tried = append(tried, address)
		if len(tried) < 3 {
			return nil, errors.New("address in use")
		}
		return fakeListener{addr: &net.TCPAddr{IP: net.IPv4zero, Port: 3000}}, nil
	}

	ln, err := bind([]string{"a:1", "b:2", "c:3", "d:4"}, listen, applog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if len(tried) != 3 {
		t.Fatalf("should stop at first success, tried %v", tried)
	}
	if got := DisplayURL(ln.Addr()); got != "http://127.0.0.1:3000" {
		t.Fatalf("DisplayURL = %q", got)
	}
}

func TestBindAllFail(t *testing.T) {
	listen := func(network, address string) (net.Listener, error) {
		return nil, errors.New("denied " + address)
	}
	_, err := bind([]string{"a:1", "b:2"}, listen, applog.Discard())
	if err == nil || !strings.Contains(err.Error(), "denied b:2") {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
	if _, err := bind(nil, listen, applog.Discard()); err == nil {
		t.Fatal("expected error for no candidates")
	}
}

func TestListenBindsLoopback(t *testing.T) {
	ln, err := Listen("127.0.0.1", "0", applog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	if !strings.HasPrefix(DisplayURL(ln.Addr()), "http://127.0.0.1:") {
		t.Fatalf("unexpected url %s", DisplayURL(ln.Addr()))
	}
}

func TestDisplayURLIPv6(t *testing.T) {
	if got := DisplayURL(&net.TCPAddr{IP: net.IPv6loopback, Port: 8000}); got != "http://[::1]:8000" {
		t.Fatalf("DisplayURL = %q", got)
	}
}
