package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	applog "allowance/internal/log"
)

var (
	fallbackHosts = []string{"127.0.0.1", "0.0.0.0", "::1"}
	fallbackPorts = []string{"8000", "8080", "3000", "5173", "5500", "9000", "0"}
)

// Listen binds the first free address, trying host then the fallback
// hosts, and for each host port then the fallback ports. Port 0 lets the
// kernel pick, so the loop only fails when no host is bindable at all.
func Listen(host, port string, logger *slog.Logger) (net.Listener, error) {
	return bind(candidates(host, port), net.Listen, applog.WithComponent(logger, applog.ComponentHTTP))
}

// candidates lists host:port pairs in try order without duplicates.
func candidates(host, port string) []string {
	hosts := dedupe(append([]string{host}, fallbackHosts...))
	ports := dedupe(append([]string{port}, fallbackPorts...))

	out := make([]string, 0, len(hosts)*len(ports))
	for _, h := range hosts {
		for _, p := range ports {
			out = append(out, net.JoinHostPort(h, p))
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func bind(addrs []string, listen func(network, address string) (net.Listener, error), logger *slog.Logger) (net.Listener, error) {
	var errs []error
	for _, addr := range addrs {
		ln, err := listen("tcp", addr)
		if err == nil {
			logger.Info("Listening", "address", ln.Addr().String(), "url", DisplayURL(ln.Addr()))
			return ln, nil
		}
		logger.Debug("Bind failed, trying next address", "address", addr, applog.FieldError, err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no address to bind")
	}
	return nil, fmt.Errorf("could not bind any of %d addresses; set ALLOWANCE_HOST/ALLOWANCE_PORT: %w", len(addrs), errs[len(errs)-1])
}

// DisplayURL is the URL a local browser should open for addr. Wildcard
// binds are shown as loopback.
func DisplayURL(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "http://" + addr.String()
	}
	host := tcp.IP.String()
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(tcp.Port))
}
