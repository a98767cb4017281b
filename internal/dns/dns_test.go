// Package dns provides tests for DNS inspection functionality
package dns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// startTestServer runs a UDP DNS server on loopback answering from a fixed zone
func startTestServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		switch q.Name {
		case "example.test.":
			switch q.Qtype {
			case dns.TypeA:
				m.Answer = append(m.Answer,
					&dns.A{Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP("192.0.2.2")},
					&dns.A{Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60}, A: net.ParseIP("192.0.2.1")},
				)
			case dns.TypeAAAA:
				m.Answer = append(m.Answer,
					&dns.AAAA{Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60}, AAAA: net.ParseIP("2001:db8::1")},
				)
			}
		case "www.example.test.":
			if q.Qtype == dns.TypeCNAME {
				m.Answer = append(m.Answer,
					&dns.CNAME{Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 60}, Target: "example.test."},
				)
			}
		default:
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() {
		_ = server.ActivateAndServe()
	}()
	<-started
	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	return pc.LocalAddr().String()
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		expected time.Duration
	}{
		{"default timeout", 0, defaultTimeout},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.timeout)
			if client.timeout != tt.expected {
				t.Errorf("Expected timeout %v, got %v", tt.expected, client.timeout)
			}
			if len(client.dnsServers) == 0 {
				t.Error("Expected at least one DNS server")
			}
		})
	}
}

func TestNewClientExplicitServers(t *testing.T) {
	client := NewClient(time.Second, "127.0.0.1:5353")
	if len(client.dnsServers) != 1 || client.dnsServers[0] != "127.0.0.1:5353" {
		t.Errorf("Expected explicit server, got %v", client.dnsServers)
	}
}

func TestGetSystemDNSServers(t *testing.T) {
	servers := getSystemDNSServers()
	if len(servers) == 0 {
		t.Error("Expected at least one DNS server")
	}

	for _, server := range servers {
		if _, _, err := net.SplitHostPort(server); err != nil {
			t.Errorf("Server %s should include a port: %v", server, err)
		}
	}
}

func TestInspect(t *testing.T) {
	addr := startTestServer(t)
	client := NewClient(2*time.Second, addr)

	info := client.Inspect(context.Background(), "example.test")

	if info.Error != "" {
		t.Fatalf("Unexpected error: %s", info.Error)
	}
	if len(info.A) != 2 || info.A[0] != "192.0.2.1" || info.A[1] != "192.0.2.2" {
		t.Errorf("Expected sorted A records, got %v", info.A)
	}
	if len(info.AAAA) != 1 || info.AAAA[0] != "2001:db8::1" {
		t.Errorf("Expected AAAA record, got %v", info.AAAA)
	}
	if info.CNAME != "" {
		t.Errorf("Expected no CNAME, got %q", info.CNAME)
	}
	if info.Server != addr {
		t.Errorf("Expected server %s, got %s", addr, info.Server)
	}
}

func TestInspectCNAME(t *testing.T) {
	addr := startTestServer(t)
	client := NewClient(2*time.Second, addr)

	cname, server, err := client.QueryCNAME(context.Background(), "www.example.test")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cname != "example.test" {
		t.Errorf("Expected CNAME example.test, got %q", cname)
	}
	if server != addr {
		t.Errorf("Expected server %s, got %s", addr, server)
	}
}

func TestInspectNXDOMAIN(t *testing.T) {
	addr := startTestServer(t)
	client := NewClient(2*time.Second, addr)

	info := client.Inspect(context.Background(), "missing.test")

	if info.Error != "domain not found (NXDOMAIN)" {
		t.Errorf("Expected NXDOMAIN error, got %q", info.Error)
	}
	if len(info.A) != 0 || len(info.AAAA) != 0 {
		t.Errorf("Expected no records, got A=%v AAAA=%v", info.A, info.AAAA)
	}
}

func TestInspectIPLiteral(t *testing.T) {
	// No server is reachable here; an IP literal must not trigger a query
	client := NewClient(time.Second, "127.0.0.1:1")

	tests := []struct {
		host string
		a    int
		aaaa int
	}{
		{"192.0.2.10", 1, 0},
		{"2001:db8::2", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			info := client.Inspect(context.Background(), tt.host)
			if len(info.A) != tt.a || len(info.AAAA) != tt.aaaa {
				t.Errorf("Expected %d A and %d AAAA, got %v %v", tt.a, tt.aaaa, info.A, info.AAAA)
			}
			if info.Error != "" {
				t.Errorf("Expected no error, got %q", info.Error)
			}
		})
	}
}

func TestInspectCancelled(t *testing.T) {
	client := NewClient(time.Second, "127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	info := client.Inspect(ctx, "example.test")
	if info.Error == "" {
		t.Error("Expected an error for a cancelled lookup")
	}
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"sentinel", errNameNotFound, true},
		{"NXDOMAIN error", &testError{"NXDOMAIN"}, true},
		{"no such host error", &testError{"no such host"}, true},
		{"Name Error", &testError{"Name Error"}, true},
		{"other error", &testError{"connection refused"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isNotFoundError(tt.err)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"NXDOMAIN", errors.New("DNS query failed: NXDOMAIN"), "domain not found (NXDOMAIN)"},
		{"SERVFAIL", &testError{"SERVFAIL"}, "server failure (SERVFAIL)"},
		{"REFUSED", &testError{"REFUSED"}, "query refused"},
		{"no such host", &testError{"no such host"}, "host not found"},
		{"i/o timeout", &testError{"i/o timeout"}, "DNS query timeout"},
		{"connection refused", &testError{"connection refused"}, "DNS server connection refused"},
		{"unknown error", &testError{"unknown error"}, "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := categorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

// testError is a simple error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
