package prober

import "testing"

func TestParseEchoOutputLinux(t *testing.T) {
	out := `PING 1.1.1.1 (1.1.1.1) 56(84) bytes of data.
64 bytes from 1.1.1.1: icmp_seq=1 ttl=59 time=12.3 ms

--- 1.1.1.1 ping statistics ---
1 packets transmitted, 1 received, 0% packet loss, time 0ms`

	p := parseEchoOutput(out)
	if p.LatencyMs == nil || *p.LatencyMs != 12.3 {
		t.Fatalf("expected latency 12.3, got %v", p.LatencyMs)
	}
	if p.TTL == nil || *p.TTL != 59 {
		t.Fatalf("expected ttl 59, got %v", p.TTL)
	}
	if p.Bytes == nil || *p.Bytes != 64 {
		t.Fatalf("expected bytes 64, got %v", p.Bytes)
	}
}

func TestParseEchoOutputWindows(t *testing.T) {
	out := `Pinging 8.8.8.8 with 32 bytes of data:
Reply from 8.8.8.8: bytes=32 time=14ms TTL=118

Ping statistics for 8.8.8.8:
    Packets: Sent = 1, Received = 1, Lost = 0 (0% loss)`

	p := parseEchoOutput(out)
	if p.LatencyMs == nil || *p.LatencyMs != 14 {
		t.Fatalf("expected latency 14, got %v", p.LatencyMs)
	}
	if p.TTL == nil || *p.TTL != 118 {
		t.Fatalf("expected ttl 118, got %v", p.TTL)
	}
}

func TestParseEchoOutputMissingFieldsAreAbsent(t *testing.T) {
	p := parseEchoOutput("Request timed out.")
	if p.LatencyMs != nil || p.TTL != nil || p.Bytes != nil {
		t.Fatalf("expected all fields absent, got %+v", p)
	}
}
