package service

import "testing"

func TestParseClientIP(t *testing.T) {
	tests := []struct {
		name         string
		forwardedFor string
		realIP       string
		expected     string
	}{
		{"first forwarded hop", "1.2.3.4, 5.6.7.8", "", "1.2.3.4"},
		{"single forwarded", "10.0.0.1", "9.9.9.9", "10.0.0.1"},
		{"falls back to real ip", "", "192.168.1.20", "192.168.1.20"},
		{"ipv6", "2001:db8::1, 10.0.0.1", "", "2001:db8::1"},
		{"literal unknown", "unknown", "", UnknownIP},
		{"empty", "", "", UnknownIP},
		{"hostname", "proxy.internal", "", UnknownIP},
		{"hex without colon", "deadbeef", "", UnknownIP},
		{"loose octets accepted", "999.1.1.1", "", "999.1.1.1"},
		{"whitespace trimmed", "  8.8.8.8 ,1.1.1.1", "", "8.8.8.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseClientIP(tt.forwardedFor, tt.realIP); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
