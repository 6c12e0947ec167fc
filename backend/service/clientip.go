package service

import (
	"regexp"
	"strings"
)

// UnknownIP is recorded when no usable client address was supplied.
const UnknownIP = "unknown"

var (
	ipv4Shape = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
	ipv6Shape = regexp.MustCompile(`^[0-9A-Fa-f:]+$`)
)

// ParseClientIP picks the originating address from the proxy headers.
// Only the shape is checked; octet ranges are not.
func ParseClientIP(forwardedFor, realIP string) string {
	raw := forwardedFor
	if strings.TrimSpace(raw) == "" {
		raw = realIP
	}
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)

	switch {
	case ipv4Shape.MatchString(first):
		return first
	case strings.Contains(first, ":") && ipv6Shape.MatchString(first):
		return first
	default:
		return UnknownIP
	}
}
