package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// ClassifyConnectionError turns a backend connection failure into an
// operator-facing message with remediation hints.
func ClassifyConnectionError(err error, backend, addr string) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || strings.Contains(errStr, "server selection timeout") {
		return fmt.Sprintf("Connection to %s at %s timed out.\n"+
			"  Possible causes:\n"+
			"  - %s is starting up (wait and retry)\n"+
			"  - Network latency or firewall blocking the connection\n"+
			"  Remediation:\n"+
			"  - Verify network connectivity: nc -zv %s", backend, addr, backend, addr)
	}

	var opErr *net.OpError
	if (errors.As(err, &opErr) && opErr.Op == "dial" && errors.Is(opErr.Err, syscall.ECONNREFUSED)) ||
		strings.Contains(errStr, "connection refused") {
		return fmt.Sprintf("Connection refused by %s at %s.\n"+
			"  This usually means %s is not running.\n"+
			"  Remediation:\n"+
			"  - Start it: docker compose up -d %s\n"+
			"  - Verify the address in config.yaml", backend, addr, backend, strings.ToLower(backend))
	}

	if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "lookup") {
		return fmt.Sprintf("Cannot resolve hostname in %s address %s.\n"+
			"  Remediation:\n"+
			"  - Verify the hostname is correct\n"+
			"  - Check DNS configuration", backend, addr)
	}

	if strings.Contains(errStr, "auth") || strings.Contains(errStr, "password") || strings.Contains(errStr, "denied") {
		return fmt.Sprintf("Authentication failed for %s at %s.\n"+
			"  Remediation:\n"+
			"  - Verify the credentials in config.yaml or the secrets provider", backend, addr)
	}

	return fmt.Sprintf("Failed to connect to %s at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure %s is running and accessible", backend, addr, err, backend)
}

// redactURI strips credentials from a connection URI before logging it.
func redactURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "<unparseable uri>"
	}
	if parsed.User != nil {
		parsed.User = url.User("REDACTED")
	}
	return parsed.Redacted()
}
