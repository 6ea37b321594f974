package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes appended to transport failure reasons as " dns=<class>".
const (
	DNSResolves    = "RESOLVES"
	DNSNXDomain    = "NXDOMAIN"
	DNSNoAddress   = "NO_A_RECORD"
	DNSUnavailable = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName = "INVALID_NAME"
)

// maxDNSWait caps the diagnosis even when the check has more budget left.
const maxDNSWait = 3 * time.Second

// classifyDNS says why host may be unreachable. It waits no longer than ctx
// allows, and never more than maxDNSWait.
func classifyDNS(ctx context.Context, host string) string {
	host = strings.TrimSpace(host)
	if net.ParseIP(host) != nil {
		return DNSResolves
	}
	if host == "" || strings.Contains(host, "://") {
		return DNSInvalidName
	}
	if ctx.Err() != nil {
		return DNSUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, maxDNSWait)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err == nil {
		if len(addrs) > 0 {
			return DNSResolves
		}
		return DNSNoAddress
	}
	var de *net.DNSError
	if !errors.As(err, &de) || !de.IsNotFound {
		return DNSUnavailable
	}
	// no address: the name still exists if it is delegated
	if ns, err := net.DefaultResolver.LookupNS(ctx, host); err == nil && len(ns) > 0 {
		return DNSNoAddress
	}
	return DNSNXDomain
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
