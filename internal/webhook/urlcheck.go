// Package webhook implements the outbound event subscription system:
// subscription management, delivery fanout and the retrying delivery worker.
package webhook

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrInsecureURL = errors.New("webhook url must use https")
	ErrBlockedHost = errors.New("webhook url points at a private or internal network")
	ErrInvalidURL  = errors.New("webhook url is invalid")
)

// blockedHosts are rejected before DNS resolution.
var blockedHosts = map[string]bool{
	"localhost":     true,
	"0.0.0.0":       true,
	"127.0.0.1":     true,
	"::1":           true,
	"[::1]":         true,
	"ip6-localhost": true,
	"ip6-loopback":  true,
}

// blockedCIDRs supplements the net.IP helpers with ranges they miss: cloud
// metadata, CG-NAT, test nets and reserved space.
var blockedCIDRs = func() []*net.IPNet {
	blocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
		"ff00::/8",
		"0.0.0.0/8",
		"100.64.0.0/10",
		"192.0.0.0/24",
		"192.0.2.0/24",
		"198.18.0.0/15",
		"198.51.100.0/24",
		"203.0.113.0/24",
		"224.0.0.0/4",
		"240.0.0.0/4",
	}
	nets := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, cidr, err := net.ParseCIDR(b)
		if err != nil {
			panic(err)
		}
		nets = append(nets, cidr)
	}
	return nets
}()

// URLChecker validates webhook endpoints against SSRF. Resolution happens on
// registration AND before every delivery attempt, so a DNS record flipped to
// an internal address after registration is still caught.
type URLChecker struct {
	// AllowInsecure permits plain http endpoints and private addresses,
	// for development setups delivering to localhost.
	AllowInsecure bool
	// lookupIP is swappable in tests.
	lookupIP func(host string) ([]net.IP, error)
}

func NewURLChecker(allowInsecure bool) *URLChecker {
	return &URLChecker{AllowInsecure: allowInsecure, lookupIP: net.LookupIP}
}

// Check validates scheme, hostname and every resolved address.
func (c *URLChecker) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !c.AllowInsecure {
			return ErrInsecureURL
		}
	default:
		return ErrInvalidURL
	}

	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return ErrInvalidURL
	}
	if c.AllowInsecure {
		return nil
	}
	if blockedHosts[host] {
		return ErrBlockedHost
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return ErrBlockedHost
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip)
	}

	ips, err := c.lookupIP(host)
	if err != nil {
		return fmt.Errorf("hostname resolution failed: %w", ErrInvalidURL)
	}
	if len(ips) == 0 {
		return ErrInvalidURL
	}
	// A hostname can resolve to several addresses; all must be public.
	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return err
		}
	}
	return nil
}

func checkIP(ip net.IP) error {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return ErrBlockedHost
	}
	for _, cidr := range blockedCIDRs {
		if cidr.Contains(ip) {
			return ErrBlockedHost
		}
	}
	return nil
}
