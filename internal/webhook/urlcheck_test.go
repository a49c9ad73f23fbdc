package webhook

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func checkerResolving(ips ...string) *URLChecker {
	resolved := make([]net.IP, len(ips))
	for i, s := range ips {
		resolved[i] = net.ParseIP(s)
	}
	return &URLChecker{
		lookupIP: func(host string) ([]net.IP, error) {
			return resolved, nil
		},
	}
}

func TestURLChecker_Schemes(t *testing.T) {
	c := checkerResolving("93.184.216.34")
	assert.NoError(t, c.Check("https://example.com/hook"))
	assert.ErrorIs(t, c.Check("http://example.com/hook"), ErrInsecureURL)
	assert.ErrorIs(t, c.Check("ftp://example.com/hook"), ErrInvalidURL)
	assert.ErrorIs(t, c.Check("://bad"), ErrInvalidURL)
}

func TestURLChecker_BlockedHosts(t *testing.T) {
	c := checkerResolving("93.184.216.34")
	for _, u := range []string{
		"https://localhost/hook",
		"https://127.0.0.1/hook",
		"https://0.0.0.0/hook",
		"https://[::1]/hook",
		"https://printer.local/hook",
		"https://db.internal/hook",
		"https://10.1.2.3/hook",
		"https://192.168.1.1/hook",
		"https://169.254.169.254/latest/meta-data",
		"https://100.64.0.1/hook",
	} {
		assert.ErrorIs(t, c.Check(u), ErrBlockedHost, u)
	}
}

func TestURLChecker_ResolvedIPs(t *testing.T) {
	// All resolved addresses must be public; one private address taints
	// the hostname (DNS rebinding).
	assert.ErrorIs(t, checkerResolving("93.184.216.34", "10.0.0.5").Check("https://evil.example.com/h"), ErrBlockedHost)
	assert.ErrorIs(t, checkerResolving("127.0.0.1").Check("https://rebind.example.com/h"), ErrBlockedHost)
	assert.NoError(t, checkerResolving("93.184.216.34").Check("https://ok.example.com/h"))
}

func TestURLChecker_AllowInsecure(t *testing.T) {
	c := NewURLChecker(true)
	assert.NoError(t, c.Check("http://127.0.0.1:9999/hook"))
	assert.NoError(t, c.Check("http://localhost/hook"))
	assert.ErrorIs(t, c.Check("gopher://x"), ErrInvalidURL)
}
