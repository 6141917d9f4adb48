package security

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"sync"

	"github.com/manash/splendid/pkg/models"
)

var (
	// Hosts the generation providers serve finished media from.
	allowedHosts = []string{
		"replicate.delivery",
		"storage.googleapis.com",
		"oaidalleapiprodscus.blob.core.windows.net",
		"videos.openai.com",
		"fal.media",
	}
	hostsMu sync.RWMutex

	ErrPrivateIP       = fmt.Errorf("URL resolves to private IP address")
	ErrUntrustedHost   = fmt.Errorf("URL host is not trusted")
	ErrInvalidScheme   = fmt.Errorf("only HTTPS URLs are allowed")
	ErrUnsupportedData = fmt.Errorf("data URL does not carry an image or video")

	skipValidation = false
)

func SetSkipValidation(skip bool) {
	skipValidation = skip
}

// AllowHost trusts an additional media host, typically the backend itself.
func AllowHost(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	hostsMu.Lock()
	defer hostsMu.Unlock()
	for _, h := range allowedHosts {
		if h == host {
			return
		}
	}
	allowedHosts = append(allowedHosts, host)
}

// ValidateMediaURL checks a generated output reference before it is fetched.
// Inline data URLs are accepted when they carry image or video payloads.
func ValidateMediaURL(rawURL string, strictMode bool) error {
	if models.IsDataURL(rawURL) {
		mime, _, err := models.ParseDataURL(rawURL)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(mime, "image/") && !strings.HasPrefix(mime, "video/") {
			return ErrUnsupportedData
		}
		return nil
	}

	if skipValidation {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "https" {
		return ErrInvalidScheme
	}

	host := parsed.Hostname()

	if strictMode && !isAllowedHost(host) {
		return ErrUntrustedHost
	}

	return validateHostIP(host)
}

func isAllowedHost(host string) bool {
	host = strings.ToLower(host)
	hostsMu.RLock()
	defer hostsMu.RUnlock()
	for _, allowed := range allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func validateHostIP(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
	}

	return nil
}

// specialRanges are not covered by the net.IP predicates but must never be
// fetched from: this network, CGNAT, IETF protocol assignments, the
// documentation nets, benchmarking, and multicast plus reserved space.
var specialRanges = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/3"),
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	addr = addr.Unmap()
	for _, p := range specialRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
