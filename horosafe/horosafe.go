// Package horosafe holds the input guards for values that reach the file
// system or the headless browser: export origins (SSRF), output paths
// (traversal) and identifiers.
package horosafe

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// ErrSSRF is returned when a URL targets a private/loopback address that
// is not explicitly allowed.
var ErrSSRF = errors.New("horosafe: URL targets a private or loopback address")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("horosafe: only http and https schemes are allowed")

// ErrOriginNotAllowed is returned when an origin is not on the allow-list.
var ErrOriginNotAllowed = errors.New("horosafe: origin not allowed")

// SafePath validates that joining base and userInput does not escape base.
// Returns the cleaned path or ErrPathTraversal.
func SafePath(base, userInput string) (string, error) {
	if strings.Contains(userInput, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+userInput))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) &&
		cleaned != filepath.Clean(base) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// Origin parses rawURL and returns its scheme://host[:port] form.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("horosafe: URL has no host")
	}
	return scheme + "://" + strings.ToLower(u.Host), nil
}

// ValidateOrigin checks the origin a capture job is about to navigate to.
// Origins on the allow-list pass even when they are loopback (the dashboard
// usually captures itself on 127.0.0.1). Anything else must be a public
// address.
func ValidateOrigin(rawURL string, allowed []string) (string, error) {
	origin, err := Origin(rawURL)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		ao, err := Origin(a)
		if err != nil {
			continue
		}
		if ao == origin {
			return origin, nil
		}
	}
	if len(allowed) > 0 {
		return "", fmt.Errorf("%w: %s", ErrOriginNotAllowed, origin)
	}

	u, _ := url.Parse(origin)
	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return "", ErrSSRF
		}
		return origin, nil
	}
	if strings.EqualFold(host, "localhost") {
		return "", ErrSSRF
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		// Unresolvable here means unreachable for the browser too; the
		// navigation will fail with a render error.
		return origin, nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return "", ErrSSRF
		}
	}
	return origin, nil
}

// ValidateIdentifier rejects identifiers unsuitable for file names or URL
// path segments. Allows alphanumeric, underscore, hyphen, and dot.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("horosafe: identifier must not be empty")
	}
	if len(s) > 256 {
		return fmt.Errorf("horosafe: identifier too long (max 256)")
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier", r)
		}
	}
	return nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

var privateRanges = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"fc00::/7",
		"::1/128",
	} {
		if _, n, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}()

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
