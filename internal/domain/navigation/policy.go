// Package navigation decides what a wrapper does with a navigation target:
// permit it in place, redirect it into a new tab, hand it to the platform's
// default handler, or cancel it. The decision is a pure function of the
// target address and the wrapper configuration; it carries no state and is
// invoked from the rendering surface's navigation callback, never from the
// tab manager itself.
package navigation

import (
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sitewrap/backend/internal/wrapper"
)

// Decision is the outcome of a navigation policy check.
type Decision string

const (
	// PermitInPlace lets the current surface load the target.
	PermitInPlace Decision = "permit"
	// OpenNewTab redirects the target into a new background tab.
	OpenNewTab Decision = "new_tab"
	// OpenExternal hands the target to the platform's default handler.
	OpenExternal Decision = "external"
	// Cancel drops the navigation.
	Cancel Decision = "cancel"
)

// Decide evaluates a navigation target against the wrapper configuration.
//
// Targets inside the home domain (or a subdomain of it) are always permitted
// in place. Targets matching the allow-list are treated like home-domain
// navigation. Everything else follows the configured external-link policy.
// Unparseable and non-http targets are cancelled.
func Decide(target string, cfg *wrapper.Config) Decision {
	u, err := url.Parse(target)
	if err != nil {
		return Cancel
	}

	switch u.Scheme {
	case "http", "https":
	case "":
		// Relative navigation stays on the current surface.
		return PermitInPlace
	default:
		return Cancel
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Cancel
	}

	if WithinHomeDomain(host, cfg.HomeHost()) {
		return PermitInPlace
	}

	if matchesAllowList(u, cfg.AllowedPatterns) {
		return PermitInPlace
	}

	switch cfg.LinkPolicy {
	case wrapper.LinkAllow:
		return PermitInPlace
	case wrapper.LinkOpenNewTab:
		return OpenNewTab
	case wrapper.LinkBlock:
		return Cancel
	default:
		return OpenExternal
	}
}

// WithinHomeDomain reports whether host is the home host or a subdomain of it.
func WithinHomeDomain(host, home string) bool {
	if home == "" {
		return false
	}
	host = strings.ToLower(host)
	return host == home || strings.HasSuffix(host, "."+home)
}

// matchesAllowList matches the target's host and host/path against the
// configured doublestar patterns. An empty list allows nothing extra here;
// the "empty = allow all" rule applies to the wrapper's own domain checks,
// which have already passed by the time the link policy is consulted.
func matchesAllowList(u *url.URL, patterns []string) bool {
	host := strings.ToLower(u.Hostname())
	hostPath := host + u.EscapedPath()

	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, host); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, hostPath); err == nil && ok {
			return true
		}
	}
	return false
}
