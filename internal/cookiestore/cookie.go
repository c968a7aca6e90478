package cookiestore

import (
	"net/http"
	"strings"
	"time"
)

// Cookie is a single stored cookie, identified by (Domain, Path, Name).
type Cookie struct {
	Domain string `json:"domain"`
	Path   string `json:"path"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	// zero means a session cookie
	Expires  time.Time `json:"expires,omitempty"`
	HostOnly bool      `json:"host_only,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
	SameSite string    `json:"same_site,omitempty"`
}

type key struct {
	domain string
	path   string
	name   string
}

func (c Cookie) key() key {
	return key{domain: c.Domain, path: c.Path, name: c.Name}
}

func (c Cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c Cookie) matchesDomain(host string) bool {
	if host == c.Domain {
		return true
	}
	return !c.HostOnly && strings.HasSuffix(host, "."+c.Domain)
}

func (c Cookie) matchesPath(path string) bool {
	if path == "" {
		path = "/"
	}
	if path == c.Path {
		return true
	}
	if !strings.HasPrefix(path, c.Path) {
		return false
	}
	return strings.HasSuffix(c.Path, "/") || path[len(c.Path)] == '/'
}

func (c Cookie) httpCookie() *http.Cookie {
	return &http.Cookie{Name: c.Name, Value: c.Value}
}

func sameSiteString(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	}
	return ""
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
}

// defaultPath is the default-path algorithm from RFC 6265 section 5.1.4.
func defaultPath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}
