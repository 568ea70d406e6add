package dukeenergy

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Version is reported in the User-Agent header.
const Version = "0.1.0"

// userAgent returns the User-Agent sent on every request, e.g.
// "go/1.24 dukescraper/0.1.0".
func userAgent() string {
	return "go/" + goVersion(runtime.Version()) + " dukescraper/" + Version
}

// goVersion reduces a runtime version like "go1.24.3" to "1.24".
func goVersion(v string) string {
	v = strings.TrimPrefix(v, "go")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}

// headerTransport sets the client's fixed headers on every request unless the
// request already carries a value for them.
type headerTransport struct {
	transport http.RoundTripper
	headers   http.Header
}

func newHeaderTransport(base http.RoundTripper) *headerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	h := make(http.Header)
	h.Set("User-Agent", userAgent())
	h.Set("Content-Type", "application/json")
	return &headerTransport{
		transport: base,
		headers:   h,
	}
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone so the caller's request headers are left untouched
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = append([]string(nil), v...)
		}
	}
	return t.transport.RoundTrip(req)
}

// sessionJar is the cookie store of one session. It remembers which URLs have
// set cookies so that "does the session hold any cookie" can be answered
// regardless of the path the portal scoped them to.
type sessionJar struct {
	mu   sync.Mutex
	jar  *cookiejar.Jar
	seen map[string]*url.URL
}

func newSessionJar() *sessionJar {
	j := &sessionJar{}
	j.reset()
	return j
}

func (j *sessionJar) reset() {
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	j.jar = jar
	j.seen = make(map[string]*url.URL)
}

// Clear drops every cookie in the session.
func (j *sessionJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reset()
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	if len(cookies) > 0 {
		j.seen[u.String()] = u
	}
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// All returns every unexpired cookie held by the session, deduplicated by name.
func (j *sessionJar) All() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*http.Cookie
	names := make(map[string]bool)
	for _, u := range j.seen {
		for _, c := range j.jar.Cookies(u) {
			if names[c.Name] {
				continue
			}
			names[c.Name] = true
			out = append(out, c)
		}
	}
	return out
}
