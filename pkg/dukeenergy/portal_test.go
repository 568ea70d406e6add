package dukeenergy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "user@example.com"
	testPassword = "hunter2"
)

// fakePortal imitates the endpoints of the customer portal.
type fakePortal struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	loginStatus string
	accounts    []map[string]any
	cdpID       string
	logins      int
	requests    map[string][]*http.Request
	bodies      map[string][]map[string]any

	meterPage string
	handlers  map[string]http.HandlerFunc
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{
		t:           t,
		loginStatus: "Success",
		accounts: []map[string]any{
			{"AccountNum": "123", "Status": "ACTIVE"},
		},
		cdpID:    "cdp-1",
		requests: make(map[string][]*http.Request),
		bodies:   make(map[string][]map[string]any),
		handlers: make(map[string]http.HandlerFunc),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.serveHTTP))
	t.Cleanup(p.server.Close)
	return p
}

// handle overrides the response for path.
func (p *fakePortal) handle(path string, h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[path] = h
}

func (p *fakePortal) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		panic(http.ErrAbortHandler)
	}

	p.mu.Lock()
	p.requests[r.URL.Path] = append(p.requests[r.URL.Path], r)
	var decoded map[string]any
	if json.Unmarshal(body, &decoded) == nil {
		p.bodies[r.URL.Path] = append(p.bodies[r.URL.Path], decoded)
	}
	h, ok := p.handlers[r.URL.Path]
	p.mu.Unlock()

	if ok {
		h(w, r)
		return
	}

	switch r.URL.Path {
	case "/" + signInPath:
		p.mu.Lock()
		p.logins++
		status := p.loginStatus
		p.mu.Unlock()

		if decoded["loginIdentity"] != testEmail || decoded["password"] != testPassword {
			status = "Failure"
		}
		if status == "Success" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		}
		writeJSON(w, map[string]any{"Status": status, "MessageText": "bad credentials"})
	case "/" + accountSelectorPath:
		res := map[string]any{"Status": "Success", "Accounts": p.accounts}
		if p.cdpID != "" {
			res["CdpId"] = p.cdpID
		}
		writeJSON(w, res)
	case "/" + meterActivePath:
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, p.meterPage)
	default:
		http.Error(w, "not found: "+r.URL.Path, http.StatusNotFound)
	}
}

func (p *fakePortal) loginCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

func (p *fakePortal) lastBody(path string) map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.bodies["/"+path]
	if len(b) == 0 {
		return nil
	}
	return b[len(b)-1]
}

func (p *fakePortal) lastRequest(path string) *http.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.requests["/"+path]
	if len(r) == 0 {
		return nil
	}
	return r[len(r)-1]
}

func (p *fakePortal) newClient(opts ...Option) (*Client, error) {
	opts = append([]Option{
		WithBaseURL(p.server.URL),
		WithLogger(zerolog.Nop()),
	}, opts...)
	return New(context.Background(), testEmail, testPassword, opts...)
}

func (p *fakePortal) mustClient(opts ...Option) *Client {
	c, err := p.newClient(opts...)
	require.NoError(p.t, err)
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}
