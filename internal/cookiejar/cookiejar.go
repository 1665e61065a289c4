// Package cookiejar implements the cookie jar collaborator: it observes
// Set-Cookie headers on responses and injects Cookie headers on
// subsequent requests to matching origins.
package cookiejar

import (
	"net/http"
	"net/url"
	"sync"
)

// Jar is the collaborator interface the HTTP client consults before each
// request and updates after each response.
type Jar interface {
	CookiesFor(u *url.URL) []*http.Cookie
	SetCookies(u *url.URL, cookies []*http.Cookie)
}

// MemJar is an in-process, origin-keyed cookie jar.
type MemJar struct {
	mu    sync.Mutex
	byKey map[string][]*http.Cookie
}

// New returns an empty MemJar.
func New() *MemJar {
	return &MemJar{byKey: make(map[string][]*http.Cookie)}
}

func originKey(u *url.URL) string { return u.Scheme + "://" + u.Host }

// CookiesFor returns the cookies previously observed for u's origin.
func (j *MemJar) CookiesFor(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*http.Cookie(nil), j.byKey[originKey(u)]...)
}

// SetCookies merges newly observed Set-Cookie values into the jar for u's
// origin, replacing any cookie with the same name.
func (j *MemJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	key := originKey(u)
	existing := j.byKey[key]
	for _, c := range cookies {
		replaced := false
		for i, e := range existing {
			if e.Name == c.Name {
				existing[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, c)
		}
	}
	j.byKey[key] = existing
}
