package erp

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// SessionStore holds the gateway session cookies and when they were obtained.
// It is created once per process and shared by every post.
type SessionStore struct {
	mu                  sync.Mutex
	jar                 *cookiejar.Jar
	lastAuthenticatedAt time.Time
}

// NewSessionStore creates an empty store
func NewSessionStore() *SessionStore {
	return &SessionStore{jar: newJar()}
}

func newJar() *cookiejar.Jar {
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// Install replaces the held session with cookies for target and records the
// authentication time. Cookies from an earlier login are discarded.
// Domain and path attributes are dropped so that a session issued by the auth
// host is sent to the offer host.
func (s *SessionStore) Install(target *url.URL, cookies []*http.Cookie, now time.Time) {
	scoped := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		scoped = append(scoped, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = newJar()
	s.jar.SetCookies(target, scoped)
	s.lastAuthenticatedAt = now
}

// Valid reports whether target has a recognised session cookie that was
// obtained less than ttl ago
func (s *SessionStore) Valid(target *url.URL, names []string, ttl time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastAuthenticatedAt.IsZero() || now.Sub(s.lastAuthenticatedAt) >= ttl {
		return false
	}
	for _, c := range s.jar.Cookies(target) {
		for _, name := range names {
			if strings.EqualFold(c.Name, name) && c.Value != "" {
				return true
			}
		}
	}
	return false
}

// CookieHeader renders the cookies held for target as a Cookie header value
func (s *SessionStore) CookieHeader(target *url.URL) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies := s.jar.Cookies(target)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// LastAuthenticatedAt returns when the session was obtained, zero if never
func (s *SessionStore) LastAuthenticatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuthenticatedAt
}

// Invalidate forgets the session so the next post re-authenticates
func (s *SessionStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = newJar()
	s.lastAuthenticatedAt = time.Time{}
}
