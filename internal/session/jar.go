package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"
)

// storedCookie is a cookie as persisted in the session snapshot. The refresh
// credential is an http-only cookie; persisting it lets the refresh flow work
// across process restarts.
type storedCookie struct {
	Origin  string    `json:"origin"`
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires"`
}

func (c storedCookie) key() string {
	return c.Origin + "|" + c.Path + "|" + c.Name
}

func (c storedCookie) expired() bool {
	return !c.Expires.IsZero() && time.Now().After(c.Expires)
}

func (c storedCookie) seed(jar *cookiejar.Jar) {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return
	}
	jar.SetCookies(u, []*http.Cookie{{
		Name:    c.Name,
		Value:   c.Value,
		Path:    c.Path,
		Expires: c.Expires,
	}})
}

// defaultPath is the RFC 6265 section 5.1.4 default-path of a request path,
// the one cookiejar applies to cookies set without a Path attribute.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

// CookieJar returns an http.CookieJar whose contents are persisted with the
// session and cleared by Logout. It also implements client.SessionJar.
func (s *Store) CookieJar() http.CookieJar {
	return persistentJar{s: s}
}

// persistentJar writes through to the store. A scoped jar belongs to session
// gen and ignores the store once that session has ended.
type persistentJar struct {
	s      *Store
	gen    uint64
	scoped bool
}

// ForGeneration returns a view of the jar bound to session gen.
func (j persistentJar) ForGeneration(gen uint64) http.CookieJar {
	return persistentJar{s: j.s, gen: gen, scoped: true}
}

func (j persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s := j.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.scoped && j.gen != s.gen {
		s.logger.Debug("dropping cookies of ended session", "host", u.Host, "gen", j.gen, "current", s.gen)
		return
	}
	s.jar.SetCookies(u, cookies)

	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
	for _, c := range cookies {
		path := c.Path
		if path == "" || path[0] != '/' {
			path = defaultPath(u.Path)
		}
		sc := storedCookie{Origin: origin, Name: c.Name, Value: c.Value, Path: path}
		switch {
		case c.MaxAge > 0:
			sc.Expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			sc.Expires = c.Expires
		}
		if c.MaxAge < 0 || sc.expired() {
			delete(s.cookies, sc.key())
			continue
		}
		s.cookies[sc.key()] = sc
	}
	if err := s.persistLocked(); err != nil {
		s.logger.Warn("persist cookies", "error", err)
	}
}

func (j persistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	if j.scoped && j.gen != j.s.gen {
		return nil
	}
	return j.s.jar.Cookies(u)
}

func (s *Store) cookieListLocked() []storedCookie {
	if len(s.cookies) == 0 {
		return nil
	}
	out := make([]storedCookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		if !c.expired() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}
