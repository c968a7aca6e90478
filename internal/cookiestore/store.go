// Package cookiestore keeps the cookies of a single browser-like session in
// memory and mirrors them to a durable record when the environment allows it.
//
// A Store is not safe for concurrent use.
package cookiestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"mealassist-backend/internal/components/assert"
	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/environment"
)

const (
	report_store_load  = "store.load"
	report_store_save  = "store.save"
	report_store_reset = "store.reset"
)

var (
	// ErrStorageCorrupt is returned by Load when the durable record exists
	// but cannot be parsed.
	ErrStorageCorrupt = errors.New("cookie store: stored record is corrupt")
	// ErrNotFound is returned by a Storage when it holds no record.
	ErrNotFound = errors.New("cookie store: no stored record")
)

const recordVersion = 1

type record struct {
	Version int      `json:"version"`
	Cookies []Cookie `json:"cookies"`
}

type Store struct {
	cookies map[key]Cookie
	storage Storage
	probe   environment.Probe
	tel     telemetry.API
	now     func() time.Time
}

// New creates an empty store backed by the given storage.
func New(storage Storage, probe environment.Probe, tel telemetry.API) *Store {
	assert.NotNil(storage, "storage")
	assert.NotNil(probe, "probe")
	assert.NotNil(tel, "telemetry")

	return &Store{
		cookies: make(map[key]Cookie),
		storage: storage,
		probe:   probe,
		tel:     telemetry.NewScopedAPI("cookiestore", tel),
		now:     time.Now,
	}
}

// Load restores a store from durable storage. A missing record or a probe
// reporting no persistent storage both yield an empty store.
func Load(ctx context.Context, storage Storage, probe environment.Probe, tel telemetry.API) (*Store, error) {
	s := New(storage, probe, tel)
	if !probe.PersistentStorage() {
		s.tel.ReportDebug(report_store_load, "persistent storage unavailable, starting empty")
		return s, nil
	}

	data, err := storage.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		s.tel.ReportDebug(report_store_load, "no stored record, starting empty")
		return s, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_store_load, fmt.Errorf("read: %w", err))
		return nil, fmt.Errorf("cookie store: read: %w", err)
	}

	cookies, err := decode(data)
	if err != nil {
		s.tel.ReportBroken(report_store_load, err)
		return nil, err
	}
	for _, c := range cookies {
		s.cookies[c.key()] = c
	}
	s.tel.ReportCount(report_store_load, int64(s.Len()))
	return s, nil
}

// Get returns the cookie with the exact identity key.
func (s *Store) Get(domain, path, name string) (Cookie, bool) {
	c, ok := s.cookies[key{domain: normalizeDomain(domain), path: path, name: name}]
	if !ok || c.expired(s.now()) {
		return Cookie{}, false
	}
	return c, true
}

// Find returns a live cookie with the given name that would be sent to host,
// regardless of its path.
func (s *Store) Find(host, name string) (Cookie, bool) {
	host = normalizeDomain(host)
	now := s.now()
	for _, c := range s.sorted() {
		if c.Name == name && c.matchesDomain(host) && !c.expired(now) {
			return c, true
		}
	}
	return Cookie{}, false
}

// Merge upserts the cookies set by a response to u. Cookies that are already
// expired, or carry a negative Max-Age, delete the stored entry instead.
func (s *Store) Merge(u *url.URL, cookies []*http.Cookie) {
	now := s.now()
	for _, hc := range cookies {
		c := Cookie{
			Domain:   normalizeDomain(hc.Domain),
			Path:     hc.Path,
			Name:     hc.Name,
			Value:    hc.Value,
			Secure:   hc.Secure,
			HttpOnly: hc.HttpOnly,
			SameSite: sameSiteString(hc.SameSite),
		}
		if c.Domain == "" {
			c.Domain = normalizeDomain(u.Hostname())
			c.HostOnly = true
		}
		if c.Path == "" || c.Path[0] != '/' {
			c.Path = defaultPath(u.EscapedPath())
		}

		switch {
		case hc.MaxAge < 0:
			delete(s.cookies, c.key())
			continue
		case hc.MaxAge > 0:
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second).UTC()
		case !hc.Expires.IsZero():
			c.Expires = hc.Expires.UTC()
		}
		if c.expired(now) {
			delete(s.cookies, c.key())
			continue
		}

		s.cookies[c.key()] = c
	}
}

// CookiesFor returns the cookies that should be attached to a request to u,
// most specific path first.
func (s *Store) CookiesFor(u *url.URL) []*http.Cookie {
	host := normalizeDomain(u.Hostname())
	now := s.now()

	var out []*http.Cookie
	for _, c := range s.sorted() {
		if c.expired(now) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		if !c.matchesDomain(host) || !c.matchesPath(u.EscapedPath()) {
			continue
		}
		out = append(out, c.httpCookie())
	}
	return out
}

// All returns every stored cookie in a stable order.
func (s *Store) All() []Cookie {
	return s.sorted()
}

func (s *Store) Len() int {
	return len(s.cookies)
}

func (s *Store) sorted() []Cookie {
	out := make([]Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Path) != len(out[j].Path) {
			return len(out[i].Path) > len(out[j].Path)
		}
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Save writes the store to durable storage. It never fails, errors are
// reported and dropped.
func (s *Store) Save(ctx context.Context) {
	if !s.probe.PersistentStorage() {
		return
	}
	data, err := s.Encode()
	if err != nil {
		s.tel.ReportWarning(report_store_save, fmt.Errorf("encode: %w", err))
		return
	}
	err = s.storage.Write(ctx, data)
	if err != nil {
		s.tel.ReportWarning(report_store_save, fmt.Errorf("write: %w", err))
		return
	}
	s.tel.ReportCount(report_store_save, int64(s.Len()))
}

// Reset deletes the durable record and empties the store.
func (s *Store) Reset(ctx context.Context) {
	s.cookies = make(map[key]Cookie)
	if !s.probe.PersistentStorage() {
		return
	}
	err := s.storage.Delete(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.tel.ReportWarning(report_store_reset, fmt.Errorf("delete: %w", err))
	}
}

// Encode serializes every cookie, expired ones included, to the durable form.
func (s *Store) Encode() ([]byte, error) {
	return json.Marshal(record{
		Version: recordVersion,
		Cookies: s.sorted(),
	})
}

// Decode parses the durable form produced by Encode into a store that is not
// backed by any storage.
func Decode(data []byte) (*Store, error) {
	cookies, err := decode(data)
	if err != nil {
		return nil, err
	}
	s := New(nopStorage{}, environment.Static(false), telemetry.SlogAPI{})
	for _, c := range cookies {
		s.cookies[c.key()] = c
	}
	return s, nil
}

func decode(data []byte) ([]Cookie, error) {
	var r record
	err := json.Unmarshal(data, &r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	if r.Version != recordVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrStorageCorrupt, r.Version)
	}
	for _, c := range r.Cookies {
		if c.Name == "" || c.Domain == "" || c.Path == "" {
			return nil, fmt.Errorf("%w: cookie missing identity", ErrStorageCorrupt)
		}
	}
	return r.Cookies, nil
}
