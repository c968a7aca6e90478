// Package requestchain builds request-executing functions by layering
// cross-cutting behavior (cookies, identity headers, CSRF) over a base
// transport.
package requestchain

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"mealassist-backend/pkg/htmlutil"
)

type Request struct {
	Method string
	Url    *url.URL
	Header http.Header
	Body   []byte
}

func (r *Request) clone() *Request {
	out := *r
	if r.Header != nil {
		out.Header = r.Header.Clone()
	} else {
		out.Header = http.Header{}
	}
	return &out
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// Url is the url that produced this response, after redirects.
	Url *url.URL
}

// Cookies parses the Set-Cookie headers of the response.
func (r *Response) Cookies() []*http.Cookie {
	return (&http.Response{Header: r.Header}).Cookies()
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client executes a single request, it does not follow redirects.
type Client func(ctx context.Context, req *Request) (*Response, error)

// Layer wraps a client, producing a new one. A layer may change the outgoing
// request and observe the response but must hand the response back unchanged.
type Layer struct {
	Name string
	Wrap func(next Client) Client
}

// Wrap applies a single layer to a client.
func Wrap(base Client, layer Layer) Client {
	return layer.Wrap(base)
}

// Chain is an immutable composition of a base transport and an ordered list
// of layers, the first layer sits closest to the transport.
type Chain struct {
	base   Client
	layers []Layer
	client Client
}

func NewChain(base Client, layers ...Layer) Chain {
	c := Chain{base: base, client: base}
	for _, l := range layers {
		c = c.With(l)
	}
	return c
}

// With returns a new chain with layer wrapped around the current one.
func (c Chain) With(layer Layer) Chain {
	return Chain{
		base:   c.base,
		layers: append(slices.Clone(c.layers), layer),
		client: Wrap(c.client, layer),
	}
}

// Bare returns a chain holding only the base transport.
func (c Chain) Bare() Chain {
	return Chain{base: c.base, client: c.base}
}

// Layers lists layer names from the innermost outwards.
func (c Chain) Layers() []string {
	names := make([]string, len(c.layers))
	for i, l := range c.layers {
		names[i] = l.Name
	}
	return names
}

func (c Chain) Has(name string) bool {
	return slices.Contains(c.Layers(), name)
}

const maxRedirects = 10

// Do sends the request through every layer, following same-host redirects so
// that each hop passes through the layers too.
func (c Chain) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.client == nil {
		return nil, fmt.Errorf("request chain: no transport")
	}

	current := req
	for hops := 0; ; hops++ {
		res, err := c.client(ctx, current)
		if err != nil {
			return nil, err
		}
		next, ok := redirectTarget(current, res)
		if !ok {
			return res, nil
		}
		if hops >= maxRedirects {
			return nil, fmt.Errorf("request chain: stopped after %d redirects", maxRedirects)
		}
		current = next
	}
}

func (c Chain) Get(ctx context.Context, u *url.URL) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Url:    u,
		Header: http.Header{},
	})
}

// PostForm sends a form-encoded POST, extra headers are added to the request.
func (c Chain) PostForm(ctx context.Context, u *url.URL, form url.Values, extra http.Header) (*Response, error) {
	header := http.Header{}
	for k, vals := range extra {
		header[k] = slices.Clone(vals)
	}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Url:    u,
		Header: header,
		Body:   []byte(form.Encode()),
	})
}

func redirectTarget(req *Request, res *Response) (*Request, bool) {
	switch res.Status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
	default:
		return nil, false
	}

	location := res.Header.Get("Location")
	if location == "" {
		return nil, false
	}
	target, err := req.Url.Parse(location)
	if err != nil {
		return nil, false
	}
	if !strings.EqualFold(target.Hostname(), req.Url.Hostname()) {
		return nil, false
	}

	next := req.clone()
	next.Url = target
	if res.Status == http.StatusTemporaryRedirect || res.Status == http.StatusPermanentRedirect {
		return next, true
	}
	if next.Method != http.MethodGet && next.Method != http.MethodHead {
		next.Method = http.MethodGet
		next.Body = nil
		next.Header.Del("Content-Type")
		next.Header.Del("Content-Length")
	}
	return next, true
}

// UpstreamRejected is returned when the target answers a data request with a
// non-success status.
type UpstreamRejected struct {
	Method string
	Url    string
	Status int
	Body   string
}

func (e *UpstreamRejected) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("upstream rejected %s %s with status %d: %s", e.Method, e.Url, e.Status, body)
}

// CheckStatus turns a non-2xx response into an *UpstreamRejected. Html error
// pages are reduced to their text.
func CheckStatus(method string, res *Response) error {
	if res.OK() {
		return nil
	}
	var target string
	if res.Url != nil {
		target = res.Url.String()
	}
	body := string(res.Body)
	if res.Header != nil && strings.HasPrefix(res.Header.Get("Content-Type"), "text/html") {
		body = htmlutil.PlainText(res.Body)
	}
	return &UpstreamRejected{
		Method: method,
		Url:    target,
		Status: res.Status,
		Body:   body,
	}
}
