package requestchain

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	LayerCookies = "cookies"
	LayerHeaders = "headers"
	LayerCsrf    = "csrf"
)

// CookieJar is the part of the cookie store the cookie layer needs.
type CookieJar interface {
	CookiesFor(u *url.URL) []*http.Cookie
	Merge(u *url.URL, cookies []*http.Cookie)
}

// CookieLayer attaches stored cookies to every request and records the
// cookies set by every response.
func CookieLayer(jar CookieJar) Layer {
	return Layer{
		Name: LayerCookies,
		Wrap: func(next Client) Client {
			return func(ctx context.Context, req *Request) (*Response, error) {
				out := req.clone()
				cookies := jar.CookiesFor(req.Url)
				if len(cookies) > 0 {
					pairs := make([]string, len(cookies))
					for i, c := range cookies {
						pairs[i] = c.Name + "=" + c.Value
					}
					out.Header.Set("Cookie", strings.Join(pairs, "; "))
				}

				res, err := next(ctx, out)
				if err != nil {
					return nil, err
				}
				jar.Merge(req.Url, res.Cookies())
				return res, nil
			}
		},
	}
}

// HeaderLayer sets each of the given headers unless the request already
// carries it.
func HeaderLayer(headers http.Header) Layer {
	headers = headers.Clone()
	return Layer{
		Name: LayerHeaders,
		Wrap: func(next Client) Client {
			return func(ctx context.Context, req *Request) (*Response, error) {
				out := req.clone()
				for k, vals := range headers {
					if out.Header.Get(k) != "" {
						continue
					}
					out.Header[k] = append([]string(nil), vals...)
				}
				return next(ctx, out)
			}
		},
	}
}

// CsrfLayer marks every request as a programmatic front-end call carrying the
// session's CSRF token.
func CsrfLayer(token string) Layer {
	return Layer{
		Name: LayerCsrf,
		Wrap: func(next Client) Client {
			return func(ctx context.Context, req *Request) (*Response, error) {
				out := req.clone()
				out.Header.Set("X-CSRF-Token", token)
				out.Header.Set("X-Requested-With", "XMLHttpRequest")
				return next(ctx, out)
			}
		},
	}
}

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// BrowserHeaders are the static identity headers of a desktop Chrome.
func BrowserHeaders() http.Header {
	return http.Header{
		"User-Agent":      {UserAgent},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7"},
		"Accept-Language": {"en-US,en;q=0.9"},
	}
}
