package requestchain

import (
	"context"
	"net/http"
	"time"

	"mealassist-backend/internal/components/assert"
	"mealassist-backend/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

type TransportOptions struct {
	Timeout time.Duration
	// disables the cloudflare fingerprint workaround, used against local test servers
	PlainTransport bool
}

// NewTransport creates the base client, a resty client without a cookie jar
// that returns redirects to the caller instead of following them.
func NewTransport(opts TransportOptions, tel telemetry.API) Client {
	assert.NotNil(tel, "telemetry")

	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(nil)
	if !opts.PlainTransport {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	httpClient.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(httpClient, telemetry.NewScopedAPI("transport", tel))

	return func(ctx context.Context, req *Request) (*Response, error) {
		r := httpClient.R().SetContext(ctx)
		for k, vals := range req.Header {
			r.Header[k] = append([]string(nil), vals...)
		}
		if len(req.Body) > 0 {
			r.SetBody(req.Body)
		}

		res, err := r.Execute(req.Method, req.Url.String())
		if err != nil {
			return nil, err
		}
		return &Response{
			Status: res.StatusCode(),
			Header: res.Header(),
			Body:   res.Body(),
			Url:    req.Url,
		}, nil
	}
}
