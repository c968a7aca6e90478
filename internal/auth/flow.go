// Package auth drives a browser-like session from an empty cookie jar to a
// state where authenticated API calls can be made.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"mealassist-backend/internal/components/assert"
	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/cookiestore"
	"mealassist-backend/internal/endpoints"
	"mealassist-backend/internal/environment"
	"mealassist-backend/internal/requestchain"
	"mealassist-backend/pkg/htmlutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mealassist/auth")

const (
	report_flow_run   = "flow.run"
	report_flow_login = "flow.login"
	report_flow_csrf  = "flow.csrf"
	report_flow_reset = "flow.reset"
)

var (
	ErrEmptyCredentials     = errors.New("auth: identifier and secret must both be non-empty")
	ErrTokenExtraction      = errors.New("auth: anti-forgery token missing from login page")
	ErrAuthenticationFailed = errors.New("auth: no auth cookie after login attempt")
	ErrCsrf                 = errors.New("auth: csrf token missing from authenticated page")
)

type Credentials struct {
	identifier string
	secret     string
}

func NewCredentials(identifier, secret string) (Credentials, error) {
	if identifier == "" || secret == "" {
		return Credentials{}, ErrEmptyCredentials
	}
	return Credentials{identifier: identifier, secret: secret}, nil
}

func (c Credentials) Identifier() string {
	return c.identifier
}

// Session is the state the flow mutates. It is owned by a single caller.
type Session struct {
	Credentials Credentials
	// CsrfToken is empty until learned.
	CsrfToken string
	Chain     requestchain.Chain
}

type Options struct {
	Endpoints endpoints.Endpoints
	Storage   cookiestore.Storage
	Probe     environment.Probe
	Tel       telemetry.API
}

type Flow struct {
	session *Session
	opts    Options
	tel     telemetry.API

	store   *cookiestore.Store
	state   State
	trace   []State
	failure error
}

func NewFlow(session *Session, opts Options) *Flow {
	assert.NotNil(session, "session")
	assert.NotNil(opts.Storage, "storage")
	assert.NotNil(opts.Probe, "probe")
	assert.NotNil(opts.Tel, "telemetry")

	return &Flow{
		session: session,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("auth", opts.Tel),
		state:   Uninitialized,
	}
}

func (f *Flow) State() State {
	return f.state
}

// Failure is the error that moved the flow into Failed, if any.
func (f *Flow) Failure() error {
	return f.failure
}

// Trace lists the states visited by the last Run, in order.
func (f *Flow) Trace() []State {
	return append([]State(nil), f.trace...)
}

// Store is the cookie store of the session, nil before the first Run.
func (f *Flow) Store() *cookiestore.Store {
	return f.store
}

// Persist saves the cookie store, if there is one.
func (f *Flow) Persist(ctx context.Context) {
	if f.store != nil {
		f.store.Save(ctx)
	}
}

func (f *Flow) enter(ctx context.Context, s State) {
	f.state = s
	f.trace = append(f.trace, s)
	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(
		attribute.String("state", s.String()),
	))
}

func (f *Flow) fail(ctx context.Context, err error) error {
	f.enter(ctx, Failed)
	f.failure = err

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Run advances the flow until the session is Ready or a failure occurs.
func (f *Flow) Run(ctx context.Context) error {
	if f.state == Ready && f.session.CsrfToken != "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "flow:Run")
	defer span.End()

	f.trace = nil
	f.failure = nil

	if f.store == nil {
		store, err := cookiestore.Load(ctx, f.opts.Storage, f.opts.Probe, f.opts.Tel)
		if err != nil {
			f.tel.ReportBroken(report_flow_run, fmt.Errorf("load cookie store: %w", err))
			return f.fail(ctx, err)
		}
		f.store = store
	}
	if !f.session.Chain.Has(requestchain.LayerCookies) {
		f.session.Chain = f.session.Chain.Bare().
			With(requestchain.CookieLayer(f.store)).
			With(requestchain.HeaderLayer(requestchain.BrowserHeaders()))
	}
	f.enter(ctx, JarReady)

	if f.hasAuthCookie() {
		f.enter(ctx, HasAuthCookie)
	} else {
		f.enter(ctx, NeedsLogin)
		err := f.login(ctx)
		if err != nil {
			return f.fail(ctx, err)
		}
		f.enter(ctx, LoginAttempted)

		if !f.hasAuthCookie() {
			f.tel.ReportWarning(report_flow_login, ErrAuthenticationFailed, f.session.Credentials.Identifier())
			return f.fail(ctx, ErrAuthenticationFailed)
		}
		f.enter(ctx, HasAuthCookie)
	}

	if f.session.CsrfToken != "" {
		if !f.session.Chain.Has(requestchain.LayerCsrf) {
			f.session.Chain = f.session.Chain.With(requestchain.CsrfLayer(f.session.CsrfToken))
		}
		f.enter(ctx, Ready)
		return nil
	}

	f.enter(ctx, CsrfPending)
	token, err := f.fetchCsrfToken(ctx)
	if err != nil {
		return f.fail(ctx, err)
	}
	f.session.CsrfToken = token
	f.session.Chain = f.session.Chain.With(requestchain.CsrfLayer(token))
	f.enter(ctx, Ready)
	return nil
}

// Reset forgets the session entirely and logs in from scratch.
func (f *Flow) Reset(ctx context.Context) error {
	f.tel.ReportDebug(report_flow_reset)

	store := f.store
	if store == nil {
		store = cookiestore.New(f.opts.Storage, f.opts.Probe, f.opts.Tel)
	}
	store.Reset(ctx)

	// The emptied store stays in use. Reloading could bring back a record
	// whose delete failed.
	f.store = store
	f.session.Chain = f.session.Chain.Bare()
	f.session.CsrfToken = ""
	f.state = Uninitialized
	f.trace = nil
	f.failure = nil

	return f.Run(ctx)
}

func (f *Flow) hasAuthCookie() bool {
	_, ok := f.store.Find(f.opts.Endpoints.Host(), endpoints.AuthCookie)
	return ok
}

func (f *Flow) login(ctx context.Context) error {
	loginUrl := f.opts.Endpoints.Url(endpoints.LoginPage)

	res, err := f.session.Chain.Get(ctx, loginUrl)
	f.store.Save(ctx)
	if err != nil {
		f.tel.ReportBroken(report_flow_login, fmt.Errorf("fetch login page: %w", err))
		return fmt.Errorf("auth: fetch login page: %w", err)
	}
	doc, err := htmlutil.ParseDocument(res.Body)
	if err != nil {
		f.tel.ReportBroken(report_flow_login, err)
		return fmt.Errorf("%w: %w", ErrTokenExtraction, err)
	}
	token := htmlutil.InputValue(doc, endpoints.AntiForgeryField)
	if token == "" {
		f.tel.ReportBroken(report_flow_login, ErrTokenExtraction, res.Status)
		return fmt.Errorf("%w (status %d)", ErrTokenExtraction, res.Status)
	}

	form := url.Values{
		endpoints.AntiForgeryField: {token},
		"user[email]":              {f.session.Credentials.identifier},
		"user[password]":           {f.session.Credentials.secret},
		"user[remember_me]":        {"1"},
	}
	header := http.Header{
		"Origin":  {f.opts.Endpoints.Origin()},
		"Referer": {loginUrl.String()},
	}
	res, err = f.session.Chain.PostForm(ctx, f.opts.Endpoints.Url(endpoints.Sessions), form, header)
	if err == nil {
		err = requestchain.CheckStatus(http.MethodPost, res)
	}
	f.swallowLoginSubmitError(err)
	f.store.Save(ctx)
	return nil
}

// swallowLoginSubmitError is the single place that ignores the outcome of the
// credential submission. The sessions endpoint answers successful logins with
// an error status, whether the login worked is decided by the auth cookie
// check that follows.
func (f *Flow) swallowLoginSubmitError(err error) {
	if err == nil {
		return
	}
	f.tel.ReportDebug(report_flow_login, "ignored login submission error", err)
}

func (f *Flow) fetchCsrfToken(ctx context.Context) (string, error) {
	res, err := f.session.Chain.Get(ctx, f.opts.Endpoints.Url(endpoints.Root))
	f.store.Save(ctx)
	if err != nil {
		f.tel.ReportBroken(report_flow_csrf, fmt.Errorf("fetch root page: %w", err))
		return "", fmt.Errorf("auth: fetch root page: %w", err)
	}
	doc, err := htmlutil.ParseDocument(res.Body)
	if err != nil {
		f.tel.ReportBroken(report_flow_csrf, err)
		return "", fmt.Errorf("%w: %w", ErrCsrf, err)
	}
	token := htmlutil.MetaContent(doc, endpoints.CsrfMeta)
	if token == "" {
		f.tel.ReportBroken(report_flow_csrf, ErrCsrf, res.Status)
		return "", fmt.Errorf("%w (status %d)", ErrCsrf, res.Status)
	}
	return token, nil
}
