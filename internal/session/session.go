// Package session is the single entry point for talking to the meal planning
// application as a logged in user.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"mealassist-backend/internal/auth"
	"mealassist-backend/internal/category"
	"mealassist-backend/internal/components/assert"
	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/cookiestore"
	"mealassist-backend/internal/endpoints"
	"mealassist-backend/internal/environment"
	"mealassist-backend/internal/requestchain"
	"mealassist-backend/internal/submission"

	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("mealassist/session")

const (
	report_session_login     = "session.login"
	report_session_meal_plan = "session.get-meal-plan"
)

type Credentials = auth.Credentials

var ErrEmptyCredentials = auth.ErrEmptyCredentials

func NewCredentials(identifier, secret string) (Credentials, error) {
	return auth.NewCredentials(identifier, secret)
}

var (
	ErrNotReady = errors.New("session: not logged in")
	ErrBusy     = errors.New("session: another operation is in progress")
)

// PlanData is the meal plan body as decoded JSON.
type PlanData = any

const DefaultRequestsPerSecond = 2

type Options struct {
	// BaseUrl defaults to endpoints.DefaultBaseUrl.
	BaseUrl string
	Storage cookiestore.Storage
	// Probe defaults to environment.Static(true).
	Probe environment.Probe
	// Classifier defaults to the built in category table.
	Classifier submission.Classifier
	Tel        telemetry.API
	// RequestsPerSecond paces item submissions, negative disables pacing.
	RequestsPerSecond float64
	Transport         requestchain.TransportOptions
}

type Session struct {
	mutex    sync.Mutex
	state    *auth.Session
	flow     *auth.Flow
	pipeline *submission.Pipeline
	ep       endpoints.Endpoints
	tel      telemetry.API
}

func New(creds Credentials, opts Options) (*Session, error) {
	assert.NotNil(opts.Storage, "storage")
	assert.NotNil(opts.Tel, "telemetry")

	if creds.Identifier() == "" {
		return nil, ErrEmptyCredentials
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = endpoints.DefaultBaseUrl
	}
	if opts.Probe == nil {
		opts.Probe = environment.Static(true)
	}
	if opts.Classifier == nil {
		opts.Classifier = category.DefaultClassifier()
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}

	ep, err := endpoints.New(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	state := &auth.Session{
		Credentials: creds,
		Chain:       requestchain.NewChain(requestchain.NewTransport(opts.Transport, opts.Tel)),
	}
	flow := auth.NewFlow(state, auth.Options{
		Endpoints: ep,
		Storage:   opts.Storage,
		Probe:     opts.Probe,
		Tel:       opts.Tel,
	})

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	pipeline := submission.New(submission.Options{
		Endpoints:  ep,
		Classifier: opts.Classifier,
		Chain:      func() requestchain.Chain { return state.Chain },
		Persist:    flow.Persist,
		Limiter:    limiter,
		Tel:        opts.Tel,
	})

	return &Session{
		state:    state,
		flow:     flow,
		pipeline: pipeline,
		ep:       ep,
		tel:      telemetry.NewScopedAPI("session", opts.Tel),
	}, nil
}

func (s *Session) acquire() error {
	if !s.mutex.TryLock() {
		return ErrBusy
	}
	return nil
}

func (s *Session) ready() error {
	if s.flow.State() != auth.Ready {
		return ErrNotReady
	}
	return nil
}

// State is the auth flow state, it does not wait for a running operation.
func (s *Session) State() auth.State {
	return s.flow.State()
}

// Login runs the auth flow until the session can make authenticated calls.
func (s *Session) Login(ctx context.Context) error {
	err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mutex.Unlock()

	ctx, span := tracer.Start(ctx, "session:Login")
	defer span.End()

	err = s.flow.Run(ctx)
	if err != nil {
		s.tel.ReportWarning(report_session_login, err, s.state.Credentials.Identifier())
		return err
	}
	return nil
}

// Reset discards every stored cookie and logs in again.
func (s *Session) Reset(ctx context.Context) error {
	err := s.acquire()
	if err != nil {
		return err
	}
	defer s.mutex.Unlock()

	ctx, span := tracer.Start(ctx, "session:Reset")
	defer span.End()

	return s.flow.Reset(ctx)
}

// SubmitQuery splits text into items and adds each one to the grocery list.
func (s *Session) SubmitQuery(ctx context.Context, text string) (submission.Report, error) {
	err := s.acquire()
	if err != nil {
		return submission.Report{}, err
	}
	defer s.mutex.Unlock()
	err = s.ready()
	if err != nil {
		return submission.Report{}, err
	}

	ctx, span := tracer.Start(ctx, "session:SubmitQuery")
	defer span.End()

	return s.pipeline.SubmitQuery(ctx, text)
}

// SubmitItem adds text to the grocery list as a single item.
func (s *Session) SubmitItem(ctx context.Context, text string) (submission.Result, error) {
	err := s.acquire()
	if err != nil {
		return submission.Result{}, err
	}
	defer s.mutex.Unlock()
	err = s.ready()
	if err != nil {
		return submission.Result{}, err
	}

	ctx, span := tracer.Start(ctx, "session:SubmitItem")
	defer span.End()

	return s.pipeline.SubmitItem(ctx, text)
}

func (s *Session) GetMealPlan(ctx context.Context) (PlanData, error) {
	err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer s.mutex.Unlock()
	err = s.ready()
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "session:GetMealPlan")
	defer span.End()

	res, err := s.state.Chain.Do(ctx, &requestchain.Request{
		Method: http.MethodGet,
		Url:    s.ep.Url(endpoints.MealPlan),
		Header: http.Header{"Accept": {"application/json"}},
	})
	s.flow.Persist(ctx)
	if err != nil {
		s.tel.ReportBroken(report_session_meal_plan, fmt.Errorf("fetch: %w", err))
		return nil, fmt.Errorf("get meal plan: %w", err)
	}
	err = requestchain.CheckStatus(http.MethodGet, res)
	if err != nil {
		s.tel.ReportWarning(report_session_meal_plan, err)
		return nil, err
	}

	var plan PlanData
	err = json.Unmarshal(res.Body, &plan)
	if err != nil {
		s.tel.ReportBroken(report_session_meal_plan, fmt.Errorf("decode: %w", err))
		return nil, fmt.Errorf("get meal plan: decode: %w", err)
	}
	return plan, nil
}
