package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"mealassist-backend/internal/auth"
	"mealassist-backend/internal/category"
	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/cookiestore"
	"mealassist-backend/internal/environment"
	"mealassist-backend/internal/fakeapp"
	"mealassist-backend/internal/requestchain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "cook@example.com"
	testPassword = "hunter2"
)

// countingStorage counts every durable operation.
type countingStorage struct {
	mutex   sync.Mutex
	record  []byte
	reads   int
	writes  int
	deletes int
}

func (c *countingStorage) Read(context.Context) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reads++
	if c.record == nil {
		return nil, cookiestore.ErrNotFound
	}
	return c.record, nil
}

func (c *countingStorage) Write(_ context.Context, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.writes++
	c.record = data
	return nil
}

func (c *countingStorage) Delete(context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.deletes++
	c.record = nil
	return nil
}

func newTestSession(t *testing.T, app *fakeapp.Server, storage cookiestore.Storage, probe environment.Probe) *Session {
	creds, err := NewCredentials(testEmail, testPassword)
	require.NoError(t, err)

	s, err := New(creds, Options{
		BaseUrl:           app.URL,
		Storage:           storage,
		Probe:             probe,
		Tel:               &telemetry.Recorder{},
		RequestsPerSecond: -1,
		Transport:         requestchain.TransportOptions{PlainTransport: true},
	})
	require.NoError(t, err)
	return s
}

func newApp(t *testing.T) *fakeapp.Server {
	app := fakeapp.New(testEmail, testPassword)
	t.Cleanup(app.Close)
	return app
}

func TestNew(t *testing.T) {
	_, err := NewCredentials("", "")
	require.ErrorIs(t, err, ErrEmptyCredentials)

	_, err = New(Credentials{}, Options{Storage: &countingStorage{}, Tel: &telemetry.Recorder{}})
	require.ErrorIs(t, err, ErrEmptyCredentials)

	creds, err := NewCredentials(testEmail, testPassword)
	require.NoError(t, err)
	_, err = New(creds, Options{BaseUrl: "not a url", Storage: &countingStorage{}, Tel: &telemetry.Recorder{}})
	require.Error(t, err)

	s, err := New(creds, Options{Storage: &countingStorage{}, Tel: &telemetry.Recorder{}})
	require.NoError(t, err)
	require.Equal(t, auth.Uninitialized, s.State())
}

func TestDataOperationsRequireLogin(t *testing.T) {
	app := newApp(t)
	s := newTestSession(t, app, &countingStorage{}, environment.Static(true))
	ctx := context.Background()

	_, err := s.SubmitQuery(ctx, "milk")
	require.ErrorIs(t, err, ErrNotReady)
	_, err = s.SubmitItem(ctx, "milk")
	require.ErrorIs(t, err, ErrNotReady)
	_, err = s.GetMealPlan(ctx)
	require.ErrorIs(t, err, ErrNotReady)

	require.Equal(t, 0, app.Hits("POST /api/grocery_list_items"))
	require.Equal(t, 0, app.Hits("GET /api/meal_plan"))
}

func TestEndToEnd(t *testing.T) {
	app := newApp(t)
	storage := &countingStorage{}
	s := newTestSession(t, app, storage, environment.Static(true))
	ctx := context.Background()

	require.NoError(t, s.Login(ctx))
	require.Equal(t, auth.Ready, s.State())

	report, err := s.SubmitQuery(ctx, "milk, eggs and bread")
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	result, err := s.SubmitItem(ctx, "salmon")
	require.NoError(t, err)
	require.Equal(t, category.Seafood, result.Category)

	diff := cmp.Diff([]fakeapp.Item{
		{Name: "milk", CategoryId: "dairy", Quantity: "1", Checked: "false"},
		{Name: "eggs", CategoryId: "dairy", Quantity: "1", Checked: "false"},
		{Name: "bread", CategoryId: "bakery", Quantity: "1", Checked: "false"},
		{Name: "salmon", CategoryId: "seafood", Quantity: "1", Checked: "false"},
	}, app.Items())
	if diff != "" {
		t.Fatal(diff)
	}

	plan, err := s.GetMealPlan(ctx)
	require.NoError(t, err)
	days := plan.(map[string]any)["days"].([]any)
	require.Len(t, days, 1)
	require.Equal(t, "2026-10-19", days[0].(map[string]any)["date"])

	// one save per exchange of the login, one per item and one for the plan
	require.GreaterOrEqual(t, storage.writes, 3+4+1)
}

func TestSessionSurvivesRestart(t *testing.T) {
	app := newApp(t)
	storage := &countingStorage{}
	ctx := context.Background()

	first := newTestSession(t, app, storage, environment.Static(true))
	require.NoError(t, first.Login(ctx))

	second := newTestSession(t, app, storage, environment.Static(true))
	require.NoError(t, second.Login(ctx))
	_, err := second.SubmitItem(ctx, "rice")
	require.NoError(t, err)

	require.Equal(t, 1, app.Hits("POST /sessions"))
	require.Equal(t, 2, app.Hits("GET /"))
}

func TestNoPersistentStorage(t *testing.T) {
	app := newApp(t)
	storage := &countingStorage{}
	ctx := context.Background()

	s := newTestSession(t, app, storage, environment.Static(false))
	require.NoError(t, s.Login(ctx))
	_, err := s.SubmitQuery(ctx, "tofu & rice")
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	require.Zero(t, storage.reads)
	require.Zero(t, storage.writes)
	require.Zero(t, storage.deletes)
}

func TestReset(t *testing.T) {
	app := newApp(t)
	storage := &countingStorage{}
	ctx := context.Background()

	s := newTestSession(t, app, storage, environment.Static(true))
	require.NoError(t, s.Login(ctx))
	require.NoError(t, s.Reset(ctx))

	require.Equal(t, auth.Ready, s.State())
	require.Equal(t, 1, storage.deletes)
	require.Equal(t, 2, app.Hits("POST /sessions"))

	_, err := s.SubmitItem(ctx, "coffee")
	require.NoError(t, err)
}

func TestUpstreamRejection(t *testing.T) {
	app := newApp(t)
	app.Reject["eggs"] = http.StatusUnprocessableEntity
	s := newTestSession(t, app, &countingStorage{}, environment.Static(true))
	ctx := context.Background()

	require.NoError(t, s.Login(ctx))
	report, err := s.SubmitQuery(ctx, "milk, eggs and bread")

	var rejected *requestchain.UpstreamRejected
	require.True(t, errors.As(err, &rejected))
	require.Contains(t, rejected.Body, "cannot add eggs")
	require.Equal(t, "added \"milk\" [dairy]", report.String())
	require.Len(t, app.Items(), 1)
}

func TestConcurrentCallsAreRejected(t *testing.T) {
	app := newApp(t)
	s := newTestSession(t, app, &countingStorage{}, environment.Static(true))
	ctx := context.Background()

	s.mutex.Lock()
	require.ErrorIs(t, s.Login(ctx), ErrBusy)
	_, err := s.SubmitQuery(ctx, "milk")
	require.ErrorIs(t, err, ErrBusy)
	_, err = s.SubmitItem(ctx, "milk")
	require.ErrorIs(t, err, ErrBusy)
	_, err = s.GetMealPlan(ctx)
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, s.Reset(ctx), ErrBusy)
	s.mutex.Unlock()

	require.NoError(t, s.Login(ctx))
	require.Equal(t, 0, app.Hits("POST /api/grocery_list_items"))
}
