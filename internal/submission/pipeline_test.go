package submission

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"mealassist-backend/internal/category"
	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/endpoints"
	"mealassist-backend/internal/requestchain"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestSplitQuery(t *testing.T) {
	testCases := []struct {
		text     string
		expected []string
	}{
		{text: "milk, eggs and bread", expected: []string{"milk", "eggs", "bread"}},
		{text: "tofu & rice", expected: []string{"tofu", "rice"}},
		{text: "sandwich", expected: []string{"sandwich"}},
		{text: "Ben And Jerry's ice cream", expected: []string{"Ben And Jerry's ice cream"}},
		{text: "salt AND pepper", expected: []string{"salt AND pepper"}},
		{text: "candy, Andes mints", expected: []string{"candy", "Andes mints"}},
		{text: "milk,,eggs", expected: []string{"milk", "", "eggs"}},
		{text: "bread and", expected: []string{"bread", ""}},
		{text: "", expected: []string{""}},
	}

	for _, test := range testCases {
		t.Run(test.text, func(t *testing.T) {
			diff := cmp.Diff(test.expected, SplitQuery(test.text))
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

type upstream struct {
	reject   map[string]int
	received []url.Values
}

func (u *upstream) client(ctx context.Context, req *requestchain.Request) (*requestchain.Response, error) {
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return nil, err
	}
	u.received = append(u.received, form)

	name := form.Get("grocery_list_item[name]")
	if status, ok := u.reject[name]; ok {
		return &requestchain.Response{Status: status, Body: []byte(`{"error":"rejected"}`), Url: req.Url}, nil
	}
	return &requestchain.Response{Status: http.StatusCreated, Body: []byte(`{}`), Url: req.Url}, nil
}

type fixture struct {
	upstream *upstream
	saves    int
	tel      *telemetry.Recorder
	pipeline *Pipeline
}

func newFixture(t *testing.T) *fixture {
	ep, err := endpoints.New("https://app.example.com")
	require.NoError(t, err)

	f := &fixture{
		upstream: &upstream{reject: map[string]int{}},
		tel:      &telemetry.Recorder{},
	}
	chain := requestchain.NewChain(f.upstream.client)
	f.pipeline = New(Options{
		Endpoints:  ep,
		Classifier: category.DefaultClassifier(),
		Chain:      func() requestchain.Chain { return chain },
		Persist:    func(context.Context) { f.saves++ },
		Limiter:    rate.NewLimiter(rate.Inf, 1),
		Tel:        f.tel,
	})
	return f
}

func TestSubmitQuery(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline.SubmitQuery(context.Background(), "milk, eggs and bread")
	require.NoError(t, err)

	diff := cmp.Diff([]Result{
		{Text: "milk", Category: category.Dairy, Status: http.StatusCreated},
		{Text: "eggs", Category: category.Dairy, Status: http.StatusCreated},
		{Text: "bread", Category: category.Bakery, Status: http.StatusCreated},
	}, report.Results)
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t,
		"added \"milk\" [dairy]\nadded \"eggs\" [dairy]\nadded \"bread\" [bakery]",
		report.String(),
	)

	require.Len(t, f.upstream.received, 3)
	first := f.upstream.received[0]
	require.Equal(t, "milk", first.Get("grocery_list_item[name]"))
	require.Equal(t, "dairy", first.Get("grocery_list_item[category_id]"))
	require.Equal(t, "1", first.Get("grocery_list_item[quantity]"))
	require.Equal(t, "false", first.Get("grocery_list_item[checked]"))

	require.Equal(t, 3, f.saves)
	require.Len(t, f.tel.Find("count", report_pipeline_submit_query), 1)
}

func TestSubmitQueryFailsFast(t *testing.T) {
	f := newFixture(t)
	f.upstream.reject["eggs"] = http.StatusUnprocessableEntity

	report, err := f.pipeline.SubmitQuery(context.Background(), "milk, eggs and bread")

	var rejected *requestchain.UpstreamRejected
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, http.StatusUnprocessableEntity, rejected.Status)

	require.Len(t, report.Results, 1)
	require.Equal(t, "milk", report.Results[0].Text)
	// bread was never sent
	require.Len(t, f.upstream.received, 2)
	// the failed exchange was persisted too
	require.Equal(t, 2, f.saves)
	require.Len(t, f.tel.Find("warning", report_pipeline_submit_item), 1)
}

func TestSubmitItemDoesNotSplit(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.SubmitItem(context.Background(), "mac and cheese")
	require.NoError(t, err)
	require.Equal(t, "mac and cheese", result.Text)
	require.Equal(t, category.Dairy, result.Category)
	require.Len(t, f.upstream.received, 1)
}

func TestEmptySegmentsAreSubmitted(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline.SubmitQuery(context.Background(), "rice,,beans")
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	require.Equal(t, "", report.Results[1].Text)
	require.Equal(t, category.Other, report.Results[1].Category)
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(t)
	f.pipeline.opts.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	// drain the single token so the next wait has to block
	require.True(t, f.pipeline.opts.Limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.SubmitItem(ctx, "milk")
	require.Error(t, err)
	require.Empty(t, f.upstream.received)
}
