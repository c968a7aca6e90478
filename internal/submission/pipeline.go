// Package submission turns free-text grocery requests into grocery list items
// on the target application, one request at a time.
package submission

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mealassist-backend/internal/category"
	"mealassist-backend/internal/components/assert"
	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/endpoints"
	"mealassist-backend/internal/requestchain"

	"golang.org/x/time/rate"
)

const (
	report_pipeline_submit_item  = "pipeline.submit-item"
	report_pipeline_submit_query = "pipeline.submit-query"
)

type Classifier interface {
	Classify(text string) category.Id
}

type Options struct {
	Endpoints  endpoints.Endpoints
	Classifier Classifier
	// Chain returns the current client chain of the session.
	Chain func() requestchain.Chain
	// Persist saves the cookie store, it is called after every item.
	Persist func(ctx context.Context)
	// Limiter paces items, nil disables pacing.
	Limiter *rate.Limiter
	Tel     telemetry.API
}

type Pipeline struct {
	opts Options
	tel  telemetry.API
}

func New(opts Options) *Pipeline {
	assert.NotNil(opts.Classifier, "classifier")
	assert.NotNil(opts.Chain, "chain")
	assert.NotNil(opts.Persist, "persist")
	assert.NotNil(opts.Tel, "telemetry")

	return &Pipeline{
		opts: opts,
		tel:  telemetry.NewScopedAPI("submission", opts.Tel),
	}
}

type Result struct {
	Text     string
	Category category.Id
	Status   int
}

func (r Result) String() string {
	return fmt.Sprintf("added %q [%s]", r.Text, r.Category)
}

type Report struct {
	Results []Result
}

func (r Report) String() string {
	lines := make([]string, len(r.Results))
	for i, res := range r.Results {
		lines[i] = res.String()
	}
	return strings.Join(lines, "\n")
}

// SubmitQuery submits every segment of text in order. The first failure stops
// the pipeline, the returned report then holds the items submitted before it.
func (p *Pipeline) SubmitQuery(ctx context.Context, text string) (Report, error) {
	var report Report
	for _, segment := range SplitQuery(text) {
		result, err := p.SubmitItem(ctx, segment)
		if err != nil {
			return report, err
		}
		report.Results = append(report.Results, result)
	}
	p.tel.ReportCount(report_pipeline_submit_query, int64(len(report.Results)))
	return report, nil
}

// SubmitItem classifies and submits a single item without splitting it.
func (p *Pipeline) SubmitItem(ctx context.Context, text string) (Result, error) {
	if p.opts.Limiter != nil {
		err := p.opts.Limiter.Wait(ctx)
		if err != nil {
			return Result{}, err
		}
	}

	id := p.opts.Classifier.Classify(text)
	p.tel.ReportDebug(report_pipeline_submit_item, text, id)

	form := url.Values{
		"grocery_list_item[name]":        {text},
		"grocery_list_item[category_id]": {string(id)},
		"grocery_list_item[quantity]":    {"1"},
		"grocery_list_item[checked]":     {"false"},
	}
	res, err := p.opts.Chain().PostForm(
		ctx,
		p.opts.Endpoints.Url(endpoints.GroceryListItems),
		form,
		http.Header{"Accept": {"application/json"}},
	)
	p.opts.Persist(ctx)
	if err != nil {
		p.tel.ReportBroken(report_pipeline_submit_item, fmt.Errorf("fetch: %w", err), text)
		return Result{}, fmt.Errorf("submit %q: %w", text, err)
	}
	err = requestchain.CheckStatus(http.MethodPost, res)
	if err != nil {
		p.tel.ReportWarning(report_pipeline_submit_item, err, text)
		return Result{}, fmt.Errorf("submit %q: %w", text, err)
	}

	return Result{Text: text, Category: id, Status: res.Status}, nil
}
