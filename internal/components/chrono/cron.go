// Package chrono runs callbacks on cron schedules.
package chrono

import (
	"context"
	"fmt"
	"time"

	"mealassist-backend/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

// Scheduler is what anything that has to happen on a schedule depends on.
type Scheduler interface {
	Schedule(spec string, callback func()) error
}

// Cron is the Scheduler backed by `github.com/robfig/cron/v3`. Overlapping
// runs of the same callback are skipped.
type Cron struct {
	cron *cron.Cron
}

func NewCron(location *time.Location, tel telemetry.API) Cron {
	if location == nil {
		location = time.Local
	}
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}
	return Cron{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithLocation(location),
			cron.WithChain(cron.SkipIfStillRunning(logger)),
		),
	}
}

func (c Cron) Schedule(spec string, callback func()) error {
	_, err := c.cron.AddFunc(spec, callback)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

func (c Cron) Start() {
	c.cron.Start()
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (c Cron) Stop(ctx context.Context) error {
	select {
	case <-c.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) formatParams(keysAndValues []any) []any {
	params := make([]any, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[i], keysAndValues[i+1]))
	}
	return params
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, l.formatParams(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken("job", append([]any{fmt.Errorf("%s: %w", msg, err)}, l.formatParams(keysAndValues)...)...)
}
