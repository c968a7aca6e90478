package chrono

import (
	"context"
	"testing"
	"time"

	"mealassist-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestCron(t *testing.T) {
	tel := &telemetry.Recorder{}
	c := NewCron(time.UTC, tel)

	require.Error(t, c.Schedule("not a schedule", func() {}))

	ran := make(chan struct{}, 8)
	require.NoError(t, c.Schedule("@every 1s", func() { ran <- struct{}{} }))
	c.Start()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestCronLogger(t *testing.T) {
	tel := &telemetry.Recorder{}
	l := cronLogger{tel: tel}

	l.Info("schedule", "entry", 1, "dangling")
	reports := tel.Find("debug", "schedule")
	require.Len(t, reports, 1)
	require.Equal(t, []any{"entry: 1"}, reports[0].Params)

	l.Error(context.Canceled, "run", "entry", 2)
	require.Len(t, tel.Find("broken", "job"), 1)
}
