package bot

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkgrabber/internal/bot/tasks"
	"github.com/edgard/checkgrabber/internal/config"
)

func TestSchedulerRegistersEnabledTasks(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"stats_report":    {Enabled: true, Schedule: "0 0 * * * *"},
		"sql_maintenance": {Enabled: false, Schedule: "0 30 4 * * *"},
		"unknown":         {Enabled: true, Schedule: "0 0 * * * *"},
		"broken":          {Enabled: true, Schedule: "not a cron"},
		"empty":           {Enabled: true},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"stats_report":    noop,
		"sql_maintenance": noop,
		"broken":          noop,
		"empty":           noop,
	}

	s, err := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, taskMap)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start is rejected")

	jobs := s.Jobs()
	sort.Strings(jobs)
	assert.Equal(t, []string{"stats_report"}, jobs)

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}
