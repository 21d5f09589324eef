// Package worker runs the scheduled side of the system on Temporal:
// refreshing every user's journals, pruning old articles and ingesting
// generic topic news.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/jdholdren/myjournal/internal/gnews"
)

const TaskQueue = "myjournal"

// Schedule cadences.
const (
	RefreshEvery = 30 * time.Minute
	PruneEvery   = 24 * time.Hour
	IngestEvery  = time.Hour
)

type Config struct {
	RetentionDays int
	// Topic queries ingested on schedule. No queries, no schedule.
	Topics []gnews.Query
}

// NewWorker sets up the worker with registration of workflows, activities, and schedules.
func NewWorker(ctx context.Context, cli client.Client, deps Deps, cfg Config) (worker.Worker, error) {
	a := activities{
		users:         deps.Users,
		refresher:     deps.Refresher,
		articles:      deps.Articles,
		topics:        deps.Topics,
		retentionDays: cfg.RetentionDays,
	}

	w := worker.New(cli, TaskQueue, worker.Options{})
	register(w, &a)

	if err := ensureSchedules(ctx, cli.ScheduleClient(), cfg); err != nil {
		return nil, fmt.Errorf("error ensuring schedules: %T, %v", err, err)
	}

	return w, nil
}

// The part of a temporal worker registration needs.
type registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

func register(r registry, a *activities) {
	wfs := workflows{}
	r.RegisterWorkflow(wfs.RefreshAllUsers)
	r.RegisterWorkflow(wfs.PruneArticles)
	r.RegisterWorkflow(wfs.IngestTopics)

	r.RegisterActivity(a)
}

func ensureSchedules(ctx context.Context, sc client.ScheduleClient, cfg Config) error {
	wfs := workflows{}

	if err := ensureSchedule(ctx, sc, "refresh_all_users", RefreshEvery, wfs.RefreshAllUsers); err != nil {
		return err
	}
	if err := ensureSchedule(ctx, sc, "prune_articles", PruneEvery, wfs.PruneArticles); err != nil {
		return err
	}
	if len(cfg.Topics) == 0 {
		slog.InfoContext(ctx, "no gnews topics configured, skipping ingest schedule")
		return nil
	}

	return ensureSchedule(ctx, sc, "ingest_topics", IngestEvery, wfs.IngestTopics, cfg.Topics)
}

// Creates the schedule when it's missing, then updates it in place so
// changes to the arguments take on restart.
func ensureSchedule(ctx context.Context, sc client.ScheduleClient, id string, every time.Duration, wf any, args ...any) error {
	action := &client.ScheduleWorkflowAction{
		ID:        id,
		Workflow:  wf,
		Args:      args,
		TaskQueue: TaskQueue,
	}

	handle := sc.GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		handle, err = sc.Create(ctx, client.ScheduleOptions{
			ID: id,
			Spec: client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: every}},
			},
			Action:             action,
			TriggerImmediately: true,
		})
		if err != nil {
			return fmt.Errorf("error creating schedule %s: %w", id, err)
		}
		slog.InfoContext(ctx, "created schedule", "id", id, "every", every)
	}

	return handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Action = action
			input.Description.Schedule.Spec = &client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: every}},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
}
