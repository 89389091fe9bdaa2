package subscription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TaskOptions provides initialization parameters for Task
type TaskOptions struct {
	SubscriptionManager *Manager
	Logger              *zap.Logger
}

// Task is the scheduled maintenance job that sweeps subscriptions whose
// cancellation window has elapsed and transitions them to their terminal
// state. A user who never loads the app still loses the paid plan on time.
type Task struct {
	TaskOptions
}

// SweepResult records the outcome for a single subscription in a sweep
type SweepResult struct {
	UserID  string `json:"userId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SweepSummary is the only externally observable contract of the job
type SweepSummary struct {
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Results   []SweepResult `json:"results"`
}

// NewTask returns a new reconciliation Task
func NewTask(option TaskOptions) (*Task, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Task{
		TaskOptions: option,
	}, nil
}

// Sweep processes every expired record independently. A failure on one
// record is captured in the summary and does not abort the rest; the record
// still matches the predicate and is picked up again on the next run, so the
// job carries no retry logic of its own. Overlapping runs are safe: the
// second run finds nothing left to transition.
func (t *Task) Sweep(ctx context.Context, now time.Time) (*SweepSummary, error) {
	expired, err := t.SubscriptionManager.ListExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{
		Total:   len(expired),
		Results: make([]SweepResult, 0, len(expired)),
	}

	for _, sub := range expired {
		if _, err := t.SubscriptionManager.Expire(ctx, sub.UserID, now); err != nil {
			t.Logger.Error("Unable to expire subscription",
				zap.String("UserID", sub.UserID),
				zap.Error(err),
			)
			summary.Results = append(summary.Results, SweepResult{
				UserID:  sub.UserID,
				Success: false,
				Error:   err.Error(),
			})
			continue
		}
		summary.Processed++
		summary.Results = append(summary.Results, SweepResult{
			UserID:  sub.UserID,
			Success: true,
		})
	}

	if summary.Total > 0 {
		t.Logger.Info("Subscription sweep finished",
			zap.Int("Total", summary.Total),
			zap.Int("Processed", summary.Processed),
		)
	}

	return summary, nil
}
