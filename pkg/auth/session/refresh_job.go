package session

import "context"

// RefreshJob runs Manager.RefreshDue on the cron service's fixed interval.
type RefreshJob struct {
	manager *Manager
}

func NewRefreshJob(manager *Manager) *RefreshJob {
	return &RefreshJob{manager: manager}
}

func (j *RefreshJob) Name() string { return "session-refresh" }

func (j *RefreshJob) Run(ctx context.Context) error {
	return j.manager.RefreshDue(ctx)
}
