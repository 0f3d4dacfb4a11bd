package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/ccs-report/internal/application"
	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// PollPolicy bounds how long an export job is waited for.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	// RenewEvery renews the credential after every n-th unsuccessful check.
	// Zero disables renewal.
	RenewEvery int
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{MaxAttempts: 20, Interval: 2 * time.Second, RenewEvery: 4}
}

// Renewer swaps a credential for a fresh one.
type Renewer interface {
	Renew(ctx context.Context, cred alerts.Credential) (alerts.Credential, error)
}

// JobController drives one alert export job from submission to download.
type JobController struct {
	api     alerts.API
	renewer Renewer
	clock   application.Clock
	logger  zerolog.Logger
}

func NewJobController(api alerts.API, renewer Renewer, clock application.Clock, logger zerolog.Logger) *JobController {
	return &JobController{api: api, renewer: renewer, clock: clock, logger: logger}
}

// Submit starts an export of the alerts raised within tr.
func (c *JobController) Submit(ctx context.Context, cred alerts.Credential, tr alerts.TimeRange) (alerts.JobID, error) {
	id, err := c.api.SubmitExport(ctx, cred, tr)
	if err != nil {
		return "", fmt.Errorf("start alert export: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("start alert export: %w: empty job id", alerts.ErrUpstream)
	}
	c.logger.Info().Str("job_id", string(id)).Int("days", tr.Amount).Msg("export job started")
	return id, nil
}

// PollUntilReady checks the job status up to p.MaxAttempts times, sleeping
// p.Interval between checks. The credential is renewed after every
// p.RenewEvery-th check that did not find the job ready, and the latest
// credential is returned alongside the final status.
//
// Running out of attempts is not an error: the status is then JobUnknown.
func (c *JobController) PollUntilReady(ctx context.Context, cred alerts.Credential, id alerts.JobID, p PollPolicy) (alerts.JobStatus, alerts.Credential, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		raw, err := c.api.ExportStatus(ctx, cred, id)
		if err != nil {
			return alerts.JobPending, cred, fmt.Errorf("check export job %s: %w", id, err)
		}

		status := alerts.StatusFromRemote(raw)
		c.logger.Debug().
			Str("job_id", string(id)).
			Int("attempt", attempt).
			Str("status", raw).
			Msg("export job status")
		if status == alerts.JobReady {
			return alerts.JobReady, cred, nil
		}

		if p.RenewEvery > 0 && attempt%p.RenewEvery == 0 {
			cred, err = c.renewer.Renew(ctx, cred)
			if err != nil {
				return status, cred, err
			}
		}

		if attempt >= p.MaxAttempts {
			c.logger.Warn().
				Str("job_id", string(id)).
				Int("attempts", attempt).
				Msg("export job not ready, giving up")
			return alerts.JobUnknown, cred, nil
		}

		if err := c.clock.Sleep(ctx, p.Interval); err != nil {
			return status, cred, err
		}
	}
}

// Download fetches the finished export.
func (c *JobController) Download(ctx context.Context, cred alerts.Credential, id alerts.JobID) ([]byte, error) {
	data, err := c.api.DownloadExport(ctx, cred, id)
	if err != nil {
		return nil, fmt.Errorf("download export %s: %w", id, err)
	}
	c.logger.Info().Str("job_id", string(id)).Int("bytes", len(data)).Msg("export downloaded")
	return data, nil
}
