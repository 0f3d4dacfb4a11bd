package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/ccs-report/internal/application"
	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// Settings is everything one run needs besides its collaborators.
type Settings struct {
	// RunID tags logs and mirrored artifacts. Generated when empty.
	RunID     string
	Account   Account
	TimeRange alerts.TimeRange
	Poll      PollPolicy
}

// Result describes a finished run. When the export was not ready in time,
// Status is JobUnknown, Rows is nil and DownloadHint points at the job.
type Result struct {
	RunID        string
	JobID        alerts.JobID
	Status       alerts.JobStatus
	Policies     int
	Alerts       int
	SnapshotPath string
	ArtifactPath string
	DownloadHint string
	Rows         []alerts.CorrelatedResult
	Duration     time.Duration
}

// Service runs the alert report workflow. It is not safe for concurrent use;
// build one per run.
type Service struct {
	Credentials *CredentialManager
	Policies    *PolicyFetcher
	Jobs        *JobController
	Artifacts   alerts.ArtifactStore
	Clock       application.Clock
	Logger      zerolog.Logger
}

// New wires a Service around api and store.
func New(api alerts.API, store alerts.ArtifactStore, clock application.Clock, logger zerolog.Logger) *Service {
	creds := NewCredentialManager(api, logger)
	return &Service{
		Credentials: creds,
		Policies:    NewPolicyFetcher(api, store, logger),
		Jobs:        NewJobController(api, creds, clock, logger),
		Artifacts:   store,
		Clock:       clock,
		Logger:      logger,
	}
}

// Run authenticates, loads the build policies, exports the alerts and
// correlates them. Any error aborts the run.
func (s *Service) Run(ctx context.Context, st Settings) (res Result, err error) {
	start := s.Clock.Now()
	res.RunID = st.RunID
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	log := s.Logger.With().Str("run_id", res.RunID).Logger()
	defer func() { res.Duration = s.Clock.Now().Sub(start) }()

	cred, err := s.Credentials.Authenticate(ctx, st.Account)
	if err != nil {
		return res, err
	}

	policies, err := s.Policies.Fetch(ctx, cred, alerts.BuildPolicies)
	if err != nil {
		return res, err
	}
	res.Policies = len(policies)
	res.SnapshotPath = s.Policies.SnapshotPath()

	tr := st.TimeRange
	if tr.Amount <= 0 {
		tr = alerts.LastDays(7)
	}
	res.JobID, err = s.Jobs.Submit(ctx, cred, tr)
	if err != nil {
		return res, err
	}

	res.Status, cred, err = s.Jobs.PollUntilReady(ctx, cred, res.JobID, st.Poll)
	if err != nil {
		return res, err
	}
	if res.Status != alerts.JobReady {
		res.DownloadHint = DownloadHint(st.Account.Endpoint, res.JobID)
		log.Warn().
			Str("job_id", string(res.JobID)).
			Str("download", res.DownloadHint).
			Msg("CSV report is still being prepared, download it manually")
		return res, nil
	}

	data, err := s.Jobs.Download(ctx, cred, res.JobID)
	if err != nil {
		return res, err
	}
	if s.Artifacts != nil {
		res.ArtifactPath, err = s.Artifacts.SaveAlerts(ctx, data, s.Clock.Now())
		if err != nil {
			return res, fmt.Errorf("write alert export: %w", err)
		}
		log.Info().Str("path", res.ArtifactPath).Msg("alert export written")
	}

	records, err := alerts.ParseAlertBytes(data)
	if err != nil {
		return res, fmt.Errorf("parse alert export %s: %w", res.JobID, err)
	}
	res.Alerts = len(records)
	res.Rows = alerts.Report(records, policies)

	log.Info().
		Int("alerts", res.Alerts).
		Int("open_config", len(res.Rows)).
		Int("policies", res.Policies).
		Msg("alerts correlated")
	return res, nil
}

// DownloadHint is the URL an operator can use to fetch an export that was
// not ready before polling gave up.
func DownloadHint(endpoint string, id alerts.JobID) string {
	return fmt.Sprintf("%s/alert/jobs/%s/download", strings.TrimRight(endpoint, "/"), id)
}
