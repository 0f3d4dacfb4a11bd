package reports

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// fakeAPI records every call and replays canned responses.
type fakeAPI struct {
	calls []string

	loginToken string
	loginErr   error

	extendErr   error
	extendCount int

	policies    []alerts.PolicyRecord
	policiesErr error

	jobID     alerts.JobID
	submitErr error

	// statuses is consumed one per check; the last value repeats.
	statuses     []string
	statusErr    error
	statusTokens []string

	export      []byte
	downloadErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{loginToken: "tok-0", jobID: "job-1"}
}

func (f *fakeAPI) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeAPI) Login(_ context.Context, _, _ string) (alerts.Credential, error) {
	f.calls = append(f.calls, "login")
	if f.loginErr != nil {
		return alerts.Credential{}, f.loginErr
	}
	return alerts.Credential{Token: f.loginToken}, nil
}

func (f *fakeAPI) ExtendToken(_ context.Context, _ alerts.Credential) (alerts.Credential, error) {
	f.calls = append(f.calls, "extend")
	if f.extendErr != nil {
		return alerts.Credential{}, f.extendErr
	}
	f.extendCount++
	return alerts.Credential{Token: fmt.Sprintf("tok-%d", f.extendCount)}, nil
}

func (f *fakeAPI) Policies(_ context.Context, _ alerts.Credential, _ alerts.PolicyFilter) ([]alerts.PolicyRecord, error) {
	f.calls = append(f.calls, "policies")
	return f.policies, f.policiesErr
}

func (f *fakeAPI) SubmitExport(_ context.Context, _ alerts.Credential, _ alerts.TimeRange) (alerts.JobID, error) {
	f.calls = append(f.calls, "submit")
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

func (f *fakeAPI) ExportStatus(_ context.Context, cred alerts.Credential, _ alerts.JobID) (string, error) {
	f.calls = append(f.calls, "status")
	f.statusTokens = append(f.statusTokens, cred.Token)
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if len(f.statuses) == 0 {
		return "PENDING", nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeAPI) DownloadExport(_ context.Context, _ alerts.Credential, _ alerts.JobID) ([]byte, error) {
	f.calls = append(f.calls, "download")
	return f.export, f.downloadErr
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

type memStore struct {
	policies [][]alerts.PolicyRecord
	exports  [][]byte
	at       []time.Time
}

func (m *memStore) SavePolicies(_ context.Context, p []alerts.PolicyRecord) (string, error) {
	m.policies = append(m.policies, p)
	return "build_policies.json", nil
}

func (m *memStore) SaveAlerts(_ context.Context, data []byte, at time.Time) (string, error) {
	m.exports = append(m.exports, data)
	m.at = append(m.at, at)
	return "alerts-" + at.Format("2006-01-02T15:04:05") + ".csv", nil
}

func upstream(op string, code int) error {
	return &alerts.StatusError{Op: op, StatusCode: code, Kind: alerts.ErrUpstream}
}

func unauthorized(op string) error {
	return &alerts.StatusError{Op: op, StatusCode: http.StatusUnauthorized, Kind: alerts.ErrAuthentication}
}
