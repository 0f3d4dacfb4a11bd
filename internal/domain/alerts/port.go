package alerts

import (
	"context"
	"time"
)

// API is the remote security-posture API, one method per endpoint.
type API interface {
	Login(ctx context.Context, username, password string) (Credential, error)
	ExtendToken(ctx context.Context, cred Credential) (Credential, error)
	Policies(ctx context.Context, cred Credential, filter PolicyFilter) ([]PolicyRecord, error)
	SubmitExport(ctx context.Context, cred Credential, tr TimeRange) (JobID, error)
	ExportStatus(ctx context.Context, cred Credential, id JobID) (string, error)
	DownloadExport(ctx context.Context, cred Credential, id JobID) ([]byte, error)
}

// ArtifactStore keeps the files a run produces.
type ArtifactStore interface {
	SavePolicies(ctx context.Context, policies []PolicyRecord) (string, error)
	SaveAlerts(ctx context.Context, data []byte, at time.Time) (string, error)
}
