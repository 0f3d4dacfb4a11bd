package alerts

// Credential is the bearer token sent as x-redlock-auth. Renewal returns a
// new value; a Credential is never modified in place.
type Credential struct {
	Token string
}

// String keeps tokens out of logs.
func (c Credential) String() string {
	if c.Token == "" {
		return "<none>"
	}
	if len(c.Token) <= 8 {
		return "****"
	}
	return c.Token[:4] + "****"
}

// IsZero reports whether the credential carries no token.
func (c Credential) IsZero() bool { return c.Token == "" }

// JobID identifies an alert export job on the server.
type JobID string

// JobStatus is the lifecycle state of an export job.
type JobStatus string

const (
	JobSubmitted JobStatus = "SUBMITTED"
	JobPending   JobStatus = "PENDING"
	JobReady     JobStatus = "READY"
	JobUnknown   JobStatus = "UNKNOWN"
)

// RemoteReadyStatus is the server status of a finished export.
const RemoteReadyStatus = "READY_TO_DOWNLOAD"

// StatusFromRemote maps a raw server status to a JobStatus. Anything that is
// not ready is treated as still pending.
func StatusFromRemote(raw string) JobStatus {
	if raw == RemoteReadyStatus {
		return JobReady
	}
	return JobPending
}

// TimeRange is the relative window of alerts to export.
type TimeRange struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"`
}

// LastDays returns a relative range covering the last n days.
func LastDays(n int) TimeRange {
	return TimeRange{Amount: n, Unit: "day"}
}

// PolicyFilter selects reference policies by type and subtype.
type PolicyFilter struct {
	Type    string
	SubType string
}

// BuildPolicies selects config policies evaluated at build time.
var BuildPolicies = PolicyFilter{Type: "config", SubType: "build"}

// PolicyRecord is one reference policy.
type PolicyRecord struct {
	Name           string   `json:"name"`
	PolicyID       string   `json:"policyId"`
	PolicyType     string   `json:"policyType,omitempty"`
	PolicySubTypes []string `json:"policySubTypes,omitempty"`
	Severity       string   `json:"severity,omitempty"`
}

// AlertRecord is one row of the exported alert CSV.
type AlertRecord struct {
	AlertID     string
	PolicyName  string
	AlertStatus string
	PolicyType  string
	// Fields holds the full row keyed by CSV header.
	Fields map[string]string
}

// Unresolved marks an alert whose policy is not in the reference set.
const Unresolved = "unresolved"

// CorrelatedResult is an alert enriched with its policy identifier.
type CorrelatedResult struct {
	AlertID    string `json:"alert_id"`
	PolicyName string `json:"policy_name"`
	PolicyID   string `json:"policy_id"`
}

// Resolved reports whether the alert matched a reference policy.
func (r CorrelatedResult) Resolved() bool { return r.PolicyID != Unresolved }
