package version

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/bryanwahyu/ccs-report/internal/version.Version=0.1.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Full returns a formatted version string
func Full() string {
	if Version == "dev" {
		return "dev (commit: " + Commit + ")"
	}
	return Version + " (commit: " + Commit + ", built " + BuildDate + ")"
}
