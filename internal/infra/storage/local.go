// Package storage writes run artifacts to disk and optionally mirrors them
// to object storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// PolicySnapshotName is the file the reference policies are written to.
const PolicySnapshotName = "build_policies.json"

const artifactTimeLayout = "2006-01-02T15:04:05"

// ArtifactName is the file name of an alert export downloaded at t.
func ArtifactName(t time.Time) string {
	return "alerts-" + t.Format(artifactTimeLayout) + ".csv"
}

// Uploader mirrors a local file to remote storage.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// Local implements alerts.ArtifactStore on a directory.
type Local struct {
	Dir string
	// Mirror, when set, receives a copy of every written file under
	// KeyPrefix.
	Mirror    Uploader
	KeyPrefix string

	logger zerolog.Logger
}

var _ alerts.ArtifactStore = (*Local)(nil)

func NewLocal(dir string, logger zerolog.Logger) *Local {
	if dir == "" {
		dir = "."
	}
	return &Local{Dir: dir, logger: logger}
}

// SavePolicies writes the policy snapshot, replacing any previous one.
func (l *Local) SavePolicies(ctx context.Context, policies []alerts.PolicyRecord) (string, error) {
	if policies == nil {
		policies = []alerts.PolicyRecord{}
	}
	data, err := json.MarshalIndent(policies, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode policies: %w", err)
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(l.Dir, PolicySnapshotName)
	if err := os.WriteFile(p, append(data, '\n'), 0o644); err != nil {
		return "", err
	}
	return p, l.mirror(ctx, p)
}

// SaveAlerts writes an export under a name derived from at. An existing file
// is never overwritten; a numeric suffix is added instead.
func (l *Local) SaveAlerts(ctx context.Context, data []byte, at time.Time) (string, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(ArtifactName(at), ".csv")
	for n := 0; n < 100; n++ {
		name := base + ".csv"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.csv", base, n)
		}
		p := filepath.Join(l.Dir, name)

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return p, l.mirror(ctx, p)
	}
	return "", fmt.Errorf("no free file name for %s", base)
}

func (l *Local) mirror(ctx context.Context, localPath string) error {
	if l.Mirror == nil {
		return nil
	}
	key := path.Join(l.KeyPrefix, filepath.Base(localPath))
	url, err := l.Mirror.Upload(ctx, localPath, key)
	if err != nil {
		return fmt.Errorf("mirror %s: %w", filepath.Base(localPath), err)
	}
	l.logger.Info().Str("url", url).Msg("artifact mirrored")
	return nil
}
