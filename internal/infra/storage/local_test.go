package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

type recordingUploader struct {
	keys []string
	err  error
}

func (u *recordingUploader) Upload(_ context.Context, localPath, key string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	u.keys = append(u.keys, key)
	return "http://minio/bucket/" + key, u.err
}

func TestArtifactName(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "alerts-2024-03-01T09:05:07.csv", ArtifactName(at))
}

func TestLocal_SavePolicies(t *testing.T) {
	dir := t.TempDir()
	store := NewLocal(dir, zerolog.Nop())

	policies := []alerts.PolicyRecord{{Name: "P1", PolicyID: "pol-1", PolicyType: "config"}}
	p, err := store.SavePolicies(context.Background(), policies)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, PolicySnapshotName), p)

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	var got []alerts.PolicyRecord
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, policies, got)
	assert.Contains(t, string(raw), `"policyId": "pol-1"`)
}

func TestLocal_SaveAlerts_NoCollisions(t *testing.T) {
	dir := t.TempDir()
	store := NewLocal(dir, zerolog.Nop())
	at := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)

	first, err := store.SaveAlerts(context.Background(), []byte("one"), at)
	require.NoError(t, err)
	second, err := store.SaveAlerts(context.Background(), []byte("two"), at)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "alerts-2024-03-01T09:05:07.csv"), first)
	assert.Equal(t, filepath.Join(dir, "alerts-2024-03-01T09:05:07-1.csv"), second)

	raw, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(raw))
}

func TestLocal_Mirror(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	store := NewLocal(filepath.Join(dir, "out"), zerolog.Nop())
	store.Mirror = up
	store.KeyPrefix = "ccs-report/run-1"

	_, err := store.SavePolicies(context.Background(), nil)
	require.NoError(t, err)
	_, err = store.SaveAlerts(context.Background(), []byte("x"), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ccs-report/run-1/build_policies.json",
		"ccs-report/run-1/alerts-2024-03-01T00:00:00.csv",
	}, up.keys)

	up.err = errors.New("bucket gone")
	_, err = store.SavePolicies(context.Background(), nil)
	assert.ErrorContains(t, err, "bucket gone")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("build_policies.json"))
	assert.Equal(t, "text/csv", contentType("alerts.csv"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}
