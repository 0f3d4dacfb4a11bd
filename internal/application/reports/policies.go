package reports

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// PolicyFetcher loads the reference policies. Each filter is fetched at most
// once per fetcher; later calls return the cached set.
type PolicyFetcher struct {
	api    alerts.API
	store  alerts.ArtifactStore
	logger zerolog.Logger

	cache    map[alerts.PolicyFilter][]alerts.PolicyRecord
	snapshot string
}

// NewPolicyFetcher builds a fetcher. store may be nil, in which case no
// snapshot file is written.
func NewPolicyFetcher(api alerts.API, store alerts.ArtifactStore, logger zerolog.Logger) *PolicyFetcher {
	return &PolicyFetcher{
		api:    api,
		store:  store,
		logger: logger,
		cache:  make(map[alerts.PolicyFilter][]alerts.PolicyRecord),
	}
}

func (f *PolicyFetcher) Fetch(ctx context.Context, cred alerts.Credential, filter alerts.PolicyFilter) ([]alerts.PolicyRecord, error) {
	if cached, ok := f.cache[filter]; ok {
		return cached, nil
	}

	policies, err := f.api.Policies(ctx, cred, filter)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s policies: %w", filter.Type, filter.SubType, err)
	}
	f.cache[filter] = policies

	f.logger.Info().
		Int("policies", len(policies)).
		Str("type", filter.Type).
		Str("subtype", filter.SubType).
		Msg("reference policies loaded")

	if f.store != nil {
		path, err := f.store.SavePolicies(ctx, policies)
		if err != nil {
			return nil, fmt.Errorf("write policy snapshot: %w", err)
		}
		f.snapshot = path
		f.logger.Info().Str("path", path).Msg("policy snapshot written")
	}
	return policies, nil
}

// SnapshotPath is where the last fetched set was written, if anywhere.
func (f *PolicyFetcher) SnapshotPath() string { return f.snapshot }
