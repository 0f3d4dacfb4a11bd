package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// Account holds what is needed to log in to the API.
type Account struct {
	Endpoint string
	Username string
	Password string
}

// Validate reports every missing field in a single ErrConfiguration.
func (a Account) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(a.Username) == "" {
		missing = append(missing, "username")
	}
	if a.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", alerts.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// CredentialManager obtains and renews the API credential.
type CredentialManager struct {
	api    alerts.API
	logger zerolog.Logger
}

func NewCredentialManager(api alerts.API, logger zerolog.Logger) *CredentialManager {
	return &CredentialManager{api: api, logger: logger}
}

// Authenticate logs in with acct. The account is validated before any
// request is made.
func (m *CredentialManager) Authenticate(ctx context.Context, acct Account) (alerts.Credential, error) {
	if err := acct.Validate(); err != nil {
		return alerts.Credential{}, err
	}

	cred, err := m.api.Login(ctx, acct.Username, acct.Password)
	if err != nil {
		return alerts.Credential{}, asAuthError("login", err)
	}
	if cred.IsZero() {
		return alerts.Credential{}, fmt.Errorf("login: %w: empty token", alerts.ErrAuthentication)
	}

	m.logger.Debug().Str("user", acct.Username).Stringer("token", cred).Msg("authenticated")
	return cred, nil
}

// Renew exchanges a still valid credential for a fresh one.
func (m *CredentialManager) Renew(ctx context.Context, cred alerts.Credential) (alerts.Credential, error) {
	next, err := m.api.ExtendToken(ctx, cred)
	if err != nil {
		return alerts.Credential{}, asAuthError("extend token", err)
	}
	if next.IsZero() {
		return alerts.Credential{}, fmt.Errorf("extend token: %w: empty token", alerts.ErrAuthentication)
	}

	m.logger.Info().Stringer("token", next).Msg("Extending token.")
	return next, nil
}

func asAuthError(op string, err error) error {
	if errors.Is(err, alerts.ErrAuthentication) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, alerts.ErrAuthentication, err)
}
