// Package prisma is a client for the Prisma Cloud style CSPM REST API used to
// export alerts and list policies.
package prisma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// AuthHeader carries the bearer token on every authenticated call.
const AuthHeader = "x-redlock-auth"

const (
	contentTypeJSON = "application/json; charset=UTF-8"
	maxErrorBody    = 512
)

// Client implements alerts.API over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	logger   zerolog.Logger
}

var _ alerts.API = (*Client)(nil)

// New returns a client for the API rooted at endpoint. A nil httpClient
// falls back to http.DefaultClient.
func New(endpoint string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     httpClient,
		logger:   logger,
	}
}

// Endpoint is the API root without a trailing slash.
func (c *Client) Endpoint() string { return c.endpoint }

type tokenResponse struct {
	Token string `json:"token"`
}

func (c *Client) Login(ctx context.Context, username, password string) (alerts.Credential, error) {
	payload := map[string]string{"username": username, "password": password}

	var out tokenResponse
	if err := c.doJSON(ctx, "login", alerts.ErrAuthentication, http.MethodPost, "/login", nil, payload, &out); err != nil {
		return alerts.Credential{}, err
	}
	if out.Token == "" {
		return alerts.Credential{}, fmt.Errorf("login: %w: response has no token", alerts.ErrAuthentication)
	}
	return alerts.Credential{Token: out.Token}, nil
}

func (c *Client) ExtendToken(ctx context.Context, cred alerts.Credential) (alerts.Credential, error) {
	var out tokenResponse
	if err := c.doJSON(ctx, "extend token", alerts.ErrAuthentication, http.MethodGet, "/auth_token/extend", &cred, nil, &out); err != nil {
		return alerts.Credential{}, err
	}
	if out.Token == "" {
		return alerts.Credential{}, fmt.Errorf("extend token: %w: response has no token", alerts.ErrAuthentication)
	}
	return alerts.Credential{Token: out.Token}, nil
}

func (c *Client) Policies(ctx context.Context, cred alerts.Credential, filter alerts.PolicyFilter) ([]alerts.PolicyRecord, error) {
	q := url.Values{}
	if filter.Type != "" {
		q.Set("policy.type", filter.Type)
	}
	if filter.SubType != "" {
		q.Set("policy.subtype", filter.SubType)
	}
	path := "/v2/policy"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []alerts.PolicyRecord
	if err := c.doJSON(ctx, "list policies", alerts.ErrUpstream, http.MethodGet, path, &cred, nil, &out); err != nil {
		return nil, err
	}
	for i, p := range out {
		if p.Name == "" || p.PolicyID == "" {
			return nil, fmt.Errorf("list policies: %w: policy %d has no name or policyId", alerts.ErrUpstream, i)
		}
	}
	return out, nil
}

type exportRequest struct {
	TimeRange struct {
		Type  string           `json:"type"`
		Value alerts.TimeRange `json:"value"`
	} `json:"timeRange"`
}

func (c *Client) SubmitExport(ctx context.Context, cred alerts.Credential, tr alerts.TimeRange) (alerts.JobID, error) {
	var req exportRequest
	req.TimeRange.Type = "relative"
	req.TimeRange.Value = tr

	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, "start alert export", alerts.ErrUpstream, http.MethodPost, "/alert/csv", &cred, req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("start alert export: %w: response has no id", alerts.ErrUpstream)
	}
	return alerts.JobID(out.ID), nil
}

func (c *Client) ExportStatus(ctx context.Context, cred alerts.Credential, id alerts.JobID) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := "/alert/csv/" + url.PathEscape(string(id)) + "/status"
	if err := c.doJSON(ctx, "export status", alerts.ErrUpstream, http.MethodGet, path, &cred, nil, &out); err != nil {
		return "", err
	}
	if out.Status == "" {
		return "", fmt.Errorf("export status: %w: response has no status", alerts.ErrUpstream)
	}
	return out.Status, nil
}

func (c *Client) DownloadExport(ctx context.Context, cred alerts.Credential, id alerts.JobID) ([]byte, error) {
	path := "/alert/csv/" + url.PathEscape(string(id)) + "/download"
	req, err := c.newRequest(ctx, http.MethodGet, path, &cred, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(req, "download export", alerts.ErrUpstream)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download export: %w: %w", alerts.ErrUpstream, err)
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, cred *alerts.Credential, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if cred != nil {
		req.Header.Set(AuthHeader, cred.Token)
	}
	return req, nil
}

// send performs req and turns transport failures and non-2xx answers into
// errors of the given kind. The caller closes the body on success.
func (c *Client) send(req *http.Request, op string, kind error) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug().
			Str("op", op).
			Int("status", resp.StatusCode).
			Msg("API call rejected")
		return nil, &alerts.StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Kind:       kind,
		}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op string, kind error, method, path string, cred *alerts.Credential, body, out any) error {
	req, err := c.newRequest(ctx, method, path, cred, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", contentTypeJSON)

	resp, err := c.send(req, op, kind)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: decode response: %w", op, kind, err)
	}
	return nil
}
