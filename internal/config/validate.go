package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateEndpoint checks that raw is an absolute http(s) URL without query
// or fragment, suitable as the API root.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid endpoint scheme %q (allowed: http, https)", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("endpoint %q has no host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("endpoint %q must not carry a query or fragment", raw)
	}
	return nil
}
