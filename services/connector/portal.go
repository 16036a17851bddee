package connector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"businesspilot/pkg/config"
	"businesspilot/services/vault"
)

// PortalClient probes a government portal with a credential pair. Implementors
// must not retain the plaintext beyond the call.
type PortalClient interface {
	VerifyLogin(ctx context.Context, service vault.ServiceName, username, password string) (bool, error)
}

type httpPortalClient struct {
	cfg    *config.Config
	client *http.Client
}

func NewPortalClient(cfg *config.Config) PortalClient {
	return &httpPortalClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *httpPortalClient) baseURL(service vault.ServiceName) string {
	switch service {
	case vault.Ergani:
		return c.cfg.Government.ErganiURL
	case vault.Aade:
		return c.cfg.Government.AadeURL
	case vault.Efka:
		return c.cfg.Government.EfkaURL
	default:
		return ""
	}
}

func (c *httpPortalClient) VerifyLogin(ctx context.Context, service vault.ServiceName, username, password string) (bool, error) {
	base := c.baseURL(service)
	if base == "" {
		return false, fmt.Errorf("portal %s is not configured", service)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(username, password)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("portal %s answered %d", service, resp.StatusCode)
	}
}
