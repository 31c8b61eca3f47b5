// Package lights switches independently addressable light zones through
// plain HTTP GET endpoints.
package lights

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
)

const defaultTimeout = 5 * time.Second

type Client struct {
	zones      []types.LightZone
	httpClient *http.Client
}

func New(cfg types.LightsConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		zones:      cfg.Zones,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// On switches every zone on.
func (c *Client) On(ctx context.Context) error {
	return c.switchAll(ctx, "on", func(z types.LightZone) string { return z.OnURL })
}

// Off switches every zone off.
func (c *Client) Off(ctx context.Context) error {
	return c.switchAll(ctx, "off", func(z types.LightZone) string { return z.OffURL })
}

// switchAll tries every zone. Conflicts are only reported when no zone
// failed for another reason.
func (c *Client) switchAll(ctx context.Context, action string, url func(types.LightZone) string) error {
	var failures, conflicts []error
	for _, zone := range c.zones {
		err := c.get(ctx, url(zone))
		switch {
		case err == nil:
			logger.Debugf("Lights %s: zone %s", action, zone.Name)
		case errors.Is(err, types.ErrAlreadyInState):
			conflicts = append(conflicts, fmt.Errorf("zone %s: %w", zone.Name, err))
		default:
			failures = append(failures, fmt.Errorf("zone %s: %w", zone.Name, err))
		}
	}

	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	return errors.Join(conflicts...)
}

func (c *Client) get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusConflict:
		return types.ErrAlreadyInState
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("lights endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
