// Package httpctl provides a provider driver for vendor controller APIs: the
// rendered payload is pushed to a configured HTTP endpoint. Diff calls a
// preview endpoint when one is configured; otherwise diff is unsupported.
package httpctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/provider"
)

const (
	// DriverKey is the registry key provider definitions reference.
	DriverKey = "httpctl"

	defaultTimeout = 30 * time.Second
)

// Driver pushes rendered payloads to a controller REST API.
type Driver struct {
	logger   *slog.Logger
	settings map[string]any
	client   *http.Client
}

// Factory creates httpctl drivers.
type Factory struct{}

// NewFactory returns the httpctl driver factory.
func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return DriverKey
}

func (f *Factory) Create(instance *models.ProviderInstance, logger *slog.Logger) (provider.Driver, error) {
	baseURL, _ := instance.Settings["base_url"].(string)
	if baseURL == "" {
		return nil, errors.New("httpctl settings must include base_url")
	}

	return &Driver{
		logger:   logger,
		settings: instance.Settings,
		client:   &http.Client{Timeout: defaultTimeout},
	}, nil
}

// ValidateTarget accepts any target: controllers address devices by their
// own inventory, keyed off the payload.
func (d *Driver) ValidateTarget(_ context.Context, target catalog.Target) error {
	if target == nil {
		return errors.New("target is required")
	}

	return nil
}

// Diff posts the payload to the preview endpoint when configured.
func (d *Driver) Diff(ctx context.Context, req provider.Request) (provider.Result, error) {
	endpoint, _ := d.settings["preview_endpoint"].(string)
	if endpoint == "" {
		return provider.Result{}, fmt.Errorf("httpctl has no preview endpoint configured: %w", provider.ErrCapabilityNotSupported)
	}

	result, err := d.post(ctx, endpoint, req)
	if err != nil {
		return provider.Result{}, err
	}

	if diff, ok := result.Details["diff"].(string); ok {
		result.Diff = diff
	}

	return result, nil
}

// Apply posts the payload to the apply endpoint.
func (d *Driver) Apply(ctx context.Context, req provider.Request) (provider.Result, error) {
	endpoint, _ := d.settings["endpoint"].(string)
	if endpoint == "" {
		return provider.Result{}, errors.New("httpctl settings must include endpoint")
	}

	return d.post(ctx, endpoint, req)
}

// Close releases idle connections held by the HTTP client.
func (d *Driver) Close() error {
	d.client.CloseIdleConnections()

	return nil
}

func (d *Driver) post(ctx context.Context, endpoint string, req provider.Request) (provider.Result, error) {
	baseURL, _ := d.settings["base_url"].(string)
	url := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(req.RenderedContent))
	if err != nil {
		return provider.Result{}, fmt.Errorf("build controller request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if token, ok := d.settings["token"].(string); ok && token != "" {
		header, _ := d.settings["token_header"].(string)
		if header == "" {
			header = "Authorization"
			token = "Bearer " + token
		}

		httpReq.Header.Set(header, token)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return provider.Result{OK: false, Details: map[string]any{"error": err.Error()}}, nil
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			d.logger.Warn("Failed to close controller response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return provider.Result{OK: false, Details: map[string]any{"error": err.Error()}}, nil
	}

	details := map[string]any{"status_code": resp.StatusCode}

	var decoded map[string]any
	if json.Unmarshal(body, &decoded) == nil {
		for k, v := range decoded {
			details[k] = v
		}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok && details["error"] == nil {
		details["error"] = fmt.Sprintf("controller returned status %d", resp.StatusCode)
	}

	return provider.Result{
		OK:      ok,
		Details: details,
		Logs:    strings.TrimSpace(string(body)),
	}, nil
}
