// Package clissh provides a CLI session provider driver that pushes rendered
// configuration lines to a device over SSH. Diff is not supported; use a
// controller-backed provider where a candidate-config diff is available.
package clissh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netpilot/netpilot/pkg/catalog"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/provider"
)

const (
	// DriverKey is the registry key provider definitions reference.
	DriverKey = "clissh"

	defaultPort    = 22
	defaultTimeout = 30 * time.Second
)

// Driver pushes configuration over an interactive SSH session. A driver is
// scoped to one step invocation; the connection is opened lazily on Apply
// and released by Close on every exit path.
type Driver struct {
	logger   *slog.Logger
	settings map[string]any
	client   *ssh.Client
}

// Factory creates clissh drivers.
type Factory struct{}

// NewFactory returns the clissh driver factory.
func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return DriverKey
}

func (f *Factory) Create(instance *models.ProviderInstance, logger *slog.Logger) (provider.Driver, error) {
	return &Driver{
		logger:   logger,
		settings: instance.Settings,
	}, nil
}

// ValidateTarget requires a device with a reachable address.
func (d *Driver) ValidateTarget(_ context.Context, target catalog.Target) error {
	device, ok := target.(*catalog.Device)
	if !ok {
		return fmt.Errorf("clissh targets must be devices, got %q", target.TargetKind())
	}

	if device.PrimaryIP == "" && device.Name == "" {
		return errors.New("target device has no primary IP and no hostname")
	}

	return nil
}

// Diff is not supported by a plain CLI session.
func (d *Driver) Diff(_ context.Context, _ provider.Request) (provider.Result, error) {
	return provider.Result{}, fmt.Errorf("clissh has no candidate-config diff: %w", provider.ErrCapabilityNotSupported)
}

// Apply opens an SSH session and sends the rendered content line by line as
// a configuration set.
func (d *Driver) Apply(ctx context.Context, req provider.Request) (provider.Result, error) {
	if err := d.ValidateTarget(ctx, req.Target); err != nil {
		return provider.Result{OK: false, Details: map[string]any{"error": err.Error()}}, nil
	}

	commands := configLines(req.RenderedContent)
	if len(commands) == 0 {
		return provider.Result{OK: true, Details: map[string]any{"applied": 0}, Logs: "No commands to apply."}, nil
	}

	session, err := d.session(req)
	if err != nil {
		return provider.Result{OK: false, Details: map[string]any{"error": err.Error()}}, nil
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			d.logger.Warn("Failed to close SSH session", "error", closeErr)
		}
	}()

	output, err := session.CombinedOutput(strings.Join(commands, "\n"))
	logs := strings.TrimSpace(string(output))

	if err != nil {
		return provider.Result{
			OK:      false,
			Details: map[string]any{"error": err.Error()},
			Logs:    logs,
		}, nil
	}

	return provider.Result{
		OK:      true,
		Details: map[string]any{"applied": len(commands)},
		Logs:    logs,
	}, nil
}

// Close releases the SSH connection if one was opened.
func (d *Driver) Close() error {
	if d.client == nil {
		return nil
	}

	err := d.client.Close()
	d.client = nil

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close ssh connection: %w", err)
	}

	return nil
}

func (d *Driver) session(req provider.Request) (*ssh.Session, error) {
	if d.client == nil {
		client, err := d.dial(req)
		if err != nil {
			return nil, err
		}

		d.client = client
	}

	session, err := d.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open ssh session: %w", err)
	}

	return session, nil
}

func (d *Driver) dial(req provider.Request) (*ssh.Client, error) {
	device := req.Target.(*catalog.Device)

	host := device.PrimaryIP
	if host == "" {
		host = stringSetting(d.settings, "host")
	}

	if host == "" {
		host = device.Name
	}

	username := stringSetting(d.settings, "username")
	password := stringSetting(d.settings, "password")

	if username == "" {
		return nil, errors.New("clissh settings must include username")
	}

	port := defaultPort
	if p, ok := d.settings["port"].(float64); ok && p > 0 {
		port = int(p)
	}

	config := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // device host keys are not cataloged
		Timeout:         defaultTimeout,
	}

	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	client, err := ssh.Dial("tcp", address, config)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	return client, nil
}

func configLines(rendered string) []string {
	var lines []string

	for _, line := range strings.Split(rendered, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return lines
}

func stringSetting(settings map[string]any, key string) string {
	value, _ := settings[key].(string)

	return value
}
