// -------------------------------------------------------------------------------
// Connector - Primary and Secondary Store Establishment
//
// Author: Alex Freidah
//
// Opens both stores at startup. The primary is mandatory: any failure to
// connect or prepare its schema is returned to the caller, which aborts
// startup. The secondary is optional: failures are logged and reported as
// None so the service starts in degraded mode. The same secondary step is
// reused by the health prober when it tries to reconnect.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Alaric-Jeff/Records-Information/internal/config"
)

// SecondaryDialer establishes a fresh secondary handle.
type SecondaryDialer interface {
	ConnectSecondary(ctx context.Context) (*Handle, error)
}

// Compile-time check.
var _ SecondaryDialer = (*Connector)(nil)

// Connector establishes store handles from configuration.
type Connector struct {
	primary          config.DatabaseConfig
	secondary        config.DatabaseConfig
	secondaryEnabled bool
}

// NewConnector builds a connector. When sync is disabled the secondary is
// never dialed, even if a url is configured.
func NewConnector(db config.DatabasesConfig, sync config.SyncConfig) *Connector {
	return &Connector{
		primary:          db.Primary,
		secondary:        db.Secondary,
		secondaryEnabled: !sync.Disabled && db.Secondary.Configured(),
	}
}

// SecondaryEnabled reports whether a secondary store will ever be dialed.
func (c *Connector) SecondaryEnabled() bool {
	return c.secondaryEnabled
}

// Establish connects the primary (fatal on failure) and then the secondary
// (absent on failure). Schema preparation runs on each store it connects.
func (c *Connector) Establish(ctx context.Context) (*Handle, OptionalHandle, error) {
	primary, err := c.ConnectPrimary(ctx)
	if err != nil {
		return nil, None(), err
	}
	slog.Info("Connected to primary store", "url", c.primary.Redacted(), "driver", primary.Driver())

	if !c.secondaryEnabled {
		slog.Info("Secondary store not configured, running primary only")
		return primary, None(), nil
	}

	secondary, err := c.ConnectSecondary(ctx)
	if err != nil {
		slog.Warn("Secondary store unavailable at startup, continuing without it",
			"url", c.secondary.Redacted(), "error", err)
		return primary, None(), nil
	}
	slog.Info("Connected to secondary store", "url", c.secondary.Redacted(), "driver", secondary.Driver())

	return primary, Some(secondary), nil
}

// ConnectPrimary opens the primary store and prepares its schema.
func (c *Connector) ConnectPrimary(ctx context.Context) (*Handle, error) {
	h, err := c.connect(ctx, RolePrimary, c.primary)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary store: %w", err)
	}
	return h, nil
}

// ConnectSecondary opens the secondary store and prepares its schema.
func (c *Connector) ConnectSecondary(ctx context.Context) (*Handle, error) {
	if !c.secondaryEnabled {
		return nil, ErrSecondaryNotConfigured
	}
	h, err := c.connect(ctx, RoleSecondary, c.secondary)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to secondary store: %w", err)
	}
	return h, nil
}

func (c *Connector) connect(ctx context.Context, role string, cfg config.DatabaseConfig) (*Handle, error) {
	h, err := openHandle(ctx, role, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, h); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}
