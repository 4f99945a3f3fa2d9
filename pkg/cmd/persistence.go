package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/netpilot/netpilot/pkg/persistence"
	"github.com/netpilot/netpilot/pkg/persistence/file"
	"github.com/netpilot/netpilot/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence backend from a database URL.
// postgres:// and postgresql:// URLs select the database backend; anything
// else is treated as a file root, with an optional file:// prefix.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}
