package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatback/chatback/pkg/persistence"
	"github.com/chatback/chatback/pkg/persistence/file"
	"github.com/chatback/chatback/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// postgres:// and postgresql:// URLs get the relational backend; anything
// else is treated as a directory path for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
