package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/routinehq/routine/pkg/persistence"
	"github.com/routinehq/routine/pkg/persistence/file"
	"github.com/routinehq/routine/pkg/persistence/memory"
	"github.com/routinehq/routine/pkg/persistence/postgresql"
)

// NewPersistence builds the store adapter named by the database url scheme:
// postgres:// and postgresql:// connect to PostgreSQL, file://PATH stores
// JSON records under PATH, memory:// (or an empty url) keeps everything in
// process.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "file":
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider in url %q", databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	if databaseURL == "" {
		return "memory"
	}

	return strings.Split(databaseURL, "://")[0]
}
