package cmd

import (
	"fmt"
	"strings"

	"github.com/dukex/maestro/pkg/persistence"
	"github.com/dukex/maestro/pkg/persistence/file"
	"github.com/dukex/maestro/pkg/persistence/memory"
	"github.com/dukex/maestro/pkg/persistence/redis"
)

func NewPersistence(databaseURL string) persistence.Store {
	switch parsePersistenceProvider(databaseURL) {
	case "redis":
		store, err := redis.NewStore(databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create Redis store: %w", err))
		}

		return store
	case "memory":
		return memory.NewStore()
	default:
		return file.NewStore(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		if databaseURL == "memory" {
			return "memory"
		}

		return "file"
	}

	switch provider {
	case "redis", "rediss":
		return "redis"
	case "memory":
		return "memory"
	default:
		return "file"
	}
}
