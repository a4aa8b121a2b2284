package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"datagate/internal/authz"
)

// LoadAll reads every entity definition from the database, builds the
// permission index, and swaps the registry snapshot. A malformed
// definition aborts the load before the swap, so the previous snapshot
// keeps serving.
func LoadAll(ctx context.Context, pool *pgxpool.Pool, reg *Registry) error {
	entities, err := loadEntities(ctx, pool)
	if err != nil {
		return fmt.Errorf("load entities: %w", err)
	}

	index, err := BuildIndex(entities)
	if err != nil {
		return fmt.Errorf("build permission index: %w", err)
	}

	reg.Load(entities, index)
	log.Printf("Loaded %d entities into registry", len(entities))
	return nil
}

// Reload is an alias for LoadAll, called after definition mutations.
func Reload(ctx context.Context, pool *pgxpool.Pool, reg *Registry) error {
	return LoadAll(ctx, pool, reg)
}

// BuildIndex compiles the permission index from entity definitions.
func BuildIndex(entities []*Entity) (*authz.PermissionIndex, error) {
	configs := make([]authz.EntityPermissions, 0, len(entities))
	for _, e := range entities {
		configs = append(configs, authz.EntityPermissions{
			Entity:      e.Name,
			Permissions: e.Permissions,
		})
	}
	return authz.BuildIndex(configs)
}

func loadEntities(ctx context.Context, pool *pgxpool.Pool) ([]*Entity, error) {
	rows, err := pool.Query(ctx, "SELECT name, definition FROM _entities ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var name string
		var defJSON []byte
		if err := rows.Scan(&name, &defJSON); err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}

		var entity Entity
		if err := json.Unmarshal(defJSON, &entity); err != nil {
			return nil, fmt.Errorf("entity %s: invalid definition: %w", name, err)
		}
		if err := entity.Validate(); err != nil {
			return nil, err
		}
		entities = append(entities, &entity)
	}
	return entities, rows.Err()
}
