package cmds

import (
	"context"
	"os"

	"optcache/internal/backends"
	"optcache/internal/cache"
	"optcache/internal/gateway"
	"optcache/internal/ports"
	"optcache/internal/types"
)

func loadConfig() (types.Config, error) {
	cfg, err := types.LoadConfig(os.Getenv(ConfigPathEnvKey))
	if err != nil {
		return types.Config{}, err
	}
	return cfg.ApplyEnv()
}

// newStore wires the backends selected by the environment into a hydrated Store.
func newStore(ctx context.Context) (*cache.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rows, err := backends.RowBackendFromEnv()
	if err != nil {
		return nil, err
	}
	publisher, err := backends.PublisherFromEnv()
	if err != nil {
		return nil, err
	}
	gw, err := gateway.New(rows, publisher, cfg)
	if err != nil {
		return nil, err
	}
	snaps, err := backends.SnapshotBackendFromEnv()
	if err != nil {
		return nil, err
	}
	store := cache.NewStore(cfg, gw, snaps)
	store.Hydrate(ctx)
	return store, nil
}

func snapshotStore() (ports.SnapshotStore, error) {
	snaps, err := backends.SnapshotBackendFromEnv()
	if err != nil {
		return nil, err
	}
	if snaps == nil {
		return nil, types.Err(types.ErrInvalidBackend, nil, "no snapshot backend configured")
	}
	return snaps, nil
}

func parseEntities(args []string) ([]types.EntityType, error) {
	out := make([]types.EntityType, 0, len(args))
	for _, a := range args {
		e, err := types.ParseEntityType(a)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
