package ports

import (
	"context"
	"optcache/internal/types"
)

// Publisher announces that an entity's data changed so dependents can revalidate.
type Publisher interface {
	PublishRevalidation(ctx context.Context, msg types.Revalidation) error
}
