package gateway

import (
	"strings"

	"optcache/internal/types"
)

// friendly patterns, matched against the lower-cased backend message.
var friendly = []struct {
	patterns []string
	message  string
}{
	{[]string{"23505", "duplicate key"}, "An option with this name already exists"},
	{[]string{"23503", "foreign key"}, "The selected parent no longer exists"},
	{[]string{"42501", "permission denied", "row-level security"}, "You do not have permission to modify this list"},
}

// backendError wraps a backend failure. Known patterns get a friendlier message,
// others keep the backend's own text.
func backendError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, f := range friendly {
		for _, p := range f.patterns {
			if strings.Contains(msg, p) {
				return types.Err(types.ErrBackend, err, "%s", f.message)
			}
		}
	}
	return types.Err(types.ErrBackend, err, "%s", err.Error())
}
