package gateway

import (
	"fmt"
	"strings"

	"optcache/internal/types"

	json "github.com/goccy/go-json"
)

// label returns the display name of a row: the `name` column unless the entity has a
// JMESPath label expression. Non-string selections are JSON encoded.
func (g *Gateway) label(e types.EntityType, row types.Row) (string, error) {
	expr, ok := g.labels[e]
	if !ok {
		return strings.TrimSpace(types.Stringify(row[nameColumn])), nil
	}
	v, err := expr.Search(map[string]any(row))
	if err != nil {
		return "", fmt.Errorf("jmespath: %w", err)
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	default:
		b, _ := json.Marshal(t)
		return string(b), nil
	}
}
