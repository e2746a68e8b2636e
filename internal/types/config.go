package types

import (
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

// Config drives the caches and the gateways. It is read from a YAML file and then
// overridden by environment variables (see ApplyEnv).
// CacheTTL is the staleness window of the global cache, MemoTTL the gateway's
// short-lived memo, HookTTL the per-instance hook cache.
// FetchTimeout bounds a single remote fetch; BackoffBase/BackoffMax shape the timeout
// of later attempts and MaxFailures is the number of consecutive failures after which
// the attempt counter resets and fallback data is considered.
// SearchDebounce is the minimum interval between identical searches.
type Config struct {
	CacheTTL       time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	MemoTTL        time.Duration `yaml:"memo_ttl" json:"memo_ttl"`
	HookTTL        time.Duration `yaml:"hook_ttl" json:"hook_ttl"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	BackoffBase    time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max" json:"backoff_max"`
	MaxFailures    int           `yaml:"max_failures" json:"max_failures"`
	SearchDebounce time.Duration `yaml:"search_debounce" json:"search_debounce"`
	DefaultLimit   int           `yaml:"default_limit" json:"default_limit"`

	// Entities holds per-entity overrides, keyed by entity type.
	Entities map[EntityType]EntityConfig `yaml:"entities" json:"entities"`
}

// EntityConfig customizes how an entity maps to the backend.
type EntityConfig struct {
	// Table defaults to the entity name.
	Table string `yaml:"table" json:"table"`
	// LabelExpr is a JMESPath expression evaluated against the row to build the label.
	// Empty means the `name` column.
	LabelExpr string `yaml:"label_expr" json:"label_expr"`
	// Fallback is the built-in option list for essential entities.
	Fallback []Option `yaml:"fallback" json:"fallback"`
}

const (
	MinFetchTimeout = 10 * time.Millisecond
	MaxLimit        = 1000
)

func DefaultConfig() Config {
	return Config{
		CacheTTL:       30 * time.Minute,
		MemoTTL:        15 * time.Minute,
		HookTTL:        5 * time.Minute,
		FetchTimeout:   3 * time.Second,
		BackoffBase:    time.Second,
		BackoffMax:     10 * time.Second,
		MaxFailures:    3,
		SearchDebounce: time.Second,
		DefaultLimit:   50,
		Entities: map[EntityType]EntityConfig{
			Categories: {Fallback: []Option{
				{Value: "default-banners", Label: "Banners"},
				{Value: "default-cards", Label: "Business Cards"},
				{Value: "default-flyers", Label: "Flyers"},
				{Value: "default-other", Label: "Other"},
			}},
			Sizes: {Fallback: []Option{
				{Value: "default-a4", Label: "A4"},
				{Value: "default-a5", Label: "A5"},
				{Value: "default-letter", Label: "Letter"},
				{Value: "default-custom", Label: "Custom"},
			}},
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, Err(ErrInvalidConfig, err, "read %s", path)
	}
	// The decoder replaces maps wholesale, so entity overrides are decoded apart and merged.
	defaults := cfg.Entities
	cfg.Entities = nil
	// Options in fallback lists use the same flat shape as on the wire.
	if err := yaml.UnmarshalWithOptions(b, &cfg, yaml.UseJSONUnmarshaler()); err != nil {
		return Config{}, Err(ErrInvalidConfig, err, "parse %s", path)
	}
	cfg.Entities = mergeEntities(defaults, cfg.Entities)
	return cfg, cfg.Validate()
}

// mergeEntities lays overrides over base field by field. An override without a fallback list
// keeps the base one.
func mergeEntities(base, overrides map[EntityType]EntityConfig) map[EntityType]EntityConfig {
	out := make(map[EntityType]EntityConfig, len(base)+len(overrides))
	for e, ec := range base {
		out[e] = ec
	}
	for e, ec := range overrides {
		cur := out[e]
		if ec.Table != "" {
			cur.Table = ec.Table
		}
		if ec.LabelExpr != "" {
			cur.LabelExpr = ec.LabelExpr
		}
		if len(ec.Fallback) > 0 {
			cur.Fallback = ec.Fallback
		}
		out[e] = cur
	}
	return out
}

const (
	EnvCacheTTL       = "OPTCACHE_CACHE_TTL"
	EnvMemoTTL        = "OPTCACHE_MEMO_TTL"
	EnvHookTTL        = "OPTCACHE_HOOK_TTL"
	EnvFetchTimeout   = "OPTCACHE_FETCH_TIMEOUT"
	EnvSearchDebounce = "OPTCACHE_SEARCH_DEBOUNCE"
	EnvDefaultLimit   = "OPTCACHE_DEFAULT_LIMIT"
)

// ApplyEnv overrides durations and limits from the environment, then validates.
func (c Config) ApplyEnv() (Config, error) {
	durations := map[string]*time.Duration{
		EnvCacheTTL:       &c.CacheTTL,
		EnvMemoTTL:        &c.MemoTTL,
		EnvHookTTL:        &c.HookTTL,
		EnvFetchTimeout:   &c.FetchTimeout,
		EnvSearchDebounce: &c.SearchDebounce,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, Err(ErrInvalidConfig, err, "%s", key)
		}
		*dst = d
	}
	if v := os.Getenv(EnvDefaultLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, Err(ErrInvalidConfig, err, "%s", EnvDefaultLimit)
		}
		c.DefaultLimit = n
	}
	return c, c.Validate()
}

// Table returns the backend table for an entity.
func (c Config) Table(e EntityType) string {
	if ec, ok := c.Entities[e]; ok && ec.Table != "" {
		return ec.Table
	}
	return string(e)
}

func (c Config) LabelExpr(e EntityType) string {
	return c.Entities[e].LabelExpr
}

// FallbackFor returns the defaults of an essential entity, nil otherwise.
func (c Config) FallbackFor(e EntityType) []Option {
	if !e.Essential() {
		return nil
	}
	return CloneOptions(c.Entities[e].Fallback)
}

func (c Config) Validate() error {
	if c.CacheTTL <= 0 {
		return Err(ErrInvalidConfig, nil, "cache_ttl must be positive")
	}
	if c.MemoTTL < 0 {
		return Err(ErrInvalidConfig, nil, "memo_ttl must be non-negative. 0 disables the memo")
	}
	if c.HookTTL <= 0 {
		return Err(ErrInvalidConfig, nil, "hook_ttl must be positive")
	}
	if c.FetchTimeout < MinFetchTimeout {
		return Err(ErrInvalidConfig, nil, "fetch_timeout must be at least %s", MinFetchTimeout)
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		return Err(ErrInvalidConfig, nil, "backoff_base must be positive and backoff_max greater than or equal to it")
	}
	if c.MaxFailures <= 0 {
		return Err(ErrInvalidConfig, nil, "max_failures must be positive")
	}
	if c.SearchDebounce < 0 {
		return Err(ErrInvalidConfig, nil, "search_debounce must be non-negative")
	}
	if c.DefaultLimit <= 0 || c.DefaultLimit > MaxLimit {
		return Err(ErrInvalidConfig, nil, "default_limit must be within (0, %d]", MaxLimit)
	}
	for e, ec := range c.Entities {
		if !e.Valid() {
			return Err(ErrInvalidConfig, nil, "entities: unknown entity type %q", e)
		}
		for _, o := range ec.Fallback {
			if o.Value == "" || o.Label == "" {
				return Err(ErrInvalidConfig, nil, "entities.%s.fallback: value and label are required", e)
			}
		}
	}
	return nil
}
