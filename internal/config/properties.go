package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/magiconair/properties"
	"github.com/rs/zerolog"
)

// DefaultPropertiesFile is the resource read when no other name is configured.
const DefaultPropertiesFile = "app.properties"

// Properties is a flat key/value view over a properties resource.
// Missing keys read as the empty string.
type Properties struct {
	k *koanf.Koanf
}

// EmptyProperties returns a mapping with no keys.
func EmptyProperties() *Properties {
	return &Properties{k: koanf.New(".")}
}

// NewProperties builds a mapping from literal key/value pairs.
func NewProperties(values map[string]string) *Properties {
	p := EmptyProperties()
	_ = p.k.Load(confmap.Provider(toAny(values), "."), nil)
	return p
}

// ResolvePath resolves name against root. An empty root is the working directory.
func ResolvePath(root, name string) string {
	if name == "" {
		name = DefaultPropertiesFile
	}
	if root == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(root, name)
}

// ReadProperties parses the resource root/name in Java properties format
// (=, : or whitespace separators, # and ! comments, backslash escapes and
// continuation lines), then overlays USERSTORE_POSTGRES_* environment variables
// (USERSTORE_POSTGRES_URL overrides postgres.url).
// ${...} references are kept literally.
func ReadProperties(root, name string) (*Properties, error) {
	path := ResolvePath(root, name)
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	raw, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read properties %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(toAny(raw.Map()), "."), nil); err != nil {
		return nil, fmt.Errorf("load properties %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", propertyEnvKey), nil); err != nil {
		return nil, fmt.Errorf("load property overrides: %w", err)
	}
	return &Properties{k: k}, nil
}

// LoadProperties is ReadProperties that never fails: when the resource cannot be
// opened or parsed it logs a warning and returns an empty mapping.
func LoadProperties(root, name string, logger zerolog.Logger) *Properties {
	p, err := ReadProperties(root, name)
	if err != nil {
		logger.Warn().Err(err).Str("resource", ResolvePath(root, name)).
			Msg("failed to load application properties")
		return EmptyProperties()
	}
	return p
}

// Get returns the value stored under key, or "" when unset.
func (p *Properties) Get(key string) string {
	if p == nil || p.k == nil {
		return ""
	}
	return p.k.String(key)
}

// Has reports whether key is present.
func (p *Properties) Has(key string) bool {
	return p != nil && p.k != nil && p.k.Exists(key)
}

// Keys returns all keys in sorted order.
func (p *Properties) Keys() []string {
	if p == nil || p.k == nil {
		return nil
	}
	keys := p.k.Keys()
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (p *Properties) Len() int {
	return len(p.Keys())
}

// propertyEnvKey maps USERSTORE_POSTGRES_URL to postgres.url.
// Variables outside the postgres group are ignored.
func propertyEnvKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if !strings.HasPrefix(key, "postgres_") {
		return ""
	}
	return strings.Replace(key, "_", ".", 1)
}

func toAny(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
