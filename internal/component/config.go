package component

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v2"

	apperrors "dfolks/internal/errors"
)

// KindKey is the discriminator key of every component config
const KindKey = "kind"

// Config is a component configuration in declaration order
type Config yaml.MapSlice

// AsConfig converts any supported mapping type to a Config.
// Go maps have no order, so their keys are sorted.
func AsConfig(v any) (Config, bool) {
	switch m := v.(type) {
	case Config:
		return m, true
	case *Config:
		if m == nil {
			return nil, false
		}
		return *m, true
	case yaml.MapSlice:
		return Config(m), true
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cfg := make(Config, 0, len(m))
		for _, k := range keys {
			cfg = append(cfg, yaml.MapItem{Key: k, Value: m[k]})
		}
		return cfg, true
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(m))
		values := make(map[string]interface{}, len(m))
		for k, val := range m {
			ks := fmt.Sprint(k)
			keys = append(keys, ks)
			values[ks] = val
		}
		sort.Strings(keys)
		cfg := make(Config, 0, len(m))
		for _, k := range keys {
			cfg = append(cfg, yaml.MapItem{Key: k, Value: values[k]})
		}
		return cfg, true
	}
	return nil, false
}

// ParseConfig accepts a mapping or a serialized YAML/JSON mapping
func ParseConfig(v any) (Config, error) {
	var raw []byte
	switch s := v.(type) {
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		if cfg, ok := AsConfig(v); ok {
			return cfg, nil
		}
		return nil, apperrors.NewConfigError(fmt.Sprintf("component config must be a mapping, got %T", v), nil)
	}

	var ms yaml.MapSlice
	if err := yaml.Unmarshal(raw, &ms); err != nil {
		return nil, apperrors.NewConfigError("component config is not a serialized mapping", err)
	}
	for _, item := range ms {
		if _, ok := item.Key.(string); !ok {
			return nil, apperrors.NewConfigError(
				fmt.Sprintf("component config key %v (%T) is not a string, quote it", item.Key, item.Key), nil).
				WithContext("key", fmt.Sprint(item.Key))
		}
	}
	return Config(ms), nil
}

// Get returns the value stored under key
func (c Config) Get(key string) (any, bool) {
	for _, item := range c {
		if fmt.Sprint(item.Key) == key {
			return item.Value, true
		}
	}
	return nil, false
}

// Kind returns the discriminator, or false when it is absent or not a non-empty string
func (c Config) Kind() (string, bool) {
	v, ok := c.Get(KindKey)
	if !ok {
		return "", false
	}
	kind, ok := v.(string)
	if !ok || kind == "" {
		return "", false
	}
	return kind, true
}

// Without returns a copy of c without the given keys
func (c Config) Without(keys ...string) Config {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	out := make(Config, 0, len(c))
	for _, item := range c {
		if !skip[fmt.Sprint(item.Key)] {
			out = append(out, item)
		}
	}
	return out
}

// Set returns a copy of c with key set to value, keeping its position if present
func (c Config) Set(key string, value any) Config {
	out := make(Config, 0, len(c)+1)
	replaced := false
	for _, item := range c {
		if fmt.Sprint(item.Key) == key {
			out = append(out, yaml.MapItem{Key: key, Value: value})
			replaced = true
			continue
		}
		out = append(out, item)
	}
	if !replaced {
		out = append(out, yaml.MapItem{Key: key, Value: value})
	}
	return out
}

// Keys returns the keys in order
func (c Config) Keys() []string {
	keys := make([]string, len(c))
	for i, item := range c {
		keys[i] = fmt.Sprint(item.Key)
	}
	return keys
}

// MarshalYAML keeps the declaration order when re-encoding
func (c Config) MarshalYAML() (interface{}, error) {
	return yaml.MapSlice(c), nil
}

// UnmarshalYAML decodes a mapping while keeping its order
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ms yaml.MapSlice
	if err := unmarshal(&ms); err != nil {
		return err
	}
	*c = Config(ms)
	return nil
}
