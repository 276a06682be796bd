package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Option func(v *viper.Viper)

// WithEnvPrefix only binds environment variables starting with prefix, e.g. TEAMQUIZ_HTTP_PORT.
func WithEnvPrefix(prefix string) Option {
	return func(v *viper.Viper) {
		v.SetEnvPrefix(prefix)
	}
}

// Load config from file into the config struct, config must be a pointer to the config struct.
// Values already set in config are used as defaults. An empty file loads defaults and environment only.
func Load(file string, config any, opts ...Option) error {
	v := viper.New()

	m, err := toMap(config)
	if err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}
	setDefaults(v, "", m)

	for _, opt := range opts {
		opt(v)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

// toMap decodes nested structs into nested maps so every leaf becomes a known key.
func toMap(in any) (map[string]any, error) {
	m := make(map[string]any)
	if err := mapstructure.Decode(in, &m); err != nil {
		return nil, err
	}

	for k, val := range m {
		if reflect.Indirect(reflect.ValueOf(val)).Kind() != reflect.Struct {
			continue
		}

		sub, err := toMap(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		m[k] = sub
	}

	return m, nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}

		v.SetDefault(key, val)
	}
}
