package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct using its `env`
// and `envDefault` tags.
func Load(cfg any) error {
	return LoadWithPrefix(cfg, "")
}

// LoadWithPrefix is like Load but every variable name is looked up with the
// given prefix, e.g. "SEARCH_" turns `env:"HTTP_PORT"` into SEARCH_HTTP_PORT.
func LoadWithPrefix(cfg any, prefix string) error {
	opts := env.Options{
		Prefix: prefix,
		FuncMap: map[reflect.Type]env.ParserFunc{
			// Allow plain integers for durations, interpreted as seconds.
			reflect.TypeOf(time.Duration(0)): parseDuration,
		},
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func parseDuration(v string) (any, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err != nil {
		return nil, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs) * time.Second, nil
}
