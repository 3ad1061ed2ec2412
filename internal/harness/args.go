package harness

import (
	"fmt"
	"time"

	"github.com/roach88/storesync/internal/modal"
)

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func optString(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return def
}

func argInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fmt.Errorf("argument %q must be an integer", key)
	}
	return n, nil
}

func optInt(args map[string]any, key string, def int) int {
	if n, ok := toInt(args[key]); ok {
		return n
	}
	return def
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func optBool(args map[string]any, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}

func argDuration(args map[string]any, key string) (time.Duration, error) {
	s, err := argString(args, key)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("argument %q: %w", key, err)
	}
	return d, nil
}

func argOverlay(args map[string]any) (modal.Overlay, error) {
	s, err := argString(args, "overlay")
	if err != nil {
		return 0, err
	}
	return modal.ParseOverlay(s)
}
