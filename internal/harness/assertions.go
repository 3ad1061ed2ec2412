package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// matchSubset checks expected against actual. Maps match as subsets, lists
// must have equal length and match element-wise, scalars must be equal.
// Both sides are expected in JSON form (numbers as float64). On mismatch
// it returns a description naming the first differing path.
func matchSubset(actual, expected any, path string) (string, bool) {
	switch want := expected.(type) {
	case map[string]any:
		got, ok := actual.(map[string]any)
		if !ok {
			return fmt.Sprintf("%s: expected object, got %s", path, render(actual)), false
		}
		keys := make([]string, 0, len(want))
		for k := range want {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, present := got[k]
			if !present {
				return fmt.Sprintf("%s.%s: missing", path, k), false
			}
			if mismatch, ok := matchSubset(v, want[k], path+"."+k); !ok {
				return mismatch, false
			}
		}
		return "", true

	case []any:
		got, ok := actual.([]any)
		if !ok {
			if actual == nil && len(want) == 0 {
				return "", true
			}
			return fmt.Sprintf("%s: expected list, got %s", path, render(actual)), false
		}
		if len(got) != len(want) {
			return fmt.Sprintf("%s: expected %d elements, got %s", path, len(want), render(actual)), false
		}
		for i := range want {
			if mismatch, ok := matchSubset(got[i], want[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return mismatch, false
			}
		}
		return "", true

	default:
		if !reflect.DeepEqual(actual, expected) {
			return fmt.Sprintf("%s: expected %s, got %s", path, render(expected), render(actual)), false
		}
		return "", true
	}
}

// normalize round-trips v through JSON so YAML integers compare equal to
// snapshot numbers.
func normalize(v map[string]any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func render(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// formatArgs renders args as sorted k=v pairs. Nested values render as
// compact JSON.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var v string
		switch val := args[k].(type) {
		case string:
			v = val
		case map[string]any, []any:
			v = render(val)
		default:
			v = fmt.Sprint(val)
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, " ")
}
