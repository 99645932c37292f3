// Package config provides configuration loading and parsing for pipefire.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Settings decoded from a config file arrive as loosely typed values; the
// helpers below coerce them with cast and treat blank strings as unset.

// lookupSetting returns the value of the first key present in settings,
// trying each key as written and lower-cased.
func lookupSetting(settings map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := settings[key]; ok {
			return v, true
		}
		if v, ok := settings[strings.ToLower(key)]; ok {
			return v, true
		}
	}
	return nil, false
}

func trimmed(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return v, false
	}
	s = strings.TrimSpace(s)
	return s, s == ""
}

func asString(v any) (string, error) {
	return cast.ToStringE(v)
}

func asInt(v any) (int, error) {
	v, _ = trimmed(v)
	return cast.ToIntE(v)
}

func asFloat64(v any) (float64, error) {
	v, _ = trimmed(v)
	return cast.ToFloat64E(v)
}

func asBool(v any) (bool, error) {
	v, blank := trimmed(v)
	if blank {
		return false, nil
	}
	return cast.ToBoolE(v)
}

// asDuration accepts Go duration strings; bare numbers count as seconds.
func asDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		if d = strings.TrimSpace(d); d == "" {
			return 0, nil
		}
		return time.ParseDuration(d)
	}
	secs, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("unsupported duration %v (%T)", v, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// asStringSlice keeps a lone string whole; threshold expressions contain
// spaces.
func asStringSlice(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{s}, nil
	}
	return cast.ToStringSliceE(v)
}

// toStringKeyMap normalises a nested section to trimmed lower-case keys.
func toStringKeyMap(v any) (map[string]any, error) {
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", v)
	}
	out := make(map[string]any, len(m))
	for key, val := range m {
		out[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return out, nil
}
