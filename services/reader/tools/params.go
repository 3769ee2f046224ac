// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseArguments decodes a tool call's JSON argument object.
// Empty input decodes to an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	params := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object: %v", ErrInvalidArguments, err)
	}
	return params, nil
}

// ValidateParams checks presence and type of every declared parameter.
func ValidateParams(def ToolDefinition, params map[string]any) error {
	for _, name := range def.RequiredParams() {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("%w: missing required parameter %q", ErrInvalidArguments, name)
		}
	}
	for name, p := range def.Parameters {
		v, ok := params[name]
		if !ok || v == nil {
			continue
		}
		switch p.Type {
		case ParamTypeInt:
			n, err := toInt(v)
			if err != nil {
				return fmt.Errorf("%w: parameter %q %v", ErrInvalidArguments, name, err)
			}
			if p.Minimum != nil && n < *p.Minimum {
				return fmt.Errorf("%w: parameter %q must be at least %d, got %d", ErrInvalidArguments, name, *p.Minimum, n)
			}
			if p.Maximum != nil && n > *p.Maximum {
				return fmt.Errorf("%w: parameter %q must be at most %d, got %d", ErrInvalidArguments, name, *p.Maximum, n)
			}
		case ParamTypeString:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%w: parameter %q must be a string, got %T", ErrInvalidArguments, name, v)
			}
		}
	}
	return nil
}

// getIntParam returns an integer parameter, falling back to def when absent.
// Call after ValidateParams.
func getIntParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	n, err := toInt(v)
	if err != nil {
		return def
	}
	return n
}

// getStringParam returns a string parameter, falling back to def when absent.
func getStringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

// toInt accepts JSON numbers with integral values and numeric strings,
// which some models emit for integer arguments.
func toInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || math.IsNaN(val) {
			return 0, fmt.Errorf("must be an integer, got %v", val)
		}
		if math.Abs(val) >= math.MaxInt {
			return 0, fmt.Errorf("is out of range, got %v", val)
		}
		return int(val), nil
	case json.Number:
		n, err := strconv.Atoi(val.String())
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %s", val)
		}
		return n, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("must be an integer, got %T", v)
	}
}

func intPtr(n int) *int {
	return &n
}
