package tools

import (
	"fmt"
	"strings"
)

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return strings.TrimSpace(s)
}

func floatArg(input map[string]any, key string) (float64, error) {
	v, ok := toFloat(input[key])
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

func intArg(input map[string]any, key string, def int) int {
	if v, ok := toFloat(input[key]); ok {
		return int(v)
	}
	return def
}

func objectArg(input map[string]any, key string) map[string]any {
	m, _ := input[key].(map[string]any)
	return m
}
