package models

import (
	"strconv"
	"strings"
)

// Payload carries the intent-specific fields extracted upstream.
type Payload map[string]interface{}

func (p Payload) GetString(key string) string {
	if p == nil {
		return ""
	}
	val, ok := p[key]
	if !ok || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// GetStringOr returns def when the key is missing or blank.
func (p Payload) GetStringOr(key, def string) string {
	if s := p.GetString(key); s != "" {
		return s
	}
	return def
}

func (p Payload) GetFloat(key string) float64 {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "$")), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
