package auth

import (
	"strconv"
	"strings"
	"time"
)

const DefaultTTL = time.Hour

// ParseTTL interprets a token lifetime. Strings take the form "<n>h",
// "<n>m" or "<n>s"; integers are seconds. Anything else yields DefaultTTL
// with ok set to false. Compound values such as "2h30m" are rejected as a
// whole rather than truncated to their leading number.
func ParseTTL(ttl any) (d time.Duration, ok bool) {
	switch v := ttl.(type) {
	case time.Duration:
		return v, true
	case int:
		return time.Duration(v) * time.Second, true
	case int64:
		return time.Duration(v) * time.Second, true
	case float64:
		return time.Duration(v) * time.Second, true
	case string:
		return parseTTLString(v)
	}
	return DefaultTTL, false
}

func parseTTLString(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTTL, false
	}
	var unit time.Duration
	switch value[len(value)-1] {
	case 'h':
		unit = time.Hour
	case 'm':
		unit = time.Minute
	case 's':
		unit = time.Second
	default:
		return DefaultTTL, false
	}
	n, err := strconv.Atoi(value[:len(value)-1])
	if err != nil || n < 0 {
		return DefaultTTL, false
	}
	return time.Duration(n) * unit, true
}
