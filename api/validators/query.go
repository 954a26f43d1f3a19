package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
)

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func queryError(key, msg string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

// ParseQueryInt returns defaultVal when key is absent and rejects values
// outside [lo, hi].
func ParseQueryInt(r *http.Request, key string, defaultVal, lo, hi int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "query parameter must be numeric", nil)
	}
	if value < lo || value > hi {
		return 0, queryError(key, "query parameter out of range", map[string]any{"min": lo, "max": hi})
	}
	return value, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, queryError(key, "query parameter must be a boolean", nil)
	}
	return value, nil
}

// ParseQueryEnum runs parse on the parameter and reports ok=false when it
// is absent.
func ParseQueryEnum[T ~string](r *http.Request, key string, parse func(string) (T, error)) (value T, ok bool, err error) {
	raw := queryValue(r, key)
	if raw == "" {
		return value, false, nil
	}
	value, err = parse(strings.ToLower(raw))
	if err != nil {
		return value, false, queryError(key, "query parameter has an unknown value", map[string]any{"value": raw})
	}
	return value, true, nil
}
