package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"katalog/internal/apperror"
	"katalog/internal/models"
)

const (
	// DefaultSkip is used when skip is absent.
	DefaultSkip = 0
	// DefaultTake is used when take is absent.
	DefaultTake = 10
)

// Pagination normalizes optional skip/take values into a Page.
// Values may be Go integers, integral float64 (decoded JSON) or base-10 strings
// (query parameters). An explicit zero take is kept and selects no rows.
// No upper bound is applied here.
func Pagination(skip, take any) (models.Page, error) {
	s, err := pageValue("skip", skip, DefaultSkip)
	if err != nil {
		return models.Page{}, err
	}
	t, err := pageValue("take", take, DefaultTake)
	if err != nil {
		return models.Page{}, err
	}
	return models.Page{Skip: s, Take: t}, nil
}

func pageValue(name string, v any, def int) (int, error) {
	var n int64
	switch val := v.(type) {
	case nil:
		return def, nil
	case *int:
		if val == nil {
			return def, nil
		}
		n = int64(*val)
	case *string:
		if val == nil {
			return def, nil
		}
		return pageValue(name, *val, def)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return def, nil
		}
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q is not an integer", apperror.ErrInvalidPagination, name, val)
		}
		n = parsed
	case int:
		n = int64(val)
	case int8:
		n = int64(val)
	case int16:
		n = int64(val)
	case int32:
		n = int64(val)
	case int64:
		n = val
	case uint:
		n = int64(val)
	case uint8:
		n = int64(val)
	case uint16:
		n = int64(val)
	case uint32:
		n = int64(val)
	case uint64:
		if val > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %s %d out of range", apperror.ErrInvalidPagination, name, val)
		}
		n = int64(val)
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || math.IsNaN(val) {
			return 0, fmt.Errorf("%w: %s %v is not an integer", apperror.ErrInvalidPagination, name, val)
		}
		n = int64(val)
	default:
		return 0, fmt.Errorf("%w: %s has unsupported type %T", apperror.ErrInvalidPagination, name, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", apperror.ErrInvalidPagination, name)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %d out of range", apperror.ErrInvalidPagination, name, n)
	}
	return int(n), nil
}
