// Package normalize shapes loosely typed request fields before they reach the catalog core.
package normalize

import (
	"fmt"
	"strings"

	"katalog/internal/apperror"
)

// StringList turns a list field into an ordered sequence of strings.
// Multipart forms deliver such fields either as repeated values or as one
// comma-joined string; both are accepted. The empty string yields an empty list.
func StringList(v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return []string{}, nil
		}
		return strings.Split(val, ","), nil
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T, want string", apperror.ErrInvalidFieldShape, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T, want list or comma-separated string", apperror.ErrInvalidFieldShape, v)
	}
}
