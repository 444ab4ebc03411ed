package format

import "github.com/yourorg/klarna-connector/internal/apperror"

// ValidateRequiredFields fails on the first field that is absent, nil or an
// empty string.
func ValidateRequiredFields(data map[string]any, fields []string) error {
	for _, field := range fields {
		v, ok := data[field]
		if !ok || v == nil || v == "" {
			return apperror.MissingField(field)
		}
	}
	return nil
}
