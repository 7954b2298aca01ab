package utils

import "strings"

// ServiceIDPrefix is the wrapper some billing exports put around service ids
// ("CLI-12345" for a stored "12345").
const ServiceIDPrefix = "CLI-"

// IDVariants returns the exact-match candidates for a raw service id from a
// CSV row, in precedence order: the id as-is, then the prefix-wrapped or
// prefix-stripped form. Suffix matching (stored id ends with the raw id, for
// exports that drop leading zeros or branch codes) is the final fallback and
// is done at query time.
func IDVariants(raw string) []string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return nil
	}
	variants := []string{id}
	if strings.HasPrefix(id, ServiceIDPrefix) {
		variants = append(variants, strings.TrimPrefix(id, ServiceIDPrefix))
	} else {
		variants = append(variants, ServiceIDPrefix+id)
	}
	return variants
}
