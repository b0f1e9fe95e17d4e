package utils

import "strings"

// ToSnakeCase converts a string to snake_case
func ToSnakeCase(s string) string {
	if s == "" {
		return s
	}

	var result strings.Builder
	result.Grow(len(s) + 10)

	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		// Break before an upper-case letter unless it continues an acronym
		if i > 0 && upper {
			prevUpper := runes[i-1] >= 'A' && runes[i-1] <= 'Z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if !prevUpper || nextLower {
				result.WriteByte('_')
			}
		}
		if upper {
			result.WriteRune(r - 'A' + 'a')
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// SanitizeFileName makes a resource name safe to use as a single path
// element. Path separators become '@' so nested names stay distinguishable.
func SanitizeFileName(name string) string {
	if name == "" {
		return "_"
	}
	name = strings.ReplaceAll(name, "/", "@")
	name = strings.ReplaceAll(name, "\\", "@")
	if name == "." || name == ".." {
		return strings.Repeat("_", len(name))
	}
	return name
}
