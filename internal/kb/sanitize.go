package kb

import "strings"

// Sanitize implements S(url), the deterministic data-source-to-index-segment
// transform (§4.1):
//  1. Strip scheme.
//  2. Replace '.' -> '_', '/' -> '.', '-' -> '_'.
//  3. Drop any character outside [a-z0-9._-] (case-folding first).
//  4. Truncate to 50 characters.
//  5. Strip leading/trailing "._-".
//  6. Lower-case the result.
func Sanitize(dataSource string) string {
	s := strings.ReplaceAll(dataSource, "https://", "")
	s = strings.ReplaceAll(s, "http://", "")
	s = strings.ToLower(s)

	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", ".")
	s = strings.ReplaceAll(s, "-", "_")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}
	out := b.String()

	if len(out) > 50 {
		out = out[:50]
	}

	out = strings.Trim(out, "-_.")

	return out
}
