// Package fuzzy holds the normalized string comparisons shared by the
// matchers, the anomaly detector, and the element finder. Keeping them in
// one place stops the comparison rules from drifting apart between callers.
package fuzzy

import (
	"strings"
	"unicode"
)

// EqualFold reports case-insensitive equality after trimming whitespace.
func EqualFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ContainsFold reports whether either string contains the other,
// case-insensitively. Blank strings never match.
func ContainsFold(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Normalize lowercases s and strips everything that is not a letter or
// digit. Used for flexible comparisons where punctuation and separators
// vary between recordings ("btn_ok" vs "btn-ok" vs "Btn OK").
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizedContains reports whether the normalized forms of a and b
// contain each other in either direction.
func NormalizedContains(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// ShortID returns the short resource name of a fully qualified view id,
// e.g. "com.example.app:id/btn_ok" -> "btn_ok". Ids without a path
// separator are returned unchanged.
func ShortID(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// SimpleName returns the segment after the last dot, e.g.
// "android.widget.Button" -> "Button".
func SimpleName(class string) string {
	class = strings.TrimSpace(class)
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[i+1:]
	}
	return class
}
