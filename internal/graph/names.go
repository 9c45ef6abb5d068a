package graph

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxNameRunes bounds display names. Leaf values are stored in full.
const maxNameRunes = 200

var indexSuffix = regexp.MustCompile(`\[(\d+)\]`)

// baseKey strips array positions: "stakeholders[0][1]" -> "stakeholders".
func baseKey(key string) string {
	if i := strings.IndexByte(key, '['); i >= 0 {
		return key[:i]
	}
	return key
}

func normalizeKey(key string) string {
	return strings.ToLower(baseKey(key))
}

// CleanKey renders a structural key as a human label. Separators become
// spaces, words are capitalized and array positions become "#n" (1-based).
func CleanKey(key string) string {
	base := baseKey(key)
	if base == RootKey {
		base = ""
	}
	words := strings.FieldsFunc(splitCamel(base), func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	label := strings.Join(words, " ")

	for _, m := range indexSuffix.FindAllStringSubmatch(key, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if label != "" {
			label += " "
		}
		label += "#" + strconv.Itoa(n+1)
	}
	return label
}

// splitCamel inserts a space at lower-to-upper boundaries.
func splitCamel(s string) string {
	var sb strings.Builder
	var prev rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(prev) {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
		prev = r
	}
	return sb.String()
}

// roleLabel names an anchor container when the payload has no name field.
func roleLabel(role Role) string {
	s := strings.ToLower(string(role))
	if s == "" {
		return "Root"
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func truncateName(s string) string {
	if utf8.RuneCountInString(s) <= maxNameRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxNameRunes]) + "..."
}
