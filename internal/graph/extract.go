package graph

import (
	"regexp"
	"strings"

	"github.com/HendryAvila/hoofprint/internal/value"
)

// FullTextKey holds the whole input when no structure could be found.
const FullTextKey = "full_text"

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n(.*?)```")
	headingPattern    = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*\s*$`)
	boldLabelPattern  = regexp.MustCompile(`^(?:\*\*|__)(.+?)(?:\*\*|__)\s*:?\s*(.*)$`)
	plainLabelPattern = regexp.MustCompile(`^([A-Z][A-Za-z][A-Za-z /&]{0,38}):\s*(.*)$`)
	listItemPattern   = regexp.MustCompile(`^\s*(?:[-*+•]|\d{1,3}[.)])\s+(.+)$`)
	namedItemPattern  = regexp.MustCompile(`^(.{1,60}?)\s*(?::|\s-\s|\s–\s)\s*(.+)$`)
	currencyPattern   = regexp.MustCompile(
		`(?i)(?:[$€£¥]\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:k|m|bn|million|billion|thousand)\b)?` +
			`|\b\d[\d,]*(?:\.\d+)?\s?(?:k|m|bn|million|billion|thousand)?\s?(?:USD|EUR|GBP|dollars|euros|pounds)\b)`,
	)
	inlineMarkup = strings.NewReplacer("**", "", "__", "", "`", "")
	slugPattern  = regexp.MustCompile(`[^a-z0-9]+`)
)

// ExtractText turns free text into a structured value. It never fails:
// JSON is used as-is (also inside a fenced block or surrounded by prose),
// markdown is segmented into sections, and anything else becomes
// {"full_text": text}. The result is best-effort and lossy.
func ExtractText(text string) value.Value {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fullText(text)
	}
	if v, ok := parseContainer(trimmed); ok {
		return v
	}
	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		if v, ok := parseContainer(strings.TrimSpace(m[1])); ok {
			return v
		}
	}
	if start, end := strings.IndexByte(trimmed, '{'), strings.LastIndexByte(trimmed, '}'); start >= 0 && end > start {
		if v, ok := parseContainer(trimmed[start : end+1]); ok {
			return v
		}
	}
	if v, ok := segment(trimmed); ok {
		return v
	}
	return fullText(text)
}

func fullText(text string) value.Value {
	return value.Object(value.Member{Key: FullTextKey, Value: value.String(text)})
}

func parseContainer(s string) (value.Value, bool) {
	v, err := value.ParseString(s)
	if err != nil {
		return value.Value{}, false
	}
	switch v.Kind() {
	case value.KindObject:
		return v, true
	case value.KindArray:
		// Top-level scalars have no parent to hang from, so an array of
		// them would expand to nothing.
		for _, item := range v.Items() {
			if k := item.Kind(); k == value.KindObject || k == value.KindArray {
				return v, true
			}
		}
		return value.Value{}, false
	case value.KindString:
		// A JSON-encoded string may itself hold JSON.
		inner, _ := v.AsString()
		return parseContainer(strings.TrimSpace(inner))
	}
	return value.Value{}, false
}

type section struct {
	slug  string
	text  []string
	items []value.Value
}

// segment splits markdown-ish prose into named sections. It reports false
// when nothing structural was found.
func segment(text string) (value.Value, bool) {
	var (
		order      []*section
		bySlug     = map[string]*section{}
		structural bool
	)
	open := func(slug string) *section {
		if s, ok := bySlug[slug]; ok {
			return s
		}
		s := &section{slug: slug}
		bySlug[slug] = s
		order = append(order, s)
		return s
	}
	current := open("summary")

	inFence := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence || strings.TrimSpace(line) == "" {
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			structural = true
			current = open(sectionSlug(m[1]))
			continue
		}
		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			structural = true
			current.items = append(current.items, listItem(m[1]))
			continue
		}
		if m := boldLabelPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			structural = true
			current = open(sectionSlug(m[1]))
			if rest := strings.TrimSpace(m[2]); rest != "" {
				current.text = append(current.text, cleanInline(rest))
			}
			continue
		}
		if m := plainLabelPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil && isKnownSection(sectionSlug(m[1])) {
			structural = true
			current = open(sectionSlug(m[1]))
			if rest := strings.TrimSpace(m[2]); rest != "" {
				current.text = append(current.text, cleanInline(rest))
			}
			continue
		}
		current.text = append(current.text, cleanInline(strings.TrimSpace(line)))
	}

	figures := currencyPattern.FindAllString(text, -1)
	if len(figures) > 0 {
		structural = true
	}
	if !structural {
		return value.Value{}, false
	}

	b := value.NewObjectBuilder()
	for _, s := range order {
		body := strings.Join(s.text, "\n")
		switch {
		case len(s.items) > 0 && body != "":
			b.Set(s.slug, value.Array(s.items...))
			b.Set(s.slug+"_notes", value.String(body))
		case len(s.items) > 0:
			b.Set(s.slug, value.Array(s.items...))
		case body != "":
			b.Set(s.slug, value.String(body))
		}
	}
	if len(figures) > 0 {
		items := make([]value.Value, 0, len(figures))
		for _, f := range figures {
			items = append(items, value.String(strings.TrimSpace(f)))
		}
		b.Set("budget_figures", value.Array(items...))
	}
	if b.Len() == 0 {
		return value.Value{}, false
	}
	return b.Build(), true
}

// listItem turns "Name: detail" and "Name - detail" into an object.
func listItem(s string) value.Value {
	s = strings.TrimSpace(s)
	if m := namedItemPattern.FindStringSubmatch(s); m != nil {
		name := cleanInline(strings.TrimSpace(m[1]))
		desc := cleanInline(strings.TrimSpace(m[2]))
		if name != "" && desc != "" && !currencyPattern.MatchString(name) {
			return value.Object(
				value.Member{Key: "name", Value: value.String(name)},
				value.Member{Key: "description", Value: value.String(desc)},
			)
		}
	}
	return value.String(cleanInline(s))
}

var canonicalSections = []struct {
	slug  string
	words []string
}{
	{"stakeholders", []string{"stakeholder"}},
	{"criteria", []string{"criteria", "criterion"}},
	{"alternatives", []string{"alternative", "option"}},
	{"constraints", []string{"constraint"}},
	{"risks", []string{"risk"}},
	{"recommendation", []string{"recommend"}},
	{"budget", []string{"budget", "cost"}},
	{"summary", []string{"summary", "overview"}},
}

func sectionSlug(heading string) string {
	h := strings.ToLower(cleanInline(heading))
	for _, c := range canonicalSections {
		for _, w := range c.words {
			if strings.Contains(h, w) {
				return c.slug
			}
		}
	}
	slug := strings.Trim(slugPattern.ReplaceAllString(h, "_"), "_")
	if slug == "" || slug == FullTextKey {
		return "section"
	}
	return slug
}

func isKnownSection(slug string) bool {
	for _, c := range canonicalSections {
		if c.slug == slug {
			return true
		}
	}
	return false
}

func cleanInline(s string) string {
	return strings.TrimSpace(inlineMarkup.Replace(s))
}
