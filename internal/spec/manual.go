package spec

import (
	"regexp"
	"strings"
)

var (
	nameClause = regexp.MustCompile(`(?i)\b(?:called|named)\s+(\w+)`)
	// Separators stay attached to the phrase they introduce.
	separator = regexp.MustCompile(`\b(?:with an?|and an?|and)\s+`)
	leading   = regexp.MustCompile(`^(?:with an?|and an?|and)\s+`)
)

// constraintMarkers turn a phrase into a global constraint.
var constraintMarkers = []string{"design", "use a database", "secure login"}

// skipMarkers identify the phrase that introduces the app itself.
var skipMarkers = []string{"build an", "build a ", "create an", "create a ", "called", "named"}

// ManualParse extracts a Document from free text without a model. It never
// fails: missing parts fall back to the defaults.
func ManualParse(text string) Document {
	doc := Document{Name: DefaultName, Technologies: DefaultTechnologies()}
	if m := nameClause.FindStringSubmatch(text); m != nil {
		doc.Name = m[1]
	}

	var constraints []string
	type phrase struct{ name, description string }
	var phrases []phrase

	for _, raw := range splitPhrases(strings.ToLower(text)) {
		if containsAny(raw, skipMarkers) {
			continue
		}
		clean := strings.TrimSpace(leading.ReplaceAllString(raw, ""))
		clean = strings.TrimRight(clean, ".,;!")
		if clean == "" {
			continue
		}
		if containsAny(clean, constraintMarkers) {
			constraints = append(constraints, clean)
			continue
		}
		if name, desc, ok := strings.Cut(clean, " to "); ok && strings.TrimSpace(name) != "" && strings.TrimSpace(desc) != "" {
			phrases = append(phrases, phrase{strings.TrimSpace(name), strings.TrimSpace(desc)})
			continue
		}
		phrases = append(phrases, phrase{clean, "Implement " + clean})
	}

	seen := make(map[string]bool)
	for _, ph := range phrases {
		if seen[ph.name] {
			continue
		}
		seen[ph.name] = true
		doc.Features = append(doc.Features, FeatureDocument{
			Name:        ph.name,
			Description: ph.description,
			Constraints: append([]string(nil), constraints...),
		})
	}

	if len(doc.Features) == 0 {
		doc.Features = []FeatureDocument{{
			Name:        DefaultFeatureName,
			Description: DefaultFeatureDescription,
			Constraints: constraints,
		}}
	}
	return doc
}

func splitPhrases(text string) []string {
	var out []string
	start := 0
	for _, loc := range separator.FindAllStringIndex(text, -1) {
		if p := strings.TrimSpace(text[start:loc[0]]); p != "" {
			out = append(out, p)
		}
		start = loc[0]
	}
	if p := strings.TrimSpace(text[start:]); p != "" {
		out = append(out, p)
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
