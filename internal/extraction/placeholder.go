package extraction

import (
	"fmt"
	"html"
	"strings"
	"unicode"
)

// Placeholder returns the deterministic fallback artifact for f.
func (e *Engine) Placeholder(kind Kind, f Feature) string {
	if kind == KindMarkup {
		return markupPlaceholder(f)
	}
	return e.codePlaceholder(f)
}

func markupPlaceholder(f Feature) string {
	name := html.EscapeString(displayName(f))
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-100 font-sans">
    <main class="container mx-auto py-12">
        <h1 class="text-3xl font-bold mb-6">%s</h1>
        <p>%s</p>
    </main>
</body>
</html>`, name, name, html.EscapeString(f.Description))
}

func (e *Engine) codePlaceholder(f Feature) string {
	slug := Slug(f.Name)
	var b strings.Builder
	fmt.Fprintf(&b, "@app.route('/%s')\n", slug)
	if e.requiresAuth(f.Constraints) {
		b.WriteString("@login_required\n")
	}
	fmt.Fprintf(&b, "def %s():\n", slug)
	fmt.Fprintf(&b, "    return render_template('%s')", TemplateName(f.Name))
	return b.String()
}

func (e *Engine) requiresAuth(constraints []string) bool {
	for _, c := range constraints {
		lower := strings.ToLower(c)
		for _, kw := range e.cfg.AuthKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

func displayName(f Feature) string {
	if strings.TrimSpace(f.Name) == "" {
		return "Feature"
	}
	return f.Name
}

// Slug converts a feature name into a Python identifier usable as a route
// and function name: "User Login!" becomes "user_login".
func Slug(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	slug := strings.TrimRight(b.String(), "_")
	if slug == "" {
		return "feature"
	}
	if slug[0] >= '0' && slug[0] <= '9' {
		return "feature_" + slug
	}
	return slug
}

// TemplateName is the template file a feature renders: spaces become
// underscores and ".html" is appended.
func TemplateName(name string) string {
	return strings.ReplaceAll(name, " ", "_") + ".html"
}
