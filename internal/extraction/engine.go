package extraction

import (
	"regexp"
	"strings"
)

// Engine runs the extraction chain. Safe for concurrent use.
type Engine struct {
	cfg         Config
	markupFence *regexp.Regexp
	codeFence   *regexp.Regexp
	assignment  *regexp.Regexp
}

// NewEngine compiles the chain's patterns once.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()

	quoted := make([]string, len(cfg.Assignables))
	for i, id := range cfg.Assignables {
		quoted[i] = regexp.QuoteMeta(id)
	}

	return &Engine{
		cfg:         cfg,
		markupFence: fencePattern(cfg.MarkupFence),
		codeFence:   fencePattern(cfg.CodeFence),
		// name starting with a listed prefix, optional attribute or subscript
		// chain, then a single '='
		assignment: regexp.MustCompile(`^(?:` + strings.Join(quoted, "|") + `)\w*(?:\.\w+|\[[^\]]*\])*\s*(?:[+\-*/]?=)(?:[^=]|$)`),
	}
}

func fencePattern(tag string) *regexp.Regexp {
	return regexp.MustCompile("(?is)```" + regexp.QuoteMeta(tag) + "[^\\S\\n]*\\n(.*?)```")
}

// Extract returns a non-empty artifact of the given kind.
func (e *Engine) Extract(text string, kind Kind, f Feature) string {
	out, _ := e.ExtractWithSource(text, kind, f)
	return out
}

// ExtractWithSource is Extract plus the chain step that produced the result.
// An unknown kind is treated as code.
func (e *Engine) ExtractWithSource(text string, kind Kind, f Feature) (string, Source) {
	if kind == KindMarkup {
		if out, ok := firstFence(e.markupFence, text); ok {
			return out, SourceFence
		}
		if out, src, ok := e.markup(text); ok {
			return out, src
		}
		return e.Placeholder(KindMarkup, f), SourcePlaceholder
	}

	if out, ok := firstFence(e.codeFence, text); ok {
		return out, SourceFence
	}
	if out, ok := e.codeBlock(text); ok {
		return out, SourceCodeBlock
	}
	return e.Placeholder(KindCode, f), SourcePlaceholder
}

func firstFence(re *regexp.Regexp, text string) (string, bool) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body, true
		}
	}
	return "", false
}

func (e *Engine) markup(text string) (string, Source, bool) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html") {
		return trimmed, SourceDocument, true
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); strings.HasPrefix(l, "<") {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return "", "", false
	}
	return strings.Join(lines, "\n"), SourceMarkupLines, true
}

// codeBlock captures the first run of code-like lines. Capture starts at a
// start prefix and stops at the first line that is neither a start prefix,
// a continuation, nor a blank line inside the block.
func (e *Engine) codeBlock(text string) (string, bool) {
	var block []string
	pendingBlank := 0

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)

		if block == nil {
			if e.isStart(trimmed) {
				block = append(block, line)
			}
			continue
		}

		if trimmed == "" {
			pendingBlank++
			continue
		}
		if !e.isStart(trimmed) && !e.isContinuation(line, trimmed) {
			break
		}
		for ; pendingBlank > 0; pendingBlank-- {
			block = append(block, "")
		}
		block = append(block, line)
	}

	if len(block) == 0 {
		return "", false
	}
	return dedent(block), true
}

func (e *Engine) isStart(trimmed string) bool {
	return hasAnyPrefix(trimmed, e.cfg.StartPrefixes)
}

func (e *Engine) isContinuation(line, trimmed string) bool {
	if line != trimmed && (line[0] == ' ' || line[0] == '\t') {
		return true
	}
	if hasAnyPrefix(trimmed, e.cfg.ControlPrefixes) {
		return true
	}
	return e.assignment.MatchString(trimmed)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// dedent strips the indentation shared by every non-blank line.
func dedent(lines []string) string {
	common := -1
	for _, l := range lines {
		if l == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common > 0 {
		for i, l := range lines {
			if len(l) >= common {
				lines[i] = l[common:]
			}
		}
	}
	return strings.Join(lines, "\n")
}
