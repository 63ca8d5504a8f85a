package llm

import (
	"context"
	"strings"
	"sync"
)

// Rule answers prompts containing Match. Responses are returned in order;
// the last one repeats. A non-nil Err is returned instead of a response.
type Rule struct {
	Match     string
	Responses []string
	Err       error
}

// Call records one Scripted invocation.
type Call struct {
	Prompt string
	Rule   int
}

// Scripted is a deterministic Client keyed by prompt substrings. Rules are
// tried in order; the first match wins. Unmatched prompts get Fallback.
type Scripted struct {
	mu       sync.Mutex
	rules    []Rule
	served   []int
	calls    []Call
	Fallback string
}

var _ Client = (*Scripted)(nil)

// NewScripted creates a scripted client.
func NewScripted(rules ...Rule) *Scripted {
	return &Scripted{rules: rules, served: make([]int, len(rules))}
}

// Generate implements Client. It honors ctx cancellation but never times out.
func (s *Scripted) Generate(ctx context.Context, prompt string, _ Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &CallError{Provider: "scripted", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if !strings.Contains(prompt, r.Match) {
			continue
		}
		s.calls = append(s.calls, Call{Prompt: prompt, Rule: i})
		if r.Err != nil {
			return "", r.Err
		}
		if len(r.Responses) == 0 {
			return "", nil
		}
		n := s.served[i]
		s.served[i]++
		if n >= len(r.Responses) {
			n = len(r.Responses) - 1
		}
		return r.Responses[n], nil
	}

	s.calls = append(s.calls, Call{Prompt: prompt, Rule: -1})
	return s.Fallback, nil
}

// Calls returns every recorded call in order.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsMatching counts calls whose prompt contains substr.
func (s *Scripted) CallsMatching(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if strings.Contains(c.Prompt, substr) {
			n++
		}
	}
	return n
}
