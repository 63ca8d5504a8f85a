package worker

import "strings"

// Classifier reads a verdict out of a Verifier or Approver response.
type Classifier interface {
	Passed(response string) bool
	Approved(response string) bool
}

// SubstringClassifier matches tokens case-insensitively anywhere in the
// response. "We cannot approve this" therefore counts as approval.
type SubstringClassifier struct {
	PassTokens    []string
	ApproveTokens []string
}

var _ Classifier = SubstringClassifier{}

// DefaultClassifier passes on "no issues" or "passes" and approves on "approve".
func DefaultClassifier() SubstringClassifier {
	return SubstringClassifier{
		PassTokens:    []string{"no issues", "passes"},
		ApproveTokens: []string{"approve"},
	}
}

// Passed implements Classifier.
func (c SubstringClassifier) Passed(response string) bool {
	return containsAny(response, c.PassTokens)
}

// Approved implements Classifier.
func (c SubstringClassifier) Approved(response string) bool {
	return containsAny(response, c.ApproveTokens)
}

func containsAny(s string, tokens []string) bool {
	lower := strings.ToLower(s)
	for _, t := range tokens {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
