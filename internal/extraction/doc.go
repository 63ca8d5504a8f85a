// Package extraction turns free-form model output into a usable artifact.
//
// Model responses mix prose, fenced blocks and raw markup. Engine.Extract
// walks a fixed fallback chain and always returns a non-empty artifact:
//
//  1. A fenced block tagged with the kind's language (html, python).
//  2. Markup only: a full document, or the lines that start with '<'.
//  3. Code only: the first contiguous block of code-like lines.
//  4. A deterministic placeholder built from the feature.
//
// The chain never fails. Callers that need to know which step produced the
// artifact use ExtractWithSource.
package extraction
