// Package scaffold writes the generated application to disk.
//
// Generate lays out a Flask project from the final snapshot, scans the
// generated files for secrets with gitleaks, and optionally commits them
// with go-git. Publisher creates a GitHub repository and pushes the commit.
package scaffold
