// Package textnorm prepares text for the verbatim containment check that decides which
// extracted facts survive. Inputs are never modified; callers keep the original text.
package textnorm

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

// Normalizer folds case and, optionally, whitespace. The zero value folds case only.
type Normalizer struct {
	CollapseWhitespace bool
}

// Default collapses whitespace so that line-wrapped PDF text still matches single-line values.
var Default = Normalizer{CollapseWhitespace: true}

// Normalize returns the comparison form of s.
func (n Normalizer) Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	if n.CollapseWhitespace {
		s = reSpaces.ReplaceAllString(s, " ")
		s = strings.TrimSpace(s)
	}
	return s
}

// ContainsVerbatim reports whether needle occurs in haystack after normalization.
// A needle that is blank after normalization never verifies.
func (n Normalizer) ContainsVerbatim(haystack, needle string) bool {
	nn := n.Normalize(needle)
	if strings.TrimSpace(nn) == "" {
		return false
	}
	return strings.Contains(n.Normalize(haystack), nn)
}

// Source caches the normalized haystack for repeated checks against one document.
type Source struct {
	n    Normalizer
	norm string
}

// NewSource normalizes text once.
func (n Normalizer) NewSource(text string) Source {
	return Source{n: n, norm: n.Normalize(text)}
}

// Contains is ContainsVerbatim against the cached haystack.
func (s Source) Contains(needle string) bool {
	nn := s.n.Normalize(needle)
	if strings.TrimSpace(nn) == "" {
		return false
	}
	return strings.Contains(s.norm, nn)
}

// Normalize uses Default.
func Normalize(s string) string { return Default.Normalize(s) }

// ContainsVerbatim uses Default.
func ContainsVerbatim(haystack, needle string) bool { return Default.ContainsVerbatim(haystack, needle) }
