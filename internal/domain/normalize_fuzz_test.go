package domain

import (
	"strings"
	"testing"
	"unicode/utf8"
)

var normalizeSeeds = []string{
	"",
	"  Nature  Medicine ",
	"Café\tCrème",
	"https://doi.org/10.1000/ABC",
	"doi:10.1000/xyz",
	"'; DROP TABLE publications; --",
	"<script>alert('xss')</script>",
	"query\x00with\x00nulls",
	"\u200B",
	"\uFEFF",
	"\u202Eright-to-left\u202C",
	"\U0001F4A9",
	"İstanbul",
	"\xff\xfe",
}

// FuzzNormalizeName checks that names never keep outer whitespace and stay
// valid UTF-8.
func FuzzNormalizeName(f *testing.F) {
	for _, s := range normalizeSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, s string) {
		out := NormalizeName(s)
		if strings.TrimSpace(out) != out {
			t.Errorf("NormalizeName(%q) = %q keeps outer whitespace", s, out)
		}
		if strings.Contains(out, "  ") {
			t.Errorf("NormalizeName(%q) = %q keeps repeated spaces", s, out)
		}
		if utf8.ValidString(s) && !utf8.ValidString(out) {
			t.Errorf("NormalizeName(%q) produced invalid UTF-8", s)
		}
	})
}

// FuzzNormalizeKeyword checks that keyword folding never panics and never
// grows an empty input.
func FuzzNormalizeKeyword(f *testing.F) {
	for _, s := range normalizeSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, s string) {
		out := NormalizeKeyword(s)
		if strings.TrimSpace(s) == "" && out != "" {
			t.Errorf("NormalizeKeyword(%q) = %q, want empty", s, out)
		}
		if utf8.ValidString(s) && !utf8.ValidString(out) {
			t.Errorf("NormalizeKeyword(%q) produced invalid UTF-8", s)
		}
	})
}

// FuzzNormalizeDOI checks that DOIs come out trimmed and lower-cased.
func FuzzNormalizeDOI(f *testing.F) {
	for _, s := range normalizeSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, s string) {
		out := NormalizeDOI(s)
		if strings.TrimSpace(out) != out {
			t.Errorf("NormalizeDOI(%q) = %q keeps outer whitespace", s, out)
		}
		if strings.ToLower(out) != out {
			t.Errorf("NormalizeDOI(%q) = %q is not lower case", s, out)
		}
	})
}
