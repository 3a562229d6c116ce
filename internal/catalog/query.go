package catalog

import (
	"regexp"
	"strings"
)

var orcidRegex = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

// NormalizeORCID strips the orcid.org URL prefix and upper-cases the check
// digit.
func NormalizeORCID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://orcid.org/")
	s = strings.TrimPrefix(s, "http://orcid.org/")
	return strings.ToUpper(s)
}

// IsORCID reports whether s is an ORCID iD, bare or as an orcid.org URL.
func IsORCID(s string) bool {
	return orcidRegex.MatchString(NormalizeORCID(s))
}

// IsDOI reports whether s looks like a DOI rather than a catalog identifier.
func IsDOI(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "10.") ||
		strings.HasPrefix(s, "doi:") ||
		strings.Contains(s, "doi.org/")
}

// SplitName splits a display name into given names and surname. "Curie,
// Marie" and "Marie Curie" both give ("Marie", "Curie").
func SplitName(name string) (given, surname string) {
	name = strings.Join(strings.Fields(name), " ")
	if before, after, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(after), strings.TrimSpace(before)
	}
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}
