package domain

import (
	"fmt"
	"strings"
	"time"
)

// preprintServers are journal name fragments that identify preprint servers.
var preprintServers = []string{
	"arxiv",
	"biorxiv",
	"medrxiv",
	"chemrxiv",
	"ssrn",
	"research square",
	"preprints.org",
}

// preprintDOIPrefixes are DOI registrant prefixes used by preprint servers.
var preprintDOIPrefixes = []string{
	"10.1101/",  // bioRxiv, medRxiv
	"10.48550/", // arXiv
	"10.2139/",  // SSRN
	"10.21203/", // Research Square
	"10.20944/", // Preprints.org
	"10.26434/", // ChemRxiv
}

// CitationInput holds the parts of a formatted citation.
type CitationInput struct {
	Authors []string
	Year    int
	Title   string
	Journal string
	Volume  string
	Issue   string
	Pages   string
	DOI     string
}

// FormatReference renders a compact citation string:
//
//	Smith J, Doe A (2023). Title. Journal 12(3):45-67. doi:10.1/x
//
// More than six authors are abbreviated with "et al.".
func FormatReference(in CitationInput) string {
	var b strings.Builder

	authors := in.Authors
	etAl := false
	if len(authors) > 6 {
		authors = authors[:6]
		etAl = true
	}
	b.WriteString(strings.Join(authors, ", "))
	if etAl {
		b.WriteString(", et al.")
	}
	if in.Year > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "(%d)", in.Year)
	}
	if b.Len() > 0 {
		b.WriteString(". ")
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		b.WriteString(strings.TrimSuffix(title, "."))
		b.WriteString(". ")
	}

	if journal := strings.TrimSpace(in.Journal); journal != "" {
		b.WriteString(journal)
		if in.Volume != "" {
			b.WriteString(" ")
			b.WriteString(in.Volume)
		}
		if in.Issue != "" {
			fmt.Fprintf(&b, "(%s)", in.Issue)
		}
		if in.Pages != "" {
			b.WriteString(":")
			b.WriteString(in.Pages)
		}
		b.WriteString(". ")
	}

	if doi := NormalizeDOI(in.DOI); doi != "" {
		b.WriteString("doi:")
		b.WriteString(doi)
	}

	return strings.TrimSpace(b.String())
}

// GuessPreprint reports whether a publication looks like a preprint, judged
// by its journal name or DOI registrant.
func GuessPreprint(journal, doi string) bool {
	name := NormalizeName(journal)
	for _, server := range preprintServers {
		if strings.Contains(name, server) {
			return true
		}
	}
	doi = NormalizeDOI(doi)
	for _, prefix := range preprintDOIPrefixes {
		if strings.HasPrefix(doi, prefix) {
			return true
		}
	}
	return false
}

// GuessStatus derives the publishing state. Records flagged as in press by
// their subtype, or dated in the future, are in press. Records that carry a
// volume or page range and a past date are published.
func GuessStatus(subtypeCode, subtypeDescription, volume, pages string, periodStart *time.Time, now time.Time) PublicationStatus {
	if strings.EqualFold(subtypeCode, "ip") || strings.Contains(strings.ToLower(subtypeDescription), "in press") {
		return PublicationStatusInPress
	}
	if periodStart == nil {
		return PublicationStatusUnknown
	}
	if periodStart.After(now) {
		return PublicationStatusInPress
	}
	if volume != "" || pages != "" {
		return PublicationStatusPublished
	}
	return PublicationStatusUnknown
}

// IsHistoric reports whether a catalog record predates the cutoff. The cover
// date wins over the derived period start.
func IsHistoric(coverDate, periodStart *time.Time, cutoff time.Time) bool {
	switch {
	case cutoff.IsZero():
		return false
	case coverDate != nil:
		return coverDate.Before(cutoff)
	case periodStart != nil:
		return periodStart.Before(cutoff)
	default:
		return false
	}
}
