package scopus

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
)

// displayDateLayouts are the shapes prism:coverDisplayDate takes, finest
// granularity first.
var displayDateLayouts = []struct {
	layout string
	month  bool
	day    bool
}{
	{"2 January 2006", true, true},
	{"January 2006", true, false},
	{"2006", false, false},
}

// entryToPublication converts a search entry to a publication DTO, or nil
// when the entry carries no Scopus ID.
func entryToPublication(entry *Entry, raw json.RawMessage) *domain.PublicationData {
	if entry == nil || entry.Error != "" {
		return nil
	}
	scopusID := strings.TrimSpace(strings.TrimPrefix(entry.Identifier, "SCOPUS_ID:"))
	if scopusID == "" {
		return nil
	}

	pub := &domain.PublicationData{
		Catalog:            domain.CatalogScopus,
		CatalogIdentifier:  scopusID,
		DOI:                strings.TrimSpace(entry.DOI),
		Title:              strings.TrimSpace(entry.Title),
		Abstract:           strings.TrimSpace(entry.Description),
		Volume:             strings.TrimSpace(entry.Volume),
		Issue:              strings.TrimSpace(entry.IssueID),
		Pages:              strings.TrimSpace(entry.PageRange),
		IsOpenAccess:       entry.OpenAccessFlag,
		JournalName:        strings.TrimSpace(entry.PublicationName),
		SubtypeCode:        strings.TrimSpace(entry.SubType),
		SubtypeDescription: strings.TrimSpace(entry.SubTypeDescription),
		Keywords:           splitKeywords(entry.AuthKeywords),
		Raw:                raw,
	}
	pub.CitedByCount, _ = strconv.Atoi(entry.CitedByCount)

	if sponsor := strings.TrimSpace(entry.FundSponsor); sponsor != "" {
		pub.Sponsors = []string{sponsor}
	}
	for _, link := range entry.Links {
		if link.Ref == "scopus" {
			pub.Href = link.Href
			break
		}
	}

	if t, err := time.Parse("2006-01-02", entry.CoverDate); err == nil {
		pub.CoverDate = &t
	}
	pub.Year, pub.Month, pub.Day = parseDisplayDate(entry.CoverDisplayDate)

	pub.Authors = entryAuthors(entry)
	return pub
}

// parseDisplayDate extracts the date parts a cover display date actually
// states. Unparseable input yields zeros.
func parseDisplayDate(s string) (year, month, day int) {
	s = strings.Join(strings.Fields(s), " ")
	for _, l := range displayDateLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		year = t.Year()
		if l.month {
			month = int(t.Month())
		}
		if l.day {
			day = t.Day()
		}
		return year, month, day
	}
	return 0, 0, 0
}

func splitKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// entryAuthors returns the byline authors with their entry-level
// affiliations attached.
func entryAuthors(entry *Entry) []*domain.AuthorData {
	affiliations := make(map[string]Affiliation, len(entry.Affiliations))
	for _, a := range entry.Affiliations {
		affiliations[a.ID] = a
	}

	authors := make([]*domain.AuthorData, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		raw, _ := json.Marshal(a)
		author := &domain.AuthorData{
			Catalog:           domain.CatalogScopus,
			CatalogIdentifier: strings.TrimSpace(a.AuthID),
			DisplayName:       strings.TrimSpace(a.Name),
			FirstName:         a.GivenName,
			LastName:          a.Surname,
			Initials:          a.Initials,
			ORCID:             catalog.NormalizeORCID(a.ORCID),
			Href:              a.URL,
			Raw:               raw,
		}
		for _, afid := range a.AfIDs {
			id := strings.TrimSpace(string(afid))
			if id == "" {
				continue
			}
			af := affiliations[id]
			author.Affiliations = append(author.Affiliations, &domain.AffiliationData{
				Catalog:           domain.CatalogScopus,
				CatalogIdentifier: id,
				Name:              af.Name,
				City:              af.City,
				Country:           af.Country,
			})
		}
		authors = append(authors, author)
	}
	return authors
}

func authorRecordToData(rec *AuthorRecord, raw json.RawMessage) *domain.AuthorData {
	name := rec.Profile.PreferredName
	author := &domain.AuthorData{
		Catalog:           domain.CatalogScopus,
		CatalogIdentifier: strings.TrimPrefix(rec.CoreData.Identifier, "AUTHOR_ID:"),
		DisplayName:       displayName(name),
		FirstName:         name.GivenName,
		LastName:          name.Surname,
		Initials:          name.Initials,
		ORCID:             catalog.NormalizeORCID(rec.CoreData.ORCID),
		Raw:               raw,
	}
	author.DocumentCount, _ = strconv.Atoi(rec.CoreData.DocumentCount)
	author.CitationCount, _ = strconv.Atoi(rec.CoreData.CitationCount)
	author.HIndex, _ = strconv.Atoi(rec.HIndex)
	for _, l := range rec.CoreData.Links {
		if l.Rel == "scopus-author" {
			author.Href = l.Href
		}
	}

	for _, af := range rec.Profile.AffiliationCurrent.Affiliation {
		if af.ID == "" {
			continue
		}
		author.Affiliations = append(author.Affiliations, &domain.AffiliationData{
			Catalog:           domain.CatalogScopus,
			CatalogIdentifier: af.ID,
			Name:              af.IPDoc.DisplayName,
			Address:           af.IPDoc.Address.AddressPart,
			City:              af.IPDoc.Address.City,
			Country:           af.IPDoc.Address.Country,
		})
	}
	return author
}

func displayName(n PreferredName) string {
	switch {
	case n.GivenName != "" && n.Surname != "":
		return n.GivenName + " " + n.Surname
	case n.Surname != "":
		return n.Surname
	default:
		return n.IndexedName
	}
}

func scivalToInstitution(inst SciValInstitution, raw json.RawMessage) *domain.InstitutionData {
	return &domain.InstitutionData{
		Catalog:           domain.CatalogScopus,
		CatalogIdentifier: inst.ID.String(),
		Name:              inst.Name,
		Sector:            inst.Sector,
		CountryCode:       inst.CountryCode,
		Raw:               raw,
	}
}
