package openalex

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/helixir/catalog-sync-service/internal/catalog"
	"github.com/helixir/catalog-sync-service/internal/domain"
)

// workToPublication converts an OpenAlex Work to a publication DTO, or nil
// when the work has no ID.
func workToPublication(work *Work, raw json.RawMessage) *domain.PublicationData {
	if work == nil {
		return nil
	}
	id := shortID(work.ID)
	if id == "" {
		return nil
	}

	// display_name is usually cleaner than title
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}

	pub := &domain.PublicationData{
		Catalog:            domain.CatalogOpenAlex,
		CatalogIdentifier:  id,
		DOI:                domain.NormalizeDOI(work.DOI),
		Title:              strings.TrimSpace(title),
		Abstract:           reconstructAbstract(work.AbstractInvertedIndex),
		Volume:             work.Biblio.Volume,
		Issue:              work.Biblio.Issue,
		Pages:              pageRange(work.Biblio),
		CitedByCount:       work.CitedByCount,
		Href:               work.ID,
		SubtypeCode:        work.Type,
		SubtypeDescription: subtypeDescription(work),
		Raw:                raw,
	}
	if work.OpenAccess != nil {
		pub.IsOpenAccess = work.OpenAccess.IsOA
	}
	if work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		pub.JournalName = work.PrimaryLocation.Source.DisplayName
	}

	if t, err := time.Parse("2006-01-02", work.PublicationDate); err == nil {
		pub.Year, pub.Month, pub.Day = t.Year(), int(t.Month()), t.Day()
		pub.CoverDate = &t
	} else {
		pub.Year = work.PublicationYear
	}

	for _, k := range work.Keywords {
		if k.DisplayName != "" {
			pub.Keywords = append(pub.Keywords, k.DisplayName)
		}
	}
	var funding []string
	for _, g := range work.Grants {
		if g.FunderDisplayName == "" {
			continue
		}
		pub.Sponsors = append(pub.Sponsors, g.FunderDisplayName)
		if g.AwardID != "" {
			funding = append(funding, g.FunderDisplayName+" "+g.AwardID)
		}
	}
	pub.FundingText = strings.Join(funding, "; ")

	for _, a := range work.Authorships {
		pub.Authors = append(pub.Authors, authorshipToData(&a))
	}
	return pub
}

func subtypeDescription(work *Work) string {
	t := work.Type
	if t == "" {
		t = work.TypeCrossref
	}
	t = strings.ReplaceAll(t, "-", " ")
	if t == "" {
		return ""
	}
	return strings.ToUpper(t[:1]) + t[1:]
}

func pageRange(b Biblio) string {
	switch {
	case b.FirstPage != "" && b.LastPage != "" && b.FirstPage != b.LastPage:
		return b.FirstPage + "-" + b.LastPage
	default:
		return b.FirstPage
	}
}

func authorshipToData(a *Authorship) *domain.AuthorData {
	raw, _ := json.Marshal(a)
	given, surname := catalog.SplitName(a.Author.DisplayName)
	author := &domain.AuthorData{
		Catalog:           domain.CatalogOpenAlex,
		CatalogIdentifier: shortID(a.Author.ID),
		DisplayName:       a.Author.DisplayName,
		FirstName:         given,
		LastName:          surname,
		ORCID:             catalog.NormalizeORCID(a.Author.Orcid),
		Href:              a.Author.ID,
		Raw:               raw,
	}
	for i := range a.Institutions {
		if af := institutionToAffiliation(&a.Institutions[i]); af.CatalogIdentifier != "" {
			author.Affiliations = append(author.Affiliations, af)
		}
	}
	return author
}

func authorToData(a *Author, raw json.RawMessage) *domain.AuthorData {
	given, surname := catalog.SplitName(a.DisplayName)
	author := &domain.AuthorData{
		Catalog:           domain.CatalogOpenAlex,
		CatalogIdentifier: shortID(a.ID),
		DisplayName:       a.DisplayName,
		FirstName:         given,
		LastName:          surname,
		ORCID:             catalog.NormalizeORCID(a.Orcid),
		Href:              a.ID,
		CitationCount:     a.CitedByCount,
		DocumentCount:     a.WorksCount,
		HIndex:            a.SummaryStats.HIndex,
		Raw:               raw,
	}
	for i := range a.LastKnownInstitutions {
		if af := institutionToAffiliation(&a.LastKnownInstitutions[i]); af.CatalogIdentifier != "" {
			author.Affiliations = append(author.Affiliations, af)
		}
	}
	return author
}

func institutionToAffiliation(inst *Institution) *domain.AffiliationData {
	af := &domain.AffiliationData{
		Catalog:           domain.CatalogOpenAlex,
		CatalogIdentifier: shortID(inst.ID),
		Name:              inst.DisplayName,
		Country:           strings.ToUpper(inst.CountryCode),
	}
	if inst.Geo != nil {
		af.City = inst.Geo.City
		if inst.Geo.Country != "" {
			af.Country = inst.Geo.Country
		}
	}
	return af
}

// reconstructAbstract rebuilds abstract text from OpenAlex's inverted index,
// which maps each word to its positions.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	total := 0
	for _, positions := range invertedIndex {
		total += len(positions)
	}
	if total > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, total)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var b strings.Builder
	b.Grow(total * 7)
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.word)
	}
	return b.String()
}
