package scopus

import (
	"bytes"
	"encoding/json"
)

// oneOrMany decodes a field Elsevier renders as an object when it holds one
// element and as an array otherwise.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

// textValue decodes either a bare string or a {"$": "..."} wrapper.
type textValue string

func (t *textValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = textValue(s)
		return nil
	}
	var wrapped struct {
		Value string `json:"$"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*t = textValue(wrapped.Value)
	return nil
}

// SearchResponse represents the top-level Scopus search API response.
type SearchResponse struct {
	SearchResults SearchResults `json:"search-results"`
}

// SearchResults contains the search result metadata and entries.
type SearchResults struct {
	TotalResults string            `json:"opensearch:totalResults"`
	StartIndex   string            `json:"opensearch:startIndex"`
	ItemsPerPage string            `json:"opensearch:itemsPerPage"`
	Entries      []json.RawMessage `json:"entry"`
}

// Entry represents a single document in the Scopus search results.
type Entry struct {
	Error              string        `json:"error"`
	Identifier         string        `json:"dc:identifier"` // "SCOPUS_ID:85012345678"
	EID                string        `json:"eid"`           // "2-s2.0-85012345678"
	DOI                string        `json:"prism:doi"`
	Title              string        `json:"dc:title"`
	Description        string        `json:"dc:description"` // abstract (COMPLETE view)
	PublicationName    string        `json:"prism:publicationName"`
	Volume             string        `json:"prism:volume"`
	IssueID            string        `json:"prism:issueIdentifier"`
	PageRange          string        `json:"prism:pageRange"`
	CoverDate          string        `json:"prism:coverDate"`        // "2024-01-15"
	CoverDisplayDate   string        `json:"prism:coverDisplayDate"` // "January 2024"
	CitedByCount       string        `json:"citedby-count"`
	SubType            string        `json:"subtype"`
	SubTypeDescription string        `json:"subtypeDescription"`
	OpenAccessFlag     bool          `json:"openaccessFlag"`
	AuthKeywords       string        `json:"authkeywords"` // "a | b | c"
	FundSponsor        string        `json:"fund-sponsor"`
	FundNumber         string        `json:"fund-no"`
	Links              []Link        `json:"link"`
	Affiliations       []Affiliation `json:"affiliation"`
	Authors            []Author      `json:"author"` // COMPLETE view only
}

// Link is a typed hyperlink attached to a Scopus record.
type Link struct {
	Ref  string `json:"@ref"`
	Href string `json:"@href"`
}

// Affiliation is an affiliation listed on a search entry.
type Affiliation struct {
	ID      string `json:"afid"`
	Name    string `json:"affilname"`
	City    string `json:"affiliation-city"`
	Country string `json:"affiliation-country"`
}

// Author is a single author on a search entry, in byline order.
type Author struct {
	Seq       string               `json:"@seq"`
	AuthID    string               `json:"authid"`
	Name      string               `json:"authname"` // "Surname G."
	GivenName string               `json:"given-name"`
	Surname   string               `json:"surname"`
	Initials  string               `json:"initials"`
	ORCID     string               `json:"orcid"`
	URL       string               `json:"author-url"`
	AfIDs     oneOrMany[textValue] `json:"afid"`
}

// AuthorRetrievalResponse is the Author Retrieval API response.
type AuthorRetrievalResponse struct {
	Results []AuthorRecord `json:"author-retrieval-response"`
}

// AuthorRecord is one author profile.
type AuthorRecord struct {
	CoreData AuthorCoreData `json:"coredata"`
	HIndex   string         `json:"h-index"`
	Profile  AuthorProfile  `json:"author-profile"`
}

// AuthorCoreData holds identifiers and counts of an author profile.
type AuthorCoreData struct {
	Identifier    string `json:"dc:identifier"` // "AUTHOR_ID:7004212771"
	ORCID         string `json:"orcid"`
	DocumentCount string `json:"document-count"`
	CitedByCount  string `json:"cited-by-count"`
	CitationCount string `json:"citation-count"`
	Links         []struct {
		Rel  string `json:"@rel"`
		Href string `json:"@href"`
	} `json:"link"`
}

// AuthorProfile holds the preferred name and current affiliations.
type AuthorProfile struct {
	PreferredName      PreferredName      `json:"preferred-name"`
	AffiliationCurrent AffiliationCurrent `json:"affiliation-current"`
}

// PreferredName is an author's preferred name parts.
type PreferredName struct {
	GivenName   string `json:"given-name"`
	Surname     string `json:"surname"`
	Initials    string `json:"initials"`
	IndexedName string `json:"indexed-name"`
}

// AffiliationCurrent wraps the author's current affiliations.
type AffiliationCurrent struct {
	Affiliation oneOrMany[ProfileAffiliation] `json:"affiliation"`
}

// ProfileAffiliation is an affiliation on an author profile.
type ProfileAffiliation struct {
	ID    string `json:"@affiliation-id"`
	IPDoc struct {
		DisplayName string `json:"afdispname"`
		Address     struct {
			AddressPart string `json:"address-part"`
			City        string `json:"city"`
			Country     string `json:"country"`
		} `json:"address"`
	} `json:"ip-doc"`
}

// AuthorSearchEntry is one result of the Author Search API.
type AuthorSearchEntry struct {
	Error              string        `json:"error"`
	Identifier         string        `json:"dc:identifier"` // "AUTHOR_ID:7004212771"
	ORCID              string        `json:"orcid"`
	DocumentCount      string        `json:"document-count"`
	PreferredName      PreferredName `json:"preferred-name"`
	AffiliationCurrent *struct {
		ID      string `json:"affiliation-id"`
		Name    string `json:"affiliation-name"`
		City    string `json:"affiliation-city"`
		Country string `json:"affiliation-country"`
	} `json:"affiliation-current"`
}

// AffiliationRetrievalResponse is the Affiliation Retrieval API response.
type AffiliationRetrievalResponse struct {
	Result struct {
		CoreData struct {
			Identifier string `json:"dc:identifier"` // "AFFILIATION_ID:60000001"
		} `json:"coredata"`
		Name    string `json:"affiliation-name"`
		Address string `json:"address"`
		City    string `json:"city"`
		Country string `json:"country"`
	} `json:"affiliation-retrieval-response"`
}

// SciValInstitution is an institution record from the SciVal API.
type SciValInstitution struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	CountryCode string      `json:"countryCode"`
	Sector      string      `json:"sector"`
}

// SciValInstitutionResponse is the SciVal institution endpoint response.
type SciValInstitutionResponse struct {
	Institution SciValInstitution `json:"institution"`
}

// SciValPublicationResponse is the SciVal publication endpoint response.
type SciValPublicationResponse struct {
	Publication struct {
		ID           json.Number         `json:"id"`
		DOI          string              `json:"doi"`
		Institutions []SciValInstitution `json:"institutions"`
	} `json:"publication"`
}
