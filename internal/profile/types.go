package profile

import (
	"encoding/json"

	"github.com/openscholar/elsevier-profiles/internal/domain"
)

// searchResponse is the envelope returned by the Scopus search API. Entries
// are kept raw so the stored document list matches the response bytes.
type searchResponse struct {
	SearchResults struct {
		Entries []json.RawMessage `json:"entry"`
	} `json:"search-results"`
}

// authorView is the typed projection of an author retrieval payload, limited
// to the fields exposed through accessors.
type authorView struct {
	AuthorProfile struct {
		PreferredName struct {
			GivenName string `json:"given-name"`
			Surname   string `json:"surname"`
		} `json:"preferred-name"`
	} `json:"author-profile"`
}

// affiliationView is the typed projection of an affiliation retrieval
// payload.
type affiliationView struct {
	AffiliationName string `json:"affiliation-name"`
}

// metricsEnvelope is the response shape of a field-restricted author
// retrieval used for metrics.
type metricsEnvelope struct {
	Responses []authorMetrics `json:"author-retrieval-response"`
}

// authorMetrics carries the whitelisted metric fields. Counts arrive as
// strings or numbers depending on the endpoint.
type authorMetrics struct {
	Coredata struct {
		Identifier    string         `json:"dc:identifier"`
		CitationCount domain.FlexInt `json:"citation-count"`
		DocumentCount domain.FlexInt `json:"document-count"`
	} `json:"coredata"`
	HIndex domain.FlexInt `json:"h-index"`
}
