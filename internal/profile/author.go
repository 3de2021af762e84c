package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openscholar/elsevier-profiles/internal/domain"
	"github.com/openscholar/elsevier-profiles/internal/elsclient"
	"github.com/openscholar/elsevier-profiles/internal/observability"
)

const (
	authorPayloadType = "author-retrieval-response"

	// AuthorURIBase is the canonical prefix for author URIs derived from a
	// bare author identifier.
	AuthorURIBase = "https://api.elsevier.com/content/author/author_id/"

	// metricsFields restricts a metrics read to the supported counters.
	metricsFields = "document-count,cited-by-count,citation-count,h-index,dc:identifier"
)

// AuthorParams identifies an author by exactly one of a full URI or a bare
// Scopus author identifier.
type AuthorParams struct {
	URI      string
	AuthorID string
}

// Author is a Scopus author profile.
type Author struct {
	Profile

	view *authorView
}

var _ DocumentFetcher = (*Author)(nil)

// NewAuthor constructs an author entity from exactly one identifier.
func NewAuthor(params AuthorParams, opts ...Option) (*Author, error) {
	switch {
	case params.URI != "" && params.AuthorID != "":
		return nil, domain.NewValidationError("author", "both URI and author ID specified; just need one")
	case params.URI == "" && params.AuthorID == "":
		return nil, domain.NewValidationError("author", "no URI or author ID specified")
	}

	uri := params.URI
	if uri == "" {
		uri = AuthorURIBase + params.AuthorID
	}

	a := &Author{Profile: newProfile(uri, authorPayloadType)}
	for _, opt := range opts {
		opt(&a.Profile)
	}
	return a, nil
}

// Read loads the author's profile record. Stored state is replaced only
// when the payload and its typed view both decode; any failure leaves the
// previous payload intact. A non-nil client rebinds the author first.
func (a *Author) Read(ctx context.Context, client *elsclient.Client) (bool, error) {
	payload, data, ok, err := a.fetchPayload(ctx, a.payloadType, client)
	if err != nil || !ok {
		return ok, err
	}

	logger := observability.WithEntityContext(a.logger, a.uri, a.payloadType)

	var view authorView
	if err := json.Unmarshal(payload, &view); err != nil {
		logger.Warn().Err(err).Msg("decoding author profile")
		return false, nil
	}

	a.commitPayload(payload, data)
	a.view = &view

	if a.metrics != nil {
		a.metrics.ProfileReads.WithLabelValues("author").Inc()
	}
	logger.Info().Msg("author profile loaded")
	return true, nil
}

// ReadMetrics loads the author's bibliographic counters and merges them into
// the stored payload in place, without disturbing fields populated by a
// prior Read. Transport and decode failures are logged and reported as
// ok=false.
func (a *Author) ReadMetrics(ctx context.Context, client *elsclient.Client) (bool, error) {
	c, err := a.resolveClient(client)
	if err != nil {
		return false, err
	}

	logger := observability.WithEntityContext(a.logger, a.uri, a.payloadType)

	raw, err := c.ExecRequest(ctx, a.uri+"?field="+metricsFields)
	if err != nil {
		logger.Warn().Err(err).Msg("metrics read failed")
		return false, nil
	}

	var envelope metricsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logger.Warn().Err(err).Msg("decoding metrics response")
		return false, nil
	}
	if len(envelope.Responses) == 0 {
		logger.Warn().Msg("metrics response is empty")
		return false, nil
	}
	m := envelope.Responses[0]

	if a.data == nil {
		a.data = map[string]any{}
	}
	coredata, ok := a.data["coredata"].(map[string]any)
	if !ok {
		coredata = map[string]any{}
		a.data["coredata"] = coredata
	}
	coredata["dc:identifier"] = m.Coredata.Identifier
	coredata["citation-count"] = m.Coredata.CitationCount.Int()
	coredata["cited-by-count"] = m.Coredata.CitationCount.Int()
	coredata["document-count"] = m.Coredata.DocumentCount.Int()
	a.data["h-index"] = m.HIndex.Int()

	logger.Info().
		Int("citation_count", m.Coredata.CitationCount.Int()).
		Int("document_count", m.Coredata.DocumentCount.Int()).
		Int("h_index", m.HIndex.Int()).
		Msg("author metrics loaded")
	return true, nil
}

// FirstName returns the author's preferred given name. Fails before a
// successful Read.
func (a *Author) FirstName() (string, error) {
	if a.view == nil {
		return "", fmt.Errorf("author profile: %w", domain.ErrNoData)
	}
	return a.view.AuthorProfile.PreferredName.GivenName, nil
}

// LastName returns the author's preferred surname. Fails before a successful
// Read.
func (a *Author) LastName() (string, error) {
	if a.view == nil {
		return "", fmt.Errorf("author profile: %w", domain.ErrNoData)
	}
	return a.view.AuthorProfile.PreferredName.Surname, nil
}

// FullName returns "<given name> <surname>".
func (a *Author) FullName() (string, error) {
	if a.view == nil {
		return "", fmt.Errorf("author profile: %w", domain.ErrNoData)
	}
	name := a.view.AuthorProfile.PreferredName
	return name.GivenName + " " + name.Surname, nil
}
