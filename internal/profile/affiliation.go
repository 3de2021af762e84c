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
	affiliationPayloadType = "affiliation-retrieval-response"

	// AffiliationURIBase is the canonical prefix for affiliation URIs
	// derived from a bare affiliation identifier.
	AffiliationURIBase = "https://api.elsevier.com/content/affiliation/affiliation_id/"
)

// AffiliationParams identifies an affiliation by exactly one of a full URI
// or a bare Scopus affiliation identifier.
type AffiliationParams struct {
	URI           string
	AffiliationID string
}

// Affiliation is a Scopus institution profile.
type Affiliation struct {
	Profile

	view *affiliationView
}

var _ DocumentFetcher = (*Affiliation)(nil)

// NewAffiliation constructs an affiliation entity from exactly one
// identifier.
func NewAffiliation(params AffiliationParams, opts ...Option) (*Affiliation, error) {
	switch {
	case params.URI != "" && params.AffiliationID != "":
		return nil, domain.NewValidationError("affiliation", "both URI and affiliation ID specified; just need one")
	case params.URI == "" && params.AffiliationID == "":
		return nil, domain.NewValidationError("affiliation", "no URI or affiliation ID specified")
	}

	uri := params.URI
	if uri == "" {
		uri = AffiliationURIBase + params.AffiliationID
	}

	a := &Affiliation{Profile: newProfile(uri, affiliationPayloadType)}
	for _, opt := range opts {
		opt(&a.Profile)
	}
	return a, nil
}

// Read loads the affiliation's profile record. Stored state is replaced
// only when the payload and its typed view both decode; any failure leaves
// the previous payload intact. A non-nil client rebinds the affiliation
// first.
func (a *Affiliation) Read(ctx context.Context, client *elsclient.Client) (bool, error) {
	payload, data, ok, err := a.fetchPayload(ctx, a.payloadType, client)
	if err != nil || !ok {
		return ok, err
	}

	logger := observability.WithEntityContext(a.logger, a.uri, a.payloadType)

	var view affiliationView
	if err := json.Unmarshal(payload, &view); err != nil {
		logger.Warn().Err(err).Msg("decoding affiliation profile")
		return false, nil
	}

	a.commitPayload(payload, data)
	a.view = &view

	if a.metrics != nil {
		a.metrics.ProfileReads.WithLabelValues("affiliation").Inc()
	}
	logger.Info().Msg("affiliation profile loaded")
	return true, nil
}

// Name returns the affiliation's display name. Fails before a successful
// Read.
func (a *Affiliation) Name() (string, error) {
	if a.view == nil {
		return "", fmt.Errorf("affiliation profile: %w", domain.ErrNoData)
	}
	return a.view.AffiliationName, nil
}
