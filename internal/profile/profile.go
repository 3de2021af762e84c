package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/openscholar/elsevier-profiles/internal/domain"
	"github.com/openscholar/elsevier-profiles/internal/elsclient"
	"github.com/openscholar/elsevier-profiles/internal/observability"
)

const defaultOutputDir = "data"

// DocumentFetcher is implemented by profile entities that can fetch and
// persist the document list associated with their identifier.
type DocumentFetcher interface {
	URI() string
	ReadDocs(ctx context.Context, client *elsclient.Client) (bool, error)
	WriteDocs() (bool, error)
	DocList() []domain.Document
}

// Profile extends Entity with document-list handling shared by authors and
// affiliations. The payload type selects the retrieval envelope; the output
// directory receives persisted document lists.
type Profile struct {
	Entity

	payloadType string
	outputDir   string
	metrics     *observability.Metrics

	// docList holds fetched documents byte-for-byte as returned by the
	// search API. docFrame is the typed projection of the same list,
	// skipping entries that fail to decode.
	docList  []domain.Document
	docFrame []domain.DocumentSummary
}

// Option configures a profile entity at construction time.
type Option func(*Profile)

// WithClient binds an API client at construction time.
func WithClient(client *elsclient.Client) Option {
	return func(p *Profile) { p.client = client }
}

// WithLogger sets the logger used for profile operations.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Profile) { p.logger = logger }
}

// WithOutputDir overrides the directory document lists are written to.
func WithOutputDir(dir string) Option {
	return func(p *Profile) { p.outputDir = dir }
}

// WithMetrics enables operation counters on the profile.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(p *Profile) { p.metrics = metrics }
}

func newProfile(uri, payloadType string) Profile {
	return Profile{
		Entity:      Entity{uri: uri, logger: zerolog.Nop()},
		payloadType: payloadType,
		outputDir:   defaultOutputDir,
	}
}

// PayloadType returns the retrieval envelope key for this profile.
func (p *Profile) PayloadType() string {
	return p.payloadType
}

// DocList returns the documents fetched by the last successful ReadDocs,
// byte-for-byte as returned by the API. Nil before any fetch.
func (p *Profile) DocList() []domain.Document {
	return p.docList
}

// DocFrame returns the typed projection of the fetched document list.
// Entries that failed to decode are omitted.
func (p *Profile) DocFrame() []domain.DocumentSummary {
	return p.docFrame
}

// ReadDocs fetches all documents associated with the profile's identifier
// through the Scopus search API and replaces the stored document list. A
// non-nil client rebinds the profile first. Transport and decode failures
// are logged and reported as ok=false with the stored list unchanged.
func (p *Profile) ReadDocs(ctx context.Context, client *elsclient.Client) (bool, error) {
	c, err := p.resolveClient(client)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf("au-id(%s)", lastPathSegment(p.uri))
	params := url.Values{}
	params.Set("query", query)
	params.Set("view", "COMPLETE")
	searchURL := c.BaseURL() + "/search/scopus?" + params.Encode()

	logger := observability.WithEntityContext(p.logger, p.uri, p.payloadType)

	raw, err := c.ExecRequest(ctx, searchURL)
	if err != nil {
		logger.Warn().Err(err).Msg("document search failed")
		return false, nil
	}

	var results searchResponse
	if err := json.Unmarshal(raw, &results); err != nil {
		logger.Warn().Err(err).Msg("decoding search results")
		return false, nil
	}

	entries := results.SearchResults.Entries
	docs := make([]domain.Document, 0, len(entries))
	frame := make([]domain.DocumentSummary, 0, len(entries))
	for _, entry := range entries {
		doc := domain.NewDocument(entry)
		docs = append(docs, doc)
		summary, err := doc.Summary()
		if err != nil {
			logger.Warn().Err(err).Msg("skipping undecodable search entry")
			continue
		}
		frame = append(frame, summary)
	}

	p.docList = docs
	p.docFrame = frame

	if p.metrics != nil {
		p.metrics.DocumentsFetched.Add(float64(len(docs)))
	}
	searchLogger := observability.WithSearchContext(logger, query, len(docs))
	searchLogger.Info().Msg("documents loaded")
	return true, nil
}

// WriteDocs persists the fetched document list to <outputDir>/<escaped
// URI?view=documents>.json, preserving each document byte-for-byte and in
// fetch order. The output directory must already exist. An empty list is
// logged and reported as ok=false without touching the filesystem; write
// failures escape as errors.
func (p *Profile) WriteDocs() (bool, error) {
	logger := observability.WithEntityContext(p.logger, p.uri, p.payloadType)

	if len(p.docList) == 0 {
		logger.Warn().Err(domain.ErrNoDocuments).Msg("no documents to write")
		return false, nil
	}

	name := url.QueryEscape(p.uri+"?view=documents") + ".json"
	path := filepath.Join(p.outputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}

	if err := writeDocumentArray(f, p.docList); err != nil {
		f.Close()
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing %s: %w", path, err)
	}

	if p.metrics != nil {
		p.metrics.DocumentsWritten.Inc()
	}
	logger.Info().Str("path", path).Int("documents", len(p.docList)).Msg("document list written")
	return true, nil
}

// writeDocumentArray emits the documents as a JSON array without re-encoding
// the individual elements.
func writeDocumentArray(f *os.File, docs []domain.Document) error {
	if _, err := f.WriteString("["); err != nil {
		return err
	}
	for i, doc := range docs {
		if i > 0 {
			if _, err := f.WriteString(","); err != nil {
				return err
			}
		}
		if _, err := f.Write(doc.Raw()); err != nil {
			return err
		}
	}
	_, err := f.WriteString("]")
	return err
}
