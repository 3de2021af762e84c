// Package profile implements author and affiliation profile entities backed
// by the Elsevier content API: read a profile record, fetch its associated
// document list through Scopus search, and persist that list to disk as JSON.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openscholar/elsevier-profiles/internal/domain"
	"github.com/openscholar/elsevier-profiles/internal/elsclient"
	"github.com/openscholar/elsevier-profiles/internal/observability"
)

// Entity is an addressable API resource identified by a URI. It carries an
// optional bound client (shared with other entities, never owned) and the
// generic payload of the last successful read. Each instance is intended for
// a single caller; no internal locking is performed.
type Entity struct {
	uri    string
	client *elsclient.Client
	logger zerolog.Logger

	// data is the generic payload mapping, replaced wholesale on each
	// successful read. raw holds the same payload undecoded.
	data map[string]any
	raw  json.RawMessage
}

// URI returns the entity's immutable identifier.
func (e *Entity) URI() string {
	return e.uri
}

// Bind attaches an API client to the entity. The client is shared and its
// lifetime is managed by the caller.
func (e *Entity) Bind(client *elsclient.Client) {
	e.client = client
}

// Client returns the currently bound API client, or nil.
func (e *Entity) Client() *elsclient.Client {
	return e.client
}

// Data returns the generic payload mapping populated by the last successful
// read, or nil before any read.
func (e *Entity) Data() map[string]any {
	return e.data
}

// resolveClient returns the client to use for an operation. A non-nil
// override rebinds the entity before use; otherwise the bound client is
// required.
func (e *Entity) resolveClient(override *elsclient.Client) (*elsclient.Client, error) {
	if override != nil {
		e.client = override
	}
	if e.client == nil {
		return nil, fmt.Errorf("%s: %w", e.uri, domain.ErrNotBound)
	}
	return e.client, nil
}

// fetchPayload performs the generic entity read: one GET against the URI,
// unwrapping the payload-type envelope. The payload is returned without
// being committed so callers can validate a typed view before replacing any
// previously stored state. Transport and decode failures are logged and
// reported as ok=false; only binding errors escape as errors.
func (e *Entity) fetchPayload(ctx context.Context, payloadType string, override *elsclient.Client) (json.RawMessage, map[string]any, bool, error) {
	client, err := e.resolveClient(override)
	if err != nil {
		return nil, nil, false, err
	}

	logger := observability.WithEntityContext(e.logger, e.uri, payloadType)

	raw, err := client.ExecRequest(ctx, e.uri)
	if err != nil {
		logger.Warn().Err(err).Msg("entity read failed")
		return nil, nil, false, nil
	}

	payload, err := unwrapPayload(raw, payloadType)
	if err != nil {
		logger.Warn().Err(err).Msg("unexpected payload shape")
		return nil, nil, false, nil
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		logger.Warn().Err(err).Msg("payload is not a JSON object")
		return nil, nil, false, nil
	}

	return payload, data, true, nil
}

// commitPayload replaces the stored payload wholesale.
func (e *Entity) commitPayload(payload json.RawMessage, data map[string]any) {
	e.raw = payload
	e.data = data
}

// unwrapPayload extracts the payload-type envelope from a response document.
// When the envelope value is an array the first element is taken; when the
// envelope key is absent the whole document is the payload.
func unwrapPayload(raw json.RawMessage, payloadType string) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}

	payload, ok := envelope[payloadType]
	if !ok {
		return raw, nil
	}

	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, fmt.Errorf("decoding %s array: %w", payloadType, err)
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%s array is empty", payloadType)
		}
		return items[0], nil
	}

	return payload, nil
}

// lastPathSegment returns the trailing path segment of a URI, used as the
// author or affiliation identifier in search queries.
func lastPathSegment(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
