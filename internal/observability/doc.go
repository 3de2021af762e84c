// Package observability provides logging and metrics support for the
// Elsevier profile client.
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("uri", uri).Msg("profile read")
//
// Add entity context to a logger:
//
//	logger = observability.WithEntityContext(logger, uri, payloadType)
//
// # Metrics
//
// Initialize metrics and record API activity:
//
//	metrics := observability.NewMetrics("elsevier_profiles")
//	metrics.RequestsTotal.WithLabelValues("search").Inc()
//	metrics.DocumentsFetched.Add(42)
//
// # Context Helpers
//
// Store and retrieve request IDs:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
//   - request_id: outgoing API request identifier
//   - uri: entity URI being read
//   - payload_type: expected response schema tag
//   - query: document search query
//   - doc_count: number of documents fetched
//
// All components are safe for concurrent use from multiple goroutines.
package observability
