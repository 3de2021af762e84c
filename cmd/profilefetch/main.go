// Package main provides a CLI for fetching Elsevier author and affiliation
// profiles, their associated document lists, and author metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/openscholar/elsevier-profiles/internal/config"
	"github.com/openscholar/elsevier-profiles/internal/elsclient"
	"github.com/openscholar/elsevier-profiles/internal/observability"
	"github.com/openscholar/elsevier-profiles/internal/profile"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Define CLI flags.
	authorRef := flag.String("author", "", "Author ID or full author URI")
	affilRef := flag.String("affiliation", "", "Affiliation ID or full affiliation URI")
	withDocs := flag.Bool("docs", false, "Fetch the document list and write it to the output directory")
	withMetrics := flag.Bool("metrics", false, "Fetch bibliographic metrics (authors only)")
	outDir := flag.String("out", "", "Override the document output directory")
	flag.Parse()

	if *authorRef == "" && *affilRef == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nPlease specify -author ID or -affiliation ID")
		return fmt.Errorf("no entity specified")
	}
	if *withMetrics && *authorRef == "" {
		return fmt.Errorf("-metrics applies to authors only")
	}

	// Load configuration (API credentials from env/config file).
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "profilefetch").Logger()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	client := elsclient.New(elsclient.Config{
		BaseURL:    cfg.Client.BaseURL,
		APIKey:     cfg.Client.APIKey,
		InstToken:  cfg.Client.InstToken,
		Timeout:    cfg.Client.Timeout,
		RateLimit:  cfg.Client.RateLimit,
		BurstSize:  cfg.Client.BurstSize,
		MaxRetries: cfg.Client.MaxRetries,
		RetryDelay: cfg.Client.RetryDelay,
		UserAgent:  cfg.Client.UserAgent,
	}, elsclient.WithLogger(logger), elsclient.WithMetrics(metrics))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := cfg.Documents.OutputDir
	if *outDir != "" {
		dir = *outDir
	}
	if *withDocs {
		// WriteDocs expects the output directory to exist.
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory %q: %w", dir, err)
		}
	}

	opts := []profile.Option{
		profile.WithClient(client),
		profile.WithLogger(logger),
		profile.WithOutputDir(dir),
	}
	if metrics != nil {
		opts = append(opts, profile.WithMetrics(metrics))
	}

	if *authorRef != "" {
		if err := fetchAuthor(ctx, logger, *authorRef, *withDocs, *withMetrics, opts); err != nil {
			return err
		}
	}
	if *affilRef != "" {
		if err := fetchAffiliation(ctx, logger, *affilRef, *withDocs, opts); err != nil {
			return err
		}
	}
	return nil
}

func fetchAuthor(ctx context.Context, logger zerolog.Logger, ref string, withDocs, withMetrics bool, opts []profile.Option) error {
	params := profile.AuthorParams{AuthorID: ref}
	if isURI(ref) {
		params = profile.AuthorParams{URI: ref}
	}

	author, err := profile.NewAuthor(params, opts...)
	if err != nil {
		return fmt.Errorf("author %q: %w", ref, err)
	}

	ok, err := author.Read(ctx, nil)
	if err != nil {
		return fmt.Errorf("reading author %q: %w", ref, err)
	}
	if !ok {
		return fmt.Errorf("author %q could not be read", ref)
	}

	name, err := author.FullName()
	if err != nil {
		return err
	}
	fmt.Printf("author: %s (%s)\n", name, author.URI())

	if withMetrics {
		ok, err := author.ReadMetrics(ctx, nil)
		if err != nil {
			return fmt.Errorf("reading metrics for %q: %w", ref, err)
		}
		if !ok {
			return fmt.Errorf("metrics for %q could not be read", ref)
		}
		coredata, _ := author.Data()["coredata"].(map[string]any)
		fmt.Printf("  documents: %v  citations: %v  h-index: %v\n",
			coredata["document-count"], coredata["citation-count"], author.Data()["h-index"])
	}

	if withDocs {
		return fetchDocs(ctx, logger, author)
	}
	return nil
}

func fetchAffiliation(ctx context.Context, logger zerolog.Logger, ref string, withDocs bool, opts []profile.Option) error {
	params := profile.AffiliationParams{AffiliationID: ref}
	if isURI(ref) {
		params = profile.AffiliationParams{URI: ref}
	}

	affil, err := profile.NewAffiliation(params, opts...)
	if err != nil {
		return fmt.Errorf("affiliation %q: %w", ref, err)
	}

	ok, err := affil.Read(ctx, nil)
	if err != nil {
		return fmt.Errorf("reading affiliation %q: %w", ref, err)
	}
	if !ok {
		return fmt.Errorf("affiliation %q could not be read", ref)
	}

	name, err := affil.Name()
	if err != nil {
		return err
	}
	fmt.Printf("affiliation: %s (%s)\n", name, affil.URI())

	if withDocs {
		return fetchDocs(ctx, logger, affil)
	}
	return nil
}

func fetchDocs(ctx context.Context, logger zerolog.Logger, entity profile.DocumentFetcher) error {
	ok, err := entity.ReadDocs(ctx, nil)
	if err != nil {
		return fmt.Errorf("fetching documents for %s: %w", entity.URI(), err)
	}
	if !ok {
		return fmt.Errorf("documents for %s could not be fetched", entity.URI())
	}
	fmt.Printf("  documents fetched: %d\n", len(entity.DocList()))

	ok, err = entity.WriteDocs()
	if err != nil {
		return fmt.Errorf("writing documents for %s: %w", entity.URI(), err)
	}
	if !ok {
		logger.Warn().Str("uri", entity.URI()).Msg("no documents written")
	}
	return nil
}

func isURI(ref string) bool {
	return strings.Contains(ref, "://")
}
