// Command catalog-export downloads every product entry from Contentful and
// writes them to a gzip-compressed snapshot that the storefront can serve
// with KIRANA_CATALOG_SNAPSHOT_PATH.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kirana/internal/catalog"
	"github.com/xenking/kirana/internal/contentful"
)

func main() {
	var (
		cfg contentful.Config
		out string
	)

	flag.StringVar(&cfg.SpaceID, "space-id", "", "Contentful space id (or KIRANA_CONTENTFUL_SPACE_ID env)")
	flag.StringVar(&cfg.AccessToken, "access-token", "", "Contentful delivery token (or KIRANA_CONTENTFUL_ACCESS_TOKEN env)")
	flag.StringVar(&cfg.Environment, "environment", "master", "Contentful environment")
	flag.StringVar(&cfg.BaseURL, "base-url", "https://cdn.contentful.com", "Content Delivery API base URL")
	flag.IntVar(&cfg.PageSize, "page-size", 1000, "entries per request")
	flag.IntVar(&cfg.Concurrency, "concurrency", 4, "parallel page requests")
	flag.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "per-request timeout")
	flag.StringVar(&out, "out", "catalog.json.gz", "snapshot file to write")
	flag.Parse()

	if cfg.SpaceID == "" {
		cfg.SpaceID = os.Getenv("KIRANA_CONTENTFUL_SPACE_ID")
	}
	if cfg.AccessToken == "" {
		cfg.AccessToken = os.Getenv("KIRANA_CONTENTFUL_ACCESS_TOKEN")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, out); err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg contentful.Config, out string) error {
	client, err := contentful.NewClient(cfg)
	if err != nil {
		return errors.Wrap(err, "create client")
	}

	start := time.Now()
	slog.Info("fetching catalog", slog.String("space", cfg.SpaceID), slog.String("environment", cfg.Environment))
	entries, err := client.Entries(ctx, contentful.ProductContentType)
	if err != nil {
		return errors.Wrap(err, "fetch entries")
	}
	available := len(catalog.ProjectAvailable(entries))
	slog.Info("fetched catalog",
		slog.Int("entries", len(entries)),
		slog.Int("available", available),
		slog.Duration("took", time.Since(start)),
	)

	if err := writeFile(out, entries); err != nil {
		return err
	}
	slog.Info("snapshot written", slog.String("path", out))
	return nil
}

// writeFile writes the snapshot next to out and renames it into place.
func writeFile(out string, entries []catalog.Entry) error {
	tmp, err := os.CreateTemp(filepath.Dir(out), filepath.Base(out)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := catalog.WriteSnapshot(tmp, entries); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close snapshot")
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return errors.Wrapf(err, "rename to %q", out)
	}
	return nil
}
