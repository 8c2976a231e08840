package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/digsentry/digsentry/internal/adapters/postgres"
	"github.com/digsentry/digsentry/internal/adapters/valkey"
	"github.com/digsentry/digsentry/internal/core/domain"
	"github.com/digsentry/digsentry/internal/core/ports"
	"github.com/digsentry/digsentry/internal/core/usecases"
	"github.com/digsentry/digsentry/internal/pkg/config"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source string      `json:"source"`
	Sites  []SiteEntry `json:"sites"`
}

type SiteEntry struct {
	Name   string           `json:"name"`
	Slug   string           `json:"slug"`
	MapURL string           `json:"map_url"` // http(s) URL or local path of a GeoJSON FeatureCollection
	Center *domain.GeoPoint `json:"center,omitempty"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("digsentry-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Cache is wired so imports invalidate the line snapshots running
	// monitors read. Without it the import still lands, monitors just pick
	// it up on their next refresh.
	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		log.Printf("WARNING: valkey unavailable, skipping snapshot invalidation: %v", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	lineSvc := usecases.NewLineService(postgres.NewLineRepo(db), cacheSvc)

	// Load manifest
	manifestPath := "sites.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("DigSentry Map Importer — %d sites from %s", len(manifest.Sites), manifest.Source)

	// Filter sites (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent downloads

	for _, site := range manifest.Sites {
		if len(slugFilter) > 0 && !slugFilter[site.Slug] {
			continue
		}

		wg.Add(1)
		go func(s SiteEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importSite(ctx, db, lineSvc, client, s); err != nil {
				log.Printf("ERROR [%s]: %v", s.Slug, err)
			}
		}(site)
	}

	wg.Wait()
	log.Println("import complete")
}

// ---------------------------------------------------------------------------
// Per-site import
// ---------------------------------------------------------------------------

func importSite(ctx context.Context, db *postgres.DB, lines *usecases.LineService, client *http.Client, site SiteEntry) error {
	data, err := fetchMap(client, site.MapURL)
	if err != nil {
		return fmt.Errorf("fetch map: %w", err)
	}

	siteID, err := upsertSite(ctx, db, site)
	if err != nil {
		return fmt.Errorf("upsert site: %w", err)
	}
	log.Printf("[%s] site_id=%s", site.Slug, siteID)

	imported, skipped, err := lines.ImportGeoJSON(ctx, siteID, data)
	if err != nil {
		return fmt.Errorf("import lines: %w", err)
	}

	log.Printf("[%s]   lines: %d imported, %d skipped", site.Slug, imported, skipped)
	return nil
}

// fetchMap loads the GeoJSON from a URL or a local path. Survey exports
// usually arrive as files next to the manifest.
func fetchMap(client *http.Client, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.ReadFile(source)
	}

	resp, err := client.Get(source)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, source)
	}
	return io.ReadAll(resp.Body)
}

// ---------------------------------------------------------------------------
// Site upsert
// ---------------------------------------------------------------------------

func upsertSite(ctx context.Context, db *postgres.DB, site SiteEntry) (string, error) {
	var lat, lon interface{}
	if site.Center != nil {
		lat, lon = site.Center.Lat, site.Center.Lon
	}

	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO sites (slug, name, status, center)
		VALUES ($1, $2, 'active',
			CASE WHEN $3::float8 IS NULL THEN NULL
			     ELSE ST_SetSRID(ST_MakePoint($4, $3), 4326)::geography END)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, center = COALESCE(EXCLUDED.center, sites.center)
		RETURNING id
	`, site.Slug, site.Name, lat, lon).Scan(&id)
	return id, err
}
