package geospatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// DecodeLines parses a GeoJSON FeatureCollection into utility lines for the
// given site. Features need LineString or MultiLineString geometry and a
// "kind" property; "class" defaults to main when absent. Features that
// cannot be mapped are counted as skipped instead of failing the import.
func DecodeLines(data []byte, siteID string) ([]domain.UtilityLine, int, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("parse geojson: %w", err)
	}

	var lines []domain.UtilityLine
	skipped := 0
	for _, f := range fc.Features {
		kindStr, _ := f.Properties["kind"].(string)
		kind, err := domain.ParseUtilityKind(kindStr)
		if err != nil {
			skipped++
			continue
		}

		class := domain.ClassMain
		if classStr, ok := f.Properties["class"].(string); ok {
			parsed, err := domain.ParseLineClass(classStr)
			if err != nil {
				skipped++
				continue
			}
			class = parsed
		}

		var parts []orb.LineString
		switch g := f.Geometry.(type) {
		case orb.LineString:
			parts = append(parts, g)
		case orb.MultiLineString:
			parts = append(parts, g...)
		default:
			skipped++
			continue
		}

		id, _ := f.Properties["id"].(string)
		if id == "" {
			if s, ok := f.ID.(string); ok {
				id = s
			}
		}

		meta := make(map[string]any)
		for k, v := range f.Properties {
			if k == "kind" || k == "class" || k == "id" {
				continue
			}
			meta[k] = v
		}
		if len(meta) == 0 {
			meta = nil
		}

		for i, part := range parts {
			vertices := make([]domain.GeoPoint, 0, len(part))
			for _, pt := range part {
				vertices = append(vertices, domain.GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()})
			}
			line := domain.UtilityLine{
				ID:       id,
				SiteID:   siteID,
				Kind:     kind,
				Class:    class,
				Vertices: vertices,
				Metadata: meta,
			}
			if len(parts) > 1 && id != "" {
				line.ID = fmt.Sprintf("%s-%d", id, i+1)
			}
			if line.Validate() != nil {
				skipped++
				continue
			}
			lines = append(lines, line)
		}
	}

	return lines, skipped, nil
}
