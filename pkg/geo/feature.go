package geo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/HomegrownMarine/sailing-calculations/pkg/model"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// TackFeatures builds a GeoJSON layer for the given tacks: one Point feature
// at each tack's center position and, when at least two of start, center
// and end positions are known, a LineString through them.
// Tacks without a center position are skipped.
func TackFeatures(tacks []model.Tack) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i := range tacks {
		t := &tacks[i]
		if t.Position == nil {
			continue
		}

		props := tackProperties(t)

		pt := geojson.NewFeature(*t.Position)
		pt.ID = t.ID
		pt.Properties = props.Clone()
		pt.Properties["kind"] = "center"
		fc.Append(pt)

		var line orb.LineString
		for _, p := range []*orb.Point{t.StartPosition, t.Position, t.EndPosition} {
			if p != nil {
				line = append(line, *p)
			}
		}
		if len(line) < 2 {
			continue
		}
		lf := geojson.NewFeature(line)
		lf.Properties = props.Clone()
		lf.Properties["kind"] = "path"
		fc.Append(lf)
	}

	return fc
}

func tackProperties(t *model.Tack) geojson.Properties {
	props := geojson.Properties{
		"id":    t.ID,
		"board": string(t.Board),
		"time":  t.Time.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if t.Loss != nil {
		props["loss"] = *t.Loss
	}
	if t.MaxTWA != nil {
		props["maxTwa"] = *t.MaxTWA
	}
	if len(t.Notes) > 0 {
		props["notes"] = t.Notes
	}
	return props
}

// WriteFeatureCollection writes fc as GeoJSON to path, creating the directory if needed.
func WriteFeatureCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal geojson: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create geojson dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write geojson %s: %w", path, err)
	}
	return nil
}
