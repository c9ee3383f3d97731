package sources

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tremor-labs/tremor-engine/pkg/models"
	"github.com/tremor-labs/tremor-engine/pkg/services"
)

// Model is the parsed form of a source model file: the seismic sources, the
// hazard sites, and the GSIM assignment per tectonic region type.
type Model struct {
	Sources []services.SeismicSource
	Sites   []*models.Site
	GSIMs   map[string]string
}

type modelFile struct {
	Sources []sourceEntry     `yaml:"sources"`
	Sites   []siteEntry       `yaml:"sites"`
	GSIMs   map[string]string `yaml:"gsims"`
}

type sourceEntry struct {
	ID             string          `yaml:"id"`
	Longitude      float64         `yaml:"longitude"`
	Latitude       float64         `yaml:"latitude"`
	TectonicRegion string          `yaml:"tectonic_region"`
	Magnitudes     []MagnitudeRate `yaml:"magnitudes"`
}

type siteEntry struct {
	ID        int64   `yaml:"id"`
	Longitude float64 `yaml:"longitude"`
	Latitude  float64 `yaml:"latitude"`
}

// LoadModel reads a source model file. Source order in the file is
// authoritative: it fixes the enumeration order of all later seed draws.
func LoadModel(path string, investigationTime float64) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source model file: %w", err)
	}

	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse source model file: %w", err)
	}

	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("source model file %s defines no sources", path)
	}
	if len(file.Sites) == 0 {
		return nil, fmt.Errorf("source model file %s defines no sites", path)
	}

	model := &Model{
		Sources: make([]services.SeismicSource, 0, len(file.Sources)),
		Sites:   make([]*models.Site, 0, len(file.Sites)),
		GSIMs:   file.GSIMs,
	}

	seen := make(map[string]bool, len(file.Sources))
	for _, src := range file.Sources {
		if src.ID == "" {
			return nil, fmt.Errorf("source model file %s: source without id", path)
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("source model file %s: duplicate source id %q", path, src.ID)
		}
		seen[src.ID] = true
		if len(src.Magnitudes) == 0 {
			return nil, fmt.Errorf("source model file %s: source %q has no magnitude bins", path, src.ID)
		}
		model.Sources = append(model.Sources, NewPointSource(
			src.ID,
			models.Point{Lon: src.Longitude, Lat: src.Latitude},
			src.TectonicRegion,
			src.Magnitudes,
			investigationTime,
		))
	}

	for _, site := range file.Sites {
		model.Sites = append(model.Sites, &models.Site{
			ID:       site.ID,
			Location: models.Point{Lon: site.Longitude, Lat: site.Latitude},
		})
	}

	return model, nil
}
