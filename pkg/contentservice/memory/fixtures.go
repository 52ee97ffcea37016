package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

// Fixtures is the file format accepted by LoadFixtures. Page and entity data
// are model data objects written inline, in YAML or JSON.
type Fixtures struct {
	Localizations []LocalizationFixture `json:"localizations"`
}

type LocalizationFixture struct {
	ID         string                `json:"id"`
	Pages      []PageFixture         `json:"pages"`
	Entities   []EntityFixture       `json:"entities"`
	Navigation []*models.SitemapItem `json:"navigation"`
}

type PageFixture struct {
	// Path is the canonical URL path, e.g. /about/index.json.
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

type EntityFixture struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// LoadFixtures reads a fixture file and returns a Client serving its content.
func LoadFixtures(path string) (*Client, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

// ParseFixtures builds a Client from YAML or JSON fixture content.
func ParseFixtures(raw []byte) (*Client, error) {
	var fixtures Fixtures
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}

	c := New()
	for _, loc := range fixtures.Localizations {
		if loc.ID == "" {
			return nil, fmt.Errorf("fixture localization without id")
		}

		for _, page := range loc.Pages {
			data, err := models.ParseModelData(page.Data)
			if err != nil {
				return nil, fmt.Errorf("page '%s' in localization '%s': %w", page.Path, loc.ID, err)
			}
			if err := c.PutPage(loc.ID, page.Path, data); err != nil {
				return nil, err
			}
		}

		for _, entity := range loc.Entities {
			data, err := models.ParseModelData(entity.Data)
			if err != nil {
				return nil, fmt.Errorf("entity '%s' in localization '%s': %w", entity.ID, loc.ID, err)
			}
			c.PutEntity(loc.ID, entity.ID, data)
		}

		c.PutNavigation(loc.ID, loc.Navigation)
	}

	return c, nil
}
