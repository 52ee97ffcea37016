package memory

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

// Search returns the standalone entities of a localization whose title or
// top-level content text contains text, ignoring case, ordered by id. An empty
// text matches every entity.
func (c *Client) Search(ctx context.Context, loc models.Localization, text string) ([]*models.ModelData, error) {
	_, span := tracer.Start(ctx, "memory.Search", trace.WithAttributes(attribute.String("text", text)))
	defer span.End()

	c.mu.RLock()
	entities := c.lookup(loc.ID).entities
	ids := make([]string, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	needle := strings.ToLower(text)
	var out []*models.ModelData
	for _, id := range ids {
		data := entities[id]
		if matches(data, needle) {
			out = append(out, data)
		}
	}
	c.mu.RUnlock()

	span.SetAttributes(attribute.Int("matches", len(out)))
	return out, nil
}

func matches(data *models.ModelData, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(data.String("Title")), needle) {
		return true
	}
	content := data.Object("Content")
	for _, name := range content.Names() {
		if strings.Contains(strings.ToLower(content.String(name)), needle) {
			return true
		}
	}
	return false
}
