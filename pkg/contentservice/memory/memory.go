// Package memory is an in-memory content service used in tests and to run the
// CLI against fixture files.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

var tracer = otel.Tracer("pkg/contentservice/memory")

type publication struct {
	pagesByPath map[string]*models.ModelData
	pagesByID   map[int]*models.ModelData
	entities    map[string]*models.ModelData
	navigation  []*models.SitemapItem
}

func newPublication() *publication {
	return &publication{
		pagesByPath: map[string]*models.ModelData{},
		pagesByID:   map[int]*models.ModelData{},
		entities:    map[string]*models.ModelData{},
	}
}

// Client serves content from memory. Content is scoped by localization id.
type Client struct {
	mu           sync.RWMutex
	publications map[string]*publication
}

var _ contentservice.Client = (*Client)(nil)

func New() *Client {
	return &Client{publications: map[string]*publication{}}
}

func (c *Client) publication(locID string) *publication {
	p, ok := c.publications[locID]
	if !ok {
		p = newPublication()
		c.publications[locID] = p
	}
	return p
}

// PutPage stores page data under a canonical URL path. The page id is read
// from the data's Id field.
func (c *Client) PutPage(locID, urlPath string, data *models.ModelData) error {
	id, err := strconv.Atoi(data.String("Id"))
	if err != nil {
		return fmt.Errorf("page '%s' has no numeric id: %w", urlPath, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.publication(locID)
	p.pagesByPath[urlPath] = data
	p.pagesByID[id] = data
	return nil
}

// PutEntity stores entity data under its {componentId}-{templateId} id.
func (c *Client) PutEntity(locID, id string, data *models.ModelData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publication(locID).entities[id] = data
}

// PutNavigation replaces the navigation forest of a localization.
func (c *Client) PutNavigation(locID string, roots []*models.SitemapItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publication(locID).navigation = models.SitemapItems(roots).DeepCopy()
}

// DeletePage removes the page stored under urlPath.
func (c *Client) DeletePage(locID, urlPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.publication(locID)
	if data, ok := p.pagesByPath[urlPath]; ok {
		delete(p.pagesByPath, urlPath)
		if id, err := strconv.Atoi(data.String("Id")); err == nil {
			delete(p.pagesByID, id)
		}
	}
}

func (c *Client) FetchPageByPath(ctx context.Context, loc models.Localization, urlPath string, includes contentservice.IncludeMode) (*models.ModelData, error) {
	_, span := tracer.Start(ctx, "memory.FetchPageByPath", trace.WithAttributes(
		attribute.String("url_path", urlPath),
		attribute.String("include_mode", includes.String()),
	))
	defer span.End()

	c.mu.RLock()
	data, ok := c.lookup(loc.ID).pagesByPath[urlPath]
	c.mu.RUnlock()
	if !ok {
		return nil, dxaerrors.ItemNotFoundError(urlPath, loc.ID)
	}
	return withIncludes(data, includes), nil
}

func (c *Client) FetchPageByID(ctx context.Context, loc models.Localization, pageID int, includes contentservice.IncludeMode) (*models.ModelData, error) {
	_, span := tracer.Start(ctx, "memory.FetchPageByID", trace.WithAttributes(
		attribute.Int("page_id", pageID),
		attribute.String("include_mode", includes.String()),
	))
	defer span.End()

	c.mu.RLock()
	data, ok := c.lookup(loc.ID).pagesByID[pageID]
	c.mu.RUnlock()
	if !ok {
		return nil, dxaerrors.ItemNotFoundError(strconv.Itoa(pageID), loc.ID)
	}
	return withIncludes(data, includes), nil
}

func (c *Client) FetchEntity(ctx context.Context, loc models.Localization, componentID, templateID int) (*models.ModelData, error) {
	id := fmt.Sprintf("%d-%d", componentID, templateID)
	_, span := tracer.Start(ctx, "memory.FetchEntity", trace.WithAttributes(attribute.String("entity_id", id)))
	defer span.End()

	c.mu.RLock()
	data, ok := c.lookup(loc.ID).entities[id]
	c.mu.RUnlock()
	if !ok {
		return nil, dxaerrors.ItemNotFoundError(id, loc.ID)
	}
	return data, nil
}

func (c *Client) FetchFullTree(ctx context.Context, loc models.Localization, rootID string, includeAncestors bool, maxDepth int) ([]*models.SitemapItem, error) {
	_, span := tracer.Start(ctx, "memory.FetchFullTree", trace.WithAttributes(
		attribute.String("root_id", rootID),
		attribute.Bool("include_ancestors", includeAncestors),
		attribute.Int("max_depth", maxDepth),
	))
	defer span.End()

	c.mu.RLock()
	defer c.mu.RUnlock()
	roots := c.lookup(loc.ID).navigation

	if rootID == "" {
		return expandAll(roots, maxDepth), nil
	}

	path := findPath(roots, rootID)
	if path == nil {
		return nil, dxaerrors.ItemNotFoundError(rootID, loc.ID)
	}

	switch {
	case len(path) == 1:
		return expandAll(path[0].Items, below(maxDepth)), nil
	case includeAncestors:
		return []*models.SitemapItem{expand(path[0], maxDepth)}, nil
	default:
		return []*models.SitemapItem{expand(path[len(path)-1], maxDepth)}, nil
	}
}

func (c *Client) FetchBoundedSubtree(ctx context.Context, loc models.Localization, rootID string, depth int, includeAncestors bool) ([]*models.SitemapItem, error) {
	_, span := tracer.Start(ctx, "memory.FetchBoundedSubtree", trace.WithAttributes(
		attribute.String("root_id", rootID),
		attribute.Int("depth", depth),
		attribute.Bool("include_ancestors", includeAncestors),
	))
	defer span.End()

	c.mu.RLock()
	defer c.mu.RUnlock()
	roots := c.lookup(loc.ID).navigation

	if rootID == "" {
		return expandAll(roots, depth), nil
	}

	path := findPath(roots, rootID)
	if path == nil {
		return nil, dxaerrors.ItemNotFoundError(rootID, loc.ID)
	}

	node := expand(path[len(path)-1], depth)
	if !includeAncestors {
		return []*models.SitemapItem{node}, nil
	}

	// wrap the node in its ancestor chain, each ancestor holding only the next hop
	for i := len(path) - 2; i >= 0; i-- {
		ancestor := shallow(path[i])
		ancestor.Items = []*models.SitemapItem{node}
		ancestor.ChildrenLoaded = len(path[i].Items) == 1
		node = ancestor
	}
	return []*models.SitemapItem{node}, nil
}

// lookup must be called with c.mu held.
func (c *Client) lookup(locID string) *publication {
	if p, ok := c.publications[locID]; ok {
		return p
	}
	return newPublication()
}

func withIncludes(data *models.ModelData, includes contentservice.IncludeMode) *models.ModelData {
	if includes == contentservice.IncludePageRegions {
		return data
	}
	return data.WithFilteredObjects("Regions", func(region *models.ModelData) bool {
		return region.String("IncludePageId") == ""
	})
}

// findPath returns the nodes from a top-level node down to id, depth first.
func findPath(items []*models.SitemapItem, id string) []*models.SitemapItem {
	for _, item := range items {
		if item.ID == id {
			return []*models.SitemapItem{item}
		}
		if rest := findPath(item.Items, id); rest != nil {
			return append([]*models.SitemapItem{item}, rest...)
		}
	}
	return nil
}

func shallow(item *models.SitemapItem) *models.SitemapItem {
	cp := *item
	cp.Items = nil
	cp.HasChildNodes = len(item.Items) > 0 || item.HasChildNodes
	return &cp
}

// expand copies item with depth levels of descendants. A negative depth
// copies everything.
func expand(item *models.SitemapItem, depth int) *models.SitemapItem {
	cp := shallow(item)
	if depth == 0 {
		cp.ChildrenLoaded = !cp.HasChildNodes
		return cp
	}
	cp.Items = expandAll(item.Items, below(depth))
	cp.ChildrenLoaded = true
	return cp
}

func below(depth int) int {
	if depth > 0 {
		return depth - 1
	}
	return depth
}

func expandAll(items []*models.SitemapItem, depth int) []*models.SitemapItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]*models.SitemapItem, len(items))
	for i, item := range items {
		out[i] = expand(item, depth)
	}
	return out
}
