// Package resolver turns URL paths, page ids and entity ids into page and
// entity models. Built models are memoized in a DependencyCache tagged with
// the content URIs they were built from, and every caller receives its own
// copy to filter or modify.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wangzhengdao/dxa-web-application-dotnet/internal/concurrency"
	"github.com/wangzhengdao/dxa-web-application-dotnet/internal/keys"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/cache"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/deserializer"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

var tracer = otel.Tracer("pkg/resolver")

const (
	RegionPageModel   = "PageModel"
	RegionEntityModel = "EntityModel"

	DefaultIndexPageName    = "index"
	DefaultExtension        = ".json"
	DefaultMaxEntityFetches = 10
)

// ConditionalEntityEvaluator decides whether an entity is removed from a
// resolved page.
type ConditionalEntityEvaluator interface {
	ShouldSuppress(entity *models.EntityModel, loc models.Localization) bool
}

type ResolverOption func(r *Resolver)

func WithLogger(l logger.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithCache memoizes built models in c. Without a cache every call builds.
func WithCache(c *cache.DependencyCache) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithCachingEnabled sets the initial state of model caching. Caching is
// enabled by default when a cache is set.
func WithCachingEnabled(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.cachingEnabled.Store(enabled)
	}
}

func WithConditionalEntityEvaluator(e ConditionalEntityEvaluator) ResolverOption {
	return func(r *Resolver) {
		r.evaluator = e
	}
}

// WithPageNaming sets the index page name and the extension used to
// canonicalize URL paths.
func WithPageNaming(indexPageName, extension string) ResolverOption {
	return func(r *Resolver) {
		r.indexPageName = indexPageName
		r.extension = extension
	}
}

// WithMaxEntityFetches bounds the concurrent fetches of ResolveEntities.
func WithMaxEntityFetches(n int) ResolverOption {
	return func(r *Resolver) {
		r.maxEntityFetches = n
	}
}

type Resolver struct {
	client       contentservice.Client
	deserializer *deserializer.Deserializer
	cache        *cache.DependencyCache
	evaluator    ConditionalEntityEvaluator
	logger       logger.Logger

	cachingEnabled   atomic.Bool
	indexPageName    string
	extension        string
	maxEntityFetches int
}

func New(client contentservice.Client, d *deserializer.Deserializer, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:           client,
		deserializer:     d,
		logger:           logger.NewNoopLogger(),
		indexPageName:    DefaultIndexPageName,
		extension:        DefaultExtension,
		maxEntityFetches: DefaultMaxEntityFetches,
	}
	r.cachingEnabled.Store(true)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetCachingEnabled switches model caching on or off for subsequent calls.
func (r *Resolver) SetCachingEnabled(enabled bool) {
	r.cachingEnabled.Store(enabled)
}

func (r *Resolver) cachingActive() bool {
	return r.cache != nil && r.cachingEnabled.Load()
}

// cacheEpoch is taken before content is fetched, so that a model built from
// content invalidated in the meantime is not stored.
func (r *Resolver) cacheEpoch() uint64 {
	if r.cache == nil {
		return 0
	}
	return r.cache.Epoch()
}

func (r *Resolver) CanonicalURLPath(urlPath string) string {
	return CanonicalURLPath(urlPath, r.indexPageName, r.extension)
}

// CanonicalURLPath normalizes a request path:
//   - an empty path or "/" addresses the root index page;
//   - a leading slash is ensured;
//   - a trailing slash addresses the directory's index page, named without
//     extension;
//   - a path ending in extension, or whose last segment has another extension,
//     is left as is;
//   - any other path gets extension appended.
func CanonicalURLPath(urlPath, indexPageName, extension string) string {
	if urlPath == "" || urlPath == "/" {
		return "/" + indexPageName + extension
	}

	p := urlPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.HasSuffix(p, "/") {
		return p + indexPageName
	}
	if strings.HasSuffix(p, extension) || hasExtension(p) {
		return p
	}
	return p + extension
}

func hasExtension(p string) bool {
	return strings.Contains(p[strings.LastIndex(p, "/")+1:], ".")
}

// contentPath is the path a canonical URL path is published under.
// Extension-less index page paths get the extension.
func (r *Resolver) contentPath(canonical string) string {
	if hasExtension(canonical) {
		return canonical
	}
	return canonical + r.extension
}

func (r *Resolver) indexSuffix() string {
	return "/" + r.indexPageName + r.extension
}

// ResolvePage returns the page stored under urlPath. When nothing exists at
// the canonical path the directory's index page is tried once before failing
// with errors.ErrNotFound.
func (r *Resolver) ResolvePage(ctx context.Context, urlPath string, loc models.Localization, addIncludes bool) (*models.PageModel, error) {
	ctx, span := tracer.Start(ctx, "resolver.ResolvePage", trace.WithAttributes(
		attribute.String("url_path", urlPath),
		attribute.String("localization_id", loc.ID),
		attribute.Bool("add_includes", addIncludes),
	))
	defer span.End()

	ctx = logger.ContextWithFields(ctx,
		zap.String("localization_id", loc.ID),
		zap.String("url_path", urlPath))

	includes := contentservice.IncludeModeFor(addIncludes)
	canonical := r.contentPath(r.CanonicalURLPath(urlPath))
	since := r.cacheEpoch()

	resolvedPath := canonical
	data, err := r.client.FetchPageByPath(ctx, loc, canonical, includes)
	if err != nil && dxaerrors.IsNotFound(err) && r.mayHaveIndexPage(canonical) {
		// the path may address a directory with an implicit index page
		resolvedPath = strings.TrimSuffix(canonical, r.extension) + r.indexSuffix()
		r.logger.DebugWithContext(ctx, "page not found, trying index page",
			zap.String("canonical_path", canonical),
			zap.String("index_path", resolvedPath))
		data, err = r.client.FetchPageByPath(ctx, loc, resolvedPath, includes)
	}
	if err != nil {
		if dxaerrors.IsNotFound(err) {
			return nil, dxaerrors.ItemNotFoundError(urlPath, loc.ID)
		}
		span.RecordError(err)
		return nil, r.upstreamFailure(ctx, fmt.Sprintf("page '%s'", urlPath), err)
	}
	span.SetAttributes(attribute.String("resolved_path", resolvedPath))

	return r.buildPage(ctx, since, data, resolvedPath, loc, addIncludes)
}

// mayHaveIndexPage reports whether a canonical path that was not found can
// address a directory. Index pages and paths with a foreign extension cannot.
func (r *Resolver) mayHaveIndexPage(canonical string) bool {
	if strings.HasSuffix(canonical, r.indexSuffix()) {
		return false
	}
	if hasExtension(canonical) && (r.extension == "" || !strings.HasSuffix(canonical, r.extension)) {
		return false
	}
	return true
}

// ResolvePageByID returns the page with the given numeric id.
func (r *Resolver) ResolvePageByID(ctx context.Context, pageID int, loc models.Localization, addIncludes bool) (*models.PageModel, error) {
	ctx, span := tracer.Start(ctx, "resolver.ResolvePageByID", trace.WithAttributes(
		attribute.Int("page_id", pageID),
		attribute.String("localization_id", loc.ID),
		attribute.Bool("add_includes", addIncludes),
	))
	defer span.End()

	ctx = logger.ContextWithFields(ctx,
		zap.String("localization_id", loc.ID),
		zap.Int("page_id", pageID))

	since := r.cacheEpoch()
	data, err := r.client.FetchPageByID(ctx, loc, pageID, contentservice.IncludeModeFor(addIncludes))
	if err != nil {
		if dxaerrors.IsNotFound(err) {
			return nil, dxaerrors.ItemNotFoundError(strconv.Itoa(pageID), loc.ID)
		}
		span.RecordError(err)
		return nil, r.upstreamFailure(ctx, fmt.Sprintf("page %d", pageID), err)
	}

	return r.buildPage(ctx, since, data, r.contentPath(r.CanonicalURLPath(data.String("UrlPath"))), loc, addIncludes)
}

func (r *Resolver) buildPage(ctx context.Context, since uint64, data *models.ModelData, urlPath string, loc models.Localization, addIncludes bool) (*models.PageModel, error) {
	id := data.String("Id")
	if id == "" {
		return nil, r.upstreamFailure(ctx, fmt.Sprintf("page '%s'", urlPath),
			dxaerrors.UpstreamProtocolError(fmt.Sprintf("page '%s' has no id", urlPath), models.ErrInvalidModelData))
	}

	pageURI := loc.CmURI(id, models.ItemTypePage)
	build := func(context.Context) (*models.PageModel, bool, error) {
		page, err := r.deserializer.Page(data, loc)
		if err != nil {
			return nil, false, dxaerrors.UpstreamProtocolError(fmt.Sprintf("building page model '%s'", pageURI), err)
		}
		page.URL = urlPath
		return page, !page.NoCache, nil
	}

	var (
		page *models.PageModel
		err  error
	)
	if r.cachingActive() {
		key := keys.PageModelKey(pageURI, addIncludes)
		page, err = cache.GetOrComputeSince(ctx, r.cache, since, RegionPageModel, key, PageDependencies(data, loc), build)
	} else {
		page, _, err = build(ctx)
	}
	if err != nil {
		return nil, r.upstreamFailure(ctx, fmt.Sprintf("page '%s'", urlPath), err)
	}

	r.filterConditionalEntities(ctx, page, loc)
	return page, nil
}

// PageDependencies returns the URIs a page built from data depends on: the
// page itself and every page included in its regions.
func PageDependencies(data *models.ModelData, loc models.Localization) []string {
	deps := []string{loc.CmURI(data.String("Id"), models.ItemTypePage)}
	seen := map[string]struct{}{deps[0]: {}}

	var walk func(regions []*models.ModelData)
	walk = func(regions []*models.ModelData) {
		for _, region := range regions {
			if includeID := region.String("IncludePageId"); includeID != "" {
				uri := loc.CmURI(includeID, models.ItemTypePage)
				if _, ok := seen[uri]; !ok {
					seen[uri] = struct{}{}
					deps = append(deps, uri)
				}
			}
			walk(region.Objects("Regions"))
		}
	}
	walk(data.Objects("Regions"))

	return deps
}

func (r *Resolver) filterConditionalEntities(ctx context.Context, page *models.PageModel, loc models.Localization) {
	if r.evaluator == nil {
		return
	}
	removed := page.FilterEntities(func(e *models.EntityModel) bool {
		return r.evaluator.ShouldSuppress(e, loc)
	})
	if removed > 0 {
		r.logger.DebugWithContext(ctx, "suppressed conditional entities",
			zap.String("page_id", page.ID),
			zap.Int("count", removed))
	}
}

// ParseEntityID splits an entity id of the form {componentId}-{templateId}.
func ParseEntityID(id string) (componentID, templateID int, err error) {
	parts := strings.Split(id, "-")
	if len(parts) != 2 {
		return 0, 0, dxaerrors.InvalidEntityIDError(id)
	}
	componentID, err = strconv.Atoi(parts[0])
	if err != nil || componentID < 0 {
		return 0, 0, dxaerrors.InvalidEntityIDError(id)
	}
	templateID, err = strconv.Atoi(parts[1])
	if err != nil || templateID < 0 {
		return 0, 0, dxaerrors.InvalidEntityIDError(id)
	}
	return componentID, templateID, nil
}

// ResolveEntity returns the entity with the given {componentId}-{templateId}
// id. Its editor metadata, when present, marks it as query based.
func (r *Resolver) ResolveEntity(ctx context.Context, id string, loc models.Localization) (*models.EntityModel, error) {
	ctx, span := tracer.Start(ctx, "resolver.ResolveEntity", trace.WithAttributes(
		attribute.String("entity_id", id),
		attribute.String("localization_id", loc.ID),
	))
	defer span.End()

	componentID, templateID, err := ParseEntityID(id)
	if err != nil {
		return nil, err
	}

	ctx = logger.ContextWithFields(ctx,
		zap.String("localization_id", loc.ID),
		zap.String("entity_id", id))

	since := r.cacheEpoch()
	data, err := r.client.FetchEntity(ctx, loc, componentID, templateID)
	if err != nil {
		if dxaerrors.IsNotFound(err) {
			return nil, dxaerrors.ItemNotFoundError(id, loc.ID)
		}
		span.RecordError(err)
		return nil, r.upstreamFailure(ctx, fmt.Sprintf("entity '%s'", id), err)
	}

	componentURI := loc.CmURI(strconv.Itoa(componentID), models.ItemTypeComponent)
	build := func(context.Context) (*models.EntityModel, bool, error) {
		entity, err := r.deserializer.Entity(data, loc)
		if err != nil {
			return nil, false, dxaerrors.UpstreamProtocolError(fmt.Sprintf("building entity model '%s'", id), err)
		}
		return entity, true, nil
	}

	var entity *models.EntityModel
	if r.cachingActive() {
		key := keys.EntityModelKey(id, loc.ID)
		entity, err = cache.GetOrComputeSince(ctx, r.cache, since, RegionEntityModel, key, []string{componentURI}, build)
	} else {
		entity, _, err = build(ctx)
	}
	if err != nil {
		return nil, r.upstreamFailure(ctx, fmt.Sprintf("entity '%s'", id), err)
	}

	if entity.XpmMetadata != nil {
		entity.XpmMetadata[models.IsQueryBasedXpmMetadataKey] = true
	}
	return entity, nil
}

// ResolveEntities resolves ids concurrently. Results are in the order of ids;
// the first failure is returned.
func (r *Resolver) ResolveEntities(ctx context.Context, ids []string, loc models.Localization) ([]*models.EntityModel, error) {
	ctx, span := tracer.Start(ctx, "resolver.ResolveEntities", trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	return concurrency.Map(ctx, r.maxEntityFetches, ids, func(ctx context.Context, id string) (*models.EntityModel, error) {
		return r.ResolveEntity(ctx, id, loc)
	})
}

// Invalidate evicts every cached model built from the given content URI.
func (r *Resolver) Invalidate(dependencyID string) int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Invalidate(dependencyID)
}

// upstreamFailure logs protocol failures and classifies errors that carry no
// kind as protocol failures.
func (r *Resolver) upstreamFailure(ctx context.Context, what string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, dxaerrors.ErrUpstreamUnavailable),
		errors.Is(err, dxaerrors.ErrNotFound),
		errors.Is(err, dxaerrors.ErrInvalidRequest):
		return err
	case !errors.Is(err, dxaerrors.ErrUpstreamProtocol):
		err = dxaerrors.UpstreamProtocolError(fmt.Sprintf("retrieving %s", what), err)
	}

	r.logger.ErrorWithContext(ctx, "unexpected content service failure",
		zap.String("item", what),
		zap.Error(err))
	return err
}
