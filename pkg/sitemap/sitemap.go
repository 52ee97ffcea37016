// Package sitemap resolves navigation subtrees from the two tree primitives of
// the content service. Nothing is cached; every call builds fresh items.
package sitemap

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/contentservice"
	dxaerrors "github.com/wangzhengdao/dxa-web-application-dotnet/pkg/errors"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/models"
)

var tracer = otel.Tracer("pkg/sitemap")

const (
	// AllLevels requests every level below the parent.
	AllLevels = -1

	DefaultDescendantDepth = 10
)

type ResolverOption func(r *Resolver)

func WithLogger(l logger.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithDescendantDepth sets how deep whole trees are fetched.
func WithDescendantDepth(depth int) ResolverOption {
	return func(r *Resolver) {
		r.descendantDepth = depth
	}
}

type Resolver struct {
	client          contentservice.Client
	logger          logger.Logger
	descendantDepth int
}

func New(client contentservice.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:          client,
		logger:          logger.NewNoopLogger(),
		descendantDepth: DefaultDescendantDepth,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// GetChildren returns the navigation items below parentID, levels deep. An
// empty parentID addresses the root of the navigation; levels == AllLevels
// returns everything below the parent.
//
// When includeAncestors is set for a bounded request the whole tree around the
// parent is returned with only the parent's subtree cut to levels.
//
// Missing content and an unreachable content service yield an empty list.
// Unexpected responses fail with an error naming the parent.
func (r *Resolver) GetChildren(ctx context.Context, parentID string, loc models.Localization, includeAncestors bool, levels int) ([]*models.SitemapItem, error) {
	ctx, span := tracer.Start(ctx, "sitemap.GetChildren", trace.WithAttributes(
		attribute.String("parent_id", parentID),
		attribute.String("localization_id", loc.ID),
		attribute.Bool("include_ancestors", includeAncestors),
		attribute.Int("levels", levels),
	))
	defer span.End()

	ctx = logger.ContextWithFields(ctx,
		zap.String("localization_id", loc.ID),
		zap.String("parent_id", parentID))

	items, err := r.children(ctx, parentID, loc, includeAncestors, levels)
	if err != nil {
		span.RecordError(err)
		return r.failure(ctx, parentID, err)
	}
	if items == nil {
		items = []*models.SitemapItem{}
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return items, nil
}

func (r *Resolver) children(ctx context.Context, parentID string, loc models.Localization, includeAncestors bool, levels int) ([]*models.SitemapItem, error) {
	if levels < 0 {
		tree, err := r.client.FetchFullTree(ctx, loc, parentID, includeAncestors, r.descendantDepth)
		if err != nil {
			return nil, err
		}
		if parentID == "" || contentservice.IsTaxonomyRoot(parentID) {
			return tree, nil
		}
		return flatten(tree), nil
	}

	if parentID == "" {
		// the root itself counts as a level
		if levels > 0 {
			levels--
		}
		return r.client.FetchBoundedSubtree(ctx, loc, "", levels, includeAncestors)
	}

	if includeAncestors {
		tree, err := r.client.FetchFullTree(ctx, loc, parentID, true, r.descendantDepth)
		if err != nil {
			return nil, err
		}
		node := FindNode(tree, parentID)
		if node == nil {
			r.logger.WarnWithContext(ctx, "sitemap node missing from its own tree")
			return nil, nil
		}
		Prune(node, 0, levels)
		return tree, nil
	}

	tree, err := r.client.FetchBoundedSubtree(ctx, loc, parentID, levels, false)
	if err != nil {
		return nil, err
	}
	return flatten(tree), nil
}

// GetSitemapRoot returns the whole navigation below a synthetic root node.
func (r *Resolver) GetSitemapRoot(ctx context.Context, loc models.Localization) (*models.SitemapItem, error) {
	ctx, span := tracer.Start(ctx, "sitemap.GetSitemapRoot", trace.WithAttributes(attribute.String("localization_id", loc.ID)))
	defer span.End()

	ctx = logger.ContextWithFields(ctx, zap.String("localization_id", loc.ID))

	root := &models.SitemapItem{
		Type:           models.SitemapItemTypeTaxonomyNode,
		Visible:        true,
		ChildrenLoaded: true,
	}

	tree, err := r.client.FetchFullTree(ctx, loc, "", false, r.descendantDepth)
	if err != nil {
		span.RecordError(err)
		if _, err := r.failure(ctx, "", err); err != nil {
			return nil, err
		}
		return root, nil
	}

	root.Items = tree
	root.HasChildNodes = len(tree) > 0
	return root, nil
}

// failure turns a content service error into the result of a tree request.
func (r *Resolver) failure(ctx context.Context, parentID string, err error) ([]*models.SitemapItem, error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case errors.Is(err, dxaerrors.ErrNotFound), errors.Is(err, dxaerrors.ErrUpstreamUnavailable):
		r.logger.DebugWithContext(ctx, "no sitemap items available", zap.Error(err))
		return []*models.SitemapItem{}, nil
	}

	msg := fmt.Sprintf("content service returned an unexpected response when retrieving child sitemap items for sitemap id '%s'", parentID)
	r.logger.ErrorWithContext(ctx, msg, zap.Error(err))
	return nil, dxaerrors.Classify(dxaerrors.ErrUpstreamProtocol, &dxaerrors.DxaError{Msg: msg, Cause: err})
}

// flatten replaces every taxonomy node by its children. Other items are dropped.
func flatten(items []*models.SitemapItem) []*models.SitemapItem {
	var out []*models.SitemapItem
	for _, item := range items {
		if item.IsTaxonomyNode() {
			out = append(out, item.Items...)
		}
	}
	return out
}

// FindNode returns the first item with the given id, searching depth first.
func FindNode(items []*models.SitemapItem, id string) *models.SitemapItem {
	for _, item := range items {
		if item.ID == id {
			return item
		}
		if found := FindNode(item.Items, id); found != nil {
			return found
		}
	}
	return nil
}

// Prune cuts the subtree of node so that no item is more than maxDepth levels
// below it; currentDepth is the depth of node itself. Items whose children are
// removed are marked as not having their children loaded.
func Prune(node *models.SitemapItem, currentDepth, maxDepth int) {
	if node == nil {
		return
	}
	if currentDepth >= maxDepth {
		if len(node.Items) > 0 || node.HasChildNodes {
			node.HasChildNodes = true
			node.ChildrenLoaded = false
		}
		node.Items = nil
		return
	}
	for _, child := range node.Items {
		Prune(child, currentDepth+1, maxDepth)
	}
}
